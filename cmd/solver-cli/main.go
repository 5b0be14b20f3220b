// Command solver-cli runs a single Turnstile solve from the terminal and
// prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/whitedemon938/Turnstile-Solver/browser"
	"github.com/whitedemon938/Turnstile-Solver/config"
	"github.com/whitedemon938/Turnstile-Solver/models"
	"github.com/whitedemon938/Turnstile-Solver/solver"
)

func main() {
	var (
		url       = flag.String("url", "", "URL where Turnstile is to be validated (required)")
		sitekey   = flag.String("sitekey", "", "Turnstile site key (required)")
		action    = flag.String("action", "", "optional data-action value")
		cdata     = flag.String("cdata", "", "optional data-cdata value")
		invisible = flag.Bool("invisible", false, "site key is an invisible-mode key")
		headless  = flag.Bool("headless", true, "run the browser headless")
		useragent = flag.String("useragent", "", "custom User-Agent string")
		attempts  = flag.Int("attempts", 10, "max polling attempts")
		timeout   = flag.Duration("timeout", 2*time.Minute, "overall deadline for the solve")
		debug     = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *url == "" || *sitekey == "" {
		flag.Usage()
		os.Exit(2)
	}

	browserCfg := config.BrowserConfig{
		Headless:        *headless,
		Browsers:        1,
		PagesPerBrowser: 1,
		UserAgent:       *useragent,
		Stealth:         true,
	}
	solverCfg := config.SolverConfig{
		MaxAttempts:    *attempts,
		PollInterval:   500 * time.Millisecond,
		AcquireTimeout: *timeout,
		MinIdlePages:   1,
		Debug:          *debug,
	}

	engine := browser.NewRodEngine(browserCfg)
	sv, err := solver.New(engine, browser.TimerSleeper{}, browserCfg, solverCfg)
	if err != nil {
		slog.Error("failed to start browser", "error", err)
		os.Exit(1)
	}
	defer sv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := sv.Solve(ctx, &models.SolveRequest{
		URL:         *url,
		SiteKey:     *sitekey,
		Action:      *action,
		CData:       *cdata,
		Invisible:   *invisible,
		MaxAttempts: *attempts,
	})
	if err != nil {
		slog.Error("solve failed", "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	os.Stdout.Write(append(out, '\n'))

	if result.Status != models.StatusSuccess {
		os.Exit(1)
	}
}
