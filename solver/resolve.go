package solver

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/whitedemon938/Turnstile-Solver/browser"
	"github.com/whitedemon938/Turnstile-Solver/models"
)

// Selectors for the widget container and its hidden response field.
const (
	widgetSelector   = ".cf-turnstile"
	responseSelector = `[name="cf-turnstile-response"]`
)

// resolve runs the navigate-then-poll protocol on already-acquired
// resources. It never returns an error: any engine failure becomes a
// terminal error-status result, and the caller's deferred releases return
// the page and browser regardless of the outcome.
func (s *Solver) resolve(ctx context.Context, bh *browserHandle, pg browser.Page, req *models.SolveRequest, start time.Time) *models.SolveResult {
	target := normalizeURL(req.URL)

	if len(req.Cookies) > 0 {
		if err := s.installCookies(bh, req); err != nil {
			return errorResult(start, 0, err)
		}
	}

	doc := widgetDocument(req.SiteKey, req.Action, req.CData)
	stop, err := pg.Serve(target, doc)
	if err != nil {
		return errorResult(start, 0, err)
	}
	defer stop()

	if s.cfg.Debug {
		slog.Debug("navigating to synthetic page", "browser", bh.id,
			"url", target, "sitekey", req.SiteKey)
	}
	if err := pg.Navigate(target); err != nil {
		return errorResult(start, 0, err)
	}

	interval := time.Duration(req.PollIntervalMs) * time.Millisecond
	for attempt := 1; attempt <= req.MaxAttempts; attempt++ {
		value, evalErr := pg.EvalOnSelector(responseSelector, "() => this.value")
		if evalErr != nil {
			// The widget has not rendered its response field yet;
			// treat like an empty value and keep polling.
			if s.cfg.Debug {
				slog.Debug("response field not ready", "browser", bh.id,
					"attempt", attempt, "error", evalErr)
			}
		}

		if value == "" {
			if !req.Invisible {
				s.nudgeWidget(bh, pg, attempt)
			}
			if err := s.sleeper.Sleep(ctx, interval); err != nil {
				return errorResult(start, attempt, err)
			}
			continue
		}

		// The field flipped non-empty: re-read via direct attribute access
		// in case the value changed between the check and now.
		el, err := pg.Element(responseSelector)
		if err != nil {
			return errorResult(start, attempt, err)
		}
		token, err := el.Attribute("value")
		if err != nil {
			return errorResult(start, attempt, err)
		}
		elapsed := secondsSince(start)
		slog.Info("captcha solved", "browser", bh.id,
			"elapsed", elapsed, "attempts", attempt)
		return &models.SolveResult{
			Status:         models.StatusSuccess,
			Token:          token,
			ElapsedSeconds: elapsed,
			Attempts:       attempt,
		}
	}

	elapsed := secondsSince(start)
	slog.Warn("captcha not solved", "browser", bh.id,
		"elapsed", elapsed, "attempts", req.MaxAttempts)
	return &models.SolveResult{
		Status:         models.StatusFailure,
		ElapsedSeconds: elapsed,
		Attempts:       req.MaxAttempts,
		Reason:         "max attempts reached without token retrieval",
	}
}

// installCookies derives the cookie domain from the request URL and installs
// the supplied cookies on the browsing context.
func (s *Solver) installCookies(bh *browserHandle, req *models.SolveRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil {
		return err
	}
	cookies := make([]browser.Cookie, 0, len(req.Cookies))
	for name, value := range req.Cookies {
		cookies = append(cookies, browser.Cookie{
			Name:   name,
			Value:  value,
			Domain: u.Hostname(),
			Path:   "/",
		})
	}
	return bh.browser.SetCookies(cookies)
}

// nudgeWidget widens the widget container so its checkbox is reachable and
// clicks it. Both steps are best-effort; a widget that is mid-render simply
// gets nudged again on the next attempt.
func (s *Solver) nudgeWidget(bh *browserHandle, pg browser.Page, attempt int) {
	if err := pg.Eval(`() => {
		const el = document.querySelector(".cf-turnstile");
		if (el) el.style.width = "70px";
	}`); err != nil && s.cfg.Debug {
		slog.Debug("widget resize failed", "browser", bh.id,
			"attempt", attempt, "error", err)
	}
	el, err := pg.Element(widgetSelector)
	if err != nil {
		return
	}
	if err := el.Click(); err != nil && s.cfg.Debug {
		slog.Debug("widget click failed", "browser", bh.id,
			"attempt", attempt, "error", err)
	}
}

func errorResult(start time.Time, attempts int, err error) *models.SolveResult {
	return &models.SolveResult{
		Status:         models.StatusError,
		ElapsedSeconds: secondsSince(start),
		Attempts:       attempts,
		Reason:         err.Error(),
	}
}

func secondsSince(start time.Time) float64 {
	return float64(time.Since(start).Milliseconds()) / 1000
}
