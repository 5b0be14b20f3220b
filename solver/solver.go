// Package solver multiplexes Turnstile solve requests across a bounded pool
// of browser processes and their per-browser page pools, and runs the
// navigate-then-poll resolution protocol on top of them.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/whitedemon938/Turnstile-Solver/browser"
	"github.com/whitedemon938/Turnstile-Solver/config"
	"github.com/whitedemon938/Turnstile-Solver/models"
	"github.com/whitedemon938/Turnstile-Solver/pool"
)

// browserHandle owns one browser process and its page pool. The page pool
// is built eagerly when the browser is created, so there is no lazy,
// race-guarded construction on the request path.
type browserHandle struct {
	id      int
	browser browser.Browser
	pages   *pool.Pool[browser.Page]
}

// Solver is the challenge resolver. It is safe for concurrent use; every
// in-flight request borrows one browser and one of that browser's pages and
// returns both on all exit paths.
type Solver struct {
	engine   browser.Engine
	sleeper  browser.Sleeper
	cfg      config.SolverConfig
	browsers *pool.Pool[*browserHandle]
	nextID   atomic.Int64
}

// New launches cfg.Browser.Browsers browser processes and builds their page
// pools. A launch failure is fatal: it is returned, not retried.
func New(engine browser.Engine, sleeper browser.Sleeper, browserCfg config.BrowserConfig, solverCfg config.SolverConfig) (*Solver, error) {
	s := &Solver{
		engine:  engine,
		sleeper: sleeper,
		cfg:     solverCfg,
	}

	s.browsers = pool.New(pool.Config{
		Capacity:       browserCfg.Browsers,
		MinIdle:        browserCfg.Browsers,
		AcquireTimeout: solverCfg.AcquireTimeout,
	}, pool.Funcs[*browserHandle]{
		Create: func() (*browserHandle, error) {
			return s.launchBrowser(browserCfg)
		},
		Destroy: func(h *browserHandle) {
			h.pages.Shutdown()
			if err := h.browser.Close(); err != nil {
				slog.Warn("failed to close browser", "browser", h.id, "error", err)
			}
		},
	})

	if err := s.browsers.Initialize(browserCfg.Browsers); err != nil {
		s.browsers.Shutdown()
		return nil, fmt.Errorf("initialize browser pool: %w", err)
	}
	slog.Info("browser pool initialized", "browsers", browserCfg.Browsers,
		"pagesPerBrowser", browserCfg.PagesPerBrowser)
	return s, nil
}

func (s *Solver) launchBrowser(browserCfg config.BrowserConfig) (*browserHandle, error) {
	b, err := s.engine.Launch(context.Background())
	if err != nil {
		return nil, err
	}
	h := &browserHandle{id: int(s.nextID.Add(1)), browser: b}

	h.pages = pool.New(pool.Config{
		Capacity:       browserCfg.PagesPerBrowser,
		MinIdle:        s.cfg.MinIdlePages,
		AcquireTimeout: s.cfg.AcquireTimeout,
	}, pool.Funcs[browser.Page]{
		Create: b.NewPage,
		Destroy: func(p browser.Page) {
			if err := p.Close(); err != nil {
				slog.Debug("failed to close page", "browser", h.id, "error", err)
			}
		},
		Cleanup: pageCleanup(b),
	})

	if err := h.pages.Initialize(s.cfg.MinIdlePages); err != nil {
		h.pages.Shutdown()
		_ = b.Close()
		return nil, fmt.Errorf("initialize page pool: %w", err)
	}
	return h, nil
}

// pageCleanup scrubs a page before it is handed to a different request: a
// neutral navigation, then best-effort storage and cookie clearing. A page
// whose navigation fails cannot be proven clean and is destroyed by the
// pool rather than reused.
func pageCleanup(b browser.Browser) func(browser.Page) error {
	return func(p browser.Page) error {
		if err := p.Navigate("about:blank"); err != nil {
			return fmt.Errorf("navigate to about:blank: %w", err)
		}
		if err := p.Eval(`() => {
			try { localStorage.clear() } catch (e) {}
			try { sessionStorage.clear() } catch (e) {}
		}`); err != nil {
			slog.Debug("cleanup: storage clear failed", "error", err)
		}
		if err := b.ClearCookies(); err != nil {
			slog.Debug("cleanup: cookie clear failed", "error", err)
		}
		return nil
	}
}

// Solve runs the full resolution protocol for one request. Precondition and
// pool-exhaustion failures are returned as typed errors before or during
// acquisition; once resources are held, every protocol outcome (success,
// attempt exhaustion, engine error) is a terminal SolveResult.
func (s *Solver) Solve(ctx context.Context, req *models.SolveRequest) (*models.SolveResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Resolve defaults into a private copy; the caller's request is never
	// written to once a resolution is underway.
	r := *req
	if r.MaxAttempts == 0 {
		r.MaxAttempts = s.cfg.MaxAttempts
	}
	if r.PollIntervalMs == 0 {
		r.PollIntervalMs = int(s.cfg.PollInterval / time.Millisecond)
	}
	r.Defaults()
	req = &r

	// Elapsed time includes queueing for a scarce browser or page.
	start := time.Now()

	bh, err := s.browsers.Acquire(ctx)
	if err != nil {
		return nil, acquireError("browser", err)
	}
	defer s.browsers.Release(bh)

	pg, err := bh.pages.Acquire(ctx)
	if err != nil {
		return nil, acquireError("page", err)
	}
	// Deferred LIFO order releases the page before the browser.
	defer bh.pages.Release(pg)

	res := s.resolve(ctx, bh, pg, req, start)
	return res, nil
}

func acquireError(kind string, err error) error {
	if err == pool.ErrTimeout {
		return models.NewSolveError(models.ErrCodePoolTimeout,
			"no free "+kind+" within acquire timeout", err)
	}
	return models.NewSolveError(models.ErrCodeBrowserCrash,
		"failed to acquire "+kind, err)
}

// Stats reports browser pool occupancy for the health endpoint.
func (s *Solver) Stats() models.PoolStats {
	st := s.browsers.Stats()
	return models.PoolStats{
		MaxBrowsers:    st.Capacity,
		ActiveBrowsers: st.InUse,
		IdleBrowsers:   st.Idle,
	}
}

// Close tears down every page pool and browser process. Must not be called
// while solves are in flight.
func (s *Solver) Close() {
	slog.Info("solver shutting down: draining browser pool")
	s.browsers.Shutdown()
	slog.Info("solver shutdown complete")
}
