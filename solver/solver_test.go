package solver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/whitedemon938/Turnstile-Solver/browser"
	"github.com/whitedemon938/Turnstile-Solver/config"
	"github.com/whitedemon938/Turnstile-Solver/models"
)

// ---- fake collaborator seam ----

type fakeEngine struct {
	mu       sync.Mutex
	browsers []*fakeBrowser
	pages    []*fakePage
	pageCfg  func(*fakePage)
}

func newFakeEngine(pageCfg func(*fakePage)) *fakeEngine {
	return &fakeEngine{pageCfg: pageCfg}
}

func (e *fakeEngine) Launch(ctx context.Context) (browser.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := &fakeBrowser{engine: e}
	e.browsers = append(e.browsers, b)
	return b, nil
}

func (e *fakeEngine) page(i int) *fakePage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pages[i]
}

type fakeBrowser struct {
	engine       *fakeEngine
	mu           sync.Mutex
	cookies      []browser.Cookie
	cookieClears int
	closed       bool
}

func (b *fakeBrowser) NewPage() (browser.Page, error) {
	p := &fakePage{}
	if b.engine.pageCfg != nil {
		b.engine.pageCfg(p)
	}
	b.engine.mu.Lock()
	b.engine.pages = append(b.engine.pages, p)
	b.engine.mu.Unlock()
	return p, nil
}

func (b *fakeBrowser) SetCookies(cookies []browser.Cookie) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cookies = append(b.cookies, cookies...)
	return nil
}

func (b *fakeBrowser) ClearCookies() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cookieClears++
	return nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

type fakePage struct {
	mu          sync.Mutex
	navigations []string
	servedURL   string
	servedHTML  string
	navErr      error    // returned for non-blank navigations
	polls       []string // successive response field reads
	pollIdx     int
	token       string // attribute value of the response field
	clicks      int
	closed      bool
}

func (p *fakePage) Navigate(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, url)
	if url != "about:blank" && p.navErr != nil {
		return p.navErr
	}
	return nil
}

func (p *fakePage) Serve(url, html string) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.servedURL = url
	p.servedHTML = html
	return func() {}, nil
}

func (p *fakePage) Eval(js string) error { return nil }

func (p *fakePage) EvalOnSelector(selector, js string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.polls) == 0 {
		return "", nil
	}
	i := p.pollIdx
	if i >= len(p.polls) {
		i = len(p.polls) - 1
	}
	p.pollIdx++
	return p.polls[i], nil
}

func (p *fakePage) Element(selector string) (browser.Element, error) {
	return &fakeElement{page: p, selector: selector}, nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeElement struct {
	page     *fakePage
	selector string
}

func (e *fakeElement) Click() error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.page.clicks++
	return nil
}

func (e *fakeElement) Attribute(name string) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.token, nil
}

type countingSleeper struct {
	mu     sync.Mutex
	sleeps int
	err    error
}

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps++
	return s.err
}

// ---- helpers ----

func testConfigs() (config.BrowserConfig, config.SolverConfig) {
	return config.BrowserConfig{
			Browsers:        1,
			PagesPerBrowser: 1,
		}, config.SolverConfig{
			MaxAttempts:    10,
			PollInterval:   time.Millisecond,
			AcquireTimeout: time.Second,
			MinIdlePages:   1,
		}
}

func newTestSolver(t *testing.T, pageCfg func(*fakePage)) (*Solver, *fakeEngine, *countingSleeper) {
	t.Helper()
	engine := newFakeEngine(pageCfg)
	sleeper := &countingSleeper{}
	browserCfg, solverCfg := testConfigs()
	s, err := New(engine, sleeper, browserCfg, solverCfg)
	if err != nil {
		t.Fatalf("solver.New: %v", err)
	}
	t.Cleanup(s.Close)
	return s, engine, sleeper
}

// ---- tests ----

func TestSolve_SuccessOnThirdPoll(t *testing.T) {
	s, engine, sleeper := newTestSolver(t, func(p *fakePage) {
		p.polls = []string{"", "", "filled"}
		p.token = "tok-abc"
	})

	res, err := s.Solve(context.Background(), &models.SolveRequest{
		URL:     "https://example.com",
		SiteKey: "sitekey-A",
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %q, want success (reason: %s)", res.Status, res.Reason)
	}
	if res.Token != "tok-abc" {
		t.Errorf("token = %q, want the attribute value", res.Token)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}

	pg := engine.page(0)
	if pg.servedURL != "https://example.com/" {
		t.Errorf("served URL = %q, want trailing-slash normalized target", pg.servedURL)
	}
	if !strings.Contains(pg.servedHTML, `data-sitekey="sitekey-A"`) {
		t.Errorf("synthetic document missing sitekey: %s", pg.servedHTML)
	}
	if pg.clicks != 2 {
		t.Errorf("clicks = %d, want 2 (one per empty poll)", pg.clicks)
	}
	if sleeper.sleeps != 2 {
		t.Errorf("sleeps = %d, want 2", sleeper.sleeps)
	}
}

func TestSolve_ExhaustsAttemptBudget(t *testing.T) {
	s, _, sleeper := newTestSolver(t, nil) // every poll reads empty

	res, err := s.Solve(context.Background(), &models.SolveRequest{
		URL:     "https://example.com",
		SiteKey: "sitekey-A",
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if res.Status != models.StatusFailure {
		t.Fatalf("status = %q, want failure", res.Status)
	}
	if res.Attempts != 10 {
		t.Errorf("attempts = %d, want the full budget of 10", res.Attempts)
	}
	if !strings.Contains(res.Reason, "max attempts") {
		t.Errorf("reason = %q, want attempt exhaustion", res.Reason)
	}
	if sleeper.sleeps != 10 {
		t.Errorf("sleeps = %d, want 10", sleeper.sleeps)
	}
}

func TestSolve_EmptyURLRejectedBeforeAcquisition(t *testing.T) {
	s, engine, _ := newTestSolver(t, nil)
	before := s.Stats()

	_, err := s.Solve(context.Background(), &models.SolveRequest{SiteKey: "sitekey-A"})
	if err == nil {
		t.Fatal("expected a precondition error")
	}
	var solveErr *models.SolveError
	if !errors.As(err, &solveErr) || solveErr.Code != models.ErrCodeInvalidInput {
		t.Fatalf("error = %v, want INVALID_INPUT", err)
	}

	if after := s.Stats(); after != before {
		t.Errorf("pool state changed by a rejected request: %+v -> %+v", before, after)
	}
	if got := len(engine.page(0).navigations); got != 0 {
		t.Errorf("page navigated %d times, want 0", got)
	}
}

func TestSolve_NavigationErrorReturnsResources(t *testing.T) {
	s, engine, _ := newTestSolver(t, func(p *fakePage) {
		p.navErr = errors.New("net::ERR_CONNECTION_REFUSED")
	})

	res, err := s.Solve(context.Background(), &models.SolveRequest{
		URL:     "https://example.com",
		SiteKey: "sitekey-A",
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Status != models.StatusError {
		t.Fatalf("status = %q, want error", res.Status)
	}
	if !strings.Contains(res.Reason, "ERR_CONNECTION_REFUSED") {
		t.Errorf("reason = %q, want the stringified cause", res.Reason)
	}

	st := s.Stats()
	if st.ActiveBrowsers != 0 {
		t.Fatalf("browser not returned: %+v", st)
	}

	// The slot must be usable again.
	engine.page(0).mu.Lock()
	engine.page(0).navErr = nil
	engine.page(0).polls = []string{"filled"}
	engine.page(0).token = "tok"
	engine.page(0).mu.Unlock()

	res, err = s.Solve(context.Background(), &models.SolveRequest{
		URL:     "https://example.com",
		SiteKey: "sitekey-A",
	})
	if err != nil {
		t.Fatalf("second Solve: %v", err)
	}
	if res.Status != models.StatusSuccess {
		t.Fatalf("second solve status = %q, want success", res.Status)
	}
}

func TestSolve_CookiesInstalledAndClearedBetweenRequests(t *testing.T) {
	s, engine, _ := newTestSolver(t, func(p *fakePage) {
		p.polls = []string{"filled"}
		p.token = "tok"
	})

	_, err := s.Solve(context.Background(), &models.SolveRequest{
		URL:     "https://example.com/login",
		SiteKey: "sitekey-A",
		Cookies: map[string]string{"session": "abc"},
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	b := engine.browsers[0]
	b.mu.Lock()
	cookies := append([]browser.Cookie(nil), b.cookies...)
	b.mu.Unlock()
	if len(cookies) != 1 || cookies[0].Name != "session" || cookies[0].Domain != "example.com" {
		t.Fatalf("cookies = %+v, want session cookie scoped to example.com", cookies)
	}

	// The release path must have scrubbed the page before it can be reused.
	pg := engine.page(0)
	pg.mu.Lock()
	navs := append([]string(nil), pg.navigations...)
	pg.mu.Unlock()
	if navs[len(navs)-1] != "about:blank" {
		t.Errorf("last navigation = %q, want about:blank cleanup", navs[len(navs)-1])
	}
	b.mu.Lock()
	clears := b.cookieClears
	b.mu.Unlock()
	if clears == 0 {
		t.Error("cookies were not cleared on release")
	}
}

func TestSolve_InvisibleModeSkipsClickNudge(t *testing.T) {
	s, engine, _ := newTestSolver(t, func(p *fakePage) {
		p.polls = []string{"", "filled"}
		p.token = "tok"
	})

	res, err := s.Solve(context.Background(), &models.SolveRequest{
		URL:       "https://example.com",
		SiteKey:   "sitekey-A",
		Invisible: true,
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %q, want success", res.Status)
	}
	if clicks := engine.page(0).clicks; clicks != 0 {
		t.Errorf("clicks = %d, want 0 for invisible mode", clicks)
	}
}

func TestSolve_CancelledSleepReleasesResources(t *testing.T) {
	s, _, sleeper := newTestSolver(t, nil)
	sleeper.err = context.Canceled

	res, err := s.Solve(context.Background(), &models.SolveRequest{
		URL:     "https://example.com",
		SiteKey: "sitekey-A",
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Status != models.StatusError {
		t.Fatalf("status = %q, want error", res.Status)
	}
	if st := s.Stats(); st.ActiveBrowsers != 0 {
		t.Fatalf("browser leaked after cancellation: %+v", st)
	}
}

func TestSolve_DoesNotMutateCallerRequest(t *testing.T) {
	s, _, _ := newTestSolver(t, func(p *fakePage) {
		p.polls = []string{"filled"}
		p.token = "tok"
	})

	req := &models.SolveRequest{
		URL:     "https://example.com",
		SiteKey: "sitekey-A",
	}
	if _, err := s.Solve(context.Background(), req); err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if req.MaxAttempts != 0 || req.PollIntervalMs != 0 {
		t.Errorf("Solve wrote defaults into the caller's request: %+v", req)
	}
}

func TestSolve_ConcurrentRequestsShareThePool(t *testing.T) {
	engine := newFakeEngine(func(p *fakePage) {
		p.polls = []string{"filled"}
		p.token = "tok"
	})
	browserCfg := config.BrowserConfig{Browsers: 2, PagesPerBrowser: 2}
	solverCfg := config.SolverConfig{
		MaxAttempts:    10,
		PollInterval:   time.Millisecond,
		AcquireTimeout: 5 * time.Second,
		MinIdlePages:   1,
	}
	s, err := New(engine, &countingSleeper{}, browserCfg, solverCfg)
	if err != nil {
		t.Fatalf("solver.New: %v", err)
	}
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Solve(context.Background(), &models.SolveRequest{
				URL:     "https://example.com",
				SiteKey: "sitekey-A",
			})
			if err != nil {
				t.Errorf("Solve: %v", err)
				return
			}
			if res.Status != models.StatusSuccess {
				t.Errorf("status = %q, want success", res.Status)
			}
		}()
	}
	wg.Wait()

	if st := s.Stats(); st.ActiveBrowsers != 0 {
		t.Fatalf("browsers leaked: %+v", st)
	}
}
