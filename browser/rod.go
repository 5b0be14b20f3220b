package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/whitedemon938/Turnstile-Solver/config"
)

// elementTimeout bounds selector lookups so a poll against a widget that has
// not rendered yet fails quickly instead of hanging the attempt.
const elementTimeout = 3 * time.Second

// navigateTimeout bounds a single navigation including the load event.
const navigateTimeout = 15 * time.Second

// RodEngine launches Chromium processes through go-rod. Each Launch call
// starts a separate process so pooled browsers are fully isolated.
type RodEngine struct {
	cfg config.BrowserConfig
}

// NewRodEngine creates a RodEngine with the given browser configuration.
func NewRodEngine(cfg config.BrowserConfig) *RodEngine {
	return &RodEngine{cfg: cfg}
}

// Launch starts one Chromium process and connects to it.
func (e *RodEngine) Launch(ctx context.Context) (Browser, error) {
	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(e.cfg.NoSandbox)

	if e.cfg.Bin != "" {
		l = l.Bin(e.cfg.Bin)
	}
	if e.cfg.Proxy != "" {
		l = l.Proxy(e.cfg.Proxy)
	}
	if e.cfg.UserAgent != "" {
		l.Set(flags.Flag("user-agent"), e.cfg.UserAgent)
	}

	// ── Hardening flags ─────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-background-networking"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("no-first-run"))
	if !e.cfg.Headless {
		// Keep visible windows out of the way.
		l.Set(flags.Flag("window-position"), "2000,2000")
	}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().Context(ctx).ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	return &rodBrowser{browser: b, launcher: l, cfg: e.cfg}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.BrowserConfig
}

func (b *rodBrowser) NewPage() (Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if b.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", err,
			)
		}
	}

	if len(b.cfg.ExtraHeaders) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(b.cfg.ExtraHeaders),
		}.Call(page)); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}

	return &rodPage{page: page}, nil
}

func (b *rodBrowser) SetCookies(cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, len(cookies))
	for i, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		params[i] = &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   path,
		}
	}
	return b.browser.SetCookies(params)
}

func (b *rodBrowser) ClearCookies() error {
	return proto.StorageClearCookies{}.Call(b.browser)
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(url string) error {
	pg := p.page.Timeout(navigateTimeout)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

// Serve installs a hijack router that fulfills requests for exactly url
// with the given HTML body. router.Run blocks, so it lives in its own
// goroutine until the returned stop function is called.
func (p *rodPage) Serve(url, html string) (func(), error) {
	router := p.page.HijackRequests()
	err := router.Add(url, "", func(ctx *rod.Hijack) {
		ctx.Response.Payload().ResponseCode = http.StatusOK
		ctx.Response.SetHeader("Content-Type", "text/html; charset=utf-8")
		ctx.Response.SetBody(html)
	})
	if err != nil {
		return nil, fmt.Errorf("add hijack route: %w", err)
	}
	go router.Run()
	return func() { _ = router.Stop() }, nil
}

func (p *rodPage) Eval(js string) error {
	_, err := p.page.Eval(js)
	return err
}

func (p *rodPage) EvalOnSelector(selector, js string) (string, error) {
	el, err := p.page.Timeout(elementTimeout).Element(selector)
	if err != nil {
		return "", err
	}
	res, err := el.Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *rodPage) Element(selector string) (Element, error) {
	el, err := p.page.Timeout(elementTimeout).Element(selector)
	if err != nil {
		return nil, err
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Attribute(name string) (string, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
