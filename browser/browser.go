package browser

import (
	"context"
	"time"
)

// Cookie is a cookie installed on a browsing context before navigation.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Engine launches isolated browser processes. Each Launch call produces an
// independent process with its own browsing context, so state never bleeds
// between the browsers of a pool.
type Engine interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is one running browser process and its browsing context.
type Browser interface {
	// NewPage opens a fresh navigable page.
	NewPage() (Page, error)

	// SetCookies installs cookies on the browsing context.
	SetCookies(cookies []Cookie) error

	// ClearCookies removes all cookies from the browsing context.
	ClearCookies() error

	// Close terminates the browser process.
	Close() error
}

// Page is a navigable browsing surface. Pages are pooled and reused, so
// everything a request leaves behind must be removable afterwards.
type Page interface {
	// Navigate loads the URL and waits for the load event.
	Navigate(url string) error

	// Serve intercepts requests for exactly url and fulfills them with the
	// given HTML instead of a network fetch. The returned stop function
	// removes the interception and must be called when the request is done.
	Serve(url, html string) (stop func(), err error)

	// Eval runs a JS function ("() => ...") in the page.
	Eval(js string) error

	// EvalOnSelector runs a JS function ("() => ...", this bound to the
	// element) against the first element matching selector and returns the
	// result as a string.
	EvalOnSelector(selector, js string) (string, error)

	// Element returns the first element matching selector.
	Element(selector string) (Element, error)

	// Close destroys the page.
	Close() error
}

// Element is a DOM element handle.
type Element interface {
	Click() error
	Attribute(name string) (string, error)
}

// Sleeper is the bounded waiting primitive used between polling attempts.
// The context bounds the wait so a cancelled request stops sleeping early.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
