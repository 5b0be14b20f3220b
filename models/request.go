package models

// SolveRequest is the payload for POST /api/v1/solve.
type SolveRequest struct {
	// URL is the page the Turnstile widget is validated against. Required.
	URL string `json:"url" binding:"required,url"`

	// SiteKey is the Turnstile site key embedded in the widget. Required.
	SiteKey string `json:"sitekey" binding:"required"`

	// Action is an optional data-action value passed to the widget.
	Action string `json:"action,omitempty"`

	// CData is an optional data-cdata value passed to the widget.
	CData string `json:"cdata,omitempty"`

	// Invisible marks the site key as an invisible-mode key. Invisible
	// widgets solve without interaction, so the click nudge is skipped.
	Invisible bool `json:"invisible,omitempty"`

	// Cookies are installed on the browsing context before navigation.
	// The cookie domain is derived from URL.
	Cookies map[string]string `json:"cookies,omitempty"`

	// MaxAttempts bounds the token polling loop.
	// Default: 10. Max: 60.
	MaxAttempts int `json:"max_attempts,omitempty" binding:"omitempty,min=1,max=60"`

	// PollIntervalMs is the sleep between polling attempts in milliseconds.
	// Default: 500.
	PollIntervalMs int `json:"poll_interval_ms,omitempty" binding:"omitempty,min=50,max=10000"`

	// WebhookURL, when set on an async task, receives the terminal result.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Defaults applies default values to unset fields.
func (r *SolveRequest) Defaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 10
	}
	if r.PollIntervalMs == 0 {
		r.PollIntervalMs = 500
	}
}

// Validate checks the fail-fast preconditions. It is called before any
// pool resource is acquired, so a bad request never consumes a slot.
func (r *SolveRequest) Validate() error {
	if r.URL == "" {
		return NewSolveError(ErrCodeInvalidInput, "url is required", nil)
	}
	if r.SiteKey == "" {
		return NewSolveError(ErrCodeInvalidInput, "sitekey is required", nil)
	}
	return nil
}
