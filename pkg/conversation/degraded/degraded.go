package degraded

import (
	"errors"
	"sync"
)

// Reason says why persistence is unavailable.
type Reason string

const (
	// ReasonServiceDisabled: the store answered but reported its persistence
	// layer is not configured (HTTP 503).
	ReasonServiceDisabled Reason = "service-disabled"
	// ReasonServerError: any other non-2xx store response.
	ReasonServerError Reason = "server-error"
	// ReasonUnreachable: network-level failure, no response at all.
	ReasonUnreachable Reason = "unreachable"
)

// Notice is what the UI shows as a dismissible banner.
type Notice struct {
	Reason Reason `json:"reason"`
	Detail string `json:"detail"`
}

// statusCoder is implemented by store errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// Classify maps a store failure onto a degradation reason. nil errors have no
// reason and classify to the empty string.
func Classify(err error) Reason {
	if err == nil {
		return ""
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		if sc.StatusCode() == 503 {
			return ReasonServiceDisabled
		}
		return ReasonServerError
	}
	return ReasonUnreachable
}

// Detector is the single place that decides which store failures become
// user-visible. Raising never fails and never panics; it is bookkeeping the
// UI layer reads. One detector exists per UI surface.
type Detector struct {
	mu       sync.Mutex
	active   bool
	notice   Notice
	onChange func(*Notice)
}

func NewDetector() *Detector {
	return &Detector{}
}

// OnChange registers a hook fired after every raise or clear, with the
// current notice (nil once cleared). Used to push banner updates to the
// surface's websocket.
func (d *Detector) OnChange(fn func(*Notice)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// Raise records a degradation derived from err with a human-readable detail.
// It returns the classified reason for diagnostics.
func (d *Detector) Raise(err error, detail string) Reason {
	reason := Classify(err)
	if reason == "" {
		return ""
	}

	d.mu.Lock()
	d.active = true
	d.notice = Notice{Reason: reason, Detail: detail}
	hook := d.onChange
	notice := d.notice
	d.mu.Unlock()

	if hook != nil {
		hook(&notice)
	}
	return reason
}

// Clear dismisses the notice. Called explicitly by the user, or implicitly
// whenever any store call succeeds.
func (d *Detector) Clear() {
	d.mu.Lock()
	wasActive := d.active
	d.active = false
	d.notice = Notice{}
	hook := d.onChange
	d.mu.Unlock()

	if wasActive && hook != nil {
		hook(nil)
	}
}

// Current returns the active notice, or nil when the surface is healthy.
func (d *Detector) Current() *Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return nil
	}
	n := d.notice
	return &n
}
