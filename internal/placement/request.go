// Package placement opens detail views in new windows on a target screen,
// escalating through positioning strategies and falling back to a plain tab.
package placement

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/1broseidon/popdeck/internal/tiling"
)

// ErrInvalidRequest is returned for requests that can never be opened.
var ErrInvalidRequest = errors.New("invalid placement request")

// ViewType is the kind of detail view.
type ViewType string

const (
	ViewFlight     ViewType = "flight"
	ViewAlerts     ViewType = "alerts"
	ViewMetrics    ViewType = "metrics"
	ViewOperations ViewType = "operations"
)

// ParseViewType validates s.
func ParseViewType(s string) (ViewType, error) {
	switch v := ViewType(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewFlight, ViewAlerts, ViewMetrics, ViewOperations:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown view type %q", ErrInvalidRequest, s)
	}
}

// Request is one pop-out request.
type Request struct {
	ViewType ViewType        `json:"type"`
	EntityID string          `json:"id,omitempty"`
	Layout   *tiling.Options `json:"layout,omitempty"`
}

// Validate rejects unknown view types, flights without an id and malformed
// layouts.
func (r Request) Validate() error {
	v, err := ParseViewType(string(r.ViewType))
	if err != nil {
		return err
	}
	if v == ViewFlight && strings.TrimSpace(r.EntityID) == "" {
		return fmt.Errorf("%w: flight view requires an id", ErrInvalidRequest)
	}
	if r.Layout != nil {
		if err := r.Layout.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	return nil
}

// WindowName is the name the opened window is registered under. Pop-outs of
// the same view reuse the name.
func (r Request) WindowName() string {
	v := r.view()
	if v == ViewFlight {
		return "flight-" + r.EntityID
	}
	return string(v) + "-dashboard"
}

// view is ViewType in canonical form, or as given when it is unknown.
func (r Request) view() ViewType {
	if v, err := ParseViewType(string(r.ViewType)); err == nil {
		return v
	}
	return r.ViewType
}

// URL builds the detail view address below base.
func (r Request) URL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid dashboard url %q: %w", base, err)
	}
	v := r.view()
	segment := string(v)
	if v == ViewFlight {
		segment = r.EntityID
	}
	u = u.JoinPath("detailed", segment)
	q := u.Query()
	q.Set("window", r.WindowName())
	u.RawQuery = q.Encode()
	return u.String(), nil
}
