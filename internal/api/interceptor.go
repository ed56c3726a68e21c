package api

import (
	"net/http"

	"github.com/sentinelstack/sentinel-engine/internal/models"
	"github.com/sentinelstack/sentinel-engine/internal/tracker"
)

// InterceptingTransport wraps an http.RoundTripper and records outbound
// failures with the tracker. Transport-level failures are recorded as
// network errors, non-2xx responses as API errors. Each outcome is
// recorded exactly once per request.
type InterceptingTransport struct {
	Base    http.RoundTripper
	Tracker *tracker.Tracker
}

// NewInterceptingTransport wraps base, defaulting to http.DefaultTransport.
func NewInterceptingTransport(base http.RoundTripper, t *tracker.Tracker) *InterceptingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &InterceptingTransport{Base: base, Tracker: t}
}

// RoundTrip executes the request and records any failure before
// returning the original result untouched.
func (it *InterceptingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := it.Base.RoundTrip(req)
	if it.Tracker == nil {
		return resp, err
	}

	endpoint := req.URL.Path
	if endpoint == "" {
		endpoint = req.URL.String()
	}
	ctx := models.ErrorContext{Resource: endpoint}

	if err != nil {
		it.Tracker.RecordError(
			err.Error(),
			models.ClassNetwork,
			models.SeverityHigh,
			"transport",
			ctx,
			map[string]any{"endpoint": endpoint, "method": req.Method},
		)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		it.Tracker.RecordAPIError(endpoint, resp.StatusCode, http.StatusText(resp.StatusCode), ctx)
	}
	return resp, nil
}
