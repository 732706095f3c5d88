package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/reelqueue/platform/pkg/observability/metrics"
)

// New creates an HTTP client tuned for calls to a single external collaborator.
// Every round trip is timed under the collaborator label.
func New(collaborator string, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: Instrument(collaborator, transport),
	}
}

// Instrument wraps next so each request is observed in the external call histogram.
func Instrument(collaborator string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &observedTransport{collaborator: collaborator, next: next}
}

type observedTransport struct {
	collaborator string
	next         http.RoundTripper
}

func (t *observedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	outcome := "ok"
	if err != nil || resp.StatusCode >= 400 {
		outcome = "error"
	}
	metrics.ObserveExternalCall(t.collaborator, outcome, time.Since(start))
	return resp, err
}
