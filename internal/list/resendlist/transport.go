package resendlist

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotFound is returned for API calls the server answered with 404.
var ErrNotFound = errors.New("resend: resource not found")

// statusTransport reports 404 responses as ErrNotFound. The resend client
// reduces non-429 failures to message strings, so the status has to be
// captured before the client sees the response.
type statusTransport struct {
	next http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, req.Method, req.URL.Path)
	}
	return resp, nil
}

// NewHTTPClient returns an http.Client for resend.NewCustomClient that
// surfaces ErrNotFound. A nil base gets a one-minute timeout.
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{Timeout: time.Minute}
	}
	next := base.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	c := *base
	c.Transport = statusTransport{next: next}
	return &c
}
