package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/rabiesbot/core/telegram/netutil"
)

// clientTimeout must stay above the long poll timeout or getUpdates is cut short.
const (
	clientTimeout    = 30 * time.Second
	dialTimeout      = 5 * time.Second
	redialAttempts   = 3
	redialBackoff    = 2 * time.Second
	idleConnTimeout  = 90 * time.Second
	handshakeTimeout = 5 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. Requests that
// failed before reaching Telegram are redialled; anything that may have been
// delivered is left to the caller.
func BuildHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: handshakeTimeout,
	}
	return &http.Client{
		Timeout:   clientTimeout,
		Transport: &retryTransport{base: base, maxRetries: redialAttempts, backoff: redialBackoff},
	}
}

// retryTransport repeats a request while netutil reports it was never sent.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.maxRetries && netutil.Unsent(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		wait := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			wait.Stop()
			return nil, req.Context().Err()
		case <-wait.C:
		}

		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			retry.Body = body
		}
		resp, err = base.RoundTrip(retry)
	}
	return resp, err
}
