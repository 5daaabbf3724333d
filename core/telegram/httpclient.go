package telegram

import (
	"net"
	"net/http"
	"time"

	"bookingbot/core/telegram/netutil"
)

// HTTPClientOptions tune the client used for Bot API calls. Zero
// values select the defaults below.
type HTTPClientOptions struct {
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

const (
	defaultClientTimeout = 30 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 2 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for the Telegram API:
// pooled keep-alive connections plus transparent retries of transient
// network failures.
func BuildHTTPClient(opts ...HTTPClientOptions) *http.Client {
	var o HTTPClientOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultClientTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultRetryAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = defaultRetryBackoff
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{
		Timeout: o.Timeout,
		Transport: &retryTransport{
			base:       base,
			maxRetries: o.MaxRetries,
			backoff:    o.Backoff,
		},
	}
}

// retryTransport retries requests that failed with a retriable network
// error. Requests whose body cannot be replayed are never retried.
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

	var lastErr error
	attempts := t.maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		curr, err := t.replay(req, attempt)
		if err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		resp, err := base.RoundTrip(curr)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}
		if err := sleepCtx(req, t.backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// replay returns the request to send for this attempt. Retries need a
// fresh clone with a rewound body.
func (t *retryTransport) replay(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 {
		return req, nil
	}
	if req.Body != nil && req.GetBody == nil {
		return nil, http.ErrBodyReadAfterClose
	}
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

func sleepCtx(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
