package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"path"
	"time"

	coreconfig "github.com/m3rciful/catalogbot/core/config"
	"github.com/m3rciful/catalogbot/core/logger"
	"github.com/m3rciful/catalogbot/core/telegram/netutil"
)

const (
	dialTimeout      = 5 * time.Second
	tlsTimeout       = 5 * time.Second
	idleConnTimeout  = 30 * time.Second
	keepAlive        = 30 * time.Second
	minClientTimeout = 30 * time.Second
	// pollSlack covers the server holding a getUpdates call for the full
	// long-poll timeout before answering.
	pollSlack = 10 * time.Second

	retryAttempts = 3
	retryBackoff  = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. Transport
// errors on requests with a replayable body are retried.
func BuildHTTPClient(cfg coreconfig.TelegramConfig) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsTimeout,
	}
	return &http.Client{
		Timeout:   clientTimeout(cfg),
		Transport: &retryTransport{base: transport, attempts: retryAttempts + 1, backoff: retryBackoff},
	}
}

func clientTimeout(cfg coreconfig.TelegramConfig) time.Duration {
	if t := longPollTimeout(cfg) + pollSlack; t > minClientTimeout {
		return t
	}
	return minClientTimeout
}

type retryTransport struct {
	base     http.RoundTripper
	attempts int
	backoff  time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	ctx := req.Context()

	var err error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		r := req
		if attempt > 1 {
			if r, err = rewind(req); err != nil {
				return nil, err
			}
		}
		var resp *http.Response
		if resp, err = base.RoundTrip(r); err == nil {
			return resp, nil
		}
		if !netutil.ShouldRetry(err) || attempt == t.attempts || !replayable(req) {
			break
		}
		delay := t.backoff * time.Duration(attempt)
		logger.Debug(ctx, "tg.http", "http.retry",
			slog.String("method", path.Base(req.URL.Path)),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, err
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	return r, nil
}
