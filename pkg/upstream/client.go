// Package upstream is the single point of contact with the football data API.
// It builds canonical URLs, authenticates per auth mode, counts every
// network-reaching call against the daily ledger and classifies the outcome.
// It performs no budget check and no caching.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/logging"
	"github.com/Sternrassler/footy-gateway/pkg/ratelimit"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Prometheus metrics for upstream calls.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footy_upstream_requests_total",
		Help: "Total upstream requests by endpoint and status",
	}, []string{"endpoint", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "footy_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
	}, []string{"endpoint"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footy_upstream_errors_total",
		Help: "Total upstream failures by kind",
	}, []string{"kind"})
)

// Response is a successful upstream answer.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	// Body is the raw JSON document.
	Body []byte
}

// Client calls the football API.
type Client struct {
	http    *resty.Client
	config  Config
	ledger  usage.Ledger
	holds   *ratelimit.Tracker
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// New creates a client. holds may be nil.
func New(cfg Config, ledger usage.Ledger, holds *ratelimit.Tracker) (*Client, error) {
	if ledger == nil {
		return nil, fmt.Errorf("usage ledger is required")
	}
	mode, err := ParseAuthMode(string(cfg.AuthMode))
	if err != nil {
		return nil, err
	}
	cfg.AuthMode = mode
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger := logging.NewLogger("upstream")

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		http:    resty.New().SetHeader("Accept", "application/json"),
		config:  cfg,
		ledger:  ledger,
		holds:   holds,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}

	if cfg.BreakerFailures > 0 {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "football-upstream",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			// Only transport failures trip the breaker; the upstream answered otherwise.
			IsSuccessful: func(err error) bool {
				return err == nil || KindOf(err) != KindTransport
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state changed")
			},
		})
	}

	return c, nil
}

// Mode returns the configured auth mode.
func (c *Client) Mode() AuthMode {
	return c.config.AuthMode
}

// URL returns the canonical URL for path and params.
func (c *Client) URL(path string, params map[string]string) string {
	return CanonicalURL(c.config.BaseURL(), path, params)
}

// Fetch performs one GET against the upstream.
//
// The call runs detached from ctx cancellation and is bounded by the
// configured timeout, so a disconnecting caller does not abort a call that
// has already been counted.
func (c *Client) Fetch(ctx context.Context, path string, params map[string]string) (*Response, error) {
	endpoint := NormalizePath(path)
	fullURL := c.URL(path, params)

	headers, ok := c.config.authHeaders()
	if !ok {
		return nil, c.fail(endpoint, &UpstreamError{
			Kind:       KindConfiguration,
			StatusCode: http.StatusUnauthorized,
			URL:        fullURL,
			Message:    fmt.Sprintf("missing credential for auth mode %s", c.config.AuthMode),
		})
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(callCtx); err != nil {
		return nil, c.fail(endpoint, &UpstreamError{
			Kind:    KindTransport,
			URL:     fullURL,
			Message: "pacing wait aborted",
			Timeout: errors.Is(err, context.DeadlineExceeded),
			Err:     err,
		})
	}

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	raw, err := c.execute(func() (interface{}, error) {
		u, spent, err := c.ledger.TryIncrement(callCtx, 1)
		if err != nil {
			return nil, fmt.Errorf("count upstream call: %w", err)
		}
		if !spent {
			return nil, fmt.Errorf("%w (%d/%d)", usage.ErrLimitReached, u.Count, u.Limit)
		}

		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("url", fullURL).
			Int64("usage_count", u.Count).
			Msg("Calling upstream")

		resp, err := c.http.R().
			SetContext(callCtx).
			SetHeaders(headers).
			Get(fullURL)
		if err != nil {
			return nil, &UpstreamError{
				Kind:    KindTransport,
				URL:     fullURL,
				Timeout: errors.Is(err, context.DeadlineExceeded),
				Err:     err,
			}
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, usage.ErrLimitReached) {
			c.logger.Debug().Str("endpoint", endpoint).Err(err).Msg("Daily limit reached, call not made")
			return nil, err
		}

		var ue *UpstreamError
		switch {
		case errors.As(err, &ue):
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			ue = &UpstreamError{Kind: KindTransport, URL: fullURL, Message: "circuit breaker open", Err: err}
		default:
			ue = &UpstreamError{Kind: KindTransport, URL: fullURL, Err: err}
		}
		return nil, c.fail(endpoint, ue)
	}

	resp := raw.(*resty.Response)
	status := resp.StatusCode()
	upstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()

	if c.holds != nil {
		if _, err := c.holds.UpdateFromResponse(ctx, status, resp.Header()); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record rate-limit hold")
		}
	}

	if status < 200 || status > 299 {
		return nil, c.fail(endpoint, &UpstreamError{
			Kind:       KindHTTP,
			StatusCode: status,
			URL:        fullURL,
			Message:    http.StatusText(status),
		})
	}

	body := resp.Body()
	if msg, bad := applicationErrors(body); bad {
		return nil, c.fail(endpoint, &UpstreamError{
			Kind:       KindApplication,
			StatusCode: status,
			URL:        fullURL,
			Message:    msg,
		})
	}

	c.logger.Info().
		Str("endpoint", endpoint).
		Int("status", status).
		Dur("duration", time.Since(startTime)).
		Msg("Upstream call succeeded")

	return &Response{
		URL:        fullURL,
		StatusCode: status,
		Header:     resp.Header(),
		Body:       body,
	}, nil
}

func (c *Client) execute(fn func() (interface{}, error)) (interface{}, error) {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

func (c *Client) fail(endpoint string, err *UpstreamError) error {
	upstreamErrorsTotal.WithLabelValues(string(err.Kind)).Inc()
	if err.Kind != KindHTTP {
		upstreamRequestsTotal.WithLabelValues(endpoint, string(err.Kind)).Inc()
	}

	c.logger.Warn().
		Err(err).
		Str("endpoint", endpoint).
		Str("kind", string(err.Kind)).
		Int("status", err.StatusCode).
		Msg("Upstream call failed")

	return err
}

// applicationErrors reports a body that is not JSON or that carries a
// non-empty errors object or array.
func applicationErrors(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return "response is not valid JSON", true
	}
	if trimmed[0] != '{' {
		return "", false
	}

	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return "response is not valid JSON", true
	}

	switch errs := bytes.TrimSpace(envelope.Errors); {
	case len(errs) == 0, bytes.Equal(errs, []byte("null")):
		return "", false
	case errs[0] == '{':
		var m map[string]json.RawMessage
		if json.Unmarshal(errs, &m) == nil && len(m) > 0 {
			return "errors: " + string(errs), true
		}
	case errs[0] == '[':
		var a []json.RawMessage
		if json.Unmarshal(errs, &a) == nil && len(a) > 0 {
			return "errors: " + string(errs), true
		}
	}
	return "", false
}
