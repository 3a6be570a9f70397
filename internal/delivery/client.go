// Package delivery sends single requests to the Telegram Bot API with bounded
// retries and backoff. It classifies transport and HTTP errors as retryable or
// fatal and always returns a structured Result, never a panic or a raw
// transport error: the pipeline must be able to carry on when a reply cannot
// be delivered.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"botfleet/internal/metrics"
)

// Class is the final classification of a delivery outcome.
type Class string

const (
	ClassNone        Class = ""             // success
	ClassNetTimeout  Class = "net_timeout"  // connect/read timeout
	ClassRateLimited Class = "rate_limited" // HTTP 429
	ClassServer      Class = "server_error" // HTTP 5xx
	ClassFatal       Class = "fatal"        // HTTP 4xx other than 429, bad payload
	ClassUnknown     Class = "unknown"      // anything else, retried with linear backoff
)

func (c Class) Retryable() bool {
	switch c {
	case ClassNetTimeout, ClassRateLimited, ClassServer, ClassUnknown:
		return true
	}
	return false
}

const slowCallThreshold = 5 * time.Second

// Backoff after network timeouts and 5xx responses, indexed by attempt number
// and clamped to the last value.
var netBackoff = []time.Duration{
	2 * time.Second,
	3 * time.Second,
	5 * time.Second,
	8 * time.Second,
	13 * time.Second,
}

type Config struct {
	BaseURL        string
	TotalTimeout   time.Duration // wall-clock budget for one Deliver call
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxAttempts    int // total, including the first
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://api.telegram.org",
		TotalTimeout:   180 * time.Second,
		ConnectTimeout: 15 * time.Second,
		ReadTimeout:    60 * time.Second,
		MaxAttempts:    6,
	}
}

// Request is one logical outbound call. Method is the Bot API method name
// (sendMessage, answerCallbackQuery, answerPreCheckoutQuery); Payload is the
// matching params struct. MaxAttempts overrides the client default when >0,
// which the payment pre-check uses to forbid retries entirely.
type Request struct {
	Token       string
	Method      string
	Payload     interface{}
	MaxAttempts int
}

// Result is the structured outcome of a Deliver call. OK is false either when
// the request failed fatally or when the retry budget was exhausted; Err then
// carries the last underlying error.
type Result struct {
	OK         bool
	Class      Class
	StatusCode int
	Body       []byte
	Attempts   int
	Elapsed    time.Duration
	Err        error

	// Server-provided retry hint from a 429 response, honored by the
	// backoff computation.
	retryAfterHint time.Duration
}

func (r Result) retryAfter() time.Duration { return r.retryAfterHint }

type Client struct {
	cfg  Config
	http *http.Client

	// sleep is swapped out by tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = DefaultConfig().TotalTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultConfig().ReadTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Transport: transport},
		sleep: func(ctx context.Context, d time.Duration) bool {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return false
			case <-timer.C:
				return true
			}
		},
	}
}

// Deliver sends one request within the configured wall-clock budget, retrying
// transient failures per the backoff policy. It never mutates anything beyond
// the network call itself.
func (c *Client) Deliver(ctx context.Context, req Request) Result {
	start := time.Now()

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = c.cfg.MaxAttempts
	}

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return Result{
			Class:   ClassFatal,
			Elapsed: time.Since(start),
			Err:     fmt.Errorf("failed to marshal payload: %w", err),
		}
	}

	// One idempotence key for the whole logical call, so platform-side
	// dedup can collapse our own retries.
	idemKey := uuid.New().String()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.TotalTimeout)
	defer cancel()

	var res Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		metrics.DeliveryAttemptsTotal.WithLabelValues(req.Method).Inc()
		if attempt > 1 {
			metrics.DeliveryRetriesTotal.WithLabelValues(req.Method).Inc()
			log.Printf("Delivery retry method=%s attempt=%d class=%s", req.Method, attempt, res.Class)
		}

		attemptStart := time.Now()
		res = c.attempt(ctx, req, body, idemKey)
		res.Attempts = attempt
		res.Elapsed = time.Since(start)

		if d := time.Since(attemptStart); d > slowCallThreshold {
			metrics.DeliverySlowTotal.Inc()
			log.Printf("Slow delivery method=%s attempt=%d took=%s", req.Method, attempt, d)
		}

		if res.OK || res.Class == ClassFatal {
			break
		}
		if attempt == maxAttempts {
			break
		}
		// Wall clock exhausted: report as timeout instead of burning
		// further attempts against a dead context.
		if ctx.Err() != nil {
			res.Class = ClassNetTimeout
			res.Err = fmt.Errorf("delivery budget exhausted: %w", ctx.Err())
			break
		}

		delay := backoffDelay(res.Class, attempt, res.retryAfter())
		if !c.sleep(ctx, delay) {
			res.Class = ClassNetTimeout
			res.Err = fmt.Errorf("delivery budget exhausted: %w", ctx.Err())
			break
		}
	}

	metrics.DeliveryDuration.WithLabelValues(req.Method).Observe(res.Elapsed.Seconds())
	if !res.OK {
		metrics.DeliveryFailuresTotal.WithLabelValues(string(res.Class)).Inc()
		log.Printf("Delivery failed method=%s class=%s status=%d attempts=%d elapsed=%s err=%v",
			req.Method, res.Class, res.StatusCode, res.Attempts, res.Elapsed, res.Err)
	}
	return res
}

func (c *Client) attempt(ctx context.Context, req Request, body []byte, idemKey string) Result {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout+c.cfg.ReadTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/bot%s/%s", c.cfg.BaseURL, req.Token, req.Method)
	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Class: ClassFatal, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", idemKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{Class: classifyTransportError(err), Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{
			Class:      classifyTransportError(err),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	res := Result{StatusCode: resp.StatusCode, Body: respBody}
	switch {
	case resp.StatusCode < 400:
		res.OK = true
	case resp.StatusCode == http.StatusTooManyRequests:
		res.Class = ClassRateLimited
		res.Err = fmt.Errorf("rate limited: %s", string(respBody))
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				res.retryAfterHint = time.Duration(secs) * time.Second
			}
		}
	case resp.StatusCode >= 500:
		res.Class = ClassServer
		res.Err = fmt.Errorf("api error: %s (status: %d)", string(respBody), resp.StatusCode)
	default:
		// Other 4xx means a permanent request defect (bad payload,
		// already-answered interaction); retrying cannot help.
		res.Class = ClassFatal
		res.Err = fmt.Errorf("api error: %s (status: %d)", string(respBody), resp.StatusCode)
	}
	return res
}

func classifyTransportError(err error) Class {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassNetTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassNetTimeout
	}
	return ClassUnknown
}

func backoffDelay(class Class, attempt int, retryAfter time.Duration) time.Duration {
	switch class {
	case ClassRateLimited:
		if retryAfter > 0 {
			return retryAfter
		}
		return time.Duration(10+5*attempt) * time.Second
	case ClassNetTimeout, ClassServer:
		i := attempt - 1
		if i >= len(netBackoff) {
			i = len(netBackoff) - 1
		}
		return netBackoff[i]
	default:
		return time.Duration(attempt) * 500 * time.Millisecond
	}
}
