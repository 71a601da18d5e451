package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/alapierre/go-eims-client/eims/util"
	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "eims.api")

type TransportConfig struct {
	// MaxAttempts counts the first try, so 3 means at most two retries.
	MaxAttempts int

	// ConnectTimeout bounds dialing and the TLS handshake of one attempt.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for response headers of one attempt.
	ReadTimeout time.Duration

	// RetryWait and RetryMaxWait bound the exponential backoff.
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxAttempts:    3,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    60 * time.Second,
		RetryWait:      500 * time.Millisecond,
		RetryMaxWait:   5 * time.Second,
	}
}

// HTTPResult is the final answer of the registry after retries.
type HTTPResult struct {
	StatusCode int
	Body       []byte
	Attempts   int
}

// RetryingTransport posts JSON to the registry and retries connection
// failures and 429/5xx gateway answers. Safe for concurrent use.
type RetryingTransport struct {
	rest *resty.Client
	cfg  TransportConfig
}

func NewRetryingTransport(cfg TransportConfig) *RetryingTransport {
	def := DefaultTransportConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = def.RetryWait
	}
	if cfg.RetryMaxWait < cfg.RetryWait {
		cfg.RetryMaxWait = cfg.RetryWait
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}

	rest := resty.New().
		SetTransport(transport).
		SetLogger(logger).
		SetRetryCount(cfg.MaxAttempts-1).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(isTransient).
		AddRetryHook(func(resp *resty.Response, err error) {
			if err != nil {
				logger.Warnf("registry call failed: %v, retrying", err)
				return
			}
			logger.Warnf("registry answered %d, retrying", resp.StatusCode())
		})

	if util.HttpTraceEnabled() {
		rest.SetDebug(true)
	}

	return &RetryingTransport{rest: rest, cfg: cfg}
}

// isTransient decides retries; it replaces resty's default so connection
// errors must be reported here too.
func isTransient(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	return IsTransientStatus(resp.StatusCode())
}

func IsTransientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Post sends body as JSON. A transient outcome left after the last attempt is
// returned as *TransientError, any other 4xx/5xx as *RequestError together
// with the result so callers can still read the registry message.
func (t *RetryingTransport) Post(ctx context.Context, url string, headers map[string]string, body []byte) (*HTTPResult, error) {

	r := t.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeaders(headers).
		SetBody(body)

	if util.DebugEnabled() {
		r.EnableTrace()
	}

	resp, err := r.Post(url)

	attempts := r.Attempt
	if attempts == 0 {
		attempts = 1
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "registry call aborted")
		}
		return nil, &TransientError{Attempts: attempts, Cause: err}
	}

	printTraceInfo(url, resp)

	res := &HTTPResult{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Attempts:   attempts,
	}

	if IsTransientStatus(res.StatusCode) {
		return res, &TransientError{Attempts: attempts, StatusCode: res.StatusCode}
	}

	return res, checkError(resp)
}

func checkError(resp *resty.Response) error {
	if resp.IsError() {

		body := resp.String()
		var errorMap map[string]any
		if body != "" {
			_ = json.Unmarshal([]byte(body), &errorMap)
		}

		return &RequestError{
			StatusCode:   resp.StatusCode(),
			Body:         body,
			ErrorDetails: errorMap,
		}
	}
	return nil
}

func printTraceInfo(url string, resp *resty.Response) {

	if !util.DebugEnabled() || resp == nil {
		return
	}

	ti := resp.Request.TraceInfo()
	logger.WithFields(logrus.Fields{
		"url":      url,
		"status":   resp.StatusCode(),
		"time":     resp.Time(),
		"attempt":  ti.RequestAttempt,
		"connTime": ti.ConnTime,
		"server":   ti.ServerTime,
		"total":    ti.TotalTime,
	}).Debug("registry response")
}
