package quotaengine

import (
	"errors"
	"math"
	"net/http"
	"strconv"
)

// Logger is the interface used for logging inside the engine.
//
// Implement this interface to provide your own logging backend, or use the
// provided zerolog bridge in adapters/zerologadapter.
type Logger interface {
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ErrExceeded is returned to error handlers when a client exceeds the rate
// limit.
//
// Users can use errors.Is(err, quotaengine.ErrExceeded) to detect this
// specific condition.
var ErrExceeded = errors.New("rate limit exceeded")

// KeyFunc defines a function type that extracts a unique identity
// from an HTTP request.
//
// The identity is used to track individual callers for rate limiting. The
// default uses the client's network address, which deliberately means
// anonymous callers behind a shared NAT or proxy share one budget; supply an
// authenticated user ID where one exists.
type KeyFunc func(r *http.Request) (string, error)

// ErrorHandler defines a function type that handles a client request
// after a rate limit is exceeded.
//
// This allows custom responses, e.g., JSON bodies, headers, or logging.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error, result Result)

// Config holds all configurable options for the rate limiter middleware.
//
// Users typically create a Config via NewConfig and provide functional options.
type Config struct {
	KeyFunc      KeyFunc
	ErrorHandler ErrorHandler
	Logger       Logger
}

// Option defines a functional option type for configuring the rate limiter.
//
// Example:
//
//	cfg := NewConfig(
//	    WithLogger(myLogger),
//	    WithKeyFunc(myKeyFunc),
//	)
type Option func(*Config)

// NewConfig creates a Config with default settings, then applies
// any provided functional options.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		KeyFunc: func(r *http.Request) (string, error) {
			return r.RemoteAddr, nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error, result Result) {
			retry := int(math.Ceil(result.RetryAfter.Seconds()))
			if retry <= 0 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		},
		Logger: &noopLogger{},
	}

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithKeyFunc returns an Option to set a custom KeyFunc.
func WithKeyFunc(f KeyFunc) Option {
	return func(c *Config) {
		if f != nil {
			c.KeyFunc = f
		}
	}
}

// WithErrorHandler returns an Option to set a custom ErrorHandler.
func WithErrorHandler(f ErrorHandler) Option {
	return func(c *Config) {
		if f != nil {
			c.ErrorHandler = f
		}
	}
}

// WithLogger returns an Option to set a custom Logger.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// noopLogger is a private default logger that does nothing.
type noopLogger struct{}

func (l *noopLogger) Debugf(format string, args ...interface{}) {}
func (l *noopLogger) Errorf(format string, args ...interface{}) {}
