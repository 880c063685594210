package pipeline

import (
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	bearerPrefix    = "Bearer "
	requestIDHeader = "X-Request-ID"
)

// Doer sends a single HTTP request
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware wraps a Doer. The first middleware passed to New is the outermost.
type Middleware func(next Doer) Doer

// TokenSource yields the current bearer token, or "" when unauthenticated
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

func (f TokenFunc) Token() string {
	return f()
}

// BearerToken attaches the Authorization header when src has a token.
// Requests without a token pass through unchanged.
func BearerToken(src TokenSource) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if tok := src.Token(); tok != "" {
				req.Header.Set("Authorization", bearerPrefix+tok)
			}
			return next.Do(req)
		})
	}
}

// RequestID tags every request with a fresh ULID unless one is already set
func RequestID() Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(requestIDHeader) == "" {
				req.Header.Set(requestIDHeader, ulid.Make().String())
			}
			return next.Do(req)
		})
	}
}

// Logging records each call. Permission denials are expected and stay at debug.
func Logging(log zerolog.Logger) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.Do(req)
			duration := time.Since(start)

			if err != nil {
				log.Warn().
					Err(err).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Dur("duration", duration).
					Msg("Gateway request failed")
				return resp, err
			}

			event := log.Debug()
			if resp.StatusCode >= http.StatusInternalServerError {
				event = log.Warn()
			}
			event.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", resp.StatusCode).
				Dur("duration", duration).
				Str("request_id", req.Header.Get(requestIDHeader)).
				Msg("Gateway request")
			return resp, err
		})
	}
}
