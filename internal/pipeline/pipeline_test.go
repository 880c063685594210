package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusServer(t *testing.T, status int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"error": "nope"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPipeline_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		json.NewEncoder(w).Encode(map[string]string{"id": "user-1"})
	}))
	defer srv.Close()

	p := New(srv.URL, srv.Client(), BearerToken(TokenFunc(func() string { return "tok1" })), RequestID())

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, p.Do(context.Background(), http.MethodGet, "/auth/me", nil, &out))

	assert.Equal(t, "Bearer tok1", gotAuth)
	assert.Len(t, gotRequestID, 26, "request id should be a ULID")
	assert.Equal(t, "user-1", out.ID)
}

func TestPipeline_OmitsHeaderWithoutToken(t *testing.T) {
	sawHeader := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["Authorization"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := New(srv.URL, srv.Client(), BearerToken(TokenFunc(func() string { return "" })))
	require.NoError(t, p.Do(context.Background(), http.MethodGet, "/stores", nil, nil))
	assert.False(t, sawHeader)
}

func TestPipeline_MiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Doer) Doer {
			return DoerFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.Do(req)
			})
		}
	}

	srv := statusServer(t, http.StatusOK, nil)
	p := New(srv.URL, srv.Client(), mw("outer"), mw("inner"))
	require.NoError(t, p.Do(context.Background(), http.MethodGet, "/", nil, nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestPipeline_IndependentInstances(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	a := New(srv.URL, srv.Client(), BearerToken(TokenFunc(func() string { return "a" })))
	b := New(srv.URL, srv.Client())

	require.NoError(t, a.Do(context.Background(), http.MethodGet, "/", nil, nil))
	require.NoError(t, b.Do(context.Background(), http.MethodGet, "/", nil, nil))
	assert.Equal(t, []string{"Bearer a", ""}, seen)
}

func TestPipeline_Classification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		kind       Kind
		permission bool
	}{
		{"unauthorized", http.StatusUnauthorized, KindAuthentication, false},
		{"forbidden", http.StatusForbidden, KindAuthorization, true},
		{"not found", http.StatusNotFound, KindStatus, false},
		{"server error", http.StatusInternalServerError, KindStatus, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := statusServer(t, tt.status, nil)
			p := New(srv.URL, srv.Client())

			err := p.Do(context.Background(), http.MethodGet, "/auth/me", nil, nil)
			require.Error(t, err)

			pe, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.permission, pe.IsPermissionError)
			assert.Equal(t, tt.permission, IsPermissionError(err))
			assert.Equal(t, `{"error": "nope"}`, pe.Body)
		})
	}
}

func TestPipeline_TransportError(t *testing.T) {
	srv := statusServer(t, http.StatusOK, nil)
	url := srv.URL
	srv.Close()

	p := New(url, nil)
	err := p.Do(context.Background(), http.MethodGet, "/auth/me", nil, nil)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.False(t, IsPermissionError(err))
	assert.True(t, ShouldRetry(err))
}

func TestRetry_NoRetryOn403(t *testing.T) {
	var hits atomic.Int32
	srv := statusServer(t, http.StatusForbidden, &hits)
	p := New(srv.URL, srv.Client())

	err := Retry(context.Background(), DefaultRetryPolicy, zerolog.Nop(), func(ctx context.Context) error {
		return p.Do(ctx, http.MethodGet, "/stores/s1/products", nil, nil)
	})

	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load(), "a 403 must not be retried")
	assert.True(t, IsPermissionError(err))
}

func TestRetry_NoRetryOn401(t *testing.T) {
	var hits atomic.Int32
	srv := statusServer(t, http.StatusUnauthorized, &hits)
	p := New(srv.URL, srv.Client())

	err := Retry(context.Background(), DefaultRetryPolicy, zerolog.Nop(), func(ctx context.Context) error {
		return p.Do(ctx, http.MethodGet, "/auth/me", nil, nil)
	})

	assert.True(t, IsAuthenticationError(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetry_RetriesTransportErrors(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Backoff: func(int) time.Duration { return time.Millisecond }}
	transient := &Error{Kind: KindTransport, Err: errors.New("connection reset")}

	calls := 0
	err := Retry(context.Background(), policy, zerolog.Nop(), func(context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), policy, zerolog.Nop(), func(context.Context) error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls, "retries stay bounded")
}

func TestRetry_LogsFinalFailureAsGivingUp(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Backoff: func(int) time.Duration { return time.Millisecond }}
	transient := &Error{Kind: KindTransport, Err: errors.New("connection refused")}

	var buf bytes.Buffer
	err := Retry(context.Background(), policy, zerolog.New(&buf), func(context.Context) error {
		return transient
	})
	require.ErrorIs(t, err, transient)

	var msgs []string
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var line struct {
			Message string `json:"message"`
		}
		require.NoError(t, dec.Decode(&line))
		msgs = append(msgs, line.Message)
	}
	assert.Equal(t, []string{
		"Transient gateway failure, retrying",
		"Transient gateway failure, retrying",
		"Gateway call failed, giving up",
	}, msgs)
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, Backoff: func(int) time.Duration { return time.Hour }}

	calls := 0
	err := Retry(ctx, policy, zerolog.Nop(), func(context.Context) error {
		calls++
		cancel()
		return &Error{Kind: KindTransport, Err: errors.New("timeout")}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, b(1))
	assert.Equal(t, 200*time.Millisecond, b(2))
	assert.Equal(t, 400*time.Millisecond, b(3))
}
