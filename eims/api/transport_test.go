package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTransport() *RetryingTransport {
	return NewRetryingTransport(TransportConfig{
		MaxAttempts:    3,
		ConnectTimeout: time.Second,
		ReadTimeout:    2 * time.Second,
		RetryWait:      time.Millisecond,
		RetryMaxWait:   5 * time.Millisecond,
	})
}

func TestPost_RetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"irn":"x"}`, string(body))
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"statusCode":200}`))
	}))
	defer srv.Close()

	res, err := testTransport().Post(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer abc"}, []byte(`{"irn":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPost_ExhaustedRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testTransport().Post(context.Background(), srv.URL, nil, []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransientTransport))

	var te *TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPost_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":400,"message":"bad tin"}`))
	}))
	defer srv.Close()

	res, err := testTransport().Post(context.Background(), srv.URL, nil, []byte(`{}`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTransientTransport))

	var re *RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusBadRequest, re.StatusCode)
	assert.Equal(t, "bad tin", re.ErrorDetails["message"])
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPost_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testTransport().Post(context.Background(), srv.URL, nil, []byte(`{}`))
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestPost_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testTransport().Post(context.Background(), url, nil, []byte(`{}`))
	require.Error(t, err)

	var te *TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 3, te.Attempts)
	assert.NotNil(t, te.Cause)
}

func TestIsTransientStatus(t *testing.T) {
	for _, s := range []int{429, 500, 502, 503, 504} {
		assert.True(t, IsTransientStatus(s), s)
	}
	for _, s := range []int{200, 400, 401, 403, 404, 409, 501} {
		assert.False(t, IsTransientStatus(s), s)
	}
}
