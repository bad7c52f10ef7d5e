package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterPerKey(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Unix(1_700_000_000, 0)

	assert.True(t, l.Allow("10.0.0.1", now))
	assert.True(t, l.Allow("10.0.0.1", now))
	assert.False(t, l.Allow("10.0.0.1", now))
	assert.True(t, l.Allow("10.0.0.2", now), "other clients keep their own bucket")
	assert.True(t, l.Allow("10.0.0.1", now.Add(time.Second)), "bucket refills")
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter = New(0, 1, 0)
	assert.Nil(t, l)
	assert.True(t, l.Allow("anyone", time.Now()))
}

func TestMiddleware(t *testing.T) {
	l := New(0.001, 1, time.Minute)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/increment", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/increment", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
