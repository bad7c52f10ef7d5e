package hmacauth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedVerifier(now time.Time) *Verifier {
	return &Verifier{
		Secret:  "secret",
		MaxSkew: time.Minute,
		Now: func() time.Time {
			return now
		},
	}
}

func TestMiddleware_AllowsValidSignatureAndPreservesBody(t *testing.T) {
	body := `{"amount":3}`
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)

	req := httptest.NewRequest(http.MethodPost, "/increment-by", strings.NewReader(body))
	req.Header.Set(DefaultSignatureHeader, Sign("secret", ts, []byte(body)))
	req.Header.Set(DefaultTimestampHeader, ts)
	rec := httptest.NewRecorder()

	var seen string
	fixedVerifier(now).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		seen = string(raw)
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, seen)
}

func TestMiddleware_Rejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	stale := strconv.FormatInt(now.Add(-2*time.Minute).Unix(), 10)

	tests := []struct {
		name    string
		sig, ts string
		want    error
	}{
		{name: "missing signature", ts: ts, want: ErrMissingSignature},
		{name: "missing timestamp", sig: "deadbeef", want: ErrMissingTimestamp},
		{name: "stale", sig: Sign("secret", stale, nil), ts: stale, want: ErrStaleTimestamp},
		{name: "wrong signature", sig: "deadbeef", ts: ts, want: ErrInvalidSignature},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/increment", nil)
			if tc.sig != "" {
				req.Header.Set(DefaultSignatureHeader, tc.sig)
			}
			if tc.ts != "" {
				req.Header.Set(DefaultTimestampHeader, tc.ts)
			}
			rec := httptest.NewRecorder()

			var rejected error
			v := fixedVerifier(now)
			v.Reject = func(w http.ResponseWriter, err error) {
				rejected = err
				w.WriteHeader(http.StatusUnauthorized)
			}
			v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			})).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.ErrorIs(t, rejected, tc.want)
		})
	}
}

func TestMiddleware_DisabledWithoutSecret(t *testing.T) {
	v := &Verifier{}
	assert.False(t, v.Enabled())

	rec := httptest.NewRecorder()
	v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/increment", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
