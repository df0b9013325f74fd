package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestCompositeHealthChecker_AllHealthy(t *testing.T) {
	checker := NewCompositeHealthChecker(time.Second,
		NewDatabaseCheck(fakePinger{}),
		NewCacheCheck(fakePinger{}),
	)

	status := checker.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Len(t, status.Checks, 2)
	assert.True(t, status.Checks["database"].Healthy)
}

func TestCompositeHealthChecker_CacheDownIsDegradedNotUnready(t *testing.T) {
	checker := NewCompositeHealthChecker(time.Second,
		NewDatabaseCheck(fakePinger{}),
		NewCacheCheck(fakePinger{err: errors.New("connection refused")}),
	)

	status := checker.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.True(t, status.Ready, "cache failure must not fail readiness")
	assert.Equal(t, "connection refused", status.Checks["cache"].Error)
}

func TestCompositeHealthChecker_DatabaseDownIsUnready(t *testing.T) {
	checker := NewCompositeHealthChecker(time.Second,
		NewDatabaseCheck(fakePinger{err: errors.New("dial timeout")}),
	)

	status := checker.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "database unavailable", status.Message)
}

func TestNoopHealthChecker(t *testing.T) {
	status := NoopHealthChecker{}.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
}

func TestAdminKeyAuth_Authorize(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-key"), bcrypt.MinCost)
	require.NoError(t, err)

	auth := NewAdminKeyAuth("X-Admin-Key", []string{string(hash)})

	assert.True(t, auth.Authorize("correct-key"))
	assert.False(t, auth.Authorize("wrong-key"))
	assert.False(t, auth.Authorize(""))
}

func TestAdminKeyAuth_Middleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-key"), bcrypt.MinCost)
	require.NoError(t, err)

	auth := NewAdminKeyAuth("X-Admin-Key", []string{string(hash)})
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	denied := httptest.NewRecorder()
	handler.ServeHTTP(denied, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusForbidden, denied.Code)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Admin-Key", "correct-key")
	granted := httptest.NewRecorder()
	handler.ServeHTTP(granted, req)
	assert.Equal(t, http.StatusOK, granted.Code)
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	handler := RequestSizeLimitMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 100)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mk("outer"), mk("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}
