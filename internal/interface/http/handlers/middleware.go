package handlers

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// AdminKeyAuth guards admin endpoints with a shared key passed in a header.
// Only bcrypt hashes of the accepted keys live in configuration; the
// plaintext key exists only in the operator's hands.
type AdminKeyAuth struct {
	headerName string
	hashes     [][]byte
}

// NewAdminKeyAuth creates the guard. Each entry in hashes is a bcrypt hash
// of an accepted admin key.
func NewAdminKeyAuth(headerName string, hashes []string) *AdminKeyAuth {
	a := &AdminKeyAuth{headerName: headerName}
	for _, h := range hashes {
		if h != "" {
			a.hashes = append(a.hashes, []byte(h))
		}
	}
	return a
}

// Authorize reports whether the presented key matches any configured hash.
func (a *AdminKeyAuth) Authorize(key string) bool {
	if key == "" || len(a.hashes) == 0 {
		return false
	}
	// Every hash is checked even after a match so the comparison count
	// does not leak which key slot matched.
	authorized := false
	for _, hash := range a.hashes {
		if bcrypt.CompareHashAndPassword(hash, []byte(key)) == nil {
			authorized = true
		}
	}
	return authorized
}

// Middleware rejects requests that do not carry an accepted admin key.
func (a *AdminKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Authorize(r.Header.Get(a.headerName)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"forbidden","message":"Admin key required"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// GENERIC MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware sets standard security headers on every response.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// RequestSizeLimitMiddleware caps the request body at maxBytes. Answers are
// small JSON values; anything larger is noise or abuse.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middleware in order: the first element wraps outermost.
func Chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
