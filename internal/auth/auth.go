// Package auth implements the admin control plane's authenticator: a
// single bootstrap password, argon2id-hashed, checked via HTTP Basic auth.
//
// Grounded on internal/service/identity_service.go's
// argon2id.CreateHash/ComparePasswordAndHash pair, narrowed from per-API-key
// identity auth down to a single shared operator secret, and on
// internal/adapter/inbound/admin/auth_middleware.go's localhost-bypass
// shape.
package auth

import (
	"fmt"
	"net"
	"net/http"

	"github.com/alexedwards/argon2id"
)

// Authenticator guards the admin API with one bootstrap password.
type Authenticator struct {
	hash    string
	devMode bool
}

// New hashes password with argon2id's default parameters. devMode, when
// true, additionally accepts requests from loopback addresses without a
// password, mirroring the teacher's AUTH-01 localhost bypass for local
// development.
func New(password string, devMode bool) (*Authenticator, error) {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &Authenticator{hash: hash, devMode: devMode}, nil
}

// Middleware wraps next, requiring HTTP Basic auth whose password matches
// the configured bootstrap password. The username is ignored.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.devMode && isLoopback(r) {
			next.ServeHTTP(w, r)
			return
		}

		_, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="trustgate-admin"`)
			writeUnauthorized(w)
			return
		}

		match, err := argon2id.ComparePasswordAndHash(password, a.hash)
		if err != nil || !match {
			w.Header().Set("WWW-Authenticate", `Basic realm="trustgate-admin"`)
			writeUnauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

// isLoopback reports whether r originates from a loopback address.
// X-Forwarded-For is intentionally not trusted, since it can be spoofed by
// anything upstream of this process.
func isLoopback(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
