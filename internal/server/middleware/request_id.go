package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

// RequestID ensures every request carries an X-Request-Id: an incoming value
// is kept, otherwise a random 32-char hex id is generated. The id is set on
// both the request and response headers so the logging middleware and error
// responses can pick it up.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = genID()
				r.Header.Set("X-Request-Id", id)
			}
			w.Header().Set("X-Request-Id", id)
			next.ServeHTTP(w, r)
		})
	}
}

func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
