package httptransport

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminAuthMiddleware is a no-op when adminKey is empty.
func AdminAuthMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey != "" && !CheckAdminAuth(r, adminKey) {
				metricAdminUnauthorizedTotal.Add(1)
				WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckAdminAuth accepts the key in X-Admin-Key or as a bearer token.
func CheckAdminAuth(r *http.Request, adminKey string) bool {
	if keyEqual(r.Header.Get("X-Admin-Key"), adminKey) {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && keyEqual(token, adminKey)
}

func keyEqual(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
