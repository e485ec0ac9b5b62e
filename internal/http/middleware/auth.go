package middlewarex

import (
	"crypto/subtle"
	"net/http"

	"storepay/internal/config"

	"github.com/rs/zerolog"
)

// AdminAuth guards the admin console with the X-Admin-Token header. With no
// token configured every request is refused.
func AdminAuth(cfg config.Cfg) func(http.Handler) http.Handler {
	want := []byte(cfg.Sec.AdminToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("X-Admin-Token"))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				zerolog.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("admin request rejected")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
