package i18n

import (
	"net/http"
	"strings"
	"time"
)

// CookieName remembers a language picked explicitly with ?lang=
const CookieName = "qerbie_lang"

// Middleware puts the request locale in context. Precedence: ?lang= (remembered
// in a cookie), then the cookie, then Accept-Language.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale, explicit := explicitLocale(r)
		if explicit {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    locale,
				Path:     "/",
				MaxAge:   int((365 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		} else if c, err := r.Cookie(CookieName); err == nil && IsSupported(c.Value) {
			locale = c.Value
		} else {
			locale = ParseAcceptLanguage(r.Header.Get("Accept-Language"))
		}

		next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
	})
}

// explicitLocale reads ?lang=pt or ?lang=pt-BR; unsupported values are ignored
func explicitLocale(r *http.Request) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("lang")))
	if idx := strings.IndexAny(v, "-_"); idx >= 0 {
		v = v[:idx]
	}
	if IsSupported(v) {
		return v, true
	}
	return "", false
}
