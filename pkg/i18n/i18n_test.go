package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAcceptLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", LocaleEnglish},
		{"pt-BR,pt;q=0.9,en;q=0.8", LocalePortuguese},
		{"en-US,en;q=0.9,pt;q=0.5", LocaleEnglish},
		{"fr-FR,pt;q=0.7", LocalePortuguese},
		{"de-DE", LocaleEnglish},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAcceptLanguage(tt.header))
		})
	}
}

func TestLocalizer_T(t *testing.T) {
	en := NewLocalizer(LocaleEnglish)
	pt := NewLocalizer(LocalePortuguese)

	assert.Equal(t, "This queue is closed right now", en.T("errors.queue_closed"))
	assert.Equal(t, "Esta fila está fechada no momento", pt.T("errors.queue_closed"))
	assert.Equal(t, "Cannot change status from pending to ready",
		en.T("errors.invalid_transition", map[string]string{"from": "pending", "to": "ready"}))
	assert.Equal(t, "missing.key", en.T("missing.key"))
}

func TestNewLocalizer_UnsupportedFallsBack(t *testing.T) {
	params := map[string]string{"from": "pending", "to": "ready"}
	assert.Equal(t, NewLocalizer(DefaultLocale).T("errors.invalid_transition", params),
		NewLocalizer("de").T("errors.invalid_transition", params))
}

func TestCatalogs_PortugueseCoversEveryEnglishKey(t *testing.T) {
	en := catalogs()[LocaleEnglish]
	pt := catalogs()[LocalePortuguese]

	assert.NotEmpty(t, en)
	for key := range en {
		assert.Contains(t, pt, key)
	}
}

func TestLocalizer_FallsBackToEnglishPerKey(t *testing.T) {
	l := &Localizer{locale: LocalePortuguese, messages: catalog{}}

	assert.Equal(t, "This queue is closed right now", l.T("errors.queue_closed"))
	assert.Equal(t, LocalePortuguese, l.Locale())
	assert.Equal(t, LocaleEnglish, NewLocalizer("fr").Locale())
}

func TestLocalizer_ParamsAreNotReexpanded(t *testing.T) {
	got := NewLocalizer(LocaleEnglish).T("errors.invalid_transition",
		map[string]string{"from": "{to}", "to": "ready"})

	assert.Equal(t, "Cannot change status from {to} to ready", got)
}

func TestMiddleware_SetsLocale(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetLocaleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "pt-BR")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, LocalePortuguese, got)
	assert.Equal(t, DefaultLocale, GetLocaleFromContext(context.Background()))
}

func TestMiddleware_QueryOverridesHeaderAndSetsCookie(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetLocaleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/p/token/menu?lang=pt_BR", nil)
	req.Header.Set("Accept-Language", "en-US")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, LocalePortuguese, got)
	cookies := rr.Result().Cookies()
	if assert.Len(t, cookies, 1) {
		assert.Equal(t, CookieName, cookies[0].Name)
		assert.Equal(t, LocalePortuguese, cookies[0].Value)
	}
}

func TestMiddleware_CookieBeatsHeader(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetLocaleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/?lang=fr", nil)
	req.Header.Set("Accept-Language", "en")
	req.AddCookie(&http.Cookie{Name: CookieName, Value: LocalePortuguese})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, LocalePortuguese, got)
	assert.Empty(t, rr.Result().Cookies())
}
