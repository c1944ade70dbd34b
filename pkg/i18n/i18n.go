package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed messages/*.json
var messagesFS embed.FS

const (
	LocaleEnglish    = "en"
	LocalePortuguese = "pt"
	DefaultLocale    = LocaleEnglish
)

type localeKey struct{}

var supportedLocales = []string{LocaleEnglish, LocalePortuguese}

// catalog maps dotted keys such as errors.queue_closed to message templates
type catalog map[string]string

var catalogs = sync.OnceValue(func() map[string]catalog {
	out := make(map[string]catalog, len(supportedLocales))
	for _, locale := range supportedLocales {
		c, err := loadCatalog(locale)
		if err != nil {
			panic(err)
		}
		out[locale] = c
	}
	return out
})

func loadCatalog(locale string) (catalog, error) {
	data, err := messagesFS.ReadFile("messages/" + locale + ".json")
	if err != nil {
		return nil, fmt.Errorf("read %s messages: %w", locale, err)
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse %s messages: %w", locale, err)
	}
	c := catalog{}
	c.flatten("", tree)
	return c, nil
}

func (c catalog) flatten(prefix string, tree map[string]interface{}) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case string:
			c[key] = v
		case map[string]interface{}:
			c.flatten(key, v)
		}
	}
}

// Localizer translates keys for one locale, falling back to English
type Localizer struct {
	locale   string
	messages catalog
}

// NewLocalizer returns a localizer for locale; unsupported locales get English
func NewLocalizer(locale string) *Localizer {
	if !IsSupported(locale) {
		locale = DefaultLocale
	}
	return &Localizer{locale: locale, messages: catalogs()[locale]}
}

// LocalizerFromContext uses the locale set by Middleware
func LocalizerFromContext(ctx context.Context) *Localizer {
	return NewLocalizer(GetLocaleFromContext(ctx))
}

// Locale is the locale actually used after fallback
func (l *Localizer) Locale() string {
	return l.locale
}

// T returns the message for key with {name} placeholders filled from params.
// Unknown keys are returned as is.
func (l *Localizer) T(key string, params ...map[string]string) string {
	msg, ok := l.messages[key]
	if !ok {
		if msg, ok = catalogs()[DefaultLocale][key]; !ok {
			return key
		}
	}
	if len(params) == 0 || len(params[0]) == 0 {
		return msg
	}

	pairs := make([]string, 0, 2*len(params[0]))
	for name, value := range params[0] {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// WithLocale stores locale in ctx
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// GetLocaleFromContext returns the request locale, DefaultLocale when unset
func GetLocaleFromContext(ctx context.Context) string {
	if locale, ok := ctx.Value(localeKey{}).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

// IsSupported reports whether messages exist for locale
func IsSupported(locale string) bool {
	for _, l := range supportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

// ParseAcceptLanguage returns the first supported language in an Accept-Language header.
// Region subtags are ignored, so pt-BR and pt-PT both select Portuguese.
func ParseAcceptLanguage(header string) string {
	for _, part := range strings.Split(strings.ToLower(header), ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		tag, _, _ = strings.Cut(tag, "-")
		if IsSupported(tag) {
			return tag
		}
	}
	return DefaultLocale
}

// T translates with the default locale
func T(key string, params ...map[string]string) string {
	return NewLocalizer(DefaultLocale).T(key, params...)
}

// TFromContext translates with the request locale
func TFromContext(ctx context.Context, key string, params ...map[string]string) string {
	return LocalizerFromContext(ctx).T(key, params...)
}
