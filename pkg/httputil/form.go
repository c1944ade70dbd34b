package httputil

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/form/v4"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
)

// Layouts accepted for time fields in forms; datetime-local inputs post the middle two.
// Zone-less layouts are read in the merchant's time zone.
var formTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// items[0][product_id] is rewritten to the items[0].product_id form the decoder expects
var bracketField = regexp.MustCompile(`^([a-z0-9_]+\[\d+\])\[([a-z0-9_]+)\]$`)

// one decoder per time zone, since custom type funcs are registered per decoder
var formDecoders sync.Map

func formDecoder(loc *time.Location) *form.Decoder {
	if d, ok := formDecoders.Load(loc.String()); ok {
		return d.(*form.Decoder)
	}

	d := form.NewDecoder()
	d.SetTagName("json")
	d.SetMaxArraySize(500)
	d.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		return parseFormTime(vals[0], loc)
	}, time.Time{})
	// Checkboxes post "on"
	d.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		s := strings.TrimSpace(vals[0])
		if s == "on" {
			return true, nil
		}
		return strconv.ParseBool(s)
	}, false)

	actual, _ := formDecoders.LoadOrStore(loc.String(), d)
	return actual.(*form.Decoder)
}

// RequestLocation is the time zone of the merchant the request is scoped to, UTC otherwise
func RequestLocation(r *http.Request) *time.Location {
	m, err := tenant.FromContext(r.Context())
	if err != nil {
		return time.UTC
	}
	return m.Location()
}

// IsFormRequest reports whether the request carries an HTML form body
func IsFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}

// DecodeForm decodes a form post into a struct using its json tags as field names.
// Blank fields are skipped so optional pointers stay nil.
func DecodeForm(r *http.Request, v interface{}) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return errors.BadRequest("invalid form body")
		}
	} else if err := r.ParseForm(); err != nil {
		return errors.BadRequest("invalid form body")
	}

	if err := formDecoder(RequestLocation(r)).Decode(v, normalizeForm(r.PostForm)); err != nil {
		return errors.BadRequest(formErrorMessage(err))
	}
	return nil
}

func normalizeForm(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vals := range values {
		kept := make([]string, 0, len(vals))
		for _, v := range vals {
			if strings.TrimSpace(v) != "" {
				kept = append(kept, strings.TrimSpace(v))
			}
		}
		if len(kept) == 0 {
			continue
		}
		if m := bracketField.FindStringSubmatch(key); m != nil {
			key = m[1] + "." + m[2]
		}
		out[key] = kept
	}
	return out
}

func formErrorMessage(err error) string {
	if errs, ok := err.(form.DecodeErrors); ok {
		for field := range errs {
			return fmt.Sprintf("invalid value for %s", field)
		}
	}
	return "invalid form body"
}

func parseFormTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range formTimeLayouts[1:] {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

// QueryTime reads an optional time query parameter in any of the form layouts.
// A missing parameter yields the zero time.
func QueryTime(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := parseFormTime(raw, RequestLocation(r))
	if err != nil {
		return time.Time{}, errors.Validation(map[string]string{key: "invalid time"})
	}
	return t, nil
}
