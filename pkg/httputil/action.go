package httputil

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/qerbie/qerbie-backend/pkg/errors"
)

// ActionTarget tells RespondAction where a browser form post should land
type ActionTarget struct {
	// BaseURL is the public site the customer is browsing
	BaseURL string
	// ReturnPath is the page the form lives on; failures redirect here with ?error=<code>
	ReturnPath string
	// SuccessPath is where successful posts go; defaults to ReturnPath
	SuccessPath string
}

// RespondAction finishes a mutating request.
// HTML form posts get a 303 redirect; API clients get the JSON envelope.
func RespondAction(w http.ResponseWriter, r *http.Request, target ActionTarget, status int, data interface{}, err error) {
	if !IsFormRequest(r) {
		if err != nil {
			ErrorLocalized(w, r, err)
			return
		}
		JSON(w, status, data)
		return
	}

	returnPath := target.ReturnPath
	if rt := r.PostFormValue("return_to"); isLocalPath(rt) {
		returnPath = rt
	}

	if err != nil {
		http.Redirect(w, r, withQuery(target.BaseURL+returnPath, "error", errors.CodeOf(err)), http.StatusSeeOther)
		return
	}

	path := target.SuccessPath
	if path == "" {
		path = returnPath
	}
	http.Redirect(w, r, target.BaseURL+path, http.StatusSeeOther)
}

// isLocalPath accepts only site-relative paths so return_to cannot redirect off-site
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}

func withQuery(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
