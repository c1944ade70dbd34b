package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/i18n"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody represents an error in the response
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Meta contains pagination and other metadata
type Meta struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

// maxJSONBody caps request bodies; the largest legitimate payload is an order with its lines
const maxJSONBody = 1 << 20

func write(w http.ResponseWriter, statusCode int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// JSON sends data in the success envelope; Success follows the status code
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{Success: statusCode < 300, Data: data})
}

// JSONWithMeta sends a page of data with its pagination metadata
func JSONWithMeta(w http.ResponseWriter, statusCode int, data interface{}, meta *Meta) {
	write(w, statusCode, Response{Success: statusCode < 300, Data: data, Meta: meta})
}

// Error sends an error in the default language
func Error(w http.ResponseWriter, err error) {
	writeError(w, nil, err)
}

// ErrorLocalized sends an error in the language negotiated for r
func ErrorLocalized(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err)
}

// writeError maps err to its status and body. Errors that are not AppErrors become 500
// without leaking their text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) {
		message := "an unexpected error occurred"
		if r != nil {
			message = i18n.LocalizerFromContext(r.Context()).T("errors.internal")
		}
		write(w, http.StatusInternalServerError, Response{Error: &ErrorBody{Code: "INTERNAL_ERROR", Message: message}})
		return
	}

	message := appErr.Message
	if r != nil {
		message = appErr.Localize(r.Context())
	}
	write(w, appErr.StatusCode, Response{Error: &ErrorBody{
		Code:    appErr.Code,
		Message: message,
		Details: appErr.Details,
	}})
}

// NewMeta builds pagination metadata
func NewMeta(page, perPage int, total int64) *Meta {
	meta := &Meta{Page: page, PerPage: perPage, Total: total}
	if perPage > 0 {
		meta.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return meta
}

// Pagination reads page and per_page query parameters.
// Defaults to page 1 with 20 items; per_page is capped at 100.
func Pagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// DecodeJSON decodes a JSON body of at most 1 MiB into v
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody)).Decode(v); err != nil {
		return errors.BadRequest("invalid JSON body")
	}
	return nil
}

// DecodeRequest decodes either a JSON body or an HTML form post into v
func DecodeRequest(r *http.Request, v interface{}) error {
	if IsFormRequest(r) {
		return DecodeForm(r, v)
	}
	return DecodeJSON(r, v)
}
