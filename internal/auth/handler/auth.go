package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/qerbie/qerbie-backend/internal/auth/jwt"
	"github.com/qerbie/qerbie-backend/internal/auth/middleware"
	"github.com/qerbie/qerbie-backend/internal/auth/service"
	"github.com/qerbie/qerbie-backend/pkg/actor"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
)

// refreshCookie carries the refresh token for browser sessions
const refreshCookie = "qerbie_refresh"

// Service is the auth behaviour the handler exposes
type Service interface {
	Signup(ctx context.Context, req *service.SignupRequest) (*service.UserInfo, error)
	Login(ctx context.Context, req *service.LoginRequest, userAgent, ipAddress string) (*service.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID string) (*service.UserInfo, error)
}

// Options configures browser-facing behaviour
type Options struct {
	PublicBaseURL string
	SecureCookies bool
	RefreshExpiry time.Duration
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	service Service
	opts    Options
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc Service, opts Options, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		opts:    opts,
		logger:  log,
	}
}

// Signup handles account creation
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	target := httputil.ActionTarget{BaseURL: h.opts.PublicBaseURL, ReturnPath: "/signup", SuccessPath: "/login?signed_up=1"}

	var req service.SignupRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	user, err := h.service.Signup(r.Context(), &req)
	httputil.RespondAction(w, r, target, http.StatusCreated, user, err)
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	target := httputil.ActionTarget{BaseURL: h.opts.PublicBaseURL, ReturnPath: "/login", SuccessPath: "/dashboard"}

	var req service.LoginRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	response, err := h.service.Login(r.Context(), &req, r.UserAgent(), httputil.ClientIP(r))
	if err == nil {
		h.setCookies(w, response.AccessToken, response.ExpiresAt, response.RefreshToken)
	}
	httputil.RespondAction(w, r, target, http.StatusOK, response, err)
}

// Logout handles user logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// A missing body is fine: browser sessions carry the token in a cookie
	_ = httputil.DecodeRequest(r, &req)
	if req.RefreshToken == "" {
		if c, err := r.Cookie(refreshCookie); err == nil {
			req.RefreshToken = c.Value
		}
	}

	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		h.logger.Warn().Err(err).Msg("logout error")
	}
	h.clearCookies(w)

	if httputil.IsFormRequest(r) {
		http.Redirect(w, r, h.opts.PublicBaseURL+"/login", http.StatusSeeOther)
		return
	}
	httputil.NoContent(w)
}

// Refresh handles token refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := httputil.DecodeRequest(r, &req); err != nil && r.ContentLength > 0 {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		if c, err := r.Cookie(refreshCookie); err == nil {
			req.RefreshToken = c.Value
		}
	}
	if req.RefreshToken == "" {
		httputil.ErrorLocalized(w, r, errors.Validation(map[string]string{"refresh_token": "this field is required"}))
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	h.setCookies(w, tokens.AccessToken, tokens.ExpiresAt, tokens.RefreshToken)
	httputil.JSON(w, http.StatusOK, tokens)
}

// Me returns the current user's information
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	a := actor.FromContext(r.Context())
	if a == nil {
		httputil.ErrorLocalized(w, r, errors.Unauthorized("not authenticated"))
		return
	}

	user, err := h.service.Me(r.Context(), a.ID)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setCookies(w http.ResponseWriter, access string, accessExpiry time.Time, refresh string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessCookie,
		Value:    access,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    refresh,
		Path:     "/api/v1/auth",
		MaxAge:   int(h.opts.RefreshExpiry.Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearCookies(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{middleware.AccessCookie, "/"},
		{refreshCookie, "/api/v1/auth"},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.opts.SecureCookies,
		})
	}
}
