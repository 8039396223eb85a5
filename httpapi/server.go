package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/authmint/authmint"
	"github.com/authmint/authmint/middleware"
)

const defaultRefreshCookie = "refresh_token"

// Options tunes the HTTP surface. The zero value serves tokens in JSON
// bodies only, with no logging.
type Options struct {
	// UseCookies moves the refresh token out of response bodies into an
	// httpOnly strict-same-site cookie, and reads it back from there.
	UseCookies bool

	// CookieName overrides the refresh cookie name. Defaults to
	// "refresh_token".
	CookieName string

	// CookiePath scopes the refresh cookie. Defaults to "/".
	CookiePath string

	// Secure marks cookies as HTTPS-only. Leave false only for local
	// development.
	Secure bool

	// RefreshTTL bounds the refresh cookie lifetime. Should match the
	// engine's refresh TTL.
	RefreshTTL time.Duration

	// Logf, when set, receives one line per internal (5xx) failure.
	Logf func(format string, args ...any)
}

// Handler is the HTTP surface over an engine.
type Handler struct {
	engine *authmint.Engine
	opts   Options
}

// New builds the handler set for the given engine.
func New(engine *authmint.Engine, opts Options) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = defaultRefreshCookie
	}
	if opts.CookiePath == "" {
		opts.CookiePath = "/"
	}
	return &Handler{engine: engine, opts: opts}
}

// Mux returns a ServeMux with all routes registered:
//
//	POST /login
//	POST /refresh
//	POST /logout
//	POST /register
//	GET  /me
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /login", h.secured(http.HandlerFunc(h.Login)))
	mux.Handle("POST /refresh", h.secured(http.HandlerFunc(h.Refresh)))
	mux.Handle("POST /logout", h.secured(http.HandlerFunc(h.Logout)))
	mux.Handle("POST /register", h.secured(http.HandlerFunc(h.Register)))
	mux.Handle("GET /me", h.secured(middleware.Guard(h.engine)(http.HandlerFunc(h.Me))))
	return mux
}

func (h *Handler) secured(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "DENY")
		hdr.Set("Referrer-Policy", "same-origin")
		hdr.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Login authenticates an email/password pair and returns a token pair.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	pair, err := h.engine.Login(requestContext(r), body.Email, body.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.writeTokenPair(w, pair)
}

// Refresh rotates a refresh token and returns the new pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := h.refreshTokenFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	pair, err := h.engine.Refresh(requestContext(r), token)
	if err != nil {
		if h.opts.UseCookies && isAuthFailure(err) {
			h.clearRefreshCookie(w)
		}
		h.writeAuthError(w, err)
		return
	}

	h.writeTokenPair(w, pair)
}

// Logout revokes the presented refresh credential. Responds 204 whether or
// not the token named anything revocable; only store outages surface.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := h.refreshTokenFromRequest(r)

	err := h.engine.Logout(requestContext(r), token)
	if h.opts.UseCookies {
		h.clearRefreshCookie(w)
	}
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Register creates an account. Duplicates return 409, policy failures 400.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}

	res, err := h.engine.Register(requestContext(r), authmint.RegisterRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, authmint.ErrAccountExists):
			writeError(w, http.StatusConflict, "account_exists")
		case errors.Is(err, authmint.ErrPasswordPolicy):
			writeError(w, http.StatusBadRequest, "password_policy")
		default:
			h.internalError(w, "register", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"account_id": res.AccountID,
		"email":      res.Email,
	})
}

// Me reports the identity of the validated access token. Must sit behind
// [middleware.Guard].
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": res.AccountID,
		"expires_at": res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) writeTokenPair(w http.ResponseWriter, pair *authmint.TokenPair) {
	body := tokenBody{AccessToken: pair.AccessToken}

	if h.opts.UseCookies {
		h.setRefreshCookie(w, pair.RefreshToken)
	} else {
		body.RefreshToken = pair.RefreshToken
	}

	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) refreshTokenFromRequest(r *http.Request) (string, bool) {
	if h.opts.UseCookies {
		cookie, err := r.Cookie(h.opts.CookieName)
		if err != nil || cookie.Value == "" {
			return "", false
		}
		return cookie.Value, true
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		return "", false
	}
	return body.RefreshToken, true
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	cookie := &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    token,
		Path:     h.opts.CookiePath,
		HttpOnly: true,
		Secure:   h.opts.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	if h.opts.RefreshTTL > 0 {
		cookie.MaxAge = int(h.opts.RefreshTTL.Seconds())
	}
	http.SetCookie(w, cookie)
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    "",
		Path:     h.opts.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// writeAuthError collapses every authentication failure into one generic
// 401 body. Only availability problems get a distinct status.
func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case isAuthFailure(err):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, authmint.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable")
	default:
		h.internalError(w, "auth", err)
	}
}

func isAuthFailure(err error) bool {
	return errors.Is(err, authmint.ErrInvalidCredentials) ||
		errors.Is(err, authmint.ErrAccountInactive) ||
		errors.Is(err, authmint.ErrRefreshInvalid) ||
		errors.Is(err, authmint.ErrRefreshReuse) ||
		errors.Is(err, authmint.ErrTokenMalformed) ||
		errors.Is(err, authmint.ErrTokenExpired) ||
		errors.Is(err, authmint.ErrSignatureInvalid)
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	if h.opts.Logf != nil {
		h.opts.Logf("httpapi: %s: %v", op, err)
	}
	writeError(w, http.StatusInternalServerError, "internal_error")
}

func requestContext(r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return authmint.WithClientIP(r.Context(), host)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
