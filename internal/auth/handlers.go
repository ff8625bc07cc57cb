package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// Handler exposes HTTP handlers for authentication and profile endpoints.
// Limit, when set, wraps the register, login and refresh endpoints. When
// RefreshCookieName is set the refresh token also travels in an HttpOnly
// cookie of that name.
type Handler struct {
	Service           *Service
	Limit             func(http.Handler) http.Handler
	RefreshCookieName string
	CookieSecure      bool
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=3"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type profileRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// Routes mounts the auth endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	mw := Middleware{Service: h.Service}
	r.Group(func(r chi.Router) {
		if h.Limit != nil {
			r.Use(h.Limit)
		}
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Put("/me", h.UpdateProfile)
	})
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	session, err := h.Service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.setRefreshCookie(w, session)
	common.Data(w, http.StatusCreated, session)
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	session, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.setRefreshCookie(w, session)
	common.Data(w, http.StatusOK, session)
}

// Refresh handles POST /api/v1/auth/refresh. The token comes from the cookie
// or the JSON body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.refreshTokenFromRequest(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	session, err := h.Service.Refresh(r.Context(), token)
	if err != nil {
		h.clearRefreshCookie(w)
		common.WriteError(w, err)
		return
	}
	h.setRefreshCookie(w, session)
	common.Data(w, http.StatusOK, session)
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	refresh, err := h.refreshTokenFromRequest(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Service.Logout(r.Context(), common.AccessToken(r.Context()), refresh); err != nil {
		common.WriteError(w, err)
		return
	}
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	user, err := h.Service.Me(r.Context(), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/v1/auth/me.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	userID, _ := common.UserID(r.Context())
	user, err := h.Service.UpdateProfile(r.Context(), userID, req.Name, req.Email)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, user)
}

func (h *Handler) refreshTokenFromRequest(r *http.Request) (string, error) {
	if h.RefreshCookieName != "" {
		if cookie, err := r.Cookie(h.RefreshCookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
			return strings.TrimSpace(cookie.Value), nil
		}
	}
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return "", nil
	}
	var req refreshRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		return "", err
	}
	return strings.TrimSpace(req.RefreshToken), nil
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, session Session) {
	if h.RefreshCookieName == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.RefreshCookieName,
		Value:    session.RefreshToken,
		Path:     "/api/v1/auth",
		Expires:  session.RefreshExpiry,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	if h.RefreshCookieName == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.RefreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
