package handlers

import (
	"net/http"
	"time"

	"github.com/isdelr/ender-tasks-be/internal/api/response"
	"github.com/isdelr/ender-tasks-be/internal/auth"
	"github.com/isdelr/ender-tasks-be/internal/services"
)

// UserHandler handles HTTP requests for accounts and sessions.
type UserHandler struct {
	service      services.UserServiceProvider
	secureCookie bool
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

// NewUserHandler creates a new UserHandler. The TTLs set cookie lifetimes to
// match the tokens they carry.
func NewUserHandler(service services.UserServiceProvider, secureCookie bool, accessTTL, refreshTTL time.Duration) *UserHandler {
	return &UserHandler{
		service:      service,
		secureCookie: secureCookie,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
	}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshPayload struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordPayload struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type accountPayload struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	handle(h.register)(w, r)
}

func (h *UserHandler) register(w http.ResponseWriter, r *http.Request) error {
	var payload RegisterPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}

	user, err := h.service.Register(r.Context(), payload.FullName, payload.Email, payload.Password)
	if err != nil {
		return err
	}

	response.JSON(w, http.StatusCreated, user, "user registered successfully")
	return nil
}

// Login authenticates the user and sets both token cookies.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	handle(h.login)(w, r)
}

func (h *UserHandler) login(w http.ResponseWriter, r *http.Request) error {
	var payload AuthPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}

	session, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	h.setTokenCookies(w, session.TokenPair)
	response.JSON(w, http.StatusOK, session, "User logged In Successfully")
	return nil
}

// Logout clears the stored refresh token and both cookies.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	handle(h.logout)(w, r)
}

func (h *UserHandler) logout(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	if err := h.service.Logout(r.Context(), user.ID); err != nil {
		return err
	}

	h.clearTokenCookies(w)
	response.JSON(w, http.StatusOK, nil, "User logged Out")
	return nil
}

// RefreshToken rotates the refresh token. The body is only read when no
// refresh cookie is sent.
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	handle(h.refreshToken)(w, r)
}

func (h *UserHandler) refreshToken(w http.ResponseWriter, r *http.Request) error {
	var token string
	if cookie, err := r.Cookie(auth.RefreshTokenCookie); err == nil && cookie.Value != "" {
		token = cookie.Value
	} else {
		var payload refreshPayload
		if err := decodeBody(r, &payload); err != nil {
			return err
		}
		token = payload.RefreshToken
	}

	pair, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		return err
	}

	h.setTokenCookies(w, pair)
	response.JSON(w, http.StatusOK, pair, "Access token refreshed")
	return nil
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	handle(h.changePassword)(w, r)
}

func (h *UserHandler) changePassword(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	var payload changePasswordPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}

	if err := h.service.ChangePassword(r.Context(), user.ID, payload.OldPassword, payload.NewPassword); err != nil {
		return err
	}

	response.JSON(w, http.StatusOK, nil, "Password changed successfully")
	return nil
}

// GetMe returns the authenticated user as resolved by the guard.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	handle(h.getMe)(w, r)
}

func (h *UserHandler) getMe(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}
	response.JSON(w, http.StatusOK, user, "User Fetched Successfully")
	return nil
}

// UpdateMe handles updating the authenticated user's profile information.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	handle(h.updateMe)(w, r)
}

func (h *UserHandler) updateMe(w http.ResponseWriter, r *http.Request) error {
	user, err := currentUser(r)
	if err != nil {
		return err
	}

	var payload accountPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}

	updated, err := h.service.UpdateAccount(r.Context(), user.ID, payload.FullName, payload.Email)
	if err != nil {
		return err
	}

	response.JSON(w, http.StatusOK, updated, "Account details updated successfully")
	return nil
}

func (h *UserHandler) setTokenCookies(w http.ResponseWriter, pair services.TokenPair) {
	http.SetCookie(w, h.cookie(auth.AccessTokenCookie, pair.AccessToken, h.accessTTL))
	http.SetCookie(w, h.cookie(auth.RefreshTokenCookie, pair.RefreshToken, h.refreshTTL))
}

func (h *UserHandler) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie} {
		c := h.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (h *UserHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
	}
	if ttl > 0 {
		c.MaxAge = int(ttl.Seconds())
		c.Expires = time.Now().Add(ttl)
	}
	return c
}
