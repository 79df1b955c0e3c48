package handlers

import (
	"errors"
	"net/http"

	"github.com/jamroom/backend/internal/crypto"
	"github.com/jamroom/backend/internal/db"
	"github.com/jamroom/backend/internal/logging"
	"github.com/jamroom/backend/internal/middleware"
	"github.com/jamroom/backend/internal/models"
	"github.com/jamroom/backend/internal/services"
)

// AuthHandler issues tokens for registered accounts.
type AuthHandler struct {
	accounts    *services.AccountService
	authService *services.AuthService
	adminCode   string
}

// NewAuthHandler creates an AuthHandler. An empty adminCode leaves admin
// registration open.
func NewAuthHandler(accounts *services.AccountService, authService *services.AuthService, adminCode string) *AuthHandler {
	return &AuthHandler{
		accounts:    accounts,
		authService: authService,
		adminCode:   adminCode,
	}
}

// Register creates a regular account and returns a token for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, false)
}

// RegisterAdmin creates an account allowed to open sessions.
func (h *AuthHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, true)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request, isAdmin bool) {
	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if isAdmin && h.adminCode != "" && !crypto.EqualSecret(req.AdminCode, h.adminCode) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadAdminCode, "invalid admin signup code")
		writeError(w, http.StatusForbidden, "invalid admin code")
		return
	}

	user, err := h.accounts.Register(r.Context(), services.RegisterParams{
		Username:   req.Username,
		Password:   req.Password,
		Instrument: req.Instrument,
	}, isAdmin)
	if err != nil {
		writeServiceError(r.Context(), w, err, "failed to register user")
		return
	}

	h.writeToken(w, r, http.StatusCreated, user)
}

// Login verifies credentials and returns a fresh token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadCredentials, "failed login")
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		writeServiceError(r.Context(), w, err, "failed to log in")
		return
	}

	h.writeToken(w, r, http.StatusOK, user)
}

// Profile returns the stored account behind the caller's token.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.accounts.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(r.Context(), w, err, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, models.ProfileResponse{User: userResponse(user)})
}

func (h *AuthHandler) writeToken(w http.ResponseWriter, r *http.Request, status int, user db.User) {
	token, err := h.authService.GenerateToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	writeJSON(w, status, models.AuthResponse{
		Token: token,
		User:  userResponse(user),
	})
}

func userResponse(u db.User) models.UserResponse {
	return models.UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Instrument: u.Instrument,
		IsAdmin:    u.IsAdmin,
		CreatedAt:  u.CreatedAt,
	}
}
