// Package api provides HTTP handlers for the EcoCiclo API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/ecociclo/ecociclo/internal/auth"
	"github.com/ecociclo/ecociclo/internal/middleware"
	"github.com/ecociclo/ecociclo/internal/profile"
	"github.com/google/uuid"
)

// Password length constraints.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt input limit
)

// RegisterRequest represents the request body for POST /v1/auth/register.
type RegisterRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
}

// LoginRequest represents the request body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the request body for POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by register, login and refresh.
type TokenResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	Profile      *profile.Profile `json:"profile,omitempty"`
}

// AuthHandlers holds dependencies for authentication HTTP handlers.
type AuthHandlers struct {
	jwtService *auth.JWTService
	creds      auth.CredentialRepository
	profiles   profile.Repository
}

// NewAuthHandlers creates a new AuthHandlers instance.
func NewAuthHandlers(jwtService *auth.JWTService, creds auth.CredentialRepository, profiles profile.Repository) *AuthHandlers {
	return &AuthHandlers{
		jwtService: jwtService,
		creds:      creds,
		profiles:   profiles,
	}
}

// validateRole checks the registration role.
// Returns error message if validation fails, empty string if valid.
func validateRole(role string) string {
	switch role {
	case profile.RoleResident, profile.RoleRecycler, profile.RoleResidentInstitutional:
		return ""
	}
	return "role must be 'resident', 'recycler', or 'resident_institutional'"
}

// validatePassword checks password length constraints.
func validatePassword(password string) string {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return "password must be at least 8 characters"
	}
	if len(password) > MaxPasswordLength {
		return "password must not exceed 72 bytes"
	}
	return ""
}

// Register handles POST /v1/auth/register - creates a new user account.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = auth.NormalizeEmail(req.Email)

	if req.Name == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "name is required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "a valid email is required")
		return
	}
	if errMsg := validatePassword(req.Password); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}
	if errMsg := validateRole(req.Role); errMsg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, errMsg)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to hash password", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create account")
		return
	}

	userID := uuid.New().String()
	cred := &auth.Credential{
		UserID:       userID,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := h.creds.Create(r.Context(), cred); err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeConflict)
			WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "Email is already registered")
			return
		}
		slog.ErrorContext(r.Context(), "failed to store credential", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create account")
		return
	}

	prof := &profile.Profile{
		UserID:  userID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Role:    req.Role,
	}
	if err := h.profiles.Insert(r.Context(), prof); err != nil {
		slog.ErrorContext(r.Context(), "failed to create profile", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to create account")
		return
	}

	h.writeTokens(w, r, userID, req.Role, prof, http.StatusCreated)
}

// Login handles POST /v1/auth/login - exchanges credentials for tokens.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	cred, err := h.creds.GetByEmail(r.Context(), req.Email)
	if err == nil {
		err = auth.CheckPassword(cred.PasswordHash, req.Password)
	}
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
			WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid email or password")
			return
		}
		slog.ErrorContext(r.Context(), "failed to look up credential", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to log in")
		return
	}

	prof, err := h.profiles.GetByUserID(r.Context(), cred.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load profile", "user_id", cred.UserID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to log in")
		return
	}

	h.writeTokens(w, r, cred.UserID, prof.Role, prof, http.StatusOK)
}

// Refresh handles POST /v1/auth/refresh - rotates a refresh token into a
// fresh token pair.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	claims, err := h.jwtService.ValidateToken(req.RefreshToken)
	if err != nil || claims.Type != auth.TokenTypeRefresh {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid or expired refresh token")
		return
	}

	prof, err := h.profiles.GetByUserID(r.Context(), claims.Subject)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Unknown user")
		return
	}

	h.writeTokens(w, r, claims.Subject, prof.Role, nil, http.StatusOK)
}

// writeTokens issues a token pair and writes the response.
func (h *AuthHandlers) writeTokens(w http.ResponseWriter, r *http.Request, userID, role string, prof *profile.Profile, status int) {
	access, err := h.jwtService.GenerateAccessToken(userID, role)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate access token", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to issue tokens")
		return
	}
	refresh, err := h.jwtService.GenerateRefreshToken(userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate refresh token", "user_id", userID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to issue tokens")
		return
	}

	response := TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		Profile:      prof,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
