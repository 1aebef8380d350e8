package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/turnout-tracker/internal/api/dto"
	"github.com/hugh/turnout-tracker/internal/api/middleware"
	"github.com/hugh/turnout-tracker/internal/auth"
)

type AuthHandler struct {
	authService auth.Authenticator
	tokens      auth.TokenService
	logger      *slog.Logger
}

func NewAuthHandler(authService auth.Authenticator, tokens auth.TokenService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, tokens: tokens, logger: logger}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, dto.KindAuthentication, "Invalid email or password")
		case errors.Is(err, auth.ErrInactiveUser):
			writeError(w, http.StatusUnauthorized, dto.KindAuthentication, "Account is inactive")
		default:
			h.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, dto.KindInternal, "Login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.LoginResponse{
		AccessToken: resp.Token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokens.Expiry().Seconds()),
		IsAdmin:     resp.User.IsAdmin,
		User:        dto.NewUserDTO(resp.User),
	})
}

// Me reports the caller as currently stored, not as the token claims.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, dto.KindAuthentication, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, dto.KindAuthentication, "Not authenticated")
		return
	}

	if err := h.authService.Logout(r.Context(), claims); err != nil {
		h.logger.Error("logout failed", "error", err, "user_id", claims.UserID)
		writeError(w, http.StatusServiceUnavailable, dto.KindUnavailable, "Could not revoke session")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}
