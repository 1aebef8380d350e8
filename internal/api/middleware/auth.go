package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/api/dto"
	"github.com/hugh/turnout-tracker/internal/auth"
	"github.com/hugh/turnout-tracker/internal/database/models"
)

type contextKey string

const (
	ClaimsKey contextKey = "claims"
	UserKey   contextKey = "user"
)

// UserLoader loads the current user, with county access, from the database.
type UserLoader interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Auth accepts only "Authorization: Bearer <token>". Revoked tokens are
// rejected when revocations is non-nil.
func Auth(tokens auth.TokenService, revocations auth.RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, dto.KindAuthentication, "Not authenticated")
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "Token has expired"
				}
				writeError(w, http.StatusUnauthorized, dto.KindAuthentication, msg)
				return
			}

			if revocations != nil && claims.ID != "" {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					writeError(w, http.StatusServiceUnavailable, dto.KindUnavailable, "Session store unavailable")
					return
				}
				if revoked {
					writeError(w, http.StatusUnauthorized, dto.KindAuthentication, "Token has been revoked")
					return
				}
			}

			setLoggedUser(r.Context(), claims.UserID)
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// CurrentUser loads the authenticated user from the database so handlers see
// current admin status and county access rather than what the token claimed.
func CurrentUser(loader UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := loader.GetUserByID(r.Context(), GetUserID(r.Context()))
			if err != nil {
				if errors.Is(err, auth.ErrUserNotFound) {
					writeError(w, http.StatusUnauthorized, dto.KindAuthentication, "User no longer exists")
					return
				}
				writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to load user")
				return
			}
			if !user.IsActive {
				writeError(w, http.StatusUnauthorized, dto.KindAuthentication, "Account is inactive")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after CurrentUser.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil || !user.IsAdmin {
			writeError(w, http.StatusForbidden, dto.KindAuthorization, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Helper functions to extract values from context
func GetClaims(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func GetUserID(ctx context.Context) uuid.UUID {
	if claims := GetClaims(ctx); claims != nil {
		return claims.UserID
	}
	return uuid.Nil
}

func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(UserKey).(*models.User); ok {
		return user
	}
	return nil
}
