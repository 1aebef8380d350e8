package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/database/models"
)

// RevocationChecker reports whether a token id has been logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Authenticator defines the interface for user authentication operations.
type Authenticator interface {
	RevocationChecker
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	Logout(ctx context.Context, claims *Claims) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	GenerateToken(user *models.User) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	Expiry() time.Duration
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator   = (*Service)(nil)
	_ TokenService    = (*JWTService)(nil)
	_ RevocationStore = (*RedisRevocationStore)(nil)
	_ RevocationStore = NoopRevocationStore{}
	_ RevocationStore = (*MemoryRevocationStore)(nil)
)
