package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
)

type Service struct {
	db      *gorm.DB
	jwt     *JWTService
	revoked RevocationStore
	logger  *slog.Logger
}

func NewService(db *gorm.DB, jwt *JWTService, revoked RevocationStore, logger *slog.Logger) *Service {
	if revoked == nil {
		revoked = NoopRevocationStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, jwt: jwt, revoked: revoked, logger: logger}
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("CountyAccess").
		Where("email = ?", NormalizeEmail(input.Email)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Burn comparable time so unknown emails are not distinguishable.
			CheckPassword(input.Password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	token, err := s.jwt.GenerateToken(&user)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "is_admin", user.IsAdmin)

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

// Logout revokes the presented token until its natural expiry.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}
	ttl := s.jwt.Expiry()
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	return s.revoked.Revoke(ctx, claims.ID, ttl)
}

// IsRevoked reports whether a token id was logged out.
func (s *Service) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	return s.revoked.IsRevoked(ctx, jti)
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("CountyAccess").
		First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateAdmin creates an active admin account, or promotes and resets the
// password of an existing one with the same email.
func (s *Service) CreateAdmin(ctx context.Context, email, fullName, password string) (*models.User, bool, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, false, fmt.Errorf("hashing password: %w", err)
	}

	email = NormalizeEmail(email)
	var (
		user    models.User
		created bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{
				Email:        email,
				FullName:     fullName,
				PasswordHash: hash,
				IsAdmin:      true,
				IsActive:     true,
			}
			created = true
			return tx.Create(&user).Error
		case err != nil:
			return err
		}

		updates := map[string]interface{}{
			"password_hash": hash,
			"is_admin":      true,
			"is_active":     true,
		}
		if fullName != "" {
			updates["full_name"] = fullName
		}
		return tx.Model(&user).Updates(updates).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &user, created, nil
}

var dummyHash, _ = HashPassword("turnout-tracker-placeholder")
