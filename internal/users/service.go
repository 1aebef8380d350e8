// Package users implements admin management of accounts and their county access.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/auth"
	"github.com/hugh/turnout-tracker/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("a user with this email already exists")
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrWeakPassword  = fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	ErrNameRequired  = errors.New("full name is required")
	ErrCountyTooLong = errors.New("county name is too long")
)

const maxCountyLength = 100

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

type CreateInput struct {
	Email           string
	FullName        string
	Password        string
	IsAdmin         bool
	AllowedCounties []string
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*models.User, error) {
	email := auth.NormalizeEmail(input.Email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, ErrNameRequired
	}
	if len(input.Password) < auth.MinPasswordLength {
		return nil, ErrWeakPassword
	}
	counties, err := NormalizeCounties(input.AllowedCounties)
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := models.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		IsAdmin:      input.IsAdmin,
		IsActive:     true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return err
		}
		return replaceCounties(tx, user.ID, counties)
	})
	if err != nil {
		return nil, err
	}

	user.CountyAccess = countyRows(user.ID, counties)
	s.logger.Info("user created", "user_id", user.ID, "is_admin", user.IsAdmin, "counties", len(counties))
	return &user, nil
}

// List returns every user ordered by name then email, with county access loaded.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).
		Preload("CountyAccess", func(db *gorm.DB) *gorm.DB { return db.Order("county") }).
		Order("full_name").Order("email").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *Service) GetCounties(ctx context.Context, userID uuid.UUID) ([]string, error) {
	if err := s.ensureUser(s.db.WithContext(ctx), userID); err != nil {
		return nil, err
	}

	var counties []string
	if err := s.db.WithContext(ctx).Model(&models.UserCountyAccess{}).
		Where("user_id = ?", userID).
		Order("county").
		Pluck("county", &counties).Error; err != nil {
		return nil, fmt.Errorf("loading county access: %w", err)
	}
	if counties == nil {
		counties = []string{}
	}
	return counties, nil
}

// SetCounties replaces the user's whole county list. An empty list lifts the restriction.
func (s *Service) SetCounties(ctx context.Context, userID uuid.UUID, counties []string) ([]string, error) {
	normalized, err := NormalizeCounties(counties)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureUser(tx, userID); err != nil {
			return err
		}
		return replaceCounties(tx, userID, normalized)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("county access updated", "user_id", userID, "counties", len(normalized))
	sort.Strings(normalized)
	return normalized, nil
}

func (s *Service) ensureUser(db *gorm.DB, userID uuid.UUID) error {
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

func replaceCounties(tx *gorm.DB, userID uuid.UUID, counties []string) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.UserCountyAccess{}).Error; err != nil {
		return fmt.Errorf("clearing county access: %w", err)
	}
	if len(counties) == 0 {
		return nil
	}
	rows := countyRows(userID, counties)
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("saving county access: %w", err)
	}
	return nil
}

func countyRows(userID uuid.UUID, counties []string) []models.UserCountyAccess {
	rows := make([]models.UserCountyAccess, 0, len(counties))
	for _, c := range counties {
		rows = append(rows, models.UserCountyAccess{UserID: userID, County: c})
	}
	return rows
}

// NormalizeCounties trims entries, drops empties and removes case-insensitive
// duplicates, keeping the first spelling seen.
func NormalizeCounties(counties []string) ([]string, error) {
	seen := make(map[string]struct{}, len(counties))
	out := make([]string, 0, len(counties))
	for _, c := range counties {
		c = strings.Join(strings.Fields(c), " ")
		if c == "" {
			continue
		}
		if len(c) > maxCountyLength {
			return nil, ErrCountyTooLong
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// IsValidationError reports errors caused by bad input rather than server state.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrCountyTooLong)
}
