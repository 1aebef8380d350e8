// Package branding manages the app's display name and logo.
package branding

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hugh/turnout-tracker/internal/database/models"
	"github.com/hugh/turnout-tracker/pkg/storage"
	"github.com/zeebo/blake3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MaxLogoBytes     = 5 << 20
	maxAppNameLength = 100
)

// AllowedLogoExtensions are the accepted logo file extensions.
var AllowedLogoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var (
	ErrUnsupportedLogoType = errors.New("logo must be a .jpg, .jpeg, .png, .gif or .webp image")
	ErrLogoTooLarge        = fmt.Errorf("logo must be at most %d MiB", MaxLogoBytes>>20)
	ErrEmptyLogo           = errors.New("logo file is empty")
	ErrInvalidAppName      = fmt.Errorf("app name must be 1 to %d characters", maxAppNameLength)
)

// Info is the public branding payload.
type Info struct {
	AppName string  `json:"app_name"`
	LogoURL *string `json:"logo_url"`
}

type Service struct {
	db             *gorm.DB
	store          storage.Store
	defaultAppName string
	publicURL      string
	logger         *slog.Logger
}

func NewService(db *gorm.DB, store storage.Store, defaultAppName, publicURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultAppName == "" {
		defaultAppName = "Team Turnout Tracker"
	}
	return &Service{
		db:             db,
		store:          store,
		defaultAppName: defaultAppName,
		publicURL:      strings.TrimRight(publicURL, "/"),
		logger:         logger,
	}
}

// Get returns the current branding, falling back to defaults when none is saved.
func (s *Service) Get(ctx context.Context) (*Info, error) {
	row, err := s.load(s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return s.info(row), nil
}

func (s *Service) load(db *gorm.DB) (*models.Branding, error) {
	var row models.Branding
	err := db.First(&row, "id = ?", models.BrandingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading branding: %w", err)
	}
	return &row, nil
}

// lockRow creates the branding row if needed and locks it for the rest of tx.
// Concurrent first writers collide on the fixed primary key instead of each
// inserting their own row.
func (s *Service) lockRow(tx *gorm.DB) (*models.Branding, error) {
	seed := models.Branding{Base: models.Base{ID: models.BrandingID}}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("creating branding: %w", err)
	}
	var row models.Branding
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", models.BrandingID).Error; err != nil {
		return nil, fmt.Errorf("loading branding: %w", err)
	}
	return &row, nil
}

func (s *Service) info(row *models.Branding) *Info {
	info := &Info{AppName: s.defaultAppName}
	if row == nil {
		return info
	}
	if row.AppName != "" {
		info.AppName = row.AppName
	}
	if row.LogoURL != "" {
		url := row.LogoURL
		if strings.HasPrefix(url, "/") && s.publicURL != "" {
			url = s.publicURL + url
		}
		info.LogoURL = &url
	}
	return info
}

// UploadLogo validates and stores a new logo, then points branding at it.
// The previous logo object is removed once the record no longer references it.
func (s *Service) UploadLogo(ctx context.Context, filename string, r io.Reader) (*Info, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedLogoExtensions[ext] {
		return nil, ErrUnsupportedLogoType
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxLogoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading logo: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyLogo
	}
	if len(data) > MaxLogoBytes {
		return nil, ErrLogoTooLarge
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrUnsupportedLogoType
	}

	sum := blake3.Sum256(data)
	key := "logos/logo_" + hex.EncodeToString(sum[:8]) + ext

	url, err := s.store.Put(ctx, key, bytes.NewReader(data), contentType)
	if err != nil {
		return nil, fmt.Errorf("storing logo: %w", err)
	}

	var (
		row    *models.Branding
		oldKey string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if row, err = s.lockRow(tx); err != nil {
			return err
		}
		oldKey = row.LogoKey
		row.LogoURL = url
		row.LogoKey = key
		return tx.Model(row).Updates(map[string]interface{}{"logo_url": url, "logo_key": key}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("saving branding: %w", err)
	}

	if oldKey != "" && oldKey != key {
		if err := s.store.Delete(ctx, oldKey); err != nil {
			s.logger.Warn("failed to delete previous logo", "key", oldKey, "error", err)
		}
	}

	s.logger.Info("logo updated", "key", key, "backend", s.store.Name(), "bytes", len(data))
	return s.info(row), nil
}

// SetAppName updates the display name.
func (s *Service) SetAppName(ctx context.Context, name string) (*Info, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxAppNameLength {
		return nil, ErrInvalidAppName
	}

	var row *models.Branding
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if row, err = s.lockRow(tx); err != nil {
			return err
		}
		row.AppName = name
		return tx.Model(row).Update("app_name", name).Error
	})
	if err != nil {
		return nil, fmt.Errorf("saving branding: %w", err)
	}
	return s.info(row), nil
}
