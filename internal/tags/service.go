// Package tags tracks which voters each user has claimed for outreach.
package tags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/api/validation"
	"github.com/hugh/turnout-tracker/internal/database/models"
	"github.com/hugh/turnout-tracker/internal/voters"
	"github.com/hugh/turnout-tracker/pkg/crypto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	StatusTagged        = "tagged"
	StatusAlreadyTagged = "already_tagged"
	StatusUntagged      = "untagged"
	StatusNotTagged     = "not_tagged"

	maxNoteLength  = 2000
	maxPhoneLength = 50
)

var (
	ErrNotTagged     = errors.New("voter is not tagged by this user")
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrNoteTooLong   = fmt.Errorf("note must be at most %d characters", maxNoteLength)
	ErrPhoneTooLong  = fmt.Errorf("phone must be at most %d characters", maxPhoneLength)
	ErrEmptyOverride = errors.New("at least one of phone, email or note is required")
)

type Service struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(db *gorm.DB, encryptor *crypto.Encryptor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, encryptor: encryptor, logger: logger, now: time.Now}
}

// Tag claims a voter for the viewer. Tagging twice is not an error and leaves
// exactly one row, enforced by the (user_id, voter_id) unique index.
func (s *Service) Tag(ctx context.Context, viewer voters.Viewer, ref string) (string, *models.Voter, error) {
	voter, err := voters.Resolve(s.db.WithContext(ctx), viewer, ref)
	if err != nil {
		return "", nil, err
	}

	tag := models.Tag{UserID: viewer.UserID, VoterID: voter.ID}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "voter_id"}},
			DoNothing: true,
		}).
		Create(&tag)
	if res.Error != nil {
		return "", nil, fmt.Errorf("creating tag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return StatusAlreadyTagged, voter, nil
	}

	s.logger.Debug("voter tagged", "user_id", viewer.UserID, "voter_id", voter.VoterID)
	return StatusTagged, voter, nil
}

// Untag removes the viewer's tag if present. Unknown voters and missing tags
// are both reported as not tagged.
func (s *Service) Untag(ctx context.Context, viewer voters.Viewer, ref string) (string, error) {
	// County access is not applied so users can always drop their own tags.
	voter, err := voters.Resolve(s.db.WithContext(ctx), voters.Viewer{UserID: viewer.UserID, IsAdmin: true}, ref)
	if errors.Is(err, voters.ErrVoterNotFound) {
		return StatusNotTagged, nil
	}
	if err != nil {
		return "", err
	}

	res := s.db.WithContext(ctx).
		Where("user_id = ? AND voter_id = ?", viewer.UserID, voter.ID).
		Delete(&models.Tag{})
	if res.Error != nil {
		return "", fmt.Errorf("deleting tag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return StatusNotTagged, nil
	}

	s.logger.Debug("voter untagged", "user_id", viewer.UserID, "voter_id", voter.VoterID)
	return StatusUntagged, nil
}

// Contact is a user's private override of a tagged voter's contact details.
type Contact struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
	Note  string `json:"note"`
}

func (c Contact) IsZero() bool {
	return c.Phone == "" && c.Email == "" && c.Note == ""
}

// ContactUpdate carries a partial update. Nil leaves a field alone, an empty
// string clears it.
type ContactUpdate struct {
	Phone *string `json:"phone"`
	Email *string `json:"email"`
	Note  *string `json:"note"`
}

func (u ContactUpdate) Validate() error {
	if u.Phone == nil && u.Email == nil && u.Note == nil {
		return ErrEmptyOverride
	}
	if u.Phone != nil && len(strings.TrimSpace(*u.Phone)) > maxPhoneLength {
		return ErrPhoneTooLong
	}
	if u.Email != nil {
		if e := strings.TrimSpace(*u.Email); e != "" {
			if addr, err := mail.ParseAddress(e); err != nil || addr.Address != e {
				return ErrInvalidEmail
			}
		}
	}
	if u.Note != nil && len(*u.Note) > maxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

func (u ContactUpdate) apply(c *Contact) {
	// Notes end up in the call list CSV, so control characters are dropped.
	if u.Phone != nil {
		c.Phone = strings.TrimSpace(validation.SanitizeString(*u.Phone))
	}
	if u.Email != nil {
		c.Email = strings.TrimSpace(*u.Email)
	}
	if u.Note != nil {
		c.Note = strings.TrimSpace(validation.SanitizeString(*u.Note))
	}
}

// UpdateContact merges update into the viewer's override for a tagged voter.
func (s *Service) UpdateContact(ctx context.Context, viewer voters.Viewer, ref string, update ContactUpdate) (*Contact, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	var contact Contact
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		voter, err := voters.Resolve(tx, voters.Viewer{UserID: viewer.UserID, IsAdmin: true}, ref)
		if errors.Is(err, voters.ErrVoterNotFound) {
			return ErrNotTagged
		}
		if err != nil {
			return err
		}

		var tag models.Tag
		if err := tx.Where("user_id = ? AND voter_id = ?", viewer.UserID, voter.ID).First(&tag).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotTagged
			}
			return fmt.Errorf("loading tag: %w", err)
		}

		if err := s.encryptor.OpenJSON(tag.EncryptedContact, &contact); err != nil {
			return fmt.Errorf("opening contact override: %w", err)
		}
		update.apply(&contact)

		var sealed []byte
		if !contact.IsZero() {
			if sealed, err = s.encryptor.SealJSON(contact); err != nil {
				return fmt.Errorf("sealing contact override: %w", err)
			}
		}

		return tx.Model(&tag).Updates(map[string]interface{}{
			"encrypted_contact":  sealed,
			"contact_updated_at": s.now().Unix(),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// TaggedVoter is a voter as the tagging user sees it, overrides merged in.
type TaggedVoter struct {
	models.Voter
	TagID    uuid.UUID `json:"tag_id"`
	TaggedAt time.Time `json:"tagged_at"`
	Note     string    `json:"note"`
	// Overridden is true when phone or email came from the user's override.
	Overridden bool `json:"has_contact_override"`
}

type Dashboard struct {
	TaggedVoters  []TaggedVoter `json:"tagged_voters"`
	TotalTagged   int           `json:"total_tagged"`
	TotalVoted    int           `json:"total_voted"`
	TotalNotVoted int           `json:"total_not_voted"`
}

// Dashboard lists the user's tagged voters. Counts derive from the list itself.
func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	items, err := s.taggedVoters(s.db.WithContext(ctx), userID, false)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{TaggedVoters: items, TotalTagged: len(items)}
	for _, item := range items {
		if item.HasVoted {
			d.TotalVoted++
		}
	}
	d.TotalNotVoted = d.TotalTagged - d.TotalVoted
	return d, nil
}

func (s *Service) taggedVoters(db *gorm.DB, userID uuid.UUID, notVotedOnly bool) ([]TaggedVoter, error) {
	var userTags []models.Tag
	if err := db.Where("user_id = ?", userID).Find(&userTags).Error; err != nil {
		return nil, fmt.Errorf("loading tags: %w", err)
	}
	if len(userTags) == 0 {
		return []TaggedVoter{}, nil
	}

	byVoter := make(map[uuid.UUID]models.Tag, len(userTags))
	ids := make([]uuid.UUID, 0, len(userTags))
	for _, t := range userTags {
		byVoter[t.VoterID] = t
		ids = append(ids, t.VoterID)
	}

	query := db.Where("id IN ?", ids)
	if notVotedOnly {
		query = query.Where("has_voted = ?", false)
	}
	var tagged []models.Voter
	if err := query.Order("last_name").Order("first_name").Order("voter_id").Find(&tagged).Error; err != nil {
		return nil, fmt.Errorf("loading tagged voters: %w", err)
	}

	items := make([]TaggedVoter, 0, len(tagged))
	for _, v := range tagged {
		tag := byVoter[v.ID]
		item := TaggedVoter{Voter: v, TagID: tag.ID, TaggedAt: tag.CreatedAt}

		var contact Contact
		if err := s.encryptor.OpenJSON(tag.EncryptedContact, &contact); err != nil {
			// Unreadable overrides are logged and the voter shown without them.
			s.logger.Error("failed to open contact override", "tag_id", tag.ID, "error", err)
		}
		if contact.Phone != "" {
			item.Phone = contact.Phone
			item.Overridden = true
		}
		if contact.Email != "" {
			item.Email = contact.Email
			item.Overridden = true
		}
		item.Note = contact.Note

		items = append(items, item)
	}
	return items, nil
}
