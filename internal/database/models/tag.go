package models

import "github.com/google/uuid"

// Tag records that a user has claimed a voter for outreach. At most one tag
// exists per (user, voter).
type Tag struct {
	Base
	UserID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_user_voter_tag;index" json:"user_id"`
	VoterID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_user_voter_tag;index" json:"voter_id"`

	// Per-user contact overrides (phone, email, note), age encrypted JSON.
	EncryptedContact []byte `json:"-"`
	ContactUpdatedAt int64  `json:"contact_updated_at,omitempty"`
}

func (Tag) TableName() string {
	return "user_voter_tags"
}
