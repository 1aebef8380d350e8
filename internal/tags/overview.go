package tags

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OverviewRow is one tag joined with its user and voter for the admin view.
type OverviewRow struct {
	TagID           uuid.UUID `json:"tag_id"`
	UserID          uuid.UUID `json:"user_id"`
	UserEmail       string    `json:"user_email"`
	UserFullName    string    `json:"user_full_name"`
	VoterInternalID uuid.UUID `json:"voter_internal_id"`
	VoterVoterID    string    `json:"voter_voter_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	County          string    `json:"county"`
	Precinct        string    `json:"precinct"`
	HasVoted        bool      `json:"has_voted"`
	TaggedAt        time.Time `json:"tagged_at"`
}

// Overview lists tags across all users, or only userID's when given.
func (s *Service) Overview(ctx context.Context, userID *uuid.UUID) ([]OverviewRow, error) {
	query := s.db.WithContext(ctx).
		Table("user_voter_tags AS t").
		Select(`t.id AS tag_id, u.id AS user_id, u.email AS user_email, u.full_name AS user_full_name,
			v.id AS voter_internal_id, v.voter_id AS voter_voter_id, v.first_name, v.last_name,
			v.county, v.precinct, v.has_voted, t.created_at AS tagged_at`).
		Joins("JOIN users AS u ON u.id = t.user_id").
		Joins("JOIN voters AS v ON v.id = t.voter_id")
	if userID != nil {
		query = query.Where("t.user_id = ?", *userID)
	}

	rows := []OverviewRow{}
	if err := query.
		Order("u.email").Order("v.last_name").Order("v.first_name").Order("v.voter_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading tag overview: %w", err)
	}
	return rows, nil
}
