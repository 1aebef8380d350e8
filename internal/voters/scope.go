// Package voters searches the voter roll and maintains it from CSV imports.
package voters

import (
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/database/models"
	"gorm.io/gorm"
)

// Viewer is the caller on whose behalf voters are read. Non-admins with a
// county list only see voters in those counties.
type Viewer struct {
	UserID   uuid.UUID
	IsAdmin  bool
	Counties []string
}

// ViewerFor builds a Viewer from a user with CountyAccess preloaded.
func ViewerFor(user *models.User) Viewer {
	return Viewer{
		UserID:   user.ID,
		IsAdmin:  user.IsAdmin,
		Counties: user.AllowedCounties(),
	}
}

// Restricted reports whether a county filter applies.
func (v Viewer) Restricted() bool {
	return !v.IsAdmin && len(v.Counties) > 0
}

// Scope narrows a voters query to what the viewer may see.
func (v Viewer) Scope(db *gorm.DB) *gorm.DB {
	if !v.Restricted() {
		return db
	}
	lowered := make([]string, 0, len(v.Counties))
	for _, c := range v.Counties {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(c)))
	}
	return db.Where("LOWER(voters.county) IN ?", lowered)
}

// CanSee reports whether a single loaded voter is within the viewer's counties.
func (v Viewer) CanSee(voter *models.Voter) bool {
	if !v.Restricted() {
		return true
	}
	county := strings.TrimSpace(voter.County)
	for _, c := range v.Counties {
		if strings.EqualFold(strings.TrimSpace(c), county) {
			return true
		}
	}
	return false
}
