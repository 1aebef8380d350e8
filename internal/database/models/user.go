package models

import "github.com/google/uuid"

type User struct {
	Base
	Email        string `gorm:"uniqueIndex;not null" json:"email"` // stored lowercased
	PasswordHash string `gorm:"not null" json:"-"`
	FullName     string `json:"full_name"`
	IsAdmin      bool   `gorm:"default:false" json:"is_admin"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	// Relationships
	CountyAccess []UserCountyAccess `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Tags         []Tag              `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// AllowedCounties flattens the preloaded county access rows.
func (u *User) AllowedCounties() []string {
	counties := make([]string, 0, len(u.CountyAccess))
	for _, ca := range u.CountyAccess {
		counties = append(counties, ca.County)
	}
	return counties
}

// UserCountyAccess restricts a non-admin user to voters in the listed counties.
// A user with no rows sees every county.
type UserCountyAccess struct {
	Base
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_user_county_access" json:"user_id"`
	County string    `gorm:"not null;uniqueIndex:uq_user_county_access" json:"county"`
}

func (UserCountyAccess) TableName() string {
	return "user_county_access"
}
