package models

import "github.com/google/uuid"

// BrandingID is the primary key of the only branding row.
var BrandingID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Branding is a singleton row holding the display name and logo.
type Branding struct {
	Base
	AppName string `gorm:"not null" json:"app_name"`
	LogoURL string `json:"logo_url"`
	LogoKey string `json:"-"` // storage key of the current logo object
}

func (Branding) TableName() string {
	return "branding"
}
