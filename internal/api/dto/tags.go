package dto

import (
	"strings"

	"github.com/hugh/turnout-tracker/internal/api/validation"
)

// ContactUpdateRequest patches a tag's contact override. Omitted fields are
// left alone, empty strings clear.
type ContactUpdateRequest struct {
	Phone *string `json:"phone"`
	Email *string `json:"email"`
	Note  *string `json:"note"`
}

func (r ContactUpdateRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Phone == nil && r.Email == nil && r.Note == nil {
		errors["body"] = "At least one of phone, email or note is required"
	}
	if r.Phone != nil {
		if p := strings.TrimSpace(*r.Phone); p != "" && !validation.IsValidPhone(p) {
			errors["phone"] = "Invalid phone number"
		}
	}
	if r.Email != nil {
		if e := strings.TrimSpace(*r.Email); e != "" && !validation.IsValidEmail(e) {
			errors["email"] = "Invalid email format"
		}
	}
	if r.Note != nil && len(*r.Note) > 2000 {
		errors["note"] = "Note must be at most 2000 characters"
	}

	return errors
}

// TagStatusResponse is returned by tag and untag.
type TagStatusResponse struct {
	Status  string `json:"status"`
	VoterID string `json:"voter_id"`
}
