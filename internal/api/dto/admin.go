package dto

import (
	"strings"

	"github.com/hugh/turnout-tracker/internal/api/validation"
)

type CreateUserRequest struct {
	Email           string   `json:"email"`
	FullName        string   `json:"full_name"`
	Password        string   `json:"password"`
	IsAdmin         bool     `json:"is_admin"`
	AllowedCounties []string `json:"allowed_counties,omitempty"`
}

func (r CreateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	email := strings.TrimSpace(r.Email)
	if email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(email) {
		errors["email"] = "Invalid email format"
	}
	if strings.TrimSpace(r.FullName) == "" {
		errors["full_name"] = "Full name is required"
	} else if len(r.FullName) > 200 {
		errors["full_name"] = "Full name must be at most 200 characters"
	}
	if ok, msg := validation.ValidatePassword(r.Password); !ok {
		errors["password"] = msg
	}

	return errors
}

type CountyAccessRequest struct {
	AllowedCounties []string `json:"allowed_counties"`
}

func (r CountyAccessRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.AllowedCounties == nil {
		errors["allowed_counties"] = "allowed_counties is required (use [] to clear)"
	}
	if len(r.AllowedCounties) > 500 {
		errors["allowed_counties"] = "Too many counties"
	}

	return errors
}

type CountyAccessResponse struct {
	UserID          string   `json:"user_id"`
	AllowedCounties []string `json:"allowed_counties"`
}

// ImportQueuedResponse is returned when an import runs in the background.
type ImportQueuedResponse struct {
	TaskID    string `json:"task_id"`
	Queue     string `json:"queue"`
	StatusURL string `json:"status_url"`
}

type BrandingUpdateRequest struct {
	AppName string `json:"app_name"`
}

func (r BrandingUpdateRequest) Validate() map[string]string {
	errors := make(map[string]string)

	name := strings.TrimSpace(r.AppName)
	if name == "" {
		errors["app_name"] = "App name is required"
	} else if len([]rune(name)) > 100 {
		errors["app_name"] = "App name must be at most 100 characters"
	}

	return errors
}
