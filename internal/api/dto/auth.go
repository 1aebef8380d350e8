package dto

import (
	"strings"

	"github.com/hugh/turnout-tracker/internal/database/models"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   int64   `json:"expires_in"`
	IsAdmin     bool    `json:"is_admin"`
	User        UserDTO `json:"user"`
}

type UserDTO struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	FullName        string   `json:"full_name"`
	IsAdmin         bool     `json:"is_admin"`
	IsActive        bool     `json:"is_active"`
	AllowedCounties []string `json:"allowed_counties"`
}

// NewUserDTO expects CountyAccess to be loaded.
func NewUserDTO(u *models.User) UserDTO {
	return UserDTO{
		ID:              u.ID.String(),
		Email:           u.Email,
		FullName:        u.FullName,
		IsAdmin:         u.IsAdmin,
		IsActive:        u.IsActive,
		AllowedCounties: u.AllowedCounties(),
	}
}
