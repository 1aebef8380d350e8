package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/api/dto"
	"github.com/hugh/turnout-tracker/internal/api/validation"
	"github.com/hugh/turnout-tracker/internal/users"
)

type UserHandler struct {
	users  *users.Service
	logger *slog.Logger
}

func NewUserHandler(svc *users.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: svc, logger: logger}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	user, err := h.users.Create(r.Context(), users.CreateInput{
		Email:           req.Email,
		FullName:        req.FullName,
		Password:        req.Password,
		IsAdmin:         req.IsAdmin,
		AllowedCounties: req.AllowedCounties,
	})
	if err != nil {
		if users.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, dto.KindValidation, err.Error())
			return
		}
		h.logger.Error("create user failed", "error", err)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, dto.NewUserDTO(user))
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to list users")
		return
	}

	out := make([]dto.UserDTO, 0, len(list))
	for i := range list {
		out = append(out, dto.NewUserDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UserHandler) GetCounties(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	counties, err := h.users.GetCounties(r.Context(), id)
	if err != nil {
		h.countyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CountyAccessResponse{UserID: id.String(), AllowedCounties: counties})
}

func (h *UserHandler) SetCounties(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req dto.CountyAccessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	counties, err := h.users.SetCounties(r.Context(), id, req.AllowedCounties)
	if err != nil {
		h.countyError(w, err)
		return
	}

	h.logger.Info("county access updated", "user_id", id, "counties", len(counties))
	writeJSON(w, http.StatusOK, dto.CountyAccessResponse{UserID: id.String(), AllowedCounties: counties})
}

func (h *UserHandler) countyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		writeError(w, http.StatusNotFound, dto.KindNotFound, "User not found")
	case users.IsValidationError(err):
		writeError(w, http.StatusBadRequest, dto.KindValidation, err.Error())
	default:
		h.logger.Error("county access failed", "error", err)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to update county access")
	}
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "userID")
	if !validation.IsValidUUID(raw) {
		writeError(w, http.StatusNotFound, dto.KindNotFound, "User not found")
		return uuid.Nil, false
	}
	return uuid.MustParse(raw), true
}
