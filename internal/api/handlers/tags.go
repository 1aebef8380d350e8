package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/turnout-tracker/internal/api/dto"
	"github.com/hugh/turnout-tracker/internal/api/middleware"
	"github.com/hugh/turnout-tracker/internal/api/validation"
	"github.com/hugh/turnout-tracker/internal/tags"
	"github.com/hugh/turnout-tracker/internal/voters"
)

type TagHandler struct {
	tags   *tags.Service
	logger *slog.Logger
}

func NewTagHandler(svc *tags.Service, logger *slog.Logger) *TagHandler {
	return &TagHandler{tags: svc, logger: logger}
}

func (h *TagHandler) Tag(w http.ResponseWriter, r *http.Request) {
	viewer := voters.ViewerFor(middleware.GetUser(r.Context()))
	ref := chi.URLParam(r, "voterID")

	status, voter, err := h.tags.Tag(r.Context(), viewer, ref)
	if err != nil {
		if errors.Is(err, voters.ErrVoterNotFound) {
			writeError(w, http.StatusNotFound, dto.KindNotFound, "Voter not found")
			return
		}
		h.logger.Error("tag failed", "error", err, "voter", ref)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to tag voter")
		return
	}

	writeJSON(w, http.StatusOK, dto.TagStatusResponse{Status: status, VoterID: voter.VoterID})
}

func (h *TagHandler) Untag(w http.ResponseWriter, r *http.Request) {
	viewer := voters.ViewerFor(middleware.GetUser(r.Context()))
	ref := chi.URLParam(r, "voterID")

	status, err := h.tags.Untag(r.Context(), viewer, ref)
	if err != nil {
		h.logger.Error("untag failed", "error", err, "voter", ref)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to untag voter")
		return
	}

	writeJSON(w, http.StatusOK, dto.TagStatusResponse{Status: status, VoterID: ref})
}

func (h *TagHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req dto.ContactUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	viewer := voters.ViewerFor(middleware.GetUser(r.Context()))
	contact, err := h.tags.UpdateContact(r.Context(), viewer, chi.URLParam(r, "voterID"), tags.ContactUpdate{
		Phone: req.Phone,
		Email: req.Email,
		Note:  req.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, tags.ErrNotTagged):
			writeError(w, http.StatusNotFound, dto.KindNotFound, "Voter is not tagged")
		case errors.Is(err, tags.ErrInvalidEmail),
			errors.Is(err, tags.ErrNoteTooLong),
			errors.Is(err, tags.ErrPhoneTooLong),
			errors.Is(err, tags.ErrEmptyOverride):
			writeError(w, http.StatusBadRequest, dto.KindValidation, err.Error())
		default:
			h.logger.Error("contact update failed", "error", err)
			writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to update contact")
		}
		return
	}

	writeJSON(w, http.StatusOK, contact)
}

func (h *TagHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.tags.Dashboard(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error("dashboard failed", "error", err)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// ExportCallList returns the caller's not-yet-voted tagged voters as CSV.
// The file is built in memory first so a failure can still be a JSON error.
func (h *TagHandler) ExportCallList(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var buf bytes.Buffer
	n, err := h.tags.WriteCallList(r.Context(), userID, &buf)
	if err != nil {
		h.logger.Error("call list export failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to export call list")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="call_list.csv"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	h.logger.Info("call list exported", "user_id", userID, "rows", n)
}

// Overview handles GET /admin/tags/overview?user_id=.
func (h *TagHandler) Overview(w http.ResponseWriter, r *http.Request) {
	var userID *uuid.UUID
	if v := r.URL.Query().Get("user_id"); v != "" {
		// uuid.Parse also accepts braced and urn forms; only the canonical one is allowed.
		if !validation.IsValidUUID(v) {
			writeValidation(w, map[string]string{"user_id": "Invalid user id"})
			return
		}
		id := uuid.MustParse(v)
		userID = &id
	}

	rows, err := h.tags.Overview(r.Context(), userID)
	if err != nil {
		h.logger.Error("tag overview failed", "error", err)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to load tag overview")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
