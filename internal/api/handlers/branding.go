package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/turnout-tracker/internal/api/dto"
	"github.com/hugh/turnout-tracker/internal/branding"
)

type BrandingHandler struct {
	branding *branding.Service
	logger   *slog.Logger
}

func NewBrandingHandler(svc *branding.Service, logger *slog.Logger) *BrandingHandler {
	return &BrandingHandler{branding: svc, logger: logger}
}

func (h *BrandingHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.branding.Get(r.Context())
	if err != nil {
		h.logger.Error("load branding failed", "error", err)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to load branding")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *BrandingHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart envelope around the file itself.
	file, header, ok := formFile(w, r, branding.MaxLogoBytes+(1<<20))
	if !ok {
		return
	}
	defer file.Close()

	info, err := h.branding.UploadLogo(r.Context(), header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, branding.ErrLogoTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, dto.KindValidation, err.Error())
		case errors.Is(err, branding.ErrUnsupportedLogoType), errors.Is(err, branding.ErrEmptyLogo):
			writeError(w, http.StatusBadRequest, dto.KindValidation, err.Error())
		default:
			h.logger.Error("logo upload failed", "error", err)
			writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to store logo")
		}
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *BrandingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.BrandingUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	info, err := h.branding.SetAppName(r.Context(), req.AppName)
	if err != nil {
		if errors.Is(err, branding.ErrInvalidAppName) {
			writeError(w, http.StatusBadRequest, dto.KindValidation, err.Error())
			return
		}
		h.logger.Error("branding update failed", "error", err)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to update branding")
		return
	}
	writeJSON(w, http.StatusOK, info)
}
