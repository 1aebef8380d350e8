package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hugh/turnout-tracker/internal/api/dto"
	"github.com/hugh/turnout-tracker/internal/api/middleware"
	"github.com/hugh/turnout-tracker/internal/voters"
)

type VoterHandler struct {
	voters *voters.Service
	logger *slog.Logger
}

func NewVoterHandler(svc *voters.Service, logger *slog.Logger) *VoterHandler {
	return &VoterHandler{voters: svc, logger: logger}
}

// Search handles GET /voters/?q=&field=&page=&page_size=.
func (h *VoterHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := voters.SearchParams{
		Query: query.Get("q"),
		Field: query.Get("field"),
	}

	errs := make(map[string]string)
	if v := query.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			errs["page"] = "page must be a positive integer"
		}
		params.Page = page
	}
	if v := query.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			errs["page_size"] = "page_size must be an integer"
		}
		params.PageSize = size
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	viewer := voters.ViewerFor(middleware.GetUser(r.Context()))
	result, err := h.voters.Search(r.Context(), viewer, params)
	if err != nil {
		h.logger.Error("voter search failed", "error", err)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Search failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
