package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/hugh/turnout-tracker/internal/api/dto"
	"github.com/hugh/turnout-tracker/internal/api/middleware"
	"github.com/hugh/turnout-tracker/internal/api/validation"
	"github.com/hugh/turnout-tracker/internal/tasks"
	"github.com/hugh/turnout-tracker/internal/voters"
)

type ImportHandler struct {
	importer       *voters.Importer
	voters         *voters.Service
	enqueuer       tasks.Enqueuer
	inspector      tasks.TaskInspector
	stagingDir     string
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewImportHandler wires the admin voter endpoints. enqueuer and inspector
// may be nil, in which case only synchronous imports are available.
func NewImportHandler(importer *voters.Importer, svc *voters.Service, enqueuer tasks.Enqueuer, inspector tasks.TaskInspector, stagingDir string, maxUploadBytes int64, logger *slog.Logger) *ImportHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	return &ImportHandler{
		importer:       importer,
		voters:         svc,
		enqueuer:       enqueuer,
		inspector:      inspector,
		stagingDir:     stagingDir,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Import handles POST /admin/voters/import.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, tasks.NewVoterImportTask, func(rd io.Reader) (any, error) {
		return h.importer.ImportVoters(r.Context(), rd)
	})
}

// ImportVoted handles POST /admin/voters/import-voted.
func (h *ImportHandler) ImportVoted(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, tasks.NewVotedImportTask, func(rd io.Reader) (any, error) {
		return h.importer.ImportVoted(r.Context(), rd)
	})
}

func (h *ImportHandler) handle(w http.ResponseWriter, r *http.Request, newTask func(tasks.ImportPayload) (*asynq.Task, error), run func(io.Reader) (any, error)) {
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async && h.enqueuer == nil {
		writeError(w, http.StatusServiceUnavailable, dto.KindUnavailable, "Background imports are not configured")
		return
	}

	file, header, ok := formFile(w, r, h.maxUploadBytes)
	if !ok {
		return
	}
	defer file.Close()

	if !validation.IsCSVFilename(header.Filename) {
		writeValidation(w, map[string]string{"file": "File must be a .csv or .txt file"})
		return
	}

	if async {
		h.enqueue(w, r, header.Filename, file, newTask)
		return
	}

	result, err := run(file)
	if err != nil {
		if errors.Is(err, voters.ErrEmptyFile) ||
			errors.Is(err, voters.ErrMissingVoterIDColumn) ||
			errors.Is(err, voters.ErrMalformedCSV) {
			writeError(w, http.StatusBadRequest, dto.KindValidation, err.Error())
			return
		}
		h.logger.Error("import failed", "error", err, "file", header.Filename)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Import failed")
		return
	}

	h.logger.Info("import completed", "path", r.URL.Path, "file", header.Filename,
		"user_id", middleware.GetUserID(r.Context()))
	writeJSON(w, http.StatusOK, result)
}

func (h *ImportHandler) enqueue(w http.ResponseWriter, r *http.Request, filename string, file io.Reader, newTask func(tasks.ImportPayload) (*asynq.Task, error)) {
	path, err := tasks.Stage(h.stagingDir, file)
	if err != nil {
		h.logger.Error("staging import failed", "error", err)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to stage upload")
		return
	}

	task, err := newTask(tasks.ImportPayload{
		Path:        path,
		Filename:    filename,
		RequestedBy: middleware.GetUserID(r.Context()),
	})
	if err == nil {
		var info *asynq.TaskInfo
		if info, err = h.enqueuer.EnqueueContext(r.Context(), task); err == nil {
			h.logger.Info("import queued", "task_id", info.ID, "type", info.Type, "file", filename)
			writeJSON(w, http.StatusAccepted, dto.ImportQueuedResponse{
				TaskID:    info.ID,
				Queue:     info.Queue,
				StatusURL: "/admin/imports/" + info.ID,
			})
			return
		}
	}

	_ = os.Remove(path)
	h.logger.Error("enqueue import failed", "error", err)
	writeError(w, http.StatusServiceUnavailable, dto.KindUnavailable, "Failed to queue import")
}

// Status handles GET /admin/imports/{taskID}.
func (h *ImportHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		writeError(w, http.StatusServiceUnavailable, dto.KindUnavailable, "Background imports are not configured")
		return
	}

	status, err := tasks.LookupImport(h.inspector, chi.URLParam(r, "taskID"))
	if err != nil {
		if errors.Is(err, tasks.ErrImportNotFound) {
			writeError(w, http.StatusNotFound, dto.KindNotFound, "Import not found")
			return
		}
		h.logger.Error("import status lookup failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, dto.KindUnavailable, "Queue unavailable")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// DeleteAll handles DELETE /admin/voters/delete-all.
func (h *ImportHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.voters.DeleteAll(r.Context())
	if err != nil {
		h.logger.Error("delete all voters failed", "error", err)
		writeError(w, http.StatusInternalServerError, dto.KindInternal, "Failed to delete voters")
		return
	}

	h.logger.Warn("all voters deleted",
		"voters", result.Deleted,
		"tags", result.DeletedTags,
		"user_id", middleware.GetUserID(r.Context()),
	)
	writeJSON(w, http.StatusOK, result)
}
