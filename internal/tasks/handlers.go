package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/turnout-tracker/internal/voters"
)

type Handler struct {
	importer   *voters.Importer
	logger     *slog.Logger
	stagingDir string
	stagingTTL time.Duration
	now        func() time.Time
}

func NewHandler(importer *voters.Importer, logger *slog.Logger, stagingDir string, stagingTTL time.Duration) *Handler {
	if stagingTTL <= 0 {
		stagingTTL = 24 * time.Hour
	}
	return &Handler{
		importer:   importer,
		logger:     logger,
		stagingDir: stagingDir,
		stagingTTL: stagingTTL,
		now:        time.Now,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeVoterImport, h.HandleVoterImport)
	mux.HandleFunc(TypeVotedImport, h.HandleVotedImport)
	mux.HandleFunc(TypeUploadsCleanup, h.HandleUploadsCleanup)
}

func (h *Handler) HandleVoterImport(ctx context.Context, t *asynq.Task) error {
	return h.runImport(ctx, t, func(ctx context.Context, r io.Reader) (any, error) {
		return h.importer.ImportVoters(ctx, r)
	})
}

func (h *Handler) HandleVotedImport(ctx context.Context, t *asynq.Task) error {
	return h.runImport(ctx, t, func(ctx context.Context, r io.Reader) (any, error) {
		return h.importer.ImportVoted(ctx, r)
	})
}

func (h *Handler) runImport(ctx context.Context, t *asynq.Task, run func(context.Context, io.Reader) (any, error)) error {
	var payload ImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("starting import",
		"type", t.Type(),
		"file", payload.Filename,
		"requested_by", payload.RequestedBy,
	)

	f, err := os.Open(payload.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("staged file missing: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("opening staged file: %w", err)
	}
	defer f.Close()

	result, err := run(ctx, f)
	if err != nil {
		if isBadInput(err) {
			h.removeStaged(payload.Path)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		h.logger.Error("import failed", "type", t.Type(), "error", err)
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write(data); err != nil {
			h.logger.Warn("failed to write task result", "task_id", rw.TaskID(), "error", err)
		}
	}

	h.removeStaged(payload.Path)
	h.logger.Info("completed import", "type", t.Type(), "file", payload.Filename)
	return nil
}

func isBadInput(err error) bool {
	return errors.Is(err, voters.ErrEmptyFile) ||
		errors.Is(err, voters.ErrMissingVoterIDColumn) ||
		errors.Is(err, voters.ErrMalformedCSV)
}

func (h *Handler) removeStaged(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		h.logger.Warn("failed to remove staged file", "path", path, "error", err)
	}
}

// HandleUploadsCleanup deletes staged imports older than the TTL. Files of
// imports that never ran are left until then so retries can still read them.
func (h *Handler) HandleUploadsCleanup(ctx context.Context, t *asynq.Task) error {
	removed, err := h.CleanupStaged(ctx)
	if err != nil {
		return err
	}
	h.logger.Info("staged uploads cleaned", "removed", removed)
	return nil
}

func (h *Handler) CleanupStaged(ctx context.Context) (int, error) {
	cutoff := h.now().Add(-h.stagingTTL)
	removed := 0

	err := filepath.WalkDir(h.stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("walking staging dir: %w", err)
	}
	return removed, nil
}
