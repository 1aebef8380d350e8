package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/turnout-tracker/pkg/queue"
)

// Task type names
const (
	TypeVoterImport    = "import:voters"
	TypeVotedImport    = "import:voted"
	TypeUploadsCleanup = "uploads:cleanup"
)

// Results of finished imports stay readable this long.
const resultRetention = 24 * time.Hour

// ImportPayload points a worker at a staged upload.
type ImportPayload struct {
	Path        string    `json:"path"`
	Filename    string    `json:"filename"`
	RequestedBy uuid.UUID `json:"requested_by"`
}

func NewVoterImportTask(payload ImportPayload) (*asynq.Task, error) {
	return newImportTask(TypeVoterImport, payload)
}

func NewVotedImportTask(payload ImportPayload) (*asynq.Task, error) {
	return newImportTask(TypeVotedImport, payload)
}

func newImportTask(typename string, payload ImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, data,
		asynq.Queue(queue.QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(resultRetention),
	), nil
}

// NewUploadsCleanupTask has no payload; the worker knows its staging directory.
func NewUploadsCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeUploadsCleanup, nil, asynq.Queue(queue.QueueLow), asynq.MaxRetry(1))
}
