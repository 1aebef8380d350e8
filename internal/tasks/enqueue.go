package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/hugh/turnout-tracker/pkg/queue"
)

var ErrImportNotFound = errors.New("import task not found")

// Enqueuer is the part of *asynq.Client the API needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskInspector is the part of *asynq.Inspector the API needs.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

var (
	_ Enqueuer      = (*asynq.Client)(nil)
	_ TaskInspector = (*asynq.Inspector)(nil)
)

// ImportStatus is what the API reports for a queued import.
type ImportStatus struct {
	TaskID   string          `json:"task_id"`
	Type     string          `json:"type"`
	Queue    string          `json:"queue"`
	State    string          `json:"state"`
	Retried  int             `json:"retried"`
	LastErr  string          `json:"error,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Finished bool            `json:"finished"`
}

// LookupImport finds an import task in any queue.
func LookupImport(inspector TaskInspector, id string) (*ImportStatus, error) {
	for _, q := range []string{queue.QueueDefault, queue.QueueCritical, queue.QueueLow} {
		info, err := inspector.GetTaskInfo(q, id)
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("inspecting task: %w", err)
		}
		if info.Type != TypeVoterImport && info.Type != TypeVotedImport {
			return nil, ErrImportNotFound
		}

		status := &ImportStatus{
			TaskID:   info.ID,
			Type:     info.Type,
			Queue:    info.Queue,
			State:    info.State.String(),
			Retried:  info.Retried,
			LastErr:  info.LastErr,
			Finished: info.State == asynq.TaskStateCompleted || info.State == asynq.TaskStateArchived,
		}
		if len(info.Result) > 0 && json.Valid(info.Result) {
			status.Result = json.RawMessage(info.Result)
		}
		return status, nil
	}
	return nil, ErrImportNotFound
}
