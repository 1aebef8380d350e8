package tasks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/turnout-tracker/internal/database/models"
	"github.com/hugh/turnout-tracker/internal/testutil"
	"github.com/hugh/turnout-tracker/internal/voters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T) (*Handler, *testutil.TestSetup, string) {
	t.Helper()
	setup := testutil.NewTestContext(t)
	dir := t.TempDir()
	importer := voters.NewImporter(setup.DB, testLogger())
	return NewHandler(importer, testLogger(), dir, time.Hour), setup, dir
}

func importTask(t *testing.T, typename, path string) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(ImportPayload{Path: path, Filename: "upload.csv", RequestedBy: uuid.New()})
	require.NoError(t, err)
	return asynq.NewTask(typename, data)
}

func TestStage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "imports")

	path, err := Stage(dir, strings.NewReader("voter_id\nV1\n"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "voter_id\nV1\n", string(data))
}

func TestHandleVoterImport(t *testing.T) {
	handler, setup, dir := newTestHandler(t)
	defer setup.Cleanup()

	path, err := Stage(dir, strings.NewReader("voter_id,first_name,last_name\nV1,Ann,Lee\nV2,Bob,Adams\n"))
	require.NoError(t, err)

	err = handler.HandleVoterImport(context.Background(), importTask(t, TypeVoterImport, path))
	require.NoError(t, err)

	var count int64
	require.NoError(t, setup.DB.Model(&models.Voter{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// Staged file is removed once imported.
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestHandleVotedImport(t *testing.T) {
	handler, setup, dir := newTestHandler(t)
	defer setup.Cleanup()

	testutil.CreateTestVoter(t, setup.DB, "V1")

	path, err := Stage(dir, strings.NewReader("V1\nV2\n"))
	require.NoError(t, err)

	require.NoError(t, handler.HandleVotedImport(context.Background(), importTask(t, TypeVotedImport, path)))

	var v models.Voter
	require.NoError(t, setup.DB.Where("voter_id = ?", "V1").First(&v).Error)
	assert.True(t, v.HasVoted)
}

func TestHandleImport_BadInputSkipsRetry(t *testing.T) {
	handler, setup, dir := newTestHandler(t)
	defer setup.Cleanup()

	t.Run("invalid payload", func(t *testing.T) {
		err := handler.HandleVoterImport(context.Background(), asynq.NewTask(TypeVoterImport, []byte("invalid json")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unmarshal payload")
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("missing staged file", func(t *testing.T) {
		err := handler.HandleVoterImport(context.Background(), importTask(t, TypeVoterImport, filepath.Join(dir, "gone.csv")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("file without voter_id column", func(t *testing.T) {
		path, err := Stage(dir, strings.NewReader("first_name\nAnn\n"))
		require.NoError(t, err)

		err = handler.HandleVoterImport(context.Background(), importTask(t, TypeVoterImport, path))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.ErrorIs(t, err, voters.ErrMissingVoterIDColumn)
	})
}

func TestCleanupStaged(t *testing.T) {
	handler, setup, dir := newTestHandler(t)
	defer setup.Cleanup()

	oldPath, err := Stage(dir, strings.NewReader("old"))
	require.NoError(t, err)
	freshPath, err := Stage(dir, strings.NewReader("fresh"))
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	removed, err := handler.CleanupStaged(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshPath)
	assert.NoError(t, err)
}

func TestCleanupStaged_MissingDir(t *testing.T) {
	importer := voters.NewImporter(nil, testLogger())
	handler := NewHandler(importer, testLogger(), filepath.Join(t.TempDir(), "nope"), time.Hour)

	removed, err := handler.CleanupStaged(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

type fakeInspector struct {
	tasks map[string]*asynq.TaskInfo
}

func (f *fakeInspector) GetTaskInfo(queue, id string) (*asynq.TaskInfo, error) {
	info, ok := f.tasks[queue+"/"+id]
	if !ok {
		return nil, asynq.ErrTaskNotFound
	}
	return info, nil
}

func TestLookupImport(t *testing.T) {
	inspector := &fakeInspector{tasks: map[string]*asynq.TaskInfo{
		"default/t1": {
			ID:     "t1",
			Queue:  "default",
			Type:   TypeVoterImport,
			State:  asynq.TaskStateCompleted,
			Result: []byte(`{"imported":2,"updated":0,"skipped":0,"errors":[]}`),
		},
		"low/c1": {ID: "c1", Queue: "low", Type: TypeUploadsCleanup, State: asynq.TaskStatePending},
	}}

	status, err := LookupImport(inspector, "t1")
	require.NoError(t, err)
	assert.Equal(t, "completed", status.State)
	assert.True(t, status.Finished)
	assert.JSONEq(t, `{"imported":2,"updated":0,"skipped":0,"errors":[]}`, string(status.Result))

	_, err = LookupImport(inspector, "c1")
	assert.ErrorIs(t, err, ErrImportNotFound)

	_, err = LookupImport(inspector, "missing")
	assert.ErrorIs(t, err, ErrImportNotFound)
}
