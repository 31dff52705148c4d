package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/pkg/apperrors"
)

func pendingTaskAt(t *testing.T, env *testEnv, instanceID string, stage models.Stage) *models.WorkflowTask {
	t.Helper()
	tasks, err := env.tasks.ListByInstance(context.Background(), instanceID)
	require.NoError(t, err)
	for _, task := range tasks {
		if task.Stage == stage && task.Status == models.TaskStatusPending {
			return task
		}
	}
	t.Fatalf("no pending %s task for instance %s", stage, instanceID)
	return nil
}

func TestCompleteUploadAdvancesToPrepare(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	instance, err := env.scheduler.Submit(ctx, validSubmit(time.Now().UTC().Add(-time.Hour)))
	require.NoError(t, err)

	upload := pendingTaskAt(t, env, instance.ID, models.StageUpload)
	assert.Equal(t, "2", upload.Assignee)

	err = env.sequencer.CompleteUpload(ctx, upload.ID, "/files/report.xlsx", "initial upload")
	require.NoError(t, err)

	completed, err := env.tasks.GetByID(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, completed.Status)
	assert.Equal(t, "/files/report.xlsx", completed.OriginalFilePath)
	require.NotNil(t, completed.CompletedAt)

	prepare := pendingTaskAt(t, env, instance.ID, models.StagePrepare)
	assert.Equal(t, "3", prepare.Assignee)
	assert.Equal(t, "/files/report.xlsx", prepare.OriginalFilePath)

	notes, err := env.notifications.ListByUser(ctx, "3", false)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "New preparation task assigned for: Q1 Report", notes[0].Message)
	assert.Equal(t, models.NotificationInfo, notes[0].Type)
}

func TestCompleteUploadRejectsEmptyPath(t *testing.T) {
	env := newTestEnv()
	err := env.sequencer.CompleteUpload(context.Background(), "task-1", "", "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestCompleteUploadUnknownTask(t *testing.T) {
	env := newTestEnv()
	err := env.sequencer.CompleteUpload(context.Background(), "no-such-task", "/files/a.xlsx", "")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCompleteUploadAlreadyCompleted(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	instance, err := env.scheduler.Submit(ctx, validSubmit(time.Now().UTC().Add(-time.Hour)))
	require.NoError(t, err)
	upload := pendingTaskAt(t, env, instance.ID, models.StageUpload)

	require.NoError(t, env.sequencer.CompleteUpload(ctx, upload.ID, "/files/a.xlsx", ""))

	// Second completion loses the compare-and-set and must not emit a
	// second prepare task.
	err = env.sequencer.CompleteUpload(ctx, upload.ID, "/files/b.xlsx", "")
	assert.True(t, apperrors.IsNotFound(err))

	tasks, err := env.tasks.ListByInstance(ctx, instance.ID)
	require.NoError(t, err)
	prepares := 0
	for _, task := range tasks {
		if task.Stage == models.StagePrepare {
			prepares++
		}
	}
	assert.Equal(t, 1, prepares)
}

func TestCompletePrepareAdvancesToReview(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	instance, err := env.scheduler.Submit(ctx, validSubmit(time.Now().UTC().Add(-time.Hour)))
	require.NoError(t, err)
	upload := pendingTaskAt(t, env, instance.ID, models.StageUpload)
	require.NoError(t, env.sequencer.CompleteUpload(ctx, upload.ID, "/files/report.xlsx", ""))

	prepare := pendingTaskAt(t, env, instance.ID, models.StagePrepare)
	require.NoError(t, env.sequencer.CompletePrepare(ctx, prepare.ID, "/files/report_prepared.xlsx", "cleaned up"))

	review := pendingTaskAt(t, env, instance.ID, models.StageReview)
	assert.Equal(t, "4", review.Assignee)
	assert.Equal(t, "/files/report.xlsx", review.OriginalFilePath)
	assert.Equal(t, "/files/report_prepared.xlsx", review.PreparedFilePath)

	notes, err := env.notifications.ListByUser(ctx, "4", false)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "New review task assigned for: Q1 Report", notes[0].Message)
}

func TestReviewApprovalCompletesWorkflow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	instance, err := env.scheduler.Submit(ctx, validSubmit(time.Now().UTC().Add(-time.Hour)))
	require.NoError(t, err)
	upload := pendingTaskAt(t, env, instance.ID, models.StageUpload)
	require.NoError(t, env.sequencer.CompleteUpload(ctx, upload.ID, "/files/report.xlsx", ""))
	prepare := pendingTaskAt(t, env, instance.ID, models.StagePrepare)
	require.NoError(t, env.sequencer.CompletePrepare(ctx, prepare.ID, "/files/report_prepared.xlsx", ""))
	review := pendingTaskAt(t, env, instance.ID, models.StageReview)

	require.NoError(t, env.sequencer.CompleteReview(ctx, review.ID, models.DecisionApproved, "looks good"))

	got, err := env.instances.GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, got.Status)
	require.NotNil(t, got.EndTime)

	tasks, err := env.tasks.ListByInstance(ctx, instance.ID)
	require.NoError(t, err)
	var endTask *models.WorkflowTask
	for _, task := range tasks {
		assert.NotEqual(t, models.TaskStatusPending, task.Status)
		if task.Stage == models.StageEnd {
			endTask = task
		}
	}
	require.NotNil(t, endTask)
	assert.Equal(t, models.TaskStatusCompleted, endTask.Status)

	for _, userID := range []string{"2", "3", "4"} {
		notes, err := env.notifications.ListByUser(ctx, userID, false)
		require.NoError(t, err)
		found := false
		for _, n := range notes {
			if n.Message == "Workflow 'Q1 Report' completed successfully!" {
				found = true
				assert.Equal(t, models.NotificationSuccess, n.Type)
			}
		}
		assert.True(t, found, "completion notification missing for user %s", userID)
	}
}

func TestReviewRejectionLoopsBackToPrepare(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	instance, err := env.scheduler.Submit(ctx, validSubmit(time.Now().UTC().Add(-time.Hour)))
	require.NoError(t, err)
	upload := pendingTaskAt(t, env, instance.ID, models.StageUpload)
	require.NoError(t, env.sequencer.CompleteUpload(ctx, upload.ID, "/files/report.xlsx", ""))
	prepare := pendingTaskAt(t, env, instance.ID, models.StagePrepare)
	require.NoError(t, env.sequencer.CompletePrepare(ctx, prepare.ID, "/files/report_prepared.xlsx", ""))
	review := pendingTaskAt(t, env, instance.ID, models.StageReview)

	require.NoError(t, env.sequencer.CompleteReview(ctx, review.ID, models.DecisionRejected, "redo the headers"))

	rejected, err := env.tasks.GetByID(ctx, review.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRejected, rejected.Status)
	assert.Equal(t, "redo the headers", rejected.ReviewerMessage)

	// Instance stays ACTIVE with a fresh prepare task carrying the original
	// upload; no new upload task appears.
	got, err := env.instances.GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusActive, got.Status)

	rework := pendingTaskAt(t, env, instance.ID, models.StagePrepare)
	assert.NotEqual(t, prepare.ID, rework.ID)
	assert.Equal(t, "3", rework.Assignee)
	assert.Equal(t, "/files/report.xlsx", rework.OriginalFilePath)

	tasks, err := env.tasks.ListByInstance(ctx, instance.ID)
	require.NoError(t, err)
	uploads := 0
	for _, task := range tasks {
		if task.Stage == models.StageUpload {
			uploads++
		}
	}
	assert.Equal(t, 1, uploads)

	notes, err := env.notifications.ListByUser(ctx, "3", false)
	require.NoError(t, err)
	found := false
	for _, n := range notes {
		if n.Type == models.NotificationError {
			found = true
			assert.Equal(t, "Document rejected for: Q1 Report. Reviewer feedback: redo the headers", n.Message)
		}
	}
	assert.True(t, found, "rejection notification missing")
}

func TestReviewValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	err := env.sequencer.CompleteReview(ctx, "task-1", models.DecisionRejected, "")
	assert.True(t, apperrors.IsValidation(err))

	err = env.sequencer.CompleteReview(ctx, "task-1", models.ReviewDecision("MAYBE"), "hmm")
	assert.True(t, apperrors.IsValidation(err))
}

func TestReviewWithoutCompletedUploadIsInvariantViolation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	instance, err := env.scheduler.Submit(ctx, validSubmit(time.Now().UTC().Add(-time.Hour)))
	require.NoError(t, err)

	// No upload has been completed for this instance.
	err = env.sequencer.emitReview(ctx, instance, "/files/a.xlsx", "/files/b.xlsx")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvariantViolation(err))
	assert.True(t, strings.Contains(err.Error(), "completed upload"))
}

func TestRejectionReworkRoundTrip(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	instance, err := env.scheduler.Submit(ctx, validSubmit(time.Now().UTC().Add(-time.Hour)))
	require.NoError(t, err)

	upload := pendingTaskAt(t, env, instance.ID, models.StageUpload)
	require.NoError(t, env.sequencer.CompleteUpload(ctx, upload.ID, "f1.xlsx", ""))

	prepare := pendingTaskAt(t, env, instance.ID, models.StagePrepare)
	require.NoError(t, env.sequencer.CompletePrepare(ctx, prepare.ID, "f1_prepared.xlsx", ""))

	review := pendingTaskAt(t, env, instance.ID, models.StageReview)
	require.NoError(t, env.sequencer.CompleteReview(ctx, review.ID, models.DecisionRejected, "redo headers"))

	rework := pendingTaskAt(t, env, instance.ID, models.StagePrepare)
	assert.Equal(t, "f1.xlsx", rework.OriginalFilePath)
	require.NoError(t, env.sequencer.CompletePrepare(ctx, rework.ID, "f1_v2.xlsx", ""))

	secondReview := pendingTaskAt(t, env, instance.ID, models.StageReview)
	assert.Equal(t, "f1_v2.xlsx", secondReview.PreparedFilePath)
	require.NoError(t, env.sequencer.CompleteReview(ctx, secondReview.ID, models.DecisionApproved, "approved"))

	got, err := env.instances.GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCompleted, got.Status)

	tasks, err := env.tasks.ListByInstance(ctx, instance.ID)
	require.NoError(t, err)
	// START, UPLOAD, PREPARE, REVIEW(rejected), PREPARE, REVIEW, END
	assert.Len(t, tasks, 7)
	for _, task := range tasks {
		assert.NotEqual(t, models.TaskStatusPending, task.Status)
	}
}

func TestGetTasksForAssignee(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.scheduler.Submit(ctx, validSubmit(time.Now().UTC().Add(-time.Hour)))
	require.NoError(t, err)

	mine, err := env.sequencer.GetTasksForAssignee(ctx, "2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.StageUpload, mine[0].Stage)

	none, err := env.sequencer.GetTasksForAssignee(ctx, "3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetTasksByInstanceUnknown(t *testing.T) {
	env := newTestEnv()
	_, err := env.sequencer.GetTasksByInstance(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}
