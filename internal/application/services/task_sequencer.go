package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/docuflow/backend/internal/domain"
	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/internal/domain/ports"
	"github.com/docuflow/backend/pkg/apperrors"
	"github.com/docuflow/backend/pkg/utils"
)

// Advisory due-date windows per stage. Not enforced anywhere; surfaced to
// dashboards as soft hints only.
const (
	uploadDueAfter  = 24 * time.Hour
	prepareDueAfter = 48 * time.Hour
	reviewDueAfter  = 24 * time.Hour
)

// txMaxRetries bounds deadlock retries on the mutation transactions.
// A retried transaction re-runs its compare-and-set predicates, so a
// replay can only lose cleanly, never double-apply.
const txMaxRetries = 3

// TaskSequencer owns per-task transitions: it creates the next task when the
// current one completes, applies the rejection/rework branch, and guards the
// ordering invariants before creating a review task. Exactly one task per
// instance is live at a time; the stage machine decides what comes next.
type TaskSequencer struct {
	instances     ports.InstanceRepository
	tasks         ports.TaskRepository
	notifications ports.NotificationRepository
	tx            ports.TransactionRunner
	stages        *domain.StageMachine
}

// NewTaskSequencer creates a new TaskSequencer
func NewTaskSequencer(
	instances ports.InstanceRepository,
	tasks ports.TaskRepository,
	notifications ports.NotificationRepository,
	tx ports.TransactionRunner,
) *TaskSequencer {
	return &TaskSequencer{
		instances:     instances,
		tasks:         tasks,
		notifications: notifications,
		tx:            tx,
		stages:        domain.NewStageMachine(),
	}
}

// EmitStart creates the auto-completed START task for a freshly activated
// instance and immediately advances to the UPLOAD stage. The caller is
// expected to run this inside the activation transaction.
func (s *TaskSequencer) EmitStart(ctx context.Context, instance *models.WorkflowInstance) error {
	now := time.Now().UTC()
	startTask := &models.WorkflowTask{
		ID:                 utils.GenerateID(),
		WorkflowInstanceID: instance.ID,
		Stage:              models.StageStart,
		Assignee:           instance.AssigneeFor(models.StageStart),
		Status:             models.TaskStatusCompleted,
		Instructions:       "Workflow started",
		CreatedAt:          now,
		CompletedAt:        &now,
		StartDate:          &instance.ScheduledStart,
		EndDate:            &now,
	}
	if err := s.tasks.Create(ctx, startTask); err != nil {
		return err
	}
	log.Printf("▶️ START task auto-completed for workflow '%s' (%s)", instance.Name, instance.ID)

	next, err := s.stages.Next(models.StageStart, domain.OutcomeCompleted)
	if err != nil {
		return err
	}
	if next != models.StageUpload {
		return apperrors.NewInvariantViolationError("stage progression", fmt.Sprintf("START advanced to %s", next))
	}
	return s.emitUpload(ctx, instance)
}

// emitUpload creates the PENDING upload task and notifies the uploader
func (s *TaskSequencer) emitUpload(ctx context.Context, instance *models.WorkflowInstance) error {
	now := time.Now().UTC()
	due := now.Add(uploadDueAfter)
	uploadTask := &models.WorkflowTask{
		ID:                 utils.GenerateID(),
		WorkflowInstanceID: instance.ID,
		Stage:              models.StageUpload,
		Assignee:           instance.AssigneeFor(models.StageUpload),
		Status:             models.TaskStatusPending,
		Instructions:       instance.Instructions,
		CreatedAt:          now,
		StartDate:          &now,
		EndDate:            &due,
	}
	if err := s.tasks.Create(ctx, uploadTask); err != nil {
		return err
	}

	message := fmt.Sprintf("New upload task assigned: %s", instance.Name)
	if err := s.notify(ctx, instance.Uploader, message, models.NotificationInfo); err != nil {
		return err
	}

	log.Printf("📄 UPLOAD task created for workflow '%s', assigned to %s", instance.Name, instance.Uploader)
	return nil
}

// CompleteUpload records the uploaded file on the task and advances the
// instance to the PREPARE stage. The whole operation is one transaction.
func (s *TaskSequencer) CompleteUpload(ctx context.Context, taskID, filePath, comments string) error {
	if filePath == "" {
		return apperrors.NewValidationError("filePath", "uploaded file path must not be empty")
	}

	return s.tx.WithRetry(ctx, func(txCtx context.Context) error {
		task, err := s.getTask(txCtx, taskID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		done, err := s.tasks.MarkUploadCompleted(txCtx, taskID, filePath, comments, now)
		if err != nil {
			return err
		}
		if !done {
			// Lost a race or wrong stage: the task is no longer a pending upload.
			return apperrors.NewNotFoundError("pending upload task", taskID)
		}

		instance, err := s.getInstanceForTask(txCtx, task)
		if err != nil {
			return err
		}

		next, err := s.stages.Next(models.StageUpload, domain.OutcomeCompleted)
		if err != nil {
			return err
		}
		log.Printf("✅ Upload completed for workflow '%s' - advancing to %s", instance.Name, next)
		return s.emitPrepare(txCtx, instance, filePath)
	}, txMaxRetries)
}

// emitPrepare creates the PENDING prepare task carrying the original file.
// Reached both on the normal forward path and on the rejection rework loop.
func (s *TaskSequencer) emitPrepare(ctx context.Context, instance *models.WorkflowInstance, originalFile string) error {
	now := time.Now().UTC()
	due := now.Add(prepareDueAfter)
	prepareTask := &models.WorkflowTask{
		ID:                 utils.GenerateID(),
		WorkflowInstanceID: instance.ID,
		Stage:              models.StagePrepare,
		Assignee:           instance.AssigneeFor(models.StagePrepare),
		Status:             models.TaskStatusPending,
		OriginalFilePath:   originalFile,
		Instructions:       instance.Instructions,
		CreatedAt:          now,
		StartDate:          &now,
		EndDate:            &due,
	}
	if err := s.tasks.Create(ctx, prepareTask); err != nil {
		return err
	}

	message := fmt.Sprintf("New preparation task assigned for: %s", instance.Name)
	if err := s.notify(ctx, instance.Preparator, message, models.NotificationInfo); err != nil {
		return err
	}

	log.Printf("🛠️ PREPARE task created for workflow '%s', assigned to %s", instance.Name, instance.Preparator)
	return nil
}

// CompletePrepare records the prepared file on the task and advances the
// instance to the REVIEW stage
func (s *TaskSequencer) CompletePrepare(ctx context.Context, taskID, preparedFile, comments string) error {
	if preparedFile == "" {
		return apperrors.NewValidationError("preparedFile", "prepared file path must not be empty")
	}

	return s.tx.WithRetry(ctx, func(txCtx context.Context) error {
		task, err := s.getTask(txCtx, taskID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		done, err := s.tasks.MarkPrepareCompleted(txCtx, taskID, preparedFile, comments, now)
		if err != nil {
			return err
		}
		if !done {
			return apperrors.NewNotFoundError("pending prepare task", taskID)
		}

		instance, err := s.getInstanceForTask(txCtx, task)
		if err != nil {
			return err
		}

		next, err := s.stages.Next(models.StagePrepare, domain.OutcomeCompleted)
		if err != nil {
			return err
		}
		log.Printf("✅ Prepare completed for workflow '%s' - advancing to %s", instance.Name, next)
		return s.emitReview(txCtx, instance, task.OriginalFilePath, preparedFile)
	}, txMaxRetries)
}

// emitReview creates the PENDING review task after verifying the instance
// actually has a completed upload. The guard should never fire under correct
// sequencing; if it does, it is a core bug and surfaces as an invariant
// violation instead of being papered over.
func (s *TaskSequencer) emitReview(ctx context.Context, instance *models.WorkflowInstance, originalFile, preparedFile string) error {
	completedUploads, err := s.tasks.CountCompleted(ctx, instance.ID, models.StageUpload)
	if err != nil {
		return err
	}
	if completedUploads == 0 {
		log.Printf("❌ INVARIANT VIOLATION: review requested without a completed upload (workflow '%s', %s)",
			instance.Name, instance.ID)
		return apperrors.NewInvariantViolationError("review requires a completed upload", instance.ID)
	}

	now := time.Now().UTC()
	due := now.Add(reviewDueAfter)
	reviewTask := &models.WorkflowTask{
		ID:                 utils.GenerateID(),
		WorkflowInstanceID: instance.ID,
		Stage:              models.StageReview,
		Assignee:           instance.AssigneeFor(models.StageReview),
		Status:             models.TaskStatusPending,
		OriginalFilePath:   originalFile,
		PreparedFilePath:   preparedFile,
		Instructions:       instance.Instructions,
		CreatedAt:          now,
		StartDate:          &now,
		EndDate:            &due,
	}
	if err := s.tasks.Create(ctx, reviewTask); err != nil {
		return err
	}

	message := fmt.Sprintf("New review task assigned for: %s", instance.Name)
	if err := s.notify(ctx, instance.Reviewer, message, models.NotificationInfo); err != nil {
		return err
	}

	log.Printf("🔍 REVIEW task created for workflow '%s', assigned to %s", instance.Name, instance.Reviewer)
	return nil
}

// CompleteReview applies the reviewer decision: approval finishes the
// workflow through the END stage, rejection loops back to PREPARE with the
// original upload preserved.
func (s *TaskSequencer) CompleteReview(ctx context.Context, taskID string, decision models.ReviewDecision, message string) error {
	if message == "" {
		return apperrors.NewValidationError("message", "review message must not be empty")
	}
	if decision != models.DecisionApproved && decision != models.DecisionRejected {
		return apperrors.NewValidationError("decision", fmt.Sprintf("decision must be %s or %s", models.DecisionApproved, models.DecisionRejected))
	}

	return s.tx.WithRetry(ctx, func(txCtx context.Context) error {
		task, err := s.getTask(txCtx, taskID)
		if err != nil {
			return err
		}

		outcome := domain.OutcomeApproved
		taskStatus := models.TaskStatusCompleted
		if decision == models.DecisionRejected {
			outcome = domain.OutcomeRejected
			taskStatus = models.TaskStatusRejected
		}

		next, err := s.stages.Next(models.StageReview, outcome)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		done, err := s.tasks.MarkReviewCompleted(txCtx, taskID, taskStatus, message, now)
		if err != nil {
			return err
		}
		if !done {
			return apperrors.NewNotFoundError("pending review task", taskID)
		}

		instance, err := s.getInstanceForTask(txCtx, task)
		if err != nil {
			return err
		}

		if next == models.StageEnd {
			log.Printf("👍 Document approved for workflow '%s' - completing", instance.Name)
			return s.emitEnd(txCtx, instance)
		}

		// Rework loop: back to PREPARE with the original upload, no new
		// upload required.
		log.Printf("👎 Document rejected for workflow '%s' - sending for rework", instance.Name)
		if err := s.emitPrepare(txCtx, instance, task.OriginalFilePath); err != nil {
			return err
		}

		rejection := fmt.Sprintf("Document rejected for: %s. Reviewer feedback: %s", instance.Name, message)
		return s.notify(txCtx, instance.Preparator, rejection, models.NotificationError)
	}, txMaxRetries)
}

// emitEnd creates the auto-completed END task, marks the instance COMPLETED
// and notifies every participant
func (s *TaskSequencer) emitEnd(ctx context.Context, instance *models.WorkflowInstance) error {
	now := time.Now().UTC()
	endTask := &models.WorkflowTask{
		ID:                 utils.GenerateID(),
		WorkflowInstanceID: instance.ID,
		Stage:              models.StageEnd,
		Assignee:           instance.AssigneeFor(models.StageEnd),
		Status:             models.TaskStatusCompleted,
		Instructions:       "Workflow completed successfully",
		CreatedAt:          now,
		CompletedAt:        &now,
		StartDate:          &now,
		EndDate:            &now,
	}
	if err := s.tasks.Create(ctx, endTask); err != nil {
		return err
	}

	if err := s.instances.Complete(ctx, instance.ID, now); err != nil {
		return err
	}
	log.Printf("🏁 Workflow '%s' completed at %s", instance.Name, now.Format(time.RFC3339))

	success := fmt.Sprintf("Workflow '%s' completed successfully!", instance.Name)
	for _, userID := range []string{instance.Uploader, instance.Preparator, instance.Reviewer} {
		if err := s.notify(ctx, userID, success, models.NotificationSuccess); err != nil {
			return err
		}
	}
	return nil
}

// GetTasksForAssignee returns the PENDING tasks assigned to a user
func (s *TaskSequencer) GetTasksForAssignee(ctx context.Context, userID string) ([]*models.WorkflowTask, error) {
	return s.tasks.ListPendingByAssignee(ctx, userID)
}

// GetTasksByInstance returns every task of a workflow instance in creation order
func (s *TaskSequencer) GetTasksByInstance(ctx context.Context, instanceID string) ([]*models.WorkflowTask, error) {
	if _, err := s.instances.GetByID(ctx, instanceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("workflow instance", instanceID)
		}
		return nil, err
	}
	return s.tasks.ListByInstance(ctx, instanceID)
}

func (s *TaskSequencer) getTask(ctx context.Context, taskID string) (*models.WorkflowTask, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("workflow task", taskID)
		}
		return nil, err
	}
	return task, nil
}

// getInstanceForTask resolves the owning instance of a task. A miss here is
// not a stale client: the task row points at an instance that vanished,
// which is data corruption and logged at the highest severity.
func (s *TaskSequencer) getInstanceForTask(ctx context.Context, task *models.WorkflowTask) (*models.WorkflowInstance, error) {
	instance, err := s.instances.GetByID(ctx, task.WorkflowInstanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("❌ FATAL: task %s references missing workflow instance %s - data corruption",
				task.ID, task.WorkflowInstanceID)
			return nil, apperrors.NewNotFoundError("workflow instance", task.WorkflowInstanceID)
		}
		return nil, err
	}
	return instance, nil
}

func (s *TaskSequencer) notify(ctx context.Context, userID, message string, nType models.NotificationType) error {
	return s.notifications.Create(ctx, &models.Notification{
		ID:        utils.GenerateID(),
		UserID:    userID,
		Message:   message,
		Type:      nType,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	})
}
