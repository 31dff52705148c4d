package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docuflow/backend/internal/domain/models"
)

// TaskRepository handles database operations for workflow tasks
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = "id, workflow_instance_id, stage, assignee, status, original_file_path, prepared_file_path, reviewer_message, user_comments, instructions, created_at, completed_at, start_date, end_date"

// Create inserts a new workflow task
func (r *TaskRepository) Create(ctx context.Context, task *models.WorkflowTask) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		TableWorkflowTask, taskColumns)

	_, err := querier(ctx, r.db).ExecContext(ctx, query,
		task.ID, task.WorkflowInstanceID, string(task.Stage), task.Assignee,
		string(task.Status), task.OriginalFilePath, task.PreparedFilePath,
		task.ReviewerMessage, task.UserComments, task.Instructions,
		task.CreatedAt, task.CompletedAt, task.StartDate, task.EndDate)
	if err != nil {
		return fmt.Errorf("failed to insert workflow task: %w", err)
	}
	return nil
}

// GetByID returns the task with the given id, or sql.ErrNoRows
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTask, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, taskColumns, TableWorkflowTask)

	rows, err := querier(ctx, r.db).QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, sql.ErrNoRows
	}
	return tasks[0], nil
}

// ListByInstance returns all tasks of an instance in creation order
func (r *TaskRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.WorkflowTask, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE workflow_instance_id = ? ORDER BY created_at`,
		taskColumns, TableWorkflowTask)
	rows, err := querier(ctx, r.db).QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks by instance: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListPendingByAssignee returns PENDING tasks assigned to a user
func (r *TaskRepository) ListPendingByAssignee(ctx context.Context, userID string) ([]*models.WorkflowTask, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE assignee = ? AND status = ? ORDER BY created_at`,
		taskColumns, TableWorkflowTask)
	rows, err := querier(ctx, r.db).QueryContext(ctx, query, userID, string(models.TaskStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// CountCompleted counts COMPLETED tasks of the given stage in an instance
func (r *TaskRepository) CountCompleted(ctx context.Context, instanceID string, stage models.Stage) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE workflow_instance_id = ? AND stage = ? AND status = ?`,
		TableWorkflowTask)
	var count int
	err := querier(ctx, r.db).QueryRowContext(ctx, query,
		instanceID, string(stage), string(models.TaskStatusCompleted)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed tasks: %w", err)
	}
	return count, nil
}

// MarkUploadCompleted records the uploaded file on a still-pending upload task.
// The status predicate serializes racing completions: the loser sees zero rows.
func (r *TaskRepository) MarkUploadCompleted(ctx context.Context, id, filePath, comments string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, original_file_path = ?, user_comments = ?, completed_at = ? WHERE id = ? AND stage = ? AND status = ?`,
		TableWorkflowTask)
	return r.execCompletion(ctx, query,
		string(models.TaskStatusCompleted), filePath, comments, at,
		id, string(models.StageUpload), string(models.TaskStatusPending))
}

// MarkPrepareCompleted records the prepared file on a still-pending prepare task
func (r *TaskRepository) MarkPrepareCompleted(ctx context.Context, id, preparedPath, comments string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, prepared_file_path = ?, user_comments = ?, completed_at = ? WHERE id = ? AND stage = ? AND status = ?`,
		TableWorkflowTask)
	return r.execCompletion(ctx, query,
		string(models.TaskStatusCompleted), preparedPath, comments, at,
		id, string(models.StagePrepare), string(models.TaskStatusPending))
}

// MarkReviewCompleted records the reviewer decision on a still-pending review task
func (r *TaskRepository) MarkReviewCompleted(ctx context.Context, id string, status models.TaskStatus, message string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, reviewer_message = ?, user_comments = ?, completed_at = ? WHERE id = ? AND stage = ? AND status = ?`,
		TableWorkflowTask)
	return r.execCompletion(ctx, query,
		string(status), message, message, at,
		id, string(models.StageReview), string(models.TaskStatusPending))
}

func (r *TaskRepository) execCompletion(ctx context.Context, query string, args ...interface{}) (bool, error) {
	result, err := querier(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to complete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func scanTasks(rows *sql.Rows) ([]*models.WorkflowTask, error) {
	var tasks []*models.WorkflowTask
	for rows.Next() {
		var task models.WorkflowTask
		var stage, status string
		var originalPath, preparedPath, reviewerMsg, comments, instructions sql.NullString
		var completedAt, startDate, endDate sql.NullTime

		err := rows.Scan(&task.ID, &task.WorkflowInstanceID, &stage, &task.Assignee,
			&status, &originalPath, &preparedPath, &reviewerMsg, &comments,
			&instructions, &task.CreatedAt, &completedAt, &startDate, &endDate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow task: %w", err)
		}

		task.Stage = models.Stage(stage)
		task.Status = models.TaskStatus(status)
		task.OriginalFilePath = originalPath.String
		task.PreparedFilePath = preparedPath.String
		task.ReviewerMessage = reviewerMsg.String
		task.UserComments = comments.String
		task.Instructions = instructions.String
		if completedAt.Valid {
			task.CompletedAt = &completedAt.Time
		}
		if startDate.Valid {
			task.StartDate = &startDate.Time
		}
		if endDate.Valid {
			task.EndDate = &endDate.Time
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}
