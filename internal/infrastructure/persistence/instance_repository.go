package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docuflow/backend/internal/domain/models"
)

// InstanceRepository handles database operations for workflow instances
type InstanceRepository struct {
	db *sql.DB
}

// NewInstanceRepository creates a new InstanceRepository
func NewInstanceRepository(db *sql.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

const instanceColumns = "id, name, started_by, status, scheduled_start, actual_start, end_time, frequency, uploader, preparator, reviewer, instructions"

// Create inserts a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *models.WorkflowInstance) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		TableWorkflowInstance, instanceColumns)

	_, err := querier(ctx, r.db).ExecContext(ctx, query,
		instance.ID, instance.Name, instance.StartedBy, string(instance.Status),
		instance.ScheduledStart, instance.ActualStart, instance.EndTime,
		string(instance.Frequency), instance.Uploader, instance.Preparator,
		instance.Reviewer, instance.Instructions)
	if err != nil {
		return fmt.Errorf("failed to insert workflow instance: %w", err)
	}
	return nil
}

// GetByID returns the instance with the given id, or sql.ErrNoRows
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, instanceColumns, TableWorkflowInstance)
	row := querier(ctx, r.db).QueryRowContext(ctx, query, id)
	return scanInstance(row)
}

// ListByStatus returns all instances with the given status, newest first
func (r *InstanceRepository) ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = ? ORDER BY scheduled_start DESC`,
		instanceColumns, TableWorkflowInstance)
	rows, err := querier(ctx, r.db).QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query instances by status: %w", err)
	}
	defer rows.Close()
	return scanInstances(rows)
}

// ListDue returns SCHEDULED instances whose scheduled start is at or before now
func (r *InstanceRepository) ListDue(ctx context.Context, now time.Time) ([]*models.WorkflowInstance, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = ? AND scheduled_start <= ? ORDER BY scheduled_start`,
		instanceColumns, TableWorkflowInstance)
	rows, err := querier(ctx, r.db).QueryContext(ctx, query, string(models.InstanceStatusScheduled), now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due instances: %w", err)
	}
	defer rows.Close()
	return scanInstances(rows)
}

// Activate atomically flips SCHEDULED -> ACTIVE. The status predicate is the
// compare-and-set guard: a sweep and a concurrent submit cannot both win.
func (r *InstanceRepository) Activate(ctx context.Context, id string, now time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, actual_start = ? WHERE id = ? AND status = ?`,
		TableWorkflowInstance)
	result, err := querier(ctx, r.db).ExecContext(ctx, query,
		string(models.InstanceStatusActive), now, id, string(models.InstanceStatusScheduled))
	if err != nil {
		return false, fmt.Errorf("failed to activate instance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// Complete flips the instance to COMPLETED and records the end time
func (r *InstanceRepository) Complete(ctx context.Context, id string, now time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, end_time = ? WHERE id = ?`, TableWorkflowInstance)
	_, err := querier(ctx, r.db).ExecContext(ctx, query,
		string(models.InstanceStatusCompleted), now, id)
	if err != nil {
		return fmt.Errorf("failed to complete instance: %w", err)
	}
	return nil
}

func scanInstance(row *sql.Row) (*models.WorkflowInstance, error) {
	var instance models.WorkflowInstance
	var status, frequency string
	var actualStart, endTime sql.NullTime

	err := row.Scan(&instance.ID, &instance.Name, &instance.StartedBy, &status,
		&instance.ScheduledStart, &actualStart, &endTime, &frequency,
		&instance.Uploader, &instance.Preparator, &instance.Reviewer, &instance.Instructions)
	if err != nil {
		return nil, err
	}

	instance.Status = models.InstanceStatus(status)
	instance.Frequency = models.Frequency(frequency)
	if actualStart.Valid {
		instance.ActualStart = &actualStart.Time
	}
	if endTime.Valid {
		instance.EndTime = &endTime.Time
	}
	return &instance, nil
}

func scanInstances(rows *sql.Rows) ([]*models.WorkflowInstance, error) {
	var instances []*models.WorkflowInstance
	for rows.Next() {
		var instance models.WorkflowInstance
		var status, frequency string
		var actualStart, endTime sql.NullTime

		err := rows.Scan(&instance.ID, &instance.Name, &instance.StartedBy, &status,
			&instance.ScheduledStart, &actualStart, &endTime, &frequency,
			&instance.Uploader, &instance.Preparator, &instance.Reviewer, &instance.Instructions)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow instance: %w", err)
		}

		instance.Status = models.InstanceStatus(status)
		instance.Frequency = models.Frequency(frequency)
		if actualStart.Valid {
			instance.ActualStart = &actualStart.Time
		}
		if endTime.Valid {
			instance.EndTime = &endTime.Time
		}
		instances = append(instances, &instance)
	}
	return instances, rows.Err()
}
