// Package ports defines the interfaces the application services depend on.
// Infrastructure provides the SQL-backed implementations; tests provide
// in-memory fakes. Services never reach for a database handle directly.
package ports

import (
	"context"
	"time"

	"github.com/docuflow/backend/internal/domain/models"
)

// InstanceRepository persists workflow instances
type InstanceRepository interface {
	Create(ctx context.Context, instance *models.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	ListByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error)
	// ListDue returns SCHEDULED instances whose scheduled start is at or before now
	ListDue(ctx context.Context, now time.Time) ([]*models.WorkflowInstance, error)
	// Activate flips SCHEDULED -> ACTIVE and records the actual start.
	// It is a compare-and-set: returns false when the instance was not in
	// SCHEDULED status, so concurrent activators cannot double-activate.
	Activate(ctx context.Context, id string, now time.Time) (bool, error)
	// Complete flips the instance to COMPLETED and records the end time
	Complete(ctx context.Context, id string, now time.Time) error
}

// TaskRepository persists workflow tasks
type TaskRepository interface {
	Create(ctx context.Context, task *models.WorkflowTask) error
	GetByID(ctx context.Context, id string) (*models.WorkflowTask, error)
	ListByInstance(ctx context.Context, instanceID string) ([]*models.WorkflowTask, error)
	ListPendingByAssignee(ctx context.Context, userID string) ([]*models.WorkflowTask, error)
	// CountCompleted counts COMPLETED tasks of the given stage in an instance
	CountCompleted(ctx context.Context, instanceID string, stage models.Stage) (int, error)
	// The Mark* methods are compare-and-set completions: they only apply to a
	// task still in PENDING status and report whether a row was transitioned.
	MarkUploadCompleted(ctx context.Context, id, filePath, comments string, at time.Time) (bool, error)
	MarkPrepareCompleted(ctx context.Context, id, preparedPath, comments string, at time.Time) (bool, error)
	MarkReviewCompleted(ctx context.Context, id string, status models.TaskStatus, message string, at time.Time) (bool, error)
}

// NotificationRepository persists notification records
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id string) (bool, error)
}

// UserRepository persists local participant accounts
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
}

// TransactionRunner executes fn as a single atomic unit. The transaction
// travels inside the context so repositories join it transparently.
// WithRetry re-runs fn on deadlock; any other error returns immediately.
type TransactionRunner interface {
	RunInTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
	WithRetry(ctx context.Context, fn func(txCtx context.Context) error, maxRetries int) error
}

// FileStore hands back an opaque stored path for uploaded bytes.
// The core never inspects file contents.
type FileStore interface {
	Save(filename string, data []byte) (string, error)
}

// UserDirectory resolves identities from the external user service.
// Used only by the boundary layer; the core stores raw identity strings.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*models.DirectoryUser, error)
	ListUsers(ctx context.Context) ([]*models.DirectoryUser, error)
}
