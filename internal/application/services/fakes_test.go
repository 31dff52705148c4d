package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/docuflow/backend/internal/domain/models"
)

// In-memory fakes of the persistence ports. They mirror the compare-and-set
// semantics of the SQL repositories so the sequencing logic is exercised
// against the same contract.

type memTx struct{}

func (f *memTx) RunInTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

func (f *memTx) WithRetry(ctx context.Context, fn func(txCtx context.Context) error, _ int) error {
	return fn(ctx)
}

type memInstanceRepo struct {
	mu        sync.Mutex
	instances map[string]*models.WorkflowInstance
	getErr    error
}

func newMemInstanceRepo() *memInstanceRepo {
	return &memInstanceRepo{instances: make(map[string]*models.WorkflowInstance)}
}

func (r *memInstanceRepo) Create(_ context.Context, instance *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *instance
	r.instances[instance.ID] = &cp
	return nil
}

func (r *memInstanceRepo) GetByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	instance, ok := r.instances[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *instance
	return &cp, nil
}

func (r *memInstanceRepo) ListByStatus(_ context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.WorkflowInstance
	for _, instance := range r.instances {
		if instance.Status == status {
			cp := *instance
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *memInstanceRepo) ListDue(_ context.Context, now time.Time) ([]*models.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.WorkflowInstance
	for _, instance := range r.instances {
		if instance.Status == models.InstanceStatusScheduled && !instance.ScheduledStart.After(now) {
			cp := *instance
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledStart.Before(result[j].ScheduledStart)
	})
	return result, nil
}

func (r *memInstanceRepo) Activate(_ context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok || instance.Status != models.InstanceStatusScheduled {
		return false, nil
	}
	instance.Status = models.InstanceStatusActive
	instance.ActualStart = &now
	return true, nil
}

func (r *memInstanceRepo) Complete(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.instances[id]
	if !ok {
		return sql.ErrNoRows
	}
	instance.Status = models.InstanceStatusCompleted
	instance.EndTime = &now
	return nil
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks []*models.WorkflowTask
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{}
}

func (r *memTaskRepo) Create(_ context.Context, task *models.WorkflowTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	r.tasks = append(r.tasks, &cp)
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id string) (*models.WorkflowTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range r.tasks {
		if task.ID == id {
			cp := *task
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memTaskRepo) ListByInstance(_ context.Context, instanceID string) ([]*models.WorkflowTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.WorkflowTask
	for _, task := range r.tasks {
		if task.WorkflowInstanceID == instanceID {
			cp := *task
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *memTaskRepo) ListPendingByAssignee(_ context.Context, userID string) ([]*models.WorkflowTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.WorkflowTask
	for _, task := range r.tasks {
		if task.Assignee == userID && task.Status == models.TaskStatusPending {
			cp := *task
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *memTaskRepo) CountCompleted(_ context.Context, instanceID string, stage models.Stage) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, task := range r.tasks {
		if task.WorkflowInstanceID == instanceID && task.Stage == stage && task.Status == models.TaskStatusCompleted {
			count++
		}
	}
	return count, nil
}

func (r *memTaskRepo) MarkUploadCompleted(_ context.Context, id, filePath, comments string, at time.Time) (bool, error) {
	return r.complete(id, models.StageUpload, func(task *models.WorkflowTask) {
		task.Status = models.TaskStatusCompleted
		task.OriginalFilePath = filePath
		task.UserComments = comments
		task.CompletedAt = &at
	})
}

func (r *memTaskRepo) MarkPrepareCompleted(_ context.Context, id, preparedPath, comments string, at time.Time) (bool, error) {
	return r.complete(id, models.StagePrepare, func(task *models.WorkflowTask) {
		task.Status = models.TaskStatusCompleted
		task.PreparedFilePath = preparedPath
		task.UserComments = comments
		task.CompletedAt = &at
	})
}

func (r *memTaskRepo) MarkReviewCompleted(_ context.Context, id string, status models.TaskStatus, message string, at time.Time) (bool, error) {
	return r.complete(id, models.StageReview, func(task *models.WorkflowTask) {
		task.Status = status
		task.ReviewerMessage = message
		task.UserComments = message
		task.CompletedAt = &at
	})
}

func (r *memTaskRepo) complete(id string, stage models.Stage, apply func(*models.WorkflowTask)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, task := range r.tasks {
		if task.ID == id && task.Stage == stage && task.Status == models.TaskStatusPending {
			apply(task)
			return true, nil
		}
	}
	return false, nil
}

type memNotificationRepo struct {
	mu            sync.Mutex
	notifications []*models.Notification
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{}
}

func (r *memNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.notifications = append(r.notifications, &cp)
	return nil
}

func (r *memNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Notification
	for _, n := range r.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		cp := *n
		result = append(result, &cp)
	}
	return result, nil
}

func (r *memNotificationRepo) MarkRead(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			n.Read = true
			return true, nil
		}
	}
	return false, nil
}

// testEnv bundles the fakes plus the services under test
type testEnv struct {
	instances     *memInstanceRepo
	tasks         *memTaskRepo
	notifications *memNotificationRepo
	sequencer     *TaskSequencer
	scheduler     *WorkflowScheduler
}

func newTestEnv() *testEnv {
	instances := newMemInstanceRepo()
	tasks := newMemTaskRepo()
	notifications := newMemNotificationRepo()
	tx := &memTx{}
	sequencer := NewTaskSequencer(instances, tasks, notifications, tx)
	scheduler := NewWorkflowScheduler(instances, tx, sequencer)
	return &testEnv{
		instances:     instances,
		tasks:         tasks,
		notifications: notifications,
		sequencer:     sequencer,
		scheduler:     scheduler,
	}
}

func validSubmit(scheduledStart time.Time) SubmitWorkflowRequest {
	return SubmitWorkflowRequest{
		Name:           "Q1 Report",
		StartedBy:      "1",
		ScheduledStart: scheduledStart,
		Frequency:      models.FrequencyOnce,
		Uploader:       "2",
		Preparator:     "3",
		Reviewer:       "4",
		Instructions:   "Process carefully",
	}
}
