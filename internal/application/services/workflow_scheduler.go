package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/internal/domain/ports"
	"github.com/docuflow/backend/pkg/apperrors"
	"github.com/docuflow/backend/pkg/utils"
)

// DefaultSweepInterval is how often the scheduler promotes due instances
const DefaultSweepInterval = time.Minute

// SubmitWorkflowRequest carries the input for creating a workflow instance
type SubmitWorkflowRequest struct {
	Name           string
	StartedBy      string
	ScheduledStart time.Time
	Frequency      models.Frequency
	Uploader       string
	Preparator     string
	Reviewer       string
	Instructions   string
}

// WorkflowScheduler owns the lifecycle of workflow instances: creation,
// scheduled activation via the periodic sweep, and completion bookkeeping
// delegated to the TaskSequencer.
type WorkflowScheduler struct {
	instances ports.InstanceRepository
	tx        ports.TransactionRunner
	sequencer *TaskSequencer

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewWorkflowScheduler creates a new WorkflowScheduler
func NewWorkflowScheduler(instances ports.InstanceRepository, tx ports.TransactionRunner, sequencer *TaskSequencer) *WorkflowScheduler {
	return &WorkflowScheduler{
		instances: instances,
		tx:        tx,
		sequencer: sequencer,
	}
}

// Submit validates and persists a new workflow instance. When the scheduled
// start has already passed the instance activates immediately and the first
// task chain (START then UPLOAD) is emitted in the same transaction;
// otherwise the instance waits for the sweep in SCHEDULED status.
func (s *WorkflowScheduler) Submit(ctx context.Context, req SubmitWorkflowRequest) (*models.WorkflowInstance, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	instance := &models.WorkflowInstance{
		ID:             utils.GenerateID(),
		Name:           req.Name,
		StartedBy:      req.StartedBy,
		ScheduledStart: req.ScheduledStart,
		Frequency:      req.Frequency,
		Uploader:       req.Uploader,
		Preparator:     req.Preparator,
		Reviewer:       req.Reviewer,
		Instructions:   req.Instructions,
	}

	if !req.ScheduledStart.After(now) {
		log.Printf("🚀 Scheduled time has passed - starting workflow '%s' immediately", req.Name)
		instance.Status = models.InstanceStatusActive
		instance.ActualStart = &now

		err := s.tx.WithRetry(ctx, func(txCtx context.Context) error {
			if err := s.instances.Create(txCtx, instance); err != nil {
				return err
			}
			return s.sequencer.EmitStart(txCtx, instance)
		}, txMaxRetries)
		if err != nil {
			return nil, err
		}
		return instance, nil
	}

	log.Printf("🗓️ Workflow '%s' scheduled - will start at %s", req.Name, req.ScheduledStart.Format(time.RFC3339))
	instance.Status = models.InstanceStatusScheduled
	err := s.tx.WithRetry(ctx, func(txCtx context.Context) error {
		return s.instances.Create(txCtx, instance)
	}, txMaxRetries)
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// Tick promotes every due SCHEDULED instance to ACTIVE and emits its first
// task chain. Each instance is processed in its own transaction behind the
// compare-and-set activation guard, so a retried or concurrent sweep cannot
// double-activate, and one bad instance never blocks the rest.
func (s *WorkflowScheduler) Tick(ctx context.Context, now time.Time) error {
	due, err := s.instances.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list due workflows: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	log.Printf("⏰ Found %d scheduled workflows ready to start", len(due))
	for _, instance := range due {
		s.activateOne(ctx, instance, now)
	}
	return nil
}

// activateOne activates a single due instance, isolating its failure
func (s *WorkflowScheduler) activateOne(ctx context.Context, instance *models.WorkflowInstance, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("🔥 Panic while activating workflow '%s' (%s): %v", instance.Name, instance.ID, r)
		}
	}()

	err := s.tx.WithRetry(ctx, func(txCtx context.Context) error {
		won, err := s.instances.Activate(txCtx, instance.ID, now)
		if err != nil {
			return err
		}
		if !won {
			// Another activator (manual submit or a parallel sweep) got here
			// first; nothing to do.
			log.Printf("⏭️ Workflow '%s' already activated, skipping", instance.Name)
			return nil
		}

		instance.Status = models.InstanceStatusActive
		instance.ActualStart = &now
		return s.sequencer.EmitStart(txCtx, instance)
	}, txMaxRetries)
	if err != nil {
		log.Printf("⚠️ Failed to activate workflow '%s' (%s): %v", instance.Name, instance.ID, err)
		return
	}
	log.Printf("✅ Activated workflow '%s' - upload task created for user %s", instance.Name, instance.Uploader)
}

// GetInstancesByStatus returns all instances carrying the given status
func (s *WorkflowScheduler) GetInstancesByStatus(ctx context.Context, status models.InstanceStatus) ([]*models.WorkflowInstance, error) {
	switch status {
	case models.InstanceStatusScheduled, models.InstanceStatusActive, models.InstanceStatusCompleted:
	default:
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown instance status %q", status))
	}
	return s.instances.ListByStatus(ctx, status)
}

// GetInstance returns a single workflow instance by id
func (s *WorkflowScheduler) GetInstance(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	instance, err := s.instances.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("workflow instance", id)
		}
		return nil, err
	}
	return instance, nil
}

// Start schedules the periodic sweep on a cron runner
func (s *WorkflowScheduler) Start(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if err := s.Tick(context.Background(), time.Now().UTC()); err != nil {
			log.Printf("⚠️ Scheduler sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	log.Printf("⏰ Workflow scheduler started (%s sweep)", interval)
	return nil
}

// Stop halts the sweep, waiting for any in-flight run to finish
func (s *WorkflowScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	log.Println("⏰ Workflow scheduler stopped")
}

func validateSubmit(req SubmitWorkflowRequest) error {
	if req.Name == "" {
		return apperrors.NewValidationError("name", "workflow name must not be empty")
	}
	if req.StartedBy == "" {
		return apperrors.NewValidationError("startedBy", "workflow creator must be set")
	}
	if req.Uploader == "" || req.Preparator == "" || req.Reviewer == "" {
		return apperrors.NewValidationError("participants", "uploader, preparator and reviewer must all be set")
	}
	// Enforced here as well as at the boundary: no two roles may share an identity.
	if req.Uploader == req.Preparator || req.Uploader == req.Reviewer || req.Preparator == req.Reviewer {
		return apperrors.NewValidationError("participants", "uploader, preparator and reviewer must be distinct users")
	}
	if !models.IsValidFrequency(req.Frequency) {
		return apperrors.NewValidationError("frequency", fmt.Sprintf("unknown frequency %q", req.Frequency))
	}
	return nil
}
