package models

import (
	"time"
)

// Stage is the ordered phase tag of a workflow task.
// START and END are bookkeeping stages completed automatically;
// UPLOAD, PREPARE and REVIEW wait for a human "complete" call.
type Stage string

const (
	StageStart   Stage = "START"
	StageUpload  Stage = "UPLOAD"
	StagePrepare Stage = "PREPARE"
	StageReview  Stage = "REVIEW"
	StageEnd     Stage = "END"
)

// InstanceStatus represents the lifecycle state of a workflow instance
type InstanceStatus string

const (
	InstanceStatusScheduled InstanceStatus = "SCHEDULED"
	InstanceStatusActive    InstanceStatus = "ACTIVE"
	InstanceStatusCompleted InstanceStatus = "COMPLETED" // terminal
)

// TaskStatus represents the lifecycle state of a workflow task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusRejected  TaskStatus = "REJECTED"
)

// ReviewDecision is the outcome a reviewer records on a review task
type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "APPROVED"
	DecisionRejected ReviewDecision = "REJECTED"
)

// Frequency is an informational recurrence tag on a workflow instance.
// It is stored and surfaced but never drives re-scheduling.
type Frequency string

const (
	FrequencyOnce    Frequency = "ONCE"
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

// IsValidFrequency reports whether f is one of the known recurrence tags
func IsValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// WorkflowInstance represents one end-to-end document review run
type WorkflowInstance struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	StartedBy      string         `json:"started_by"`
	Status         InstanceStatus `json:"status"`
	ScheduledStart time.Time      `json:"scheduled_start"`
	ActualStart    *time.Time     `json:"actual_start,omitempty"`
	EndTime        *time.Time     `json:"end_time,omitempty"`
	Frequency      Frequency      `json:"frequency"`
	Uploader       string         `json:"uploader"`
	Preparator     string         `json:"preparator"`
	Reviewer       string         `json:"reviewer"`
	Instructions   string         `json:"instructions"`
}

// AssigneeFor returns the participant responsible for the given stage
func (w *WorkflowInstance) AssigneeFor(stage Stage) string {
	switch stage {
	case StageUpload:
		return w.Uploader
	case StagePrepare:
		return w.Preparator
	case StageReview:
		return w.Reviewer
	default:
		return w.StartedBy
	}
}

// WorkflowTask represents one unit of work within a workflow instance
type WorkflowTask struct {
	ID                 string     `json:"id"`
	WorkflowInstanceID string     `json:"workflow_instance_id"`
	Stage              Stage      `json:"stage"`
	Assignee           string     `json:"assignee"`
	Status             TaskStatus `json:"status"`
	OriginalFilePath   string     `json:"original_file_path,omitempty"`
	PreparedFilePath   string     `json:"prepared_file_path,omitempty"`
	ReviewerMessage    string     `json:"reviewer_message,omitempty"`
	UserComments       string     `json:"user_comments,omitempty"`
	Instructions       string     `json:"instructions,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	StartDate          *time.Time `json:"start_date,omitempty"` // advisory only
	EndDate            *time.Time `json:"end_date,omitempty"`   // advisory only
}

// NotificationType classifies a notification for presentation
type NotificationType string

const (
	NotificationInfo    NotificationType = "INFO"
	NotificationSuccess NotificationType = "SUCCESS"
	NotificationError   NotificationType = "ERROR"
)

// Notification is an at-most-once record of an event directed at a user.
// Delivery transport is out of scope; only the record is created here.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
