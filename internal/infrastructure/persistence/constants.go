package persistence

// Table names
const (
	TableWorkflowInstance = "workflow_instance"
	TableWorkflowTask     = "workflow_task"
	TableNotification     = "notification"
	TableUser             = "app_user"
)
