package services

import (
	"os"
	"time"

	"github.com/docuflow/backend/internal/domain/ports"
	"github.com/docuflow/backend/internal/infrastructure/database"
	"github.com/docuflow/backend/internal/infrastructure/directory"
	"github.com/docuflow/backend/internal/infrastructure/persistence"
	"github.com/docuflow/backend/internal/infrastructure/storage"
)

// ServiceManager wires all services with their dependencies
type ServiceManager struct {
	db *database.Connection

	TxManager *persistence.TransactionManager
	Instances ports.InstanceRepository
	Tasks     ports.TaskRepository
	Users     ports.UserRepository
	Files     ports.FileStore
	Directory ports.UserDirectory

	Sequencer    *TaskSequencer
	Scheduler    *WorkflowScheduler
	Notification *NotificationService
	Auth         *AuthService
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(db *database.Connection) (*ServiceManager, error) {
	sm := &ServiceManager{db: db}

	sm.TxManager = persistence.NewTransactionManager(db.DB())

	instanceRepo := persistence.NewInstanceRepository(db.DB())
	taskRepo := persistence.NewTaskRepository(db.DB())
	notificationRepo := persistence.NewNotificationRepository(db.DB())
	userRepo := persistence.NewUserRepository(db.DB())
	sm.Instances = instanceRepo
	sm.Tasks = taskRepo
	sm.Users = userRepo

	fileStore, err := storage.NewLocalFileStore(os.Getenv("UPLOAD_DIR"))
	if err != nil {
		return nil, err
	}
	sm.Files = fileStore
	sm.Directory = directory.NewClient(os.Getenv("USER_DIRECTORY_URL"))

	sm.Sequencer = NewTaskSequencer(instanceRepo, taskRepo, notificationRepo, sm.TxManager)
	sm.Scheduler = NewWorkflowScheduler(instanceRepo, sm.TxManager, sm.Sequencer)
	sm.Notification = NewNotificationService(notificationRepo)
	sm.Auth = NewAuthService(userRepo)

	return sm, nil
}

// StartScheduler begins the periodic activation sweep
func (sm *ServiceManager) StartScheduler(interval time.Duration) error {
	return sm.Scheduler.Start(interval)
}

// StopScheduler halts the periodic activation sweep
func (sm *ServiceManager) StopScheduler() {
	sm.Scheduler.Stop()
}
