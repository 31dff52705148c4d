package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/docuflow/backend/internal/infrastructure/database"
	"github.com/docuflow/backend/internal/infrastructure/persistence"
)

// tableDDL holds the schema in creation order. Statements are idempotent so
// the server can be restarted against an existing database.
var tableDDL = []struct {
	name string
	ddl  string
}{
	{
		name: persistence.TableUser,
		ddl: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`, persistence.TableUser),
	},
	{
		name: persistence.TableWorkflowInstance,
		ddl: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			started_by VARCHAR(36) NOT NULL,
			status VARCHAR(20) NOT NULL,
			scheduled_start DATETIME(6) NOT NULL,
			actual_start DATETIME(6) NULL,
			end_time DATETIME(6) NULL,
			frequency VARCHAR(20) NOT NULL,
			uploader VARCHAR(36) NOT NULL,
			preparator VARCHAR(36) NOT NULL,
			reviewer VARCHAR(36) NOT NULL,
			instructions TEXT,
			INDEX idx_instance_status_start (status, scheduled_start)
		)`, persistence.TableWorkflowInstance),
	},
	{
		name: persistence.TableWorkflowTask,
		ddl: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			workflow_instance_id VARCHAR(36) NOT NULL,
			stage VARCHAR(20) NOT NULL,
			assignee VARCHAR(36) NOT NULL,
			status VARCHAR(20) NOT NULL,
			original_file_path VARCHAR(512) NULL,
			prepared_file_path VARCHAR(512) NULL,
			reviewer_message TEXT NULL,
			user_comments TEXT NULL,
			instructions TEXT,
			created_at DATETIME(6) NOT NULL,
			completed_at DATETIME(6) NULL,
			start_date DATETIME(6) NULL,
			end_date DATETIME(6) NULL,
			INDEX idx_task_instance (workflow_instance_id),
			INDEX idx_task_assignee_status (assignee, status)
		)`, persistence.TableWorkflowTask),
	},
	{
		name: persistence.TableNotification,
		ddl: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			message TEXT NOT NULL,
			type VARCHAR(20) NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_notification_user (user_id)
		)`, persistence.TableNotification),
	},
}

// InitializeSchema creates the core tables if they do not exist yet
func InitializeSchema(db *database.Connection) error {
	log.Println("🔧 Initializing database schema...")

	for _, table := range tableDDL {
		if _, err := db.ExecContext(context.Background(), table.ddl); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
		log.Printf("   🧱 Ensured table: %s", table.name)
	}

	log.Println("✅ Schema ready")
	return nil
}
