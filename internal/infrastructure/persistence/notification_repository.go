package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docuflow/backend/internal/domain/models"
)

// NotificationRepository handles database operations for notification records
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = "id, user_id, message, type, is_read, created_at"

// Create inserts a new notification record
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?)`,
		TableNotification, notificationColumns)
	_, err := querier(ctx, r.db).ExecContext(ctx, query,
		n.ID, n.UserID, n.Message, string(n.Type), n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListByUser returns notifications for a user, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = ?`, notificationColumns, TableNotification)
	if unreadOnly {
		query += " AND is_read = false"
	}
	query += " ORDER BY created_at DESC"

	rows, err := querier(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		var nType string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &nType, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = models.NotificationType(nType)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkRead marks a notification as read, reporting whether a row changed
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET is_read = true WHERE id = ?`, TableNotification)
	result, err := querier(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}
