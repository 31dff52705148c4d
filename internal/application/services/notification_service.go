package services

import (
	"context"

	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/internal/domain/ports"
	"github.com/docuflow/backend/pkg/apperrors"
)

// NotificationService exposes the notification records the sequencer writes.
// Delivery transport is out of scope; the presentation layer reads and marks.
type NotificationService struct {
	notifications ports.NotificationRepository
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifications ports.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// GetNotifications returns notifications for the user, optionally unread only
func (s *NotificationService) GetNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, unreadOnly)
}

// MarkAsRead marks a notification as read
func (s *NotificationService) MarkAsRead(ctx context.Context, id string) error {
	changed, err := s.notifications.MarkRead(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		return apperrors.NewNotFoundError("notification", id)
	}
	return nil
}
