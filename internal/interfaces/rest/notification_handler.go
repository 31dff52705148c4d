package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/internal/application/services"
)

type NotificationHandler struct {
	svcMgr *services.ServiceManager
}

func NewNotificationHandler(svcMgr *services.ServiceManager) *NotificationHandler {
	return &NotificationHandler{svcMgr: svcMgr}
}

// GetNotifications handles GET /api/notifications?unread=true
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	user := GetUserFromContext(c)
	unreadOnly := c.Query("unread") == "true"

	HandleGetEnvelope(c, "notifications", func() (interface{}, error) {
		return h.svcMgr.Notification.GetNotifications(c.Request.Context(), user.ID, unreadOnly)
	})
}

// MarkAsRead handles POST /api/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id := c.Param("id")

	HandleUpdateEnvelope(c, "Notification marked as read", func() error {
		return h.svcMgr.Notification.MarkAsRead(c.Request.Context(), id)
	})
}
