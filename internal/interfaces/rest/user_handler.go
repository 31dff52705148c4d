package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/internal/application/services"
)

type UserHandler struct {
	svcMgr *services.ServiceManager
}

func NewUserHandler(svcMgr *services.ServiceManager) *UserHandler {
	return &UserHandler{svcMgr: svcMgr}
}

// GetUsers handles GET /api/users (local participant accounts)
func (h *UserHandler) GetUsers(c *gin.Context) {
	HandleGetEnvelope(c, "users", func() (interface{}, error) {
		return h.svcMgr.Auth.ListUsers(c.Request.Context())
	})
}

// GetDirectoryUsers handles GET /api/users/directory (external directory
// with derived workflow roles)
func (h *UserHandler) GetDirectoryUsers(c *gin.Context) {
	HandleGetEnvelope(c, "users", func() (interface{}, error) {
		return h.svcMgr.Directory.ListUsers(c.Request.Context())
	})
}
