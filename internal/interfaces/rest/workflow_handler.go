package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/internal/application/services"
	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/pkg/apperrors"
)

type WorkflowHandler struct {
	svcMgr *services.ServiceManager
}

func NewWorkflowHandler(svcMgr *services.ServiceManager) *WorkflowHandler {
	return &WorkflowHandler{svcMgr: svcMgr}
}

// SubmitWorkflowBody represents the submit request body
type SubmitWorkflowBody struct {
	Name           string `json:"name" binding:"required"`
	ScheduledStart string `json:"scheduledStart"`
	Frequency      string `json:"frequency"`
	Uploader       string `json:"uploader" binding:"required"`
	Preparator     string `json:"preparator" binding:"required"`
	Reviewer       string `json:"reviewer" binding:"required"`
	Instructions   string `json:"instructions"`
}

// Submit handles POST /api/workflows
func (h *WorkflowHandler) Submit(c *gin.Context) {
	user := GetUserFromContext(c)

	var body SubmitWorkflowBody
	if !BindJSON(c, &body) {
		return
	}

	// Empty scheduledStart means start right away
	scheduledStart := time.Now().UTC()
	if body.ScheduledStart != "" {
		parsed, err := time.Parse(time.RFC3339, body.ScheduledStart)
		if err != nil {
			RespondAppError(c, apperrors.NewValidationError("scheduledStart", "must be RFC3339 formatted"))
			return
		}
		scheduledStart = parsed.UTC()
	}

	frequency := models.Frequency(body.Frequency)
	if body.Frequency == "" {
		frequency = models.FrequencyOnce
	}

	instance, err := h.svcMgr.Scheduler.Submit(c.Request.Context(), services.SubmitWorkflowRequest{
		Name:           body.Name,
		StartedBy:      user.ID,
		ScheduledStart: scheduledStart,
		Frequency:      frequency,
		Uploader:       body.Uploader,
		Preparator:     body.Preparator,
		Reviewer:       body.Reviewer,
		Instructions:   body.Instructions,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Workflow submitted",
		"workflow": instance,
	})
}

// GetByStatus handles GET /api/workflows?status=ACTIVE
func (h *WorkflowHandler) GetByStatus(c *gin.Context) {
	status := c.DefaultQuery("status", string(models.InstanceStatusActive))

	HandleGetEnvelope(c, "workflows", func() (interface{}, error) {
		return h.svcMgr.Scheduler.GetInstancesByStatus(c.Request.Context(), models.InstanceStatus(status))
	})
}

// GetInstance handles GET /api/workflows/:id
func (h *WorkflowHandler) GetInstance(c *gin.Context) {
	id := c.Param("id")

	HandleGetEnvelope(c, "workflow", func() (interface{}, error) {
		return h.svcMgr.Scheduler.GetInstance(c.Request.Context(), id)
	})
}

// GetInstanceTasks handles GET /api/workflows/:id/tasks
func (h *WorkflowHandler) GetInstanceTasks(c *gin.Context) {
	id := c.Param("id")

	HandleGetEnvelope(c, "tasks", func() (interface{}, error) {
		return h.svcMgr.Sequencer.GetTasksByInstance(c.Request.Context(), id)
	})
}
