package rest

import (
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/internal/application/services"
	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/internal/infrastructure/storage"
	"github.com/docuflow/backend/pkg/apperrors"
)

// maxUploadBytes caps accepted document size at 20 MiB
const maxUploadBytes = 20 << 20

type TaskHandler struct {
	svcMgr *services.ServiceManager
}

func NewTaskHandler(svcMgr *services.ServiceManager) *TaskHandler {
	return &TaskHandler{svcMgr: svcMgr}
}

// GetMyTasks handles GET /api/tasks/my
func (h *TaskHandler) GetMyTasks(c *gin.Context) {
	user := GetUserFromContext(c)

	HandleGetEnvelope(c, "tasks", func() (interface{}, error) {
		return h.svcMgr.Sequencer.GetTasksForAssignee(c.Request.Context(), user.ID)
	})
}

// CompleteUpload handles POST /api/tasks/:id/upload (multipart: file + comments)
func (h *TaskHandler) CompleteUpload(c *gin.Context) {
	taskID := c.Param("id")

	storedPath, comments, err := h.storeUploadedFile(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	HandleUpdateEnvelope(c, "Upload completed", func() error {
		return h.svcMgr.Sequencer.CompleteUpload(c.Request.Context(), taskID, storedPath, comments)
	})
}

// CompletePrepare handles POST /api/tasks/:id/prepare (multipart: file + comments)
func (h *TaskHandler) CompletePrepare(c *gin.Context) {
	taskID := c.Param("id")

	storedPath, comments, err := h.storeUploadedFile(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	HandleUpdateEnvelope(c, "Preparation completed", func() error {
		return h.svcMgr.Sequencer.CompletePrepare(c.Request.Context(), taskID, storedPath, comments)
	})
}

// ReviewBody represents the review decision request body
type ReviewBody struct {
	Decision string `json:"decision" binding:"required"`
	Message  string `json:"message" binding:"required"`
}

// CompleteReview handles POST /api/tasks/:id/review
func (h *TaskHandler) CompleteReview(c *gin.Context) {
	taskID := c.Param("id")

	var body ReviewBody
	if !BindJSON(c, &body) {
		return
	}

	HandleUpdateEnvelope(c, "Review completed", func() error {
		return h.svcMgr.Sequencer.CompleteReview(c.Request.Context(), taskID,
			models.ReviewDecision(body.Decision), body.Message)
	})
}

// storeUploadedFile validates the multipart document and persists it through
// the file store, returning the stored path plus the comments form field
func (h *TaskHandler) storeUploadedFile(c *gin.Context) (string, string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", "", apperrors.NewValidationError("file", "no file uploaded")
	}
	if fileHeader.Size > maxUploadBytes {
		return "", "", apperrors.NewValidationError("file", fmt.Sprintf("file exceeds %d bytes", maxUploadBytes))
	}
	if !storage.AllowedExtension(fileHeader.Filename) {
		return "", "", apperrors.NewValidationError("file", "unsupported file type")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", "", apperrors.NewInternalError("failed to read uploaded file", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", "", apperrors.NewInternalError("failed to read uploaded file", err)
	}

	storedPath, err := h.svcMgr.Files.Save(fileHeader.Filename, data)
	if err != nil {
		return "", "", apperrors.NewInternalError("failed to store uploaded file", err)
	}
	return storedPath, c.PostForm("comments"), nil
}
