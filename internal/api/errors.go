package api

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidWeekKey), errors.Is(err, service.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, service.ErrPreconditionFailed):
		return http.StatusConflict
	case errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrModuleNotFound),
		errors.Is(err, service.ErrLibrarySessionNotFound),
		errors.Is(err, service.ErrNutritionPlanNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrExerciseNotFound),
		errors.Is(err, service.ErrSetNotFound),
		errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrWorkflowNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal errors are logged
// and replaced by message so store details never reach the caller.
func respondError(c *gin.Context, log *logger.Logger, err error, message string) {
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		abortWithError(c, status, err.Error())
		return
	}
	log.Error(message, "path", c.FullPath(), "error", err)
	abortWithError(c, status, message)
}

// respondWorkflowError reports a saga that stopped part way. The body carries
// the workflow so the caller can resume it.
func respondWorkflowError(c *gin.Context, log *logger.Logger, wf *domain.Workflow, err error, message string) {
	if wf == nil {
		respondError(c, log, err, message)
		return
	}
	log.Error(message, "path", c.FullPath(), "workflowId", wf.ID, "step", wf.Step, "error", err)
	body := gin.H{"error": message, "workflow": wf}
	var me *service.MoveError
	if errors.As(err, &me) {
		body["step"] = me.Step
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, body)
}
