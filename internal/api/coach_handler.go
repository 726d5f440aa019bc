// internal/api/coach_handler.go
package api

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/service"
	"alcyxob/coaching-platform/internal/storage"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type CoachHandler struct {
	log             *logger.Logger
	resolver        service.ContentResolver
	personalization service.PersonalizationService
	scheduler       service.SchedulerService
	propagation     service.PropagationService
	archives        storage.FileStorage // nil when archiving is disabled
}

func NewCoachHandler(
	log *logger.Logger,
	resolver service.ContentResolver,
	personalization service.PersonalizationService,
	scheduler service.SchedulerService,
	propagation service.PropagationService,
	archives storage.FileStorage,
) *CoachHandler {
	return &CoachHandler{
		log:             log.With("handler", "CoachHandler"),
		resolver:        resolver,
		personalization: personalization,
		scheduler:       scheduler,
		propagation:     propagation,
		archives:        archives,
	}
}

// --- DTOs ---

type AssignPlanRequest struct {
	PlanID       string `json:"planId" binding:"required"`
	StartWeekKey string `json:"startWeekKey" binding:"required"`
}

type CopyFromPlanRequest struct {
	PlanID   string `json:"planId" binding:"required"`
	ModuleID string `json:"moduleId" binding:"required"`
}

type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

type MoveSessionBody struct {
	SourceWeekKey  string              `json:"sourceWeekKey" binding:"required"`
	TargetWeekKey  string              `json:"targetWeekKey" binding:"required"`
	SessionID      string              `json:"sessionId" binding:"required"`
	TargetDayIndex *int                `json:"targetDayIndex" binding:"required"`
	TargetPlan     *service.PlanSource `json:"targetPlan,omitempty"`
}

type AssignSessionToDateRequest struct {
	LibrarySessionID string `json:"librarySessionId" binding:"required"`
}

type CopyFromLibraryRequest struct {
	LibrarySessionID string `json:"librarySessionId"`
}

func weekRef(c *gin.Context) service.WeekRef {
	return service.WeekRef{
		ClientID:  c.Param("clientId"),
		ProgramID: c.Param("programId"),
		WeekKey:   c.Param("weekKey"),
	}
}

// bindOptionalJSON binds a body when one was sent.
func bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return false
	}
	return true
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return false
	}
	return true
}

// === Plan scheduling ===

// AssignPlan godoc
// @Summary Assign a plan to consecutive weeks
// @Description Puts module i of the plan on week start+i for the client's program. Each week is a resumable workflow step.
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clientId path string true "Client ID"
// @Param programId path string true "Program ID"
// @Param request body AssignPlanRequest true "Plan and first week"
// @Success 200 {object} domain.Workflow "Completed workflow"
// @Failure 400 {object} gin.H "Invalid week key"
// @Failure 404 {object} gin.H "Plan not found"
// @Failure 409 {object} gin.H "Plan has no weeks"
// @Failure 500 {object} gin.H "Workflow stopped; body carries it for resume"
// @Router /coach/clients/{clientId}/programs/{programId}/plan-assignments [post]
func (h *CoachHandler) AssignPlan(c *gin.Context) {
	var req AssignPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	wf, err := h.scheduler.AssignPlanToConsecutiveWeeks(c.Request.Context(), c.Param("programId"), c.Param("clientId"), req.PlanID, req.StartWeekKey)
	if err != nil {
		respondWorkflowError(c, h.log, wf, err, "Failed to assign plan.")
		return
	}
	c.JSON(http.StatusOK, wf)
}

// GetPlanAssignments godoc
// @Summary Week key to plan assignment view of a client program
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]domain.PlanAssignment
// @Router /coach/clients/{clientId}/programs/{programId}/plan-assignments [get]
func (h *CoachHandler) GetPlanAssignments(c *gin.Context) {
	out, err := h.scheduler.PlanAssignments(c.Request.Context(), c.Param("clientId"), c.Param("programId"))
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve plan assignments.")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *CoachHandler) RemovePlanFromWeek(c *gin.Context) {
	ref := weekRef(c)
	if err := h.scheduler.RemovePlanFromWeek(c.Request.Context(), ref.ProgramID, ref.ClientID, ref.WeekKey); err != nil {
		respondError(c, h.log, err, "Failed to remove plan from week.")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CoachHandler) AssignSessionToDate(c *gin.Context) {
	var req AssignSessionToDateRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.scheduler.AssignSessionToDate(c.Request.Context(), c.Param("clientId"), c.Param("programId"), c.Param("date"), req.LibrarySessionID)
	if err != nil {
		respondError(c, h.log, err, "Failed to assign session.")
		return
	}
	c.JSON(http.StatusCreated, a)
}

// GetWeek lets the coach see what the client sees.
func (h *CoachHandler) GetWeek(c *gin.Context) {
	ref := weekRef(c)
	week, err := h.resolver.ResolveWeek(c.Request.Context(), ref.ClientID, ref.ProgramID, ref.WeekKey)
	if err != nil {
		respondError(c, h.log, err, "Failed to resolve week.")
		return
	}
	c.JSON(http.StatusOK, week)
}

// === Week personalization ===

func (h *CoachHandler) PersonalizeWeek(c *gin.Context) {
	var src service.PlanSource
	if !bindOptionalJSON(c, &src) {
		return
	}
	var srcPtr *service.PlanSource
	if src.PlanID != "" {
		srcPtr = &src
	}
	content, err := h.personalization.EnsureWeekCopy(c.Request.Context(), weekRef(c), srcPtr)
	if err != nil {
		respondError(c, h.log, err, "Failed to personalize week.")
		return
	}
	c.JSON(http.StatusOK, content)
}

func (h *CoachHandler) CopyWeekFromPlan(c *gin.Context) {
	var req CopyFromPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	content, err := h.personalization.CopyFromPlan(c.Request.Context(), weekRef(c), req.PlanID, req.ModuleID)
	if err != nil {
		respondError(c, h.log, err, "Failed to copy week from plan.")
		return
	}
	c.JSON(http.StatusCreated, content)
}

// ResetWeek godoc
// @Summary Discard the client's week copy
// @Description Deletes the personalized copy so the week resolves from its plan again. Requires confirm=true.
// @Tags Coach
// @Accept json
// @Security BearerAuth
// @Param request body ResetRequest true "Confirmation"
// @Success 204 "Reset"
// @Failure 428 {object} gin.H "Confirmation required"
// @Router /coach/clients/{clientId}/programs/{programId}/weeks/{weekKey}/reset [post]
func (h *CoachHandler) ResetWeek(c *gin.Context) {
	var req ResetRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if err := h.personalization.ResetToSource(c.Request.Context(), weekRef(c), req.Confirm); err != nil {
		respondError(c, h.log, err, "Failed to reset week.")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CoachHandler) AddSession(c *gin.Context) {
	var in service.SessionInput
	if !bindJSON(c, &in) {
		return
	}
	h.respondWeek(c, http.StatusCreated)(h.personalization.AddSession(c.Request.Context(), weekRef(c), in))
}

func (h *CoachHandler) UpdateSession(c *gin.Context) {
	var p service.SessionPatch
	if !bindJSON(c, &p) {
		return
	}
	h.respondWeek(c, http.StatusOK)(h.personalization.UpdateSession(c.Request.Context(), weekRef(c), c.Param("sessionId"), p))
}

func (h *CoachHandler) DeleteSession(c *gin.Context) {
	h.respondWeek(c, http.StatusOK)(h.personalization.DeleteSession(c.Request.Context(), weekRef(c), c.Param("sessionId")))
}

func (h *CoachHandler) AddExercise(c *gin.Context) {
	var in service.ExerciseInput
	if !bindJSON(c, &in) {
		return
	}
	h.respondWeek(c, http.StatusCreated)(h.personalization.AddExercise(c.Request.Context(), weekRef(c), c.Param("sessionId"), in))
}

func (h *CoachHandler) UpdateExercise(c *gin.Context) {
	var p service.ExercisePatch
	if !bindJSON(c, &p) {
		return
	}
	h.respondWeek(c, http.StatusOK)(h.personalization.UpdateExercise(c.Request.Context(), weekRef(c), c.Param("sessionId"), c.Param("exerciseId"), p))
}

func (h *CoachHandler) DeleteExercise(c *gin.Context) {
	h.respondWeek(c, http.StatusOK)(h.personalization.DeleteExercise(c.Request.Context(), weekRef(c), c.Param("sessionId"), c.Param("exerciseId")))
}

func (h *CoachHandler) AddSet(c *gin.Context) {
	var in service.SetInput
	if !bindJSON(c, &in) {
		return
	}
	h.respondWeek(c, http.StatusCreated)(h.personalization.AddSet(c.Request.Context(), weekRef(c), c.Param("sessionId"), c.Param("exerciseId"), in))
}

func (h *CoachHandler) UpdateSet(c *gin.Context) {
	var p service.SetPatch
	if !bindJSON(c, &p) {
		return
	}
	h.respondWeek(c, http.StatusOK)(h.personalization.UpdateSet(c.Request.Context(), weekRef(c), c.Param("sessionId"), c.Param("exerciseId"), c.Param("setId"), p))
}

func (h *CoachHandler) DeleteSet(c *gin.Context) {
	h.respondWeek(c, http.StatusOK)(h.personalization.DeleteSet(c.Request.Context(), weekRef(c), c.Param("sessionId"), c.Param("exerciseId"), c.Param("setId")))
}

func (h *CoachHandler) respondWeek(c *gin.Context, status int) func(*domain.ClientPlanContent, error) {
	return func(content *domain.ClientPlanContent, err error) {
		if err != nil {
			respondError(c, h.log, err, "Failed to update week copy.")
			return
		}
		c.JSON(status, content)
	}
}

// MoveSession godoc
// @Summary Move a session to another week
// @Description Runs as a workflow. On failure the response carries the workflow id and step; POST /coach/workflows/{id}/resume continues it.
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body MoveSessionBody true "Move"
// @Success 200 {object} domain.Workflow
// @Failure 500 {object} gin.H "Move stopped part way"
// @Router /coach/clients/{clientId}/programs/{programId}/moves [post]
func (h *CoachHandler) MoveSession(c *gin.Context) {
	var body MoveSessionBody
	if !bindJSON(c, &body) {
		return
	}
	wf, err := h.personalization.MoveSessionAcrossWeeks(c.Request.Context(), service.MoveSessionRequest{
		ClientID:       c.Param("clientId"),
		ProgramID:      c.Param("programId"),
		SourceWeekKey:  body.SourceWeekKey,
		TargetWeekKey:  body.TargetWeekKey,
		SessionID:      body.SessionID,
		TargetDayIndex: *body.TargetDayIndex,
		TargetPlan:     body.TargetPlan,
	})
	if err != nil {
		respondWorkflowError(c, h.log, wf, err, "Failed to move session.")
		return
	}
	c.JSON(http.StatusOK, wf)
}

// === Session personalization ===

func (h *CoachHandler) CopyAssignedFromLibrary(c *gin.Context) {
	var req CopyFromLibraryRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.respondSession(c, http.StatusCreated)(h.personalization.CopyFromLibrary(c.Request.Context(), c.Param("clientId"), c.Param("assignmentId"), req.LibrarySessionID))
}

func (h *CoachHandler) UpdateAssignedSession(c *gin.Context) {
	var p service.SessionPatch
	if !bindJSON(c, &p) {
		return
	}
	h.respondSession(c, http.StatusOK)(h.personalization.UpdateAssignedSession(c.Request.Context(), c.Param("clientId"), c.Param("assignmentId"), p))
}

func (h *CoachHandler) AddAssignedExercise(c *gin.Context) {
	var in service.ExerciseInput
	if !bindJSON(c, &in) {
		return
	}
	h.respondSession(c, http.StatusCreated)(h.personalization.AddAssignedExercise(c.Request.Context(), c.Param("clientId"), c.Param("assignmentId"), in))
}

func (h *CoachHandler) UpdateAssignedExercise(c *gin.Context) {
	var p service.ExercisePatch
	if !bindJSON(c, &p) {
		return
	}
	h.respondSession(c, http.StatusOK)(h.personalization.UpdateAssignedExercise(c.Request.Context(), c.Param("clientId"), c.Param("assignmentId"), c.Param("exerciseId"), p))
}

func (h *CoachHandler) DeleteAssignedExercise(c *gin.Context) {
	h.respondSession(c, http.StatusOK)(h.personalization.DeleteAssignedExercise(c.Request.Context(), c.Param("clientId"), c.Param("assignmentId"), c.Param("exerciseId")))
}

func (h *CoachHandler) AddAssignedSet(c *gin.Context) {
	var in service.SetInput
	if !bindJSON(c, &in) {
		return
	}
	h.respondSession(c, http.StatusCreated)(h.personalization.AddAssignedSet(c.Request.Context(), c.Param("clientId"), c.Param("assignmentId"), c.Param("exerciseId"), in))
}

func (h *CoachHandler) UpdateAssignedSet(c *gin.Context) {
	var p service.SetPatch
	if !bindJSON(c, &p) {
		return
	}
	h.respondSession(c, http.StatusOK)(h.personalization.UpdateAssignedSet(c.Request.Context(), c.Param("clientId"), c.Param("assignmentId"), c.Param("exerciseId"), c.Param("setId"), p))
}

func (h *CoachHandler) DeleteAssignedSet(c *gin.Context) {
	h.respondSession(c, http.StatusOK)(h.personalization.DeleteAssignedSet(c.Request.Context(), c.Param("clientId"), c.Param("assignmentId"), c.Param("exerciseId"), c.Param("setId")))
}

func (h *CoachHandler) ResetAssignedSession(c *gin.Context) {
	var req ResetRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	if err := h.personalization.ResetToLibrary(c.Request.Context(), c.Param("clientId"), c.Param("assignmentId"), req.Confirm); err != nil {
		respondError(c, h.log, err, "Failed to reset session.")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CoachHandler) respondSession(c *gin.Context, status int) func(*domain.ClientSessionContent, error) {
	return func(content *domain.ClientSessionContent, err error) {
		if err != nil {
			respondError(c, h.log, err, "Failed to update session copy.")
			return
		}
		c.JSON(status, content)
	}
}

// === Propagation ===

func (h *CoachHandler) AffectedByLibrarySession(c *gin.Context) {
	out, err := h.propagation.FindAffectedByLibrarySession(c.Request.Context(), c.Param("librarySessionId"))
	if err != nil {
		respondError(c, h.log, err, "Failed to find affected copies.")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *CoachHandler) AffectedByPlan(c *gin.Context) {
	out, err := h.propagation.FindAffectedByPlan(c.Request.Context(), c.Param("planId"))
	if err != nil {
		respondError(c, h.log, err, "Failed to find affected copies.")
		return
	}
	c.JSON(http.StatusOK, out)
}

// PropagateLibrarySession godoc
// @Summary Push a library session edit to clients
// @Description Deletes every personalized copy derived from the library session. Failures are reported per copy.
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.PropagationResult
// @Router /coach/library-sessions/{librarySessionId}/propagate [post]
func (h *CoachHandler) PropagateLibrarySession(c *gin.Context) {
	h.respondPropagation(c)(h.propagation.PropagateLibrarySession(c.Request.Context(), c.Param("librarySessionId")))
}

func (h *CoachHandler) PropagatePlan(c *gin.Context) {
	h.respondPropagation(c)(h.propagation.PropagatePlan(c.Request.Context(), c.Param("planId")))
}

func (h *CoachHandler) PropagateNutritionPlan(c *gin.Context) {
	h.respondPropagation(c)(h.propagation.PropagateNutritionPlan(c.Request.Context(), c.Param("nutritionPlanId")))
}

func (h *CoachHandler) respondPropagation(c *gin.Context) func(*service.PropagationResult, error) {
	return func(res *service.PropagationResult, err error) {
		if err != nil {
			respondError(c, h.log, err, "Propagation failed.")
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// === Workflows ===

func (h *CoachHandler) GetWorkflow(c *gin.Context) {
	wf, err := h.scheduler.GetWorkflow(c.Request.Context(), c.Param("workflowId"))
	if err != nil {
		respondError(c, h.log, err, "Failed to retrieve workflow.")
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (h *CoachHandler) ResumeWorkflow(c *gin.Context) {
	wf, err := h.scheduler.ResumeWorkflow(c.Request.Context(), c.Param("workflowId"))
	if err != nil {
		respondWorkflowError(c, h.log, wf, err, "Failed to resume workflow.")
		return
	}
	c.JSON(http.StatusOK, wf)
}

// === Archives ===

// archiveKey reads and checks the ?key= of an archive request.
func (h *CoachHandler) archiveKey(c *gin.Context) (string, bool) {
	if h.archives == nil {
		abortWithError(c, http.StatusServiceUnavailable, "Copy archiving is not configured.")
		return "", false
	}
	key := c.Query("key")
	if !strings.HasPrefix(key, "archives/") || strings.Contains(key, "..") {
		abortWithError(c, http.StatusBadRequest, "Invalid archive key.")
		return "", false
	}
	return key, true
}

// GetArchiveURL returns a presigned download URL for an archived copy.
func (h *CoachHandler) GetArchiveURL(c *gin.Context) {
	key, ok := h.archiveKey(c)
	if !ok {
		return
	}
	url, err := h.archives.GeneratePresignedDownloadURL(c.Request.Context(), key, storage.DefaultPresignedURLExpiry)
	if err != nil {
		respondError(c, h.log, err, "Failed to generate download URL.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"downloadUrl": url, "expiresIn": storage.DefaultPresignedURLExpiry.String()})
}

func (h *CoachHandler) DeleteArchive(c *gin.Context) {
	key, ok := h.archiveKey(c)
	if !ok {
		return
	}
	if err := h.archives.DeleteObject(c.Request.Context(), key); err != nil {
		respondError(c, h.log, err, "Failed to delete archive.")
		return
	}
	h.log.Info("copy archive deleted", "objectKey", key)
	c.Status(http.StatusNoContent)
}
