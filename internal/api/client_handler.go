// internal/api/client_handler.go
package api

import (
	"alcyxob/coaching-platform/internal/calendar"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// maxRangeDays caps calendar range requests.
const maxRangeDays = 366

type ClientHandler struct {
	log       *logger.Logger
	resolver  service.ContentResolver
	scheduler service.SchedulerService
	loc       *time.Location
	now       func() time.Time
}

// NewClientHandler builds the client-facing calendar handler. loc is the
// zone used to decide which week is "current".
func NewClientHandler(log *logger.Logger, resolver service.ContentResolver, scheduler service.SchedulerService, loc *time.Location) *ClientHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ClientHandler{
		log:       log.With("handler", "ClientHandler"),
		resolver:  resolver,
		scheduler: scheduler,
		loc:       loc,
		now:       time.Now,
	}
}

func (h *ClientHandler) clientID(c *gin.Context) (string, bool) {
	p, err := principalFrom(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify client.")
		return "", false
	}
	return p.ID, true
}

// GetMyWeek godoc
// @Summary Resolve one week of my calendar
// @Description Returns the sessions the client sees for the week, from their personalized copy or the assigned plan.
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Param programId path string true "Program ID"
// @Param weekKey path string true "Week key, YYYY-Www"
// @Success 200 {object} service.ResolvedWeek
// @Failure 400 {object} gin.H "Invalid week key"
// @Failure 401 {object} gin.H "Unauthorized"
// @Router /client/programs/{programId}/weeks/{weekKey} [get]
func (h *ClientHandler) GetMyWeek(c *gin.Context) {
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}
	week, err := h.resolver.ResolveWeek(c.Request.Context(), clientID, c.Param("programId"), c.Param("weekKey"))
	if err != nil {
		respondError(c, h.log, err, "Failed to resolve week.")
		return
	}
	c.JSON(http.StatusOK, week)
}

// GetMyCurrentWeek resolves the week containing today in the configured zone.
func (h *ClientHandler) GetMyCurrentWeek(c *gin.Context) {
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}
	weekKey := calendar.MondayWeek(h.now().In(h.loc))
	week, err := h.resolver.ResolveWeek(c.Request.Context(), clientID, c.Param("programId"), weekKey)
	if err != nil {
		respondError(c, h.log, err, "Failed to resolve week.")
		return
	}
	c.JSON(http.StatusOK, week)
}

// GetMyCalendar godoc
// @Summary Resolve every week touched by a date range
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Param start query string true "First day, YYYY-MM-DD"
// @Param end query string true "Last day, YYYY-MM-DD"
// @Success 200 {array} service.ResolvedWeek
// @Router /client/programs/{programId}/calendar [get]
func (h *ClientHandler) GetMyCalendar(c *gin.Context) {
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}
	start, err := calendar.ParseDateKey(c.Query("start"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	end, err := calendar.ParseDateKey(c.Query("end"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if end.Before(start) || end.Sub(start) > maxRangeDays*24*time.Hour {
		abortWithError(c, http.StatusBadRequest, "Range must be ordered and at most a year long.")
		return
	}

	weeks, err := h.resolver.ResolveRange(c.Request.Context(), clientID, c.Param("programId"), start, end)
	if err != nil {
		respondError(c, h.log, err, "Failed to resolve calendar.")
		return
	}
	c.JSON(http.StatusOK, weeks)
}

// GetMyAssignment resolves the content behind one dated session.
func (h *ClientHandler) GetMyAssignment(c *gin.Context) {
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}
	res, err := h.resolver.ResolveSessionAssignment(c.Request.Context(), c.Param("assignmentId"))
	if err != nil {
		respondError(c, h.log, err, "Failed to resolve session.")
		return
	}
	// Someone else's assignment is reported as missing.
	if res.Assignment.ClientID != clientID {
		respondError(c, h.log, service.ErrAssignmentNotFound, "")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ClientHandler) CompleteAssignment(c *gin.Context) {
	clientID, ok := h.clientID(c)
	if !ok {
		return
	}
	completion, err := h.scheduler.MarkSessionCompleted(c.Request.Context(), clientID, c.Param("assignmentId"))
	if err != nil {
		respondError(c, h.log, err, "Failed to record completion.")
		return
	}
	c.JSON(http.StatusCreated, completion)
}
