package api

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/service"
	"alcyxob/coaching-platform/internal/storage"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(
	router *gin.Engine,
	log *logger.Logger,
	jwtSecret string,
	loc *time.Location,
	resolver service.ContentResolver,
	personalization service.PersonalizationService,
	scheduler service.SchedulerService,
	propagation service.PropagationService,
	archives storage.FileStorage, // nil disables the archive routes
) {
	coachHandler := NewCoachHandler(log, resolver, personalization, scheduler, propagation, archives)
	clientHandler := NewClientHandler(log, resolver, scheduler, loc)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(log, jwtSecret))
	{
		protected.GET("/me", func(c *gin.Context) {
			p, err := principalFrom(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, err.Error())
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": p.ID, "role": p.Role})
		})

		// --- Coach Routes ---
		coach := protected.Group("/coach")
		coach.Use(RoleMiddleware(log, domain.RoleCoach))
		{
			program := coach.Group("/clients/:clientId/programs/:programId")
			{
				program.POST("/plan-assignments", coachHandler.AssignPlan)
				program.GET("/plan-assignments", coachHandler.GetPlanAssignments)
				program.POST("/moves", coachHandler.MoveSession)
				program.POST("/dates/:date/session", coachHandler.AssignSessionToDate)

				week := program.Group("/weeks/:weekKey")
				{
					week.GET("", coachHandler.GetWeek)
					week.DELETE("/plan", coachHandler.RemovePlanFromWeek)
					week.POST("/personalize", coachHandler.PersonalizeWeek)
					week.POST("/copy-from-plan", coachHandler.CopyWeekFromPlan)
					week.POST("/reset", coachHandler.ResetWeek)

					week.POST("/sessions", coachHandler.AddSession)
					week.PATCH("/sessions/:sessionId", coachHandler.UpdateSession)
					week.DELETE("/sessions/:sessionId", coachHandler.DeleteSession)
					week.POST("/sessions/:sessionId/exercises", coachHandler.AddExercise)
					week.PATCH("/sessions/:sessionId/exercises/:exerciseId", coachHandler.UpdateExercise)
					week.DELETE("/sessions/:sessionId/exercises/:exerciseId", coachHandler.DeleteExercise)
					week.POST("/sessions/:sessionId/exercises/:exerciseId/sets", coachHandler.AddSet)
					week.PATCH("/sessions/:sessionId/exercises/:exerciseId/sets/:setId", coachHandler.UpdateSet)
					week.DELETE("/sessions/:sessionId/exercises/:exerciseId/sets/:setId", coachHandler.DeleteSet)
				}
			}

			assigned := coach.Group("/clients/:clientId/assignments/:assignmentId")
			{
				assigned.POST("/copy-from-library", coachHandler.CopyAssignedFromLibrary)
				assigned.PATCH("", coachHandler.UpdateAssignedSession)
				assigned.POST("/reset", coachHandler.ResetAssignedSession)
				assigned.POST("/exercises", coachHandler.AddAssignedExercise)
				assigned.PATCH("/exercises/:exerciseId", coachHandler.UpdateAssignedExercise)
				assigned.DELETE("/exercises/:exerciseId", coachHandler.DeleteAssignedExercise)
				assigned.POST("/exercises/:exerciseId/sets", coachHandler.AddAssignedSet)
				assigned.PATCH("/exercises/:exerciseId/sets/:setId", coachHandler.UpdateAssignedSet)
				assigned.DELETE("/exercises/:exerciseId/sets/:setId", coachHandler.DeleteAssignedSet)
			}

			// Propagation is triggered by the creator dashboard after an edit.
			coach.GET("/library-sessions/:librarySessionId/affected", coachHandler.AffectedByLibrarySession)
			coach.POST("/library-sessions/:librarySessionId/propagate", coachHandler.PropagateLibrarySession)
			coach.GET("/plans/:planId/affected", coachHandler.AffectedByPlan)
			coach.POST("/plans/:planId/propagate", coachHandler.PropagatePlan)
			coach.POST("/nutrition-plans/:nutritionPlanId/propagate", coachHandler.PropagateNutritionPlan)

			coach.GET("/workflows/:workflowId", coachHandler.GetWorkflow)
			coach.POST("/workflows/:workflowId/resume", coachHandler.ResumeWorkflow)

			coach.GET("/archives/url", coachHandler.GetArchiveURL)
			coach.DELETE("/archives", coachHandler.DeleteArchive)
		}

		// --- Client Routes ---
		client := protected.Group("/client")
		client.Use(RoleMiddleware(log, domain.RoleClient))
		{
			client.GET("/programs/:programId/weeks/:weekKey", clientHandler.GetMyWeek)
			client.GET("/programs/:programId/current-week", clientHandler.GetMyCurrentWeek)
			client.GET("/programs/:programId/calendar", clientHandler.GetMyCalendar)
			client.GET("/assignments/:assignmentId", clientHandler.GetMyAssignment)
			client.POST("/assignments/:assignmentId/complete", clientHandler.CompleteAssignment)
		}
	}
}
