package service

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/repository"
	"context"
	"fmt"
)

// sagaStep is one independently retryable write of a workflow. Steps must be
// safe to run again after a crash between the write and the progress record.
type sagaStep func(ctx context.Context) error

// runWorkflow executes steps starting at wf.Step and records progress after
// each one, so a failed or interrupted workflow resumes where it stopped.
func runWorkflow(ctx context.Context, log *logger.Logger, repo repository.WorkflowRepository, wf *domain.Workflow, steps []sagaStep) error {
	wf.Status = domain.WorkflowRunning
	wf.TotalSteps = len(steps)

	for wf.Step < len(steps) {
		if err := steps[wf.Step](ctx); err != nil {
			workflowSteps.WithLabelValues(string(wf.Kind), "failed").Inc()
			wf.Status = domain.WorkflowFailed
			wf.LastError = err.Error()
			if uerr := repo.Update(ctx, wf); uerr != nil {
				log.Error("failed to record workflow failure", "workflowId", wf.ID, "error", uerr)
			}
			log.Error("workflow step failed", "workflowId", wf.ID, "kind", wf.Kind, "step", wf.Step, "error", err)
			return err
		}

		wf.Step++
		wf.LastError = ""
		if wf.Step == len(steps) {
			wf.Status = domain.WorkflowCompleted
		}
		if err := repo.Update(ctx, wf); err != nil {
			log.Error("failed to record workflow progress", "workflowId", wf.ID, "step", wf.Step, "error", err)
			return fmt.Errorf("record workflow progress: %w", err)
		}
		workflowSteps.WithLabelValues(string(wf.Kind), "ok").Inc()
		log.Info("workflow step completed", "workflowId", wf.ID, "kind", wf.Kind, "step", wf.Step, "total", len(steps))
	}

	if wf.Status != domain.WorkflowCompleted {
		wf.Status = domain.WorkflowCompleted
		if err := repo.Update(ctx, wf); err != nil {
			return fmt.Errorf("record workflow completion: %w", err)
		}
	}
	return nil
}
