package service

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/repository"
	"alcyxob/coaching-platform/internal/storage"
	"context"
	"errors"
)

// completedAssignmentIDs returns the keys of every assignment the client has
// completed. Completions share their key with the assignment.
func completedAssignmentIDs(ctx context.Context, completions repository.CompletionRepository, clientID string) (map[string]bool, error) {
	list, err := completions.ListByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(list))
	for _, c := range list {
		done[c.ID] = true
	}
	return done, nil
}

// removeDateAssignments deletes the week's date assignments accepted by match,
// along with any session copy keyed by them. Completed ones stay.
func removeDateAssignments(ctx context.Context, store *repository.Store, clientID, programID, weekKey string, match func(*domain.ClientSessionAssignment) bool) (int, error) {
	list, err := store.SessionAssignments.ListByWeek(ctx, clientID, programID, weekKey)
	if err != nil {
		return 0, err
	}
	done, err := completedAssignmentIDs(ctx, store.Completions, clientID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for i := range list {
		a := &list[i]
		if done[a.ID] || (match != nil && !match(a)) {
			continue
		}
		if err := store.SessionAssignments.Delete(ctx, a.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return removed, err
		}
		if err := store.SessionContents.Delete(ctx, a.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// archiveCopy stores the copy before it is deleted. Archiving is best effort:
// a failure is logged and the deletion goes ahead.
func archiveCopy(ctx context.Context, log *logger.Logger, archiver storage.CopyArchiver, kind domain.CopyKind, clientID, copyID, reason string, doc any) {
	rec, err := archiver.Archive(ctx, kind, clientID, copyID, reason, doc)
	if err != nil {
		log.Warn("copy archive failed", "kind", kind, "copyId", copyID, "clientId", clientID, "reason", reason, "error", err)
		return
	}
	if rec != nil {
		log.Info("copy archived", "kind", kind, "copyId", copyID, "clientId", clientID, "reason", reason, "objectKey", rec.ObjectKey)
	}
}

// loadPlanModule fetches a plan and one of its modules.
func loadPlanModule(ctx context.Context, plans repository.PlanRepository, planID, moduleID string) (*domain.Plan, *domain.Module, error) {
	plan, err := plans.GetByID(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	module, _, ok := plan.ModuleByID(moduleID)
	if !ok {
		return nil, nil, ErrModuleNotFound
	}
	return plan, module, nil
}

// replaceDateAssignment saves a after removing the program's other
// assignments on the same date, keeping completed ones.
func replaceDateAssignment(ctx context.Context, store *repository.Store, a *domain.ClientSessionAssignment) error {
	prior, err := store.SessionAssignments.ListByProgramDate(ctx, a.ClientID, a.ProgramID, a.Date)
	if err != nil {
		return err
	}
	if len(prior) > 0 {
		done, err := completedAssignmentIDs(ctx, store.Completions, a.ClientID)
		if err != nil {
			return err
		}
		for _, p := range prior {
			if p.ID == domain.SessionAssignmentKey(a.ClientID, a.Date, a.SessionID) || done[p.ID] {
				continue
			}
			if err := store.SessionAssignments.Delete(ctx, p.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if err := store.SessionContents.Delete(ctx, p.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}
	}
	return store.SessionAssignments.Save(ctx, a)
}
