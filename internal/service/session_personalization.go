package service

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/repository"
	"context"
	"errors"
	"fmt"
)

// Session-level copies overlay a single date-assigned library session. They
// are keyed by the assignment id; sessions scheduled from a plan are
// personalized through their week instead.

// assignmentFor loads an assignment and checks it belongs to clientID.
func (s *personalizationService) assignmentFor(ctx context.Context, clientID, assignmentID string) (*domain.ClientSessionAssignment, error) {
	a, err := s.store.SessionAssignments.GetByID(ctx, assignmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAssignmentNotFound, assignmentID)
	}
	if err != nil {
		return nil, err
	}
	if a.ClientID != clientID {
		return nil, fmt.Errorf("%w: %s", ErrAssignmentNotFound, assignmentID)
	}
	return a, nil
}

func (s *personalizationService) CopyFromLibrary(ctx context.Context, clientID, assignmentID, librarySessionID string) (*domain.ClientSessionContent, error) {
	a, err := s.assignmentFor(ctx, clientID, assignmentID)
	if err != nil {
		return nil, err
	}
	return s.copyFromLibrary(ctx, a, librarySessionID)
}

func (s *personalizationService) copyFromLibrary(ctx context.Context, a *domain.ClientSessionAssignment, librarySessionID string) (*domain.ClientSessionContent, error) {
	if librarySessionID == "" {
		librarySessionID = a.LibrarySessionID
	}
	lib, err := s.store.LibrarySessions.GetByID(ctx, librarySessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrLibrarySessionNotFound, librarySessionID)
	}
	if err != nil {
		return nil, err
	}

	content := &domain.ClientSessionContent{
		ID:         a.ID,
		ClientID:   a.ClientID,
		ProgramID:  a.ProgramID,
		Provenance: domain.LibraryProvenance(lib.ID),
		Title:      lib.Title,
		Image:      lib.Image,
		Exercises:  domain.CloneExercises(lib.Exercises),
	}
	if err := s.store.SessionContents.Save(ctx, content); err != nil {
		s.log.Error("failed to save session copy", "assignmentId", a.ID, "librarySessionId", lib.ID, "error", err)
		return nil, err
	}
	copiesCreated.WithLabelValues(string(domain.CopyKindSession)).Inc()
	s.log.Info("session copy created from library", "clientId", a.ClientID, "assignmentId", a.ID, "librarySessionId", lib.ID)
	return content, nil
}

// mutateAssigned makes sure the assignment has its own copy, applies fn and
// saves it.
func (s *personalizationService) mutateAssigned(ctx context.Context, clientID, assignmentID, action string, fn func(c *domain.ClientSessionContent) error) (*domain.ClientSessionContent, error) {
	a, err := s.assignmentFor(ctx, clientID, assignmentID)
	if err != nil {
		return nil, err
	}

	c, err := s.store.SessionContents.Get(ctx, a.ID)
	if errors.Is(err, repository.ErrNotFound) {
		if a.LibrarySessionID == "" || a.IsPlanBacked() {
			return nil, preconditionf("session %s belongs to week %s; personalize the week instead", a.SessionID, a.WeekKey)
		}
		c, err = s.copyFromLibrary(ctx, a, "")
	}
	if err != nil {
		return nil, err
	}

	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.store.SessionContents.Save(ctx, c); err != nil {
		s.log.Error("failed to save session copy", "action", action, "assignmentId", a.ID, "error", err)
		return nil, err
	}
	s.log.Info("session copy updated", "action", action, "clientId", clientID, "assignmentId", a.ID)
	return c, nil
}

func (s *personalizationService) UpdateAssignedSession(ctx context.Context, clientID, assignmentID string, p SessionPatch) (*domain.ClientSessionContent, error) {
	if p.DayIndex != nil || p.Order != nil {
		return nil, preconditionf("date-assigned sessions are rescheduled, not reordered")
	}
	return s.mutateAssigned(ctx, clientID, assignmentID, "update_session", func(c *domain.ClientSessionContent) error {
		if p.Title != nil {
			c.Title = *p.Title
		}
		if p.Image != nil {
			c.Image = *p.Image
		}
		return nil
	})
}

func (s *personalizationService) AddAssignedExercise(ctx context.Context, clientID, assignmentID string, in ExerciseInput) (*domain.ClientSessionContent, error) {
	return s.mutateAssigned(ctx, clientID, assignmentID, "add_exercise", func(c *domain.ClientSessionContent) error {
		c.Exercises = s.editor.addExercise(c.Exercises, in)
		return nil
	})
}

func (s *personalizationService) UpdateAssignedExercise(ctx context.Context, clientID, assignmentID, exerciseID string, p ExercisePatch) (*domain.ClientSessionContent, error) {
	return s.mutateAssigned(ctx, clientID, assignmentID, "update_exercise", func(c *domain.ClientSessionContent) error {
		return s.editor.updateExercise(c.Exercises, exerciseID, p)
	})
}

func (s *personalizationService) DeleteAssignedExercise(ctx context.Context, clientID, assignmentID, exerciseID string) (*domain.ClientSessionContent, error) {
	return s.mutateAssigned(ctx, clientID, assignmentID, "delete_exercise", func(c *domain.ClientSessionContent) error {
		var err error
		c.Exercises, err = s.editor.deleteExercise(c.Exercises, exerciseID)
		return err
	})
}

func (s *personalizationService) AddAssignedSet(ctx context.Context, clientID, assignmentID, exerciseID string, in SetInput) (*domain.ClientSessionContent, error) {
	return s.mutateAssigned(ctx, clientID, assignmentID, "add_set", func(c *domain.ClientSessionContent) error {
		_, err := s.editor.addSet(c.Exercises, exerciseID, in)
		return err
	})
}

func (s *personalizationService) UpdateAssignedSet(ctx context.Context, clientID, assignmentID, exerciseID, setID string, p SetPatch) (*domain.ClientSessionContent, error) {
	return s.mutateAssigned(ctx, clientID, assignmentID, "update_set", func(c *domain.ClientSessionContent) error {
		return s.editor.updateSet(c.Exercises, exerciseID, setID, p)
	})
}

func (s *personalizationService) DeleteAssignedSet(ctx context.Context, clientID, assignmentID, exerciseID, setID string) (*domain.ClientSessionContent, error) {
	return s.mutateAssigned(ctx, clientID, assignmentID, "delete_set", func(c *domain.ClientSessionContent) error {
		return s.editor.deleteSet(c.Exercises, exerciseID, setID)
	})
}

func (s *personalizationService) ResetToLibrary(ctx context.Context, clientID, assignmentID string, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	a, err := s.assignmentFor(ctx, clientID, assignmentID)
	if err != nil {
		return err
	}

	c, err := s.store.SessionContents.Get(ctx, a.ID)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Info("reset requested for session without copy", "clientId", clientID, "assignmentId", a.ID)
		return nil
	}
	if err != nil {
		return err
	}

	archiveCopy(ctx, s.log, s.archiver, domain.CopyKindSession, c.ClientID, c.ID, "reset", c)
	if err := s.store.SessionContents.Delete(ctx, c.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	copiesDeleted.WithLabelValues(string(domain.CopyKindSession), "reset").Inc()
	s.log.Info("session copy reset to library", "clientId", clientID, "assignmentId", a.ID, "provenance", c.Provenance)
	return nil
}
