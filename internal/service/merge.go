package service

import "alcyxob/coaching-platform/internal/domain"

// MergePlanSession produces the resolved form of a plan session.
//
// For a library reference, title and image come from the plan session when
// set and from the library session otherwise; exercises and sets always come
// from the library. Inline sessions are used as they are. A nil lib yields a
// reference session with no exercises.
//
// The result shares no memory with its inputs.
func MergePlanSession(planID string, ps domain.PlanSession, lib *domain.LibrarySession) domain.ClientSession {
	out := domain.ClientSession{
		ID:         ps.ID,
		Title:      ps.Title,
		Image:      ps.Image,
		Order:      ps.Order,
		Provenance: domain.PlanSessionProvenance(planID, ps.ID),
	}
	if ps.DayIndex != nil {
		d := *ps.DayIndex
		out.DayIndex = &d
	}

	if !ps.IsLibraryReference() {
		out.Exercises = domain.CloneExercises(ps.Exercises)
		return out
	}

	out.LibrarySessionRef = ps.LibrarySessionRef
	if lib == nil {
		out.Exercises = []domain.Exercise{}
		return out
	}
	if out.Title == "" {
		out.Title = lib.Title
	}
	if out.Image == "" {
		out.Image = lib.Image
	}
	out.Exercises = domain.CloneExercises(lib.Exercises)
	return out
}

// librarySessionAsClient resolves a bare library session, as used by
// date-assigned sessions that have no plan behind them.
func librarySessionAsClient(id string, lib *domain.LibrarySession) domain.ClientSession {
	return domain.ClientSession{
		ID:                id,
		Title:             lib.Title,
		Image:             lib.Image,
		LibrarySessionRef: lib.ID,
		Provenance:        domain.LibraryProvenance(lib.ID),
		Exercises:         domain.CloneExercises(lib.Exercises),
	}
}
