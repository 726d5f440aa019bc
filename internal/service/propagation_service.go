package service

import (
	"alcyxob/coaching-platform/internal/cache"
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/repository"
	"alcyxob/coaching-platform/internal/storage"
	"context"
	"errors"
	"fmt"
	"sort"
)

// CopyRef identifies one personalized copy found by provenance.
type CopyRef struct {
	Kind      domain.CopyKind `json:"kind"`
	ID        string          `json:"id"`
	ClientID  string          `json:"clientId"`
	ProgramID string          `json:"programId,omitempty"`
	WeekKey   string          `json:"weekKey,omitempty"`
}

// AffectedCopies lists the copies derived from an upstream entity.
type AffectedCopies struct {
	ClientIDs []string  `json:"clientIds"`
	Copies    []CopyRef `json:"copies"`
}

// ItemError is a failure to propagate to one copy or assignment.
type ItemError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// PropagationResult reports a best-effort fan-out.
type PropagationResult struct {
	Propagated      int         `json:"propagated"`
	Errors          []ItemError `json:"errors"`
	AffectedClients []string    `json:"affectedClients"`
}

// PropagationService pushes creator edits to clients. Personalized copies
// derived from the edited entity are deleted so the next read resolves from
// the live plan or library; nutrition assignments get a fresh snapshot.
type PropagationService interface {
	FindAffectedByLibrarySession(ctx context.Context, librarySessionID string) (*AffectedCopies, error)
	FindAffectedByPlan(ctx context.Context, planID string) (*AffectedCopies, error)
	PropagateLibrarySession(ctx context.Context, librarySessionID string) (*PropagationResult, error)
	PropagatePlan(ctx context.Context, planID string) (*PropagationResult, error)
	PropagateNutritionPlan(ctx context.Context, nutritionPlanID string) (*PropagationResult, error)
}

type propagationService struct {
	log      *logger.Logger
	store    *repository.Store
	cache    cache.WeekCache
	archiver storage.CopyArchiver
}

func NewPropagationService(log *logger.Logger, store *repository.Store, weekCache cache.WeekCache, archiver storage.CopyArchiver) PropagationService {
	if weekCache == nil {
		weekCache = cache.Noop{}
	}
	if archiver == nil {
		archiver = storage.NoopArchiver{}
	}
	return &propagationService{
		log:      log.With("service", "PropagationService"),
		store:    store,
		cache:    weekCache,
		archiver: archiver,
	}
}

// withScanFallback runs the indexed query and, when the store has no index
// for it, a full scan filtered in memory. Both paths return the same shape.
func withScanFallback[T any](
	ctx context.Context,
	log *logger.Logger,
	query string,
	indexed func(context.Context) ([]T, error),
	all func(context.Context) ([]T, error),
	keep func(*T) bool,
) ([]T, error) {
	rows, err := indexed(ctx)
	if err == nil {
		return rows, nil
	}
	if !errors.Is(err, repository.ErrIndexUnavailable) {
		return nil, err
	}

	indexFallbacks.WithLabelValues(query).Inc()
	log.Warn("provenance index unavailable, scanning collection", "query", query)
	rows, err = all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for i := range rows {
		if keep(&rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

func (s *propagationService) FindAffectedByLibrarySession(ctx context.Context, librarySessionID string) (*AffectedCopies, error) {
	sessions, err := withScanFallback(ctx, s.log, "session_content_by_source",
		func(ctx context.Context) ([]domain.ClientSessionContent, error) {
			return s.store.SessionContents.FindBySourceSession(ctx, librarySessionID)
		},
		s.store.SessionContents.ListAll,
		func(c *domain.ClientSessionContent) bool { return c.Provenance.DerivesFromLibrarySession(librarySessionID) },
	)
	if err != nil {
		return nil, fmt.Errorf("find session copies of %s: %w", librarySessionID, err)
	}

	weeks, err := withScanFallback(ctx, s.log, "plan_content_by_library_ref",
		func(ctx context.Context) ([]domain.ClientPlanContent, error) {
			return s.store.PlanContents.FindByLibrarySessionRef(ctx, librarySessionID)
		},
		s.store.PlanContents.ListAll,
		func(c *domain.ClientPlanContent) bool { return c.ReferencesLibrarySession(librarySessionID) },
	)
	if err != nil {
		return nil, fmt.Errorf("find week copies referencing %s: %w", librarySessionID, err)
	}

	return collectAffected(weeks, sessions), nil
}

func (s *propagationService) FindAffectedByPlan(ctx context.Context, planID string) (*AffectedCopies, error) {
	weeks, err := withScanFallback(ctx, s.log, "plan_content_by_source",
		func(ctx context.Context) ([]domain.ClientPlanContent, error) {
			return s.store.PlanContents.FindBySourcePlan(ctx, planID)
		},
		s.store.PlanContents.ListAll,
		func(c *domain.ClientPlanContent) bool { return c.Provenance.DerivesFromPlan(planID) },
	)
	if err != nil {
		return nil, fmt.Errorf("find week copies of plan %s: %w", planID, err)
	}
	return collectAffected(weeks, nil), nil
}

func collectAffected(weeks []domain.ClientPlanContent, sessions []domain.ClientSessionContent) *AffectedCopies {
	out := &AffectedCopies{ClientIDs: []string{}, Copies: []CopyRef{}}
	clients := make(map[string]bool)
	for _, w := range weeks {
		out.Copies = append(out.Copies, CopyRef{Kind: domain.CopyKindWeek, ID: w.ID, ClientID: w.ClientID, ProgramID: w.ProgramID, WeekKey: w.WeekKey})
		clients[w.ClientID] = true
	}
	for _, sc := range sessions {
		out.Copies = append(out.Copies, CopyRef{Kind: domain.CopyKindSession, ID: sc.ID, ClientID: sc.ClientID, ProgramID: sc.ProgramID})
		clients[sc.ClientID] = true
	}
	for id := range clients {
		out.ClientIDs = append(out.ClientIDs, id)
	}
	sort.Strings(out.ClientIDs)
	return out
}

func (s *propagationService) PropagateLibrarySession(ctx context.Context, librarySessionID string) (*PropagationResult, error) {
	affected, err := s.FindAffectedByLibrarySession(ctx, librarySessionID)
	if err != nil {
		return nil, err
	}
	res := s.deleteCopies(ctx, "library_session", librarySessionID, affected)

	// Plan-backed weeks embed the library session at read time; drop their
	// cached resolution too.
	plans, err := s.store.Plans.ListReferencingLibrarySession(ctx, librarySessionID)
	if err != nil {
		s.log.Warn("could not list plans referencing library session", "librarySessionId", librarySessionID, "error", err)
	}
	for _, p := range plans {
		s.invalidatePlanWeeks(ctx, p.ID)
	}
	return res, nil
}

func (s *propagationService) PropagatePlan(ctx context.Context, planID string) (*PropagationResult, error) {
	affected, err := s.FindAffectedByPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	res := s.deleteCopies(ctx, "plan", planID, affected)
	s.invalidatePlanWeeks(ctx, planID)
	return res, nil
}

// deleteCopies archives and deletes every affected copy independently and
// reports per-item failures instead of stopping.
func (s *propagationService) deleteCopies(ctx context.Context, source, sourceID string, affected *AffectedCopies) *PropagationResult {
	res := &PropagationResult{Errors: []ItemError{}, AffectedClients: affected.ClientIDs}
	s.log.Info("propagation started", "source", source, "sourceId", sourceID, "copies", len(affected.Copies), "clients", len(affected.ClientIDs))

	for _, ref := range affected.Copies {
		if err := s.deleteCopy(ctx, ref); err != nil {
			propagationErrors.WithLabelValues(source).Inc()
			s.log.Error("propagation failed for copy", "source", source, "sourceId", sourceID, "kind", ref.Kind, "copyId", ref.ID, "error", err)
			res.Errors = append(res.Errors, ItemError{ID: ref.ID, Error: err.Error()})
			continue
		}
		res.Propagated++
		copiesDeleted.WithLabelValues(string(ref.Kind), "propagation").Inc()
		s.log.Info("copy deleted by propagation", "source", source, "sourceId", sourceID, "kind", ref.Kind, "copyId", ref.ID, "clientId", ref.ClientID)
	}

	s.log.Info("propagation finished", "source", source, "sourceId", sourceID, "propagated", res.Propagated, "failed", len(res.Errors))
	return res
}

func (s *propagationService) deleteCopy(ctx context.Context, ref CopyRef) error {
	switch ref.Kind {
	case domain.CopyKindWeek:
		c, err := s.store.PlanContents.Get(ctx, ref.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		archiveCopy(ctx, s.log, s.archiver, ref.Kind, ref.ClientID, ref.ID, "propagation", c)
		if err := s.store.PlanContents.Delete(ctx, ref.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		invalidateWeeks(ctx, s.log, s.cache, ref.ClientID, ref.ProgramID, ref.WeekKey)
	case domain.CopyKindSession:
		c, err := s.store.SessionContents.Get(ctx, ref.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		archiveCopy(ctx, s.log, s.archiver, ref.Kind, ref.ClientID, ref.ID, "propagation", c)
		if err := s.store.SessionContents.Delete(ctx, ref.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	default:
		return fmt.Errorf("unknown copy kind %q", ref.Kind)
	}
	return nil
}

func (s *propagationService) invalidatePlanWeeks(ctx context.Context, planID string) {
	rows, err := s.store.WeekAssignments.ListByPlan(ctx, planID)
	if err != nil {
		s.log.Warn("could not list weeks of plan for cache invalidation", "planId", planID, "error", err)
		return
	}
	for _, row := range rows {
		invalidateWeeks(ctx, s.log, s.cache, row.ClientID, row.ProgramID, row.WeekKey)
	}
}

// PropagateNutritionPlan re-snapshots the plan onto every assignment, since
// the client app reads the snapshot directly.
func (s *propagationService) PropagateNutritionPlan(ctx context.Context, nutritionPlanID string) (*PropagationResult, error) {
	plan, err := s.store.NutritionPlans.GetByID(ctx, nutritionPlanID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNutritionPlanNotFound, nutritionPlanID)
	}
	if err != nil {
		return nil, err
	}

	assignments, err := withScanFallback(ctx, s.log, "nutrition_assignment_by_plan",
		func(ctx context.Context) ([]domain.NutritionAssignment, error) {
			return s.store.NutritionAssignments.FindByPlan(ctx, nutritionPlanID)
		},
		s.store.NutritionAssignments.ListAll,
		func(a *domain.NutritionAssignment) bool { return a.PlanID == nutritionPlanID },
	)
	if err != nil {
		return nil, fmt.Errorf("find assignments of nutrition plan %s: %w", nutritionPlanID, err)
	}

	snapshot := plan.Snapshot()
	res := &PropagationResult{Errors: []ItemError{}, AffectedClients: []string{}}
	clients := make(map[string]bool)
	for _, a := range assignments {
		if err := s.store.NutritionAssignments.UpdateSnapshot(ctx, a.ID, snapshot); err != nil {
			propagationErrors.WithLabelValues("nutrition_plan").Inc()
			s.log.Error("nutrition snapshot update failed", "planId", nutritionPlanID, "assignmentId", a.ID, "error", err)
			res.Errors = append(res.Errors, ItemError{ID: a.ID, Error: err.Error()})
			continue
		}
		res.Propagated++
		if !clients[a.ClientID] {
			clients[a.ClientID] = true
			res.AffectedClients = append(res.AffectedClients, a.ClientID)
		}
	}
	sort.Strings(res.AffectedClients)
	s.log.Info("nutrition plan propagated", "planId", nutritionPlanID, "propagated", res.Propagated, "failed", len(res.Errors))
	return res, nil
}
