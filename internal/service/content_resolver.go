package service

import (
	"alcyxob/coaching-platform/internal/cache"
	"alcyxob/coaching-platform/internal/calendar"
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/repository"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// WeekState is where a week's content currently comes from.
type WeekState string

const (
	WeekNoAssignment WeekState = "no_assignment"
	WeekPlanBacked   WeekState = "plan_backed"
	WeekPersonalized WeekState = "personalized"
)

// SessionSource tells which tier a single resolved session came from.
type SessionSource string

const (
	SourceSessionCopy SessionSource = "session_copy"
	SourceWeekCopy    SessionSource = "week_copy"
	SourcePlan        SessionSource = "plan"
	SourceLibrary     SessionSource = "library"
	SourceNone        SessionSource = "none"
)

// maxConcurrentWeeks bounds the store round trips issued by ResolveWeeks.
const maxConcurrentWeeks = 8

// ResolvedWeek is what the calendar shows for one client/program/week.
type ResolvedWeek struct {
	ClientID    string                 `json:"clientId"`
	ProgramID   string                 `json:"programId"`
	WeekKey     string                 `json:"weekKey"`
	State       WeekState              `json:"state"`
	PlanID      string                 `json:"planId,omitempty"`
	ModuleID    string                 `json:"moduleId,omitempty"`
	ModuleIndex *int                   `json:"moduleIndex,omitempty"`
	Sessions    []domain.ClientSession `json:"sessions"`
}

// ResolvedSession is the content behind one date assignment.
type ResolvedSession struct {
	Assignment domain.ClientSessionAssignment `json:"assignment"`
	Source     SessionSource                  `json:"source"`
	Session    *domain.ClientSession          `json:"session,omitempty"`
}

// ContentResolver decides which tier is authoritative for a week or a session
// and returns fully resolved content. It never writes.
type ContentResolver interface {
	ResolveWeek(ctx context.Context, clientID, programID, weekKey string) (*ResolvedWeek, error)
	ResolveWeeks(ctx context.Context, clientID, programID string, weekKeys []string) ([]ResolvedWeek, error)
	ResolveRange(ctx context.Context, clientID, programID string, start, end time.Time) ([]ResolvedWeek, error)
	ResolveSessionAssignment(ctx context.Context, assignmentID string) (*ResolvedSession, error)
}

type contentResolver struct {
	log   *logger.Logger
	store *repository.Store
	cache cache.WeekCache
}

// NewContentResolver creates a resolver; a nil weekCache disables caching.
func NewContentResolver(log *logger.Logger, store *repository.Store, weekCache cache.WeekCache) ContentResolver {
	if weekCache == nil {
		weekCache = cache.Noop{}
	}
	return &contentResolver{
		log:   log.With("service", "ContentResolver"),
		store: store,
		cache: weekCache,
	}
}

func (r *contentResolver) ResolveWeek(ctx context.Context, clientID, programID, weekKey string) (*ResolvedWeek, error) {
	if _, _, err := calendar.WeekDates(weekKey); err != nil {
		return nil, err
	}

	week, gen, ok := r.cached(ctx, clientID, programID, weekKey)
	if ok {
		return week, nil
	}

	week, err := r.resolveWeek(ctx, clientID, programID, weekKey)
	if err != nil {
		return nil, err
	}

	// gen was read before the store; an edit invalidating the week since
	// then makes this Set a no-op.
	if raw, err := json.Marshal(week); err == nil {
		if err := r.cache.Set(ctx, clientID, programID, weekKey, gen, raw); err != nil {
			r.log.Warn("week cache write failed", "clientId", clientID, "programId", programID, "week", weekKey, "error", err)
		}
	}
	return week, nil
}

func (r *contentResolver) cached(ctx context.Context, clientID, programID, weekKey string) (*ResolvedWeek, int64, bool) {
	raw, gen, ok, err := r.cache.Get(ctx, clientID, programID, weekKey)
	if err != nil {
		r.log.Warn("week cache read failed", "clientId", clientID, "programId", programID, "week", weekKey, "error", err)
		// An unknown generation must not be written back.
		return nil, -1, false
	}
	if !ok {
		weekCacheLookups.WithLabelValues("miss").Inc()
		return nil, gen, false
	}
	var week ResolvedWeek
	if err := json.Unmarshal(raw, &week); err != nil {
		r.log.Warn("discarding undecodable cached week", "week", weekKey, "error", err)
		return nil, gen, false
	}
	weekCacheLookups.WithLabelValues("hit").Inc()
	return &week, gen, true
}

func (r *contentResolver) resolveWeek(ctx context.Context, clientID, programID, weekKey string) (*ResolvedWeek, error) {
	week := &ResolvedWeek{
		ClientID:  clientID,
		ProgramID: programID,
		WeekKey:   weekKey,
		State:     WeekNoAssignment,
		Sessions:  []domain.ClientSession{},
	}

	// 1. A copy with at least one session wins over everything else.
	copyDoc, err := r.store.PlanContents.Get(ctx, domain.PlanContentKey(clientID, programID, weekKey))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if copyDoc.HasSessions() {
		week.State = WeekPersonalized
		if copyDoc.Provenance.SourceType == domain.SourcePlanModule {
			week.PlanID = copyDoc.Provenance.SourceID
			week.ModuleID = copyDoc.Provenance.SourceSubID
		}
		week.Sessions = copyDoc.Sessions
		return week, nil
	}

	// 2. Otherwise the assigned plan module, merged with the live library.
	wa, err := r.store.WeekAssignments.Get(ctx, clientID, programID, weekKey)
	if errors.Is(err, repository.ErrNotFound) {
		return week, nil
	}
	if err != nil {
		return nil, err
	}
	week.State = WeekPlanBacked
	week.PlanID = wa.PlanID
	week.ModuleID = wa.ModuleID
	idx := wa.ModuleIndex
	week.ModuleIndex = &idx

	sessions, err := r.planModuleSessions(ctx, wa)
	if err != nil {
		return nil, err
	}
	week.Sessions = sessions
	return week, nil
}

// planModuleSessions resolves the module behind a week assignment. Missing
// plans, modules and library sessions are logged and produce fewer (or
// emptier) sessions rather than an error.
func (r *contentResolver) planModuleSessions(ctx context.Context, wa *domain.WeekAssignment) ([]domain.ClientSession, error) {
	out := []domain.ClientSession{}
	plan, err := r.store.Plans.GetByID(ctx, wa.PlanID)
	if errors.Is(err, repository.ErrNotFound) {
		r.log.Warn("assigned plan is missing", "clientId", wa.ClientID, "programId", wa.ProgramID, "week", wa.WeekKey, "planId", wa.PlanID)
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	module, ok := plan.ModuleAt(wa.ModuleIndex)
	if !ok && wa.ModuleID != "" {
		module, _, ok = plan.ModuleByID(wa.ModuleID)
	}
	if !ok {
		r.log.Warn("assigned plan module is missing", "planId", plan.ID, "moduleIndex", wa.ModuleIndex, "moduleId", wa.ModuleID, "week", wa.WeekKey)
		return out, nil
	}

	libs := make(map[string]*domain.LibrarySession)
	for _, ps := range module.OrderedSessions() {
		var lib *domain.LibrarySession
		if ps.IsLibraryReference() {
			if lib, err = r.librarySession(ctx, libs, ps.LibrarySessionRef); err != nil {
				return nil, err
			}
			if lib == nil {
				r.log.Warn("library session referenced by plan is missing", "planId", plan.ID, "sessionId", ps.ID, "librarySessionId", ps.LibrarySessionRef)
			}
		}
		out = append(out, MergePlanSession(plan.ID, ps, lib))
	}
	domain.SortSessions(out)
	return out, nil
}

// librarySession loads id once per resolution; nil means it does not exist.
func (r *contentResolver) librarySession(ctx context.Context, seen map[string]*domain.LibrarySession, id string) (*domain.LibrarySession, error) {
	if lib, ok := seen[id]; ok {
		return lib, nil
	}
	lib, err := r.store.LibrarySessions.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		lib, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	seen[id] = lib
	return lib, nil
}

func (r *contentResolver) ResolveWeeks(ctx context.Context, clientID, programID string, weekKeys []string) ([]ResolvedWeek, error) {
	out := make([]ResolvedWeek, len(weekKeys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentWeeks)
	for i, key := range weekKeys {
		g.Go(func() error {
			week, err := r.ResolveWeek(gctx, clientID, programID, key)
			if err != nil {
				return fmt.Errorf("resolve week %s: %w", key, err)
			}
			out[i] = *week
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contentResolver) ResolveRange(ctx context.Context, clientID, programID string, start, end time.Time) ([]ResolvedWeek, error) {
	return r.ResolveWeeks(ctx, clientID, programID, calendar.WeeksBetween(start, end))
}

func (r *contentResolver) ResolveSessionAssignment(ctx context.Context, assignmentID string) (*ResolvedSession, error) {
	a, err := r.store.SessionAssignments.GetByID(ctx, assignmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAssignmentNotFound, assignmentID)
	}
	if err != nil {
		return nil, err
	}
	res := &ResolvedSession{Assignment: *a, Source: SourceNone}

	// 1. Session-level copy.
	sc, err := r.store.SessionContents.Get(ctx, a.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if sc != nil {
		res.Source = SourceSessionCopy
		res.Session = &domain.ClientSession{
			ID:                a.SessionID,
			Title:             sc.Title,
			Image:             sc.Image,
			LibrarySessionRef: sc.Provenance.SourceID,
			Provenance:        sc.Provenance,
			Exercises:         sc.Exercises,
		}
		return res, nil
	}

	// 2. Sessions that live in a week (scheduled from a plan, or moved there)
	// resolve through that week.
	if a.IsPlanBacked() || a.LibrarySessionID == "" {
		week, err := r.ResolveWeek(ctx, a.ClientID, a.ProgramID, a.WeekKey)
		if err != nil {
			return nil, err
		}
		for i := range week.Sessions {
			if week.Sessions[i].ID == a.SessionID {
				s := week.Sessions[i]
				res.Session = &s
				res.Source = SourcePlan
				if week.State == WeekPersonalized {
					res.Source = SourceWeekCopy
				}
				return res, nil
			}
		}
		r.log.Warn("assigned session is no longer in its week", "assignmentId", a.ID, "week", a.WeekKey, "sessionId", a.SessionID, "state", week.State)
		return res, nil
	}

	// 3. Bare library reference.
	libID := a.LibrarySessionID
	lib, err := r.store.LibrarySessions.GetByID(ctx, libID)
	if errors.Is(err, repository.ErrNotFound) {
		r.log.Warn("assigned library session is missing", "assignmentId", a.ID, "librarySessionId", libID)
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	s := librarySessionAsClient(a.SessionID, lib)
	res.Session = &s
	res.Source = SourceLibrary
	return res, nil
}

// invalidateWeeks drops cached weeks after a write. Entries still expire by
// TTL, so a failure is only logged.
func invalidateWeeks(ctx context.Context, log *logger.Logger, c cache.WeekCache, clientID, programID string, weekKeys ...string) {
	if err := c.Invalidate(ctx, clientID, programID, weekKeys...); err != nil {
		log.Warn("week cache invalidation failed", "clientId", clientID, "programId", programID, "weeks", weekKeys, "error", err)
	}
}
