package service

import (
	"alcyxob/coaching-platform/internal/cache"
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/repository"
	"alcyxob/coaching-platform/internal/repository/memory"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	coachID   = "coach-1"
	clientID  = "client-1"
	programID = "prog-1"
	planID    = "plan-hyp"
	libSquat  = "lib-squat"
	libBench  = "lib-bench"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

type archivedCopy struct {
	kind   domain.CopyKind
	copyID string
	reason string
}

type recordingArchiver struct {
	mu    sync.Mutex
	items []archivedCopy
	err   error
}

func (a *recordingArchiver) Archive(_ context.Context, kind domain.CopyKind, clientID, copyID, reason string, _ any) (*domain.CopyArchive, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	a.items = append(a.items, archivedCopy{kind: kind, copyID: copyID, reason: reason})
	return &domain.CopyArchive{ObjectKey: "archives/" + copyID, Kind: kind, CopyID: copyID, ClientID: clientID, Reason: reason}, nil
}

func (a *recordingArchiver) archived() []archivedCopy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]archivedCopy(nil), a.items...)
}

type testEnv struct {
	ctx             context.Context
	store           *repository.Store
	cache           *cache.Memory
	archiver        *recordingArchiver
	resolver        ContentResolver
	personalization PersonalizationService
	scheduler       SchedulerService
	propagation     PropagationService
}

func newTestEnv(t *testing.T, opts memory.Options) *testEnv {
	t.Helper()
	log := logger.Nop()
	store := memory.NewStore(opts)
	weekCache := cache.NewMemory(time.Minute)
	archiver := &recordingArchiver{}

	personalization := NewPersonalizationService(log, store, weekCache, archiver)
	env := &testEnv{
		ctx:             context.Background(),
		store:           store,
		cache:           weekCache,
		archiver:        archiver,
		resolver:        NewContentResolver(log, store, weekCache),
		personalization: personalization,
		scheduler:       NewSchedulerService(log, store, weekCache, archiver, personalization),
		propagation:     NewPropagationService(log, store, weekCache, archiver),
	}
	seedLibrary(t, env)
	seedPlan(t, env)
	return env
}

func seedLibrary(t *testing.T, env *testEnv) {
	t.Helper()
	rest := 120
	require.NoError(t, env.store.LibrarySessions.Upsert(env.ctx, &domain.LibrarySession{
		ID:        libSquat,
		CreatorID: coachID,
		Title:     "Back Squat",
		Image:     "squat.jpg",
		Exercises: []domain.Exercise{{
			ID:    "ex-squat",
			Title: "Squat",
			Sets: []domain.Set{
				{ID: "set-squat-1", Reps: "5", Intensity: "RPE 7", RestSeconds: &rest, Order: 0},
				{ID: "set-squat-2", Reps: "5", Intensity: "RPE 8", RestSeconds: &rest, Order: 1},
			},
		}},
	}))
	require.NoError(t, env.store.LibrarySessions.Upsert(env.ctx, &domain.LibrarySession{
		ID:        libBench,
		CreatorID: coachID,
		Title:     "Bench Press",
		Exercises: []domain.Exercise{{
			ID:    "ex-bench",
			Title: "Bench",
			Sets:  []domain.Set{{ID: "set-bench-1", Reps: "8", Order: 0}},
		}},
	}))
}

// seedPlan stores "Hypertrophy A" with three weeks. Modules are stored out of
// order to exercise ordering by Module.Order.
func seedPlan(t *testing.T, env *testEnv) {
	t.Helper()
	require.NoError(t, env.store.Plans.Upsert(env.ctx, &domain.Plan{
		ID:        planID,
		CreatorID: coachID,
		Title:     "Hypertrophy A",
		Modules: []domain.Module{
			{ID: "m3", Title: "Week3", Order: 2, Sessions: []domain.PlanSession{
				{ID: "s3-1", DayIndex: intPtr(0), Order: 0, LibrarySessionRef: libBench},
			}},
			{ID: "m1", Title: "Week1", Order: 0, Sessions: []domain.PlanSession{
				{ID: "s1-1", DayIndex: intPtr(0), Order: 0, LibrarySessionRef: libSquat},
				{ID: "s1-2", Title: "Conditioning", DayIndex: intPtr(2), Order: 1, UseLocalContent: true, Exercises: []domain.Exercise{
					{ID: "ex-row", Title: "Row", Sets: []domain.Set{{ID: "set-row-1", Reps: "500m"}}},
				}},
				{ID: "s1-3", Title: "Heavy Bench", DayIndex: intPtr(4), Order: 2, LibrarySessionRef: libBench},
			}},
			{ID: "m2", Title: "Week2", Order: 1, Sessions: []domain.PlanSession{
				{ID: "s2-1", DayIndex: intPtr(1), Order: 0, LibrarySessionRef: libSquat},
				{ID: "s2-2", Title: "Mobility", DayIndex: intPtr(3), Order: 1, UseLocalContent: true, Exercises: []domain.Exercise{}},
			}},
		},
	}))
}

// assignHypertrophy schedules the seeded plan from 2025-W10.
func (env *testEnv) assignHypertrophy(t *testing.T) {
	t.Helper()
	wf, err := env.scheduler.AssignPlanToConsecutiveWeeks(env.ctx, programID, clientID, planID, "2025-W10")
	require.NoError(t, err)
	require.True(t, wf.Done())
}

func (env *testEnv) week(key string) WeekRef {
	return WeekRef{ClientID: clientID, ProgramID: programID, WeekKey: key}
}

func (env *testEnv) resolve(t *testing.T, key string) *ResolvedWeek {
	t.Helper()
	w, err := env.resolver.ResolveWeek(env.ctx, clientID, programID, key)
	require.NoError(t, err)
	return w
}

func sessionIDs(sessions []domain.ClientSession) []string {
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}

func sessionTitles(sessions []domain.ClientSession) []string {
	titles := make([]string, len(sessions))
	for i, s := range sessions {
		titles[i] = s.Title
	}
	return titles
}

var errInjected = errors.New("injected store failure")

// flakyPlanContents fails selected writes of the wrapped repository.
type flakyPlanContents struct {
	repository.ClientPlanContentRepository
	mu         sync.Mutex
	failSave   func(*domain.ClientPlanContent) bool
	failDelete map[string]bool
}

func (f *flakyPlanContents) Save(ctx context.Context, c *domain.ClientPlanContent) error {
	f.mu.Lock()
	fail := f.failSave != nil && f.failSave(c)
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.ClientPlanContentRepository.Save(ctx, c)
}

func (f *flakyPlanContents) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	fail := f.failDelete[id]
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.ClientPlanContentRepository.Delete(ctx, id)
}

func (f *flakyPlanContents) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave = nil
	f.failDelete = nil
}

// flakyWeekAssignments fails upserts of selected weeks.
type flakyWeekAssignments struct {
	repository.WeekAssignmentRepository
	failWeeks map[string]bool
}

func (f *flakyWeekAssignments) Upsert(ctx context.Context, a *domain.WeekAssignment) error {
	if f.failWeeks[a.WeekKey] {
		return errInjected
	}
	return f.WeekAssignmentRepository.Upsert(ctx, a)
}
