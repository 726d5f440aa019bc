package memory

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/repository"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ReturnsIsolatedDocuments(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Options{})

	c := &domain.ClientPlanContent{
		ClientID: "c", ProgramID: "p", WeekKey: "2025-W10",
		Provenance: domain.ClientProvenance(),
		Sessions:   []domain.ClientSession{{ID: "s1", Title: "A", Exercises: []domain.Exercise{}}},
	}
	require.NoError(t, store.PlanContents.Save(ctx, c))
	assert.Equal(t, "c_p_2025-W10", c.ID)

	// Mutating the caller's value after Save does not reach the store.
	c.Sessions[0].Title = "changed"
	got, err := store.PlanContents.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Sessions[0].Title)

	// Nor does mutating a value read from it.
	got.Sessions = nil
	again, err := store.PlanContents.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, again.Sessions, 1)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Options{})

	_, err := store.Plans.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, store.PlanContents.Delete(ctx, "missing"), repository.ErrNotFound)
	assert.ErrorIs(t, store.WeekAssignments.Delete(ctx, "c", "p", "2025-W10"), repository.ErrNotFound)
	assert.ErrorIs(t, store.Workflows.Update(ctx, &domain.Workflow{ID: "missing"}), repository.ErrNotFound)
}

func TestStore_ProvenanceQueriesNeedIndexes(t *testing.T) {
	ctx := context.Background()

	bare := NewStore(Options{})
	_, err := bare.PlanContents.FindBySourcePlan(ctx, "plan")
	assert.ErrorIs(t, err, repository.ErrIndexUnavailable)
	_, err = bare.PlanContents.FindByLibrarySessionRef(ctx, "lib")
	assert.ErrorIs(t, err, repository.ErrIndexUnavailable)
	_, err = bare.SessionContents.FindBySourceSession(ctx, "lib")
	assert.ErrorIs(t, err, repository.ErrIndexUnavailable)
	_, err = bare.NutritionAssignments.FindByPlan(ctx, "np")
	assert.ErrorIs(t, err, repository.ErrIndexUnavailable)

	indexed := NewStore(Options{ProvenanceIndexes: true})
	require.NoError(t, indexed.PlanContents.Save(ctx, &domain.ClientPlanContent{
		ClientID: "c", ProgramID: "p", WeekKey: "2025-W10",
		Provenance: domain.PlanModuleProvenance("plan", "m1"),
		Sessions:   []domain.ClientSession{{ID: "s1", LibrarySessionRef: "lib"}},
	}))
	byPlan, err := indexed.PlanContents.FindBySourcePlan(ctx, "plan")
	require.NoError(t, err)
	assert.Len(t, byPlan, 1)
	byLib, err := indexed.PlanContents.FindByLibrarySessionRef(ctx, "lib")
	require.NoError(t, err)
	assert.Len(t, byLib, 1)
	other, err := indexed.PlanContents.FindBySourcePlan(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestClientPrograms_CreateKeepsFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Options{})

	require.NoError(t, store.ClientPrograms.Create(ctx, &domain.ClientProgram{ClientID: "c", ProgramID: "p", CreatorID: "first"}))
	require.NoError(t, store.ClientPrograms.Create(ctx, &domain.ClientProgram{ClientID: "c", ProgramID: "p", CreatorID: "second"}))
	got, err := store.ClientPrograms.Get(ctx, "c", "p")
	require.NoError(t, err)
	assert.Equal(t, "first", got.CreatorID)
	assert.Equal(t, "c_p", got.ID)
}

func TestSessionAssignments_Queries(t *testing.T) {
	ctx := context.Background()
	store := NewStore(Options{})
	for _, a := range []domain.ClientSessionAssignment{
		{ClientID: "c", ProgramID: "p", SessionID: "s1", Date: "2025-03-10", WeekKey: "2025-W10"},
		{ClientID: "c", ProgramID: "p", SessionID: "s2", Date: "2025-03-12", WeekKey: "2025-W10"},
		{ClientID: "c", ProgramID: "q", SessionID: "s3", Date: "2025-03-10", WeekKey: "2025-W10"},
	} {
		require.NoError(t, store.SessionAssignments.Save(ctx, &a))
	}

	byDate, err := store.SessionAssignments.ListByProgramDate(ctx, "c", "p", "2025-03-10")
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "c_2025-03-10_s1", byDate[0].ID)

	byWeek, err := store.SessionAssignments.ListByWeek(ctx, "c", "p", "2025-W10")
	require.NoError(t, err)
	assert.Len(t, byWeek, 2)
}

func TestStore_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewStore(Options{})
	_, err := store.Plans.GetByID(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
