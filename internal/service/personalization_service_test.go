package service

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/repository/memory"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureWeekCopy_RequiresClientProgram(t *testing.T) {
	env := newTestEnv(t, memory.Options{})

	_, err := env.personalization.EnsureWeekCopy(env.ctx, env.week("2025-W10"), nil)
	require.ErrorIs(t, err, ErrPreconditionFailed)
	var pe *PreconditionError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Message, programID)

	_, err = env.personalization.AddSession(env.ctx, env.week("2025-W10"), SessionInput{Title: "x"})
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	all, err := env.store.PlanContents.ListAll(env.ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEnsureWeekCopy_EmptyShellWithoutPlan(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	require.NoError(t, env.store.ClientPrograms.Create(env.ctx, &domain.ClientProgram{ClientID: clientID, ProgramID: programID}))

	shell, err := env.personalization.EnsureWeekCopy(env.ctx, env.week("2025-W30"), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceClient, shell.Provenance.SourceType)
	assert.Empty(t, shell.Sessions)
	assert.Equal(t, WeekNoAssignment, env.resolve(t, "2025-W30").State, "an empty shell does not override anything")

	c, err := env.personalization.AddSession(env.ctx, env.week("2025-W30"), SessionInput{LibrarySessionRef: libBench, DayIndex: intPtr(2)})
	require.NoError(t, err)
	require.Len(t, c.Sessions, 1)
	added := c.Sessions[0]
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "Bench Press", added.Title)
	assert.Equal(t, domain.ClientProvenance(), added.Provenance)
	assert.Equal(t, "ex-bench", added.Exercises[0].ID)

	w := env.resolve(t, "2025-W30")
	assert.Equal(t, WeekPersonalized, w.State)
	assert.Equal(t, []string{added.ID}, sessionIDs(w.Sessions))
}

func TestEnsureWeekCopy_RecopiesEmptyShellFromPlan(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)
	require.NoError(t, env.store.PlanContents.Save(env.ctx, &domain.ClientPlanContent{
		ClientID: clientID, ProgramID: programID, WeekKey: "2025-W10", Provenance: domain.ClientProvenance(),
	}))

	c, err := env.personalization.EnsureWeekCopy(env.ctx, env.week("2025-W10"), &PlanSource{PlanID: planID, ModuleID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanModuleProvenance(planID, "m1"), c.Provenance)
	assert.Equal(t, []string{"s1-1", "s1-2", "s1-3"}, sessionIDs(c.Sessions))
}

func TestEnsureWeekCopy_DefaultsToAssignedModule(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	c, err := env.personalization.EnsureWeekCopy(env.ctx, env.week("2025-W11"), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanModuleProvenance(planID, "m2"), c.Provenance)
	assert.Equal(t, []string{"s2-1", "s2-2"}, sessionIDs(c.Sessions))
}

func TestEnsureWeekCopy_NoopWhenPopulated(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	_, err := env.personalization.CopyFromPlan(env.ctx, env.week("2025-W10"), planID, "m1")
	require.NoError(t, err)
	c, err := env.personalization.EnsureWeekCopy(env.ctx, env.week("2025-W10"), &PlanSource{PlanID: planID, ModuleID: "m2"})
	require.NoError(t, err)
	assert.Equal(t, "m1", c.Provenance.SourceSubID)
}

func TestCopyFromPlan_UnknownSources(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	_, err := env.personalization.CopyFromPlan(env.ctx, env.week("2025-W10"), "missing", "m1")
	assert.ErrorIs(t, err, ErrPlanNotFound)
	_, err = env.personalization.CopyFromPlan(env.ctx, env.week("2025-W10"), planID, "m9")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestCopyFromPlan_IndependentOfLaterEdits(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	_, err := env.personalization.CopyFromPlan(env.ctx, env.week("2025-W10"), planID, "m1")
	require.NoError(t, err)
	before := env.resolve(t, "2025-W10")

	plan, err := env.store.Plans.GetByID(env.ctx, planID)
	require.NoError(t, err)
	for i := range plan.Modules {
		if plan.Modules[i].ID == "m1" {
			plan.Modules[i].Sessions = plan.Modules[i].Sessions[:1]
			plan.Modules[i].Sessions[0].Title = "Renamed"
		}
	}
	require.NoError(t, env.store.Plans.Upsert(env.ctx, plan))
	lib, err := env.store.LibrarySessions.GetByID(env.ctx, libSquat)
	require.NoError(t, err)
	lib.Exercises[0].Sets = nil
	require.NoError(t, env.store.LibrarySessions.Upsert(env.ctx, lib))
	require.NoError(t, env.cache.Invalidate(env.ctx, clientID, programID, "2025-W10"))

	after := env.resolve(t, "2025-W10")
	assert.Equal(t, WeekPersonalized, after.State)
	assert.Equal(t, before.Sessions, after.Sessions)
	assert.Len(t, after.Sessions[0].Exercises[0].Sets, 2)
}

func TestPersonalizedWeekIgnoresPlanEditsUntilReset(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	// The client drops one session from 2025-W10.
	_, err := env.personalization.DeleteSession(env.ctx, env.week("2025-W10"), "s1-2")
	require.NoError(t, err)

	// The creator later adds a session to Week1.
	plan, err := env.store.Plans.GetByID(env.ctx, planID)
	require.NoError(t, err)
	for i := range plan.Modules {
		if plan.Modules[i].ID == "m1" {
			plan.Modules[i].Sessions = append(plan.Modules[i].Sessions, domain.PlanSession{
				ID: "s1-4", Title: "Arms", DayIndex: intPtr(5), Order: 3, UseLocalContent: true,
			})
		}
	}
	require.NoError(t, env.store.Plans.Upsert(env.ctx, plan))

	assert.Equal(t, []string{"s1-1", "s1-3"}, sessionIDs(env.resolve(t, "2025-W10").Sessions))

	err = env.personalization.ResetToSource(env.ctx, env.week("2025-W10"), false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, []string{"s1-1", "s1-3"}, sessionIDs(env.resolve(t, "2025-W10").Sessions))

	require.NoError(t, env.personalization.ResetToSource(env.ctx, env.week("2025-W10"), true))
	w := env.resolve(t, "2025-W10")
	assert.Equal(t, WeekPlanBacked, w.State)
	assert.Equal(t, []string{"s1-1", "s1-2", "s1-3", "s1-4"}, sessionIDs(w.Sessions))

	archived := env.archiver.archived()
	require.Len(t, archived, 1)
	assert.Equal(t, archivedCopy{kind: domain.CopyKindWeek, copyID: domain.PlanContentKey(clientID, programID, "2025-W10"), reason: "reset"}, archived[0])

	// Resetting again is harmless.
	require.NoError(t, env.personalization.ResetToSource(env.ctx, env.week("2025-W10"), true))
}

func TestWeekMutators_EditExercisesAndSets(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)
	ref := env.week("2025-W10")

	c, err := env.personalization.AddExercise(env.ctx, ref, "s1-1", ExerciseInput{
		Title: "Lunge",
		Sets:  []domain.Set{{Reps: "10"}, {Reps: "10"}},
	})
	require.NoError(t, err)
	exercises := c.Sessions[c.FindSession("s1-1")].Exercises
	require.Len(t, exercises, 2)
	lunge := exercises[1]
	assert.Equal(t, "Lunge", lunge.Title)
	assert.NotEmpty(t, lunge.ID)
	require.Len(t, lunge.Sets, 2)
	assert.NotEqual(t, lunge.Sets[0].ID, lunge.Sets[1].ID)

	_, err = env.personalization.AddSet(env.ctx, ref, "s1-1", "ex-squat", SetInput{Reps: "3", Intensity: "RPE 9"})
	require.NoError(t, err)
	_, err = env.personalization.UpdateSet(env.ctx, ref, "s1-1", "ex-squat", "set-squat-1", SetPatch{Reps: strPtr("4"), Weight: strPtr("100kg")})
	require.NoError(t, err)
	_, err = env.personalization.DeleteSet(env.ctx, ref, "s1-1", "ex-squat", "set-squat-2")
	require.NoError(t, err)
	_, err = env.personalization.UpdateExercise(env.ctx, ref, "s1-1", "ex-squat", ExercisePatch{Notes: strPtr("belt")})
	require.NoError(t, err)
	c, err = env.personalization.DeleteExercise(env.ctx, ref, "s1-1", lunge.ID)
	require.NoError(t, err)

	squat := c.Sessions[c.FindSession("s1-1")].Exercises[0]
	assert.Equal(t, "belt", squat.Notes)
	require.Len(t, squat.Sets, 2)
	assert.Equal(t, "4", squat.Sets[0].Reps)
	assert.Equal(t, "100kg", *squat.Sets[0].Weight)
	assert.Equal(t, "RPE 9", squat.Sets[1].Intensity)

	lib, err := env.store.LibrarySessions.GetByID(env.ctx, libSquat)
	require.NoError(t, err)
	assert.Len(t, lib.Exercises, 1)
	assert.Len(t, lib.Exercises[0].Sets, 2)
	assert.Equal(t, "5", lib.Exercises[0].Sets[0].Reps)
	assert.Nil(t, lib.Exercises[0].Sets[0].Weight)

	_, err = env.personalization.UpdateSession(env.ctx, ref, "nope", SessionPatch{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = env.personalization.DeleteExercise(env.ctx, ref, "s1-1", "nope")
	assert.ErrorIs(t, err, ErrExerciseNotFound)
	_, err = env.personalization.UpdateSet(env.ctx, ref, "s1-1", "ex-squat", "nope", SetPatch{})
	assert.ErrorIs(t, err, ErrSetNotFound)
	_, err = env.personalization.UpdateSession(env.ctx, ref, "s1-1", SessionPatch{DayIndex: intPtr(7)})
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestDeleteSession_DropsItsDateAssignment(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	_, err := env.personalization.DeleteSession(env.ctx, env.week("2025-W10"), "s1-2")
	require.NoError(t, err)

	_, err = env.store.SessionAssignments.GetByID(env.ctx, domain.SessionAssignmentKey(clientID, "2025-03-12", "s1-2"))
	assert.Error(t, err)
	_, err = env.store.SessionAssignments.GetByID(env.ctx, domain.SessionAssignmentKey(clientID, "2025-03-10", "s1-1"))
	assert.NoError(t, err)
}

func TestMoveSessionAcrossWeeks(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	wf, err := env.personalization.MoveSessionAcrossWeeks(env.ctx, MoveSessionRequest{
		ClientID: clientID, ProgramID: programID,
		SourceWeekKey: "2025-W10", TargetWeekKey: "2025-W11",
		SessionID: "s1-2", TargetDayIndex: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowCompleted, wf.Status)
	assert.Equal(t, 4, wf.Step)

	assert.Equal(t, []string{"s1-1", "s1-3"}, sessionIDs(env.resolve(t, "2025-W10").Sessions))
	target := env.resolve(t, "2025-W11")
	assert.Equal(t, WeekPersonalized, target.State)
	assert.Equal(t, []string{"Back Squat", "Mobility", "Conditioning"}, sessionTitles(target.Sessions))
	moved := target.Sessions[2]
	assert.Equal(t, 5, *moved.DayIndex)
	assert.NotEqual(t, "s1-2", moved.ID)

	_, err = env.store.SessionAssignments.GetByID(env.ctx, domain.SessionAssignmentKey(clientID, "2025-03-12", "s1-2"))
	assert.Error(t, err, "source date assignment is gone")
	newKey := domain.SessionAssignmentKey(clientID, "2025-03-22", moved.ID)
	res, err := env.resolver.ResolveSessionAssignment(env.ctx, newKey)
	require.NoError(t, err)
	assert.Equal(t, SourceWeekCopy, res.Source)
	assert.Equal(t, "Conditioning", res.Session.Title)
}

func TestMoveSessionAcrossWeeks_FailureIsResumable(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	flaky := &flakyPlanContents{
		ClientPlanContentRepository: env.store.PlanContents,
		failSave: func(c *domain.ClientPlanContent) bool {
			// Fail only the write that removes the session from the source.
			return c.WeekKey == "2025-W10" && c.FindSession("s1-2") < 0
		},
	}
	env.store.PlanContents = flaky

	wf, err := env.personalization.MoveSessionAcrossWeeks(env.ctx, MoveSessionRequest{
		ClientID: clientID, ProgramID: programID,
		SourceWeekKey: "2025-W10", TargetWeekKey: "2025-W11",
		SessionID: "s1-2", TargetDayIndex: 5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCrossWeekMove)
	assert.ErrorIs(t, err, errInjected)
	var me *MoveError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, 2, me.Step)
	assert.Equal(t, wf.ID, me.WorkflowID)

	// The session is in both weeks until the workflow is resumed.
	assert.Contains(t, sessionTitles(env.resolve(t, "2025-W10").Sessions), "Conditioning")
	assert.Contains(t, sessionTitles(env.resolve(t, "2025-W11").Sessions), "Conditioning")

	stored, err := env.scheduler.GetWorkflow(env.ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowFailed, stored.Status)
	assert.NotEmpty(t, stored.LastError)

	flaky.heal()
	resumed, err := env.scheduler.ResumeWorkflow(env.ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowCompleted, resumed.Status)

	assert.NotContains(t, sessionTitles(env.resolve(t, "2025-W10").Sessions), "Conditioning")
	count := 0
	for _, title := range sessionTitles(env.resolve(t, "2025-W11").Sessions) {
		if title == "Conditioning" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestMoveSessionAcrossWeeks_SameWeekChangesDay(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	wf, err := env.personalization.MoveSessionAcrossWeeks(env.ctx, MoveSessionRequest{
		ClientID: clientID, ProgramID: programID,
		SourceWeekKey: "2025-W10", TargetWeekKey: "2025-W10",
		SessionID: "s1-1", TargetDayIndex: 6,
	})
	require.NoError(t, err)
	assert.True(t, wf.Done())
	w := env.resolve(t, "2025-W10")
	assert.Equal(t, []string{"s1-2", "s1-3", "s1-1"}, sessionIDs(w.Sessions))

	_, err = env.store.SessionAssignments.GetByID(env.ctx, domain.SessionAssignmentKey(clientID, "2025-03-10", "s1-1"))
	assert.Error(t, err)
	a, err := env.store.SessionAssignments.GetByID(env.ctx, domain.SessionAssignmentKey(clientID, "2025-03-16", "s1-1"))
	require.NoError(t, err)
	assert.Equal(t, 6, a.DayIndex)
}

func TestMoveSessionAcrossWeeks_UnknownSession(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	_, err := env.personalization.MoveSessionAcrossWeeks(env.ctx, MoveSessionRequest{
		ClientID: clientID, ProgramID: programID,
		SourceWeekKey: "2025-W10", TargetWeekKey: "2025-W11",
		SessionID: "nope", TargetDayIndex: 1,
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMoveSessionAcrossWeeks_RefusesToEmptyPlanWeek(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	_, err := env.personalization.MoveSessionAcrossWeeks(env.ctx, MoveSessionRequest{
		ClientID: clientID, ProgramID: programID,
		SourceWeekKey: "2025-W12", TargetWeekKey: "2025-W13",
		SessionID: "s3-1", TargetDayIndex: 1,
	})
	require.ErrorIs(t, err, ErrPreconditionFailed)

	assert.Equal(t, []string{"s3-1"}, sessionIDs(env.resolve(t, "2025-W12").Sessions))
	assert.Equal(t, WeekNoAssignment, env.resolve(t, "2025-W13").State, "nothing is written to the target")
	_, err = env.store.SessionAssignments.GetByID(env.ctx, domain.SessionAssignmentKey(clientID, "2025-03-24", "s3-1"))
	assert.NoError(t, err, "date assignment stays put")
}

func TestDeleteSession_LastSessionOfPlanWeek(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	_, err := env.personalization.DeleteSession(env.ctx, env.week("2025-W12"), "s3-1")
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, []string{"s3-1"}, sessionIDs(env.resolve(t, "2025-W12").Sessions))

	// Without a plan behind the week an empty copy is fine.
	c, err := env.personalization.AddSession(env.ctx, env.week("2025-W30"), SessionInput{LibrarySessionRef: libBench, DayIndex: intPtr(1)})
	require.NoError(t, err)
	_, err = env.personalization.DeleteSession(env.ctx, env.week("2025-W30"), c.Sessions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, WeekNoAssignment, env.resolve(t, "2025-W30").State)
}

func TestUpdateSession_DayChangeReschedulesDateAssignment(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	env.assignHypertrophy(t)

	_, err := env.personalization.UpdateSession(env.ctx, env.week("2025-W10"), "s1-1", SessionPatch{DayIndex: intPtr(3)})
	require.NoError(t, err)

	_, err = env.store.SessionAssignments.GetByID(env.ctx, domain.SessionAssignmentKey(clientID, "2025-03-10", "s1-1"))
	assert.Error(t, err)
	a, err := env.store.SessionAssignments.GetByID(env.ctx, domain.SessionAssignmentKey(clientID, "2025-03-13", "s1-1"))
	require.NoError(t, err)
	assert.Equal(t, 3, a.DayIndex)
	assert.Equal(t, "2025-W10", a.WeekKey)
	assert.Equal(t, planID, a.PlanID)

	res, err := env.resolver.ResolveSessionAssignment(env.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "s1-1", res.Session.ID)
}

func TestUpdateSession_DayChangeOfUnscheduledSession(t *testing.T) {
	env := newTestEnv(t, memory.Options{})
	require.NoError(t, env.store.ClientPrograms.Create(env.ctx, &domain.ClientProgram{ClientID: clientID, ProgramID: programID}))

	c, err := env.personalization.AddSession(env.ctx, env.week("2025-W30"), SessionInput{LibrarySessionRef: libBench, DayIndex: intPtr(1)})
	require.NoError(t, err)
	_, err = env.personalization.UpdateSession(env.ctx, env.week("2025-W30"), c.Sessions[0].ID, SessionPatch{DayIndex: intPtr(4)})
	require.NoError(t, err)

	list, err := env.store.SessionAssignments.ListByWeek(env.ctx, clientID, programID, "2025-W30")
	require.NoError(t, err)
	assert.Empty(t, list, "a session without a date assignment is not scheduled by a day change")
}
