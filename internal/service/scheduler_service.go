package service

import (
	"alcyxob/coaching-platform/internal/cache"
	"alcyxob/coaching-platform/internal/calendar"
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/repository"
	"alcyxob/coaching-platform/internal/storage"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SchedulerService maps plans onto a client's calendar.
type SchedulerService interface {
	// Plan scheduling
	AssignPlanToConsecutiveWeeks(ctx context.Context, programID, clientID, planID, startWeekKey string) (*domain.Workflow, error)
	RemovePlanFromWeek(ctx context.Context, programID, clientID, weekKey string) error
	PlanAssignments(ctx context.Context, clientID, programID string) (map[string]domain.PlanAssignment, error)

	// Date-level sessions
	AssignSessionToDate(ctx context.Context, clientID, programID, date, librarySessionID string) (*domain.ClientSessionAssignment, error)
	MarkSessionCompleted(ctx context.Context, clientID, assignmentID string) (*domain.SessionCompletion, error)

	// Workflows
	GetWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error)
	ResumeWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error)
}

type schedulerService struct {
	log             *logger.Logger
	store           *repository.Store
	cache           cache.WeekCache
	archiver        storage.CopyArchiver
	personalization PersonalizationService
}

// NewSchedulerService creates the scheduler. personalization is used to
// resume interrupted session moves.
func NewSchedulerService(
	log *logger.Logger,
	store *repository.Store,
	weekCache cache.WeekCache,
	archiver storage.CopyArchiver,
	personalization PersonalizationService,
) SchedulerService {
	if weekCache == nil {
		weekCache = cache.Noop{}
	}
	if archiver == nil {
		archiver = storage.NoopArchiver{}
	}
	return &schedulerService{
		log:             log.With("service", "SchedulerService"),
		store:           store,
		cache:           weekCache,
		archiver:        archiver,
		personalization: personalization,
	}
}

// === Plan scheduling ===

// AssignPlanToConsecutiveWeeks puts module i of the plan on week start+i.
// Each week is one workflow step; a failure returns the workflow so it can be
// resumed.
func (s *schedulerService) AssignPlanToConsecutiveWeeks(ctx context.Context, programID, clientID, planID, startWeekKey string) (*domain.Workflow, error) {
	// 1. Validate input
	if clientID == "" || programID == "" || planID == "" {
		return nil, preconditionf("client, program and plan are required")
	}
	if _, _, err := calendar.WeekDates(startWeekKey); err != nil {
		return nil, err
	}

	// 2. Load the plan; an empty plan writes nothing
	plan, err := s.store.Plans.GetByID(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	if err != nil {
		return nil, err
	}
	modules := plan.OrderedModules()
	if len(modules) == 0 {
		return nil, preconditionf("plan %q has no weeks", plan.Title)
	}

	weekKeys, err := calendar.ConsecutiveWeekKeys(startWeekKey, len(modules))
	if err != nil {
		return nil, err
	}

	// 3. Make sure the client program exists
	if err := s.store.ClientPrograms.Create(ctx, &domain.ClientProgram{
		ClientID:  clientID,
		ProgramID: programID,
		CreatorID: plan.CreatorID,
	}); err != nil {
		return nil, err
	}

	// 4. Record the workflow, then run it
	wf := &domain.Workflow{
		ID:         uuid.NewString(),
		Kind:       domain.WorkflowAssignPlan,
		Status:     domain.WorkflowRunning,
		TotalSteps: len(weekKeys),
		AssignPlan: &domain.AssignPlanPayload{
			ClientID:  clientID,
			ProgramID: programID,
			PlanID:    planID,
			WeekKeys:  weekKeys,
		},
	}
	if err := s.store.Workflows.Create(ctx, wf); err != nil {
		return nil, err
	}
	s.log.Info("plan assignment started", "workflowId", wf.ID, "clientId", clientID, "programId", programID, "planId", planID, "weeks", weekKeys)
	return s.runAssign(ctx, wf)
}

func (s *schedulerService) runAssign(ctx context.Context, wf *domain.Workflow) (*domain.Workflow, error) {
	p := wf.AssignPlan
	steps := make([]sagaStep, len(p.WeekKeys))
	for i, weekKey := range p.WeekKeys {
		steps[i] = func(ctx context.Context) error {
			return s.assignWeek(ctx, p, i, weekKey)
		}
	}
	if err := runWorkflow(ctx, s.log, s.store.Workflows, wf, steps); err != nil {
		return wf, fmt.Errorf("assign plan %s (workflow %s): %w", p.PlanID, wf.ID, err)
	}
	s.log.Info("plan assignment completed", "workflowId", wf.ID, "clientId", p.ClientID, "planId", p.PlanID)
	return wf, nil
}

// assignWeek writes one week of a plan assignment. Running it twice leaves the
// same state.
func (s *schedulerService) assignWeek(ctx context.Context, p *domain.AssignPlanPayload, moduleIndex int, weekKey string) error {
	plan, err := s.store.Plans.GetByID(ctx, p.PlanID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrPlanNotFound, p.PlanID)
	}
	if err != nil {
		return err
	}
	module, ok := plan.ModuleAt(moduleIndex)
	if !ok {
		return fmt.Errorf("%w: index %d of plan %s", ErrModuleNotFound, moduleIndex, plan.ID)
	}

	// 1. The week row; overwrites any earlier assignment of this week only.
	if err := s.store.WeekAssignments.Upsert(ctx, &domain.WeekAssignment{
		ClientID:    p.ClientID,
		ProgramID:   p.ProgramID,
		WeekKey:     weekKey,
		PlanID:      plan.ID,
		ModuleID:    module.ID,
		ModuleIndex: moduleIndex,
	}); err != nil {
		return err
	}

	// 2. A copy of a previous assignment would hide the new plan.
	if err := s.clearWeekCopy(ctx, p.ClientID, p.ProgramID, weekKey, "reassign"); err != nil {
		return err
	}

	// 3. Date assignments: drop the previous plan's, then one per weekday.
	if _, err := removeDateAssignments(ctx, s.store, p.ClientID, p.ProgramID, weekKey, func(a *domain.ClientSessionAssignment) bool {
		return a.IsPlanBacked()
	}); err != nil {
		return err
	}
	seenDays := make(map[int]bool)
	for _, ps := range module.OrderedSessions() {
		if ps.DayIndex == nil || seenDays[*ps.DayIndex] {
			continue
		}
		seenDays[*ps.DayIndex] = true

		date, err := calendar.DateInWeek(weekKey, *ps.DayIndex)
		if err != nil {
			return err
		}
		a := &domain.ClientSessionAssignment{
			ClientID:  p.ClientID,
			ProgramID: p.ProgramID,
			PlanID:    plan.ID,
			ModuleID:  module.ID,
			SessionID: ps.ID,
			Date:      calendar.DateKey(date),
			WeekKey:   weekKey,
			DayIndex:  *ps.DayIndex,
		}
		if ps.IsLibraryReference() {
			a.LibrarySessionID = ps.LibrarySessionRef
		}
		if err := replaceDateAssignment(ctx, s.store, a); err != nil {
			return err
		}
	}

	invalidateWeeks(ctx, s.log, s.cache, p.ClientID, p.ProgramID, weekKey)
	s.log.Info("week assigned", "clientId", p.ClientID, "programId", p.ProgramID, "week", weekKey, "planId", plan.ID, "moduleIndex", moduleIndex, "sessionDays", len(seenDays))
	return nil
}

func (s *schedulerService) clearWeekCopy(ctx context.Context, clientID, programID, weekKey, reason string) error {
	c, err := s.store.PlanContents.Get(ctx, domain.PlanContentKey(clientID, programID, weekKey))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if c.HasSessions() {
		archiveCopy(ctx, s.log, s.archiver, domain.CopyKindWeek, clientID, c.ID, reason, c)
	}
	if err := s.store.PlanContents.Delete(ctx, c.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	copiesDeleted.WithLabelValues(string(domain.CopyKindWeek), reason).Inc()
	s.log.Info("week copy deleted", "clientId", clientID, "programId", programID, "week", weekKey, "reason", reason, "provenance", c.Provenance)
	return nil
}

// RemovePlanFromWeek unassigns the week, deletes its copy and its date
// assignments. Assignments the client already completed stay on the calendar.
func (s *schedulerService) RemovePlanFromWeek(ctx context.Context, programID, clientID, weekKey string) error {
	if _, _, err := calendar.WeekDates(weekKey); err != nil {
		return err
	}

	if err := s.store.WeekAssignments.Delete(ctx, clientID, programID, weekKey); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err := s.clearWeekCopy(ctx, clientID, programID, weekKey, "unassign"); err != nil {
		return err
	}
	removed, err := removeDateAssignments(ctx, s.store, clientID, programID, weekKey, nil)
	if err != nil {
		return err
	}

	invalidateWeeks(ctx, s.log, s.cache, clientID, programID, weekKey)
	s.log.Info("plan removed from week", "clientId", clientID, "programId", programID, "week", weekKey, "dateAssignmentsRemoved", removed)
	return nil
}

// PlanAssignments returns the week key -> assignment view of the program.
func (s *schedulerService) PlanAssignments(ctx context.Context, clientID, programID string) (map[string]domain.PlanAssignment, error) {
	rows, err := s.store.WeekAssignments.ListByClientProgram(ctx, clientID, programID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.PlanAssignment, len(rows))
	for _, row := range rows {
		out[row.WeekKey] = row.PlanAssignment()
	}
	return out, nil
}

// === Date-level sessions ===

func (s *schedulerService) AssignSessionToDate(ctx context.Context, clientID, programID, date, librarySessionID string) (*domain.ClientSessionAssignment, error) {
	day, err := calendar.ParseDateKey(date)
	if err != nil {
		return nil, err
	}
	lib, err := s.store.LibrarySessions.GetByID(ctx, librarySessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrLibrarySessionNotFound, librarySessionID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.ClientPrograms.Create(ctx, &domain.ClientProgram{ClientID: clientID, ProgramID: programID, CreatorID: lib.CreatorID}); err != nil {
		return nil, err
	}

	a := &domain.ClientSessionAssignment{
		ClientID:         clientID,
		ProgramID:        programID,
		SessionID:        lib.ID,
		LibrarySessionID: lib.ID,
		Date:             calendar.DateKey(day),
		WeekKey:          calendar.MondayWeek(day),
		DayIndex:         calendar.DayIndex(day),
	}
	if err := replaceDateAssignment(ctx, s.store, a); err != nil {
		return nil, err
	}
	s.log.Info("library session assigned to date", "clientId", clientID, "programId", programID, "date", a.Date, "librarySessionId", lib.ID)
	return a, nil
}

func (s *schedulerService) MarkSessionCompleted(ctx context.Context, clientID, assignmentID string) (*domain.SessionCompletion, error) {
	a, err := s.store.SessionAssignments.GetByID(ctx, assignmentID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && a.ClientID != clientID) {
		return nil, fmt.Errorf("%w: %s", ErrAssignmentNotFound, assignmentID)
	}
	if err != nil {
		return nil, err
	}

	c := &domain.SessionCompletion{
		ID:        a.ID,
		ClientID:  a.ClientID,
		ProgramID: a.ProgramID,
		SessionID: a.SessionID,
		Date:      a.Date,
	}
	if err := s.store.Completions.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("session completed", "clientId", clientID, "assignmentId", a.ID, "date", a.Date)
	return c, nil
}

// === Workflows ===

func (s *schedulerService) GetWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error) {
	wf, err := s.store.Workflows.GetByID(ctx, workflowID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}
	return wf, err
}

// ResumeWorkflow continues a failed or interrupted workflow from its last
// recorded step. Completed workflows are returned unchanged.
func (s *schedulerService) ResumeWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error) {
	wf, err := s.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf.Done() {
		return wf, nil
	}

	switch wf.Kind {
	case domain.WorkflowAssignPlan:
		if wf.AssignPlan == nil {
			return nil, fmt.Errorf("workflow %s has no assignment payload", wf.ID)
		}
		s.log.Info("resuming plan assignment", "workflowId", wf.ID, "step", wf.Step)
		return s.runAssign(ctx, wf)
	case domain.WorkflowMoveSession:
		return s.personalization.ResumeMove(ctx, wf)
	default:
		return nil, fmt.Errorf("workflow %s has unknown kind %q", wf.ID, wf.Kind)
	}
}
