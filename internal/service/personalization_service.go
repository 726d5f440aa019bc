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

// WeekRef addresses one client/program/week.
type WeekRef struct {
	ClientID  string `json:"clientId"`
	ProgramID string `json:"programId"`
	WeekKey   string `json:"weekKey"`
}

func (w WeekRef) key() string {
	return domain.PlanContentKey(w.ClientID, w.ProgramID, w.WeekKey)
}

// PlanSource is the plan module a week copy is taken from.
type PlanSource struct {
	PlanID   string `json:"planId"`
	ModuleID string `json:"moduleId"`
}

// MoveSessionRequest moves one session between weeks of the same program.
// TargetPlan overrides the target week's own assignment as copy source.
type MoveSessionRequest struct {
	ClientID       string      `json:"clientId"`
	ProgramID      string      `json:"programId"`
	SourceWeekKey  string      `json:"sourceWeekKey"`
	TargetWeekKey  string      `json:"targetWeekKey"`
	SessionID      string      `json:"sessionId"`
	TargetDayIndex int         `json:"targetDayIndex"`
	TargetPlan     *PlanSource `json:"targetPlan,omitempty"`
}

// PersonalizationService is the copy-on-write manager. Every client-specific
// edit goes to a copy; shared plans and library sessions are never written.
type PersonalizationService interface {
	// Week level. A nil src copies the week's assigned plan module, or creates
	// an empty copy when the week has none.
	EnsureWeekCopy(ctx context.Context, ref WeekRef, src *PlanSource) (*domain.ClientPlanContent, error)
	CopyFromPlan(ctx context.Context, ref WeekRef, planID, moduleID string) (*domain.ClientPlanContent, error)
	ResetToSource(ctx context.Context, ref WeekRef, confirm bool) error

	AddSession(ctx context.Context, ref WeekRef, in SessionInput) (*domain.ClientPlanContent, error)
	UpdateSession(ctx context.Context, ref WeekRef, sessionID string, p SessionPatch) (*domain.ClientPlanContent, error)
	DeleteSession(ctx context.Context, ref WeekRef, sessionID string) (*domain.ClientPlanContent, error)
	AddExercise(ctx context.Context, ref WeekRef, sessionID string, in ExerciseInput) (*domain.ClientPlanContent, error)
	UpdateExercise(ctx context.Context, ref WeekRef, sessionID, exerciseID string, p ExercisePatch) (*domain.ClientPlanContent, error)
	DeleteExercise(ctx context.Context, ref WeekRef, sessionID, exerciseID string) (*domain.ClientPlanContent, error)
	AddSet(ctx context.Context, ref WeekRef, sessionID, exerciseID string, in SetInput) (*domain.ClientPlanContent, error)
	UpdateSet(ctx context.Context, ref WeekRef, sessionID, exerciseID, setID string, p SetPatch) (*domain.ClientPlanContent, error)
	DeleteSet(ctx context.Context, ref WeekRef, sessionID, exerciseID, setID string) (*domain.ClientPlanContent, error)

	MoveSessionAcrossWeeks(ctx context.Context, req MoveSessionRequest) (*domain.Workflow, error)
	ResumeMove(ctx context.Context, wf *domain.Workflow) (*domain.Workflow, error)

	// Session level (date-assigned library sessions)
	CopyFromLibrary(ctx context.Context, clientID, assignmentID, librarySessionID string) (*domain.ClientSessionContent, error)
	UpdateAssignedSession(ctx context.Context, clientID, assignmentID string, p SessionPatch) (*domain.ClientSessionContent, error)
	AddAssignedExercise(ctx context.Context, clientID, assignmentID string, in ExerciseInput) (*domain.ClientSessionContent, error)
	UpdateAssignedExercise(ctx context.Context, clientID, assignmentID, exerciseID string, p ExercisePatch) (*domain.ClientSessionContent, error)
	DeleteAssignedExercise(ctx context.Context, clientID, assignmentID, exerciseID string) (*domain.ClientSessionContent, error)
	AddAssignedSet(ctx context.Context, clientID, assignmentID, exerciseID string, in SetInput) (*domain.ClientSessionContent, error)
	UpdateAssignedSet(ctx context.Context, clientID, assignmentID, exerciseID, setID string, p SetPatch) (*domain.ClientSessionContent, error)
	DeleteAssignedSet(ctx context.Context, clientID, assignmentID, exerciseID, setID string) (*domain.ClientSessionContent, error)
	ResetToLibrary(ctx context.Context, clientID, assignmentID string, confirm bool) error
}

type personalizationService struct {
	log      *logger.Logger
	store    *repository.Store
	cache    cache.WeekCache
	archiver storage.CopyArchiver
	newID    func() string
	editor   exerciseEditor
}

// NewPersonalizationService creates the copy-on-write manager. weekCache and
// archiver may be nil.
func NewPersonalizationService(log *logger.Logger, store *repository.Store, weekCache cache.WeekCache, archiver storage.CopyArchiver) PersonalizationService {
	if weekCache == nil {
		weekCache = cache.Noop{}
	}
	if archiver == nil {
		archiver = storage.NoopArchiver{}
	}
	return &personalizationService{
		log:      log.With("service", "PersonalizationService"),
		store:    store,
		cache:    weekCache,
		archiver: archiver,
		newID:    uuid.NewString,
		editor:   exerciseEditor{newID: uuid.NewString},
	}
}

// checkWeek validates the key and requires the client program to exist.
func (s *personalizationService) checkWeek(ctx context.Context, ref WeekRef) error {
	if _, _, err := calendar.WeekDates(ref.WeekKey); err != nil {
		return err
	}
	_, err := s.store.ClientPrograms.Get(ctx, ref.ClientID, ref.ProgramID)
	if errors.Is(err, repository.ErrNotFound) {
		return preconditionf("client %s has no program %s yet; assign a plan first", ref.ClientID, ref.ProgramID)
	}
	return err
}

func (s *personalizationService) EnsureWeekCopy(ctx context.Context, ref WeekRef, src *PlanSource) (*domain.ClientPlanContent, error) {
	if err := s.checkWeek(ctx, ref); err != nil {
		return nil, err
	}

	existing, err := s.store.PlanContents.Get(ctx, ref.key())
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing.HasSessions() {
		return existing, nil
	}

	// Without an explicit source the week's own plan assignment is copied.
	if src == nil {
		if src, err = s.planSourceFor(ctx, ref); err != nil {
			return nil, err
		}
	}
	if src != nil && src.PlanID != "" {
		if existing != nil {
			s.log.Info("re-copying empty week copy from plan", "clientId", ref.ClientID, "programId", ref.ProgramID, "week", ref.WeekKey, "planId", src.PlanID)
		}
		return s.copyFromPlan(ctx, ref, src.PlanID, src.ModuleID)
	}
	if existing != nil {
		return existing, nil
	}

	shell := &domain.ClientPlanContent{
		ClientID:   ref.ClientID,
		ProgramID:  ref.ProgramID,
		WeekKey:    ref.WeekKey,
		Provenance: domain.ClientProvenance(),
		Sessions:   []domain.ClientSession{},
	}
	if err := s.store.PlanContents.Save(ctx, shell); err != nil {
		s.log.Error("failed to create empty week copy", "clientId", ref.ClientID, "week", ref.WeekKey, "error", err)
		return nil, err
	}
	copiesCreated.WithLabelValues(string(domain.CopyKindWeek)).Inc()
	s.log.Info("empty week copy created", "clientId", ref.ClientID, "programId", ref.ProgramID, "week", ref.WeekKey)
	return shell, nil
}

func (s *personalizationService) CopyFromPlan(ctx context.Context, ref WeekRef, planID, moduleID string) (*domain.ClientPlanContent, error) {
	if err := s.checkWeek(ctx, ref); err != nil {
		return nil, err
	}
	return s.copyFromPlan(ctx, ref, planID, moduleID)
}

// copyFromPlan deep-copies a module, resolving library references into literal
// exercises, and writes it as one document.
func (s *personalizationService) copyFromPlan(ctx context.Context, ref WeekRef, planID, moduleID string) (*domain.ClientPlanContent, error) {
	plan, module, err := loadPlanModule(ctx, s.store.Plans, planID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("copy week %s from plan %s: %w", ref.WeekKey, planID, err)
	}

	sessions := make([]domain.ClientSession, 0, len(module.Sessions))
	for _, ps := range module.OrderedSessions() {
		var lib *domain.LibrarySession
		if ps.IsLibraryReference() {
			lib, err = s.store.LibrarySessions.GetByID(ctx, ps.LibrarySessionRef)
			if errors.Is(err, repository.ErrNotFound) {
				s.log.Warn("library session missing while copying plan", "planId", plan.ID, "sessionId", ps.ID, "librarySessionId", ps.LibrarySessionRef)
				lib, err = nil, nil
			}
			if err != nil {
				return nil, err
			}
		}
		sessions = append(sessions, MergePlanSession(plan.ID, ps, lib))
	}
	domain.SortSessions(sessions)

	content := &domain.ClientPlanContent{
		ClientID:   ref.ClientID,
		ProgramID:  ref.ProgramID,
		WeekKey:    ref.WeekKey,
		Provenance: domain.PlanModuleProvenance(plan.ID, module.ID),
		Sessions:   sessions,
	}
	if err := s.store.PlanContents.Save(ctx, content); err != nil {
		s.log.Error("failed to save week copy", "clientId", ref.ClientID, "week", ref.WeekKey, "planId", plan.ID, "error", err)
		return nil, err
	}

	copiesCreated.WithLabelValues(string(domain.CopyKindWeek)).Inc()
	invalidateWeeks(ctx, s.log, s.cache, ref.ClientID, ref.ProgramID, ref.WeekKey)
	s.log.Info("week copy created from plan",
		"clientId", ref.ClientID, "programId", ref.ProgramID, "week", ref.WeekKey,
		"planId", plan.ID, "moduleId", module.ID, "sessions", len(sessions))
	return content, nil
}

func (s *personalizationService) ResetToSource(ctx context.Context, ref WeekRef, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	if _, _, err := calendar.WeekDates(ref.WeekKey); err != nil {
		return err
	}

	c, err := s.store.PlanContents.Get(ctx, ref.key())
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Info("reset requested for week without copy", "clientId", ref.ClientID, "week", ref.WeekKey)
		return nil
	}
	if err != nil {
		return err
	}

	archiveCopy(ctx, s.log, s.archiver, domain.CopyKindWeek, c.ClientID, c.ID, "reset", c)
	if err := s.store.PlanContents.Delete(ctx, c.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	copiesDeleted.WithLabelValues(string(domain.CopyKindWeek), "reset").Inc()
	invalidateWeeks(ctx, s.log, s.cache, ref.ClientID, ref.ProgramID, ref.WeekKey)
	s.log.Info("week copy reset to source", "clientId", ref.ClientID, "programId", ref.ProgramID, "week", ref.WeekKey, "provenance", c.Provenance)
	return nil
}

// planSourceFor returns the plan module assigned to the week, if any.
func (s *personalizationService) planSourceFor(ctx context.Context, ref WeekRef) (*PlanSource, error) {
	wa, err := s.store.WeekAssignments.Get(ctx, ref.ClientID, ref.ProgramID, ref.WeekKey)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	src := &PlanSource{PlanID: wa.PlanID, ModuleID: wa.ModuleID}
	if src.ModuleID == "" {
		plan, err := s.store.Plans.GetByID(ctx, wa.PlanID)
		if err != nil {
			return nil, err
		}
		if m, ok := plan.ModuleAt(wa.ModuleIndex); ok {
			src.ModuleID = m.ID
		}
	}
	return src, nil
}

// guardLastSession refuses to take the last session out of a copy whose week
// still has a plan: an empty copy resolves to the plan again, which would
// bring the session back.
func (s *personalizationService) guardLastSession(ctx context.Context, ref WeekRef, c *domain.ClientPlanContent) error {
	if len(c.Sessions) != 1 {
		return nil
	}
	_, err := s.store.WeekAssignments.Get(ctx, ref.ClientID, ref.ProgramID, ref.WeekKey)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return preconditionf("session %s is the last one of plan week %s; reset the week or remove its plan instead", c.Sessions[0].ID, ref.WeekKey)
}

// mutateWeek makes sure the week is personalized, applies fn to the copy and
// saves it.
func (s *personalizationService) mutateWeek(ctx context.Context, ref WeekRef, action string, fn func(c *domain.ClientPlanContent) error) (*domain.ClientPlanContent, error) {
	c, err := s.EnsureWeekCopy(ctx, ref, nil)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	domain.SortSessions(c.Sessions)
	if err := s.store.PlanContents.Save(ctx, c); err != nil {
		s.log.Error("failed to save week copy", "action", action, "clientId", ref.ClientID, "week", ref.WeekKey, "error", err)
		return nil, err
	}
	invalidateWeeks(ctx, s.log, s.cache, ref.ClientID, ref.ProgramID, ref.WeekKey)
	s.log.Info("week copy updated", "action", action, "clientId", ref.ClientID, "programId", ref.ProgramID, "week", ref.WeekKey)
	return c, nil
}

func sessionAt(c *domain.ClientPlanContent, sessionID string) (*domain.ClientSession, error) {
	i := c.FindSession(sessionID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return &c.Sessions[i], nil
}

func (s *personalizationService) AddSession(ctx context.Context, ref WeekRef, in SessionInput) (*domain.ClientPlanContent, error) {
	if err := validDayIndex(in.DayIndex); err != nil {
		return nil, err
	}

	// A session added from the library is copied in full now.
	var lib *domain.LibrarySession
	if in.LibrarySessionRef != "" && len(in.Exercises) == 0 {
		var err error
		lib, err = s.store.LibrarySessions.GetByID(ctx, in.LibrarySessionRef)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrLibrarySessionNotFound, in.LibrarySessionRef)
		}
		if err != nil {
			return nil, err
		}
	}

	return s.mutateWeek(ctx, ref, "add_session", func(c *domain.ClientPlanContent) error {
		session := domain.ClientSession{
			ID:                s.newID(),
			Title:             in.Title,
			Image:             in.Image,
			Order:             nextOrder(len(c.Sessions), in.Order),
			LibrarySessionRef: in.LibrarySessionRef,
			Provenance:        domain.ClientProvenance(),
			Exercises:         domain.CloneExercises(in.Exercises),
		}
		if in.DayIndex != nil {
			d := *in.DayIndex
			session.DayIndex = &d
		}
		if lib != nil {
			if session.Title == "" {
				session.Title = lib.Title
			}
			if session.Image == "" {
				session.Image = lib.Image
			}
			session.Exercises = domain.CloneExercises(lib.Exercises)
		}
		s.fillIDs(session.Exercises)
		c.Sessions = append(c.Sessions, session)
		return nil
	})
}

// fillIDs gives client-supplied exercises and sets ids where they lack one.
func (s *personalizationService) fillIDs(exercises []domain.Exercise) {
	for i := range exercises {
		if exercises[i].ID == "" {
			exercises[i].ID = s.newID()
		}
		for j := range exercises[i].Sets {
			if exercises[i].Sets[j].ID == "" {
				exercises[i].Sets[j].ID = s.newID()
			}
		}
	}
}

func (s *personalizationService) UpdateSession(ctx context.Context, ref WeekRef, sessionID string, p SessionPatch) (*domain.ClientPlanContent, error) {
	if err := validDayIndex(p.DayIndex); err != nil {
		return nil, err
	}
	var rescheduled *domain.ClientSession
	c, err := s.mutateWeek(ctx, ref, "update_session", func(c *domain.ClientPlanContent) error {
		session, err := sessionAt(c, sessionID)
		if err != nil {
			return err
		}
		before := session.DayIndex
		if err := p.apply(session); err != nil {
			return err
		}
		if p.DayIndex != nil && (before == nil || *before != *p.DayIndex) {
			moved := session.Clone()
			rescheduled = &moved
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rescheduled != nil {
		if err := s.moveDateAssignment(ctx, &domain.MoveSessionPayload{
			ClientID:       ref.ClientID,
			ProgramID:      ref.ProgramID,
			SourceWeekKey:  ref.WeekKey,
			TargetWeekKey:  ref.WeekKey,
			SessionID:      sessionID,
			TargetDayIndex: *p.DayIndex,
			Session:        rescheduled,
		}, true); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (s *personalizationService) DeleteSession(ctx context.Context, ref WeekRef, sessionID string) (*domain.ClientPlanContent, error) {
	c, err := s.mutateWeek(ctx, ref, "delete_session", func(c *domain.ClientPlanContent) error {
		i := c.FindSession(sessionID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		if err := s.guardLastSession(ctx, ref, c); err != nil {
			return err
		}
		c.Sessions = append(c.Sessions[:i], c.Sessions[i+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := removeDateAssignments(ctx, s.store, ref.ClientID, ref.ProgramID, ref.WeekKey, func(a *domain.ClientSessionAssignment) bool {
		return a.SessionID == sessionID
	}); err != nil {
		s.log.Warn("failed to drop date assignment of deleted session", "week", ref.WeekKey, "sessionId", sessionID, "error", err)
	}
	return c, nil
}

func (s *personalizationService) AddExercise(ctx context.Context, ref WeekRef, sessionID string, in ExerciseInput) (*domain.ClientPlanContent, error) {
	return s.mutateWeek(ctx, ref, "add_exercise", func(c *domain.ClientPlanContent) error {
		session, err := sessionAt(c, sessionID)
		if err != nil {
			return err
		}
		session.Exercises = s.editor.addExercise(session.Exercises, in)
		return nil
	})
}

func (s *personalizationService) UpdateExercise(ctx context.Context, ref WeekRef, sessionID, exerciseID string, p ExercisePatch) (*domain.ClientPlanContent, error) {
	return s.mutateWeek(ctx, ref, "update_exercise", func(c *domain.ClientPlanContent) error {
		session, err := sessionAt(c, sessionID)
		if err != nil {
			return err
		}
		return s.editor.updateExercise(session.Exercises, exerciseID, p)
	})
}

func (s *personalizationService) DeleteExercise(ctx context.Context, ref WeekRef, sessionID, exerciseID string) (*domain.ClientPlanContent, error) {
	return s.mutateWeek(ctx, ref, "delete_exercise", func(c *domain.ClientPlanContent) error {
		session, err := sessionAt(c, sessionID)
		if err != nil {
			return err
		}
		session.Exercises, err = s.editor.deleteExercise(session.Exercises, exerciseID)
		return err
	})
}

func (s *personalizationService) AddSet(ctx context.Context, ref WeekRef, sessionID, exerciseID string, in SetInput) (*domain.ClientPlanContent, error) {
	return s.mutateWeek(ctx, ref, "add_set", func(c *domain.ClientPlanContent) error {
		session, err := sessionAt(c, sessionID)
		if err != nil {
			return err
		}
		_, err = s.editor.addSet(session.Exercises, exerciseID, in)
		return err
	})
}

func (s *personalizationService) UpdateSet(ctx context.Context, ref WeekRef, sessionID, exerciseID, setID string, p SetPatch) (*domain.ClientPlanContent, error) {
	return s.mutateWeek(ctx, ref, "update_set", func(c *domain.ClientPlanContent) error {
		session, err := sessionAt(c, sessionID)
		if err != nil {
			return err
		}
		return s.editor.updateSet(session.Exercises, exerciseID, setID, p)
	})
}

func (s *personalizationService) DeleteSet(ctx context.Context, ref WeekRef, sessionID, exerciseID, setID string) (*domain.ClientPlanContent, error) {
	return s.mutateWeek(ctx, ref, "delete_set", func(c *domain.ClientPlanContent) error {
		session, err := sessionAt(c, sessionID)
		if err != nil {
			return err
		}
		return s.editor.deleteSet(session.Exercises, exerciseID, setID)
	})
}

// === Cross-week moves ===

// MoveSessionAcrossWeeks runs as a workflow: ensure the target copy, add the
// session there, remove it from the source, then move its date assignment.
// A failure returns a *MoveError; ResumeMove continues from the failed step.
func (s *personalizationService) MoveSessionAcrossWeeks(ctx context.Context, req MoveSessionRequest) (*domain.Workflow, error) {
	if req.TargetDayIndex < 0 || req.TargetDayIndex > 6 {
		return nil, preconditionf("day index %d is outside Monday=0..Sunday=6", req.TargetDayIndex)
	}
	source := WeekRef{ClientID: req.ClientID, ProgramID: req.ProgramID, WeekKey: req.SourceWeekKey}
	if err := s.checkWeek(ctx, source); err != nil {
		return nil, err
	}
	if _, _, err := calendar.WeekDates(req.TargetWeekKey); err != nil {
		return nil, err
	}

	// The session is snapshotted from the personalized source week, so the
	// source copy has to exist first.
	sourceCopy, err := s.EnsureWeekCopy(ctx, source, nil)
	if err != nil {
		return nil, err
	}
	session, err := sessionAt(sourceCopy, req.SessionID)
	if err != nil {
		return nil, err
	}

	if req.SourceWeekKey == req.TargetWeekKey {
		day := req.TargetDayIndex
		if _, err := s.UpdateSession(ctx, source, req.SessionID, SessionPatch{DayIndex: &day}); err != nil {
			return nil, err
		}
		moved := session.Clone()
		moved.DayIndex = &day
		p := &domain.MoveSessionPayload{
			ClientID: req.ClientID, ProgramID: req.ProgramID,
			SourceWeekKey: req.SourceWeekKey, TargetWeekKey: req.TargetWeekKey,
			SessionID: req.SessionID, TargetDayIndex: day, Session: &moved,
		}
		wf := &domain.Workflow{ID: s.newID(), Kind: domain.WorkflowMoveSession, Status: domain.WorkflowCompleted, Step: 1, TotalSteps: 1, Move: p}
		return wf, s.store.Workflows.Create(ctx, wf)
	}

	if err := s.guardLastSession(ctx, source, sourceCopy); err != nil {
		return nil, err
	}

	moved := session.Clone()
	moved.ID = s.newID()
	day := req.TargetDayIndex
	moved.DayIndex = &day

	payload := &domain.MoveSessionPayload{
		ClientID:       req.ClientID,
		ProgramID:      req.ProgramID,
		SourceWeekKey:  req.SourceWeekKey,
		TargetWeekKey:  req.TargetWeekKey,
		SessionID:      req.SessionID,
		TargetDayIndex: req.TargetDayIndex,
		Session:        &moved,
	}
	if req.TargetPlan != nil {
		payload.TargetPlanID = req.TargetPlan.PlanID
		payload.TargetModuleID = req.TargetPlan.ModuleID
	}

	wf := &domain.Workflow{
		ID:         s.newID(),
		Kind:       domain.WorkflowMoveSession,
		Status:     domain.WorkflowRunning,
		TotalSteps: 4,
		Move:       payload,
	}
	if err := s.store.Workflows.Create(ctx, wf); err != nil {
		return nil, err
	}
	s.log.Info("session move started", "workflowId", wf.ID, "clientId", req.ClientID, "from", req.SourceWeekKey, "to", req.TargetWeekKey, "sessionId", req.SessionID)
	return s.runMove(ctx, wf)
}

func (s *personalizationService) ResumeMove(ctx context.Context, wf *domain.Workflow) (*domain.Workflow, error) {
	if wf.Kind != domain.WorkflowMoveSession || wf.Move == nil || wf.Move.Session == nil {
		return nil, fmt.Errorf("workflow %s is not a session move", wf.ID)
	}
	if wf.Done() {
		return wf, nil
	}
	s.log.Info("resuming session move", "workflowId", wf.ID, "step", wf.Step)
	return s.runMove(ctx, wf)
}

func (s *personalizationService) runMove(ctx context.Context, wf *domain.Workflow) (*domain.Workflow, error) {
	p := wf.Move
	source := WeekRef{ClientID: p.ClientID, ProgramID: p.ProgramID, WeekKey: p.SourceWeekKey}
	target := WeekRef{ClientID: p.ClientID, ProgramID: p.ProgramID, WeekKey: p.TargetWeekKey}

	steps := []sagaStep{
		func(ctx context.Context) error {
			_, err := s.EnsureWeekCopy(ctx, target, targetSource(p))
			return err
		},
		func(ctx context.Context) error {
			_, err := s.mutateWeek(ctx, target, "move_in", func(c *domain.ClientPlanContent) error {
				if c.FindSession(p.Session.ID) >= 0 {
					return nil
				}
				c.Sessions = append(c.Sessions, p.Session.Clone())
				return nil
			})
			return err
		},
		func(ctx context.Context) error {
			_, err := s.mutateWeek(ctx, source, "move_out", func(c *domain.ClientPlanContent) error {
				if i := c.FindSession(p.SessionID); i >= 0 {
					c.Sessions = append(c.Sessions[:i], c.Sessions[i+1:]...)
				}
				return nil
			})
			return err
		},
		func(ctx context.Context) error {
			return s.moveDateAssignment(ctx, p, false)
		},
	}

	if err := runWorkflow(ctx, s.log, s.store.Workflows, wf, steps); err != nil {
		return wf, &MoveError{WorkflowID: wf.ID, Step: wf.Step, Err: err}
	}
	s.log.Info("session move completed", "workflowId", wf.ID, "clientId", p.ClientID, "from", p.SourceWeekKey, "to", p.TargetWeekKey)
	return wf, nil
}

func targetSource(p *domain.MoveSessionPayload) *PlanSource {
	if p.TargetPlanID == "" {
		return nil
	}
	return &PlanSource{PlanID: p.TargetPlanID, ModuleID: p.TargetModuleID}
}

// moveDateAssignment drops the source date assignment of the moved session
// and schedules the moved copy on its new date. With onlyIfScheduled a
// session that had no pending date assignment stays unscheduled.
func (s *personalizationService) moveDateAssignment(ctx context.Context, p *domain.MoveSessionPayload, onlyIfScheduled bool) error {
	removed, err := removeDateAssignments(ctx, s.store, p.ClientID, p.ProgramID, p.SourceWeekKey, func(a *domain.ClientSessionAssignment) bool {
		return a.SessionID == p.SessionID
	})
	if err != nil {
		return err
	}
	if onlyIfScheduled && removed == 0 {
		return nil
	}

	date, err := calendar.DateInWeek(p.TargetWeekKey, p.TargetDayIndex)
	if err != nil {
		return err
	}
	a := &domain.ClientSessionAssignment{
		ClientID:  p.ClientID,
		ProgramID: p.ProgramID,
		SessionID: p.Session.ID,
		Date:      calendar.DateKey(date),
		WeekKey:   p.TargetWeekKey,
		DayIndex:  p.TargetDayIndex,
	}
	target := WeekRef{ClientID: p.ClientID, ProgramID: p.ProgramID, WeekKey: p.TargetWeekKey}
	src := targetSource(p)
	if src == nil {
		if src, err = s.planSourceFor(ctx, target); err != nil {
			return err
		}
	}
	if src != nil {
		a.PlanID = src.PlanID
		a.ModuleID = src.ModuleID
	}
	return replaceDateAssignment(ctx, s.store, a)
}
