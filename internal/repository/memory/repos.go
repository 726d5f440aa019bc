package memory

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/repository"
	"context"
	"errors"
	"time"
)

func now() time.Time { return time.Now().UTC() }

// --- Library sessions ---

type LibrarySessionRepository struct{ rows *table[domain.LibrarySession] }

func NewLibrarySessionRepository() *LibrarySessionRepository {
	return &LibrarySessionRepository{rows: newTable[domain.LibrarySession]()}
}

func (r *LibrarySessionRepository) GetByID(ctx context.Context, id string) (*domain.LibrarySession, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.get(id)
}

func (r *LibrarySessionRepository) Upsert(ctx context.Context, s *domain.LibrarySession) error {
	if s.ID == "" {
		return errors.New("library session requires an id")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	s.UpdatedAt = now()
	return r.rows.put(s.ID, s)
}

// --- Plans ---

type PlanRepository struct{ rows *table[domain.Plan] }

func NewPlanRepository() *PlanRepository {
	return &PlanRepository{rows: newTable[domain.Plan]()}
}

func (r *PlanRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.get(id)
}

func (r *PlanRepository) Upsert(ctx context.Context, p *domain.Plan) error {
	if p.ID == "" {
		return errors.New("plan requires an id")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	p.UpdatedAt = now()
	return r.rows.put(p.ID, p)
}

func (r *PlanRepository) ListReferencingLibrarySession(ctx context.Context, librarySessionID string) ([]domain.Plan, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.list(func(p *domain.Plan) bool { return p.ReferencesLibrarySession(librarySessionID) })
}

// --- Client programs ---

type ClientProgramRepository struct{ rows *table[domain.ClientProgram] }

func NewClientProgramRepository() *ClientProgramRepository {
	return &ClientProgramRepository{rows: newTable[domain.ClientProgram]()}
}

func (r *ClientProgramRepository) Get(ctx context.Context, clientID, programID string) (*domain.ClientProgram, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.get(domain.ClientProgramKey(clientID, programID))
}

func (r *ClientProgramRepository) Create(ctx context.Context, p *domain.ClientProgram) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	p.ID = domain.ClientProgramKey(p.ClientID, p.ProgramID)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	_, err := r.rows.putIfAbsent(p.ID, p)
	return err
}

// --- Week assignments ---

type WeekAssignmentRepository struct{ rows *table[domain.WeekAssignment] }

func NewWeekAssignmentRepository() *WeekAssignmentRepository {
	return &WeekAssignmentRepository{rows: newTable[domain.WeekAssignment]()}
}

func (r *WeekAssignmentRepository) Get(ctx context.Context, clientID, programID, weekKey string) (*domain.WeekAssignment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.get(domain.PlanContentKey(clientID, programID, weekKey))
}

func (r *WeekAssignmentRepository) Upsert(ctx context.Context, a *domain.WeekAssignment) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	a.ID = domain.PlanContentKey(a.ClientID, a.ProgramID, a.WeekKey)
	if a.AssignedAt.IsZero() {
		a.AssignedAt = now()
	}
	return r.rows.put(a.ID, a)
}

func (r *WeekAssignmentRepository) Delete(ctx context.Context, clientID, programID, weekKey string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if !r.rows.delete(domain.PlanContentKey(clientID, programID, weekKey)) {
		return repository.ErrNotFound
	}
	return nil
}

func (r *WeekAssignmentRepository) ListByClientProgram(ctx context.Context, clientID, programID string) ([]domain.WeekAssignment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.list(func(a *domain.WeekAssignment) bool {
		return a.ClientID == clientID && a.ProgramID == programID
	})
}

func (r *WeekAssignmentRepository) ListByPlan(ctx context.Context, planID string) ([]domain.WeekAssignment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.list(func(a *domain.WeekAssignment) bool { return a.PlanID == planID })
}

// --- Week copies ---

type ClientPlanContentRepository struct {
	rows    *table[domain.ClientPlanContent]
	indexed bool
}

func NewClientPlanContentRepository(opts Options) *ClientPlanContentRepository {
	return &ClientPlanContentRepository{rows: newTable[domain.ClientPlanContent](), indexed: opts.ProvenanceIndexes}
}

func (r *ClientPlanContentRepository) Get(ctx context.Context, id string) (*domain.ClientPlanContent, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.get(id)
}

func (r *ClientPlanContentRepository) Save(ctx context.Context, c *domain.ClientPlanContent) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	c.ID = domain.PlanContentKey(c.ClientID, c.ProgramID, c.WeekKey)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	c.UpdatedAt = now()
	return r.rows.put(c.ID, c)
}

func (r *ClientPlanContentRepository) Delete(ctx context.Context, id string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if !r.rows.delete(id) {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ClientPlanContentRepository) FindBySourcePlan(ctx context.Context, planID string) ([]domain.ClientPlanContent, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if !r.indexed {
		return nil, repository.ErrIndexUnavailable
	}
	return r.rows.list(func(c *domain.ClientPlanContent) bool { return c.Provenance.DerivesFromPlan(planID) })
}

func (r *ClientPlanContentRepository) FindByLibrarySessionRef(ctx context.Context, librarySessionID string) ([]domain.ClientPlanContent, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if !r.indexed {
		return nil, repository.ErrIndexUnavailable
	}
	return r.rows.list(func(c *domain.ClientPlanContent) bool { return c.ReferencesLibrarySession(librarySessionID) })
}

func (r *ClientPlanContentRepository) ListAll(ctx context.Context) ([]domain.ClientPlanContent, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.list(nil)
}

// --- Session copies ---

type ClientSessionContentRepository struct {
	rows    *table[domain.ClientSessionContent]
	indexed bool
}

func NewClientSessionContentRepository(opts Options) *ClientSessionContentRepository {
	return &ClientSessionContentRepository{rows: newTable[domain.ClientSessionContent](), indexed: opts.ProvenanceIndexes}
}

func (r *ClientSessionContentRepository) Get(ctx context.Context, id string) (*domain.ClientSessionContent, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.get(id)
}

func (r *ClientSessionContentRepository) Save(ctx context.Context, c *domain.ClientSessionContent) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if c.ID == "" {
		return errors.New("session content requires the assignment id")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	c.UpdatedAt = now()
	return r.rows.put(c.ID, c)
}

func (r *ClientSessionContentRepository) Delete(ctx context.Context, id string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if !r.rows.delete(id) {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ClientSessionContentRepository) FindBySourceSession(ctx context.Context, librarySessionID string) ([]domain.ClientSessionContent, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if !r.indexed {
		return nil, repository.ErrIndexUnavailable
	}
	return r.rows.list(func(c *domain.ClientSessionContent) bool {
		return c.Provenance.DerivesFromLibrarySession(librarySessionID)
	})
}

func (r *ClientSessionContentRepository) ListAll(ctx context.Context) ([]domain.ClientSessionContent, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.list(nil)
}

// --- Session assignments ---

type SessionAssignmentRepository struct {
	rows *table[domain.ClientSessionAssignment]
}

func NewSessionAssignmentRepository() *SessionAssignmentRepository {
	return &SessionAssignmentRepository{rows: newTable[domain.ClientSessionAssignment]()}
}

func (r *SessionAssignmentRepository) GetByID(ctx context.Context, id string) (*domain.ClientSessionAssignment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.get(id)
}

func (r *SessionAssignmentRepository) Save(ctx context.Context, a *domain.ClientSessionAssignment) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	a.ID = domain.SessionAssignmentKey(a.ClientID, a.Date, a.SessionID)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	return r.rows.put(a.ID, a)
}

func (r *SessionAssignmentRepository) Delete(ctx context.Context, id string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if !r.rows.delete(id) {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SessionAssignmentRepository) ListByProgramDate(ctx context.Context, clientID, programID, date string) ([]domain.ClientSessionAssignment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.list(func(a *domain.ClientSessionAssignment) bool {
		return a.ClientID == clientID && a.ProgramID == programID && a.Date == date
	})
}

func (r *SessionAssignmentRepository) ListByWeek(ctx context.Context, clientID, programID, weekKey string) ([]domain.ClientSessionAssignment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.list(func(a *domain.ClientSessionAssignment) bool {
		return a.ClientID == clientID && a.ProgramID == programID && a.WeekKey == weekKey
	})
}

// --- Completions ---

type CompletionRepository struct{ rows *table[domain.SessionCompletion] }

func NewCompletionRepository() *CompletionRepository {
	return &CompletionRepository{rows: newTable[domain.SessionCompletion]()}
}

func (r *CompletionRepository) Create(ctx context.Context, c *domain.SessionCompletion) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if c.ID == "" {
		return errors.New("completion requires an id")
	}
	if c.CompletedAt.IsZero() {
		c.CompletedAt = now()
	}
	return r.rows.put(c.ID, c)
}

func (r *CompletionRepository) ListByClient(ctx context.Context, clientID string) ([]domain.SessionCompletion, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.list(func(c *domain.SessionCompletion) bool { return c.ClientID == clientID })
}

// --- Workflows ---

type WorkflowRepository struct{ rows *table[domain.Workflow] }

func NewWorkflowRepository() *WorkflowRepository {
	return &WorkflowRepository{rows: newTable[domain.Workflow]()}
}

func (r *WorkflowRepository) Create(ctx context.Context, wf *domain.Workflow) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	wf.CreatedAt = now()
	wf.UpdatedAt = wf.CreatedAt
	written, err := r.rows.putIfAbsent(wf.ID, wf)
	if err != nil {
		return err
	}
	if !written {
		return errors.New("workflow already exists")
	}
	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*domain.Workflow, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.get(id)
}

func (r *WorkflowRepository) Update(ctx context.Context, wf *domain.Workflow) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if !r.rows.exists(wf.ID) {
		return repository.ErrNotFound
	}
	wf.UpdatedAt = now()
	return r.rows.put(wf.ID, wf)
}

// --- Nutrition ---

type NutritionPlanRepository struct{ rows *table[domain.NutritionPlan] }

func NewNutritionPlanRepository() *NutritionPlanRepository {
	return &NutritionPlanRepository{rows: newTable[domain.NutritionPlan]()}
}

func (r *NutritionPlanRepository) GetByID(ctx context.Context, id string) (*domain.NutritionPlan, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.get(id)
}

func (r *NutritionPlanRepository) Upsert(ctx context.Context, p *domain.NutritionPlan) error {
	if p.ID == "" {
		return errors.New("nutrition plan requires an id")
	}
	p.UpdatedAt = now()
	return r.rows.put(p.ID, p)
}

type NutritionAssignmentRepository struct {
	rows    *table[domain.NutritionAssignment]
	indexed bool
}

func NewNutritionAssignmentRepository(opts Options) *NutritionAssignmentRepository {
	return &NutritionAssignmentRepository{rows: newTable[domain.NutritionAssignment](), indexed: opts.ProvenanceIndexes}
}

func (r *NutritionAssignmentRepository) Save(ctx context.Context, a *domain.NutritionAssignment) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if a.ID == "" {
		return errors.New("nutrition assignment requires an id")
	}
	if a.SnapshotAt.IsZero() {
		a.SnapshotAt = now()
	}
	return r.rows.put(a.ID, a)
}

func (r *NutritionAssignmentRepository) GetByID(ctx context.Context, id string) (*domain.NutritionAssignment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.get(id)
}

func (r *NutritionAssignmentRepository) FindByPlan(ctx context.Context, planID string) ([]domain.NutritionAssignment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if !r.indexed {
		return nil, repository.ErrIndexUnavailable
	}
	return r.rows.list(func(a *domain.NutritionAssignment) bool { return a.PlanID == planID })
}

func (r *NutritionAssignmentRepository) ListAll(ctx context.Context) ([]domain.NutritionAssignment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return r.rows.list(nil)
}

func (r *NutritionAssignmentRepository) UpdateSnapshot(ctx context.Context, id string, snapshot domain.NutritionPlanSnapshot) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	a, err := r.rows.get(id)
	if err != nil {
		return err
	}
	a.Snapshot = snapshot
	a.SnapshotAt = now()
	return r.rows.put(id, a)
}
