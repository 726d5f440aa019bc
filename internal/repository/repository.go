package repository

import (
	"alcyxob/coaching-platform/internal/domain"
	"context"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
	// ErrIndexUnavailable is returned by provenance queries when the store has
	// no index to serve them. Callers fall back to a full scan.
	ErrIndexUnavailable = RepositoryError("index unavailable")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// LibrarySessionRepository reads creator-owned library sessions. Writes come
// from the creator dashboard; Upsert exists for seeding and tooling.
type LibrarySessionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.LibrarySession, error)
	Upsert(ctx context.Context, session *domain.LibrarySession) error
}

// PlanRepository reads creator-owned plans.
type PlanRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Plan, error)
	Upsert(ctx context.Context, plan *domain.Plan) error
	// ListReferencingLibrarySession returns plans whose modules reference the library session.
	ListReferencingLibrarySession(ctx context.Context, librarySessionID string) ([]domain.Plan, error)
}

// ClientProgramRepository tracks which programs have been assigned to which clients.
type ClientProgramRepository interface {
	Get(ctx context.Context, clientID, programID string) (*domain.ClientProgram, error)
	// Create is a no-op when the pair already exists.
	Create(ctx context.Context, program *domain.ClientProgram) error
}

// WeekAssignmentRepository stores one plan assignment per client/program/week.
type WeekAssignmentRepository interface {
	Get(ctx context.Context, clientID, programID, weekKey string) (*domain.WeekAssignment, error)
	Upsert(ctx context.Context, assignment *domain.WeekAssignment) error
	Delete(ctx context.Context, clientID, programID, weekKey string) error
	ListByClientProgram(ctx context.Context, clientID, programID string) ([]domain.WeekAssignment, error)
	ListByPlan(ctx context.Context, planID string) ([]domain.WeekAssignment, error)
}

// ClientPlanContentRepository stores week-level personalized copies. Save
// replaces the whole document in one write.
type ClientPlanContentRepository interface {
	Get(ctx context.Context, id string) (*domain.ClientPlanContent, error)
	Save(ctx context.Context, content *domain.ClientPlanContent) error
	Delete(ctx context.Context, id string) error
	// FindBySourcePlan and FindByLibrarySessionRef may return ErrIndexUnavailable.
	FindBySourcePlan(ctx context.Context, planID string) ([]domain.ClientPlanContent, error)
	FindByLibrarySessionRef(ctx context.Context, librarySessionID string) ([]domain.ClientPlanContent, error)
	ListAll(ctx context.Context) ([]domain.ClientPlanContent, error)
}

// ClientSessionContentRepository stores session-level personalized copies.
type ClientSessionContentRepository interface {
	Get(ctx context.Context, id string) (*domain.ClientSessionContent, error)
	Save(ctx context.Context, content *domain.ClientSessionContent) error
	Delete(ctx context.Context, id string) error
	// FindBySourceSession may return ErrIndexUnavailable.
	FindBySourceSession(ctx context.Context, librarySessionID string) ([]domain.ClientSessionContent, error)
	ListAll(ctx context.Context) ([]domain.ClientSessionContent, error)
}

// SessionAssignmentRepository stores date-based session assignments.
type SessionAssignmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ClientSessionAssignment, error)
	Save(ctx context.Context, assignment *domain.ClientSessionAssignment) error
	Delete(ctx context.Context, id string) error
	ListByProgramDate(ctx context.Context, clientID, programID, date string) ([]domain.ClientSessionAssignment, error)
	ListByWeek(ctx context.Context, clientID, programID, weekKey string) ([]domain.ClientSessionAssignment, error)
}

// CompletionRepository stores the client's completion record.
type CompletionRepository interface {
	Create(ctx context.Context, completion *domain.SessionCompletion) error
	ListByClient(ctx context.Context, clientID string) ([]domain.SessionCompletion, error)
}

// WorkflowRepository persists saga progress.
type WorkflowRepository interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByID(ctx context.Context, id string) (*domain.Workflow, error)
	Update(ctx context.Context, wf *domain.Workflow) error
}

// NutritionPlanRepository reads creator-owned nutrition plans.
type NutritionPlanRepository interface {
	GetByID(ctx context.Context, id string) (*domain.NutritionPlan, error)
	Upsert(ctx context.Context, plan *domain.NutritionPlan) error
}

// NutritionAssignmentRepository stores nutrition assignments with their snapshots.
type NutritionAssignmentRepository interface {
	Save(ctx context.Context, assignment *domain.NutritionAssignment) error
	GetByID(ctx context.Context, id string) (*domain.NutritionAssignment, error)
	// FindByPlan may return ErrIndexUnavailable.
	FindByPlan(ctx context.Context, planID string) ([]domain.NutritionAssignment, error)
	ListAll(ctx context.Context) ([]domain.NutritionAssignment, error)
	UpdateSnapshot(ctx context.Context, id string, snapshot domain.NutritionPlanSnapshot) error
}

// Store bundles every repository the services need.
type Store struct {
	LibrarySessions      LibrarySessionRepository
	Plans                PlanRepository
	ClientPrograms       ClientProgramRepository
	WeekAssignments      WeekAssignmentRepository
	PlanContents         ClientPlanContentRepository
	SessionContents      ClientSessionContentRepository
	SessionAssignments   SessionAssignmentRepository
	Completions          CompletionRepository
	Workflows            WorkflowRepository
	NutritionPlans       NutritionPlanRepository
	NutritionAssignments NutritionAssignmentRepository
}
