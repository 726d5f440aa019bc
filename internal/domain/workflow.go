package domain

import "time"

// WorkflowKind names a multi-step operation that spans several documents
// without a transaction.
type WorkflowKind string

const (
	WorkflowAssignPlan  WorkflowKind = "assign_plan"
	WorkflowMoveSession WorkflowKind = "move_session"
)

type WorkflowStatus string

const (
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// Workflow persists the progress of a saga. Step is the number of steps
// already completed; resuming starts at Step.
type Workflow struct {
	ID         string              `bson:"_id" json:"id"`
	Kind       WorkflowKind        `bson:"kind" json:"kind"`
	Status     WorkflowStatus      `bson:"status" json:"status"`
	Step       int                 `bson:"step" json:"step"`
	TotalSteps int                 `bson:"totalSteps" json:"totalSteps"`
	LastError  string              `bson:"lastError,omitempty" json:"lastError,omitempty"`
	AssignPlan *AssignPlanPayload  `bson:"assignPlan,omitempty" json:"assignPlan,omitempty"`
	Move       *MoveSessionPayload `bson:"move,omitempty" json:"move,omitempty"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}

type AssignPlanPayload struct {
	ClientID  string   `bson:"clientId" json:"clientId"`
	ProgramID string   `bson:"programId" json:"programId"`
	PlanID    string   `bson:"planId" json:"planId"`
	WeekKeys  []string `bson:"weekKeys" json:"weekKeys"`
}

type MoveSessionPayload struct {
	ClientID       string `bson:"clientId" json:"clientId"`
	ProgramID      string `bson:"programId" json:"programId"`
	SourceWeekKey  string `bson:"sourceWeekKey" json:"sourceWeekKey"`
	TargetWeekKey  string `bson:"targetWeekKey" json:"targetWeekKey"`
	SessionID      string `bson:"sessionId" json:"sessionId"`
	TargetDayIndex int    `bson:"targetDayIndex" json:"targetDayIndex"`
	TargetPlanID   string `bson:"targetPlanId,omitempty" json:"targetPlanId,omitempty"`
	TargetModuleID string `bson:"targetModuleId,omitempty" json:"targetModuleId,omitempty"`
	// Snapshot of the session taken before step one, so a resumed move
	// re-adds exactly what was removed even if the source changed meanwhile.
	Session *ClientSession `bson:"session,omitempty" json:"session,omitempty"`
}

func (w *Workflow) Done() bool {
	return w.Status == WorkflowCompleted
}
