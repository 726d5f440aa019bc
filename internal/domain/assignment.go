package domain

import (
	"fmt"
	"time"
)

// ClientProgram records that a program has been assigned to a client. It is
// created the first time a plan is scheduled for the pair; personalizing a
// week requires it to exist.
type ClientProgram struct {
	ID        string    `bson:"_id" json:"id"` // {clientId}_{programId}
	ClientID  string    `bson:"clientId" json:"clientId"`
	ProgramID string    `bson:"programId" json:"programId"`
	CreatorID string    `bson:"creatorId,omitempty" json:"creatorId,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func ClientProgramKey(clientID, programID string) string {
	return fmt.Sprintf("%s_%s", clientID, programID)
}

// WeekAssignment is one week's plan assignment. Each week is its own document
// so concurrent writers to different weeks never overwrite each other.
type WeekAssignment struct {
	ID          string    `bson:"_id" json:"id"` // {clientId}_{programId}_{weekKey}
	ClientID    string    `bson:"clientId" json:"clientId"`
	ProgramID   string    `bson:"programId" json:"programId"`
	WeekKey     string    `bson:"weekKey" json:"weekKey"`
	PlanID      string    `bson:"planId" json:"planId"`
	ModuleID    string    `bson:"moduleId" json:"moduleId"`
	ModuleIndex int       `bson:"moduleIndex" json:"moduleIndex"`
	AssignedAt  time.Time `bson:"assignedAt" json:"assignedAt"`
}

// PlanAssignment is the value of the planAssignments view: week key ->
// {planId, moduleIndex, assignedAt}.
type PlanAssignment struct {
	PlanID      string    `json:"planId"`
	ModuleID    string    `json:"moduleId"`
	ModuleIndex int       `json:"moduleIndex"`
	AssignedAt  time.Time `json:"assignedAt"`
}

func (w WeekAssignment) PlanAssignment() PlanAssignment {
	return PlanAssignment{PlanID: w.PlanID, ModuleID: w.ModuleID, ModuleIndex: w.ModuleIndex, AssignedAt: w.AssignedAt}
}

// ClientSessionAssignment places one session on one calendar date. At most
// one exists per (client, program, date).
type ClientSessionAssignment struct {
	ID               string    `bson:"_id" json:"id"` // {clientId}_{YYYY-MM-DD}_{sessionId}
	ClientID         string    `bson:"clientId" json:"clientId"`
	ProgramID        string    `bson:"programId" json:"programId"`
	PlanID           string    `bson:"planId,omitempty" json:"planId,omitempty"`     // Set when scheduled from a plan
	ModuleID         string    `bson:"moduleId,omitempty" json:"moduleId,omitempty"` // Set when scheduled from a plan
	SessionID        string    `bson:"sessionId" json:"sessionId"`                   // Plan session id, or library session id
	LibrarySessionID string    `bson:"librarySessionId,omitempty" json:"librarySessionId,omitempty"`
	Date             string    `bson:"date" json:"date"` // YYYY-MM-DD
	WeekKey          string    `bson:"weekKey" json:"weekKey"`
	DayIndex         int       `bson:"dayIndex" json:"dayIndex"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
}

func SessionAssignmentKey(clientID, dateStr, sessionID string) string {
	return fmt.Sprintf("%s_%s_%s", clientID, dateStr, sessionID)
}

// IsPlanBacked reports whether the assignment came from a scheduled plan.
func (a *ClientSessionAssignment) IsPlanBacked() bool {
	return a.PlanID != ""
}

// SessionCompletion is the client's record of having finished an assigned
// session. It shares its key with the assignment.
type SessionCompletion struct {
	ID          string    `bson:"_id" json:"id"`
	ClientID    string    `bson:"clientId" json:"clientId"`
	ProgramID   string    `bson:"programId,omitempty" json:"programId,omitempty"`
	SessionID   string    `bson:"sessionId" json:"sessionId"`
	Date        string    `bson:"date" json:"date"`
	CompletedAt time.Time `bson:"completedAt" json:"completedAt"`
}
