package domain

import (
	"fmt"
	"sort"
	"time"
)

// ClientPlanContent is the copy-on-write overlay for one client/program/week.
// Once it holds at least one session it is authoritative for that week,
// regardless of later plan edits, until it is deleted.
type ClientPlanContent struct {
	ID         string          `bson:"_id" json:"id"` // {clientId}_{programId}_{weekKey}
	ClientID   string          `bson:"clientId" json:"clientId"`
	ProgramID  string          `bson:"programId" json:"programId"`
	WeekKey    string          `bson:"weekKey" json:"weekKey"`
	Provenance Provenance      `bson:"provenance" json:"provenance"`
	Sessions   []ClientSession `bson:"sessions" json:"sessions"`
	CreatedAt  time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// ClientSession is a fully resolved session: either inside a week copy, or
// produced by the resolver from a live plan/library.
type ClientSession struct {
	ID                string     `bson:"id" json:"id"`
	Title             string     `bson:"title" json:"title"`
	Image             string     `bson:"image,omitempty" json:"image,omitempty"`
	DayIndex          *int       `bson:"dayIndex,omitempty" json:"dayIndex,omitempty"`
	Order             int        `bson:"order" json:"order"`
	LibrarySessionRef string     `bson:"librarySessionRef,omitempty" json:"librarySessionRef,omitempty"`
	Provenance        Provenance `bson:"provenance" json:"provenance"`
	Exercises         []Exercise `bson:"exercises" json:"exercises"`
}

// PlanContentKey builds the ClientPlanContent document key.
func PlanContentKey(clientID, programID, weekKey string) string {
	return fmt.Sprintf("%s_%s_%s", clientID, programID, weekKey)
}

// HasSessions reports whether the copy overrides the plan.
func (c *ClientPlanContent) HasSessions() bool {
	return c != nil && len(c.Sessions) > 0
}

// FindSession returns the index of the session with id, or -1.
func (c *ClientPlanContent) FindSession(id string) int {
	for i := range c.Sessions {
		if c.Sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// ReferencesLibrarySession reports whether any contained session was built
// from the library session.
func (c *ClientPlanContent) ReferencesLibrarySession(id string) bool {
	for _, s := range c.Sessions {
		if s.LibrarySessionRef == id {
			return true
		}
	}
	return false
}

// SortSessions orders sessions by day, then order.
func SortSessions(sessions []ClientSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		di, dj := dayOrMax(sessions[i].DayIndex), dayOrMax(sessions[j].DayIndex)
		if di != dj {
			return di < dj
		}
		return sessions[i].Order < sessions[j].Order
	})
}

func dayOrMax(d *int) int {
	if d == nil {
		return 7
	}
	return *d
}

// Clone deep-copies a session.
func (s ClientSession) Clone() ClientSession {
	out := s
	if s.DayIndex != nil {
		d := *s.DayIndex
		out.DayIndex = &d
	}
	out.Exercises = CloneExercises(s.Exercises)
	return out
}

// ClientSessionContent is the copy-on-write overlay for a single
// date-assigned library session, keyed by the session assignment id.
type ClientSessionContent struct {
	ID         string     `bson:"_id" json:"id"` // ClientSessionAssignment id
	ClientID   string     `bson:"clientId" json:"clientId"`
	ProgramID  string     `bson:"programId,omitempty" json:"programId,omitempty"`
	Provenance Provenance `bson:"provenance" json:"provenance"`
	Title      string     `bson:"title" json:"title"`
	Image      string     `bson:"image,omitempty" json:"image,omitempty"`
	Exercises  []Exercise `bson:"exercises" json:"exercises"`
	CreatedAt  time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time  `bson:"updatedAt" json:"updatedAt"`
}
