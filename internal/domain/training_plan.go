// internal/domain/training_plan.go
package domain

import (
	"sort"
	"time"
)

// Plan is a creator-authored multi-week template. Each Module is one calendar
// week of content. Plans are shared by every client they are assigned to.
type Plan struct {
	ID          string    `bson:"_id" json:"id"`
	CreatorID   string    `bson:"creatorId" json:"creatorId"`
	Title       string    `bson:"title" json:"title"` // e.g., "Hypertrophy A"
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Modules     []Module  `bson:"modules" json:"modules"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Module is one week's worth of plan content.
type Module struct {
	ID       string        `bson:"id" json:"id"`
	Title    string        `bson:"title" json:"title"`
	Order    int           `bson:"order" json:"order"`
	Sessions []PlanSession `bson:"sessions" json:"sessions"`
}

// PlanSession either references a library session (resolved at read time) or
// carries inline content when UseLocalContent is set.
type PlanSession struct {
	ID                string     `bson:"id" json:"id"`
	Title             string     `bson:"title,omitempty" json:"title,omitempty"`
	Image             string     `bson:"image,omitempty" json:"image,omitempty"`
	DayIndex          *int       `bson:"dayIndex,omitempty" json:"dayIndex,omitempty"` // Monday=0 .. Sunday=6
	Order             int        `bson:"order" json:"order"`
	LibrarySessionRef string     `bson:"librarySessionRef,omitempty" json:"librarySessionRef,omitempty"`
	UseLocalContent   bool       `bson:"useLocalContent" json:"useLocalContent"`
	Exercises         []Exercise `bson:"exercises,omitempty" json:"exercises,omitempty"`
}

// IsLibraryReference reports whether the session content lives in the library.
func (s PlanSession) IsLibraryReference() bool {
	return !s.UseLocalContent && s.LibrarySessionRef != ""
}

// OrderedModules returns the modules sorted by Order. The position in the
// result is the module index used by week assignments.
func (p *Plan) OrderedModules() []Module {
	mods := make([]Module, len(p.Modules))
	copy(mods, p.Modules)
	sort.SliceStable(mods, func(i, j int) bool { return mods[i].Order < mods[j].Order })
	return mods
}

// ModuleAt returns the module at index in plan order.
func (p *Plan) ModuleAt(index int) (*Module, bool) {
	mods := p.OrderedModules()
	if index < 0 || index >= len(mods) {
		return nil, false
	}
	return &mods[index], true
}

// ModuleByID finds a module by id along with its index in plan order.
func (p *Plan) ModuleByID(id string) (*Module, int, bool) {
	mods := p.OrderedModules()
	for i := range mods {
		if mods[i].ID == id {
			return &mods[i], i, true
		}
	}
	return nil, -1, false
}

// ReferencesLibrarySession reports whether any module session points at id.
func (p *Plan) ReferencesLibrarySession(id string) bool {
	for _, m := range p.Modules {
		for _, s := range m.Sessions {
			if s.LibrarySessionRef == id {
				return true
			}
		}
	}
	return false
}

// OrderedSessions returns the module's sessions sorted by Order.
func (m *Module) OrderedSessions() []PlanSession {
	sessions := make([]PlanSession, len(m.Sessions))
	copy(sessions, m.Sessions)
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].Order < sessions[j].Order })
	return sessions
}
