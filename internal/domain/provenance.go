package domain

// SourceType names the kind of upstream entity a personalized copy came from.
type SourceType string

const (
	SourcePlanModule     SourceType = "plan_module"     // SourceID = plan id, SourceSubID = module id
	SourcePlanSession    SourceType = "plan_session"    // SourceID = plan id, SourceSubID = plan session id
	SourceLibrarySession SourceType = "library_session" // SourceID = library session id
	SourceClient         SourceType = "client"          // created client-side, no upstream
)

// Provenance records where a copy was taken from. Propagation finds copies by
// filtering on this value, so every copy entity embeds one.
type Provenance struct {
	SourceType  SourceType `bson:"sourceType" json:"sourceType"`
	SourceID    string     `bson:"sourceId,omitempty" json:"sourceId,omitempty"`
	SourceSubID string     `bson:"sourceSubId,omitempty" json:"sourceSubId,omitempty"`
}

func PlanModuleProvenance(planID, moduleID string) Provenance {
	return Provenance{SourceType: SourcePlanModule, SourceID: planID, SourceSubID: moduleID}
}

func PlanSessionProvenance(planID, sessionID string) Provenance {
	return Provenance{SourceType: SourcePlanSession, SourceID: planID, SourceSubID: sessionID}
}

func LibraryProvenance(librarySessionID string) Provenance {
	return Provenance{SourceType: SourceLibrarySession, SourceID: librarySessionID}
}

func ClientProvenance() Provenance {
	return Provenance{SourceType: SourceClient}
}

// DerivesFromPlan reports whether the copy was taken from planID.
func (p Provenance) DerivesFromPlan(planID string) bool {
	return (p.SourceType == SourcePlanModule || p.SourceType == SourcePlanSession) && p.SourceID == planID
}

// DerivesFromLibrarySession reports whether the copy was taken from the library session.
func (p Provenance) DerivesFromLibrarySession(id string) bool {
	return p.SourceType == SourceLibrarySession && p.SourceID == id
}
