// internal/domain/exercise.go
package domain

// Exercise is one movement inside a session, with its ordered sets.
// The same shape is used by library sessions, inline plan sessions and
// personalized client copies.
type Exercise struct {
	ID                string `bson:"id" json:"id"`
	Title             string `bson:"title" json:"title"`
	LibraryExerciseID string `bson:"libraryExerciseId,omitempty" json:"libraryExerciseId,omitempty"` // Catalog movement this exercise was built from
	Notes             string `bson:"notes,omitempty" json:"notes,omitempty"`
	Order             int    `bson:"order" json:"order"`
	Sets              []Set  `bson:"sets" json:"sets"`
}

// Set is a single prescribed set.
type Set struct {
	ID          string  `bson:"id" json:"id"`
	Reps        string  `bson:"reps,omitempty" json:"reps,omitempty"`           // "8-10", "AMRAP"
	Intensity   string  `bson:"intensity,omitempty" json:"intensity,omitempty"` // "RPE 8", "75%"
	Weight      *string `bson:"weight,omitempty" json:"weight,omitempty"`
	RestSeconds *int    `bson:"restSeconds,omitempty" json:"restSeconds,omitempty"`
	Notes       string  `bson:"notes,omitempty" json:"notes,omitempty"`
	Order       int     `bson:"order" json:"order"`
}

// CloneExercises deep-copies a list of exercises so the result shares no
// slices or pointers with the input.
func CloneExercises(in []Exercise) []Exercise {
	if in == nil {
		return []Exercise{}
	}
	out := make([]Exercise, len(in))
	for i, e := range in {
		out[i] = e
		out[i].Sets = cloneSets(e.Sets)
	}
	return out
}

func cloneSets(in []Set) []Set {
	out := make([]Set, len(in))
	for i, s := range in {
		out[i] = s
		if s.Weight != nil {
			w := *s.Weight
			out[i].Weight = &w
		}
		if s.RestSeconds != nil {
			r := *s.RestSeconds
			out[i].RestSeconds = &r
		}
	}
	return out
}

// FindExercise returns the index of the exercise with id, or -1.
func FindExercise(exercises []Exercise, id string) int {
	for i := range exercises {
		if exercises[i].ID == id {
			return i
		}
	}
	return -1
}

// FindSet returns the index of the set with id, or -1.
func FindSet(sets []Set, id string) int {
	for i := range sets {
		if sets[i].ID == id {
			return i
		}
	}
	return -1
}
