package service

import (
	"alcyxob/coaching-platform/internal/domain"
	"fmt"
	"sort"
)

// Inputs and patches shared by week-level and session-level mutators. A nil
// patch field leaves the stored value unchanged.

type SessionInput struct {
	Title             string            `json:"title"`
	Image             string            `json:"image,omitempty"`
	DayIndex          *int              `json:"dayIndex,omitempty"`
	Order             *int              `json:"order,omitempty"`
	LibrarySessionRef string            `json:"librarySessionRef,omitempty"`
	Exercises         []domain.Exercise `json:"exercises,omitempty"`
}

type SessionPatch struct {
	Title    *string `json:"title,omitempty"`
	Image    *string `json:"image,omitempty"`
	DayIndex *int    `json:"dayIndex,omitempty"`
	Order    *int    `json:"order,omitempty"`
}

type ExerciseInput struct {
	Title             string       `json:"title" binding:"required"`
	LibraryExerciseID string       `json:"libraryExerciseId,omitempty"`
	Notes             string       `json:"notes,omitempty"`
	Order             *int         `json:"order,omitempty"`
	Sets              []domain.Set `json:"sets,omitempty"`
}

type ExercisePatch struct {
	Title *string `json:"title,omitempty"`
	Notes *string `json:"notes,omitempty"`
	Order *int    `json:"order,omitempty"`
}

type SetInput struct {
	Reps        string  `json:"reps,omitempty"`
	Intensity   string  `json:"intensity,omitempty"`
	Weight      *string `json:"weight,omitempty"`
	RestSeconds *int    `json:"restSeconds,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

type SetPatch struct {
	Reps        *string `json:"reps,omitempty"`
	Intensity   *string `json:"intensity,omitempty"`
	Weight      *string `json:"weight,omitempty"`
	RestSeconds *int    `json:"restSeconds,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

func validDayIndex(d *int) error {
	if d != nil && (*d < 0 || *d > 6) {
		return preconditionf("day index %d is outside Monday=0..Sunday=6", *d)
	}
	return nil
}

func (p SessionPatch) apply(s *domain.ClientSession) error {
	if err := validDayIndex(p.DayIndex); err != nil {
		return err
	}
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Image != nil {
		s.Image = *p.Image
	}
	if p.DayIndex != nil {
		d := *p.DayIndex
		s.DayIndex = &d
	}
	if p.Order != nil {
		s.Order = *p.Order
	}
	return nil
}

// exerciseEditor applies exercise and set edits to a list owned by a copy.
// newID assigns ids to anything the client adds.
type exerciseEditor struct {
	newID func() string
}

// addExercise appends a new exercise built from in, keeping list ordered.
func (e exerciseEditor) addExercise(list []domain.Exercise, in ExerciseInput) []domain.Exercise {
	ex := domain.Exercise{
		ID:                e.newID(),
		Title:             in.Title,
		LibraryExerciseID: in.LibraryExerciseID,
		Notes:             in.Notes,
		Order:             nextOrder(len(list), in.Order),
		Sets:              []domain.Set{},
	}
	for i, s := range in.Sets {
		s.ID = e.newID()
		if s.Order == 0 {
			s.Order = i
		}
		ex.Sets = append(ex.Sets, s)
	}
	list = append(list, ex)
	sortExercises(list)
	return list
}

func (e exerciseEditor) updateExercise(list []domain.Exercise, exerciseID string, p ExercisePatch) error {
	i := domain.FindExercise(list, exerciseID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrExerciseNotFound, exerciseID)
	}
	if p.Title != nil {
		list[i].Title = *p.Title
	}
	if p.Notes != nil {
		list[i].Notes = *p.Notes
	}
	if p.Order != nil {
		list[i].Order = *p.Order
		sortExercises(list)
	}
	return nil
}

func (e exerciseEditor) deleteExercise(list []domain.Exercise, exerciseID string) ([]domain.Exercise, error) {
	i := domain.FindExercise(list, exerciseID)
	if i < 0 {
		return list, fmt.Errorf("%w: %s", ErrExerciseNotFound, exerciseID)
	}
	return append(list[:i], list[i+1:]...), nil
}

func (e exerciseEditor) addSet(list []domain.Exercise, exerciseID string, in SetInput) (*domain.Set, error) {
	i := domain.FindExercise(list, exerciseID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrExerciseNotFound, exerciseID)
	}
	set := domain.Set{
		ID:          e.newID(),
		Reps:        in.Reps,
		Intensity:   in.Intensity,
		Weight:      in.Weight,
		RestSeconds: in.RestSeconds,
		Notes:       in.Notes,
		Order:       nextOrder(len(list[i].Sets), in.Order),
	}
	list[i].Sets = append(list[i].Sets, set)
	sortSets(list[i].Sets)
	return &list[i].Sets[domain.FindSet(list[i].Sets, set.ID)], nil
}

func (e exerciseEditor) updateSet(list []domain.Exercise, exerciseID, setID string, p SetPatch) error {
	i := domain.FindExercise(list, exerciseID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrExerciseNotFound, exerciseID)
	}
	j := domain.FindSet(list[i].Sets, setID)
	if j < 0 {
		return fmt.Errorf("%w: %s", ErrSetNotFound, setID)
	}
	s := &list[i].Sets[j]
	if p.Reps != nil {
		s.Reps = *p.Reps
	}
	if p.Intensity != nil {
		s.Intensity = *p.Intensity
	}
	if p.Weight != nil {
		w := *p.Weight
		s.Weight = &w
	}
	if p.RestSeconds != nil {
		r := *p.RestSeconds
		s.RestSeconds = &r
	}
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
	if p.Order != nil {
		s.Order = *p.Order
		sortSets(list[i].Sets)
	}
	return nil
}

func (e exerciseEditor) deleteSet(list []domain.Exercise, exerciseID, setID string) error {
	i := domain.FindExercise(list, exerciseID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrExerciseNotFound, exerciseID)
	}
	j := domain.FindSet(list[i].Sets, setID)
	if j < 0 {
		return fmt.Errorf("%w: %s", ErrSetNotFound, setID)
	}
	list[i].Sets = append(list[i].Sets[:j], list[i].Sets[j+1:]...)
	return nil
}

// nextOrder appends at the end unless the caller asked for a position.
func nextOrder(n int, requested *int) int {
	if requested != nil {
		return *requested
	}
	return n
}

func sortExercises(list []domain.Exercise) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Order < list[j].Order })
}

func sortSets(list []domain.Set) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Order < list[j].Order })
}
