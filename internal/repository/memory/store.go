// Package memory provides an in-process document store implementing the
// repository interfaces. Rows are kept BSON-encoded so callers never share
// memory with stored documents, the same isolation a real store gives.
package memory

import (
	"alcyxob/coaching-platform/internal/repository"
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// Options controls store behaviour.
type Options struct {
	// ProvenanceIndexes mirrors whether the provenance indexes exist. When
	// false, provenance queries fail with repository.ErrIndexUnavailable.
	ProvenanceIndexes bool
}

type table[T any] struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string][]byte)}
}

func (t *table[T]) get(id string) (*T, error) {
	t.mu.RLock()
	raw, ok := t.rows[id]
	t.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *table[T]) put(id string, v *T) error {
	raw, err := bson.Marshal(v)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.rows[id] = raw
	t.mu.Unlock()
	return nil
}

// putIfAbsent stores v unless id exists; it reports whether it wrote.
func (t *table[T]) putIfAbsent(id string, v *T) (bool, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; ok {
		return false, nil
	}
	t.rows[id] = raw
	return true, nil
}

func (t *table[T]) exists(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rows[id]
	return ok
}

func (t *table[T]) delete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	return true
}

// list decodes every row accepted by keep, ordered by key.
func (t *table[T]) list(keep func(*T) bool) ([]T, error) {
	t.mu.RLock()
	keys := make([]string, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	raws := make([][]byte, len(keys))
	for i, k := range keys {
		raws[i] = t.rows[k]
	}
	t.mu.RUnlock()

	out := []T{}
	for _, raw := range raws {
		var v T
		if err := bson.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		if keep == nil || keep(&v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// ctxErr lets the store honour cancellation like a networked client would.
func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// NewStore builds a repository.Store backed entirely by memory.
func NewStore(opts Options) *repository.Store {
	return &repository.Store{
		LibrarySessions:      NewLibrarySessionRepository(),
		Plans:                NewPlanRepository(),
		ClientPrograms:       NewClientProgramRepository(),
		WeekAssignments:      NewWeekAssignmentRepository(),
		PlanContents:         NewClientPlanContentRepository(opts),
		SessionContents:      NewClientSessionContentRepository(opts),
		SessionAssignments:   NewSessionAssignmentRepository(),
		Completions:          NewCompletionRepository(),
		Workflows:            NewWorkflowRepository(),
		NutritionPlans:       NewNutritionPlanRepository(),
		NutritionAssignments: NewNutritionAssignmentRepository(opts),
	}
}
