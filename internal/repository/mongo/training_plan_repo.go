// internal/repository/mongo/training_plan_repo.go
package mongo

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planCollectionName = "plans"

// mongoPlanRepository implements repository.PlanRepository
type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new Plan repository.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

// GetByID retrieves a single plan, modules and sessions included.
func (r *mongoPlanRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	return findOne[domain.Plan](ctx, r.collection, bson.M{"_id": id})
}

// Upsert replaces the plan document.
func (r *mongoPlanRepository) Upsert(ctx context.Context, plan *domain.Plan) error {
	if plan.ID == "" || plan.Title == "" {
		return errors.New("plan requires id and title")
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	return replaceByID(ctx, r.collection, plan.ID, plan)
}

// ListReferencingLibrarySession finds plans with a module session pointing at the library session.
func (r *mongoPlanRepository) ListReferencingLibrarySession(ctx context.Context, librarySessionID string) ([]domain.Plan, error) {
	return findAll[domain.Plan](ctx, r.collection, bson.M{"modules.sessions.librarySessionRef": librarySessionID})
}

// EnsurePlanIndexes creates necessary indexes. Call during startup.
func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "creatorId", Value: 1}},
			Options: options.Index(),
		},
		{
			// Lets library propagation find plan-backed weeks to invalidate
			Keys:    bson.D{{Key: "modules.sessions.librarySessionRef", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
}
