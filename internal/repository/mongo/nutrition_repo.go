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

const (
	nutritionPlanCollectionName       = "nutrition_plans"
	nutritionAssignmentCollectionName = "nutrition_assignments"
	nutritionAssignmentPlanIndex      = "plan_id"
)

type mongoNutritionPlanRepository struct {
	collection *mongo.Collection
}

func NewMongoNutritionPlanRepository(db *mongo.Database) repository.NutritionPlanRepository {
	return &mongoNutritionPlanRepository{collection: db.Collection(nutritionPlanCollectionName)}
}

func (r *mongoNutritionPlanRepository) GetByID(ctx context.Context, id string) (*domain.NutritionPlan, error) {
	return findOne[domain.NutritionPlan](ctx, r.collection, bson.M{"_id": id})
}

func (r *mongoNutritionPlanRepository) Upsert(ctx context.Context, plan *domain.NutritionPlan) error {
	if plan.ID == "" {
		return errors.New("nutrition plan requires an id")
	}
	plan.UpdatedAt = time.Now().UTC()
	return replaceByID(ctx, r.collection, plan.ID, plan)
}

type mongoNutritionAssignmentRepository struct {
	collection *mongo.Collection
}

func NewMongoNutritionAssignmentRepository(db *mongo.Database) repository.NutritionAssignmentRepository {
	return &mongoNutritionAssignmentRepository{collection: db.Collection(nutritionAssignmentCollectionName)}
}

func (r *mongoNutritionAssignmentRepository) Save(ctx context.Context, a *domain.NutritionAssignment) error {
	if a.ID == "" {
		return errors.New("nutrition assignment requires an id")
	}
	if a.SnapshotAt.IsZero() {
		a.SnapshotAt = time.Now().UTC()
	}
	return replaceByID(ctx, r.collection, a.ID, a)
}

func (r *mongoNutritionAssignmentRepository) GetByID(ctx context.Context, id string) (*domain.NutritionAssignment, error) {
	return findOne[domain.NutritionAssignment](ctx, r.collection, bson.M{"_id": id})
}

func (r *mongoNutritionAssignmentRepository) FindByPlan(ctx context.Context, planID string) ([]domain.NutritionAssignment, error) {
	return findHinted[domain.NutritionAssignment](ctx, r.collection, bson.M{"planId": planID}, nutritionAssignmentPlanIndex)
}

func (r *mongoNutritionAssignmentRepository) ListAll(ctx context.Context) ([]domain.NutritionAssignment, error) {
	return findAll[domain.NutritionAssignment](ctx, r.collection, bson.M{})
}

// UpdateSnapshot rewrites the denormalized plan snapshot read by the client app.
func (r *mongoNutritionAssignmentRepository) UpdateSnapshot(ctx context.Context, id string, snapshot domain.NutritionPlanSnapshot) error {
	update := bson.M{"$set": bson.M{"snapshot": snapshot, "snapshotAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func EnsureNutritionAssignmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "planId", Value: 1}},
			Options: options.Index().SetName(nutritionAssignmentPlanIndex),
		},
	})
}
