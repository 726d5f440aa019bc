package mongo

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const workflowCollectionName = "workflows"

type mongoWorkflowRepository struct {
	collection *mongo.Collection
}

func NewMongoWorkflowRepository(db *mongo.Database) repository.WorkflowRepository {
	return &mongoWorkflowRepository{
		collection: db.Collection(workflowCollectionName),
	}
}

func (r *mongoWorkflowRepository) Create(ctx context.Context, wf *domain.Workflow) error {
	if wf.ID == "" {
		return errors.New("workflow requires an id")
	}
	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, wf)
	return err
}

func (r *mongoWorkflowRepository) GetByID(ctx context.Context, id string) (*domain.Workflow, error) {
	return findOne[domain.Workflow](ctx, r.collection, bson.M{"_id": id})
}

// Update persists progress. The step only moves forward.
func (r *mongoWorkflowRepository) Update(ctx context.Context, wf *domain.Workflow) error {
	wf.UpdatedAt = time.Now().UTC()
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": wf.ID, "step": bson.M{"$lte": wf.Step}}, wf)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrUpdateFailed
	}
	return nil
}
