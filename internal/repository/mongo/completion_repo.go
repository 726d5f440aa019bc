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

const completionCollectionName = "session_completions"

type mongoCompletionRepository struct {
	collection *mongo.Collection
}

func NewMongoCompletionRepository(db *mongo.Database) repository.CompletionRepository {
	return &mongoCompletionRepository{
		collection: db.Collection(completionCollectionName),
	}
}

func (r *mongoCompletionRepository) Create(ctx context.Context, completion *domain.SessionCompletion) error {
	if completion.ID == "" {
		return errors.New("completion requires an id")
	}
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now().UTC()
	}
	return replaceByID(ctx, r.collection, completion.ID, completion)
}

func (r *mongoCompletionRepository) ListByClient(ctx context.Context, clientID string) ([]domain.SessionCompletion, error) {
	return findAll[domain.SessionCompletion](ctx, r.collection, bson.M{"clientId": clientID})
}

func EnsureCompletionIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		},
	})
}
