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
	sessionContentCollectionName = "client_session_content"
	sessionContentSourceIndex    = "provenance_source"
)

type mongoClientSessionContentRepository struct {
	collection *mongo.Collection
}

func NewMongoClientSessionContentRepository(db *mongo.Database) repository.ClientSessionContentRepository {
	return &mongoClientSessionContentRepository{
		collection: db.Collection(sessionContentCollectionName),
	}
}

func (r *mongoClientSessionContentRepository) Get(ctx context.Context, id string) (*domain.ClientSessionContent, error) {
	return findOne[domain.ClientSessionContent](ctx, r.collection, bson.M{"_id": id})
}

func (r *mongoClientSessionContentRepository) Save(ctx context.Context, content *domain.ClientSessionContent) error {
	if content.ID == "" {
		return errors.New("session content requires the assignment id")
	}
	now := time.Now().UTC()
	if content.CreatedAt.IsZero() {
		content.CreatedAt = now
	}
	content.UpdatedAt = now
	return replaceByID(ctx, r.collection, content.ID, content)
}

func (r *mongoClientSessionContentRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.collection, id)
}

func (r *mongoClientSessionContentRepository) FindBySourceSession(ctx context.Context, librarySessionID string) ([]domain.ClientSessionContent, error) {
	filter := bson.M{
		"provenance.sourceType": domain.SourceLibrarySession,
		"provenance.sourceId":   librarySessionID,
	}
	return findHinted[domain.ClientSessionContent](ctx, r.collection, filter, sessionContentSourceIndex)
}

func (r *mongoClientSessionContentRepository) ListAll(ctx context.Context) ([]domain.ClientSessionContent, error) {
	return findAll[domain.ClientSessionContent](ctx, r.collection, bson.M{})
}

// EnsureClientSessionContentIndexes creates the provenance index used by propagation.
func EnsureClientSessionContentIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "provenance.sourceType", Value: 1}, {Key: "provenance.sourceId", Value: 1}},
			Options: options.Index().SetName(sessionContentSourceIndex),
		},
	})
}
