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

const librarySessionCollectionName = "library_sessions"

// mongoLibrarySessionRepository implements repository.LibrarySessionRepository
type mongoLibrarySessionRepository struct {
	collection *mongo.Collection
}

// NewMongoLibrarySessionRepository creates a library session repository backed by MongoDB.
func NewMongoLibrarySessionRepository(db *mongo.Database) repository.LibrarySessionRepository {
	return &mongoLibrarySessionRepository{
		collection: db.Collection(librarySessionCollectionName),
	}
}

// GetByID retrieves a library session with its full exercise/set tree.
func (r *mongoLibrarySessionRepository) GetByID(ctx context.Context, id string) (*domain.LibrarySession, error) {
	return findOne[domain.LibrarySession](ctx, r.collection, bson.M{"_id": id})
}

// Upsert replaces the library session document.
func (r *mongoLibrarySessionRepository) Upsert(ctx context.Context, session *domain.LibrarySession) error {
	if session.ID == "" {
		return errors.New("library session requires an id")
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	return replaceByID(ctx, r.collection, session.ID, session)
}
