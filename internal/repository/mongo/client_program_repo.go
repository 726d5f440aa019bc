package mongo

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/repository"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const clientProgramCollectionName = "client_programs"

type mongoClientProgramRepository struct {
	collection *mongo.Collection
}

func NewMongoClientProgramRepository(db *mongo.Database) repository.ClientProgramRepository {
	return &mongoClientProgramRepository{
		collection: db.Collection(clientProgramCollectionName),
	}
}

func (r *mongoClientProgramRepository) Get(ctx context.Context, clientID, programID string) (*domain.ClientProgram, error) {
	return findOne[domain.ClientProgram](ctx, r.collection, bson.M{"_id": domain.ClientProgramKey(clientID, programID)})
}

// Create inserts the client program unless it already exists.
func (r *mongoClientProgramRepository) Create(ctx context.Context, program *domain.ClientProgram) error {
	program.ID = domain.ClientProgramKey(program.ClientID, program.ProgramID)
	if program.CreatedAt.IsZero() {
		program.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": program.ID},
		bson.M{"$setOnInsert": program},
		options.Update().SetUpsert(true),
	)
	return err
}
