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

const sessionAssignmentCollectionName = "client_sessions"

// mongoSessionAssignmentRepository implements repository.SessionAssignmentRepository
type mongoSessionAssignmentRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionAssignmentRepository creates a new session assignment repository backed by MongoDB.
func NewMongoSessionAssignmentRepository(db *mongo.Database) repository.SessionAssignmentRepository {
	return &mongoSessionAssignmentRepository{
		collection: db.Collection(sessionAssignmentCollectionName),
	}
}

// GetByID retrieves an assignment by its composite key.
func (r *mongoSessionAssignmentRepository) GetByID(ctx context.Context, id string) (*domain.ClientSessionAssignment, error) {
	return findOne[domain.ClientSessionAssignment](ctx, r.collection, bson.M{"_id": id})
}

// Save writes the assignment under {clientId}_{date}_{sessionId}.
func (r *mongoSessionAssignmentRepository) Save(ctx context.Context, assignment *domain.ClientSessionAssignment) error {
	if assignment.ClientID == "" || assignment.Date == "" || assignment.SessionID == "" {
		return errors.New("session assignment requires clientId, date and sessionId")
	}
	assignment.ID = domain.SessionAssignmentKey(assignment.ClientID, assignment.Date, assignment.SessionID)
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	return replaceByID(ctx, r.collection, assignment.ID, assignment)
}

func (r *mongoSessionAssignmentRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.collection, id)
}

// ListByProgramDate retrieves the assignments occupying a date for one program.
func (r *mongoSessionAssignmentRepository) ListByProgramDate(ctx context.Context, clientID, programID, date string) ([]domain.ClientSessionAssignment, error) {
	return findAll[domain.ClientSessionAssignment](ctx, r.collection,
		bson.M{"clientId": clientID, "programId": programID, "date": date})
}

// ListByWeek retrieves the assignments of one calendar week, sorted by date.
func (r *mongoSessionAssignmentRepository) ListByWeek(ctx context.Context, clientID, programID, weekKey string) ([]domain.ClientSessionAssignment, error) {
	return findAll[domain.ClientSessionAssignment](ctx, r.collection,
		bson.M{"clientId": clientID, "programId": programID, "weekKey": weekKey},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}),
	)
}

// EnsureSessionAssignmentIndexes creates necessary indexes for the client_sessions collection.
func EnsureSessionAssignmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "programId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "programId", Value: 1}, {Key: "weekKey", Value: 1}},
			Options: options.Index(),
		},
	})
}
