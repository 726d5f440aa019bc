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

const weekAssignmentCollectionName = "week_assignments"

// mongoWeekAssignmentRepository keeps one document per client/program/week,
// so each week's assignment is written independently.
type mongoWeekAssignmentRepository struct {
	collection *mongo.Collection
}

func NewMongoWeekAssignmentRepository(db *mongo.Database) repository.WeekAssignmentRepository {
	return &mongoWeekAssignmentRepository{
		collection: db.Collection(weekAssignmentCollectionName),
	}
}

func (r *mongoWeekAssignmentRepository) Get(ctx context.Context, clientID, programID, weekKey string) (*domain.WeekAssignment, error) {
	return findOne[domain.WeekAssignment](ctx, r.collection, bson.M{"_id": domain.PlanContentKey(clientID, programID, weekKey)})
}

func (r *mongoWeekAssignmentRepository) Upsert(ctx context.Context, assignment *domain.WeekAssignment) error {
	assignment.ID = domain.PlanContentKey(assignment.ClientID, assignment.ProgramID, assignment.WeekKey)
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	return replaceByID(ctx, r.collection, assignment.ID, assignment)
}

func (r *mongoWeekAssignmentRepository) Delete(ctx context.Context, clientID, programID, weekKey string) error {
	return deleteByID(ctx, r.collection, domain.PlanContentKey(clientID, programID, weekKey))
}

func (r *mongoWeekAssignmentRepository) ListByClientProgram(ctx context.Context, clientID, programID string) ([]domain.WeekAssignment, error) {
	return findAll[domain.WeekAssignment](ctx, r.collection,
		bson.M{"clientId": clientID, "programId": programID},
		options.Find().SetSort(bson.D{{Key: "weekKey", Value: 1}}),
	)
}

func (r *mongoWeekAssignmentRepository) ListByPlan(ctx context.Context, planID string) ([]domain.WeekAssignment, error) {
	return findAll[domain.WeekAssignment](ctx, r.collection, bson.M{"planId": planID})
}

// EnsureWeekAssignmentIndexes creates necessary indexes for the week_assignments collection.
func EnsureWeekAssignmentIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "programId", Value: 1}, {Key: "weekKey", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "planId", Value: 1}},
			Options: options.Index(),
		},
	})
}
