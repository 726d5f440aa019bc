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

const (
	planContentCollectionName = "client_plan_content"

	planContentSourceIndex     = "provenance_source"
	planContentLibraryRefIndex = "sessions_library_ref"
)

// mongoClientPlanContentRepository stores a week copy as one document, so a
// deep copy lands in a single atomic write.
type mongoClientPlanContentRepository struct {
	collection *mongo.Collection
}

func NewMongoClientPlanContentRepository(db *mongo.Database) repository.ClientPlanContentRepository {
	return &mongoClientPlanContentRepository{
		collection: db.Collection(planContentCollectionName),
	}
}

func (r *mongoClientPlanContentRepository) Get(ctx context.Context, id string) (*domain.ClientPlanContent, error) {
	return findOne[domain.ClientPlanContent](ctx, r.collection, bson.M{"_id": id})
}

func (r *mongoClientPlanContentRepository) Save(ctx context.Context, content *domain.ClientPlanContent) error {
	content.ID = domain.PlanContentKey(content.ClientID, content.ProgramID, content.WeekKey)
	now := time.Now().UTC()
	if content.CreatedAt.IsZero() {
		content.CreatedAt = now
	}
	content.UpdatedAt = now
	return replaceByID(ctx, r.collection, content.ID, content)
}

func (r *mongoClientPlanContentRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.collection, id)
}

func (r *mongoClientPlanContentRepository) FindBySourcePlan(ctx context.Context, planID string) ([]domain.ClientPlanContent, error) {
	filter := bson.M{
		"provenance.sourceType": bson.M{"$in": []domain.SourceType{domain.SourcePlanModule, domain.SourcePlanSession}},
		"provenance.sourceId":   planID,
	}
	return findHinted[domain.ClientPlanContent](ctx, r.collection, filter, planContentSourceIndex)
}

func (r *mongoClientPlanContentRepository) FindByLibrarySessionRef(ctx context.Context, librarySessionID string) ([]domain.ClientPlanContent, error) {
	return findHinted[domain.ClientPlanContent](ctx, r.collection,
		bson.M{"sessions.librarySessionRef": librarySessionID}, planContentLibraryRefIndex)
}

func (r *mongoClientPlanContentRepository) ListAll(ctx context.Context) ([]domain.ClientPlanContent, error) {
	return findAll[domain.ClientPlanContent](ctx, r.collection, bson.M{})
}

// EnsureClientPlanContentIndexes creates the provenance indexes used by propagation.
func EnsureClientPlanContentIndexes(ctx context.Context, collection *mongo.Collection) error {
	return createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "provenance.sourceType", Value: 1}, {Key: "provenance.sourceId", Value: 1}},
			Options: options.Index().SetName(planContentSourceIndex),
		},
		{
			Keys:    bson.D{{Key: "sessions.librarySessionRef", Value: 1}},
			Options: options.Index().SetName(planContentLibraryRefIndex).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "programId", Value: 1}},
			Options: options.Index(),
		},
	})
}
