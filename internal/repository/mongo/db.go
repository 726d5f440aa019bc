package mongo

import (
	"alcyxob/coaching-platform/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// badValueCode is what the server answers when a hint names a missing index.
const badValueCode = 2

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping the primary node to verify the connection.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}
	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// NewStore wires every repository against one database.
func NewStore(db *mongo.Database) *repository.Store {
	return &repository.Store{
		LibrarySessions:      NewMongoLibrarySessionRepository(db),
		Plans:                NewMongoPlanRepository(db),
		ClientPrograms:       NewMongoClientProgramRepository(db),
		WeekAssignments:      NewMongoWeekAssignmentRepository(db),
		PlanContents:         NewMongoClientPlanContentRepository(db),
		SessionContents:      NewMongoClientSessionContentRepository(db),
		SessionAssignments:   NewMongoSessionAssignmentRepository(db),
		Completions:          NewMongoCompletionRepository(db),
		Workflows:            NewMongoWorkflowRepository(db),
		NutritionPlans:       NewMongoNutritionPlanRepository(db),
		NutritionAssignments: NewMongoNutritionAssignmentRepository(db),
	}
}

// EnsureIndexes creates the indexes of every collection. withProvenance
// controls the provenance indexes; without them propagation falls back to
// collection scans.
func EnsureIndexes(ctx context.Context, db *mongo.Database, withProvenance bool) error {
	var errs []error
	errs = append(errs, EnsurePlanIndexes(ctx, db.Collection(planCollectionName)))
	errs = append(errs, EnsureWeekAssignmentIndexes(ctx, db.Collection(weekAssignmentCollectionName)))
	errs = append(errs, EnsureSessionAssignmentIndexes(ctx, db.Collection(sessionAssignmentCollectionName)))
	errs = append(errs, EnsureCompletionIndexes(ctx, db.Collection(completionCollectionName)))
	if withProvenance {
		errs = append(errs, EnsureClientPlanContentIndexes(ctx, db.Collection(planContentCollectionName)))
		errs = append(errs, EnsureClientSessionContentIndexes(ctx, db.Collection(sessionContentCollectionName)))
		errs = append(errs, EnsureNutritionAssignmentIndexes(ctx, db.Collection(nutritionAssignmentCollectionName)))
	}
	return errors.Join(errs...)
}

// isIndexUnavailable reports whether err is the server rejecting a hint for
// an index that does not exist.
func isIndexUnavailable(err error) bool {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorCode(badValueCode) && serverErr.HasErrorMessage("hint")
	}
	return false
}

// findAll runs a query and decodes every document.
func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// findHinted runs a provenance query pinned to index, mapping a missing index
// to repository.ErrIndexUnavailable.
func findHinted[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, index string) ([]T, error) {
	out, err := findAll[T](ctx, coll, filter, options.Find().SetHint(index))
	if err != nil {
		if isIndexUnavailable(err) {
			return nil, repository.ErrIndexUnavailable
		}
		return nil, err
	}
	return out, nil
}

// findOne decodes a single document, mapping no-documents to ErrNotFound.
func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// replaceByID writes the whole document in a single upsert.
func replaceByID(ctx context.Context, coll *mongo.Collection, id string, doc interface{}) error {
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

// deleteByID removes one document, returning ErrNotFound when nothing matched.
func deleteByID(ctx context.Context, coll *mongo.Collection, id string) error {
	result, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func createIndexes(ctx context.Context, coll *mongo.Collection, indexes []mongo.IndexModel) error {
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
