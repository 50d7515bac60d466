package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"guruchat-backend/internal/database"
	"guruchat-backend/internal/models"
)

type GuruRepo struct {
	db *database.Mongo
}

func NewGuruRepo(db *database.Mongo) *GuruRepo {
	return &GuruRepo{db: db}
}

func (r *GuruRepo) List(ctx context.Context) ([]models.Guru, error) {
	coll, err := r.db.Collection(ctx, database.GurusCollection)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list gurus: %w", err)
	}
	defer cursor.Close(ctx)

	gurus := make([]models.Guru, 0)
	if err := cursor.All(ctx, &gurus); err != nil {
		return nil, fmt.Errorf("failed to decode gurus: %w", err)
	}
	return gurus, nil
}

func (r *GuruRepo) GetByID(ctx context.Context, id bson.ObjectID) (*models.Guru, error) {
	coll, err := r.db.Collection(ctx, database.GurusCollection)
	if err != nil {
		return nil, err
	}

	var guru models.Guru
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&guru); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find guru: %w", err)
	}
	return &guru, nil
}

// GetNames resolves persona names for the history sidebar. Missing ids are
// simply absent from the result.
func (r *GuruRepo) GetNames(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]string, error) {
	names := make(map[bson.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	coll, err := r.db.Collection(ctx, database.GurusCollection)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetProjection(bson.M{"name": 1})
	cursor, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to look up guru names: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID   bson.ObjectID `bson:"_id"`
		Name string        `bson:"name"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode guru names: %w", err)
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

// ReplaceAll swaps the stored personas for the given set. Used by the seeder.
// The new documents go in before the old ones are removed, so readers never
// see an empty collection and a failed insert leaves the previous set intact.
func (r *GuruRepo) ReplaceAll(ctx context.Context, gurus []models.Guru) (deleted int64, err error) {
	coll, err := r.db.Collection(ctx, database.GurusCollection)
	if err != nil {
		return 0, err
	}

	oldIDs, err := r.listIDs(ctx, coll)
	if err != nil {
		return 0, err
	}

	if len(gurus) > 0 {
		now := time.Now().UTC()
		docs := make([]interface{}, len(gurus))
		for i := range gurus {
			gurus[i].ID = bson.NewObjectID()
			gurus[i].CreatedAt = now
			gurus[i].UpdatedAt = now
			docs[i] = gurus[i]
		}
		if _, err := coll.InsertMany(ctx, docs); err != nil {
			return 0, fmt.Errorf("failed to insert gurus: %w", err)
		}
	}

	if len(oldIDs) == 0 {
		return 0, nil
	}
	res, err := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oldIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to remove previous gurus: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *GuruRepo) listIDs(ctx context.Context, coll *mongo.Collection) ([]bson.ObjectID, error) {
	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list guru ids: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID bson.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode guru ids: %w", err)
	}
	ids := make([]bson.ObjectID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids, nil
}
