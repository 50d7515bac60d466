package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"guruchat-backend/internal/database"
	"guruchat-backend/internal/models"
)

func guruNames(gurus []models.Guru) []string {
	names := make([]string, len(gurus))
	for i, g := range gurus {
		names[i] = g.Name
	}
	return names
}

func guruStoreContract(t *testing.T, gurus GuruStore) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	before, err := gurus.List(ctx)
	require.NoError(t, err)

	first := []models.Guru{
		{Name: "Socrates", Description: "Questions everything.", SystemPrompt: "Ask."},
		{Name: "Ada Lovelace", Description: "Poetical science.", SystemPrompt: "Compute."},
	}
	deleted, err := gurus.ReplaceAll(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(len(before)), deleted)
	for _, g := range first {
		assert.False(t, g.ID.IsZero(), "ids are assigned on insert")
	}

	list, err := gurus.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada Lovelace", "Socrates"}, guruNames(list))

	second := []models.Guru{
		{Name: "Confucius", Description: "Rites and virtue.", SystemPrompt: "Teach."},
	}
	deleted, err = gurus.ReplaceAll(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	list, err = gurus.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Confucius"}, guruNames(list))

	_, err = gurus.GetByID(ctx, first[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := gurus.GetByID(ctx, second[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Rites and virtue.", got.Description)

	names, err := gurus.GetNames(ctx, []bson.ObjectID{second[0].ID, first[1].ID})
	require.NoError(t, err)
	assert.Equal(t, map[bson.ObjectID]string{second[0].ID: "Confucius"}, names)
}

func TestMongoGuruRepo(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	db := database.NewMongo(uri, "guruchat_test_"+bson.NewObjectID().Hex(), zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if mdb, err := db.Database(ctx); err == nil {
			mdb.Drop(ctx)
		}
		db.Close(ctx)
	})

	guruStoreContract(t, NewGuruRepo(db))
}

func TestPostgresGuruRepo(t *testing.T) {
	url := os.Getenv("DATABASE_TEST_URL")
	if url == "" {
		t.Skip("DATABASE_TEST_URL not set")
	}

	pool, err := database.NewPostgresPool(url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.RunMigrations(pool, database.Migrations(), zap.NewNop()))

	guruStoreContract(t, NewPGGuruRepo(pool))
}
