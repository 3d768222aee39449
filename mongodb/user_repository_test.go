package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go.pilab.hu/sessiongate/domain"
)

// testDB connects to a throwaway database, or skips when MONGO_TEST_URI
// is not set.
func testDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set, skipping MongoDB integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("sessiongate_test")
	t.Cleanup(func() { _ = db.Collection(UsersCollection).Drop(context.Background()) })
	return db
}

func TestUserRepositoryLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	repo, err := NewUserRepository(ctx, db)
	require.NoError(t, err)

	user := &domain.User{ID: "subj-1", Email: "a@x.com", DisplayName: "Alice"}
	require.NoError(t, repo.Create(ctx, user))
	assert.False(t, user.CreatedAt.IsZero())

	got, err := repo.FindByID(ctx, "subj-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	// Second insert on the same subject id is the storage-level race
	// loser; it must map to ErrUserExists.
	err = repo.Create(ctx, &domain.User{ID: "subj-1", Email: "b@x.com"})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	require.NoError(t, repo.Delete(ctx, "subj-1"))
	_, err = repo.FindByID(ctx, "subj-1")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "subj-1"), domain.ErrUserNotFound)
}
