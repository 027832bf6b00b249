package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperPatent/api/database"
	"paperPatent/api/models"
)

func TestStatusKey(t *testing.T) {
	assert.Equal(t, "task:status:abc", statusKey("abc"))
}

func TestStatusCache_Lifecycle(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping test: TEST_REDIS_ADDR not set")
	}

	client, err := database.ConnectCache(addr)
	require.NoError(t, err)
	defer client.Close()

	sc := NewStatusCache(client)
	ctx := context.Background()
	id := uuid.New().String()
	defer sc.Delete(ctx, id)

	_, err = sc.Get(ctx, id)
	assert.True(t, errors.Is(err, models.ErrTaskNotFound))

	require.NoError(t, sc.TaskCreated(ctx, models.Task{
		ID:        id,
		Status:    models.StatusQueued,
		CreatedAt: time.Now(),
		Inputs:    models.Inputs{OriginalFilename: "paper.pdf"},
	}))
	require.NoError(t, sc.StatusChanged(ctx, id, models.StatusFailed, "boom"))

	entry, err := sc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, entry.Status)
	assert.Equal(t, "boom", entry.Error)
	assert.Equal(t, "paper.pdf", entry.Filename)
	assert.False(t, entry.UpdatedAt.IsZero())

	ttl, err := client.TTL(ctx, statusKey(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Hour)
}
