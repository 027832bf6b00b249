package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"paperPatent/api/models"
)

const (
	statusKeyPrefix = "task:status:"
	statusTTL       = 24 * time.Hour
)

// Entry is the last lifecycle state mirrored for a task.
type Entry struct {
	Status    models.TaskStatus
	Error     string
	Filename  string
	UpdatedAt time.Time
}

// StatusCache mirrors task lifecycle into Redis hashes so other processes can
// look a task up without the API server. It satisfies repository.Journal.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client, ttl: statusTTL}
}

func statusKey(taskID string) string {
	return fmt.Sprintf("%s%s", statusKeyPrefix, taskID)
}

func (sc *StatusCache) TaskCreated(ctx context.Context, task models.Task) error {
	return sc.write(ctx, task.ID, map[string]any{
		"status":     string(task.Status),
		"filename":   task.Inputs.OriginalFilename,
		"error":      "",
		"updated_at": task.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (sc *StatusCache) StatusChanged(ctx context.Context, taskID string, status models.TaskStatus, errMsg string) error {
	return sc.write(ctx, taskID, map[string]any{
		"status":     string(status),
		"error":      errMsg,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (sc *StatusCache) write(ctx context.Context, taskID string, fields map[string]any) error {
	key := statusKey(taskID)
	_, err := sc.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, sc.ttl)
		return nil
	})
	return err
}

func (sc *StatusCache) Get(ctx context.Context, taskID string) (*Entry, error) {
	fields, err := sc.client.HGetAll(ctx, statusKey(taskID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, models.ErrTaskNotFound
	}

	entry := &Entry{
		Status:   models.TaskStatus(fields["status"]),
		Error:    fields["error"],
		Filename: fields["filename"],
	}
	if ts, err := time.Parse(time.RFC3339, fields["updated_at"]); err == nil {
		entry.UpdatedAt = ts
	}
	return entry, nil
}

func (sc *StatusCache) Delete(ctx context.Context, taskID string) error {
	return sc.client.Del(ctx, statusKey(taskID)).Err()
}
