package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/learnware/session-gateway/internal/models"
)

// checkpointTTL keeps abandoned checkpoints from living forever. It is
// refreshed on every save, so an attempt stays resumable as long as the
// learner keeps working.
const checkpointTTL = 24 * time.Hour

// Checkpoint is the serialized state of one in-flight attempt, written to
// Redis after every mutating operation. Reloading a checkpoint after a
// gateway restart or browser reload rebuilds the controller exactly where
// the learner left off.
type Checkpoint struct {
	LearnerID  string               `json:"learner_id"`
	AttemptID  uint                 `json:"attempt_id"`
	Assessment models.Assessment    `json:"assessment"`
	Status     models.AttemptStatus `json:"status"`
	StartedAt  time.Time            `json:"started_at"`
	Deadline   *time.Time           `json:"deadline,omitempty"`
	Cursor     int                  `json:"cursor"`
	Answers    []models.Answer      `json:"answers"`
	Flags      []uint               `json:"flags"`
}

// CheckpointStore persists checkpoints keyed by learner. One learner has at
// most one in-flight attempt, so the learner ID is the full key.
type CheckpointStore interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context, learnerID string) (*Checkpoint, error)
	Delete(ctx context.Context, learnerID string) error
}

// ===== REDIS IMPLEMENTATION =====

type redisCheckpointStore struct {
	client *redis.Client
}

func NewRedisCheckpointStore(client *redis.Client) CheckpointStore {
	return &redisCheckpointStore{client: client}
}

func checkpointKey(learnerID string) string {
	return fmt.Sprintf("session:checkpoint:%s", learnerID)
}

func (s *redisCheckpointStore) Save(ctx context.Context, cp *Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, checkpointKey(cp.LearnerID), data, checkpointTTL).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *redisCheckpointStore) Load(ctx context.Context, learnerID string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, checkpointKey(learnerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func (s *redisCheckpointStore) Delete(ctx context.Context, learnerID string) error {
	if err := s.client.Del(ctx, checkpointKey(learnerID)).Err(); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
