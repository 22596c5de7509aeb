package snapshot

import (
	"context"
	"fmt"
	"time"

	"patron-sync/internal/config"
	"patron-sync/internal/logger"
	"patron-sync/internal/prox"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// Store keeps the badge map of the last successful update run in a Redis
// hash keyed by universal ID.
type Store struct {
	client *redis.Client
	key    string
	log    zerolog.Logger
}

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return rdb, nil
}

func NewStore(cfg *config.Config, client *redis.Client) *Store {
	return &Store{
		client: client,
		key:    cfg.Redis.SnapshotKey,
		log:    logger.Get(),
	}
}

// Load returns the stored map. ok is false when no snapshot exists yet.
func (s *Store) Load(ctx context.Context) (prox.IdentifierMap, bool, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to load badge snapshot: %w", err)
	}
	if len(values) == 0 {
		return nil, false, nil
	}

	s.log.Debug().Int("entries", len(values)).Str("key", s.key).Msg("Loaded badge snapshot")
	return prox.IdentifierMap(values), true, nil
}

// Save replaces the snapshot atomically.
func (s *Store) Save(ctx context.Context, badges prox.IdentifierMap) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key)
	if len(badges) > 0 {
		fields := make(map[string]interface{}, len(badges))
		for id, badge := range badges {
			fields[id] = badge
		}
		pipe.HSet(ctx, s.key, fields)
		pipe.HSet(ctx, s.key+":meta", "saved_at", time.Now().UTC().Format(time.RFC3339))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save badge snapshot: %w", err)
	}

	s.log.Info().Int("entries", len(badges)).Str("key", s.key).Msg("Saved badge snapshot")
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
