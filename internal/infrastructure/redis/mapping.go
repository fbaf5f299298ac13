package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/openprocurement/auction-worker/internal/config"
)

// MappingStore keeps the anonymized-label -> bidder id mapping for a live
// auction so external services can resolve labels while the auction runs.
// The mapping is removed once the auction ends.
type MappingStore struct {
	client *redis.Client
	prefix string
}

func NewMappingStore(cfg *config.WorkerConfig) *MappingStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return &MappingStore{client: client, prefix: cfg.Redis.MappingPrefix}
}

func (s *MappingStore) key(auctionID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, auctionID)
}

func (s *MappingStore) Set(ctx context.Context, auctionID string, mapping map[string]string) error {
	if len(mapping) == 0 {
		return nil
	}
	fields := make(map[string]any, len(mapping))
	for k, v := range mapping {
		fields[k] = v
	}
	if err := s.client.HSet(ctx, s.key(auctionID), fields).Err(); err != nil {
		return fmt.Errorf("failed to store bidder mapping: %w", err)
	}
	return nil
}

func (s *MappingStore) Delete(ctx context.Context, auctionID string) error {
	if err := s.client.Del(ctx, s.key(auctionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete bidder mapping: %w", err)
	}
	return nil
}

func (s *MappingStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *MappingStore) Close() error {
	return s.client.Close()
}
