// Package store publishes the router's current boundaries to Redis so
// out-of-process consumers (dashboards, sizing jobs) can read the
// routable ranges without querying the service.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/solana-venue-bounds/internal/venue"
)

const (
	indexKey    = "bounds:index"
	valuePrefix = "bounds:"
)

var ErrNotFound = errors.New("boundary not found")

// BoundaryRecord is the persisted form of one venue-direction
// boundary. Slot identifies the snapshot it was computed against;
// consumers must treat a record from an older slot as superseded.
type BoundaryRecord struct {
	Market       string    `json:"market"`
	Direction    string    `json:"direction"`
	MinSafeInput uint64    `json:"min_safe_input"`
	MaxSafeInput uint64    `json:"max_safe_input"`
	Slot         uint64    `json:"slot"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Store struct {
	client redis.Cmdable
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client}, nil
}

// PublishBoundary upserts the record for one market/direction and
// keeps the index set in sync, atomically.
func (s *Store) PublishBoundary(ctx context.Context, market string, b venue.Boundary, slot uint64) error {
	rec := &BoundaryRecord{
		Market:       market,
		Direction:    b.Direction.String(),
		MinSafeInput: b.MinSafeInput,
		MaxSafeInput: b.MaxSafeInput,
		Slot:         slot,
		UpdatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal boundary: %w", err)
	}

	key := boundaryKey(market, b.Direction)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish boundary: %w", err)
	}

	return nil
}

// Boundary fetches the current record for one market/direction.
func (s *Store) Boundary(ctx context.Context, market string, direction venue.Direction) (*BoundaryRecord, error) {
	val, err := s.client.Get(ctx, boundaryKey(market, direction)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get boundary: %w", err)
	}

	var rec BoundaryRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal boundary: %w", err)
	}
	return &rec, nil
}

// List returns every published boundary record.
func (s *Store) List(ctx context.Context) ([]*BoundaryRecord, error) {
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list boundary index: %w", err)
	}
	if len(keys) == 0 {
		return []*BoundaryRecord{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget boundaries: %w", err)
	}

	out := make([]*BoundaryRecord, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec BoundaryRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}

	return out, nil
}

// Delete removes one market/direction record.
func (s *Store) Delete(ctx context.Context, market string, direction venue.Direction) error {
	key := boundaryKey(market, direction)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete boundary: %w", err)
	}
	return nil
}

func boundaryKey(market string, direction venue.Direction) string {
	return valuePrefix + market + ":" + direction.String()
}
