package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/quantfix/pyra/position"
)

// Store persists position snapshots keyed by instrument. The host invokes
// it around engine lifecycle events; the engine itself never touches it
// mid-processing.
type Store interface {
	Save(ctx context.Context, snap position.Snapshot) error
	Load(ctx context.Context, instrument string) (position.Snapshot, bool, error)
	Delete(ctx context.Context, instrument string) error
}

// Memory is the in-process Store used in tests and single-shot replays.
type Memory struct {
	mu    sync.RWMutex
	snaps map[string]position.Snapshot
}

func NewMemory() *Memory {
	return &Memory{snaps: make(map[string]position.Snapshot)}
}

func (m *Memory) Save(_ context.Context, snap position.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.Instrument] = snap
	return nil
}

func (m *Memory) Load(_ context.Context, instrument string) (position.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[instrument]
	return snap, ok, nil
}

func (m *Memory) Delete(_ context.Context, instrument string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, instrument)
	return nil
}

// Redis persists snapshots as JSON values under a configurable key prefix.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "pyra:position"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(instrument string) string {
	return fmt.Sprintf("%s:%s", r.prefix, instrument)
}

func (r *Redis) Save(ctx context.Context, snap position.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot for %s: %w", snap.Instrument, err)
	}
	if err := r.client.Set(ctx, r.key(snap.Instrument), raw, 0).Err(); err != nil {
		return fmt.Errorf("store: save %s: %w", snap.Instrument, err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, instrument string) (position.Snapshot, bool, error) {
	raw, err := r.client.Get(ctx, r.key(instrument)).Bytes()
	if err == redis.Nil {
		return position.Snapshot{}, false, nil
	}
	if err != nil {
		return position.Snapshot{}, false, fmt.Errorf("store: load %s: %w", instrument, err)
	}
	var snap position.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return position.Snapshot{}, false, fmt.Errorf("store: decode snapshot for %s: %w", instrument, err)
	}
	return snap, true, nil
}

func (r *Redis) Delete(ctx context.Context, instrument string) error {
	if err := r.client.Del(ctx, r.key(instrument)).Err(); err != nil {
		return fmt.Errorf("store: delete %s: %w", instrument, err)
	}
	return nil
}
