// Package store keeps the state of the flows started through the host so the
// browser shim can poll for callbacks it missed.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"a55pay-sdk/types"
)

var ErrFlowNotFound = errors.New("flow not found")

// Flow states.
const (
	StateRunning   = "running"
	StateReady     = "ready"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
	StateClosed    = "closed"
)

// DefaultTTL keeps finished flows around long enough for a reload.
const DefaultTTL = 30 * time.Minute

type ErrorRecord struct {
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

type FlowRecord struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Flow      string        `json:"flow"`
	State     string        `json:"state"`
	Loading   bool          `json:"loading"`
	Result    *types.Result `json:"result,omitempty"`
	Error     *ErrorRecord  `json:"error,omitempty"`
	Events    []types.Event `json:"events,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Terminal reports whether the flow already got its final callback.
func (r *FlowRecord) Terminal() bool {
	switch r.State {
	case StateSucceeded, StateFailed, StateClosed:
		return true
	}
	return false
}

type FlowStore interface {
	SaveFlow(ctx context.Context, rec *FlowRecord) error
	GetFlow(ctx context.Context, id string) (*FlowRecord, error)
}

// RedisStore keeps records as JSON strings with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: "a55pay:flow:", ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) SaveFlow(ctx context.Context, rec *FlowRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("flow record without id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal flow %s: %v", rec.ID, err)
	}
	if err := s.client.Set(ctx, s.key(rec.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save flow %s: %v", rec.ID, err)
	}
	return nil
}

func (s *RedisStore) GetFlow(ctx context.Context, id string) (*FlowRecord, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrFlowNotFound
		}
		return nil, fmt.Errorf("failed to load flow %s: %v", id, err)
	}
	var rec FlowRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow %s: %v", id, err)
	}
	return &rec, nil
}

// MemoryStore is used when Redis is not configured and in tests.
type MemoryStore struct {
	mu    sync.Mutex
	flows map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flows: map[string][]byte{}}
}

func (s *MemoryStore) SaveFlow(ctx context.Context, rec *FlowRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("flow record without id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal flow %s: %v", rec.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[rec.ID] = data
	return nil
}

func (s *MemoryStore) GetFlow(ctx context.Context, id string) (*FlowRecord, error) {
	s.mu.Lock()
	data, ok := s.flows[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrFlowNotFound
	}
	var rec FlowRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow %s: %v", id, err)
	}
	return &rec, nil
}
