// Package idempotency remembers the outcome of requests carrying an
// Idempotency-Key so a retried request replays instead of running twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

const Header = "Idempotency-Key"

var (
	ErrInFlight = errors.New("a request with this idempotency key is still in progress")
	ErrMismatch = errors.New("idempotency key was already used with a different payload")
)

// Store tracks keys through reserved and completed states.
type Store interface {
	// Begin reserves key for the caller and returns nil, nil. When the key
	// already completed it returns the stored response, and when another
	// request holds it, ErrInFlight. A key reserved under another
	// fingerprint yields ErrMismatch.
	Begin(ctx context.Context, key, fingerprint string) ([]byte, error)
	// Complete stores the response of a reserved key.
	Complete(ctx context.Context, key string, body []byte) error
	// Release drops a reservation so a failed request can be retried.
	Release(ctx context.Context, key string) error
}

// Key scopes a client supplied key to one account and operation.
func Key(operation, account, key string) string {
	return fmt.Sprintf("%s:%s:%s", operation, account, key)
}

// Fingerprint hashes the JSON encoding of a request payload.
func Fingerprint(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

type entry struct {
	fingerprint string
	done        bool
	body        []byte
	expires     time.Time
}

// Memory is an in-process Store for single instance deployments and tests.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *Memory) Begin(ctx context.Context, key, fingerprint string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expires) {
		if e.fingerprint != fingerprint {
			return nil, ErrMismatch
		}
		if !e.done {
			return nil, ErrInFlight
		}
		return e.body, nil
	}

	m.entries[key] = entry{fingerprint: fingerprint, expires: now.Add(m.ttl)}
	m.sweep(now)
	return nil, nil
}

func (m *Memory) Complete(ctx context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[key]
	e.done = true
	e.body = body
	e.expires = m.now().Add(m.ttl)
	m.entries[key] = e
	return nil
}

func (m *Memory) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && !e.done {
		delete(m.entries, key)
	}
	return nil
}

// sweep drops expired entries; callers hold mu.
func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
