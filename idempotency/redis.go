package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingPrefix = "pending:"
	donePrefix    = "done:"
)

// Redis shares keys between instances. A reservation is a SETNX of
// "pending:<fingerprint>", completion overwrites it with
// "done:<fingerprint>:<response>".
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(k string) string {
	return r.prefix + ":idem:" + k
}

func (r *Redis) Begin(ctx context.Context, key, fingerprint string) ([]byte, error) {
	k := r.key(key)

	for i := 0; i < 2; i++ {
		ok, err := r.client.SetNX(ctx, k, pendingPrefix+fingerprint, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("reserving idempotency key: %w", err)
		}
		if ok {
			return nil, nil
		}

		val, err := r.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			// Expired between the two calls, try to reserve again.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading idempotency key: %w", err)
		}

		if fp, ok := strings.CutPrefix(val, pendingPrefix); ok {
			if fp != fingerprint {
				return nil, ErrMismatch
			}
			return nil, ErrInFlight
		}

		rest := strings.TrimPrefix(val, donePrefix)
		fp, body, _ := strings.Cut(rest, ":")
		if fp != fingerprint {
			return nil, ErrMismatch
		}
		return []byte(body), nil
	}

	return nil, ErrInFlight
}

// Complete keeps the fingerprint of the reservation next to the response.
func (r *Redis) Complete(ctx context.Context, key string, body []byte) error {
	const script = `
local v = redis.call("GET", KEYS[1])
if not v or string.sub(v, 1, 8) ~= "pending:" then return 0 end
redis.call("SET", KEYS[1], "done:" .. string.sub(v, 9) .. ":" .. ARGV[1], "PX", ARGV[2])
return 1`

	err := r.client.Eval(ctx, script, []string{r.key(key)}, string(body), r.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("storing idempotent response: %w", err)
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	// Only a pending reservation is dropped, a completed response stays.
	const script = `
local v = redis.call("GET", KEYS[1])
if v and string.sub(v, 1, 8) == "pending:" then return redis.call("DEL", KEYS[1]) end
return 0`

	if err := r.client.Eval(ctx, script, []string{r.key(key)}).Err(); err != nil {
		return fmt.Errorf("releasing idempotency key: %w", err)
	}
	return nil
}
