package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis, one key per stored variant. Expiry is
// delegated to Redis TTLs, so expired entries vanish on their own.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// record is the JSON shape persisted per key.
type record struct {
	RequestTime  time.Time `json:"request_time"`
	ResponseTime time.Time `json:"response_time"`
	Expires      time.Time `json:"expires"`
	Bytes        []byte    `json:"bytes"`
}

func (r *RedisStore) All(prefix string) ([]Entry, error) {
	ctx := context.Background()
	var entries []Entry
	iter := r.client.Scan(ctx, 0, escapeMatch(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// expired between scan and get
			continue
		}
		if err != nil {
			return entries, err
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			// unreadable record, drop it
			r.client.Del(ctx, key)
			continue
		}
		entries = append(entries, Entry{
			Key:          key,
			RequestTime:  rec.RequestTime,
			ResponseTime: rec.ResponseTime,
			Expires:      rec.Expires,
			Bytes:        rec.Bytes,
		})
	}
	return entries, iter.Err()
}

func (r *RedisStore) Put(entry Entry) error {
	ctx := context.Background()
	data, err := json.Marshal(record{
		RequestTime:  entry.RequestTime,
		ResponseTime: entry.ResponseTime,
		Expires:      entry.Expires,
		Bytes:        entry.Bytes,
	})
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !entry.Expires.IsZero() {
		ttl = time.Until(entry.Expires)
		if ttl <= 0 {
			// already expired, nothing to store
			return nil
		}
	}
	return r.client.Set(ctx, entry.Key, data, ttl).Err()
}

func (r *RedisStore) Purge(key string) error {
	return r.client.Del(context.Background(), key).Err()
}

// escapeMatch escapes glob metacharacters for the SCAN MATCH pattern.
// Cache keys contain URIs, which may include ? or [.
func escapeMatch(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
