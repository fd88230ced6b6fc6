package cache

import (
	"context"
	"encoding/json"
	"time"
)

// GetJSON reads key and decodes it into T. An undecodable value is a miss.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool) {
	var v T
	b, ok := s.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(b, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// SetJSON encodes v and writes it with ttl. Encoding failures drop the write.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.Set(ctx, key, b, ttl)
}
