package cache

import (
	"context"
	"fmt"

	"github.com/analyticket/analyticket/internal/codec"
)

// GetValue decodes the fresh entry for key into a T.
func GetValue[T any](ctx context.Context, s *Service, key string) (T, bool, error) {
	var v T
	e, ok := s.Get(ctx, key)
	if !ok {
		return v, false, nil
	}
	if err := codec.Unmarshal(e.Payload, &v); err != nil {
		return v, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return v, true, nil
}

// SetValue encodes v and stores it under key.
func SetValue[T any](ctx context.Context, s *Service, key string, v T) error {
	b, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, b)
}
