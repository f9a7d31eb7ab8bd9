package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const maxUpdateAttempts = 10

var ErrUpdateConflict = errors.New("keystore: too many concurrent writers")

// Update is an optimistic read-modify-write of key. fn gets the current value,
// or def when the entry is absent, malformed or expired, and returns the value
// to store and whether to store it. If another writer, in this process or
// another, changes key before the write, fn runs again on the fresh value.
func Update[T any](ctx context.Context, s *Store, key string, def T, fn func(T) (T, bool)) bool {
	full := s.fullKey(key)

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		wrote := false
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := decodeTx(ctx, s, tx, key, def)
			if err != nil {
				return err
			}

			next, write := fn(cur)
			if !write {
				return nil
			}
			payload, err := s.encode(next)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, full, payload, 0)
				return nil
			})
			wrote = err == nil
			return err
		}, full)

		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("keystore: update raced, retrying", zap.String("key", key), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.logger.Warn("keystore: failed to update", zap.String("key", key), zap.Error(err))
			return false
		}
		if wrote {
			s.publish(ctx, key, OpSet)
		}
		return true
	}

	s.logger.Warn("keystore: failed to update", zap.String("key", key), zap.Error(ErrUpdateConflict))
	return false
}

func decodeTx[T any](ctx context.Context, s *Store, tx *redis.Tx, key string, def T) (T, error) {
	payload, err := tx.Get(ctx, s.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Expired(s.now()) {
		return def, nil
	}
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		s.logger.Warn("keystore: failed to decode value", zap.String("key", key), zap.Error(err))
		return def, nil
	}
	return out, nil
}

// encode wraps value in a fresh envelope without expiry.
func (s *Store) encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	env := Envelope{
		Data:      data,
		Timestamp: s.now().UnixMilli(),
		Version:   Version,
	}
	return json.Marshal(&env)
}
