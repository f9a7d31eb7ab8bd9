package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	scanBatch     = 200
	changesSuffix = "changes"
)

// Store is a namespaced key-value store over Redis. Every value is wrapped in
// an Envelope. Failures are logged and reported as false or a default value,
// never as errors.
type Store struct {
	client    *redis.Client
	namespace string
	logger    *zap.Logger
	now       func() time.Time
}

func New(client *redis.Client, namespace string, opts ...Option) *Store {
	s := &Store{
		client:    client,
		namespace: strings.TrimSuffix(namespace, ":"),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("namespace", s.namespace))
	return s
}

func (s *Store) Namespace() string {
	return s.namespace
}

// Now is the store clock; envelope timestamps and expiry checks use it.
func (s *Store) Now() time.Time {
	return s.now()
}

// Save wraps value in an envelope and writes it under key.
func (s *Store) Save(ctx context.Context, key string, value any, opts ...SaveOption) bool {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("keystore: failed to encode value", zap.String("key", key), zap.Error(err))
		return false
	}

	now := s.now()
	env := Envelope{
		Data:      data,
		Timestamp: now.UnixMilli(),
		Version:   Version,
	}
	switch {
	case o.expiry != nil:
		env.Expiry = millis(*o.expiry)
	case o.ttl > 0:
		env.Expiry = millis(now.Add(o.ttl))
	}

	if err := s.write(ctx, key, &env); err != nil {
		s.logger.Warn("keystore: failed to save", zap.String("key", key), zap.Error(err))
		return false
	}

	s.logger.Debug("keystore: saved", zap.String("key", key), zap.Int("bytes", len(data)))
	return true
}

// PutRaw writes an envelope verbatim, keeping its timestamp and version.
func (s *Store) PutRaw(ctx context.Context, key string, env *Envelope) bool {
	if err := s.write(ctx, key, env); err != nil {
		s.logger.Warn("keystore: failed to put raw entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Store) write(ctx context.Context, key string, env *Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	// Redis reclaims the entry on its own once the envelope expires; reads
	// still check the envelope so a clock skew never resurrects a value.
	var ttl time.Duration
	if env.Expiry != nil {
		ttl = time.UnixMilli(*env.Expiry).Sub(s.now())
		if ttl < 0 {
			ttl = 0
		}
	}

	if err := s.client.Set(ctx, s.fullKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	s.publish(ctx, key, OpSet)
	return nil
}

// Raw returns the envelope stored under key. Expired entries are deleted and
// reported as absent.
func (s *Store) Raw(ctx context.Context, key string) (*Envelope, bool) {
	payload, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("keystore: failed to read", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.logger.Warn("keystore: malformed entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	if env.Expired(s.now()) {
		s.logger.Debug("keystore: entry expired", zap.String("key", key))
		s.Remove(ctx, key)
		return nil, false
	}

	return &env, true
}

// LoadInto decodes the value under key into dst and reports whether it did.
func (s *Store) LoadInto(ctx context.Context, key string, dst any) bool {
	env, ok := s.Raw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		s.logger.Warn("keystore: failed to decode value", zap.String("key", key), zap.Error(err))
		return false
	}
	s.logger.Debug("keystore: loaded", zap.String("key", key))
	return true
}

// Load returns the value stored under key, or def when the entry is absent,
// malformed or expired.
func Load[T any](ctx context.Context, s *Store, key string, def T) T {
	var out T
	if !s.LoadInto(ctx, key, &out) {
		return def
	}
	return out
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.fullKey(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		s.logger.Warn("keystore: failed to remove", zap.Strings("keys", keys), zap.Error(err))
		return
	}
	for _, k := range keys {
		s.publish(ctx, k, OpRemove)
	}
}

func (s *Store) Exists(ctx context.Context, key string) bool {
	_, ok := s.Raw(ctx, key)
	return ok
}

// Keys lists every key in the namespace, without the namespace prefix.
func (s *Store) Keys(ctx context.Context) []string {
	prefix := s.fullKey("")
	var (
		cursor uint64
		out    []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			s.logger.Warn("keystore: failed to scan keys", zap.Error(err))
			return out
		}
		for _, k := range batch {
			out = append(out, strings.TrimPrefix(k, prefix))
		}
		if next == 0 {
			return out
		}
		cursor = next
	}
}

func (s *Store) fullKey(key string) string {
	return fmt.Sprintf("%s:%s", s.namespace, key)
}
