package keystore

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

type Op string

const (
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// Change is published on every write or delete in the namespace.
type Change struct {
	Key string `json:"key"`
	Op  Op     `json:"op"`
}

func (s *Store) changesChannel() string {
	return fmt.Sprintf("%s:%s", s.namespace, changesSuffix)
}

func (s *Store) publish(ctx context.Context, key string, op Op) {
	payload, err := json.Marshal(Change{Key: key, Op: op})
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.changesChannel(), payload).Err(); err != nil {
		s.logger.Debug("keystore: failed to publish change", zap.String("key", key), zap.Error(err))
	}
}

// Watch streams changes made to the namespace by any writer until ctx is
// done. Delivery is best effort.
func (s *Store) Watch(ctx context.Context) (<-chan Change, error) {
	sub := s.client.Subscribe(ctx, s.changesChannel())
	// Wait for the subscription confirmation so no change is missed after
	// Watch returns.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ch Change
				if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
					s.logger.Debug("keystore: dropped malformed change", zap.Error(err))
					continue
				}
				select {
				case out <- ch:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
