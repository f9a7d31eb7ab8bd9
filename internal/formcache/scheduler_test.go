package formcache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSweep int

func (f fixedSweep) CleanExpiredFormData(context.Context) int { return int(f) }

func TestScheduler_RunOnce(t *testing.T) {
	s, err := NewScheduler("@hourly", func(context.Context) ([]Sweepable, error) {
		return []Sweepable{fixedSweep(2), fixedSweep(0), fixedSweep(3)}, nil
	}, nil)
	require.NoError(t, err)

	removed, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, removed)
}

func TestScheduler_SourceError(t *testing.T) {
	s, err := NewScheduler("*/5 * * * *", func(context.Context) ([]Sweepable, error) {
		return nil, errors.New("redis down")
	}, nil)
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	assert.ErrorContains(t, err, "redis down")
}

func TestScheduler_InvalidSpec(t *testing.T) {
	_, err := NewScheduler("every tuesday", nil, nil)
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := NewScheduler("@every 1h", func(context.Context) ([]Sweepable, error) { return nil, nil }, nil)
	require.NoError(t, err)
	s.Start()
	s.Stop()
}
