package cadence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("not a schedule", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron spec")
}

func TestRunOnce_ReturnsJobError(t *testing.T) {
	boom := errors.New("boom")
	s, err := New("@every 1h", func(context.Context) error { return boom })
	require.NoError(t, err)

	assert.ErrorIs(t, s.RunOnce(context.Background()), boom)
}

func TestStart_RunImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New("@every 1h", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, RunImmediately())
	require.NoError(t, err)

	assert.True(t, s.Next().IsZero())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.Next(), time.Minute)
}

func TestStart_Ticks(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New("@every 1s", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run on tick")
	}
}
