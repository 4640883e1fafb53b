package controller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTasks_deliver(t *testing.T) {
	tasks := NewTasks(t.Context())
	defer tasks.Close()

	got := make(chan int, 1)
	Go(tasks, func(ctx context.Context) (int, error) {
		return 42, nil
	}, func(v int, err error) {
		assert.NoError(t, err)
		got <- v
	})

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("result was not delivered")
	}
}

func TestTasks_dropsResultsAfterClose(t *testing.T) {
	tasks := NewTasks(t.Context())

	started := make(chan struct{})
	var applied atomic.Bool
	Go(tasks, func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "late", nil
	}, func(string, error) {
		applied.Store(true)
	})

	<-started
	tasks.Close()
	assert.False(t, applied.Load(), "a closed screen must not be updated")
	assert.ErrorIs(t, tasks.Context().Err(), context.Canceled)
}

func TestTasks_spawnAfterCloseIsNoop(t *testing.T) {
	tasks := NewTasks(t.Context())
	tasks.Close()

	var ran atomic.Bool
	tasks.Spawn(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	tasks.Close()

	assert.False(t, ran.Load())
	assert.False(t, tasks.Deliver(func() { ran.Store(true) }))
	assert.False(t, ran.Load())
}

func TestTasks_closeWaitsForWork(t *testing.T) {
	tasks := NewTasks(t.Context())

	var finished atomic.Bool
	tasks.Spawn(func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	})

	tasks.Close()
	assert.True(t, finished.Load())
}

func TestTasks_recoversPanics(t *testing.T) {
	tasks := NewTasks(t.Context())
	tasks.Spawn(func(ctx context.Context) error {
		panic("boom")
	})
	tasks.Close()
}

func TestTasks_applyMaySpawn(t *testing.T) {
	tasks := NewTasks(t.Context())
	defer tasks.Close()

	done := make(chan struct{})
	Go(tasks, func(ctx context.Context) (int, error) {
		return 1, errors.New("first failed")
	}, func(_ int, err error) {
		require.Error(t, err)
		tasks.Spawn(func(ctx context.Context) error {
			close(done)
			return nil
		})
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retry was not spawned")
	}
}
