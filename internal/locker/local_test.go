package locker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	l := NewLocalLocker()

	const n = 50
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), "technician:abc", func(context.Context) error {
				// Unsynchronized on purpose: the lock is the only guard.
				counter++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, n, counter)
}

func TestLocalLockerKeysAreIndependent(t *testing.T) {
	l := NewLocalLocker()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = l.WithLock(context.Background(), "a", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	// A different key must not wait on "a".
	err := l.WithLock(context.Background(), "b", func(context.Context) error { return nil })
	require.NoError(t, err)
	close(release)
}

func TestLocalLockerPropagatesError(t *testing.T) {
	l := NewLocalLocker()
	want := errors.New("boom")
	err := l.WithLock(context.Background(), "k", func(context.Context) error { return want })
	require.ErrorIs(t, err, want)
}

func TestLocalLockerHonorsCancelledContext(t *testing.T) {
	l := NewLocalLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := l.WithLock(ctx, "k", func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
