package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCursorCompare(t *testing.T) {
	a := NewCursor(baseTime, 10)

	assert.Equal(t, 0, a.Compare(NewCursor(baseTime, 10)))
	assert.True(t, NewCursor(baseTime, 11).After(a))
	assert.False(t, NewCursor(baseTime, 9).After(a))
	// Timestamp wins over uid
	assert.True(t, NewCursor(baseTime.Add(time.Second), 1).After(a))
	assert.False(t, NewCursor(baseTime.Add(-time.Second), 99).After(a))
}

func TestNewCursorNormalisesToUTC(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	c := NewCursor(baseTime.In(moscow), 7)

	assert.Equal(t, time.UTC, c.Timestamp.Location())
	assert.True(t, c.Timestamp.Equal(baseTime))
	assert.Equal(t, "2025-03-14 09:30 UTC (uid=7)", c.String())
}

func TestCursorServiceLoadsStoredCursor(t *testing.T) {
	stored := NewCursor(baseTime, 42)
	svc := NewCursorService(context.Background(), &fakeStore{cursor: &stored}, zaptest.NewLogger(t))

	got, ok := svc.Get()
	require.True(t, ok)
	assert.Equal(t, stored, got)
}

func TestCursorServiceLoadFailureStartsUnset(t *testing.T) {
	svc := NewCursorService(context.Background(), &fakeStore{loadErr: errors.New("corrupt state")}, zaptest.NewLogger(t))

	_, ok := svc.Get()
	assert.False(t, ok)
}

func TestCursorServiceSetIsMonotonic(t *testing.T) {
	store := &fakeStore{}
	svc := NewCursorService(context.Background(), store, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, NewCursor(baseTime, 5)))
	require.NoError(t, svc.Set(ctx, NewCursor(baseTime, 4)))
	require.NoError(t, svc.Set(ctx, NewCursor(baseTime, 5)))
	require.NoError(t, svc.Set(ctx, NewCursor(baseTime.Add(time.Minute), 1)))

	got, _ := svc.Get()
	assert.Equal(t, NewCursor(baseTime.Add(time.Minute), 1), got)
	assert.Equal(t, []Cursor{NewCursor(baseTime, 5), NewCursor(baseTime.Add(time.Minute), 1)}, store.saved())
}

func TestCursorServiceSetPersistFailureKeepsMemory(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("read-only file system")}
	svc := NewCursorService(context.Background(), store, zaptest.NewLogger(t))

	err := svc.Set(context.Background(), NewCursor(baseTime, 3))
	require.Error(t, err)

	got, ok := svc.Get()
	require.True(t, ok)
	assert.Equal(t, uint32(3), got.UID)
}

func TestCursorServiceInitIfUnset(t *testing.T) {
	ctx := context.Background()

	t.Run("sets when unset", func(t *testing.T) {
		store := &fakeStore{}
		svc := NewCursorService(ctx, store, zaptest.NewLogger(t))

		ok, err := svc.InitIfUnset(ctx, func() (*Cursor, error) {
			c := NewCursor(baseTime, 8)
			return &c, nil
		})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, store.saved(), 1)
	})

	t.Run("skips when already set", func(t *testing.T) {
		stored := NewCursor(baseTime, 1)
		svc := NewCursorService(ctx, &fakeStore{cursor: &stored}, zaptest.NewLogger(t))

		called := false
		ok, err := svc.InitIfUnset(ctx, func() (*Cursor, error) {
			called = true
			return nil, nil
		})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, called)
	})

	t.Run("empty mailbox leaves cursor unset", func(t *testing.T) {
		svc := NewCursorService(ctx, &fakeStore{}, zaptest.NewLogger(t))

		ok, err := svc.InitIfUnset(ctx, func() (*Cursor, error) { return nil, nil })
		require.NoError(t, err)
		assert.False(t, ok)
		_, set := svc.Get()
		assert.False(t, set)
	})

	t.Run("init error is returned", func(t *testing.T) {
		svc := NewCursorService(ctx, &fakeStore{}, zaptest.NewLogger(t))

		_, err := svc.InitIfUnset(ctx, func() (*Cursor, error) { return nil, errors.New("search failed") })
		assert.EqualError(t, err, "search failed")
	})

	t.Run("persist failure still initialises", func(t *testing.T) {
		svc := NewCursorService(ctx, &fakeStore{saveErr: errors.New("disk full")}, zaptest.NewLogger(t))

		ok, err := svc.InitIfUnset(ctx, func() (*Cursor, error) {
			c := NewCursor(baseTime, 2)
			return &c, nil
		})
		require.NoError(t, err)
		assert.True(t, ok)
		_, set := svc.Get()
		assert.True(t, set)
	})
}
