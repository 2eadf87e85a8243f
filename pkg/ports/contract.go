package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

// RunSessionStoreContract runs a suite of tests verifying that a
// SessionStore implementation adheres to the interface contract, including
// the channel-uniqueness and optimistic-concurrency rules the engine
// depends on.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	suffix := now.Format("20060102150405.000")

	newSession := func(tag string) *domain.Session {
		return domain.NewSession(
			"contract-"+tag+"-"+suffix,
			"flow-1", 1,
			"+2547000"+tag, "*123#",
			"entry",
			now, 2*time.Minute,
		)
	}

	t.Run("Create and Get", func(t *testing.T) {
		s := newSession("01")
		s.Variables["balance"] = "100"

		require.NoError(t, store.Create(ctx, s))

		loaded, err := store.Get(ctx, s.SessionID)
		require.NoError(t, err)
		assert.Equal(t, s.SessionID, loaded.SessionID)
		assert.Equal(t, domain.StatusActive, loaded.Status)
		assert.Equal(t, "entry", loaded.CurrentNodeID)
		assert.Equal(t, "100", loaded.Variables["balance"])
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "no-such-session-"+suffix)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Channel Uniqueness", func(t *testing.T) {
		first := newSession("02")
		require.NoError(t, store.Create(ctx, first))

		dup := newSession("02")
		dup.SessionID = dup.SessionID + "-dup"
		err := store.Create(ctx, dup)
		assert.ErrorIs(t, err, domain.ErrConflictingActiveSession)
	})

	t.Run("GetByChannel", func(t *testing.T) {
		s := newSession("03")
		require.NoError(t, store.Create(ctx, s))

		loaded, err := store.GetByChannel(ctx, s.PhoneNumber, s.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, s.SessionID, loaded.SessionID)

		_, err = store.GetByChannel(ctx, s.PhoneNumber, "*999#")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Optimistic Save", func(t *testing.T) {
		s := newSession("04")
		require.NoError(t, store.Create(ctx, s))

		a, err := store.Get(ctx, s.SessionID)
		require.NoError(t, err)
		b, err := store.Get(ctx, s.SessionID)
		require.NoError(t, err)

		a.StepCount = 1
		require.NoError(t, store.Save(ctx, a))

		// b still carries the revision it was read at; its save must lose.
		b.StepCount = 9
		err = store.Save(ctx, b)
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)

		loaded, err := store.Get(ctx, s.SessionID)
		require.NoError(t, err)
		assert.Equal(t, 1, loaded.StepCount)
	})

	t.Run("Terminal Save Releases Channel", func(t *testing.T) {
		s := newSession("05")
		require.NoError(t, store.Create(ctx, s))

		loaded, err := store.Get(ctx, s.SessionID)
		require.NoError(t, err)
		loaded.Status = domain.StatusCompleted
		completed := now.Add(time.Second)
		loaded.CompletedAt = &completed
		require.NoError(t, store.Save(ctx, loaded))

		// Closed sessions are retained for audit.
		kept, err := store.Get(ctx, s.SessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, kept.Status)

		// But the channel is free for a new dialog.
		_, err = store.GetByChannel(ctx, s.PhoneNumber, s.ShortCode)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		replacement := newSession("05")
		replacement.SessionID = replacement.SessionID + "-next"
		assert.NoError(t, store.Create(ctx, replacement))
	})

	t.Run("ListExpiring", func(t *testing.T) {
		stale := newSession("06")
		stale.ExpiresAt = now.Add(-time.Minute)
		require.NoError(t, store.Create(ctx, stale))

		fresh := newSession("07")
		fresh.ExpiresAt = now.Add(time.Hour)
		require.NoError(t, store.Create(ctx, fresh))

		ids, err := store.ListExpiring(ctx, now)
		require.NoError(t, err)
		assert.Contains(t, ids, stale.SessionID)
		assert.NotContains(t, ids, fresh.SessionID)
	})

	t.Run("Concurrent Create Single Winner", func(t *testing.T) {
		const attempts = 8
		results := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			go func(i int) {
				s := newSession("08")
				s.SessionID = fmt.Sprintf("%s-%d", s.SessionID, i)
				results <- store.Create(ctx, s)
			}(i)
		}

		var wins, conflicts int
		for i := 0; i < attempts; i++ {
			if err := <-results; err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, domain.ErrConflictingActiveSession)
				conflicts++
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, attempts-1, conflicts)
	})
}
