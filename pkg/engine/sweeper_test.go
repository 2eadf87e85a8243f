package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katlego-io/ussdflow/pkg/domain"
	"github.com/katlego-io/ussdflow/pkg/engine"
)

func TestSweep(t *testing.T) {
	env := newTestEnv(t, []*domain.Flow{bankingFlow()}, engine.WithSessionTimeout(60*time.Second))
	ctx := context.Background()

	stale1, err := env.engine.CreateSession(ctx, "banking", "+254711000001", "*123#")
	require.NoError(t, err)
	stale2, err := env.engine.CreateSession(ctx, "banking", "+254711000002", "*123#")
	require.NoError(t, err)

	env.clock.Advance(45 * time.Second)
	fresh, err := env.engine.CreateSession(ctx, "banking", "+254711000003", "*123#")
	require.NoError(t, err)

	// 61s past the first two deadlines, 45s into the third's window.
	env.clock.Advance(16 * time.Second)

	count, err := env.engine.Sweep(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, id := range []string{stale1.Session.SessionID, stale2.Session.SessionID} {
		session, err := env.sessions.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusExpired, session.Status)
		assert.NotNil(t, session.CompletedAt)
	}

	session, err := env.sessions.Get(ctx, fresh.Session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, session.Status)

	// Expired channels are released for new dialogs.
	_, err = env.engine.CreateSession(ctx, "banking", "+254711000001", "*123#")
	assert.NoError(t, err)
}

func TestSweep_Idempotent(t *testing.T) {
	env := newTestEnv(t, []*domain.Flow{bankingFlow()}, engine.WithSessionTimeout(60*time.Second))
	ctx := context.Background()

	_, err := env.engine.CreateSession(ctx, "banking", "+254711000004", "*123#")
	require.NoError(t, err)

	env.clock.Advance(61 * time.Second)

	count, err := env.engine.Sweep(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = env.engine.Sweep(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSweep_EmitsExpiryEvents(t *testing.T) {
	var ended []domain.EventType
	hooks := domain.LifecycleHooks{
		OnSessionEnd: func(_ context.Context, e *domain.SessionEvent) {
			ended = append(ended, e.Type)
		},
	}
	env := newTestEnv(t, []*domain.Flow{bankingFlow()},
		engine.WithSessionTimeout(60*time.Second),
		engine.WithLifecycleHooks(hooks),
	)
	ctx := context.Background()

	_, err := env.engine.CreateSession(ctx, "banking", "+254711000005", "*123#")
	require.NoError(t, err)
	env.clock.Advance(61 * time.Second)

	_, err = env.engine.Sweep(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventSessionExpired}, ended)
}

func TestSweeper_Run(t *testing.T) {
	env := newTestEnv(t, []*domain.Flow{bankingFlow()}, engine.WithSessionTimeout(60*time.Second))
	ctx := context.Background()

	created, err := env.engine.CreateSession(ctx, "banking", "+254711000006", "*123#")
	require.NoError(t, err)
	env.clock.Advance(61 * time.Second)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.NewSweeper(env.engine, 5*time.Millisecond, nil).Run(runCtx)
	}()

	require.Eventually(t, func() bool {
		session, err := env.sessions.Get(ctx, created.Session.SessionID)
		return err == nil && session.Status == domain.StatusExpired
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}
