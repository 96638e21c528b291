package reconnect

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port/mem"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/relay"
)

func fastOpts() Options {
	return Options{
		Backoff:    5 * time.Millisecond,
		MaxBackoff: 20 * time.Millisecond,
		Jitter:     time.Millisecond,
	}
}

func TestRedialerFlushesBacklogAndSurvivesPortLoss(t *testing.T) {
	hub := mem.NewHub()
	l, err := hub.Listen("bridge")
	require.NoError(t, err)
	defer l.Close()

	m := relay.New(relay.Options{})
	m.SendMessage(protocol.TypeDebug, "hello")

	var connects atomic.Int64
	opts := fastOpts()
	opts.OnConnect = func(port.Port) { connects.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(m, hub.Dialer("bridge"), opts).Run(ctx) }()

	collect := func(sink *[]any, mu *sync.Mutex) func(protocol.Message) {
		return func(msg protocol.Message) {
			mu.Lock()
			*sink = append(*sink, msg.Payload)
			mu.Unlock()
		}
	}

	srv, err := l.Accept(ctx)
	require.NoError(t, err)
	var mu sync.Mutex
	var got []any
	require.NoError(t, srv.OnMessage(collect(&got, &mu)))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "hello"
	}, time.Second, 2*time.Millisecond)

	// kill the server end; the redialer reconnects and later traffic
	// flows through the replacement port
	require.NoError(t, srv.Close())
	m.SendMessage(protocol.TypeDebug, "again")

	srv2, err := l.Accept(ctx)
	require.NoError(t, err)
	var got2 []any
	require.NoError(t, srv2.OnMessage(collect(&got2, &mu)))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got2) == 1 && got2[0] == "again"
	}, time.Second, 2*time.Millisecond)

	assert.GreaterOrEqual(t, connects.Load(), int64(2))
	assert.True(t, m.Status().Connected)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRedialerRetriesUntilListenerAppears(t *testing.T) {
	hub := mem.NewHub()
	m := relay.New(relay.Options{})
	m.SendMessage(protocol.TypeDebug, "queued early")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- New(m, hub.Dialer("late"), fastOpts()).Run(ctx) }()

	// let a few dials fail before the endpoint exists
	time.Sleep(30 * time.Millisecond)
	require.False(t, m.Status().Connected)

	l, err := hub.Listen("late")
	require.NoError(t, err)
	defer l.Close()

	srv, err := l.Accept(ctx)
	require.NoError(t, err)
	var mu sync.Mutex
	var got []any
	require.NoError(t, srv.OnMessage(func(msg protocol.Message) {
		mu.Lock()
		got = append(got, msg.Payload)
		mu.Unlock()
	}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 2*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRedialerStopsOnCancelWhileDialing(t *testing.T) {
	hub := mem.NewHub()
	m := relay.New(relay.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(m, hub.Dialer("nowhere"), fastOpts()).Run(ctx) }()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("redialer did not stop after cancel")
	}
	assert.False(t, m.Status().Connected)
}
