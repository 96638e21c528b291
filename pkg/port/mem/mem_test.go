package mem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
)

func TestPairDeliveryOrder(t *testing.T) {
	a, b := Pair()
	defer a.Close()

	got := make(chan protocol.Message, 10)
	require.NoError(t, b.OnMessage(func(m protocol.Message) { got <- m }))

	for i := 0; i < 5; i++ {
		require.NoError(t, a.Send(protocol.Message{Type: protocol.TypeDebug, Payload: i}))
	}
	for i := 0; i < 5; i++ {
		select {
		case m := <-got:
			assert.Equal(t, i, m.Payload)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestLateHandlerReplay(t *testing.T) {
	a, b := Pair()
	defer a.Close()

	require.NoError(t, a.Send(protocol.Message{Type: protocol.TypeDebug, Payload: "early"}))

	got := make(chan protocol.Message, 1)
	require.NoError(t, b.OnMessage(func(m protocol.Message) { got <- m }))
	select {
	case m := <-got:
		assert.Equal(t, "early", m.Payload)
	case <-time.After(time.Second):
		t.Fatal("message sent before handler registration was not replayed")
	}
}

func TestCloseNotifiesPeerOnly(t *testing.T) {
	a, b := Pair()

	peerDown := make(chan struct{})
	ownDown := make(chan struct{}, 1)
	require.NoError(t, b.OnDisconnect(func() { close(peerDown) }))
	require.NoError(t, a.OnDisconnect(func() { ownDown <- struct{}{} }))

	require.NoError(t, a.Close())
	select {
	case <-peerDown:
	case <-time.After(time.Second):
		t.Fatal("peer disconnect not fired")
	}
	select {
	case <-ownDown:
		t.Fatal("own disconnect fired on local close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDrainBeforeDisconnect(t *testing.T) {
	a, b := Pair()

	events := make(chan string, 8)
	require.NoError(t, b.OnMessage(func(protocol.Message) { events <- "msg" }))
	require.NoError(t, b.OnDisconnect(func() { events <- "down" }))

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Send(protocol.Message{Type: protocol.TypeDebug, Payload: i}))
	}
	require.NoError(t, a.Close())

	for _, want := range []string{"msg", "msg", "msg", "down"} {
		select {
		case e := <-events:
			assert.Equal(t, want, e)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestDeadPortOperations(t *testing.T) {
	a, b := Pair()
	require.NoError(t, a.Close())
	require.NoError(t, a.Close()) // idempotent

	assert.ErrorIs(t, a.Send(protocol.Message{Type: protocol.TypeDebug}), port.ErrClosed)
	assert.ErrorIs(t, a.OnMessage(func(protocol.Message) {}), port.ErrClosed)
	assert.ErrorIs(t, a.OnDisconnect(func() {}), port.ErrClosed)

	// Close marks the peer synchronously, so its operations fail too.
	assert.ErrorIs(t, b.Send(protocol.Message{Type: protocol.TypeDebug}), port.ErrClosed)
	assert.ErrorIs(t, b.OnDisconnect(func() {}), port.ErrClosed)
}

func TestHubDialListen(t *testing.T) {
	h := NewHub()
	l, err := h.Listen("bridge")
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, "mem", l.Addr().Network())

	d := h.Dialer("bridge")
	assert.Equal(t, port.KindMem, d.Kind())

	near, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer near.Close()

	far, err := l.Accept(context.Background())
	require.NoError(t, err)

	got := make(chan protocol.Message, 1)
	require.NoError(t, far.OnMessage(func(m protocol.Message) { got <- m }))
	require.NoError(t, near.Send(protocol.Message{Type: protocol.TypeHeartbeat}))
	select {
	case m := <-got:
		assert.Equal(t, protocol.TypeHeartbeat, m.Type)
	case <-time.After(time.Second):
		t.Fatal("hub-dialed port did not deliver")
	}

	if _, err := h.Listen("bridge"); err == nil {
		t.Fatal("duplicate listen succeeded")
	}
	if _, err := h.Dialer("nowhere").Dial(context.Background()); err == nil {
		t.Fatal("dial to unknown name succeeded")
	}
}

func TestListenerCloseUnblocksAccept(t *testing.T) {
	h := NewHub()
	l, err := h.Listen("x")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := l.Accept(context.Background())
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, l.Close())
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Accept did not unblock on Close")
	}

	// name is free again
	_, err = h.Listen("x")
	assert.NoError(t, err)
}
