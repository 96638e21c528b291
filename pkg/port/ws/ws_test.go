package ws

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol/codec"
)

func loopback(t *testing.T, opts Options) (port.Port, port.Port, port.Listener) {
	t.Helper()
	l, err := Listen("127.0.0.1:0", "/bridge", opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	d := Dialer{URL: fmt.Sprintf("ws://%s/bridge", l.Addr()), Opts: opts}
	assert.Equal(t, port.KindWS, d.Kind())

	near, err := d.Dial(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	far, err := l.Accept(ctx)
	require.NoError(t, err)
	return near, far, l
}

func TestRoundtripText(t *testing.T) {
	near, far, _ := loopback(t, Options{})
	defer near.Close()

	gotFar := make(chan protocol.Message, 1)
	gotNear := make(chan protocol.Message, 1)
	require.NoError(t, far.OnMessage(func(m protocol.Message) { gotFar <- m }))
	require.NoError(t, near.OnMessage(func(m protocol.Message) { gotNear <- m }))

	require.NoError(t, near.Send(protocol.Message{Type: protocol.TypeZipData, Payload: map[string]any{"size": float64(42)}}))
	require.NoError(t, far.Send(protocol.Message{Type: protocol.TypeUploadStatus, Payload: "uploading"}))

	select {
	case m := <-gotFar:
		assert.Equal(t, protocol.TypeZipData, m.Type)
	case <-time.After(time.Second):
		t.Fatal("server got nothing")
	}
	select {
	case m := <-gotNear:
		assert.Equal(t, protocol.TypeUploadStatus, m.Type)
		assert.Equal(t, "uploading", m.Payload)
	case <-time.After(time.Second):
		t.Fatal("client got nothing")
	}
}

func TestRoundtripBinaryCBOR(t *testing.T) {
	near, far, _ := loopback(t, Options{Codec: codec.CBOR()})
	defer near.Close()

	got := make(chan protocol.Message, 1)
	require.NoError(t, far.OnMessage(func(m protocol.Message) { got <- m }))
	require.NoError(t, near.Send(protocol.Message{Type: protocol.TypeDebug, Payload: "b"}))
	select {
	case m := <-got:
		assert.Equal(t, protocol.TypeDebug, m.Type)
		assert.Equal(t, "b", m.Payload)
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
}

func TestPeerCloseFiresDisconnectOnce(t *testing.T) {
	near, far, _ := loopback(t, Options{})

	var fired atomic.Int32
	require.NoError(t, near.OnDisconnect(func() { fired.Add(1) }))
	require.NoError(t, far.Close())

	require.Eventually(t, func() bool { return fired.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())

	assert.ErrorIs(t, near.OnMessage(func(protocol.Message) {}), port.ErrClosed)
}

func TestDialFailure(t *testing.T) {
	d := Dialer{URL: "ws://127.0.0.1:1/bridge"}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := d.Dial(ctx)
	require.Error(t, err)
}
