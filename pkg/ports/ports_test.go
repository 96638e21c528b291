package ports

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/config"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
)

func TestDialerKinds(t *testing.T) {
	cases := []struct {
		kind string
		want port.Kind
	}{
		{"mem", port.KindMem},
		{"inproc", port.KindMem},
		{"tcp", port.KindTCP},
		{"unix", port.KindUnix},
		{"ws", port.KindWS},
		{"websocket", port.KindWS},
		{"quic", port.KindQUIC},
		{"h3", port.KindQUIC},
	}
	for _, tc := range cases {
		d, err := NewDialer(config.PortConfig{Kind: tc.kind, Address: "x", Codec: "json"})
		require.NoError(t, err, tc.kind)
		assert.Equal(t, tc.want, d.Kind(), tc.kind)
	}
}

func TestUnknownKindAndCodec(t *testing.T) {
	_, err := NewDialer(config.PortConfig{Kind: "carrier-pigeon", Codec: "json"})
	assert.ErrorContains(t, err, "unknown port kind")

	_, err = NewListener(config.PortConfig{Kind: "smoke-signal", Codec: "json"})
	assert.ErrorContains(t, err, "unknown port kind")

	_, err = NewDialer(config.PortConfig{Kind: "tcp", Codec: "morse"})
	assert.ErrorContains(t, err, "unknown codec")
}

func TestWinPipeUnsupportedOffWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("winpipe is supported here")
	}
	_, err := NewDialer(config.PortConfig{Kind: "winpipe", Address: `\\.\pipe\boltbridge`, Codec: "json"})
	assert.ErrorContains(t, err, "not supported")
}

func TestMemEndToEnd(t *testing.T) {
	cfg := config.PortConfig{Kind: "mem", Address: "factory-e2e", Codec: "json"}

	l, err := NewListener(cfg)
	require.NoError(t, err)
	defer l.Close()

	d, err := NewDialer(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	client, err := d.Dial(ctx)
	require.NoError(t, err)
	defer client.Close()
	server, err := l.Accept(ctx)
	require.NoError(t, err)
	defer server.Close()

	var mu sync.Mutex
	var got []protocol.Message
	require.NoError(t, server.OnMessage(func(m protocol.Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	}))

	require.NoError(t, client.Send(protocol.Message{Type: protocol.TypeDebug, Payload: "ping"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0].Payload == "ping"
	}, time.Second, 2*time.Millisecond)
}

func TestTCPEndToEnd(t *testing.T) {
	l, err := NewListener(config.PortConfig{Kind: "tcp", Address: "127.0.0.1:0", Codec: "cbor", MaxFrameMB: 1})
	require.NoError(t, err)
	defer l.Close()

	d, err := NewDialer(config.PortConfig{Kind: "tcp", Address: l.Addr().String(), Codec: "cbor", MaxFrameMB: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := d.Dial(ctx)
	require.NoError(t, err)
	defer client.Close()
	server, err := l.Accept(ctx)
	require.NoError(t, err)
	defer server.Close()

	var mu sync.Mutex
	var got []protocol.Message
	require.NoError(t, server.OnMessage(func(m protocol.Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	}))

	require.NoError(t, client.Send(protocol.Message{Type: protocol.TypeCommitMessage, Payload: "factory wired"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0].Type == protocol.TypeCommitMessage
	}, 2*time.Second, 2*time.Millisecond)
}
