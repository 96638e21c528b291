package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/config"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/ports"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/reconnect"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/relay"
)

func main() {
	cfgPath := flag.String("config", "", "optional YAML config; flags override it")
	kind := flag.String("kind", "", "port kind: mem|tcp|unix|ws|quic|winpipe")
	addr := flag.String("addr", "", "address to connect to")
	path := flag.String("path", "", "endpoint path for ws")
	codecName := flag.String("codec", "", "frame codec: json|cbor|proto")
	count := flag.Int("count", 10, "debug probes to send")
	interval := flag.Duration("interval", 200*time.Millisecond, "delay between probes")
	zipKB := flag.Int("zip-kb", 64, "zip payload size in KB; 0 skips the upload")
	commit := flag.String("commit", "update from bolt", "commit message to set")
	queueLimit := flag.Int("queue-limit", -1, "outbound queue cap; -1 = from config, 0 = unbounded")
	timeout := flag.Duration("timeout", 30*time.Second, "overall run timeout")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	// the agent dials the same endpoint the hub listens on, so it reads
	// the same config file; explicit flags win
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	pc := cfg.Port
	if *kind != "" {
		pc.Kind = *kind
	}
	if *addr != "" {
		pc.Address = *addr
	}
	if *path != "" {
		pc.Path = *path
	}
	if *codecName != "" {
		pc.Codec = *codecName
	}
	limit := cfg.Bridge.QueueLimit
	if *queueLimit >= 0 {
		limit = *queueLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	d, err := ports.NewDialer(pc)
	if err != nil {
		fatalf("new dialer: %v", err)
	}

	m := relay.New(relay.Options{QueueLimit: limit})
	m.OnMessage(func(msg protocol.Message) {
		switch msg.Type {
		case protocol.TypeUploadStatus:
			fmt.Println("upload status:", render(msg.Payload))
		case protocol.TypeHeartbeat:
			zap.L().Debug("heartbeat from hub")
		default:
			fmt.Println("received:", string(msg.Type))
		}
	})

	rd := reconnect.New(m, d, reconnect.Options{
		Backoff:    time.Duration(cfg.Net.DialBackoffInitialMS) * time.Millisecond,
		MaxBackoff: time.Duration(cfg.Net.DialBackoffMaxMS) * time.Millisecond,
		Jitter:     time.Duration(cfg.Net.DialBackoffJitterMS) * time.Millisecond,
		OnConnect: func(port.Port) {
			// announce readiness first; this is also the opening frame
			// quic peers wait for before surfacing the stream
			m.SendMessage(protocol.TypeContentReady, nil)
		},
	})
	done := make(chan error, 1)
	go func() { done <- rd.Run(ctx) }()

	m.SendMessage(protocol.TypeCommitMessage, *commit)
	for i := 0; i < *count; i++ {
		m.SendMessage(protocol.TypeDebug, fmt.Sprintf("probe %d", i))
		time.Sleep(*interval)
	}
	if *zipKB > 0 {
		m.SendMessage(protocol.TypeZipData, make([]byte, *zipKB<<10))
		fmt.Println("zip queued:", *zipKB, "KB")
	}

	// linger until the queue empties or the timeout hits
	last := time.Now()
	for m.Status().QueuedMessages > 0 && ctx.Err() == nil {
		time.Sleep(50 * time.Millisecond)
		if time.Since(last) >= time.Second {
			st := m.Status()
			fmt.Printf("waiting: connected=%v queued=%d\n", st.Connected, st.QueuedMessages)
			last = time.Now()
		}
	}
	time.Sleep(500 * time.Millisecond) // let trailing status updates arrive

	st := m.Status()
	fmt.Printf("connected=%v queued=%d generation=%d\n", st.Connected, st.QueuedMessages, st.Generation)
	stats := m.Metrics()
	fmt.Printf("sent=%d flushed=%d failed=%d disconnects=%d\n",
		stats.Sent, stats.Flushed, stats.Failed, stats.Disconnects)

	cancel()
	<-done
}

func render(p any) string {
	b, _ := json.Marshal(p)
	return string(b)
}

func fatalf(format string, a ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
