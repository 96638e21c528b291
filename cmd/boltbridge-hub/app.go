package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/config"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/metrics"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/observability"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/ports"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/protocol"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/relay"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	zap.L().Info("boltbridge-hub started", zap.String("app", cfg.AppName))
	zap.L().Info("effective configuration", zap.Any("config", cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := ports.NewListener(cfg.Port)
	if err != nil {
		zap.L().Error("failed to open listener", zap.Error(err))
		return 1
	}
	defer l.Close()
	zap.L().Info("listening",
		zap.String("kind", cfg.Port.Kind),
		zap.String("addr", l.Addr().String()))

	m := relay.New(relay.Options{QueueLimit: cfg.Bridge.QueueLimit})
	defer func() { _ = m.Close() }()
	m.OnMessage(handleInbound(m))

	if cfg.Metrics.Enable {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.NewCollector(m))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		defer func() { _ = srv.Close() }()
		go func() {
			zap.L().Info("metrics listening", zap.String("addr", cfg.Metrics.Listen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zap.L().Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	if cfg.Bridge.HeartbeatMS > 0 {
		go heartbeat(ctx, m, time.Duration(cfg.Bridge.HeartbeatMS)*time.Millisecond)
	}

	// Every fresh agent connection becomes the current port; queued
	// status updates flush to the newcomer.
	go func() {
		for {
			p, err := l.Accept(ctx)
			if err != nil {
				if ctx.Err() == nil {
					zap.L().Error("accept failed", zap.Error(err))
				}
				return
			}
			zap.L().Info("agent connected", zap.String("port", p.ID()))
			m.UpdatePort(p)
		}
	}()

	zap.L().Info("hub is running; press Ctrl+C to exit")
	<-ctx.Done()
	zap.L().Info("shutting down")
	return 0
}

// handleInbound wires the coordinator's side of the conversation: zip
// payloads are acknowledged with upload status updates, everything else
// is logged.
func handleInbound(m *relay.Messenger) func(protocol.Message) {
	return func(msg protocol.Message) {
		switch msg.Type {
		case protocol.TypeContentReady:
			zap.L().Info("agent ready")
			m.SendMessage(protocol.TypeUploadStatus, map[string]any{"status": "idle"})
		case protocol.TypeZipData:
			zap.L().Info("zip received", zap.Int("bytes", payloadSize(msg.Payload)))
			m.SendMessage(protocol.TypeUploadStatus, map[string]any{"status": "uploading", "progress": 0})
			m.SendMessage(protocol.TypeUploadStatus, map[string]any{"status": "success", "progress": 100})
		case protocol.TypeCommitMessage:
			zap.L().Info("commit message set", zap.Any("payload", msg.Payload))
		case protocol.TypeOpenSettings:
			zap.L().Info("open settings requested")
		case protocol.TypeDebug:
			zap.L().Debug("debug message", zap.Any("payload", msg.Payload))
		case protocol.TypeHeartbeat:
			zap.L().Debug("heartbeat echo")
		default:
			zap.L().Warn("unhandled message type", zap.String("type", string(msg.Type)))
		}
	}
}

// payloadSize reports the size of a zip payload, which arrives as raw
// bytes under cbor and as a base64 string under json.
func payloadSize(p any) int {
	switch v := p.(type) {
	case []byte:
		return len(v)
	case string:
		return len(v)
	default:
		return 0
	}
}

func heartbeat(ctx context.Context, m *relay.Messenger, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.SendMessage(protocol.TypeHeartbeat, time.Now().UnixMilli())
		}
	}
}
