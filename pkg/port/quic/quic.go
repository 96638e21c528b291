// Package quic implements ports over QUIC: one bidirectional stream per port,
// framed exactly like the conn port. TLS here is QUIC plumbing, not content
// protection: the listener generates an ephemeral self-signed certificate
// and dialers skip verification unless handed a real tls.Config.
package quic

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	quicgo "github.com/quic-go/quic-go"
	"go.uber.org/zap"

	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port"
	"github.com/mamertofabian/bolt-to-github-sub003/pkg/port/conn"
)

const alpnProto = "boltbridge"

// Options tune a QUIC port.
type Options struct {
	// Conn carries the framing options (codec, max frame).
	Conn conn.Options
	// TLS overrides the generated certificate / insecure client default.
	TLS *tls.Config
}

// Dialer connects to a QUIC endpoint and opens the port stream.
type Dialer struct {
	Address string
	Opts    Options
}

func (d Dialer) Kind() port.Kind { return port.KindQUIC }

func (d Dialer) Dial(ctx context.Context) (port.Port, error) {
	tlsConf := d.Opts.TLS
	if tlsConf == nil {
		tlsConf = &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS13}
	} else {
		tlsConf = tlsConf.Clone()
	}
	tlsConf.NextProtos = []string{alpnProto}

	qc, err := quicgo.DialAddr(ctx, d.Address, tlsConf, nil)
	if err != nil {
		return nil, fmt.Errorf("quic: dial %s: %w", d.Address, err)
	}
	st, err := qc.OpenStreamSync(ctx)
	if err != nil {
		_ = qc.CloseWithError(0, "open stream failed")
		return nil, fmt.Errorf("quic: open stream: %w", err)
	}
	return conn.New(qstream{st: st, qc: qc}, d.Opts.Conn), nil
}

// Listen accepts QUIC connections and yields one port per connection, backed
// by the first bidirectional stream the dialer opens.
func Listen(address string, opts Options) (port.Listener, error) {
	tlsConf := opts.TLS
	if tlsConf == nil {
		cert, err := selfSignedCert()
		if err != nil {
			return nil, fmt.Errorf("quic: certificate: %w", err)
		}
		tlsConf = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS13}
	} else {
		tlsConf = tlsConf.Clone()
	}
	tlsConf.NextProtos = []string{alpnProto}

	ql, err := quicgo.ListenAddr(address, tlsConf, nil)
	if err != nil {
		return nil, err
	}
	l := &listener{ql: ql, opts: opts, newCh: make(chan port.Port, 8), closeCh: make(chan struct{})}
	go l.acceptLoop()
	return l, nil
}

type listener struct {
	ql        *quicgo.Listener
	opts      Options
	newCh     chan port.Port
	closeCh   chan struct{}
	closeOnce sync.Once
}

func (l *listener) Addr() net.Addr { return l.ql.Addr() }

func (l *listener) Accept(ctx context.Context) (port.Port, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, errors.New("quic: listener closed")
	case p := <-l.newCh:
		return p, nil
	}
}

func (l *listener) Close() error {
	l.closeOnce.Do(func() { close(l.closeCh) })
	return l.ql.Close()
}

func (l *listener) acceptLoop() {
	for {
		qc, err := l.ql.Accept(context.Background())
		if err != nil {
			return
		}
		go l.adopt(qc)
	}
}

func (l *listener) adopt(qc *quicgo.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := qc.AcceptStream(ctx)
	if err != nil {
		zap.L().Debug("quic stream accept failed", zap.Error(err))
		_ = qc.CloseWithError(0, "no stream")
		return
	}
	p := conn.New(qstream{st: st, qc: qc}, l.opts.Conn)
	select {
	case l.newCh <- p:
	case <-l.closeCh:
		_ = p.Close()
	}
}

// qstream binds the stream lifetime to its connection: closing the port
// closes the whole QUIC connection.
type qstream struct {
	st *quicgo.Stream
	qc *quicgo.Conn
}

func (s qstream) Read(b []byte) (int, error)  { return s.st.Read(b) }
func (s qstream) Write(b []byte) (int, error) { return s.st.Write(b) }

func (s qstream) Close() error {
	_ = s.st.Close()
	return s.qc.CloseWithError(0, "port closed")
}

// selfSignedCert generates a short-lived certificate for local QUIC use.
func selfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}
	tmpl := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}
