// Package tlssession drives a TLS client handshake over the Transport
// Adapter's push/pull sink/source rather than a raw socket, and manages
// the resulting TLS session's lifetime. It is the TLS Driver component
// of the lockdown protocol.
//
// Go's crypto/tls has no support for SSL 3.0, anonymous Diffie-Hellman,
// or HMAC-MD5 — the standard library dropped all three for being
// actively broken, while the device firmware this protocol targets is
// from that era. This package configures the closest legacy-compatible
// profile crypto/tls still permits (TLS 1.0, AES-CBC/SHA1 cipher
// suites) rather than silently claiming full parity with the source
// protocol's parameter set.
package tlssession

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"sync/atomic"
	"time"

	"github.com/go-phorce/lockdown/internal/xlog"
	"github.com/pkg/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/lockdown", "tlssession")

// Puller is the blocking, full-read source the driver requires: Pull
// must not return until len(buf) bytes have been delivered or a
// terminal error occurs.
type Puller interface {
	Pull(buf []byte) (int, error)
}

// Pusher is the single-write sink the driver requires.
type Pusher interface {
	Push(b []byte) (int, error)
}

// Sink is the combined push/pull transport the driver rides on top of;
// transport.Adapter implements it.
type Sink interface {
	Puller
	Pusher
}

// Session is an active (or torn-down) TLS session layered over a Sink.
type Session struct {
	conn   *tls.Conn
	raw    *connAdapter
	closed int32
}

// connAdapter makes a Sink look like a net.Conn, which is all
// crypto/tls.Client needs to drive its handshake and record layer.
type connAdapter struct {
	sink Sink
}

// Read pulls one byte per call. Pull blocks until the whole buffer is
// filled, and crypto/tls reads into buffers larger than the record it is
// waiting for, so handing b to Pull whole would block the handshake.
func (c *connAdapter) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	return c.sink.Pull(b[:1])
}

func (c *connAdapter) Write(b []byte) (int, error) { return c.sink.Push(b) }
func (c *connAdapter) Close() error                { return nil }
func (c *connAdapter) LocalAddr() net.Addr         { return pipeAddr{} }
func (c *connAdapter) RemoteAddr() net.Addr        { return pipeAddr{} }
func (c *connAdapter) SetDeadline(time.Time) error      { return nil }
func (c *connAdapter) SetReadDeadline(time.Time) error  { return nil }
func (c *connAdapter) SetWriteDeadline(time.Time) error { return nil }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "lockdown" }
func (pipeAddr) String() string  { return "lockdown-tls-session" }

// Config is the subset of TLS parameters a caller may need to override
// (mainly for tests, which mint throwaway certs); HostCert is always the
// host certificate chain issued by the Certificate Authority component.
// RootCert is the host's own root CA certificate, which signs the leaf
// the device presents; when set it is installed as RootCAs. With
// InsecureSkipVerify set (as the lockdown client sets it), crypto/tls
// does not verify the device's chain, so RootCAs is not consulted and
// the handshake does not depend on RootCert.
type Config struct {
	HostCert           tls.Certificate
	RootCert           *x509.Certificate
	InsecureSkipVerify bool
}

// legacyTLSConfig builds the device-compatible profile described in the
// package doc comment.
func legacyTLSConfig(cfg Config) *tls.Config {
	var pool *x509.CertPool
	if cfg.RootCert != nil {
		pool = x509.NewCertPool()
		pool.AddCert(cfg.RootCert)
	}
	return &tls.Config{
		MinVersion: tls.VersionTLS10,
		MaxVersion: tls.VersionTLS10,
		CipherSuites: []uint16{
			tls.TLS_RSA_WITH_AES_128_CBC_SHA,
			tls.TLS_RSA_WITH_AES_256_CBC_SHA,
		},
		Certificates:       []tls.Certificate{cfg.HostCert},
		RootCAs:            pool,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
}

// Handshake drives a blocking TLS client handshake over sink and returns
// the resulting Session. It may block indefinitely on a device slow to
// respond; callers that need a deadline should wrap ctx accordingly —
// the handshake itself has no internal timeout, matching §5's
// "suspension points" model.
func Handshake(ctx context.Context, sink Sink, cfg Config) (*Session, error) {
	raw := &connAdapter{sink: sink}
	conn := tls.Client(raw, legacyTLSConfig(cfg))

	errc := make(chan error, 1)
	go func() { errc <- conn.HandshakeContext(ctx) }()

	select {
	case err := <-errc:
		if err != nil {
			return nil, errors.WithMessage(err, "tls handshake")
		}
	case <-ctx.Done():
		return nil, errors.WithMessage(ctx.Err(), "tls handshake")
	}

	logger.Infof("state=established, version=%x, cipher=%x", conn.ConnectionState().Version, conn.ConnectionState().CipherSuite)
	return &Session{conn: conn, raw: raw}, nil
}

// Send writes b as a single TLS record write.
func (s *Session) Send(b []byte) error {
	_, err := s.conn.Write(b)
	if err != nil {
		return errors.WithMessage(err, "tls send")
	}
	return nil
}

// Recv reads up to len(buf) bytes of decrypted application data.
func (s *Session) Recv(buf []byte) (int, error) {
	n, err := s.conn.Read(buf)
	if err != nil {
		return n, errors.WithMessage(err, "tls recv")
	}
	return n, nil
}

// Conn exposes the underlying *tls.Conn for callers (the Transport
// Adapter) that want to frame plists directly over it.
func (s *Session) Conn() net.Conn {
	return s.conn
}

// Close sends a close_notify alert and releases the session; it does not
// wait for the device's own close_notify.
// Idempotent: calling Close on an already-closed (or nil) session is a
// no-op.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return errors.WithMessage(err, "tls close")
	}
	return nil
}
