package tlssession_test

import (
	"context"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/go-phorce/lockdown/internal/testca"
	"github.com/go-phorce/lockdown/tlssession"
	"github.com/stretchr/testify/require"
)

// memSink adapts a net.Conn to tlssession.Sink for tests, looping Pull
// the way transport.Adapter.Pull does.
type memSink struct {
	net.Conn
}

func (m memSink) Push(b []byte) (int, error) { return m.Conn.Write(b) }
func (m memSink) Pull(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := m.Conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func Test_Handshake_RoundTripsApplicationData(t *testing.T) {
	clientRaw, serverRaw := net.Pipe()
	defer clientRaw.Close()
	defer serverRaw.Close()

	hostCert := testca.MustIssueSelfSigned(t, "lockdown-host")

	done := make(chan error, 1)
	var serverConn *tls.Conn
	go func() {
		serverConn = tls.Server(serverRaw, &tls.Config{
			MinVersion:   tls.VersionTLS10,
			MaxVersion:   tls.VersionTLS10,
			Certificates: []tls.Certificate{hostCert},
		})
		done <- serverConn.HandshakeContext(context.Background())
	}()

	sess, err := tlssession.Handshake(context.Background(), memSink{clientRaw}, tlssession.Config{
		HostCert:           hostCert,
		InsecureSkipVerify: true,
	})
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, <-done)

	go func() {
		buf := make([]byte, 5)
		serverConn.Read(buf)
		serverConn.Write(buf)
	}()

	require.NoError(t, sess.Send([]byte("hello")))
	buf := make([]byte, 5)
	n, err := sess.Recv(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func Test_Close_IsIdempotent(t *testing.T) {
	clientRaw, serverRaw := net.Pipe()
	defer serverRaw.Close()

	hostCert := testca.MustIssueSelfSigned(t, "lockdown-host")

	go func() {
		srv := tls.Server(serverRaw, &tls.Config{
			MinVersion:   tls.VersionTLS10,
			MaxVersion:   tls.VersionTLS10,
			Certificates: []tls.Certificate{hostCert},
		})
		srv.HandshakeContext(context.Background())
	}()

	sess, err := tlssession.Handshake(context.Background(), memSink{clientRaw}, tlssession.Config{
		HostCert:           hostCert,
		InsecureSkipVerify: true,
	})
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
}

func Test_Handshake_CtxTimeout(t *testing.T) {
	clientRaw, serverRaw := net.Pipe()
	defer clientRaw.Close()
	defer serverRaw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	hostCert := testca.MustIssueSelfSigned(t, "lockdown-host")
	_, err := tlssession.Handshake(ctx, memSink{clientRaw}, tlssession.Config{HostCert: hostCert})
	require.Error(t, err)
}
