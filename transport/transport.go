// Package transport bridges a packet-oriented device connection (the
// USB-multiplexer-backed channel, out of scope for this module) to the
// two I/O modes the lockdown protocol needs: plaintext framed property
// lists, and TLS records once a session has been upgraded. It is the
// Transport Adapter component of the lockdown protocol.
package transport

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/go-phorce/lockdown/plist"
	"github.com/pkg/errors"
)

// Device is the out-of-scope collaborator this package bridges: a
// property-list-service handle over the USB multiplexer. A real binding
// implements this over the multiplexed device bus; this module ships
// only the in-memory PipeDevice test double (see testdevice.go).
type Device interface {
	io.Reader
	io.Writer
	Close() error
}

// Adapter wraps a Device, sending/receiving length-prefixed XML plists
// in plaintext, and exposing Push/Pull as the byte-oriented sink/source
// the TLS Driver drives once a session goes encrypted.
type Adapter struct {
	mu    sync.Mutex
	dev   Device
	label string

	// encryptedSend/encryptedRecv, once set via SetEncryptedIO, are the
	// send/recv pair installed by the TLS Driver; all *Encrypted* calls go
	// through them instead of dev directly.
	encryptedSend func(plist.Request) error
	encryptedRecv func() (plist.Response, error)
}

// New wraps dev. label is echoed into every outbound request via the
// plist builders; it is the caller's responsibility to pass it through
// when constructing requests.
func New(dev Device, label string) *Adapter {
	return &Adapter{dev: dev, label: label}
}

// Label returns the diagnostic label this adapter was constructed with.
func (a *Adapter) Label() string {
	return a.label
}

// Close releases the underlying device connection.
func (a *Adapter) Close() error {
	return a.dev.Close()
}

// SendPlist serializes req and writes it to the device as a 4-byte
// big-endian length prefix followed by the XML body, per the
// property-list-service framing this package stands in for.
func (a *Adapter) SendPlist(req plist.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeFramed(a.dev, req)
}

// ReceivePlist reads one length-prefixed XML plist from the device.
func (a *Adapter) ReceivePlist() (plist.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readFramed(a.dev)
}

func (a *Adapter) writeFramed(w io.Writer, req plist.Request) error {
	body, err := plist.Encode(req)
	if err != nil {
		return errors.WithMessage(err, "encode request")
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return errors.WithMessage(err, "write frame header")
	}
	if _, err := w.Write(body); err != nil {
		return errors.WithMessage(err, "write frame body")
	}
	return nil
}

func (a *Adapter) readFramed(r io.Reader) (plist.Response, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, errors.WithMessage(err, "read frame header")
	}
	n := binary.BigEndian.Uint32(header[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.WithMessage(err, "read frame body")
	}
	return plist.Decode(body)
}

// SetEncryptedIO installs the send/recv pair the TLS Driver exposes once
// its handshake completes. From this point SendEncryptedPlist and
// ReceiveEncryptedPlist route through the TLS session instead of the
// plaintext device connection.
func (a *Adapter) SetEncryptedIO(send func(plist.Request) error, recv func() (plist.Response, error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.encryptedSend = send
	a.encryptedRecv = recv
}

// ClearEncryptedIO removes the TLS send/recv pair, e.g. once the TLS
// session has been shut down.
func (a *Adapter) ClearEncryptedIO() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.encryptedSend = nil
	a.encryptedRecv = nil
}

// UseTLS frames requests/responses over conn (the net.Conn exposed by an
// active tlssession.Session) the same way SendPlist/ReceivePlist do over
// the plaintext device connection, and installs the result as this
// adapter's encrypted I/O.
func (a *Adapter) UseTLS(conn io.ReadWriter) {
	a.SetEncryptedIO(
		func(req plist.Request) error { return a.writeFramed(conn, req) },
		func() (plist.Response, error) { return a.readFramed(conn) },
	)
}

// SendEncryptedPlist sends req over the active TLS session.
func (a *Adapter) SendEncryptedPlist(req plist.Request) error {
	a.mu.Lock()
	send := a.encryptedSend
	a.mu.Unlock()
	if send == nil {
		return errors.New("no active TLS session")
	}
	return send(req)
}

// ReceiveEncryptedPlist reads one response over the active TLS session.
func (a *Adapter) ReceiveEncryptedPlist() (plist.Response, error) {
	a.mu.Lock()
	recv := a.encryptedRecv
	a.mu.Unlock()
	if recv == nil {
		return nil, errors.New("no active TLS session")
	}
	return recv()
}

// Push is a single write to the underlying device connection, used by
// the TLS Driver as its record-layer sink. The byte count returned comes
// from the underlying transport, per spec.
func (a *Adapter) Push(b []byte) (int, error) {
	n, err := a.dev.Write(b)
	if err != nil {
		return n, errors.WithMessage(err, "push")
	}
	return n, nil
}

// Pull loops on the underlying device connection until buf is completely
// filled or a terminal error occurs, because the TLS record layer
// demands blocking, full reads and must never observe a short read. A
// transport error here is fatal to the session: the caller must tear
// down the TLS session and discard the handle.
func (a *Adapter) Pull(buf []byte) (int, error) {
	n, err := io.ReadFull(a.dev, buf)
	if err != nil {
		return n, errors.WithMessage(err, "pull")
	}
	return n, nil
}
