// Package fakedevice is a scripted in-memory stand-in for a real
// lockdown service. It drives the device side of a
// transport.NewPipeDevicePair() connection, answering every request
// verb with a sane default and letting a test override any single
// verb to exercise a specific failure path (PasswordProtected,
// InvalidHostID, a malformed response, ...). Adapted from
// transport/testdevice.go's PipeDevice plus the teacher's own
// httptest-style scripted servers (rest/rest_test.go).
package fakedevice

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/go-phorce/lockdown/plist"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Handler answers one request verb.
type Handler func(d *Device, req plist.Request) plist.Response

// Device is a scripted lockdown service. Zero value is not usable; build
// one with New.
type Device struct {
	t    *testing.T
	conn net.Conn

	udid string
	key  *rsa.PrivateKey

	mu         sync.Mutex
	handlers   map[string]Handler
	enableSSL  bool
	sessionID  string
	deviceCert []byte // PEM, set once a Pair/ValidatePair succeeds; signed directly by the host's root key
	values     map[string]interface{}
}

// New returns a Device speaking over conn (the device side of
// transport.NewPipeDevicePair()), answering UniqueDeviceID with udid.
// EnableSSL defaults to true, matching a real device's StartSession
// response.
func New(t *testing.T, conn net.Conn, udid string) *Device {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	d := &Device{
		t:         t,
		conn:      conn,
		udid:      udid,
		key:       key,
		enableSSL: true,
		values:    map[string]interface{}{},
	}
	d.handlers = defaultHandlers()
	return d
}

// EnableSSL controls whether StartSession's default handler advertises
// EnableSessionSSL.
func (d *Device) EnableSSL(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enableSSL = v
}

// Handle overrides the handler for one request verb, e.g. to answer
// Pair with a PasswordProtected failure.
func (d *Device) Handle(verb string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[verb] = h
}

// DevicePublicKeyPEM returns the PEM-encoded PKCS#1 public key a real
// device would answer GetValue(DevicePublicKey) with.
func (d *Device) DevicePublicKeyPEM() []byte {
	der := x509.MarshalPKCS1PublicKey(&d.key.PublicKey)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: der})
}

// Serve runs the request/response loop until conn is closed, a fatal
// framing error occurs, or the device's tls upgrade (once StartSession
// advertises EnableSessionSSL) fails. Meant to run in its own goroutine
// for the duration of a test.
func (d *Device) Serve() {
	var rw net.Conn = d.conn
	for {
		req, err := readFramed(rw)
		if err != nil {
			return
		}
		verb, _ := req["Request"].(string)

		d.mu.Lock()
		h, ok := d.handlers[verb]
		d.mu.Unlock()
		if !ok {
			h = unknownVerb
		}
		resp := h(d, req)

		if err := writeFramed(rw, resp); err != nil {
			return
		}

		if verb == "StartSession" {
			d.mu.Lock()
			upgrade := d.enableSSL && resp["Result"] == "Success"
			d.mu.Unlock()
			if upgrade {
				tlsConn, err := d.upgradeTLS(rw)
				if err != nil {
					d.t.Logf("fakedevice: tls upgrade failed: %v", err)
					return
				}
				rw = tlsConn
			}
		}
	}
}

// upgradeTLS starts a TLS server handshake over rw, presenting the
// device certificate received during Pair/ValidatePair (signed directly
// by the host's root key) so the host's tls.Client can verify it
// against that same root.
func (d *Device) upgradeTLS(rw net.Conn) (net.Conn, error) {
	d.mu.Lock()
	deviceCertPEM := d.deviceCert
	d.mu.Unlock()

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(d.key)})
	cert, err := tls.X509KeyPair(deviceCertPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	srv := tls.Server(rw, &tls.Config{
		MinVersion:   tls.VersionTLS10,
		MaxVersion:   tls.VersionTLS10,
		Certificates: []tls.Certificate{cert},
	})
	if err := srv.Handshake(); err != nil {
		return nil, err
	}
	return srv, nil
}

func defaultHandlers() map[string]Handler {
	return map[string]Handler{
		"QueryType": func(d *Device, req plist.Request) plist.Response {
			return success("QueryType", map[string]interface{}{"Type": "com.apple.mobile.lockdown"})
		},
		"GetValue": handleGetValue,
		"SetValue": func(d *Device, req plist.Request) plist.Response {
			domain, _ := req["Domain"].(string)
			key, _ := req["Key"].(string)
			d.mu.Lock()
			d.values[valueKey(domain, key)] = req["Value"]
			d.mu.Unlock()
			return success("SetValue", nil)
		},
		"RemoveValue": func(d *Device, req plist.Request) plist.Response {
			domain, _ := req["Domain"].(string)
			key, _ := req["Key"].(string)
			d.mu.Lock()
			delete(d.values, valueKey(domain, key))
			d.mu.Unlock()
			return success("RemoveValue", nil)
		},
		"Pair":         handlePair,
		"ValidatePair": handlePair,
		"Unpair":       handlePair,
		"StartSession": handleStartSession,
		"StopSession": func(d *Device, req plist.Request) plist.Response {
			return success("StopSession", nil)
		},
		"StartService": func(d *Device, req plist.Request) plist.Response {
			return success("StartService", map[string]interface{}{"Port": uint64(62078)})
		},
		"Activate": func(d *Device, req plist.Request) plist.Response {
			return success("Activate", nil)
		},
		"Deactivate": func(d *Device, req plist.Request) plist.Response {
			return success("Deactivate", nil)
		},
		"EnterRecovery": func(d *Device, req plist.Request) plist.Response {
			return success("EnterRecovery", nil)
		},
		"Goodbye": func(d *Device, req plist.Request) plist.Response {
			return success("Goodbye", nil)
		},
	}
}

func handleGetValue(d *Device, req plist.Request) plist.Response {
	key, _ := req["Key"].(string)
	switch key {
	case "UniqueDeviceID":
		return success("GetValue", map[string]interface{}{"Value": d.udid})
	case "DevicePublicKey":
		return success("GetValue", map[string]interface{}{"Value": d.DevicePublicKeyPEM()})
	case "":
		return success("GetValue", map[string]interface{}{"Value": d.snapshotValues()})
	default:
		domain, _ := req["Domain"].(string)
		d.mu.Lock()
		v, ok := d.values[valueKey(domain, key)]
		d.mu.Unlock()
		if !ok {
			// Leave Value out of the plist entirely rather than encode an
			// untyped nil: the client reads the miss as resp["Value"] ==
			// nil via the ordinary map lookup instead.
			return success("GetValue", nil)
		}
		return success("GetValue", map[string]interface{}{"Value": v})
	}
}

func handlePair(d *Device, req plist.Request) plist.Response {
	verb, _ := req["Request"].(string)
	rec, _ := req["PairRecord"].(map[string]interface{})

	d.mu.Lock()
	if verb == "Unpair" {
		d.deviceCert = nil
	} else {
		deviceCert, _ := rec["DeviceCertificate"].(string)
		d.deviceCert = []byte(deviceCert)
	}
	d.mu.Unlock()

	return success(verb, nil)
}

func handleStartSession(d *Device, req plist.Request) plist.Response {
	d.mu.Lock()
	enableSSL := d.enableSSL
	d.mu.Unlock()

	sid := uuid.NewString()
	d.mu.Lock()
	d.sessionID = sid
	d.mu.Unlock()

	return success("StartSession", map[string]interface{}{
		"SessionID":        sid,
		"EnableSessionSSL": enableSSL,
	})
}

func unknownVerb(d *Device, req plist.Request) plist.Response {
	verb, _ := req["Request"].(string)
	return failure(verb, "UnknownRequest")
}

func success(verb string, extra map[string]interface{}) plist.Response {
	resp := plist.Response{"Request": verb, "Result": "Success"}
	for k, v := range extra {
		resp[k] = v
	}
	return resp
}

func failure(verb, reason string) plist.Response {
	return plist.Response{"Request": verb, "Result": "Failure", "Error": reason}
}

func valueKey(domain, key string) string { return domain + "\x00" + key }

func (d *Device) snapshotValues() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]interface{}, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

func readFramed(r io.Reader) (plist.Request, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	resp, err := plist.Decode(body)
	if err != nil {
		return nil, err
	}
	return plist.Request(resp), nil
}

func writeFramed(w io.Writer, resp plist.Response) error {
	body, err := plist.Encode(plist.Request(resp))
	if err != nil {
		return err
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}
