// Package pairing is the Pairing Engine component of the lockdown
// protocol: it executes the Pair/ValidatePair/Unpair exchanges that
// establish or revoke a host's trusted-peer status with a device, and
// keeps the host preference store's per-device public key in sync
// with the outcome. Grounded on dolly's xpki/authority/root.go for the
// annotate-wrapped multi-step flow idiom.
package pairing

import (
	"github.com/go-phorce/lockdown/ca"
	"github.com/go-phorce/lockdown/internal/lderrors"
	"github.com/go-phorce/lockdown/internal/xlog"
	"github.com/go-phorce/lockdown/plist"
	"github.com/go-phorce/lockdown/store"
	"github.com/juju/errors"
)

var logger = xlog.NewPackageLogger("lockdown", "pairing")

// Transport is the subset of transport.Adapter the Pairing Engine
// needs: plaintext plist request/response. The engine runs before
// StartSession, so no TLS session is involved.
type Transport interface {
	SendPlist(req plist.Request) error
	ReceivePlist() (plist.Response, error)
}

// Authority is the subset of *ca.HostIdentity the Pairing Engine needs.
type Authority interface {
	PairRecord(devicePubKey []byte) (device, host, root []byte, err error)
}

var _ Authority = (*ca.HostIdentity)(nil)

// Engine executes do_pair over a Transport, minting certificates via an
// Authority and recording outcomes in a Store.
type Engine struct {
	transport Transport
	authority Authority
	store     store.Store
	udid      string
	label     string
}

// NewEngine builds a Pairing Engine bound to one device's udid. label is
// echoed on outbound requests for diagnostics, matching every other
// Message Codec caller in this module.
func NewEngine(transport Transport, authority Authority, st store.Store, udid, label string) *Engine {
	return &Engine{transport: transport, authority: authority, store: st, udid: udid, label: label}
}

// Pair issues a fresh pair record and asks the device to trust it.
func (e *Engine) Pair(hostID string) error {
	return e.doPair("Pair", hostID)
}

// ValidatePair confirms an existing pairing, granting trusted-host
// status for the current session.
func (e *Engine) ValidatePair(hostID string) error {
	return e.doPair("ValidatePair", hostID)
}

// Unpair revokes the pairing and, on success, drops the stored device
// public key.
func (e *Engine) Unpair(hostID string) error {
	return e.doPair("Unpair", hostID)
}

func (e *Engine) doPair(verb, hostID string) error {
	devicePubKey, err := e.fetchDevicePublicKey()
	if err != nil {
		return errors.Annotate(err, "fetch device public key")
	}

	devicePEM, hostPEM, rootPEM, err := e.authority.PairRecord(devicePubKey)
	if err != nil {
		return errors.Annotate(err, "mint pair record")
	}

	req := plist.NewPairRequest(e.label, verb, plist.PairRecord{
		DeviceCertificate: string(devicePEM),
		HostCertificate:   string(hostPEM),
		RootCertificate:   string(rootPEM),
		HostID:            hostID,
	})

	resp, err := e.roundTrip(req)
	if err != nil {
		return errors.Annotatef(err, "%s exchange", verb)
	}

	switch plist.CheckResult(resp, verb) {
	case plist.Success:
		if verb == "Unpair" {
			if err := e.store.RemoveDevicePublicKey(e.udid); err != nil {
				return errors.Annotate(err, "remove device public key")
			}
		} else if err := e.store.SetDevicePublicKey(e.udid, devicePubKey); err != nil {
			return errors.Annotate(err, "persist device public key")
		}
		logger.Infof("udid=%s, verb=%s, result=success", e.udid, verb)
		return nil
	case plist.Failure:
		reason := plist.Error(resp)
		logger.Warningf("udid=%s, verb=%s, result=failure, error=%s", e.udid, verb, reason)
		if reason == "PasswordProtected" {
			return lderrors.ErrPasswordProtected
		}
		return errors.Annotatef(lderrors.ErrPairingFailed, "%s", reason)
	default:
		return errors.Annotatef(lderrors.ErrPlistError, "malformed %s response", verb)
	}
}

// fetchDevicePublicKey reads the DevicePublicKey field the device
// returns to GetValue. Devices answer with either a data node
// ([]byte) or a string node (PEM text); both are normalized to raw
// bytes here and left to ca.ParseDevicePublicKey to decode further.
func (e *Engine) fetchDevicePublicKey() ([]byte, error) {
	resp, err := e.roundTrip(plist.NewGetValue(e.label, "", "DevicePublicKey"))
	if err != nil {
		return nil, err
	}
	if plist.CheckResult(resp, "GetValue") != plist.Success {
		return nil, errors.Annotate(lderrors.ErrPlistError, "GetValue(DevicePublicKey) failed")
	}

	switch v := resp["Value"].(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.Annotatef(lderrors.ErrPlistError, "unexpected DevicePublicKey value type %T", v)
	}
}

func (e *Engine) roundTrip(req plist.Request) (plist.Response, error) {
	if err := e.transport.SendPlist(req); err != nil {
		return nil, errors.Annotate(err, "send request")
	}
	resp, err := e.transport.ReceivePlist()
	if err != nil {
		return nil, errors.Annotate(err, "receive response")
	}
	return resp, nil
}
