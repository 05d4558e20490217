// Package lockdown is a client for the lockdown control protocol:
// pairing with, and establishing trusted/TLS sessions against, a
// mobile device reachable over a multiplexed byte transport. It is
// the Session Manager component, grounded on dolly's
// xpki/authority/authority.go for its package-level logger/config
// shape and xhttp/retriable.Client for its functional-option
// construction.
package lockdown

import (
	"context"

	"github.com/go-phorce/lockdown/audit"
	"github.com/go-phorce/lockdown/ca"
	"github.com/go-phorce/lockdown/internal/auditevents"
	"github.com/go-phorce/lockdown/internal/lderrors"
	"github.com/go-phorce/lockdown/internal/xlog"
	"github.com/go-phorce/lockdown/pairing"
	"github.com/go-phorce/lockdown/plist"
	"github.com/go-phorce/lockdown/store"
	"github.com/go-phorce/lockdown/transport"
	"github.com/go-phorce/lockdown/tlssession"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var logger = xlog.NewPackageLogger("github.com/go-phorce/lockdown", "lockdown")

// Port is the well-known lockdown service port on the multiplexed
// device bus.
const Port = 0xf27e

// lockdownServiceType is the Type value a well-behaved lockdown service
// echoes back from QueryType.
const lockdownServiceType = "com.apple.mobile.lockdown"

// Client is a single handshake-and-session handle against one device.
// It is not safe for concurrent use: the protocol is strictly
// request/response over one connection, so callers must serialize
// their own access to a handle (cf. SPEC §5's single-strand model).
type Client struct {
	adapter  *transport.Adapter
	store    store.Store
	identity *ca.HostIdentity
	auditor  audit.Auditor
	label    string
	hostID   string
	udid     string

	sessionID  string
	sslEnabled bool
	tlsSession *tlssession.Session

	closed bool
}

// EnsureHostID returns the store's persisted host id, generating and
// persisting a fresh UUID if none exists yet. This is a one-time
// bootstrap step callers run before constructing a Client; NewClient
// itself treats a missing host id as ErrInvalidConfiguration rather
// than silently provisioning one, matching the handshake semantics.
func EnsureHostID(st store.Store) (string, error) {
	id, err := st.HostID()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, store.ErrNotConfigured) {
		return "", errors.WithMessage(err, "load host id")
	}

	id = uuid.NewString()
	if err := st.SetHostID(id); err != nil {
		return "", errors.WithMessage(err, "persist host id")
	}
	logger.Infof("provisioned new host id=%s", id)
	return id, nil
}

// NewClient opens a plain property-list channel over dev and performs
// the full handshake: QueryType, fetch device UDID, load the host id,
// Pair (if this device has never been paired), ValidatePair, and
// StartSession — upgrading to TLS if the device enables session SSL.
func NewClient(dev transport.Device, opts ...Option) (*Client, error) {
	cfg := &clientConfig{label: "lockdown"}
	for _, opt := range opts {
		opt.apply(cfg)
	}

	if cfg.store == nil {
		st, err := store.NewFileStore("")
		if err != nil {
			return nil, errors.WithMessage(err, "open default preference store")
		}
		cfg.store = st
	}

	identity, err := ca.LoadOrCreateHostIdentity(cfg.store)
	if err != nil {
		return nil, errors.WithMessage(err, "load host identity")
	}

	hostID, err := cfg.store.HostID()
	if err != nil {
		if errors.Is(err, store.ErrNotConfigured) {
			return nil, errors.WithMessagef(lderrors.ErrInvalidConfiguration, "host id not provisioned; call lockdown.EnsureHostID first")
		}
		return nil, errors.WithMessage(err, "load host id")
	}

	c := &Client{
		adapter:  transport.New(dev, cfg.label),
		store:    cfg.store,
		identity: identity,
		auditor:  cfg.auditor,
		label:    cfg.label,
		hostID:   hostID,
	}

	if err := c.handshake(); err != nil {
		_ = c.adapter.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake() error {
	resp, err := c.roundTrip(plist.NewQueryType(c.label))
	if err != nil {
		return errors.WithMessage(err, "QueryType")
	}
	if t, _ := resp["Type"].(string); t != "" && t != lockdownServiceType {
		logger.Warningf("QueryType returned unexpected Type=%q, continuing", t)
	}

	udid, err := c.fetchUDID()
	if err != nil {
		return errors.WithMessage(err, "fetch device udid")
	}
	c.udid = udid

	engine := pairing.NewEngine(c.adapter, c.identity, c.store, c.udid, c.label)

	if !c.store.HasDevicePublicKey(c.udid) {
		if err := engine.Pair(c.hostID); err != nil {
			c.emitAudit(auditevents.Pair, "failed: %v", err)
			return errors.WithMessage(err, "pair")
		}
		c.emitAudit(auditevents.Pair, "ok")
	}
	if err := engine.ValidatePair(c.hostID); err != nil {
		c.emitAudit(auditevents.ValidatePair, "failed: %v", err)
		return errors.WithMessage(err, "validate pair")
	}
	c.emitAudit(auditevents.ValidatePair, "ok")

	sessionID, sslEnabled, err := c.StartSession()
	if err != nil {
		c.emitAudit(auditevents.StartSession, "failed: %v", err)
		return errors.WithMessage(err, "start session")
	}
	_ = sessionID // already stored on c by StartSession
	c.emitAudit(auditevents.StartSession, "ok sessionID=%s sslEnabled=%t", sessionID, sslEnabled)

	if sslEnabled {
		if err := c.upgradeTLS(context.Background()); err != nil {
			c.emitAudit(auditevents.TLSUpgrade, "failed: %v", err)
			return errors.WithMessage(err, "tls upgrade")
		}
		c.emitAudit(auditevents.TLSUpgrade, "ok")
	}
	return nil
}

// emitAudit records a lifecycle event for this handle if an auditor was
// configured via WithAuditor; a no-op otherwise. udid/hostID identify
// the device/host pair the event pertains to.
func (c *Client) emitAudit(evt auditevents.EventType, format string, args ...interface{}) {
	if c.auditor == nil {
		return
	}
	c.auditor.Event(audit.New(c.hostID, c.udid, auditevents.ClientSource, evt, format, args...))
}

// fetchUDID retrieves the device's unique identifier, the one piece of
// device state the Session Manager needs before pairing can proceed.
func (c *Client) fetchUDID() (string, error) {
	resp, err := c.roundTrip(plist.NewGetValue(c.label, "", "UniqueDeviceID"))
	if err != nil {
		return "", err
	}
	if plist.CheckResult(resp, "GetValue") != plist.Success {
		return "", errors.WithMessagef(lderrors.ErrPlistError, "GetValue(UniqueDeviceID) failed: %s", plist.Error(resp))
	}
	udid, ok := resp["Value"].(string)
	if !ok || udid == "" {
		return "", errors.WithMessage(lderrors.ErrNotEnoughData, "missing UniqueDeviceID in response")
	}
	return udid, nil
}

// roundTrip sends req and waits for the matching response, over
// whichever I/O mode (plaintext or TLS) is currently active.
func (c *Client) roundTrip(req plist.Request) (plist.Response, error) {
	if c.sslEnabled {
		if err := c.adapter.SendEncryptedPlist(req); err != nil {
			return nil, errors.WithMessage(lderrors.ErrSslError, err.Error())
		}
		resp, err := c.adapter.ReceiveEncryptedPlist()
		if err != nil {
			return nil, errors.WithMessage(lderrors.ErrSslError, err.Error())
		}
		return resp, nil
	}

	if err := c.adapter.SendPlist(req); err != nil {
		return nil, errors.WithMessage(lderrors.ErrMuxError, err.Error())
	}
	resp, err := c.adapter.ReceivePlist()
	if err != nil {
		return nil, errors.WithMessage(lderrors.ErrMuxError, err.Error())
	}
	return resp, nil
}
