package lockdown

import (
	"context"

	"github.com/go-phorce/lockdown/internal/lderrors"
	"github.com/go-phorce/lockdown/plist"
	"github.com/go-phorce/lockdown/tlssession"
	"github.com/pkg/errors"
)

// StartSession opens a lockdown session, returning the session id the
// device assigned and whether the device requested a TLS upgrade. If a
// session is already open on this handle, it is stopped first.
func (c *Client) StartSession() (sessionID string, sslEnabled bool, err error) {
	if c.sessionID != "" {
		if err := c.StopSession(); err != nil {
			return "", false, errors.WithMessage(err, "stop previous session")
		}
	}

	resp, err := c.roundTrip(plist.NewStartSession(c.label, c.hostID))
	if err != nil {
		return "", false, errors.WithMessage(err, "StartSession")
	}

	switch plist.CheckResult(resp, "StartSession") {
	case plist.Success:
		sid, ok := resp["SessionID"].(string)
		if !ok || sid == "" {
			return "", false, errors.WithMessage(lderrors.ErrNotEnoughData, "StartSession response missing SessionID")
		}
		enableSSL, _ := resp["EnableSessionSSL"].(bool)

		c.sessionID = sid
		c.sslEnabled = false // TLS is armed only once the handshake actually completes
		return sid, enableSSL, nil
	case plist.Failure:
		reason := plist.Error(resp)
		if reason == "InvalidHostID" {
			return "", false, lderrors.ErrInvalidHostID
		}
		return "", false, errors.WithMessagef(lderrors.ErrUnknown, "StartSession failed: %s", reason)
	default:
		return "", false, errors.WithMessage(lderrors.ErrPlistError, "malformed StartSession response")
	}
}

// upgradeTLS drives the TLS Driver to completion over the same
// underlying connection and installs the result as the adapter's
// encrypted I/O, per StartSession's EnableSessionSSL contract.
func (c *Client) upgradeTLS(ctx context.Context) error {
	session, err := tlssession.Handshake(ctx, c.adapter, tlssession.Config{
		HostCert: c.identity.TLSCertificate(),
		RootCert: c.identity.RootCert,
		// Device cert trust is established by the pairing ceremony, not
		// by chain validation: ValidatePair already confirmed the
		// device holds the private key matching the public key we
		// store locally, and the issued device cert carries no SANs to
		// verify a ServerName against anyway.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return errors.WithMessage(lderrors.ErrSslError, err.Error())
	}
	c.tlsSession = session
	c.adapter.UseTLS(session.Conn())
	c.sslEnabled = true
	return nil
}

// StopSession sends StopSession, then unconditionally tears down any
// TLS state and clears the local session id, regardless of the
// server's response.
func (c *Client) StopSession() error {
	if c.sessionID == "" {
		return nil
	}

	resp, err := c.roundTrip(plist.NewStopSession(c.label, c.sessionID))
	if err != nil {
		logger.Warningf("StopSession transport error (cleaning up locally): %v", err)
	} else if plist.CheckResult(resp, "StopSession") != plist.Success {
		logger.Warningf("StopSession failed: %s", plist.Error(resp))
	}

	c.teardownSessionState()
	return nil
}

// teardownSessionState clears local session/TLS bookkeeping without
// sending anything on the wire; StopSession uses it after its own wire
// exchange, and Close uses it only once StopSession *and* Goodbye have
// both gone out over the still-open TLS session, per SPEC §8 scenario 6.
func (c *Client) teardownSessionState() {
	c.sessionID = ""
	c.sslEnabled = false
	c.adapter.ClearEncryptedIO()
	if c.tlsSession != nil {
		if err := c.tlsSession.Close(); err != nil {
			logger.Warningf("tls close error during teardown: %v", err)
		}
		c.tlsSession = nil
	}
}
