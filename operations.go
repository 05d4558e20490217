package lockdown

import (
	"github.com/go-phorce/lockdown/internal/auditevents"
	"github.com/go-phorce/lockdown/internal/lderrors"
	"github.com/go-phorce/lockdown/plist"
	"github.com/pkg/errors"
)

// GetValue reads a value from the device's preferences. domain and key
// are both optional; an empty domain/key asks for "all domains"/"all
// keys" (GetValue("", "") returns the global preferences dictionary).
func (c *Client) GetValue(domain, key string) (interface{}, error) {
	resp, err := c.roundTrip(plist.NewGetValue(c.label, domain, key))
	if err != nil {
		return nil, errors.WithMessage(err, "GetValue")
	}
	if plist.CheckResult(resp, "GetValue") != plist.Success {
		return nil, errors.WithMessagef(lderrors.ErrPlistError, "GetValue failed: %s", plist.Error(resp))
	}
	return resp["Value"], nil
}

// SetValue writes a value into the device's preferences.
func (c *Client) SetValue(domain, key string, value interface{}) error {
	resp, err := c.roundTrip(plist.NewSetValue(c.label, domain, key, value))
	if err != nil {
		return errors.WithMessage(err, "SetValue")
	}
	if plist.CheckResult(resp, "SetValue") != plist.Success {
		return errors.WithMessagef(lderrors.ErrPlistError, "SetValue failed: %s", plist.Error(resp))
	}
	return nil
}

// RemoveValue deletes a value from the device's preferences.
func (c *Client) RemoveValue(domain, key string) error {
	resp, err := c.roundTrip(plist.NewRemoveValue(c.label, domain, key))
	if err != nil {
		return errors.WithMessage(err, "RemoveValue")
	}
	if plist.CheckResult(resp, "RemoveValue") != plist.Success {
		return errors.WithMessagef(lderrors.ErrPlistError, "RemoveValue failed: %s", plist.Error(resp))
	}
	return nil
}

// StartService asks the device to start an auxiliary service and
// returns the port it is now listening on. Requires an open session.
func (c *Client) StartService(name string) (uint16, error) {
	if c.sessionID == "" {
		return 0, lderrors.ErrNoRunningSession
	}

	resp, err := c.roundTrip(plist.NewStartService(c.label, name))
	if err != nil {
		return 0, errors.WithMessage(err, "StartService")
	}
	if plist.CheckResult(resp, "StartService") != plist.Success {
		return 0, errors.WithMessagef(lderrors.ErrStartServiceFailed, "%s: %s", name, plist.Error(resp))
	}

	port, ok := toUint16(resp["Port"])
	if !ok {
		return 0, errors.WithMessage(lderrors.ErrNotEnoughData, "StartService response missing Port")
	}
	return port, nil
}

// Activate sends the device's activation record. Requires an open session.
func (c *Client) Activate(record map[string]interface{}) error {
	if c.sessionID == "" {
		return lderrors.ErrNoRunningSession
	}
	resp, err := c.roundTrip(plist.NewActivate(c.label, record))
	if err != nil {
		return errors.WithMessage(err, "Activate")
	}
	if plist.CheckResult(resp, "Activate") != plist.Success {
		return errors.WithMessagef(lderrors.ErrActivationFailed, "%s", plist.Error(resp))
	}
	return nil
}

// Deactivate reverts a prior Activate. Requires an open session.
func (c *Client) Deactivate() error {
	if c.sessionID == "" {
		return lderrors.ErrNoRunningSession
	}
	resp, err := c.roundTrip(plist.NewDeactivate(c.label))
	if err != nil {
		return errors.WithMessage(err, "Deactivate")
	}
	if plist.CheckResult(resp, "Deactivate") != plist.Success {
		return errors.WithMessagef(lderrors.ErrUnknown, "Deactivate failed: %s", plist.Error(resp))
	}
	return nil
}

// EnterRecovery asks the device to reboot into recovery mode.
func (c *Client) EnterRecovery() error {
	resp, err := c.roundTrip(plist.NewEnterRecovery(c.label))
	if err != nil {
		return errors.WithMessage(err, "EnterRecovery")
	}
	if plist.CheckResult(resp, "EnterRecovery") != plist.Success {
		return errors.WithMessagef(lderrors.ErrUnknown, "EnterRecovery failed: %s", plist.Error(resp))
	}
	return nil
}

// Goodbye sends the protocol's polite disconnect notice.
func (c *Client) Goodbye() error {
	resp, err := c.roundTrip(plist.NewGoodbye(c.label))
	if err != nil {
		return errors.WithMessage(err, "Goodbye")
	}
	if plist.CheckResult(resp, "Goodbye") != plist.Success {
		return errors.WithMessagef(lderrors.ErrUnknown, "Goodbye failed: %s", plist.Error(resp))
	}
	return nil
}

// Close tears the client down: with a session open, StopSession and
// Goodbye are both sent while TLS is still active, then the TLS session
// is closed (emitting its close_notify) and the underlying transport is
// released last — seed scenario 6's clean-teardown sequence. Every step
// is logged and swallowed, never returned, so resources are always
// released regardless of what the device does.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.sessionID != "" {
		resp, err := c.roundTrip(plist.NewStopSession(c.label, c.sessionID))
		if err != nil {
			logger.Warningf("StopSession during close: %v", err)
		} else if plist.CheckResult(resp, "StopSession") != plist.Success {
			logger.Warningf("StopSession during close failed: %s", plist.Error(resp))
		}
	}
	if err := c.Goodbye(); err != nil {
		logger.Warningf("Goodbye during close: %v", err)
	}

	c.teardownSessionState()
	c.emitAudit(auditevents.Close, "ok")
	if err := c.adapter.Close(); err != nil {
		logger.Warningf("transport close: %v", err)
	}
	return nil
}

// toUint16 accepts the numeric types howett.net/plist may decode a
// Port value into and narrows it to uint16.
func toUint16(v interface{}) (uint16, bool) {
	switch n := v.(type) {
	case uint16:
		return n, true
	case uint64:
		return uint16(n), true
	case int64:
		return uint16(n), true
	case int:
		return uint16(n), true
	case uint32:
		return uint16(n), true
	case int32:
		return uint16(n), true
	default:
		return 0, false
	}
}
