// Package lderrors holds the lockdown protocol's sentinel errors in one
// leaf package so that ca, pairing, transport and the root lockdown
// package can all wrap them without an import cycle. The root package
// re-exports every value here under the same name; callers should
// always write lockdown.ErrXxx, never reach into this package directly.
package lderrors

import "errors"

// Sentinel errors matching the lockdown protocol's error taxonomy.
// Components wrap these with %w so callers can errors.Is/errors.As
// regardless of which layer raised them.
var (
	ErrInvalidArgument      = errors.New("lockdown: invalid argument")
	ErrInvalidConfiguration = errors.New("lockdown: invalid configuration")
	ErrMuxError             = errors.New("lockdown: multiplexer error")
	ErrSslError             = errors.New("lockdown: TLS error")
	ErrPlistError           = errors.New("lockdown: malformed property list")
	ErrNotEnoughData        = errors.New("lockdown: not enough data")
	ErrPairingFailed        = errors.New("lockdown: pairing failed")
	ErrPasswordProtected    = errors.New("lockdown: device is password protected")
	ErrInvalidHostID        = errors.New("lockdown: invalid host id")
	ErrNoRunningSession     = errors.New("lockdown: no running session")
	ErrStartServiceFailed   = errors.New("lockdown: start service failed")
	ErrActivationFailed     = errors.New("lockdown: activation failed")
	ErrUnknown              = errors.New("lockdown: unknown error")
)
