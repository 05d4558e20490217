package lockdown

import "github.com/go-phorce/lockdown/internal/lderrors"

// Sentinel errors for the lockdown protocol's error taxonomy. ca and
// pairing wrap these same values (via internal/lderrors, to avoid an
// import cycle back into this package) rather than minting their own,
// so callers can errors.Is/errors.As a returned error regardless of
// which component raised it.
var (
	ErrInvalidArgument      = lderrors.ErrInvalidArgument
	ErrInvalidConfiguration = lderrors.ErrInvalidConfiguration
	ErrMuxError             = lderrors.ErrMuxError
	ErrSslError             = lderrors.ErrSslError
	ErrPlistError           = lderrors.ErrPlistError
	ErrNotEnoughData        = lderrors.ErrNotEnoughData
	ErrPairingFailed        = lderrors.ErrPairingFailed
	ErrPasswordProtected    = lderrors.ErrPasswordProtected
	ErrInvalidHostID        = lderrors.ErrInvalidHostID
	ErrNoRunningSession     = lderrors.ErrNoRunningSession
	ErrStartServiceFailed   = lderrors.ErrStartServiceFailed
	ErrActivationFailed     = lderrors.ErrActivationFailed
	ErrUnknown              = lderrors.ErrUnknown
)
