package transport

import "net"

// PipeDevice is an in-memory Device backed by net.Pipe, used by this
// module's own tests and by callers who want to exercise the client
// against a scripted fake device without a real USB multiplexer. It
// satisfies net.Conn, so it can also stand in directly for tlssession's
// connAdapter in tests.
type PipeDevice struct {
	net.Conn
}

// NewPipeDevicePair returns two connected PipeDevices: one for the
// client side (Adapter), one for a test harness playing the device.
func NewPipeDevicePair() (client *PipeDevice, device *PipeDevice) {
	c, d := net.Pipe()
	return &PipeDevice{Conn: c}, &PipeDevice{Conn: d}
}
