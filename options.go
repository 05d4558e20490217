package lockdown

import (
	"github.com/go-phorce/lockdown/audit"
	"github.com/go-phorce/lockdown/store"
)

// Option configures a Client constructed by NewClient, in the same
// functional-option style as dolly's xhttp/retriable.Client.
type Option interface {
	apply(*clientConfig)
}

type clientConfig struct {
	label   string
	store   store.Store
	auditor audit.Auditor
}

type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// WithLabel sets the diagnostic label echoed in every outbound request.
func WithLabel(label string) Option {
	return optionFunc(func(c *clientConfig) { c.label = label })
}

// WithStore overrides the default on-disk preference store (~/.lockdown),
// e.g. to inject a store.MemStore in tests.
func WithStore(st store.Store) Option {
	return optionFunc(func(c *clientConfig) { c.store = st })
}

// WithAuditor records Pair/Session lifecycle events to aud as the
// handshake and teardown progress. Unset by default, in which case no
// audit trail is raised.
func WithAuditor(aud audit.Auditor) Option {
	return optionFunc(func(c *clientConfig) { c.auditor = aud })
}
