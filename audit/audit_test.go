package audit

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSource int

const (
	srcFoo testSource = iota
	srcBar
)

func (i testSource) ID() int {
	return int(i)
}

func (i testSource) String() string {
	return "src" + strconv.Itoa(int(i))
}

type testEventType int

const (
	evtBar testEventType = iota
	evtFoo
)

func (i testEventType) ID() int {
	return int(i)
}

func (i testEventType) String() string {
	return "type" + strconv.Itoa(int(i))
}

func Test_Eventf(t *testing.T) {
	a := auditor{}
	a.Event(New("alice/alice1-1", "Context-1", srcBar, evtFoo, "%s.%d", "HASH", 123))
	require.NotNil(t, a.event)
	e := a.event
	assert.Equal(t, "alice/alice1-1", e.Identity())
	assert.Equal(t, "Context-1", e.ContextID())
	assert.Equal(t, srcBar, e.Source())
	assert.Equal(t, evtFoo, e.EventType())
	assert.Equal(t, "HASH.123", e.Message())
}

type auditor struct {
	event Event
}

func (a *auditor) Event(e Event) {
	a.event = e
}

func (a *auditor) Close() error {
	return nil
}
