package pairing_test

import (
	"errors"
	"testing"

	"github.com/go-phorce/lockdown/internal/lderrors"
	"github.com/go-phorce/lockdown/pairing"
	"github.com/go-phorce/lockdown/plist"
	"github.com/go-phorce/lockdown/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport replays one response per queued request verb, mirroring
// the GetValue(DevicePublicKey) -> Pair round trip the Pairing Engine drives.
type fakeTransport struct {
	responses []plist.Response
	sent      []plist.Request
	next      int
}

func (f *fakeTransport) SendPlist(req plist.Request) error {
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeTransport) ReceivePlist() (plist.Response, error) {
	if f.next >= len(f.responses) {
		return nil, errors.New("fakeTransport: no more responses queued")
	}
	resp := f.responses[f.next]
	f.next++
	return resp, nil
}

type fakeAuthority struct {
	err error
}

func (f *fakeAuthority) PairRecord(devicePubKey []byte) ([]byte, []byte, []byte, error) {
	if f.err != nil {
		return nil, nil, nil, f.err
	}
	return []byte("device-pem"), []byte("host-pem"), []byte("root-pem"), nil
}

func Test_Pair_Success_PersistsDevicePublicKey(t *testing.T) {
	tr := &fakeTransport{responses: []plist.Response{
		{"Request": "GetValue", "Result": "Success", "Value": []byte("raw-pubkey")},
		{"Request": "Pair", "Result": "Success"},
	}}
	st := store.NewMemStore()
	eng := pairing.NewEngine(tr, &fakeAuthority{}, st, "udid-1", "lockdown-test")

	err := eng.Pair("host-1")
	require.NoError(t, err)
	assert.True(t, st.HasDevicePublicKey("udid-1"))
}

func Test_Unpair_Success_RemovesDevicePublicKey(t *testing.T) {
	tr := &fakeTransport{responses: []plist.Response{
		{"Request": "GetValue", "Result": "Success", "Value": "raw-pubkey-pem"},
		{"Request": "Unpair", "Result": "Success"},
	}}
	st := store.NewMemStore()
	require.NoError(t, st.SetDevicePublicKey("udid-1", []byte("stale")))

	eng := pairing.NewEngine(tr, &fakeAuthority{}, st, "udid-1", "")
	require.NoError(t, eng.Unpair("host-1"))
	assert.False(t, st.HasDevicePublicKey("udid-1"))
}

func Test_Pair_PasswordProtected(t *testing.T) {
	tr := &fakeTransport{responses: []plist.Response{
		{"Request": "GetValue", "Result": "Success", "Value": []byte("raw-pubkey")},
		{"Request": "Pair", "Result": "Failure", "Error": "PasswordProtected"},
	}}
	st := store.NewMemStore()
	eng := pairing.NewEngine(tr, &fakeAuthority{}, st, "udid-1", "")

	err := eng.Pair("host-1")
	assert.ErrorIs(t, err, lderrors.ErrPasswordProtected)
	assert.False(t, st.HasDevicePublicKey("udid-1"))
}

func Test_Pair_GenericFailure(t *testing.T) {
	tr := &fakeTransport{responses: []plist.Response{
		{"Request": "GetValue", "Result": "Success", "Value": []byte("raw-pubkey")},
		{"Request": "Pair", "Result": "Failure", "Error": "SomethingElse"},
	}}
	st := store.NewMemStore()
	eng := pairing.NewEngine(tr, &fakeAuthority{}, st, "udid-1", "")

	err := eng.Pair("host-1")
	assert.ErrorIs(t, err, lderrors.ErrPairingFailed)
}

func Test_ValidatePair_UnknownHost_Fails(t *testing.T) {
	tr := &fakeTransport{responses: []plist.Response{
		{"Request": "GetValue", "Result": "Success", "Value": []byte("raw-pubkey")},
		{"Request": "ValidatePair", "Result": "Failure", "Error": "InvalidHostID"},
	}}
	st := store.NewMemStore()
	eng := pairing.NewEngine(tr, &fakeAuthority{}, st, "udid-1", "")

	err := eng.ValidatePair("unknown-host")
	assert.ErrorIs(t, err, lderrors.ErrPairingFailed)
}

func Test_Pair_MalformedResponse_VerbMismatch(t *testing.T) {
	tr := &fakeTransport{responses: []plist.Response{
		{"Request": "GetValue", "Result": "Success", "Value": []byte("raw-pubkey")},
		{"Request": "SomeOtherVerb", "Result": "Success"},
	}}
	st := store.NewMemStore()
	eng := pairing.NewEngine(tr, &fakeAuthority{}, st, "udid-1", "")

	err := eng.Pair("host-1")
	assert.ErrorIs(t, err, lderrors.ErrPlistError)
}

func Test_Pair_AuthorityError_Propagates(t *testing.T) {
	tr := &fakeTransport{responses: []plist.Response{
		{"Request": "GetValue", "Result": "Success", "Value": []byte("raw-pubkey")},
	}}
	st := store.NewMemStore()
	boom := errors.New("crypto boom")
	eng := pairing.NewEngine(tr, &fakeAuthority{err: boom}, st, "udid-1", "")

	err := eng.Pair("host-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
