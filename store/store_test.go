package store_test

import (
	"path/filepath"
	"testing"

	"github.com/go-phorce/lockdown/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_FileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewFileStore(dir)
	require.NoError(t, err)

	_, err = s.HostID()
	assert.ErrorIs(t, err, store.ErrNotConfigured)

	require.NoError(t, s.SetHostID("host-1"))
	id, err := s.HostID()
	require.NoError(t, err)
	assert.Equal(t, "host-1", id)

	require.NoError(t, s.SetKeysAndCerts([]byte("rk"), []byte("rc"), []byte("hk"), []byte("hc")))
	rk, rc, hk, hc, err := s.KeysAndCerts()
	require.NoError(t, err)
	assert.Equal(t, []byte("rk"), rk)
	assert.Equal(t, []byte("rc"), rc)
	assert.Equal(t, []byte("hk"), hk)
	assert.Equal(t, []byte("hc"), hc)

	assert.False(t, s.HasDevicePublicKey("udid-1"))
	require.NoError(t, s.SetDevicePublicKey("udid-1", []byte("pub-pem")))
	assert.True(t, s.HasDevicePublicKey("udid-1"))
	require.NoError(t, s.RemoveDevicePublicKey("udid-1"))
	assert.False(t, s.HasDevicePublicKey("udid-1"))

	// a second handle to the same directory observes persisted state.
	s2, err := store.NewFileStore(dir)
	require.NoError(t, err)
	id2, err := s2.HostID()
	require.NoError(t, err)
	assert.Equal(t, "host-1", id2)

	assert.FileExists(t, filepath.Join(dir, "lockdown.json"))
}

func Test_FileStore_SetKeysAndCerts_DoesNotClobberExisting(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.SetKeysAndCerts([]byte("rk1"), []byte("rc1"), []byte("hk1"), []byte("hc1")))

	// A second call, simulating a process that lost the provisioning
	// race after generating its own (now-discarded) material, must not
	// overwrite what is already on disk.
	require.NoError(t, s.SetKeysAndCerts([]byte("rk2"), []byte("rc2"), []byte("hk2"), []byte("hc2")))

	rk, rc, hk, hc, err := s.KeysAndCerts()
	require.NoError(t, err)
	assert.Equal(t, []byte("rk1"), rk)
	assert.Equal(t, []byte("rc1"), rc)
	assert.Equal(t, []byte("hk1"), hk)
	assert.Equal(t, []byte("hc1"), hc)

	// The provisioning lock file is released, not left behind.
	assert.NoFileExists(t, filepath.Join(dir, "lockdown.json.lock"))
}

func Test_MemStore_RoundTrip(t *testing.T) {
	s := store.NewMemStore()
	_, err := s.HostID()
	assert.ErrorIs(t, err, store.ErrNotConfigured)
	require.NoError(t, s.SetHostID("h"))
	id, err := s.HostID()
	require.NoError(t, err)
	assert.Equal(t, "h", id)
}
