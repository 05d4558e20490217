package ca_test

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/go-phorce/lockdown/ca"
	"github.com/go-phorce/lockdown/internal/testca"
	"github.com/go-phorce/lockdown/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadOrCreateHostIdentity_ProvisionsOnce(t *testing.T) {
	st := store.NewMemStore()

	hi, err := ca.LoadOrCreateHostIdentity(st)
	require.NoError(t, err)
	require.NotNil(t, hi.RootCert)
	require.NotNil(t, hi.HostCert)
	assert.True(t, hi.RootCert.IsCA)

	// the host cert must chain to the root.
	pool := x509.NewCertPool()
	pool.AddCert(hi.RootCert)
	_, err = hi.HostCert.Verify(x509.VerifyOptions{
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	assert.NoError(t, err)

	// a second load against the same store reuses the persisted identity.
	hi2, err := ca.LoadOrCreateHostIdentity(st)
	require.NoError(t, err)
	assert.Equal(t, hi.RootCert.SerialNumber, hi2.RootCert.SerialNumber)
	assert.Equal(t, hi.HostPEM, hi2.HostPEM)
}

func Test_ParseDevicePublicKey_AcceptsPEMAndDER(t *testing.T) {
	pemBytes, key := testca.MustDevicePublicKeyPEM(t)

	pub, err := ca.ParseDevicePublicKey(pemBytes)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.N, pub.N)

	block, _ := pem.Decode(pemBytes)
	require.NotNil(t, block)

	pub2, err := ca.ParseDevicePublicKey(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.N, pub2.N)
}

func Test_ParseDevicePublicKey_RejectsGarbage(t *testing.T) {
	_, err := ca.ParseDevicePublicKey([]byte("not a key"))
	assert.Error(t, err)

	_, err = ca.ParseDevicePublicKey(nil)
	assert.Error(t, err)
}

func Test_IssueDeviceCertificate_ChainsToRoot(t *testing.T) {
	st := store.NewMemStore()
	hi, err := ca.LoadOrCreateHostIdentity(st)
	require.NoError(t, err)

	devicePubPEM, key := testca.MustDevicePublicKeyPEM(t)
	pub, err := ca.ParseDevicePublicKey(devicePubPEM)
	require.NoError(t, err)

	certPEM, err := hi.IssueDeviceCertificate(pub)
	require.NoError(t, err)
	require.NotEmpty(t, certPEM)

	deviceCert := mustParseCertPEM(t, certPEM)
	assert.False(t, deviceCert.IsCA)

	devicePub, ok := deviceCert.PublicKey.(*rsa.PublicKey)
	require.True(t, ok)
	assert.Equal(t, key.PublicKey.N, devicePub.N)

	// the device certificate is signed directly by the root key, per
	// spec.md §4.D step 5 — not by the host certificate.
	pool := x509.NewCertPool()
	pool.AddCert(hi.RootCert)
	_, err = deviceCert.Verify(x509.VerifyOptions{
		Roots:     pool,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	assert.NoError(t, err)
}

func Test_PairRecord_ReturnsAllThreeCerts(t *testing.T) {
	st := store.NewMemStore()
	hi, err := ca.LoadOrCreateHostIdentity(st)
	require.NoError(t, err)

	devicePubPEM, _ := testca.MustDevicePublicKeyPEM(t)

	devicePEM, hostPEM, rootPEM, err := hi.PairRecord(devicePubPEM)
	require.NoError(t, err)
	assert.NotEmpty(t, devicePEM)
	assert.Equal(t, hi.HostPEM, hostPEM)
	assert.Equal(t, hi.RootPEM, rootPEM)
}

func mustParseCertPEM(t *testing.T, certPEM []byte) *x509.Certificate {
	t.Helper()
	block, _ := pem.Decode(certPEM)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return cert
}
