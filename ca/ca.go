// Package ca is the Certificate Authority component of the lockdown
// client: it owns the host's root/host key pair, lazily provisions it
// on first use, and issues the per-device leaf certificate the pairing
// engine hands back to the device. Grounded on dolly's
// xpki/authority/issuer.go and xpki/csrprov/cfssl.go, built on cfssl
// rather than dolly's own cryptoprov abstraction since this module has
// no HSM/PKCS#11 requirement to justify that layer.
package ca

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"time"

	"github.com/cloudflare/cfssl/csr"
	"github.com/cloudflare/cfssl/helpers"
	"github.com/cloudflare/cfssl/initca"
	"github.com/cloudflare/cfssl/signer"
	"github.com/cloudflare/cfssl/signer/local"
	"github.com/go-phorce/lockdown/certutil"
	"github.com/go-phorce/lockdown/internal/lderrors"
	"github.com/go-phorce/lockdown/internal/xlog"
	"github.com/go-phorce/lockdown/store"
	"github.com/pkg/errors"
)

var logger = xlog.NewPackageLogger("lockdown", "ca")

const (
	rootCommonName   = "lockdown Root CA"
	hostCommonName   = "lockdown Host"
	deviceCommonName = "lockdown Device"
	deviceValidity   = 10 * 365 * 24 * time.Hour
)

// HostIdentity is the host's persistent key material: a self-signed
// root, and a host certificate signed by that root. The pairing engine
// presents the host and root certificates to devices; IssueDeviceCertificate
// uses the root key to sign the device's leaf.
type HostIdentity struct {
	RootCert *x509.Certificate
	RootPEM  []byte
	RootKey  crypto.Signer

	HostCert *x509.Certificate
	HostPEM  []byte
	HostKey  crypto.Signer
}

// LoadOrCreateHostIdentity loads the host's root/host key and
// certificate material from st, generating and persisting it on first
// use. Safe to call once per process; st is responsible for
// serializing concurrent first-time provisioning across processes.
func LoadOrCreateHostIdentity(st store.Store) (*HostIdentity, error) {
	rootKeyPEM, rootCertPEM, hostKeyPEM, hostCertPEM, err := st.KeysAndCerts()
	if err != nil {
		return nil, errors.WithMessage(err, "load host identity")
	}

	if len(rootCertPEM) == 0 || len(hostCertPEM) == 0 {
		logger.Infof("provisioning new host identity")
		genRootKeyPEM, genRootCertPEM, genHostKeyPEM, genHostCertPEM, genErr := generateHostIdentity()
		if genErr != nil {
			return nil, errors.WithMessage(genErr, "generate host identity")
		}
		if err := st.SetKeysAndCerts(genRootKeyPEM, genRootCertPEM, genHostKeyPEM, genHostCertPEM); err != nil {
			return nil, errors.WithMessage(err, "persist host identity")
		}

		// Another process may have won the race to provision first;
		// re-read rather than trust our own generated material, so a
		// losing process adopts whatever actually landed on disk (see
		// store.FileStore.SetKeysAndCerts).
		rootKeyPEM, rootCertPEM, hostKeyPEM, hostCertPEM, err = st.KeysAndCerts()
		if err != nil {
			return nil, errors.WithMessage(err, "reload host identity after provisioning")
		}
	}

	return parseHostIdentity(rootKeyPEM, rootCertPEM, hostKeyPEM, hostCertPEM)
}

// generateHostIdentity creates a fresh self-signed root and a host
// leaf signed by it, via cfssl's initca + local signer, mirroring the
// dolly CLI's own CA-bootstrap path (cmd/dollypki/csr genkey --initca).
func generateHostIdentity() (rootKeyPEM, rootCertPEM, hostKeyPEM, hostCertPEM []byte, err error) {
	rootReq := &csr.CertificateRequest{
		CN:         rootCommonName,
		KeyRequest: csr.NewKeyRequest(),
		CA:         &csr.CAConfig{PathLength: 1, Expiry: "87600h"}, // 10y
	}
	rootCertPEM, _, rootKeyPEM, err = initca.New(rootReq)
	if err != nil {
		return nil, nil, nil, nil, errors.WithMessage(err, "initca: generate root")
	}

	rootCert, err := helpers.ParseCertificatePEM(rootCertPEM)
	if err != nil {
		return nil, nil, nil, nil, errors.WithMessage(err, "parse generated root cert")
	}
	rootKey, err := helpers.ParsePrivateKeyPEM(rootKeyPEM)
	if err != nil {
		return nil, nil, nil, nil, errors.WithMessage(err, "parse generated root key")
	}

	hostReq := &csr.CertificateRequest{
		CN:         hostCommonName,
		KeyRequest: csr.NewKeyRequest(),
	}
	hostCSRPEM, hostKeyPEM, err := csr.ParseRequest(hostReq)
	if err != nil {
		return nil, nil, nil, nil, errors.WithMessage(err, "generate host CSR")
	}

	policy := initca.CAPolicy()
	policy.Default.Expiry = deviceValidity
	policy.Default.ExpiryString = "87600h"

	localSigner, err := local.NewSigner(rootKey, rootCert, signer.DefaultSigAlgo(rootKey), policy)
	if err != nil {
		return nil, nil, nil, nil, errors.WithMessage(err, "construct local signer")
	}

	hostCertPEM, err = localSigner.Sign(signer.SignRequest{Request: string(hostCSRPEM)})
	if err != nil {
		return nil, nil, nil, nil, errors.WithMessage(err, "sign host certificate")
	}

	return rootKeyPEM, rootCertPEM, hostKeyPEM, hostCertPEM, nil
}

// parseHostIdentity reconstructs a HostIdentity from persisted PEM
// material, including the root key IssueDeviceCertificate signs with
// (spec.md §4.D step 5: the device certificate is signed by the root
// key, not the host key).
func parseHostIdentity(rootKeyPEM, rootCertPEM, hostKeyPEM, hostCertPEM []byte) (*HostIdentity, error) {
	rootCert, err := helpers.ParseCertificatePEM(rootCertPEM)
	if err != nil {
		return nil, errors.WithMessage(lderrors.ErrInvalidConfiguration, "parse persisted root cert: "+err.Error())
	}
	rootKey, err := helpers.ParsePrivateKeyPEM(rootKeyPEM)
	if err != nil {
		return nil, errors.WithMessage(lderrors.ErrInvalidConfiguration, "parse persisted root key: "+err.Error())
	}
	hostCert, err := helpers.ParseCertificatePEM(hostCertPEM)
	if err != nil {
		return nil, errors.WithMessage(lderrors.ErrInvalidConfiguration, "parse persisted host cert: "+err.Error())
	}
	hostKey, err := helpers.ParsePrivateKeyPEM(hostKeyPEM)
	if err != nil {
		return nil, errors.WithMessage(lderrors.ErrInvalidConfiguration, "parse persisted host key: "+err.Error())
	}

	return &HostIdentity{
		RootCert: rootCert,
		RootPEM:  rootCertPEM,
		RootKey:  rootKey,
		HostCert: hostCert,
		HostPEM:  hostCertPEM,
		HostKey:  hostKey,
	}, nil
}

// TLSCertificate returns the host identity as a tls.Certificate (host
// leaf + root in the chain, host key as the signer), ready to install
// on a tls.Config.Certificates for the TLS Driver's handshake.
func (hi *HostIdentity) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{hi.HostCert.Raw, hi.RootCert.Raw},
		PrivateKey:  hi.HostKey,
		Leaf:        hi.HostCert,
	}
}

// ParseDevicePublicKey decodes a device's raw public key, returned
// from the DevicePublicKey field of a pairing request. Devices may
// send this PEM-wrapped or, per the open question in the source
// protocol, as a bare DER blob; both are accepted.
func ParseDevicePublicKey(pemOrDER []byte) (*rsa.PublicKey, error) {
	if len(pemOrDER) == 0 {
		return nil, errors.WithMessage(lderrors.ErrInvalidArgument, "empty device public key")
	}

	der := pemOrDER
	if block, _ := pem.Decode(pemOrDER); block != nil {
		der = block.Bytes
	}

	if pub, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return pub, nil
	}

	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errors.WithMessage(lderrors.ErrInvalidArgument, "parse device public key: "+err.Error())
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.WithMessagef(lderrors.ErrInvalidArgument, "device public key is %T, not RSA", pub)
	}
	return rsaPub, nil
}

// IssueDeviceCertificate signs a leaf certificate over the device's raw
// public key with the host's root key (spec.md §4.D step 5: "Signed by
// the root key"), mirroring the source protocol's device/host
// certificates as siblings both anchored to the same root rather than
// the device chaining through the host cert. Go's x509.CreateCertificate
// accepts a bare crypto.PublicKey for the certificate subject, so no CSR
// (and no "fake private key" workaround) is needed from the device side.
func (hi *HostIdentity) IssueDeviceCertificate(pub *rsa.PublicKey) ([]byte, error) {
	if pub == nil {
		return nil, errors.WithMessage(lderrors.ErrInvalidArgument, "nil device public key")
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: deviceCommonName},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(deviceValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		IsCA:         false,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, hi.RootCert, pub, hi.RootKey)
	if err != nil {
		return nil, errors.WithMessage(err, "issue device certificate")
	}

	logger.Infof("issued device certificate: %s", certutil.NameToString(template.Subject))
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), nil
}

// PairRecord assembles the three certificates a pairing response must
// carry: the freshly issued device certificate, and the host's own
// host/root certificates so the device can validate future TLS
// sessions against them.
func (hi *HostIdentity) PairRecord(devicePubKey []byte) (devicePEM, hostPEM, rootPEM []byte, err error) {
	pub, err := ParseDevicePublicKey(devicePubKey)
	if err != nil {
		return nil, nil, nil, err
	}

	devicePEM, err = hi.IssueDeviceCertificate(pub)
	if err != nil {
		return nil, nil, nil, err
	}

	return devicePEM, hi.HostPEM, hi.RootPEM, nil
}
