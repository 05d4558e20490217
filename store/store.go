// Package store persists the host preference data the lockdown client
// needs across runs: the host's UUID, its root/host key and certificate
// material, and the set of device public keys recorded by prior
// pairings. It is deliberately "dumb" — no crypto lives here, only byte
// slots — so that the Certificate Authority component (which does own
// the crypto) can depend on it without an import cycle.
//
// This is the host-side preference storage spec.md §6 lists as an
// external collaborator; FileStore is the concrete default
// implementation this module ships so the client is runnable end to
// end, grounded on dolly's fileutil helpers for path/schema resolution.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-phorce/lockdown/internal/fileutil"
	"github.com/juju/errors"
)

// Store is the preference-store interface the Certificate Authority,
// Pairing Engine, and Session Manager components consume.
type Store interface {
	// HostID returns the persisted host installation id, or
	// ErrNotConfigured if none has been set yet.
	HostID() (string, error)
	SetHostID(id string) error

	// KeysAndCerts returns the host's persisted root/host key and
	// certificate material. All four are empty (with a nil error) if
	// nothing has been provisioned yet; the Certificate Authority
	// component is responsible for generating and persisting them via
	// SetKeysAndCerts on first use.
	KeysAndCerts() (rootKey, rootCert, hostKey, hostCert []byte, err error)
	SetKeysAndCerts(rootKey, rootCert, hostKey, hostCert []byte) error

	// CertsAsPEM returns just the root/host certificate PEM blobs,
	// mirroring the source library's narrower accessor of the same name.
	CertsAsPEM() (rootPEM, hostPEM []byte, err error)

	HasDevicePublicKey(udid string) bool
	SetDevicePublicKey(udid string, pem []byte) error
	RemoveDevicePublicKey(udid string) error
}

// ErrNotConfigured is returned by HostID when no host id has been
// persisted yet.
var ErrNotConfigured = errors.New("host preference store is not configured")

// document is the on-disk shape of one host's preference file.
type document struct {
	HostID            string            `json:"host_id,omitempty"`
	RootKey           []byte            `json:"root_key,omitempty"`
	RootCert          []byte            `json:"root_cert,omitempty"`
	HostKey           []byte            `json:"host_key,omitempty"`
	HostCert          []byte            `json:"host_cert,omitempty"`
	DevicePublicKeys  map[string][]byte `json:"device_public_keys,omitempty"`
}

// FileStore is a single JSON document on disk, guarded by an in-process
// mutex; SetKeysAndCerts additionally takes an O_CREATE|O_EXCL lock file
// alongside the document so that two *processes* racing to provision
// the host identity for the first time don't clobber each other's
// material (see SPEC_FULL.md §5).
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a FileStore backed by a document at dir/lockdown.json,
// creating dir if necessary. An empty dir defaults to "~/.lockdown".
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := fileutil.HomeDir()
		if err != nil {
			return nil, errors.Annotate(err, "resolve home directory")
		}
		dir = filepath.Join(home, ".lockdown")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Annotate(err, "create store directory")
	}
	return &FileStore{path: filepath.Join(dir, "lockdown.json")}, nil
}

func (s *FileStore) load() (document, error) {
	var doc document
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		doc.DevicePublicKeys = map[string][]byte{}
		return doc, nil
	}
	if err != nil {
		return doc, errors.Annotate(err, "read store")
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return doc, errors.Annotate(err, "parse store")
	}
	if doc.DevicePublicKeys == nil {
		doc.DevicePublicKeys = map[string][]byte{}
	}
	return doc, nil
}

func (s *FileStore) save(doc document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Annotate(err, "marshal store")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return errors.Annotate(err, "write store")
	}
	return errors.Annotate(os.Rename(tmp, s.path), "replace store")
}

// HostID implements Store.
func (s *FileStore) HostID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return "", err
	}
	if doc.HostID == "" {
		return "", ErrNotConfigured
	}
	return doc.HostID, nil
}

// SetHostID implements Store.
func (s *FileStore) SetHostID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.HostID = id
	return s.save(doc)
}

// KeysAndCerts implements Store.
func (s *FileStore) KeysAndCerts() (rootKey, rootCert, hostKey, hostCert []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return doc.RootKey, doc.RootCert, doc.HostKey, doc.HostCert, nil
}

// SetKeysAndCerts implements Store. Called once per process, by
// ca.LoadOrCreateHostIdentity on first provisioning. Two processes can
// race to generate and persist the host identity concurrently, so the
// read-check-write is serialized across processes with a lock file
// (see lockProvisioning): the loser finds the root cert already
// populated once it acquires the lock and leaves the winner's material
// in place instead of overwriting it with its own freshly generated
// (and now-discarded) keys.
func (s *FileStore) SetKeysAndCerts(rootKey, rootCert, hostKey, hostCert []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockProvisioning()
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if len(doc.RootCert) > 0 {
		return nil
	}
	doc.RootKey, doc.RootCert, doc.HostKey, doc.HostCert = rootKey, rootCert, hostKey, hostCert
	return s.save(doc)
}

// lockProvisioning acquires an exclusive O_CREATE|O_EXCL lock file
// alongside the store document for the duration of a first-time
// provisioning write, retrying briefly if another process currently
// holds it, and returns a func to release it. This is the "exclusive
// file lock during creation" spec.md §9 requires for concurrent
// first-time host identity initialization across processes.
func (s *FileStore) lockProvisioning() (unlock func(), err error) {
	lockPath := s.path + ".lock"
	const (
		attempts = 50
		backoff  = 100 * time.Millisecond
	)

	var f *os.File
	for i := 0; i < attempts; i++ {
		f, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			return func() {
				f.Close()
				os.Remove(lockPath)
			}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Annotate(err, "acquire provisioning lock")
		}
		time.Sleep(backoff)
	}
	return nil, errors.Annotate(err, "provisioning lock held by another process")
}

// CertsAsPEM implements Store.
func (s *FileStore) CertsAsPEM() (rootPEM, hostPEM []byte, err error) {
	_, rootCert, _, hostCert, err := s.KeysAndCerts()
	return rootCert, hostCert, err
}

// HasDevicePublicKey implements Store.
func (s *FileStore) HasDevicePublicKey(udid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return false
	}
	_, ok := doc.DevicePublicKeys[udid]
	return ok
}

// SetDevicePublicKey implements Store.
func (s *FileStore) SetDevicePublicKey(udid string, pem []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.DevicePublicKeys[udid] = pem
	return s.save(doc)
}

// RemoveDevicePublicKey implements Store.
func (s *FileStore) RemoveDevicePublicKey(udid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	delete(doc.DevicePublicKeys, udid)
	return s.save(doc)
}
