package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const (
	// FilePerms restricts token files to owner-only read/write.
	FilePerms = 0o600
	// DirPerms is used when creating the token directory.
	DirPerms = 0o700
)

// ErrCredentialNotFound is returned by a StorageBackend when nothing is stored under a key.
var ErrCredentialNotFound = errors.New("credential not found")

// StorageBackend defines the interface for credential storage
type StorageBackend interface {
	Save(key string, data []byte) error
	Load(key string) ([]byte, error)
	Delete(key string) error
	Name() string
}

// credentialDocument is the persisted shape of a credential.
type credentialDocument struct {
	Token *oauth2.Token `json:"token"`
}

func encodeToken(tok *oauth2.Token) ([]byte, error) {
	data, err := json.MarshalIndent(credentialDocument{Token: tok}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding credential: %w", err)
	}
	return data, nil
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	var doc credentialDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding credential: %w", err)
	}
	if doc.Token == nil {
		return nil, fmt.Errorf("credential is missing the token field")
	}
	return doc.Token, nil
}

// FileStorage stores each credential at the path given as its key.
type FileStorage struct{}

func NewFileStorage() *FileStorage {
	return &FileStorage{}
}

func (s *FileStorage) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Save writes atomically: temp file in the same directory, fsync, rename.
func (s *FileStorage) Save(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming: %w", err)
	}

	success = true
	return nil
}

func (s *FileStorage) Delete(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrCredentialNotFound
	}
	return err
}

func (s *FileStorage) Name() string {
	return "file"
}

// KeyringStorage uses the system keyring for credential storage
type KeyringStorage struct {
	serviceName string
}

// NewKeyringStorage creates a keyring storage backend
func NewKeyringStorage(serviceName string) *KeyringStorage {
	return &KeyringStorage{serviceName: serviceName}
}

func (s *KeyringStorage) Save(key string, data []byte) error {
	if err := keyring.Set(s.serviceName, key, string(data)); err != nil {
		return fmt.Errorf("saving to keyring: %w", err)
	}
	return nil
}

func (s *KeyringStorage) Load(key string) ([]byte, error) {
	data, err := keyring.Get(s.serviceName, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading from keyring: %w", err)
	}
	return []byte(data), nil
}

func (s *KeyringStorage) Delete(key string) error {
	err := keyring.Delete(s.serviceName, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialNotFound
	}
	return err
}

func (s *KeyringStorage) Name() string {
	return "system-keyring"
}
