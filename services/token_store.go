package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// CredentialSource supplies the bearer credential for authenticated calls.
// Load returns an empty credential and no error when nobody is logged in.
type CredentialSource interface {
	Load(ctx context.Context) (models.Credential, error)
}

// TokenStore persists the credential between invocations
type TokenStore interface {
	CredentialSource
	Save(ctx context.Context, credential models.Credential) error
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps the credential for the lifetime of the process
type MemoryTokenStore struct {
	mutex      sync.RWMutex
	credential models.Credential
}

// NewMemoryTokenStore creates a store, optionally seeded
func NewMemoryTokenStore(initial models.Credential) *MemoryTokenStore {
	return &MemoryTokenStore{credential: initial}
}

func (s *MemoryTokenStore) Load(ctx context.Context) (models.Credential, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.credential, nil
}

func (s *MemoryTokenStore) Save(ctx context.Context, credential models.Credential) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.credential = credential
	return nil
}

func (s *MemoryTokenStore) Clear(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.credential = models.Credential{}
	return nil
}

const credentialFileVersion = 1

type credentialFile struct {
	Version    int               `yaml:"version"`
	Credential models.Credential `yaml:"credential"`
}

// FileTokenStore keeps the credential in a YAML file readable only by the owner
type FileTokenStore struct {
	path   string
	mutex  sync.Mutex
	logger *logrus.Entry
}

// NewFileTokenStore creates a store backed by path. The file is created on first Save.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{
		path: path,
		logger: logrus.WithFields(logrus.Fields{
			"component": "FileTokenStore",
			"path":      path,
		}),
	}
}

// Path returns the backing file
func (s *FileTokenStore) Path() string {
	return s.path
}

func (s *FileTokenStore) Load(ctx context.Context) (models.Credential, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.Credential{}, nil
	}
	if err != nil {
		return models.Credential{}, shared.WrapError(err, shared.ErrorCategoryStorage, "TOKEN_READ_FAILED", "token-store", "load")
	}

	var file credentialFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return models.Credential{}, shared.NewServiceError(shared.ErrorCategoryStorage, "TOKEN_DECODE_FAILED",
			fmt.Sprintf("credential file %s is corrupt", s.path), "token-store", "load", err)
	}
	if file.Version != credentialFileVersion {
		s.logger.WithField("version", file.Version).Warn("Ignoring credential file with unknown version")
		return models.Credential{}, nil
	}

	return file.Credential, nil
}

func (s *FileTokenStore) Save(ctx context.Context, credential models.Credential) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := yaml.Marshal(credentialFile{Version: credentialFileVersion, Credential: credential})
	if err != nil {
		return shared.WrapError(err, shared.ErrorCategoryStorage, "TOKEN_ENCODE_FAILED", "token-store", "save")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return shared.WrapError(err, shared.ErrorCategoryStorage, "TOKEN_WRITE_FAILED", "token-store", "save")
	}

	// write-then-rename so a crash never leaves a half-written credential
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return shared.WrapError(err, shared.ErrorCategoryStorage, "TOKEN_WRITE_FAILED", "token-store", "save")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return shared.WrapError(err, shared.ErrorCategoryStorage, "TOKEN_WRITE_FAILED", "token-store", "save")
	}

	s.logger.WithField("username", credential.Username).Debug("Saved credential")
	return nil
}

func (s *FileTokenStore) Clear(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return shared.WrapError(err, shared.ErrorCategoryStorage, "TOKEN_CLEAR_FAILED", "token-store", "clear")
	}
	return nil
}
