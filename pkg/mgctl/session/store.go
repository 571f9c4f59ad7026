package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"

	"github.com/mediguide/mgctl/pkg/mgctl/client"
)

// Storage backend names accepted by NewStore and the --token-storage flag.
const (
	StorageFile     = "file"
	StorageKeychain = "keychain"
	StorageMemory   = "memory"
)

const keyringService = "mgctl"

// Keychain entry names / JSON keys for the two persisted tokens.
const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

// NewStore builds a token store for the named backend. An empty backend
// selects file storage.
func NewStore(backend, path string, logger *zap.Logger) (client.TokenStore, error) {
	switch backend {
	case "", StorageFile:
		return NewFileStore(path, logger), nil
	case StorageKeychain:
		return NewKeyringStore(logger), nil
	case StorageMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token storage backend: %s", backend)
	}
}

// FileStore persists the token pair as a JSON document with the two fixed
// keys under the mgctl config directory. Writes are serialized behind a
// mutex so concurrent refresh responses cannot interleave a half-written
// pair. When the filesystem is unavailable the store logs the failure and
// keeps serving the last pair from memory for the rest of the process.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu  sync.Mutex
	mem client.TokenPair
}

func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Read() (client.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("token file unreadable, serving in-memory tokens", zap.Error(err))
		}
		return s.mem, nil
	}
	var pair client.TokenPair
	if err := json.Unmarshal(content, &pair); err != nil {
		s.logger.Warn("token file corrupt, serving in-memory tokens", zap.Error(err))
		return s.mem, nil
	}
	s.mem = pair
	return pair, nil
}

func (s *FileStore) Write(pair client.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem = pair
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		s.logger.Warn("token dir unavailable, continuing in-memory only", zap.Error(err))
		return nil
	}
	content, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	if err := os.WriteFile(s.path, content, 0o600); err != nil {
		s.logger.Warn("token file write failed, continuing in-memory only", zap.Error(err))
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem = client.TokenPair{}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove token file", zap.Error(err))
	}
	return nil
}

// KeyringStore keeps the two tokens as named entries in the OS keychain.
// The two writes are independent; a pair with only one half present is
// treated as unauthenticated by everything that reads it.
type KeyringStore struct {
	logger *zap.Logger

	mu  sync.Mutex
	mem client.TokenPair
}

func NewKeyringStore(logger *zap.Logger) *KeyringStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyringStore{logger: logger}
}

func (s *KeyringStore) Read() (client.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	access, accessErr := keyring.Get(keyringService, accessTokenKey)
	refresh, refreshErr := keyring.Get(keyringService, refreshTokenKey)
	if unavailable(accessErr) || unavailable(refreshErr) {
		s.logger.Warn("keychain unavailable, serving in-memory tokens",
			zap.NamedError("access", accessErr), zap.NamedError("refresh", refreshErr))
		return s.mem, nil
	}
	pair := client.TokenPair{AccessToken: access, RefreshToken: refresh}
	s.mem = pair
	return pair, nil
}

func (s *KeyringStore) Write(pair client.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem = pair
	if err := keyring.Set(keyringService, accessTokenKey, pair.AccessToken); err != nil {
		s.logger.Warn("keychain write failed for access token, continuing in-memory only", zap.Error(err))
	}
	if err := keyring.Set(keyringService, refreshTokenKey, pair.RefreshToken); err != nil {
		s.logger.Warn("keychain write failed for refresh token, continuing in-memory only", zap.Error(err))
	}
	return nil
}

func (s *KeyringStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem = client.TokenPair{}
	for _, key := range []string{accessTokenKey, refreshTokenKey} {
		if err := keyring.Delete(keyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			s.logger.Warn("keychain delete failed", zap.String("entry", key), zap.Error(err))
		}
	}
	return nil
}

func unavailable(err error) bool {
	return err != nil && !errors.Is(err, keyring.ErrNotFound)
}

// MemoryStore holds the pair for the current process only. It is the
// degraded mode selected explicitly via --token-storage memory and the
// backend tests run against.
type MemoryStore struct {
	mu   sync.Mutex
	pair client.TokenPair
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Read() (client.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair, nil
}

func (s *MemoryStore) Write(pair client.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = client.TokenPair{}
	return nil
}
