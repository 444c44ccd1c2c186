// Package session persists the authenticated session credential: an opaque
// token issued by the attendance API plus a snapshot of the user profile.
// The two entries live and die together; Clear always removes both.
package session

import (
	"fmt"
	"sync"

	"github.com/bumisarana/absensi-client/config"
	"github.com/bumisarana/absensi-client/models"
)

// Store is the key-value persistence capability behind the auth flow.
// Implementations must treat an absent token as ("", nil) and an absent
// user as (nil, nil) rather than as errors.
type Store interface {
	Token() (string, error)
	SetToken(token string) error
	User() (*models.User, error)
	SetUser(user *models.User) error
	Clear() error
}

// Open builds the store selected by configuration.
func Open(cfg config.AppConfig) (Store, error) {
	switch cfg.SessionBackend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.SessionPath), nil
	case "encrypted":
		if cfg.SessionPassphrase == "" {
			return nil, fmt.Errorf("session backend %q requires SESSION_PASSPHRASE", cfg.SessionBackend)
		}
		return NewEncryptedFileStore(cfg.SessionPath, cfg.SessionPassphrase), nil
	case "redis":
		return NewRedisStore(RedisOptions{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		}), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// MemoryStore keeps the credential in process memory. Used by tests and as a
// throwaway backend for one-shot commands.
type MemoryStore struct {
	mu    sync.Mutex
	token string
	user  *models.User
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) User() (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil, nil
	}
	u := *s.user
	return &u, nil
}

func (s *MemoryStore) SetUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.user = nil
		return nil
	}
	u := *user
	s.user = &u
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	return nil
}
