package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bumisarana/absensi-client/models"
)

// sessionFile is the on-disk representation of the credential.
type sessionFile struct {
	Token   string       `json:"token,omitempty"`
	User    *models.User `json:"user,omitempty"`
	SavedAt time.Time    `json:"saved_at"`
}

// FileStore persists the credential as a JSON file with 0600 permissions
// under a 0700 directory.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the given file path. The file is
// created lazily on the first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return "", err
	}
	return data.Token, nil
}

func (s *FileStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	data.Token = token
	return s.save(data)
}

func (s *FileStore) User() (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	return data.User, nil
}

func (s *FileStore) SetUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	data.User = user
	return s.save(data)
}

// Clear removes the session file entirely so token and user vanish together.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) load() (sessionFile, error) {
	var data sessionFile
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return data, nil
		}
		return data, err
	}
	if err := json.Unmarshal(b, &data); err != nil {
		// A corrupt session file behaves like an absent one.
		return sessionFile{}, nil
	}
	return data, nil
}

func (s *FileStore) save(data sessionFile) error {
	data.SavedAt = time.Now().UTC()
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}
