package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/bumisarana/absensi-client/models"
)

const saltSize = 16

// ErrDecrypt is returned when the session file cannot be opened with the
// configured passphrase.
var ErrDecrypt = errors.New("session file decryption failed")

// EncryptedFileStore persists the credential encrypted at rest with
// XChaCha20-Poly1305. The key is derived from a passphrase with HKDF-SHA256
// and a per-file random salt.
type EncryptedFileStore struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

// NewEncryptedFileStore creates an encrypted store backed by the given path.
func NewEncryptedFileStore(path, passphrase string) *EncryptedFileStore {
	return &EncryptedFileStore{path: path, passphrase: passphrase}
}

func (s *EncryptedFileStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return "", err
	}
	return data.Token, nil
}

func (s *EncryptedFileStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	data.Token = token
	return s.save(data)
}

func (s *EncryptedFileStore) User() (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	return data.User, nil
}

func (s *EncryptedFileStore) SetUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	data.User = user
	return s.save(data)
}

func (s *EncryptedFileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *EncryptedFileStore) load() (sessionFile, error) {
	var data sessionFile
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return data, nil
		}
		return data, err
	}
	plain, err := s.decrypt(raw)
	if err != nil {
		return data, err
	}
	if err := json.Unmarshal(plain, &data); err != nil {
		return sessionFile{}, nil
	}
	return data, nil
}

func (s *EncryptedFileStore) save(data sessionFile) error {
	data.SavedAt = time.Now().UTC()
	plain, err := json.Marshal(data)
	if err != nil {
		return err
	}
	sealed, err := s.encrypt(plain)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, sealed, 0o600)
}

// encrypt produces salt || nonce || ciphertext.
func (s *EncryptedFileStore) encrypt(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	aead, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, saltSize+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, nil), nil
}

func (s *EncryptedFileStore) decrypt(raw []byte) ([]byte, error) {
	if len(raw) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, ErrDecrypt
	}
	salt := raw[:saltSize]
	aead, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := raw[saltSize : saltSize+aead.NonceSize()]
	sealed := raw[saltSize+aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plain, nil
}

func (s *EncryptedFileStore) aead(salt []byte) (cipher.AEAD, error) {
	h := hkdf.New(sha256.New, []byte(s.passphrase), salt, []byte("absensi-session-key"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}
