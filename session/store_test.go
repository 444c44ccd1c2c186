package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bumisarana/absensi-client/models"
)

var testUser = &models.User{KarNik: "1234", KarNama: "Budi Santoso", KarKdUnit: "SOLO01"}

func roundTrip(t *testing.T, store Store) {
	t.Helper()

	token, err := store.Token()
	if err != nil {
		t.Fatalf("Token on empty store: %v", err)
	}
	if token != "" {
		t.Fatalf("Token on empty store = %q, want empty", token)
	}
	user, err := store.User()
	if err != nil {
		t.Fatalf("User on empty store: %v", err)
	}
	if user != nil {
		t.Fatalf("User on empty store = %+v, want nil", user)
	}

	if err := store.SetToken("tok-abc"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if err := store.SetUser(testUser); err != nil {
		t.Fatalf("SetUser: %v", err)
	}

	token, err = store.Token()
	if err != nil || token != "tok-abc" {
		t.Fatalf("Token = %q, %v, want tok-abc", token, err)
	}
	user, err = store.User()
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if user == nil || user.KarNik != "1234" || user.KarNama != "Budi Santoso" {
		t.Fatalf("User = %+v, want %+v", user, testUser)
	}

	// Token and user must be cleared together, never independently.
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	token, _ = store.Token()
	user, _ = store.User()
	if token != "" || user != nil {
		t.Fatalf("after Clear: token=%q user=%+v, want both absent", token, user)
	}
}

func TestMemoryStore(t *testing.T) {
	roundTrip(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	roundTrip(t, NewFileStore(path))
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	store := NewFileStore(path)
	if err := store.SetToken("tok"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat session file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("session file mode = %o, want 600", perm)
	}
}

func TestFileStore_CorruptFileBehavesLikeAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	store := NewFileStore(path)
	token, err := store.Token()
	if err != nil {
		t.Fatalf("Token on corrupt file: %v", err)
	}
	if token != "" {
		t.Errorf("Token on corrupt file = %q, want empty", token)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.bin")
	roundTrip(t, NewEncryptedFileStore(path, "hunter2"))
}

func TestEncryptedFileStore_CiphertextOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.bin")
	store := NewEncryptedFileStore(path, "hunter2")
	if err := store.SetToken("tok-secret"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read session file: %v", err)
	}
	if len(raw) == 0 || bytes.Contains(raw, []byte("tok-secret")) {
		t.Error("token stored in plaintext")
	}
}

func TestEncryptedFileStore_WrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.bin")
	store := NewEncryptedFileStore(path, "hunter2")
	if err := store.SetToken("tok-secret"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	wrong := NewEncryptedFileStore(path, "*******")
	if _, err := wrong.Token(); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Token with wrong passphrase error = %v, want ErrDecrypt", err)
	}
}
