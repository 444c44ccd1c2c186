package utils

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/bumisarana/absensi-client/models"
)

const clientUserAgent = "absensi-client/1.0"

// CollectBrowserInfo gathers the device description sent with the OTP login.
// The original browser client reported userAgent/platform/resolution/language;
// the terminal client fills the same fields from the host environment plus a
// stable per-install device ID.
func CollectBrowserInfo(stateDir string) models.BrowserInfo {
	host, _ := os.Hostname()
	platform := runtime.GOOS + "/" + runtime.GOARCH
	if host != "" {
		platform += " (" + host + ")"
	}

	return models.BrowserInfo{
		UserAgent:  clientUserAgent,
		Platform:   platform,
		Resolution: "terminal",
		Language:   detectLanguage(),
		DeviceID:   DeviceID(stateDir),
	}
}

// DeviceID returns the stable per-install identifier, generating and
// persisting a fresh UUID on first use. Errors degrade to an ephemeral ID.
func DeviceID(stateDir string) string {
	path := filepath.Join(stateDir, "device-id")

	if b, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		Sugar.Warnf("read device id: %v", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(stateDir, 0o700); err == nil {
		if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
			Sugar.Warnf("persist device id: %v", err)
		}
	}
	return id
}

func detectLanguage() string {
	for _, key := range []string{"LC_ALL", "LANG"} {
		if v := os.Getenv(key); v != "" {
			if i := strings.IndexByte(v, '.'); i > 0 {
				return v[:i]
			}
			return v
		}
	}
	return "en_US"
}
