package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Secrets must be provided via the environment or config/config.json, never defaulted in code.
type AppConfig struct {
	// Local browser gateway
	AppPort        string
	GatewaySecret  string
	GinMode        string
	AllowedOrigins []string
	// Remote attendance API
	APIBaseURL string
	// Session persistence: file | encrypted | redis | memory
	SessionBackend    string
	SessionPath       string
	SessionPassphrase string
	// Redis (used when SessionBackend is "redis")
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Device location: static | command | manual
	LocationProvider string
	StaticLatitude   float64
	StaticLongitude  float64
	LocationCommand  string
	// Rate limiting on the gateway auth group
	RateLimitPerMinute int
	// Logging
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Reset clears the cached configuration. Intended for tests.
func Reset() {
	cfg = AppConfig{}
	loaded = false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			}
		}
		return 0
	}
	getFloat := func(m map[string]any, key string) float64 {
		if v, ok := m[key]; ok {
			if f, ok := v.(float64); ok {
				return f
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.GatewaySecret = getString(app, "GatewaySecret")
		if v := getString(app, "GinMode"); v != "" {
			out.GinMode = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
	}

	if api, ok := raw["api"].(map[string]any); ok {
		out.APIBaseURL = getString(api, "BaseURL")
	}

	if ses, ok := raw["session"].(map[string]any); ok {
		out.SessionBackend = getString(ses, "Backend")
		out.SessionPath = getString(ses, "Path")
		out.SessionPassphrase = getString(ses, "Passphrase")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		if v := getInt(rds, "RedisPort"); v != 0 {
			out.RedisPort = v
		}
		if v := getInt(rds, "RedisDB"); v != 0 {
			out.RedisDB = v
		}
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if loc, ok := raw["location"].(map[string]any); ok {
		out.LocationProvider = getString(loc, "Provider")
		out.StaticLatitude = getFloat(loc, "StaticLatitude")
		out.StaticLongitude = getFloat(loc, "StaticLongitude")
		out.LocationCommand = getString(loc, "Command")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v := getString(lg, "Level"); v != "" {
			out.LogLevel = v
		}
		if v := getString(lg, "Path"); v != "" {
			out.LogPath = v
		}
		if v := getInt(lg, "MaxSizeMB"); v != 0 {
			out.LogMaxSizeMB = v
		}
		if v := getInt(lg, "MaxBackups"); v != 0 {
			out.LogMaxBackups = v
		}
		if v := getInt(lg, "MaxAgeDays"); v != 0 {
			out.LogMaxAgeDays = v
		}
		out.LogCompress = getBool(lg, "Compress")
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8088"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = "http://localhost:3001/api"
	}
	if c.SessionBackend == "" {
		c.SessionBackend = "file"
	}
	if c.SessionPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.SessionPath = filepath.Join(home, ".absensi", "session.json")
		} else {
			c.SessionPath = "session.json"
		}
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LocationProvider == "" {
		c.LocationProvider = "manual"
	}
	if c.LocationCommand == "" {
		c.LocationCommand = "termux-location"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("GATEWAY_SECRET", ""); v != "" {
		c.GatewaySecret = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("API_BASE_URL", ""); v != "" {
		c.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := getEnv("SESSION_BACKEND", ""); v != "" {
		c.SessionBackend = v
	}
	if v := getEnv("SESSION_PATH", ""); v != "" {
		c.SessionPath = v
	}
	if v := getEnv("SESSION_PASSPHRASE", ""); v != "" {
		c.SessionPassphrase = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOCATION_PROVIDER", ""); v != "" {
		c.LocationProvider = v
	}
	if v := getEnv("STATIC_LATITUDE", ""); v != "" {
		c.StaticLatitude = mustParseFloat(v)
	}
	if v := getEnv("STATIC_LONGITUDE", ""); v != "" {
		c.StaticLongitude = mustParseFloat(v)
	}
	if v := getEnv("LOCATION_COMMAND", ""); v != "" {
		c.LocationCommand = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}

func mustParseFloat(val string) float64 {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0
	}
	return f
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
