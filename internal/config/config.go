package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config represents the halidom configuration.
type Config struct {
	Engine       EngineConfig  `json:"engine" toml:"engine"`
	StagingDir   string        `json:"stagingDir,omitempty" toml:"stagingDir"`
	GitBackend   string        `json:"gitBackend" toml:"gitBackend"`
	Format       string        `json:"format" toml:"format"`
	Exclude      []string      `json:"exclude" toml:"exclude"`
	MaxDiffBytes int           `json:"maxDiffBytes" toml:"maxDiffBytes"`
	Cache        CacheConfig   `json:"cache" toml:"cache"`
	Privacy      PrivacyConfig `json:"privacy" toml:"privacy"`
	LogLevel     string        `json:"logLevel" toml:"logLevel"`
	LogFormat    string        `json:"logFormat" toml:"logFormat"`
}

// EngineConfig names the analysis engine and how it is run.
type EngineConfig struct {
	Command string   `json:"command" toml:"command"`
	Args    []string `json:"args" toml:"args"`
	Dir     string   `json:"dir,omitempty" toml:"dir"`
	// Timeout is a Go duration string; "0" disables the limit.
	Timeout  string `json:"timeout" toml:"timeout"`
	ReadSize int    `json:"readSize" toml:"readSize"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled    bool   `json:"enabled" toml:"enabled"`
	Dir        string `json:"dir,omitempty" toml:"dir"`
	TTLSeconds int    `json:"ttlSeconds" toml:"ttlSeconds"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `json:"redactSecrets" toml:"redactSecrets"`
	RedactPaths   []string `json:"redactPaths,omitempty" toml:"redactPaths"`
}

var (
	validFormats  = []string{"text", "json", "markdown"}
	validBackends = []string{"gitcli", "native"}
)

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Command:  "python3",
			Args:     []string{"diff_analyzer.py", "{diff}"},
			Timeout:  "10m",
			ReadSize: 4096,
		},
		GitBackend:   "gitcli",
		Format:       "text",
		Exclude:      []string{},
		MaxDiffBytes: 500000,
		Cache: CacheConfig{
			Enabled:    false,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
		LogLevel:  "warn",
		LogFormat: "text",
	}
}

// EngineTimeout parses Engine.Timeout. Empty and "0" mean no limit.
func (c Config) EngineTimeout() (time.Duration, error) {
	if c.Engine.Timeout == "" || c.Engine.Timeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Engine.Timeout)
	if err != nil {
		return 0, fmt.Errorf("engine.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("engine.timeout must not be negative: %s", c.Engine.Timeout)
	}
	return d, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Engine.Command) == "" {
		return fmt.Errorf("engine.command must not be empty")
	}
	if _, err := c.EngineTimeout(); err != nil {
		return err
	}
	if c.Engine.ReadSize < 0 {
		return fmt.Errorf("engine.readSize must not be negative")
	}
	if !slices.Contains(validFormats, c.Format) {
		return fmt.Errorf("invalid format %q (valid: %s)", c.Format, strings.Join(validFormats, ", "))
	}
	if !slices.Contains(validBackends, c.GitBackend) {
		return fmt.Errorf("invalid gitBackend %q (valid: %s)", c.GitBackend, strings.Join(validBackends, ", "))
	}
	if c.MaxDiffBytes < 0 {
		return fmt.Errorf("maxDiffBytes must not be negative")
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory for halidom.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "halidom"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "halidom"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "halidom"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "halidom"), nil
	default:
		return filepath.Join(home, ".config", "halidom"), nil
	}
}

// ConfigPath returns the full path to the user config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile loads the user config file. Returns zero Config and nil error if
// the file doesn't exist.
func LoadFile() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to the user config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Load builds the effective config by merging:
// defaults <- user file <- project file in projectDir <- env <- overrides.
// The overrides map comes from CLI flags and uses SetField keys. An empty
// projectDir skips the project file.
func Load(projectDir string, overrides map[string]string) (Config, error) {
	cfg := Default()

	fileCfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	mergeFile(&cfg, fileCfg)

	if projectDir != "" {
		if err := mergeProject(&cfg, projectDir); err != nil {
			return Config{}, err
		}
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func mergeFile(dst *Config, src Config) {
	if src.Engine.Command != "" {
		dst.Engine.Command = src.Engine.Command
	}
	if src.Engine.Args != nil {
		dst.Engine.Args = src.Engine.Args
	}
	if src.Engine.Dir != "" {
		dst.Engine.Dir = src.Engine.Dir
	}
	if src.Engine.Timeout != "" {
		dst.Engine.Timeout = src.Engine.Timeout
	}
	if src.Engine.ReadSize > 0 {
		dst.Engine.ReadSize = src.Engine.ReadSize
	}
	if src.StagingDir != "" {
		dst.StagingDir = src.StagingDir
	}
	if src.GitBackend != "" {
		dst.GitBackend = src.GitBackend
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if len(src.Exclude) > 0 {
		dst.Exclude = src.Exclude
	}
	if src.MaxDiffBytes > 0 {
		dst.MaxDiffBytes = src.MaxDiffBytes
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}
	if src.Cache.TTLSeconds > 0 {
		dst.Cache.TTLSeconds = src.Cache.TTLSeconds
	}
	// JSON can't distinguish an unset bool from false, so the user file can
	// only switch the cache on. The project file and flags can do both.
	dst.Cache.Enabled = src.Cache.Enabled || dst.Cache.Enabled
	if len(src.Privacy.RedactPaths) > 0 {
		dst.Privacy.RedactPaths = src.Privacy.RedactPaths
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
}

var envKeys = []struct {
	env string
	key string
}{
	{"HALIDOM_ENGINE_COMMAND", "engine.command"},
	{"HALIDOM_ENGINE_DIR", "engine.dir"},
	{"HALIDOM_ENGINE_TIMEOUT", "engine.timeout"},
	{"HALIDOM_STAGING_DIR", "stagingDir"},
	{"HALIDOM_GIT_BACKEND", "gitBackend"},
	{"HALIDOM_FORMAT", "format"},
	{"HALIDOM_CACHE", "cache.enabled"},
	{"HALIDOM_LOG_LEVEL", "logLevel"},
	{"HALIDOM_LOG_FORMAT", "logFormat"},
}

func mergeEnv(cfg *Config) error {
	for _, e := range envKeys {
		if v := os.Getenv(e.env); v != "" {
			if err := SetField(cfg, e.key, v); err != nil {
				return fmt.Errorf("%s: %w", e.env, err)
			}
		}
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	// apply in key order so errors are reported deterministically
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := SetField(cfg, k, overrides[k]); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists every key accepted by SetField.
func Keys() []string {
	return []string{
		"engine.command", "engine.args", "engine.dir", "engine.timeout", "engine.readSize",
		"stagingDir", "gitBackend", "format", "exclude", "maxDiffBytes",
		"cache.enabled", "cache.dir", "cache.ttlSeconds",
		"privacy.redactSecrets", "privacy.redactPaths",
		"logLevel", "logFormat",
	}
}

// SetField sets a single config field by key name. List values are
// comma-separated, except engine.args which is split on whitespace.
// Returns error if key is unknown or the value doesn't parse.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "engine.command":
		cfg.Engine.Command = value
	case "engine.args":
		cfg.Engine.Args = strings.Fields(value)
	case "engine.dir":
		cfg.Engine.Dir = value
	case "engine.timeout":
		probe := Config{Engine: EngineConfig{Timeout: value}}
		if _, err := probe.EngineTimeout(); err != nil {
			return err
		}
		cfg.Engine.Timeout = value
	case "engine.readSize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("engine.readSize must be an integer: %w", err)
		}
		cfg.Engine.ReadSize = n
	case "stagingDir":
		cfg.StagingDir = value
	case "gitBackend":
		cfg.GitBackend = value
	case "format":
		cfg.Format = value
	case "exclude":
		cfg.Exclude = splitList(value)
	case "maxDiffBytes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxDiffBytes must be an integer: %w", err)
		}
		cfg.MaxDiffBytes = n
	case "cache.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cache.enabled must be a boolean: %w", err)
		}
		cfg.Cache.Enabled = b
	case "cache.dir":
		cfg.Cache.Dir = value
	case "cache.ttlSeconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cache.ttlSeconds must be an integer: %w", err)
		}
		cfg.Cache.TTLSeconds = n
	case "privacy.redactSecrets":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("privacy.redactSecrets must be a boolean: %w", err)
		}
		cfg.Privacy.RedactSecrets = b
	case "privacy.redactPaths":
		cfg.Privacy.RedactPaths = splitList(value)
	case "logLevel":
		cfg.LogLevel = value
	case "logFormat":
		cfg.LogFormat = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func splitList(value string) []string {
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
