package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points the user config at an empty directory and clears HALIDOM_*
// variables so the host environment can't leak into a test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, e := range envKeys {
		t.Setenv(e.env, "")
	}
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Engine.Command != "python3" {
		t.Errorf("Default engine.command = %q, want %q", cfg.Engine.Command, "python3")
	}
	if strings.Join(cfg.Engine.Args, " ") != "diff_analyzer.py {diff}" {
		t.Errorf("Default engine.args = %v", cfg.Engine.Args)
	}
	if cfg.Format != "text" {
		t.Errorf("Default format = %q, want %q", cfg.Format, "text")
	}
	if cfg.GitBackend != "gitcli" {
		t.Errorf("Default gitBackend = %q, want %q", cfg.GitBackend, "gitcli")
	}
	if cfg.MaxDiffBytes != 500000 {
		t.Errorf("Default maxDiffBytes = %d, want 500000", cfg.MaxDiffBytes)
	}
	if cfg.Cache.Enabled {
		t.Error("Default cache should be disabled")
	}
	if !cfg.Privacy.RedactSecrets {
		t.Error("Default redactSecrets should be true")
	}
	if d, err := cfg.EngineTimeout(); err != nil || d != 10*time.Minute {
		t.Errorf("Default EngineTimeout = %v, %v; want 10m", d, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestEngineTimeout(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"30s", 30 * time.Second, false},
		{"1h", time.Hour, false},
		{"soon", 0, true},
		{"-1s", 0, true},
	}
	for _, tt := range tests {
		cfg := Config{Engine: EngineConfig{Timeout: tt.in}}
		got, err := cfg.EngineTimeout()
		if (err != nil) != tt.wantErr {
			t.Errorf("EngineTimeout(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("EngineTimeout(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty command", func(c *Config) { c.Engine.Command = " " }},
		{"bad timeout", func(c *Config) { c.Engine.Timeout = "forever" }},
		{"negative read size", func(c *Config) { c.Engine.ReadSize = -1 }},
		{"bad format", func(c *Config) { c.Format = "sarif" }},
		{"bad backend", func(c *Config) { c.GitBackend = "svn" }},
		{"negative max bytes", func(c *Config) { c.MaxDiffBytes = -5 }},
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate should fail", tt.name)
		}
	}
}

func TestMergeEnv(t *testing.T) {
	isolate(t)
	t.Setenv("HALIDOM_ENGINE_COMMAND", "/usr/local/bin/analyzer")
	t.Setenv("HALIDOM_ENGINE_DIR", "/srv/engine")
	t.Setenv("HALIDOM_ENGINE_TIMEOUT", "90s")
	t.Setenv("HALIDOM_STAGING_DIR", "/var/tmp")
	t.Setenv("HALIDOM_GIT_BACKEND", "native")
	t.Setenv("HALIDOM_FORMAT", "json")
	t.Setenv("HALIDOM_CACHE", "true")
	t.Setenv("HALIDOM_LOG_LEVEL", "debug")

	cfg := Default()
	if err := mergeEnv(&cfg); err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}
	if cfg.Engine.Command != "/usr/local/bin/analyzer" {
		t.Errorf("Engine.Command = %q", cfg.Engine.Command)
	}
	if cfg.Engine.Dir != "/srv/engine" {
		t.Errorf("Engine.Dir = %q", cfg.Engine.Dir)
	}
	if cfg.Engine.Timeout != "90s" {
		t.Errorf("Engine.Timeout = %q", cfg.Engine.Timeout)
	}
	if cfg.StagingDir != "/var/tmp" {
		t.Errorf("StagingDir = %q", cfg.StagingDir)
	}
	if cfg.GitBackend != "native" {
		t.Errorf("GitBackend = %q", cfg.GitBackend)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q", cfg.Format)
	}
	if !cfg.Cache.Enabled {
		t.Error("HALIDOM_CACHE=true should enable the cache")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestMergeEnv_Invalid(t *testing.T) {
	isolate(t)
	t.Setenv("HALIDOM_ENGINE_TIMEOUT", "whenever")
	cfg := Default()
	err := mergeEnv(&cfg)
	if err == nil {
		t.Fatal("Expected error for invalid HALIDOM_ENGINE_TIMEOUT")
	}
	if !strings.Contains(err.Error(), "HALIDOM_ENGINE_TIMEOUT") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestMergeOverrides(t *testing.T) {
	cfg := Default()
	err := mergeOverrides(&cfg, map[string]string{
		"engine.command": "node",
		"engine.args":    "analyze.js {diff} --fast",
		"format":         "markdown",
		"exclude":        "vendor/**, **/*.pb.go",
		"maxDiffBytes":   "1000",
	})
	if err != nil {
		t.Fatalf("mergeOverrides error: %v", err)
	}
	if cfg.Engine.Command != "node" {
		t.Errorf("Engine.Command = %q, want node", cfg.Engine.Command)
	}
	if strings.Join(cfg.Engine.Args, "|") != "analyze.js|{diff}|--fast" {
		t.Errorf("Engine.Args = %v", cfg.Engine.Args)
	}
	if cfg.Format != "markdown" {
		t.Errorf("Format = %q, want markdown", cfg.Format)
	}
	if len(cfg.Exclude) != 2 || cfg.Exclude[1] != "**/*.pb.go" {
		t.Errorf("Exclude = %v", cfg.Exclude)
	}
	if cfg.MaxDiffBytes != 1000 {
		t.Errorf("MaxDiffBytes = %d, want 1000", cfg.MaxDiffBytes)
	}
}

func TestMergeOverrides_Nil(t *testing.T) {
	cfg := Default()
	if err := mergeOverrides(&cfg, nil); err != nil {
		t.Fatalf("mergeOverrides(nil) error: %v", err)
	}
	if cfg.Engine.Command != "python3" {
		t.Errorf("Engine.Command changed with nil overrides")
	}
}

func TestMergeOverrides_Invalid(t *testing.T) {
	cfg := Default()
	if err := mergeOverrides(&cfg, map[string]string{"maxDiffBytes": "lots"}); err == nil {
		t.Error("Expected error for non-integer override")
	}
	if err := mergeOverrides(&cfg, map[string]string{"provider": "openai"}); err == nil {
		t.Error("Expected error for unknown override key")
	}
}

func TestSetField(t *testing.T) {
	cfg := Default()
	tests := []struct {
		key   string
		value string
	}{
		{"engine.command", "ruby"},
		{"engine.args", "analyze.rb"},
		{"engine.dir", "/opt/engine"},
		{"engine.timeout", "0"},
		{"engine.readSize", "1024"},
		{"stagingDir", "/tmp/halidom"},
		{"gitBackend", "native"},
		{"format", "json"},
		{"exclude", "dist/**"},
		{"maxDiffBytes", "1000000"},
		{"cache.enabled", "true"},
		{"cache.dir", "/tmp/cache"},
		{"cache.ttlSeconds", "60"},
		{"privacy.redactSecrets", "false"},
		{"privacy.redactPaths", "**/.env,**/id_rsa"},
		{"logLevel", "debug"},
		{"logFormat", "json"},
	}
	if len(tests) != len(Keys()) {
		t.Fatalf("test covers %d keys, Keys() lists %d", len(tests), len(Keys()))
	}
	for _, tt := range tests {
		if err := SetField(&cfg, tt.key, tt.value); err != nil {
			t.Errorf("SetField(%q, %q) error: %v", tt.key, tt.value, err)
		}
	}
	if cfg.Engine.Command != "ruby" {
		t.Errorf("Engine.Command = %q, want ruby", cfg.Engine.Command)
	}
	if cfg.Engine.ReadSize != 1024 {
		t.Errorf("Engine.ReadSize = %d, want 1024", cfg.Engine.ReadSize)
	}
	if d, _ := cfg.EngineTimeout(); d != 0 {
		t.Errorf("EngineTimeout = %v, want disabled", d)
	}
	if cfg.Privacy.RedactSecrets {
		t.Error("RedactSecrets should be false")
	}
	if len(cfg.Privacy.RedactPaths) != 2 {
		t.Errorf("RedactPaths = %v", cfg.Privacy.RedactPaths)
	}
}

func TestSetField_UnknownKey(t *testing.T) {
	cfg := Default()
	if err := SetField(&cfg, "nonexistent", "value"); err == nil {
		t.Error("Expected error for unknown key")
	}
}

func TestSetField_InvalidValues(t *testing.T) {
	cfg := Default()
	for key, value := range map[string]string{
		"engine.readSize":       "big",
		"engine.timeout":        "never",
		"maxDiffBytes":          "notanumber",
		"cache.enabled":         "maybe",
		"cache.ttlSeconds":      "1d",
		"privacy.redactSecrets": "nope",
	} {
		if err := SetField(&cfg, key, value); err == nil {
			t.Errorf("SetField(%q, %q) should fail", key, value)
		}
	}
}

func TestMergeFile_AllFields(t *testing.T) {
	dst := Default()
	src := Config{
		Engine: EngineConfig{
			Command:  "node",
			Args:     []string{"a.js"},
			Dir:      "/opt",
			Timeout:  "1m",
			ReadSize: 512,
		},
		StagingDir:   "/stage",
		GitBackend:   "native",
		Format:       "json",
		Exclude:      []string{"test/**"},
		MaxDiffBytes: 1000000,
		Cache: CacheConfig{
			Enabled:    true,
			Dir:        "/tmp/cache",
			TTLSeconds: 3600,
		},
		Privacy:   PrivacyConfig{RedactPaths: []string{"**/.secret"}},
		LogLevel:  "info",
		LogFormat: "json",
	}
	mergeFile(&dst, src)

	if dst.Engine.Command != "node" || dst.Engine.Dir != "/opt" || dst.Engine.Timeout != "1m" || dst.Engine.ReadSize != 512 {
		t.Errorf("Engine = %+v", dst.Engine)
	}
	if len(dst.Engine.Args) != 1 {
		t.Errorf("Engine.Args = %v", dst.Engine.Args)
	}
	if dst.StagingDir != "/stage" || dst.GitBackend != "native" || dst.Format != "json" {
		t.Errorf("StagingDir/GitBackend/Format = %q/%q/%q", dst.StagingDir, dst.GitBackend, dst.Format)
	}
	if dst.MaxDiffBytes != 1000000 {
		t.Errorf("MaxDiffBytes = %d, want 1000000", dst.MaxDiffBytes)
	}
	if !dst.Cache.Enabled || dst.Cache.Dir != "/tmp/cache" || dst.Cache.TTLSeconds != 3600 {
		t.Errorf("Cache = %+v", dst.Cache)
	}
	if dst.LogLevel != "info" || dst.LogFormat != "json" {
		t.Errorf("LogLevel/LogFormat = %q/%q", dst.LogLevel, dst.LogFormat)
	}
}

func TestMergeFile_EmptyKeepsDefaults(t *testing.T) {
	dst := Default()
	mergeFile(&dst, Config{})
	def := Default()
	if dst.Engine.Command != def.Engine.Command || dst.Format != def.Format {
		t.Errorf("empty file changed defaults: %+v", dst)
	}
	if !dst.Privacy.RedactSecrets {
		t.Error("RedactSecrets should remain true when file is empty")
	}
}

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir error: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg-test", "halidom") {
		t.Errorf("ConfigDir = %q, want %q", dir, "/tmp/xdg-test/halidom")
	}
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath error: %v", err)
	}
	if path != filepath.Join("/tmp/xdg-test", "halidom", "config.json") {
		t.Errorf("ConfigPath = %q", path)
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Engine.Command = "node"
	cfg.Cache.Enabled = true
	if err := Save(cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	loaded, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if loaded.Engine.Command != "node" || !loaded.Cache.Enabled {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	isolate(t)
	cfg, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Engine.Command != "" {
		t.Errorf("missing file should load zero config, got %+v", cfg)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	dir := isolate(t)
	os.MkdirAll(filepath.Join(dir, "halidom"), 0o755)
	os.WriteFile(filepath.Join(dir, "halidom", "config.json"), []byte("{not json"), 0o644)
	if _, err := LoadFile(); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestLoad_Precedence(t *testing.T) {
	isolate(t)
	user := Default()
	user.Engine.Command = "from-user"
	user.Format = "json"
	user.Engine.Timeout = "1m"
	if err := Save(user); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	project := t.TempDir()
	os.WriteFile(ProjectPath(project), []byte(`
format = "markdown"

[engine]
command = "from-project"
`), 0o644)

	t.Setenv("HALIDOM_ENGINE_COMMAND", "from-env")

	cfg, err := Load(project, map[string]string{"engine.timeout": "5s"})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Engine.Command != "from-env" {
		t.Errorf("Engine.Command = %q, env should win over files", cfg.Engine.Command)
	}
	if cfg.Format != "markdown" {
		t.Errorf("Format = %q, project file should win over user file", cfg.Format)
	}
	if cfg.Engine.Timeout != "5s" {
		t.Errorf("Engine.Timeout = %q, override should win", cfg.Engine.Timeout)
	}
	if strings.Join(cfg.Engine.Args, " ") != "diff_analyzer.py {diff}" {
		t.Errorf("Engine.Args = %v, untouched keys should keep defaults", cfg.Engine.Args)
	}
}

func TestLoad_InvalidResult(t *testing.T) {
	isolate(t)
	_, err := Load("", map[string]string{"format": "sarif"})
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Load = %v, want invalid configuration error", err)
	}
}
