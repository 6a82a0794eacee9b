package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultGlobalConfig(t *testing.T) {
	c := DefaultGlobalConfig()
	if c.Workers != 8 || c.CacheDir != "./cache" || c.Arch != "x86_64" || c.MirrorList != DefaultMirrorList || c.Logging.Level != "info" {
		t.Errorf("defaults = %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
	if c.TempDir == "" {
		t.Error("Validate should fill in temp_dir")
	}
}

func TestLoadGlobalConfig(t *testing.T) {
	path := writeConfigFile(t, "cygfetch.yml", `
workers: 4
cache_dir: /var/cache/cygfetch
root_dir: /cygdrive/c/cygwin64
arch: noarch
mirror: https://mirrors.kernel.org/sourceware/cygwin/
logging:
  level: debug
  file: " /tmp/cygfetch.log "
`)
	c, err := LoadGlobalConfig(path)
	if err != nil {
		t.Fatalf("LoadGlobalConfig: %v", err)
	}
	if c.Workers != 4 || c.CacheDir != "/var/cache/cygfetch" || c.RootDir != "/cygdrive/c/cygwin64" || c.Arch != "noarch" {
		t.Errorf("loaded = %+v", c)
	}
	if c.MirrorList != DefaultMirrorList {
		t.Errorf("unset mirror_list should keep the default, got %q", c.MirrorList)
	}
	if c.Logging.Level != "debug" || c.Logging.File != "/tmp/cygfetch.log" {
		t.Errorf("logging = %+v", c.Logging)
	}
}

func TestLoadGlobalConfigDefaults(t *testing.T) {
	for name, path := range map[string]string{
		"empty path":   "",
		"missing file": filepath.Join(t.TempDir(), "nope.yml"),
		"empty file":   writeConfigFile(t, "empty.yml", "\n"),
	} {
		c, err := LoadGlobalConfig(path)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if c.Workers != 8 || c.Arch != DefaultArch {
			t.Errorf("%s: got %+v, want defaults", name, c)
		}
	}
}

func TestLoadGlobalConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "config.json", `{}`, "unsupported config file format"},
		{"bad yaml", "bad.yml", "workers: [", "parsing YAML"},
		{"unknown key", "unknown.yml", "parallel: 3\n", "schema validation failed"},
		{"workers range", "range.yml", "workers: 500\n", "schema validation failed"},
		{"bad arch", "arch.yml", "arch: aarch64\n", "schema validation failed"},
		{"bad level", "level.yml", "logging:\n  level: loud\n", "schema validation failed"},
		{"no mirror source", "mirror.yml", "mirror: \"\"\nmirror_list: \"\"\n", "one of mirror or mirror_list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGlobalConfig(writeConfigFile(t, tt.file, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadGlobalConfigRejectsSymlink(t *testing.T) {
	real := writeConfigFile(t, "real.yml", "workers: 2\n")
	link := filepath.Join(t.TempDir(), "cygfetch.yml")
	if err := os.Symlink(real, link); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGlobalConfig(link); err == nil {
		t.Error("symlinked config accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GlobalConfig)
		wantErr string
	}{
		{"ok", func(*GlobalConfig) {}, ""},
		{"zero workers", func(c *GlobalConfig) { c.Workers = 0 }, "greater than 0"},
		{"too many workers", func(c *GlobalConfig) { c.Workers = 101 }, "cannot exceed 100"},
		{"empty cache", func(c *GlobalConfig) { c.CacheDir = "" }, "cache_dir"},
		{"arch", func(c *GlobalConfig) { c.Arch = "arm" }, "invalid arch"},
		{"level", func(c *GlobalConfig) { c.Logging.Level = "trace" }, "invalid log level"},
		{"mirror only", func(c *GlobalConfig) { c.MirrorList = ""; c.Mirror = "https://m/" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultGlobalConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveGlobalConfigWithComments(t *testing.T) {
	c := DefaultGlobalConfig()
	c.Workers = 12
	c.RootDir = "/cygdrive/c/cygwin64"
	c.PubKey = "/etc/cygfetch/cygwin.pub"
	c.Logging.File = "/var/log/cygfetch.log"

	path := filepath.Join(t.TempDir(), "sub", "config.yml")
	if err := c.SaveGlobalConfigWithComments(path); err != nil {
		t.Fatalf("SaveGlobalConfigWithComments: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# cygfetch configuration", "workers: 12", "# Manifest architecture", `file: "/var/log/cygfetch.log"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("output missing %q:\n%s", want, data)
		}
	}

	back, err := LoadGlobalConfig(path)
	if err != nil {
		t.Fatalf("reloading the commented file: %v", err)
	}
	if back.Workers != 12 || back.RootDir != c.RootDir || back.PubKey != c.PubKey || back.Logging.File != c.Logging.File {
		t.Errorf("reloaded = %+v", back)
	}

	if err := c.SaveGlobalConfigWithComments(""); err == nil {
		t.Error("empty path accepted")
	}
	bad := DefaultGlobalConfig()
	bad.Workers = 0
	if err := bad.SaveGlobalConfigWithComments(filepath.Join(t.TempDir(), "x.yml")); err == nil {
		t.Error("invalid config saved")
	}
}

func TestSaveGlobalConfig(t *testing.T) {
	c := DefaultGlobalConfig()
	c.Mirror = "http://mirror.example.jp/cygwin/"
	path := filepath.Join(t.TempDir(), "plain.yaml")
	if err := c.SaveGlobalConfig(path); err != nil {
		t.Fatalf("SaveGlobalConfig: %v", err)
	}
	back, err := LoadGlobalConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Mirror != c.Mirror {
		t.Errorf("mirror = %q", back.Mirror)
	}
}

func TestGlobalAccessors(t *testing.T) {
	orig := Global()
	t.Cleanup(func() { SetGlobal(orig) })

	c := DefaultGlobalConfig()
	c.Workers = 3
	c.CacheDir = t.TempDir()
	c.Arch = "x86"
	c.RootDir = "/cyg"
	c.TempDir = "/scratch"
	c.Logging.Level = "warn"
	SetGlobal(c)

	if Workers() != 3 || Arch() != "x86" || RootDir() != "/cyg" || TempDir() != "/scratch" || LogLevel() != "warn" {
		t.Errorf("accessors disagree with %+v", c)
	}
	dir, err := ManifestDir("https%3A%2F%2Fm%2F")
	if err != nil || dir != filepath.Join(c.CacheDir, "https%3A%2F%2Fm%2F") {
		t.Errorf("ManifestDir = %q, %v", dir, err)
	}
	c.CacheDir = filepath.Join(c.CacheDir, "new")
	if err := EnsureCacheDir(); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(c.CacheDir); err != nil || !fi.IsDir() {
		t.Errorf("cache dir not created: %v", err)
	}
}

func TestGetConfigPaths(t *testing.T) {
	paths := GetConfigPaths()
	if paths[0] != "cygfetch.yml" || paths[len(paths)-1] != "/etc/cygfetch/config.yaml" {
		t.Errorf("paths = %v", paths)
	}

	dir := t.TempDir()
	wd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(".cygfetch.yml", []byte("workers: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(); got != ".cygfetch.yml" {
		t.Errorf("FindConfigFile = %q", got)
	}
}
