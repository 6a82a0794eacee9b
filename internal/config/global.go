package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/open-edge-platform/cygfetch/internal/config/validate"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
	"github.com/open-edge-platform/cygfetch/internal/utils/security"
	"github.com/open-edge-platform/cygfetch/internal/utils/slice"
	"gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"
)

var log = logger.Logger()

const (
	DefaultMirrorList = "https://cygwin.com/mirrors.lst"
	DefaultArch       = "x86_64"
)

// ValidArches are the manifest architectures a mirror publishes.
var ValidArches = []string{"x86_64", "x86", "noarch"}

// GlobalConfig holds the tool-level settings.
type GlobalConfig struct {
	Workers    int    `yaml:"workers" json:"workers"`                             // concurrent downloads (1-100, default 8)
	CacheDir   string `yaml:"cache_dir" json:"cache_dir"`                         // archives and manifests (default ./cache)
	RootDir    string `yaml:"root_dir,omitempty" json:"root_dir,omitempty"`       // Cygwin root for local state; empty means none
	Arch       string `yaml:"arch" json:"arch"`                                   // x86_64, x86 or noarch
	Mirror     string `yaml:"mirror,omitempty" json:"mirror,omitempty"`           // empty picks one from MirrorList
	MirrorList string `yaml:"mirror_list" json:"mirror_list"`                     // URL of mirrors.lst
	PubKey     string `yaml:"pubkey,omitempty" json:"pubkey,omitempty"`           // signing key for setup.ini; empty skips the check
	TempDir    string `yaml:"temp_dir,omitempty" json:"temp_dir,omitempty"`       // empty uses the system default
	Logging    LoggingConfig `yaml:"logging" json:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`                   // debug, info, warn or error
	File  string `yaml:"file,omitempty" json:"file,omitempty"` // optional copy of the log
}

var (
	globalInstance *GlobalConfig
	globalMutex    sync.RWMutex
	once           sync.Once
)

// SetGlobal installs config as the process-wide configuration.
func SetGlobal(config *GlobalConfig) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalInstance = config
}

// Global returns the process-wide configuration, defaults if none was set.
func Global() *GlobalConfig {
	once.Do(func() {
		globalMutex.Lock()
		defer globalMutex.Unlock()
		if globalInstance == nil {
			globalInstance = DefaultGlobalConfig()
		}
	})

	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return globalInstance
}

func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Workers:    8,
		CacheDir:   "./cache",
		Arch:       DefaultArch,
		MirrorList: DefaultMirrorList,
		Logging:    LoggingConfig{Level: "info"},
	}
}

// LoadGlobalConfig reads configPath over the defaults. A missing file gives
// the defaults.
func LoadGlobalConfig(configPath string) (*GlobalConfig, error) {
	config := DefaultGlobalConfig()
	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		if errors.Is(err, os.ErrPermission) {
			log.Warnf("config file %s is not accessible (%v); using defaults", configPath, err)
			return config, nil
		}
		return nil, fmt.Errorf("accessing config file %s: %w", configPath, err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml)", ext)
	}

	data, err := security.SafeReadFile(configPath, security.RejectSymlinks)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
	}

	if strings.TrimSpace(string(data)) != "" {
		jsonData, err := k8syaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
		if err := validate.ValidateConfigJSON(jsonData); err != nil {
			return nil, fmt.Errorf("schema validation failed: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	log.Debugf("loaded config from %s", configPath)
	return config, nil
}

func (gc *GlobalConfig) validateSchema() error {
	jsonData, err := json.Marshal(gc)
	if err != nil {
		return fmt.Errorf("converting config to JSON for validation: %w", err)
	}
	if err := validate.ValidateConfigJSON(jsonData); err != nil {
		return fmt.Errorf("config validation failed before save: %w", err)
	}
	return nil
}

// SaveGlobalConfig writes gc as plain YAML.
func (gc *GlobalConfig) SaveGlobalConfig(configPath string) error {
	if err := gc.validateSchema(); err != nil {
		return err
	}
	data, err := yaml.Marshal(gc)
	if err != nil {
		return fmt.Errorf("marshaling config to YAML: %w", err)
	}
	return writeConfig(configPath, data)
}

// SaveGlobalConfigWithComments writes gc with a comment for every setting.
// Used by "config init".
func (gc *GlobalConfig) SaveGlobalConfigWithComments(configPath string) error {
	if configPath == "" {
		return fmt.Errorf("config path is empty")
	}
	if err := gc.validateSchema(); err != nil {
		return err
	}
	return writeConfig(configPath, []byte(gc.renderCommentedYAML()))
}

func writeConfig(configPath string, data []byte) error {
	dir := filepath.Dir(configPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := security.SafeWriteFile(configPath, data, 0600, security.RejectSymlinks); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (gc *GlobalConfig) renderCommentedYAML() string {
	var b strings.Builder

	b.WriteString("# cygfetch configuration\n\n")

	fmt.Fprintf(&b, "workers: %d\n", gc.Workers)
	b.WriteString("# Concurrent archive downloads (1-100, default: 8)\n\n")

	fmt.Fprintf(&b, "cache_dir: %q\n", gc.CacheDir)
	b.WriteString("# Downloaded manifests and archives, one directory per mirror (default: ./cache)\n\n")

	fmt.Fprintf(&b, "root_dir: %q\n", gc.RootDir)
	b.WriteString("# Cygwin installation root. etc/setup/installed.db and usr/src are read from here\n")
	b.WriteString("# to tell new packages from installed ones. Empty treats everything as new.\n\n")

	fmt.Fprintf(&b, "arch: %q\n", gc.Arch)
	b.WriteString("# Manifest architecture: x86_64, x86 or noarch\n\n")

	fmt.Fprintf(&b, "mirror: %q\n", gc.Mirror)
	b.WriteString("# Mirror URL, e.g. https://mirrors.kernel.org/sourceware/cygwin/\n")
	b.WriteString("# Empty picks a random http(s) mirror from mirror_list\n\n")

	fmt.Fprintf(&b, "mirror_list: %q\n\n", gc.MirrorList)

	fmt.Fprintf(&b, "pubkey: %q\n", gc.PubKey)
	b.WriteString("# Public key (armored or binary) used to check setup.xz.sig\n")
	b.WriteString("# Empty skips the signature check\n\n")

	fmt.Fprintf(&b, "temp_dir: %q\n", gc.TempDir)
	b.WriteString("# Empty uses the system default\n\n")

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", gc.Logging.Level)
	b.WriteString("  # debug, info, warn or error\n")
	if gc.Logging.File != "" {
		fmt.Fprintf(&b, "  file: %q\n", gc.Logging.File)
		b.WriteString("  # Logs are also appended to this file\n")
	}

	return b.String()
}

// Validate checks ranges and enumerations. It does not fill in defaults
// except for TempDir.
func (gc *GlobalConfig) Validate() error {
	if gc.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0, got %d", gc.Workers)
	}
	if gc.Workers > 100 {
		return fmt.Errorf("workers cannot exceed 100, got %d", gc.Workers)
	}
	if gc.CacheDir == "" {
		return fmt.Errorf("cache_dir cannot be empty")
	}
	if !slice.Contains(ValidArches, gc.Arch) {
		return fmt.Errorf("invalid arch %q, must be one of: %s", gc.Arch, strings.Join(ValidArches, ", "))
	}
	if gc.Mirror == "" && gc.MirrorList == "" {
		return fmt.Errorf("one of mirror or mirror_list must be set")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slice.Contains(validLevels, gc.Logging.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s",
			gc.Logging.Level, strings.Join(validLevels, ", "))
	}
	gc.Logging.File = strings.TrimSpace(gc.Logging.File)

	if gc.TempDir == "" {
		gc.TempDir = os.TempDir()
	}
	return nil
}

// GetConfigPaths returns the locations searched for a config file, in order.
func GetConfigPaths() []string {
	homeDir, _ := os.UserHomeDir()

	paths := []string{
		"cygfetch.yml",
		".cygfetch.yml",
		"cygfetch.yaml",
		".cygfetch.yaml",
	}
	if homeDir != "" {
		paths = append(paths,
			filepath.Join(homeDir, ".cygfetch", "config.yml"),
			filepath.Join(homeDir, ".cygfetch", "config.yaml"),
			filepath.Join(homeDir, ".config", "cygfetch", "config.yml"),
			filepath.Join(homeDir, ".config", "cygfetch", "config.yaml"),
		)
	}
	return append(paths,
		"/etc/cygfetch/config.yml",
		"/etc/cygfetch/config.yaml",
	)
}

// FindConfigFile returns the first existing config file, or "".
func FindConfigFile() string {
	for _, path := range GetConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func Workers() int {
	return Global().Workers
}

func CacheDir() (string, error) {
	cacheDir, err := filepath.Abs(Global().CacheDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	return cacheDir, nil
}

// ManifestDir holds the downloaded setup.ini of each mirror.
func ManifestDir(mirrorDir string) (string, error) {
	cacheDir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, mirrorDir), nil
}

func RootDir() string {
	return Global().RootDir
}

func Arch() string {
	return Global().Arch
}

func TempDir() string {
	if t := Global().TempDir; t != "" {
		return t
	}
	return os.TempDir()
}

func LogLevel() string {
	return Global().Logging.Level
}

func EnsureCacheDir() error {
	cacheDir, err := CacheDir()
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}
	return os.MkdirAll(cacheDir, 0o755)
}
