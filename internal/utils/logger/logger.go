// Package logger holds the process-wide zap logger used by cygfetch.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/open-edge-platform/cygfetch/internal/utils/security"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and an optional log file that receives a copy of
// everything written to stderr.
type Config struct {
	Level    string
	FilePath string
}

// swappableWriter lets tests redirect console output after the core is built.
type swappableWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *swappableWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return len(p), nil
	}
	return s.w.Write(p)
}

func (s *swappableWriter) Sync() error { return nil }

var (
	mu      sync.RWMutex
	once    sync.Once
	sugar   *zap.SugaredLogger
	base    *zap.Logger
	level   zap.AtomicLevel
	file    *os.File
	applied Config
	console = &swappableWriter{w: os.Stderr}
)

func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func normalize(cfg Config) Config {
	return Config{Level: ParseLevel(cfg.Level).String(), FilePath: strings.TrimSpace(cfg.FilePath)}
}

func build(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	cfg = normalize(cfg)
	if level == (zap.AtomicLevel{}) {
		level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	} else {
		level.SetLevel(ParseLevel(cfg.Level))
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	colored := enc
	colored.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(colored), zapcore.AddSync(console), level),
	}

	var handle *os.File
	if cfg.FilePath != "" {
		path := filepath.Clean(cfg.FilePath)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating log directory for %q: %w", path, err)
		}
		f, err := security.SafeOpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640, security.RejectSymlinks)
		if err != nil {
			return fmt.Errorf("opening log file %q: %w", path, err)
		}
		handle = f
		plain := enc
		plain.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(plain), zapcore.AddSync(f), level))
	}

	if file != nil && file != handle {
		_ = file.Close()
	}
	file = handle

	base = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	sugar = base.Sugar()
	zap.ReplaceGlobals(base)
	applied = cfg
	return nil
}

// Configure installs cfg, rebuilding the logger only when something changed.
// The returned func flushes and closes the log file.
func Configure(cfg Config) (*zap.SugaredLogger, func(), error) {
	var err error
	fresh := false
	once.Do(func() {
		fresh = true
		err = build(cfg)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger initialization failed: %w", err)
	}
	if !fresh {
		mu.RLock()
		same := applied == normalize(cfg)
		mu.RUnlock()
		if !same {
			if err := build(cfg); err != nil {
				return nil, nil, fmt.Errorf("logger reconfiguration failed: %w", err)
			}
		}
	}
	return Logger(), closer(), nil
}

func closer() func() {
	mu.RLock()
	f := file
	mu.RUnlock()
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if base != nil {
			_ = base.Sync()
		}
		if f != nil {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
			}
			if file == f {
				file = nil
			}
		}
	}
}

// Logger returns the shared logger, creating an info-level one on first use.
func Logger() *zap.SugaredLogger {
	once.Do(func() {
		if err := build(Config{Level: "info"}); err != nil {
			panic(fmt.Sprintf("logger initialization failed: %v", err))
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func With(args ...interface{}) *zap.SugaredLogger {
	return Logger().With(args...)
}

// SetLogLevel changes the level in place. It is a no-op before the first use.
func SetLogLevel(s string) {
	mu.Lock()
	defer mu.Unlock()
	if level == (zap.AtomicLevel{}) {
		return
	}
	l := ParseLevel(s)
	level.SetLevel(l)
	applied.Level = l.String()
}

// ReplaceStderrWriter redirects console output and returns the previous
// writer. A nil writer restores os.Stderr.
func ReplaceStderrWriter(w io.Writer) io.Writer {
	if w == nil {
		w = os.Stderr
	}
	console.mu.Lock()
	defer console.mu.Unlock()
	old := console.w
	if old == nil {
		old = os.Stderr
	}
	console.w = w
	return old
}
