// Package config provides revdiff configuration with a defined load order:
// CLI flags > environment variables > repo config > global config > defaults.
//
// Paths:
//   - Repo: .revdiff/config.toml (relative to repo root)
//   - Global: XDG config dir, e.g. ~/.config/revdiff/config.toml (see os.UserConfigDir)
//
// Environment variables (override config files when set):
//   - REVDIFF_CONTEXT_LINES (hunk context; non-negative integer).
//   - REVDIFF_CACHE_MAX_BYTES (cache byte budget; negative = unbounded).
//   - REVDIFF_CACHE_TTL, REVDIFF_TIMEOUT (Go duration string or integer seconds).
//   - REVDIFF_DEFAULT_OLD_REF (old side when diff is run without --old).
//   - REVDIFF_BACKEND (gogit or exec).
//   - REVDIFF_BATCH_CONCURRENCY (positive integer).
package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"revdiff/cli/internal/erruser"
)

// Config holds all revdiff configuration.
type Config struct {
	// ContextLines is the number of unchanged lines kept around each hunk.
	ContextLines int `toml:"context_lines"`
	// CacheMaxBytes is the diff cache budget; negative means unbounded.
	CacheMaxBytes int64 `toml:"cache_max_bytes"`
	// CacheTTL is how long a cached diff stays valid; negative means forever.
	CacheTTL time.Duration `toml:"cache_ttl"`
	// DefaultOldRef is the old side of "diff" when --old is not given.
	DefaultOldRef string `toml:"default_old_ref"`
	// Backend selects git object access: "gogit" (in-process) or "exec" (git binary).
	Backend string        `toml:"backend"`
	Timeout time.Duration `toml:"timeout"`
	// BatchConcurrency caps concurrent requests in "batch" when the manifest does not set it.
	BatchConcurrency int `toml:"batch_concurrency"`
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	ContextLines     *int
	CacheMaxBytes    *int64
	CacheTTL         *time.Duration
	DefaultOldRef    *string
	Backend          *string
	Timeout          *time.Duration
	BatchConcurrency *int
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the repository root; if set, repo config is RepoRoot/.revdiff/config.toml.
	RepoRoot string
	// GlobalConfigPath is the global config file path; if empty, XDG path is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

const (
	_defaultContextLines     = 3
	_defaultCacheMaxBytes    = 64 << 20
	_defaultCacheTTL         = 10 * time.Minute
	_defaultOldRef           = "HEAD"
	_defaultBackend          = "gogit"
	_defaultTimeout          = 30 * time.Second
	_defaultBatchConcurrency = 4
)

// validBackends is the set of allowed backend values (normalized lowercase).
var validBackends = map[string]struct{}{"gogit": {}, "exec": {}}

// validateBackend normalizes s (trim, lowercase) and returns it if valid; otherwise returns an error.
func validateBackend(s string) (string, error) {
	norm := strings.TrimSpace(strings.ToLower(s))
	if _, ok := validBackends[norm]; !ok {
		return "", erruser.Wrap(erruser.ErrInvalidInput, "Invalid backend; use gogit or exec.", fmt.Errorf("backend %q", s))
	}
	return norm, nil
}

// errIntOverflow is returned when an int64 value does not fit in int (e.g. on 32-bit or huge TOML/env values).
var errIntOverflow = errors.New("value out of range for int")

// int64ToInt converts n to int. It returns an error if n is outside the range of int (e.g. overflow on 32-bit).
func int64ToInt(n int64) (int, error) {
	if n < int64(math.MinInt) || n > int64(math.MaxInt) {
		return 0, errIntOverflow
	}
	return int(n), nil
}

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		ContextLines:     _defaultContextLines,
		CacheMaxBytes:    _defaultCacheMaxBytes,
		CacheTTL:         _defaultCacheTTL,
		DefaultOldRef:    _defaultOldRef,
		Backend:          _defaultBackend,
		Timeout:          _defaultTimeout,
		BatchConcurrency: _defaultBatchConcurrency,
	}
}

// Load loads configuration with precedence: defaults < global file < repo file < env < overrides.
// Missing config files are ignored. Invalid TOML or invalid env values return an error.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, erruser.New("Could not determine config directory.", err)
		}
		globalPath = filepath.Join(dir, "revdiff", "config.toml")
	}
	if err := mergeFile(&cfg, globalPath); err != nil {
		return nil, err
	}

	if opts.RepoRoot != "" {
		repoPath := filepath.Join(opts.RepoRoot, ".revdiff", "config.toml")
		if err := mergeFile(&cfg, repoPath); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, opts.Env); err != nil {
		return nil, err
	}

	if err := applyOverrides(&cfg, opts.Overrides); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeFile reads path and merges into cfg. Only overwrites fields that are
// present in the file; empty strings keep the previous value.
// Missing file is skipped (no error).
func mergeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return erruser.New("Invalid configuration file.", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return erruser.New("Could not read configuration file.", err)
	}
	var file struct {
		ContextLines     *int64  `toml:"context_lines"`
		CacheMaxBytes    *int64  `toml:"cache_max_bytes"`
		CacheTTL         *string `toml:"cache_ttl"`
		DefaultOldRef    *string `toml:"default_old_ref"`
		Backend          *string `toml:"backend"`
		Timeout          *string `toml:"timeout"`
		BatchConcurrency *int64  `toml:"batch_concurrency"`
	}
	if _, err := toml.Decode(string(data), &file); err != nil {
		return erruser.New(fmt.Sprintf("Invalid configuration in %s.", path), err)
	}
	if file.ContextLines != nil {
		if *file.ContextLines < 0 {
			return erruser.New("Configuration context_lines must be non-negative.", nil)
		}
		v, err := int64ToInt(*file.ContextLines)
		if err != nil {
			return erruser.New("Configuration context_lines value out of range.", err)
		}
		cfg.ContextLines = v
	}
	if file.CacheMaxBytes != nil && *file.CacheMaxBytes != 0 {
		cfg.CacheMaxBytes = *file.CacheMaxBytes
	}
	if file.CacheTTL != nil && *file.CacheTTL != "" {
		d, err := parseDuration(*file.CacheTTL)
		if err != nil {
			return erruser.New("Configuration cache_ttl is invalid.", err)
		}
		cfg.CacheTTL = d
	}
	if file.DefaultOldRef != nil && *file.DefaultOldRef != "" {
		cfg.DefaultOldRef = *file.DefaultOldRef
	}
	if file.Backend != nil && *file.Backend != "" {
		norm, err := validateBackend(*file.Backend)
		if err != nil {
			return err
		}
		cfg.Backend = norm
	}
	if file.Timeout != nil && *file.Timeout != "" {
		d, err := parseDuration(*file.Timeout)
		if err != nil {
			return erruser.New("Configuration timeout is invalid.", err)
		}
		cfg.Timeout = d
	}
	if file.BatchConcurrency != nil && *file.BatchConcurrency > 0 {
		v, err := int64ToInt(*file.BatchConcurrency)
		if err != nil {
			return erruser.New("Configuration batch_concurrency value out of range.", err)
		}
		cfg.BatchConcurrency = v
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	// Try Go duration first (e.g. "5m", "30s")
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	// Try integer seconds
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * time.Second, nil
}

// env key names for config
const (
	envContextLines     = "REVDIFF_CONTEXT_LINES"
	envCacheMaxBytes    = "REVDIFF_CACHE_MAX_BYTES"
	envCacheTTL         = "REVDIFF_CACHE_TTL"
	envDefaultOldRef    = "REVDIFF_DEFAULT_OLD_REF"
	envBackend          = "REVDIFF_BACKEND"
	envTimeout          = "REVDIFF_TIMEOUT"
	envBatchConcurrency = "REVDIFF_BATCH_CONCURRENCY"
)

func applyEnv(cfg *Config, env []string) error {
	vals := make(map[string]string)
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(e[:idx])
		val := strings.TrimSpace(e[idx+1:])
		vals[key] = val
	}
	if v, ok := vals[envContextLines]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.New("REVDIFF_CONTEXT_LINES must be a valid number.", err)
		}
		if n < 0 {
			return erruser.New("REVDIFF_CONTEXT_LINES must be non-negative.", nil)
		}
		cfg.ContextLines, err = int64ToInt(n)
		if err != nil {
			return erruser.New("REVDIFF_CONTEXT_LINES value out of range.", err)
		}
	}
	if v, ok := vals[envCacheMaxBytes]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.New("REVDIFF_CACHE_MAX_BYTES must be a valid number.", err)
		}
		if n != 0 {
			cfg.CacheMaxBytes = n
		}
	}
	if v, ok := vals[envCacheTTL]; ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return erruser.New("REVDIFF_CACHE_TTL must be a valid duration.", err)
		}
		cfg.CacheTTL = d
	}
	if v, ok := vals[envDefaultOldRef]; ok && v != "" {
		cfg.DefaultOldRef = v
	}
	if v, ok := vals[envBackend]; ok && v != "" {
		norm, err := validateBackend(v)
		if err != nil {
			return err
		}
		cfg.Backend = norm
	}
	if v, ok := vals[envTimeout]; ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return erruser.New("REVDIFF_TIMEOUT must be a valid duration.", err)
		}
		cfg.Timeout = d
	}
	if v, ok := vals[envBatchConcurrency]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.New("REVDIFF_BATCH_CONCURRENCY must be a valid number.", err)
		}
		if n <= 0 {
			return erruser.New("REVDIFF_BATCH_CONCURRENCY must be positive.", nil)
		}
		cfg.BatchConcurrency, err = int64ToInt(n)
		if err != nil {
			return erruser.New("REVDIFF_BATCH_CONCURRENCY value out of range.", err)
		}
	}
	return nil
}

func applyOverrides(cfg *Config, o *Overrides) error {
	if o == nil {
		return nil
	}
	if o.ContextLines != nil {
		v := *o.ContextLines
		if v < 0 {
			v = 0
		}
		cfg.ContextLines = v
	}
	if o.CacheMaxBytes != nil && *o.CacheMaxBytes != 0 {
		cfg.CacheMaxBytes = *o.CacheMaxBytes
	}
	if o.CacheTTL != nil {
		cfg.CacheTTL = *o.CacheTTL
	}
	if o.DefaultOldRef != nil && *o.DefaultOldRef != "" {
		cfg.DefaultOldRef = *o.DefaultOldRef
	}
	if o.Backend != nil && *o.Backend != "" {
		norm, err := validateBackend(*o.Backend)
		if err != nil {
			return err
		}
		cfg.Backend = norm
	}
	if o.Timeout != nil {
		cfg.Timeout = *o.Timeout
	}
	if o.BatchConcurrency != nil && *o.BatchConcurrency > 0 {
		cfg.BatchConcurrency = *o.BatchConcurrency
	}
	return nil
}
