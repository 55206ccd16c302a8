// Package config loads the indexer's settings from FILE_INDEX_-prefixed
// environment variables, the same variable names the service contract
// in spec §6 names. There is no config file format and no third-party
// config-loading library in play: every example repo in the retrieval
// pack that configures itself does so with plain os.Getenv reads, so
// this package follows suit.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const envPrefix = "FILE_INDEX_"

// Config holds every setting the indexer needs, with the same defaults
// named in spec §6.
type Config struct {
	Host string
	Port int

	WatchPaths []string

	IndexDBPath string

	ScanWorkers int
	DebounceMS  int
	BatchSize   int

	IgnorePatterns []string

	DefaultCount int
	MaxCount     int

	DefaultPath string
}

// Load reads the environment and fills in defaults for anything unset.
func Load() Config {
	cfg := Config{
		Host:        getEnv("HOST", "0.0.0.0"),
		Port:        getEnvInt("PORT", 8080),
		IndexDBPath: getEnv("INDEX_DB_PATH", "data/file_index.db"),
		ScanWorkers: getEnvInt("SCAN_WORKERS", 4),
		DebounceMS:  getEnvInt("DEBOUNCE_MS", 500),
		BatchSize:   getEnvInt("BATCH_SIZE", 1000),
		DefaultCount: getEnvInt("DEFAULT_COUNT", 100),
		MaxCount:     getEnvInt("MAX_COUNT", 10000),
	}

	cfg.IgnorePatterns = splitCSV(getEnv("IGNORE_PATTERNS", ".git,node_modules,.venv,__pycache__,.DS_Store"))
	cfg.WatchPaths = splitCSV(getEnv("WATCH_PATHS", ""))
	cfg.DefaultPath = defaultWatchPath()

	return cfg
}

// EffectiveWatchPaths returns the configured watch paths, falling back
// to the per-OS default (home/Documents, or FILE_INDEX_DEFAULT_PATH)
// when none were configured, filtering out anything that does not
// exist or is not a directory.
func (c Config) EffectiveWatchPaths() []string {
	paths := c.WatchPaths
	if len(paths) == 0 {
		paths = []string{c.DefaultPath}
	}

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			continue
		}
		out = append(out, p)
	}
	return out
}

func defaultWatchPath() string {
	if p := os.Getenv(envPrefix + "DEFAULT_PATH"); p != "" {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			home = profile
		}
	}
	return filepath.Join(home, "Documents")
}

func getEnv(name, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(name string, fallback int) int {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
