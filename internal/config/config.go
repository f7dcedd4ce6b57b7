// Package config loads process-wide settings from the environment, following
// the variable names in the host's external interface contract.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds settings read from the environment at process start.
// Fields are immutable once Load returns; nothing here re-reads the
// environment later (see internal/supervisor for why that matters for
// the reaper toggle).
type Config struct {
	// StatePath is ARCAN_STATEPATH: the keystore root directory.
	StatePath string
	// CacheDir is A12_CACHE_DIR: binary cache directory.
	CacheDir string
	// ConnPath is ARCAN_CONNPATH: default redirect target on remote exit,
	// and the devicehint passed to producers.
	ConnPath string
	// ConnpointPrefix overrides the compile-time named-socket prefix.
	ConnpointPrefix string
	// ApplPath is ARCAN_APPLPATH, passed through to spawned producers.
	ApplPath string
	// Arg is ARCAN_ARG, passed through to spawned producers.
	Arg string
	// NoNanny disables the bounded-wait-then-kill reaper (ARCAN_DEBUG_NONANNY),
	// captured once here rather than read ad hoc from the supervisor.
	NoNanny bool
}

// Load captures the environment once into an immutable Config. Call
// LoadEnvFile first if a .env file should seed the process environment.
func Load() *Config {
	return &Config{
		StatePath:       os.Getenv("ARCAN_STATEPATH"),
		CacheDir:        os.Getenv("A12_CACHE_DIR"),
		ConnPath:        os.Getenv("ARCAN_CONNPATH"),
		ConnpointPrefix: getEnv("ARCAN_CONNPOINT_PREFIX", defaultConnpointPrefix()),
		ApplPath:        os.Getenv("ARCAN_APPLPATH"),
		Arg:             os.Getenv("ARCAN_ARG"),
		NoNanny:         getEnvBool("ARCAN_DEBUG_NONANNY", false),
	}
}

func defaultConnpointPrefix() string {
	return "arcan_"
}

// SockinFD returns ARCAN_SOCKIN_FD as parsed by a spawned producer, or -1
// if unset/invalid.
func SockinFD() int {
	v := os.Getenv("ARCAN_SOCKIN_FD")
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

