// Package config loads the flat, string-keyed configuration every component
// takes by constructor injection, mirroring the teacher's
// `godotenv.Load()` + `os.Getenv` pattern in cmd/agent/main.go but
// generalized into one typed accessor surface instead of scattered
// os.Getenv calls.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is a flat map of lowercase snake_case keys to raw string values.
// Unknown keys are preserved verbatim; typed accessors convert lazily.
type Config map[string]string

// Load reads envPath (if it exists) via godotenv into the process
// environment, then snapshots os.Environ() into a Config keyed by the
// lowercased environment variable name. A missing envPath is not an error —
// the teacher's main.go treats a missing .env the same way, falling back to
// whatever is already in the environment.
func Load(envPath string) Config {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := make(Config)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		cfg[strings.ToLower(parts[0])] = parts[1]
	}
	return cfg
}

// Get returns the raw string value for key, or def if unset.
func (c Config) Get(key, def string) string {
	if v, ok := c[key]; ok && v != "" {
		return v
	}
	return def
}

// Set stores a value, overriding whatever Load produced. Used by tests to
// build a Config without touching the process environment.
func (c Config) Set(key, value string) {
	c[key] = value
}

// Int parses key as an integer, returning def on a missing or malformed
// value.
func (c Config) Int(key string, def int) int {
	v, ok := c[key]
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Float parses key as a float64, returning def on a missing or malformed
// value.
func (c Config) Float(key string, def float64) float64 {
	v, ok := c[key]
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// Bool parses key per strconv.ParseBool ("1", "t", "true", ... and their
// negatives), returning def on a missing or malformed value.
func (c Config) Bool(key string, def bool) bool {
	v, ok := c[key]
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration parses key as a count of seconds (matching spec.md §6's "_s" /
// "_duration" key naming) and returns it as a time.Duration, returning def
// on a missing or malformed value.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	v, ok := c[key]
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return time.Duration(f * float64(time.Second))
}
