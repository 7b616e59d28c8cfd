package core

import (
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// Version is the compiler version. It participates in every cache key so a
// compiler upgrade invalidates stale artifacts without manual cleanup.
const Version = "0.4.0"

// ABIMajor is the compatibility-breaking component of the compiled module
// interface. Dependencies whose manifests declare a different major are
// rejected before any artifact is written.
const ABIMajor = 1

// Config holds the per-invocation compiler configuration.
type Config struct {
	RTChecks bool   // guard view/buffer/vector accesses in emitted C
	LTO      bool   // mark emitted translation units for LTO
	EmitIR   bool   // write <module>.ir.txt next to the C output
	Profile  bool   // write build/profile.json with per-phase timings
	BuildDir string // artifact directory, default "build"
	CacheDSN string // build-cache index, file path or libsql URL
	Debug    bool   // verbose cache/db logging
}

// LoadConfig builds a Config from environment variables, reading an optional
// .env file first. CLI flags are applied on top by the command layer.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		BuildDir: "build",
		CacheDSN: "build/cache.db",
	}
	if v := os.Getenv("DAISY_BUILD_DIR"); v != "" {
		cfg.BuildDir = v
	}
	if v := os.Getenv("DAISY_CACHE_DSN"); v != "" {
		cfg.CacheDSN = v
	}
	cfg.RTChecks = envBool("DAISY_RT_CHECKS")
	cfg.LTO = envBool("DAISY_LTO")
	cfg.Debug = envBool("DAISY_DEBUG")
	return cfg
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// FeatureFlags is the canonical flag string used in cache keys: the sorted,
// comma-joined list of enabled code-shape toggles. EmitIR and Profile do not
// change emitted C and stay out of the key.
func (c *Config) FeatureFlags() string {
	var flags []string
	if c.RTChecks {
		flags = append(flags, "rt-checks")
	}
	if c.LTO {
		flags = append(flags, "lto")
	}
	sort.Strings(flags)
	return strings.Join(flags, ",")
}
