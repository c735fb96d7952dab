// Package configfile loads a spatiodb.Config from a YAML file. It is
// kept outside the core engine package: the engine itself never reads
// from disk except through its AOL, and an embedding application may
// prefer flags, env vars, or its own config system over YAML.
package configfile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spatiodb/spatiodb"
)

// File mirrors spatiodb.Config field-for-field with yaml tags and
// string forms for the enum and duration fields a human would actually
// write by hand in a config file.
type File struct {
	Path                 string `yaml:"path"`
	GeohashPrecision     int    `yaml:"geohash_precision"`
	SyncPolicy           string `yaml:"sync_policy"`
	DefaultTTL           string `yaml:"default_ttl"`
	AutoRewriteThreshold float64 `yaml:"auto_rewrite_threshold"`
	AutoRewriteMinBytes  int64  `yaml:"auto_rewrite_min_bytes"`
	TTLReapIntervalMS    int    `yaml:"ttl_reap_interval_ms"`
	NamespaceSeparator   string `yaml:"namespace_separator"`
}

// Load reads path, parses it as YAML, and resolves it into a
// spatiodb.Config. It does not call Open; the caller decides when to
// open the engine.
func Load(path string) (spatiodb.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return spatiodb.Config{}, fmt.Errorf("configfile: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return spatiodb.Config{}, fmt.Errorf("configfile: parse %s: %w", path, err)
	}

	return f.resolve()
}

func (f File) resolve() (spatiodb.Config, error) {
	cfg := spatiodb.Config{
		Path:                 f.Path,
		GeohashPrecision:     f.GeohashPrecision,
		AutoRewriteThreshold: f.AutoRewriteThreshold,
		AutoRewriteMinBytes:  f.AutoRewriteMinBytes,
		TTLReapIntervalMS:    f.TTLReapIntervalMS,
	}

	policy, err := parseSyncPolicy(f.SyncPolicy)
	if err != nil {
		return spatiodb.Config{}, err
	}
	cfg.SyncPolicy = policy

	if f.DefaultTTL != "" {
		d, err := time.ParseDuration(f.DefaultTTL)
		if err != nil {
			return spatiodb.Config{}, fmt.Errorf("configfile: default_ttl: %w", err)
		}
		cfg.DefaultTTL = d
	}

	if f.NamespaceSeparator != "" {
		if len(f.NamespaceSeparator) != 1 {
			return spatiodb.Config{}, fmt.Errorf("configfile: namespace_separator must be exactly one byte, got %q", f.NamespaceSeparator)
		}
		cfg.NamespaceSeparator = f.NamespaceSeparator[0]
	}

	return cfg, nil
}

func parseSyncPolicy(s string) (spatiodb.SyncPolicy, error) {
	switch s {
	case "", "every_second":
		return spatiodb.SyncEverySecond, nil
	case "never":
		return spatiodb.SyncNever, nil
	case "always":
		return spatiodb.SyncAlways, nil
	default:
		return 0, fmt.Errorf("configfile: sync_policy: unknown value %q (want never, every_second, or always)", s)
	}
}
