package spatiodb

import (
	"time"

	"go.uber.org/zap"
)

// SyncPolicy controls when the append-only log is flushed and fsynced.
type SyncPolicy int

const (
	// SyncEverySecond is the default and the zero value. No background
	// flusher runs for it: the log is fsynced at the end of every Atomic
	// commit, on Sync, and on Close, and single-key writes are not
	// fsynced on their own.
	SyncEverySecond SyncPolicy = iota
	// SyncNever relies on the OS to flush dirty pages eventually.
	SyncNever
	// SyncAlways fsyncs at the end of every batch commit.
	SyncAlways
)

func (p SyncPolicy) String() string {
	switch p {
	case SyncNever:
		return "never"
	case SyncEverySecond:
		return "every_second"
	case SyncAlways:
		return "always"
	default:
		return "unknown"
	}
}

// Config holds every option recognised by Open. The zero value is not
// valid on its own; call DefaultConfig and override fields, or rely on
// Open to fill unset fields with their defaults before validating.
type Config struct {
	// Path is the AOL file path. An empty Path opens a pure in-memory
	// engine with no durability.
	Path string

	// GeohashPrecision is the configured precision p, valid 1..=12.
	// Default 8.
	GeohashPrecision int

	// SyncPolicy controls AOL fsync behaviour. Default SyncEverySecond.
	SyncPolicy SyncPolicy

	// DefaultTTL is applied to inserts that supply no explicit
	// TTL/expiry. Zero means no default expiration.
	DefaultTTL time.Duration

	// AutoRewriteThreshold is the live_bytes/total_bytes fraction below
	// which a rewrite is triggered automatically. Default 0.5. Open
	// treats zero as unset and replaces it with the default, so
	// automatic rewriting cannot be switched off through this field.
	AutoRewriteThreshold float64

	// AutoRewriteMinBytes is the minimum AOL size before automatic
	// rewrite is ever considered. Default 16 MiB.
	AutoRewriteMinBytes int64

	// TTLReapIntervalMS is the cadence, in milliseconds, at which the
	// background reaper scans for expired records. Default 250.
	TTLReapIntervalMS int

	// NamespaceSeparator is the byte inserted between a namespace and
	// a user key. Default ':' (0x3A).
	NamespaceSeparator byte

	// Logger receives structured diagnostic output. A nil Logger
	// defaults to a no-op logger so the library never forces output
	// on an embedding application.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with every field set to its
// documented default.
func DefaultConfig() Config {
	return Config{
		GeohashPrecision:     8,
		SyncPolicy:           SyncEverySecond,
		AutoRewriteThreshold: 0.5,
		AutoRewriteMinBytes:  16 * 1024 * 1024,
		TTLReapIntervalMS:    250,
		NamespaceSeparator:   ':',
	}
}

// withDefaults returns a copy of c with zero-valued fields replaced by
// their documented defaults, leaving explicitly-set fields untouched.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.GeohashPrecision == 0 {
		c.GeohashPrecision = d.GeohashPrecision
	}
	if c.AutoRewriteThreshold == 0 {
		c.AutoRewriteThreshold = d.AutoRewriteThreshold
	}
	if c.AutoRewriteMinBytes == 0 {
		c.AutoRewriteMinBytes = d.AutoRewriteMinBytes
	}
	if c.TTLReapIntervalMS == 0 {
		c.TTLReapIntervalMS = d.TTLReapIntervalMS
	}
	if c.NamespaceSeparator == 0 {
		c.NamespaceSeparator = d.NamespaceSeparator
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// validate returns an *Error with KindInvalidConfig for any
// out-of-range option.
func (c Config) validate() error {
	if c.GeohashPrecision < 1 || c.GeohashPrecision > 12 {
		return invalidConfigErr("geohash_precision", "must be in 1..=12")
	}
	if c.SyncPolicy != SyncNever && c.SyncPolicy != SyncEverySecond && c.SyncPolicy != SyncAlways {
		return invalidConfigErr("sync_policy", "must be Never, EverySecond, or Always")
	}
	if c.DefaultTTL < 0 {
		return invalidConfigErr("default_ttl", "must not be negative")
	}
	if c.AutoRewriteThreshold < 0 || c.AutoRewriteThreshold > 1 {
		return invalidConfigErr("auto_rewrite_threshold", "must be in [0, 1]")
	}
	if c.AutoRewriteMinBytes < 0 {
		return invalidConfigErr("auto_rewrite_min_bytes", "must not be negative")
	}
	if c.TTLReapIntervalMS <= 0 {
		return invalidConfigErr("ttl_reap_interval_ms", "must be positive")
	}
	return nil
}
