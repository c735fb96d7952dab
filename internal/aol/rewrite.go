package aol

import (
	"fmt"
	"os"
)

// Snapshot is whatever the engine's store can enumerate to produce a
// rewrite: every live key's current Put frame contents.
type Snapshot func(yield func(rec PutRecord) bool)

// Rewrite compacts the AOL at path down to a single RewriteBegin,
// one Put frame per live record from snapshot, and a RewriteEnd,
// written to a temporary file and atomically renamed over path. It
// returns the size of the new file in bytes.
//
// The rewrite is a full snapshot rather than an LSM-style merge: this
// engine keeps its whole working set in memory, so "compaction" only
// ever needs to discard obsolete history, never merge sorted runs.
func Rewrite(path string, snapshot Snapshot) (newSize int64, err error) {
	tmpPath := path + ".rewrite"

	w, err := Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("aol: open rewrite target: %w", err)
	}

	if _, err := w.Append(EntryRewriteBegin, nil); err != nil {
		w.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("aol: write rewrite_begin: %w", err)
	}

	var writeErr error
	snapshot(func(rec PutRecord) bool {
		if _, writeErr = w.Append(EntryPut, EncodePut(rec)); writeErr != nil {
			return false
		}
		return true
	})
	if writeErr != nil {
		w.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("aol: write snapshot put: %w", writeErr)
	}

	if _, err := w.Append(EntryRewriteEnd, nil); err != nil {
		w.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("aol: write rewrite_end: %w", err)
	}

	size, err := w.Size()
	if err != nil {
		w.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("aol: stat rewrite target: %w", err)
	}

	if err := w.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("aol: close rewrite target: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("aol: rename rewrite target over %s: %w", path, err)
	}

	return size, nil
}

// ShouldRewrite reports whether the ratio of live to total bytes has
// fallen far enough, and the log is big enough, to justify a rewrite.
func ShouldRewrite(liveBytes, totalBytes, minBytes int64, threshold float64) bool {
	if threshold <= 0 || totalBytes < minBytes || totalBytes == 0 {
		return false
	}
	return float64(liveBytes)/float64(totalBytes) < threshold
}
