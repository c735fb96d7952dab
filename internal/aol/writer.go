package aol

import (
	"fmt"
	"os"
	"sync"
)

// Writer appends frames to a single AOL file. It does not interpret
// entry types or enforce transaction structure; callers are
// responsible for writing well-formed Begin/.../Commit sequences. It
// does not decide sync policy either — Append only writes; call Sync
// as often as the engine's configured SyncPolicy requires.
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// Create opens path for appending, writing a fresh header if the file
// is empty, and returns a Writer positioned at its end.
func Create(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("aol: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("aol: stat %s: %w", path, err)
	}

	if info.Size() == 0 {
		if err := WriteHeader(file); err != nil {
			file.Close()
			return nil, fmt.Errorf("aol: write header: %w", err)
		}
	}

	if _, err := file.Seek(0, os.SEEK_END); err != nil {
		file.Close()
		return nil, fmt.Errorf("aol: seek to end: %w", err)
	}

	return &Writer{file: file}, nil
}

// Append writes one frame of the given type and payload, returning the
// byte offset it was written at.
func (w *Writer) Append(typ EntryType, payload []byte) (offset int64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pos, err := w.file.Seek(0, os.SEEK_CUR)
	if err != nil {
		return 0, fmt.Errorf("aol: seek: %w", err)
	}

	frame := encodeFrame(typ, payload)
	if _, err := w.file.Write(frame); err != nil {
		return 0, fmt.Errorf("aol: write frame: %w", err)
	}
	return pos, nil
}

// Sync fsyncs the underlying file.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Size returns the current file size in bytes.
func (w *Writer) Size() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	info, err := w.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close fsyncs and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("aol: sync on close: %w", err)
	}
	return w.file.Close()
}
