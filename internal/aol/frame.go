// Package aol implements the append-only log that gives the engine
// durability: every mutation is framed, checksummed, and appended
// before it is considered committed, and the whole log can be
// replayed to rebuild the in-memory store after a restart.
package aol

import (
	"encoding/binary"
	"fmt"

	"github.com/spatiodb/spatiodb/internal/util"
)

// EntryType tags the payload carried by a single log frame.
type EntryType uint8

const (
	EntryPut EntryType = 1
	EntryDelete EntryType = 2

	EntryBegin  EntryType = 10
	EntryCommit EntryType = 11
	EntryAbort  EntryType = 12

	EntryRewriteBegin EntryType = 20
	EntryRewriteEnd   EntryType = 21
)

func (t EntryType) String() string {
	switch t {
	case EntryPut:
		return "put"
	case EntryDelete:
		return "delete"
	case EntryBegin:
		return "begin"
	case EntryCommit:
		return "commit"
	case EntryAbort:
		return "abort"
	case EntryRewriteBegin:
		return "rewrite_begin"
	case EntryRewriteEnd:
		return "rewrite_end"
	default:
		return fmt.Sprintf("entry_type(%d)", uint8(t))
	}
}

// Magic is the 4-byte identifier at the start of every AOL file.
var Magic = [4]byte{'S', 'P', 'L', 'G'}

// FormatVersion is the current on-disk frame format version.
const FormatVersion uint16 = 1

// headerLen is len(Magic) + version(u16) + reserved(u16).
const headerLen = 4 + 2 + 2

// frameOverhead is the length(u32) + type(u8) ... + crc32(u32) bytes
// surrounding every frame's payload.
const frameOverhead = 4 + 1 + 4

// MaxFrameLen bounds a single frame's payload so a corrupt length
// field can't make a reader try to allocate an unbounded buffer.
const MaxFrameLen = 64 * 1024 * 1024

// WriteHeader writes the AOL file header to w.
func WriteHeader(w writer) error {
	var buf [headerLen]byte
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], FormatVersion)
	binary.LittleEndian.PutUint16(buf[6:8], 0)
	_, err := w.Write(buf[:])
	return err
}

// ReadHeader reads and validates the AOL file header from r.
func ReadHeader(r reader) (version uint16, err error) {
	var buf [headerLen]byte
	if _, err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return 0, fmt.Errorf("aol: bad magic header")
	}
	version = binary.LittleEndian.Uint16(buf[4:6])
	if version != FormatVersion {
		return version, fmt.Errorf("aol: unsupported format version %d", version)
	}
	return version, nil
}

// encodeFrame returns the on-disk bytes for a single frame: u32
// length (of type+payload), u8 type, payload, u32 crc32 (over type
// and payload).
func encodeFrame(typ EntryType, payload []byte) []byte {
	body := make([]byte, 1+len(payload))
	body[0] = byte(typ)
	copy(body[1:], payload)

	crc := util.ComputeChecksum(body)

	out := make([]byte, 4+len(body)+4)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(body)))
	copy(out[4:], body)
	binary.LittleEndian.PutUint32(out[4+len(body):], crc)
	return out
}

// writer is the subset of *os.File used by WriteHeader,
// kept as an interface so tests can exercise framing without a file.
type writer interface {
	Write(p []byte) (int, error)
}

// reader is the subset of *os.File used by ReadHeader/readFull.
type reader interface {
	Read(p []byte) (int, error)
}

func readFull(r reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
