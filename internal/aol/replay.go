package aol

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/spatiodb/spatiodb/internal/util"
)

// Entry is a single decoded log frame handed to a Replay callback.
type Entry struct {
	Type    EntryType
	Payload []byte
	Offset  int64
}

// Replay reads path from its header and calls apply for every
// committed Put/Delete entry, in order. Entries framed between a
// Begin and a Commit are buffered and only delivered once the Commit
// is seen, so a batch's writes become visible atomically; an Abort (or
// a crash that never reaches a Commit) discards them.
//
// Replay stops at the first frame that is truncated or fails its
// checksum, on the assumption that it is an in-progress write that
// was interrupted by a crash rather than a corruption of otherwise
// valid history. It returns the byte offset up to which the log was
// valid, which the engine's Open uses to log and cut off a garbage tail
// before it appends new frames.
func Replay(path string, apply func(Entry) error) (validBytes int64, err error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	if info.Size() == 0 {
		return 0, nil
	}

	if _, err := ReadHeader(file); err != nil {
		return 0, err
	}

	offset := int64(headerLen)
	var pending []Entry
	inTxn := false

	for {
		var lenBuf [4]byte
		if _, err := readFull(file, lenBuf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return offset, err
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])
		if length == 0 || length > MaxFrameLen {
			break
		}

		body := make([]byte, length)
		if _, err := readFull(file, body); err != nil {
			break
		}

		var crcBuf [4]byte
		if _, err := readFull(file, crcBuf[:]); err != nil {
			break
		}
		wantCRC := binary.LittleEndian.Uint32(crcBuf[:])
		if util.ComputeChecksum(body) != wantCRC {
			break
		}

		entry := Entry{Type: EntryType(body[0]), Payload: body[1:], Offset: offset}
		offset += int64(frameOverhead) + int64(length)

		switch entry.Type {
		case EntryBegin:
			inTxn = true
			pending = pending[:0]
		case EntryCommit:
			count, cerr := DecodeCommit(entry.Payload)
			if cerr != nil || count != len(pending) {
				// A Commit whose count disagrees with what was actually
				// framed between Begin and here is itself a corrupt or
				// torn write; stop before the commit frame rather than
				// applying a transaction that isn't what it claims to be.
				return entry.Offset, nil
			}
			for _, e := range pending {
				if err := apply(e); err != nil {
					return offset, err
				}
			}
			pending = nil
			inTxn = false
		case EntryAbort:
			pending = nil
			inTxn = false
		case EntryRewriteBegin, EntryRewriteEnd:
			// Structural markers only; nothing to replay.
		default:
			if inTxn {
				pending = append(pending, entry)
			} else if err := apply(entry); err != nil {
				return offset, err
			}
		}
	}

	return offset, nil
}
