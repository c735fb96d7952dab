package aol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PutRecord is the decoded form of an EntryPut frame's payload.
type PutRecord struct {
	Key               []byte
	Value             []byte
	ExpiresAtUnixNano int64 // 0 means no expiration
	HasPoint          bool
	Lat               float64
	Lon               float64
}

// EncodePut packs a PutRecord into an EntryPut payload: u8 hasPoint,
// [f64 lat, f64 lon if hasPoint], i64 expiresAtUnixNano, u16 keyLen,
// key, u32 valueLen, value.
func EncodePut(r PutRecord) []byte {
	pointLen := 0
	if r.HasPoint {
		pointLen = 16
	}
	buf := make([]byte, 1+pointLen+8+2+len(r.Key)+4+len(r.Value))
	i := 0
	if r.HasPoint {
		buf[i] = 1
	}
	i++
	if r.HasPoint {
		binary.LittleEndian.PutUint64(buf[i:], math.Float64bits(r.Lat))
		i += 8
		binary.LittleEndian.PutUint64(buf[i:], math.Float64bits(r.Lon))
		i += 8
	}
	binary.LittleEndian.PutUint64(buf[i:], uint64(r.ExpiresAtUnixNano))
	i += 8
	binary.LittleEndian.PutUint16(buf[i:], uint16(len(r.Key)))
	i += 2
	i += copy(buf[i:], r.Key)
	binary.LittleEndian.PutUint32(buf[i:], uint32(len(r.Value)))
	i += 4
	copy(buf[i:], r.Value)
	return buf
}

// DecodePut unpacks an EntryPut payload produced by EncodePut.
func DecodePut(payload []byte) (PutRecord, error) {
	var r PutRecord
	if len(payload) < 1 {
		return r, fmt.Errorf("aol: put payload too short")
	}
	i := 0
	r.HasPoint = payload[i] != 0
	i++
	if r.HasPoint {
		if len(payload) < i+16 {
			return r, fmt.Errorf("aol: put payload truncated before point")
		}
		r.Lat = math.Float64frombits(binary.LittleEndian.Uint64(payload[i:]))
		i += 8
		r.Lon = math.Float64frombits(binary.LittleEndian.Uint64(payload[i:]))
		i += 8
	}
	if len(payload) < i+8 {
		return r, fmt.Errorf("aol: put payload truncated before expiry")
	}
	r.ExpiresAtUnixNano = int64(binary.LittleEndian.Uint64(payload[i:]))
	i += 8

	if len(payload) < i+2 {
		return r, fmt.Errorf("aol: put payload truncated before key length")
	}
	keyLen := int(binary.LittleEndian.Uint16(payload[i:]))
	i += 2
	if len(payload) < i+keyLen {
		return r, fmt.Errorf("aol: put payload truncated before key")
	}
	r.Key = append([]byte(nil), payload[i:i+keyLen]...)
	i += keyLen

	if len(payload) < i+4 {
		return r, fmt.Errorf("aol: put payload truncated before value length")
	}
	valueLen := int(binary.LittleEndian.Uint32(payload[i:]))
	i += 4
	if len(payload) < i+valueLen {
		return r, fmt.Errorf("aol: put payload truncated before value")
	}
	r.Value = append([]byte(nil), payload[i:i+valueLen]...)
	return r, nil
}

// EncodeDelete packs a key into an EntryDelete payload: u16 keyLen, key.
func EncodeDelete(key []byte) []byte {
	buf := make([]byte, 2+len(key))
	binary.LittleEndian.PutUint16(buf, uint16(len(key)))
	copy(buf[2:], key)
	return buf
}

// DecodeDelete unpacks an EntryDelete payload produced by EncodeDelete.
func DecodeDelete(payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("aol: delete payload too short")
	}
	keyLen := int(binary.LittleEndian.Uint16(payload))
	if len(payload) < 2+keyLen {
		return nil, fmt.Errorf("aol: delete payload truncated")
	}
	return append([]byte(nil), payload[2:2+keyLen]...), nil
}

// EncodeCommit packs the number of Put/Delete entries a transaction's
// Commit frame is expected to close: u32 count.
func EncodeCommit(count int) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(count))
	return buf
}

// DecodeCommit unpacks a Commit payload produced by EncodeCommit.
func DecodeCommit(payload []byte) (int, error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("aol: commit payload too short")
	}
	return int(binary.LittleEndian.Uint32(payload)), nil
}
