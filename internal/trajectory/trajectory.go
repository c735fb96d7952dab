// Package trajectory encodes and decodes the keys and payloads used
// to store a moving object's path as ordinary key/value records. A
// trajectory point is not a distinct storage concept: it is a record
// whose key sorts lexicographically by timestamp within an object, so
// a prefix-range scan over the shared store recovers a time-ordered
// path with no separate index to keep consistent.
package trajectory

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	keyPrefix = "trajectory:"
	keySep    = 0x01

	// pointPayloadLen is the fixed-width lat/lon prefix (two float64s)
	// every trajectory payload carries ahead of its optional value.
	pointPayloadLen = 16
)

// EncodeKey returns the store key for objectID's sample at
// timestamp (a caller-defined monotonically comparable tick, typically
// Unix nanoseconds): "trajectory:<objectID>" || 0x01 || big-endian
// uint64(timestamp). The 0x01 separator keeps one object's keys from
// colliding with another's when an object ID is itself a prefix of
// another (e.g. "car" and "car-2").
func EncodeKey(objectID string, timestamp uint64) []byte {
	key := make([]byte, 0, len(keyPrefix)+len(objectID)+1+8)
	key = append(key, keyPrefix...)
	key = append(key, objectID...)
	key = append(key, keySep)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestamp)
	key = append(key, ts[:]...)
	return key
}

// KeyPrefix returns the scan prefix that covers every sample stored
// for objectID.
func KeyPrefix(objectID string) []byte {
	prefix := make([]byte, 0, len(keyPrefix)+len(objectID)+1)
	prefix = append(prefix, keyPrefix...)
	prefix = append(prefix, objectID...)
	prefix = append(prefix, keySep)
	return prefix
}

// DecodeKey splits an encoded trajectory key back into its object ID
// and timestamp.
func DecodeKey(key []byte) (objectID string, timestamp uint64, err error) {
	if len(key) < len(keyPrefix)+1+8 || string(key[:len(keyPrefix)]) != keyPrefix {
		return "", 0, fmt.Errorf("trajectory: malformed key")
	}
	rest := key[len(keyPrefix):]
	sepIdx := len(rest) - 8 - 1
	if sepIdx < 0 || rest[sepIdx] != keySep {
		return "", 0, fmt.Errorf("trajectory: malformed key, missing separator")
	}
	objectID = string(rest[:sepIdx])
	timestamp = binary.BigEndian.Uint64(rest[sepIdx+1:])
	return objectID, timestamp, nil
}

// EncodePayload packs (lat, lon) and the sample's opaque value into
// the fixed-prefix-plus-value layout stored as the record's value.
func EncodePayload(lat, lon float64, value []byte) []byte {
	payload := make([]byte, pointPayloadLen+len(value))
	binary.BigEndian.PutUint64(payload[0:8], math.Float64bits(lat))
	binary.BigEndian.PutUint64(payload[8:16], math.Float64bits(lon))
	copy(payload[pointPayloadLen:], value)
	return payload
}

// DecodePayload unpacks a payload produced by EncodePayload.
func DecodePayload(payload []byte) (lat, lon float64, value []byte, err error) {
	if len(payload) < pointPayloadLen {
		return 0, 0, nil, fmt.Errorf("trajectory: payload too short")
	}
	lat = math.Float64frombits(binary.BigEndian.Uint64(payload[0:8]))
	lon = math.Float64frombits(binary.BigEndian.Uint64(payload[8:16]))
	if len(payload) > pointPayloadLen {
		value = append([]byte(nil), payload[pointPayloadLen:]...)
	}
	return lat, lon, value, nil
}
