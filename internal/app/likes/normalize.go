package likes

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// fnv1aOffset and fnv1aPrime are the 32-bit FNV-1a parameters.
const (
	fnv1aOffset = uint32(0x811c9dc5)
	fnv1aPrime  = uint32(16777619)
)

// NormalizeSongID converts an arbitrary track id into the backend's
// 24-character lowercase hex record-key format. A value already in that
// format passes through lowercased. Anything else is hashed with 32-bit
// FNV-1a over its UTF-16 code units, rendered as 8 hex digits plus 2 hex
// digits of (length mod 256), right-padded with '0' to 24 characters.
// Pure and deterministic across sessions.
func NormalizeSongID(id string) string {
	if isHex24(id) {
		return strings.ToLower(id)
	}

	// UTF-16 code units to match the backend's existing keys, which were
	// derived from JavaScript charCodeAt semantics.
	units := utf16.Encode([]rune(id))

	h := fnv1aOffset
	for _, cu := range units {
		h ^= uint32(cu)
		h *= fnv1aPrime
	}

	key := fmt.Sprintf("%08x%02x", h, len(units)%256)
	return (key + strings.Repeat("0", 24))[:24]
}

func isHex24(s string) bool {
	if len(s) != 24 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
