package likes

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var hex24 = regexp.MustCompile(`^[0-9a-f]{24}$`)

func TestNormalizeSongID_KnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			// FNV-1a("a") = 0xe40c292c, length 1
			name:  "single ascii char",
			input: "a",
			want:  "e40c292c0100000000000000",
		},
		{
			// FNV-1a("foobar") = 0xbf9cf968, length 6
			name:  "ascii word",
			input: "foobar",
			want:  "bf9cf9680600000000000000",
		},
		{
			// Offset basis untouched, length 0
			name:  "empty string",
			input: "",
			want:  "811c9dc50000000000000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSongID(tt.input))
		})
	}
}

func TestNormalizeSongID_Passthrough(t *testing.T) {
	// A 24-hex string passes through lowercased, never re-hashed
	assert.Equal(t,
		"aabbccddeeff001122334455",
		NormalizeSongID("AABBCCDDEEFF001122334455"))
	assert.Equal(t,
		"0123456789abcdef01234567",
		NormalizeSongID("0123456789abcdef01234567"))
}

func TestNormalizeSongID_ShapeAndDeterminism(t *testing.T) {
	inputs := []string{
		"", "a", "D7KyD", "some track id", "トラック", "🎵🎵",
		"23-char-hex-aabbccddeef", "g23456789abcdef012345678",
		"aabbccddeeff00112233445566", // 26 chars, not passthrough
	}

	for _, in := range inputs {
		got := NormalizeSongID(in)
		assert.Regexp(t, hex24, got, "input %q", in)
		assert.Equal(t, got, NormalizeSongID(in), "not deterministic for %q", in)
	}
}

func TestNormalizeSongID_DistinctInputs(t *testing.T) {
	assert.NotEqual(t, NormalizeSongID("trackA"), NormalizeSongID("trackB"))
	assert.NotEqual(t, NormalizeSongID("a"), NormalizeSongID("aa"))
}
