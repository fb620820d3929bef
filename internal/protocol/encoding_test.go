package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatin1StringRoundTripsAllByteValues(t *testing.T) {
	raw := make([]byte, 256)
	for i := range raw {
		raw[i] = byte(i)
	}

	s := Latin1String(raw)
	assert.Equal(t, 256, len([]rune(s)))
	for i, r := range []rune(s) {
		assert.Equal(t, rune(i), r)
	}
}

func TestLatin1StringEmpty(t *testing.T) {
	assert.Equal(t, "", Latin1String(nil))
}
