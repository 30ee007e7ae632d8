package iebcopy

import (
	"testing"

	"github.com/mainframed/xmit-go/ebcdic"
)

// ebcdicBytes encodes s to cp1140 bytes via a reverse lookup, for building
// test fixtures without hand-encoding byte values.
func ebcdicBytes(t *testing.T, s string) []byte {
	t.Helper()

	out := make([]byte, len(s))
	for i, r := range []byte(s) {
		b, ok := reverseCP1140[r]
		if !ok {
			t.Fatalf("character %q has no cp1140 encoding", r)
		}
		out[i] = b
	}

	return out
}

var reverseCP1140 = buildReverseCP1140()

func buildReverseCP1140() map[byte]byte {
	m := make(map[byte]byte, 256)
	for b := 0; b < 256; b++ {
		s, _ := ebcdic.CP1140.Decode([]byte{byte(b)})
		r := []rune(s)[0]
		if r < 128 {
			m[byte(r)] = byte(b)
		}
	}

	return m
}
