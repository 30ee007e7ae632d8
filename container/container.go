// Package container detects which of the two top-level framings a buffer
// uses before any full decode is attempted, spec.md §4.1.
package container

import (
	"github.com/mainframed/xmit-go/ebcdic"
	"github.com/mainframed/xmit-go/endian"
	"github.com/mainframed/xmit-go/format"
	"github.com/mainframed/xmit-go/xmerr"
)

// Detect inspects the first 10 bytes of data and reports which container
// framing it uses, spec.md §4.1. Detection never consumes or copies the
// buffer; the stream decoders perform the real parsing.
func Detect(data []byte, codec ebcdic.Codepage) (format.ArchiveKind, error) {
	if len(data) < 10 {
		return format.KindUnknown, xmerr.New(xmerr.Truncated, 0, "buffer shorter than the 10-byte framing probe")
	}

	if name, err := codec.Decode(data[2:8]); err == nil && name == "INMR01" {
		return format.KindXMI, nil
	}

	if endian.Little().Uint16(data[2:4]) == 0 {
		return format.KindTape, nil
	}

	return format.KindUnknown, xmerr.New(xmerr.InvalidFormat, 0, "buffer matches neither the XMI nor the tape framing")
}
