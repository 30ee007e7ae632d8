// Package recfmtext synthesizes UTF-8 text from the EBCDIC byte stream of a
// dataset or member, record-format aware: fixed-format buffers get chunked
// by LRECL, variable-format buffers are joined from their already
// length-delimited records.
package recfmtext

import (
	"strings"

	"github.com/mainframed/xmit-go/ebcdic"
	"github.com/mainframed/xmit-go/format"
	"github.com/mainframed/xmit-go/xmerr"
)

// Options configures one Synthesize call.
type Options struct {
	RECFM format.RecordFormat
	LRECL int
	// ManualRecordLength is used in place of LRECL when RECFM is undefined
	// or unrecognized, spec.md §4.6's "U/unknown" rule.
	ManualRecordLength int
	// Unnum strips a trailing 8-character sequence-number field (columns
	// 73-80) from fixed-format chunks when that field is all digits.
	Unnum    bool
	Codepage ebcdic.Codepage
}

// Synthesize decodes data (for F/FB/U formats) or records (for V/VB
// formats, already length-delimited by the tape or IEBCOPY record walker)
// into a single UTF-8 string per spec.md §4.6.
//
// Exactly one of data or records should carry content for the given RECFM;
// the other is ignored.
func Synthesize(data []byte, records [][]byte, opts Options) (string, error) {
	if opts.Codepage == nil {
		return "", xmerr.New(xmerr.InvalidFormat, 0, "recfmtext: no codepage configured")
	}

	if opts.RECFM.IsVariable() {
		return synthesizeVariable(records, opts.Codepage)
	}

	recl := opts.LRECL
	if opts.RECFM.IsUndefined() {
		recl = opts.ManualRecordLength
	}

	if recl < 1 {
		whole, err := opts.Codepage.Decode(data)
		if err != nil {
			return "", xmerr.Wrap(xmerr.EncodingError, 0, "decoding text buffer", err)
		}

		return whole + "\n", nil
	}

	// F/FB and U/unknown (manual length "as if F") both chunk the flat
	// buffer by recl.
	return synthesizeFixed(data, recl, opts.Unnum, opts.Codepage)
}

func synthesizeFixed(data []byte, recl int, unnum bool, codec ebcdic.Codepage) (string, error) {
	var lines []string

	for i := 0; i < len(data); i += recl {
		end := i + recl
		if end > len(data) {
			end = len(data)
		}

		chunk := data[i:end]

		if unnum && len(chunk) >= 8 && allDigits(chunk[len(chunk)-8:]) {
			chunk = chunk[:len(chunk)-8]
		}

		decoded, err := codec.Decode(chunk)
		if err != nil {
			return "", xmerr.Wrap(xmerr.EncodingError, i, "decoding fixed-format chunk", err)
		}

		lines = append(lines, strings.TrimRight(decoded, " "))
	}

	return strings.Join(lines, "\n") + "\n", nil
}

func synthesizeVariable(records [][]byte, codec ebcdic.Codepage) (string, error) {
	lines := make([]string, 0, len(records))

	for i, rec := range records {
		decoded, err := codec.Decode(rec)
		if err != nil {
			return "", xmerr.Wrap(xmerr.EncodingError, i, "decoding variable-format record", err)
		}

		lines = append(lines, strings.TrimRight(decoded, " "))
	}

	return strings.Join(lines, "\n"), nil
}

// allDigits reports whether every byte in field is an EBCDIC decimal digit.
// The trailing sequence-number field is checked on the raw bytes rather than the decoded string, since both cp037 and cp1140 map
// digits to the same EBCDIC code points and this avoids a decode just to
// throw the result away when unnum is false.
func allDigits(field []byte) bool {
	for _, b := range field {
		// cp037/cp1140 digits 0-9 occupy 0xF0-0xF9.
		if b < 0xF0 || b > 0xF9 {
			return false
		}
	}

	return true
}
