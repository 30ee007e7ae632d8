package iebcopy

import "github.com/mainframed/xmit-go/xmerr"

// SplitVariableRecords splits a V/VB-format physical record into its
// individual logical records, spec.md §4.5: the buffer opens with a 4-byte
// BDW (block descriptor word, ignored beyond its length) followed by a
// sequence of RDW-prefixed (4-byte record descriptor word) logical records.
// The returned slices exclude both the BDW and each record's own RDW.
func SplitVariableRecords(data []byte) ([][]byte, error) {
	if len(data) < 4 {
		return nil, xmerr.New(xmerr.Truncated, 0, "variable-format buffer shorter than a BDW")
	}

	var records [][]byte

	loc := 4
	for loc < len(data) {
		if loc+2 > len(data) {
			return nil, xmerr.New(xmerr.Truncated, loc, "RDW length field runs past end of buffer")
		}

		rdwLen := int(data[loc])<<8 | int(data[loc+1])
		if rdwLen <= 0 {
			break
		}

		if rdwLen < 4 {
			return nil, xmerr.New(xmerr.InvalidFormat, loc, "RDW-declared record length shorter than the RDW itself")
		}

		if loc+rdwLen > len(data) {
			return nil, xmerr.New(xmerr.Truncated, loc, "RDW-declared record length runs past end of buffer")
		}

		records = append(records, data[loc+4:loc+rdwLen])
		loc += rdwLen
	}

	return records, nil
}
