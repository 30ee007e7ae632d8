// Package textunit decodes the key/count/length/value tuples that make up
// the body of every INMR01-INMR03 control record in an XMI stream.
//
// The wire shape is a flat catalog lookup plus a tiny state machine, in the
// same spirit as the retrieved time-series module's TagEncoder/TagDecoder
// pair in its encoding package: a small fixed-format header drives how many
// bytes of variable-length payload follow, and the catalog here plays the
// role that module's type registry plays there.
package textunit

import (
	"encoding/binary"
	"strings"

	"github.com/mainframed/xmit-go/ebcdic"
	"github.com/mainframed/xmit-go/xmerr"
)

// Kind classifies how a text unit's raw bytes should be interpreted.
type Kind int

const (
	// Character text units decode through the archive's EBCDIC codepage.
	Character Kind = iota
	// Decimal text units are a big-endian unsigned integer over the value bytes.
	Decimal
	// Hex text units are kept as raw bytes, with a few keys receiving
	// additional interpretation (see INMTYPE below).
	Hex
)

// catalogEntry describes one recognized text-unit key.
type catalogEntry struct {
	Mnemonic string
	Kind     Kind
}

// Catalog is the reference table of recognized text-unit keys, spec.md §4.3.
var Catalog = map[uint16]catalogEntry{
	0x0001: {"INMDDNAM", Character},
	0x0002: {"INMDSNAM", Character},
	0x0003: {"INMMEMBR", Character},
	0x000B: {"INMSECND", Decimal},
	0x000C: {"INMDIR", Decimal},
	0x0022: {"INMEXPDT", Character},
	0x0028: {"INMTERM", Character},
	0x0030: {"INMBLKSZ", Decimal},
	0x003C: {"INMDSORG", Hex},
	0x0042: {"INMLRECL", Decimal},
	0x0049: {"INMRECFM", Hex},
	0x1001: {"INMTNODE", Character},
	0x1002: {"INMTUID", Character},
	0x1011: {"INMFNODE", Character},
	0x1012: {"INMFUID", Character},
	0x1020: {"INMLREF", Character},
	0x1021: {"INMLCHG", Character},
	0x1022: {"INMCREAT", Character},
	0x1023: {"INMFVERS", Character},
	0x1024: {"INMFTIME", Character},
	0x1025: {"INMTTIME", Character},
	0x1026: {"INMFACK", Character},
	0x1027: {"INMERRCD", Character},
	0x1028: {"INMUTILN", Character},
	0x1029: {"INMUSERP", Character},
	0x102A: {"INMRECCT", Character},
	0x102C: {"INMSIZE", Decimal},
	0x102F: {"INMNUMF", Decimal},
	0x8012: {"INMTYPE", Hex},
}

const (
	keyINMFACK  = 0x1026
	keyINMTERM  = 0x0028
	keyINMDSNAM = 0x0002
	keyINMTYPE  = 0x8012
)

// Value is a single decoded text unit.
type Value struct {
	Kind      Kind
	Character string
	Decimal   uint64
	Raw       []byte
}

// Set is the decoded result of one text-unit block: mnemonic -> Value.
type Set struct {
	Values map[string]Value
	// HasMessage reports whether INMTERM (key 0x0028) appeared with a zero
	// count, the flag an XMIT stream uses to say it carries a message
	// instead of (or in addition to) dataset content.
	HasMessage bool
}

// String returns the character value for mnemonic, or "" if absent or not a
// character-kind text unit.
func (s *Set) String(mnemonic string) string {
	if v, ok := s.Values[mnemonic]; ok {
		return v.Character
	}

	return ""
}

// Uint returns the decimal value for mnemonic, or 0 if absent.
func (s *Set) Uint(mnemonic string) uint64 {
	if v, ok := s.Values[mnemonic]; ok {
		return v.Decimal
	}

	return 0
}

// Bytes returns the raw hex-kind bytes for mnemonic, or nil if absent.
func (s *Set) Bytes(mnemonic string) []byte {
	if v, ok := s.Values[mnemonic]; ok {
		return v.Raw
	}

	return nil
}

// Has reports whether mnemonic was present in the decoded block.
func (s *Set) Has(mnemonic string) bool {
	_, ok := s.Values[mnemonic]
	return ok
}

// Decode parses a text-unit block per spec.md §4.3: a sequence of
// (key u16, count u16, entries[count]) tuples, where the first entry in a
// tuple carries its own u16 length prefix and every subsequent entry repeats
// the length-then-value shape. codec translates character-kind value bytes.
func Decode(data []byte, codec ebcdic.Codepage) (*Set, error) {
	set := &Set{Values: make(map[string]Value)}

	var dsnamParts []string

	loc := 0
	for loc < len(data) {
		if loc+4 > len(data) {
			return nil, xmerr.New(xmerr.Truncated, loc, "text unit key/count header runs past end of block")
		}

		key := binary.BigEndian.Uint16(data[loc : loc+2])
		count := binary.BigEndian.Uint16(data[loc+2 : loc+4])
		loc += 4

		if count == 0 {
			switch key {
			case keyINMFACK:
				// zero-count INMFACK carries no value; spec.md §4.3 "skip".
			case keyINMTERM:
				set.HasMessage = true
			}

			continue
		}

		for range int(count) {
			// Every entry, including the first, is a u16 length prefix
			// followed by that many value bytes: once the 4-byte key/count
			// header is consumed, the first entry's length sits exactly
			// where a subsequent entry's would.
			if loc+2 > len(data) {
				return nil, xmerr.New(xmerr.Truncated, loc, "text unit length prefix runs past end of block")
			}

			tlen := int(binary.BigEndian.Uint16(data[loc : loc+2]))
			valStart := loc + 2
			if valStart+tlen > len(data) {
				return nil, xmerr.New(xmerr.Truncated, loc, "text unit value runs past end of block")
			}

			item := data[valStart : valStart+tlen]
			loc = valStart + tlen

			entry, known := Catalog[key]
			if !known {
				continue
			}

			if entry.Mnemonic == "INMDSNAM" {
				decoded, err := codec.Decode(item)
				if err != nil {
					return nil, xmerr.Wrap(xmerr.EncodingError, loc, "decoding INMDSNAM segment", err)
				}

				dsnamParts = append(dsnamParts, decoded)

				continue
			}

			value, err := decodeValue(entry, key, item, codec)
			if err != nil {
				return nil, err
			}

			set.Values[entry.Mnemonic] = value
		}
	}

	if len(dsnamParts) > 0 {
		set.Values["INMDSNAM"] = Value{Kind: Character, Character: strings.Join(dsnamParts, ".")}
	}

	return set, nil
}

func decodeValue(entry catalogEntry, key uint16, item []byte, codec ebcdic.Codepage) (Value, error) {
	switch entry.Kind {
	case Character:
		s, err := codec.Decode(item)
		if err != nil {
			return Value{}, xmerr.Wrap(xmerr.EncodingError, 0, "decoding "+entry.Mnemonic, err)
		}

		return Value{Kind: Character, Character: s}, nil
	case Decimal:
		var n uint64
		for _, b := range item {
			n = n<<8 | uint64(b)
		}

		return Value{Kind: Decimal, Decimal: n}, nil
	default: // Hex
		raw := append([]byte(nil), item...)

		if key == keyINMTYPE {
			return Value{Kind: Hex, Raw: raw, Decimal: dsTypeCode(raw)}, nil
		}

		return Value{Kind: Hex, Raw: raw}, nil
	}
}

// DatasetKind returns the symbolic name of an INMTYPE-decoded PDS/dataset
// kind byte, per spec.md §4.3's "small enum of dataset kinds".
func DatasetKind(raw []byte) string {
	switch dsTypeCode(raw) {
	case 0x80:
		return "Data Library"
	case 0x40:
		return "Program Library"
	default:
		return "None"
	}
}

func dsTypeCode(raw []byte) uint64 {
	var n uint64
	for _, b := range raw {
		n = n<<8 | uint64(b)
	}

	return n
}
