// Package iebcopy reassembles a partitioned dataset (PDS/PDSE) from the
// IEBCOPY-formatted payload an XMI or tape dataset carries: the COPYR1/COPYR2
// control records, the directory block walk, and the member-data block walk
// that together recover one named blob of bytes per member, spec.md §4.5.
//
// The fixed-header records (COPYR1, COPYR2) follow the retrieved time-series
// module's Parse([]byte) error / Bytes() []byte convention for decoding a
// fixed binary layout (section.NumericHeader), adapted here to variable-
// length trailers instead of a single fixed size.
package iebcopy

import (
	"fmt"

	"github.com/mainframed/xmit-go/endian"
	"github.com/mainframed/xmit-go/format"
	"github.com/mainframed/xmit-go/xmerr"
)

// eyecatcher is the 3-byte IEBCOPY magic 0xCA6D0F, spec.md §4.5.
const eyecatcher = 0xCA6D0F

// COPYR1 is the first IEBCOPY control record: dataset kind, DSORG, LRECL,
// RECFM, device geometry, and (when present) the DS1 trailer fields.
type COPYR1 struct {
	Kind string // "PDS" or "PDSE"

	DSORG format.Organization
	BlockLength  int
	RecordLength int
	RECFM        format.RecordFormat
	KeyLength    int
	SMSFlags     byte

	DeviceOptions   uint16
	DeviceClass     byte
	DeviceUnit      byte
	DeviceMaxRecord uint32
	DeviceCylinders uint16
	DeviceTracks    uint16
	DeviceTrackLen  uint16
	DeviceOverhead  uint16

	HeaderRecordCount int

	// Trailer fields, present iff bytes 38..56 of the (unprefixed) record
	// are non-zero.
	HasTrailer      bool
	LastReferenced  string // "{yy:02}{jjjj:04}" per spec.md §4.5
	Extent          []byte
	Allocation      uint32
	LastTrackRecord []byte
	TrackBalance    uint16
}

// ParseCOPYR1 decodes the COPYR1 control record, spec.md §4.5. data may
// optionally carry an 8-byte BDW/SDW framing prefix (tape-derived datasets);
// its presence is detected by the eyecatcher's position.
func ParseCOPYR1(data []byte) (*COPYR1, error) {
	if len(data) < 12 {
		return nil, xmerr.New(xmerr.Truncated, 0, "COPYR1 record shorter than its fixed header")
	}

	if !hasEyecatcher(data, 1) && !hasEyecatcher(data, 9) {
		return nil, xmerr.New(xmerr.InvalidFormat, 0, "COPYR1 eyecatcher 0xCA6D0F not found")
	}

	if len(data) > 64 {
		return nil, xmerr.New(xmerr.InvalidFormat, 0, "COPYR1 record longer than 64 bytes")
	}

	if !hasEyecatcher(data, 1) {
		// Tape-derived datasets carry an 8-byte BDW/SDW prefix ahead of the
		// eyecatcher; strip it so offsets below line up with the un-prefixed
		// record layout.
		data = data[8:]
	}

	c := &COPYR1{Kind: "PDS"}
	if len(data) < 32 {
		return nil, xmerr.New(xmerr.Truncated, 0, "COPYR1 record shorter than its fixed fields")
	}

	if data[0]&0x01 != 0 {
		c.Kind = "PDSE"
	}

	be := endian.Big()
	c.DSORG = format.DecodeDSORG(be.Uint16(data[4:6]))
	c.BlockLength = int(be.Uint16(data[6:8]))
	c.RecordLength = int(be.Uint16(data[8:10]))
	c.RECFM = format.DecodeRECFM([2]byte{data[10], data[11]})
	c.KeyLength = int(data[11])
	c.SMSFlags = data[13]

	if len(data) >= 32 {
		c.DeviceOptions = be.Uint16(data[16:18])
		c.DeviceClass = data[18]
		c.DeviceUnit = data[19]
		c.DeviceMaxRecord = be.Uint32(data[20:24])
		c.DeviceCylinders = be.Uint16(data[24:26])
		c.DeviceTracks = be.Uint16(data[26:28])
		c.DeviceTrackLen = be.Uint16(data[28:30])
		c.DeviceOverhead = be.Uint16(data[30:32])
	}

	if len(data) >= 38 {
		c.HeaderRecordCount = int(be.Uint16(data[36:38]))
	}

	if len(data) >= 56 && !allZero(data[38:56]) {
		c.HasTrailer = true
		c.Extent = append([]byte(nil), data[42:45]...)
		c.Allocation = be.Uint32(data[45:49])
		c.LastTrackRecord = append([]byte(nil), data[49:52]...)
		c.TrackBalance = be.Uint16(data[52:54])

		refd := data[39:42]
		year := int(refd[0]) % 100
		day := int(be.Uint16(refd[1:3]))
		c.LastReferenced = fmt.Sprintf("%02d%04d", year, day)
	}

	return c, nil
}

func hasEyecatcher(data []byte, offset int) bool {
	if len(data) < offset+3 {
		return false
	}

	v := uint32(data[offset])<<16 | uint32(data[offset+1])<<8 | uint32(data[offset+2])

	return v == eyecatcher
}

func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}

	return true
}

// COPYR2 is the second IEBCOPY control record: the Data Extent Block prefix
// and its 16 extent descriptors.
type COPYR2 struct {
	DEB     []byte // 16-byte DEB prefix
	Extents [][]byte // 16 entries of 16 bytes each
}

// ParseCOPYR2 decodes the COPYR2 control record, spec.md §4.5.
func ParseCOPYR2(data []byte) (*COPYR2, error) {
	if len(data) > 276 {
		return nil, xmerr.New(xmerr.InvalidFormat, 0, "COPYR2 record longer than 276 bytes")
	}

	c := &COPYR2{}
	if len(data) >= 16 {
		c.DEB = append([]byte(nil), data[0:16]...)
	}

	for i := 0; i+16 <= len(data) && i < 256; i += 16 {
		c.Extents = append(c.Extents, append([]byte(nil), data[i:i+16]...))
	}

	return c, nil
}

// HasEyecatcher reports whether data begins with the IEBCOPY eyecatcher,
// possibly after an 8-byte tape-framing prefix, spec.md §4.5.
func HasEyecatcher(data []byte) bool {
	return hasEyecatcher(data, 1) || hasEyecatcher(data, 9)
}
