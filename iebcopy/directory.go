package iebcopy

import (
	"fmt"
	"strings"
	"time"

	"github.com/mainframed/xmit-go/ebcdic"
	"github.com/mainframed/xmit-go/endian"
	"github.com/mainframed/xmit-go/xmerr"
)

const directoryPageSize = 276

// endOfDirectory is the 8x0xFF member-name sentinel that terminates the
// directory, spec.md §4.5.
var endOfDirectory = [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ISPFStats is a member's ISPF authoring statistics, present iff the
// directory entry's parms block is at least 30 bytes and notes == 0,
// spec.md §4.5.
type ISPFStats struct {
	Version      string // "MM.mm"
	Flags        byte
	CreationDate string // ISO-8601, best-effort
	ModifyDate   string // ISO-8601, best-effort
	Lines        int
	NewLines     int
	ModifiedLines int
	User         string
}

// DirEntry is one member's directory entry: its TTR locator, alias flag,
// and optional ISPF statistics, spec.md §4.5.
type DirEntry struct {
	Name     string
	TTR      uint32 // low 24 bits significant
	Alias    bool
	Notes    byte
	Halfwords int
	Parms    []byte
	ISPF     *ISPFStats
}

// ParseDirectory walks the 276-byte directory pages in data and returns
// every member entry up to the 8x0xFF terminator, spec.md §4.5. consumed is
// the number of leading bytes of data occupied by the directory (rounded up
// to the page boundary that held the terminator), so a caller holding a
// combined directory+member-data buffer can slice the remainder itself.
func ParseDirectory(data []byte, codec ebcdic.Codepage) (entries []DirEntry, consumed int, err error) {
	be := endian.Big()
	blockLoc := 0

	for blockLoc < len(data) {
		if blockLoc+22 > len(data) {
			break
		}

		entryLen := int(be.Uint16(data[blockLoc+20:blockLoc+22])) - 2
		if entryLen < 0 {
			break
		}

		infoStart := blockLoc + 22
		infoEnd := infoStart + entryLen
		if infoEnd > len(data) {
			infoEnd = len(data)
		}

		pageEntries, terminated, perr := parseDirectoryPage(data[infoStart:infoEnd], infoStart, codec)
		if perr != nil {
			return nil, 0, perr
		}

		entries = append(entries, pageEntries...)
		blockLoc += directoryPageSize

		if terminated {
			return entries, blockLoc, nil
		}
	}

	return entries, blockLoc, nil
}

// parseDirectoryPage decodes one page's worth of directory entries from
// info (already sliced to that page's declared length), returning whether
// the 8x0xFF terminator was found.
func parseDirectoryPage(info []byte, baseOffset int, codec ebcdic.Codepage) ([]DirEntry, bool, error) {
	var entries []DirEntry

	loc := 0
	for loc < len(info) {
		if loc+8 > len(info) {
			break
		}

		var name8 [8]byte
		copy(name8[:], info[loc:loc+8])
		if name8 == endOfDirectory {
			return entries, true, nil
		}

		if loc+12 > len(info) {
			return nil, false, xmerr.New(xmerr.Truncated, baseOffset+loc, "directory entry runs past end of buffer")
		}

		name, err := codec.Decode(info[loc : loc+8])
		if err != nil {
			return nil, false, xmerr.Wrap(xmerr.EncodingError, baseOffset+loc, "decoding directory entry name", err)
		}

		ttr := uint32(info[loc+8])<<16 | uint32(info[loc+9])<<8 | uint32(info[loc+10])
		infoByte := info[loc+11]

		entry := DirEntry{
			Name:      strings.TrimRight(name, " "),
			TTR:       ttr,
			Alias:     infoByte&0x80 != 0,
			Notes:     (infoByte & 0x60) >> 5,
			Halfwords: int(infoByte&0x1F) * 2,
		}

		parmsStart := loc + 12
		parmsEnd := parmsStart + entry.Halfwords
		if parmsEnd > len(info) {
			parmsEnd = len(info)
		}
		entry.Parms = append([]byte(nil), info[parmsStart:parmsEnd]...)

		if len(entry.Parms) >= 30 && entry.Notes == 0 {
			entry.ISPF = parseISPFStats(entry.Parms, codec)
		}

		entries = append(entries, entry)
		loc = parmsEnd
	}

	return entries, false, nil
}

// parseISPFStats decodes a directory entry's parms block into ISPF
// statistics, spec.md §4.5's field table.
func parseISPFStats(parms []byte, codec ebcdic.Codepage) *ISPFStats {
	s := &ISPFStats{
		Version:      fmt.Sprintf("%02d.%02d", parms[0], parms[1]),
		Flags:        parms[2],
		CreationDate: ispfDate(parms[4:8], 0),
		ModifyDate:   ispfDate(parms[8:14], parms[3]),
		Lines:        int(endian.Big().Uint16(parms[14:16])),
		NewLines:     int(endian.Big().Uint16(parms[16:18])),
		ModifiedLines: int(endian.Big().Uint16(parms[18:20])),
	}

	if user, err := codec.Decode(parms[20:28]); err == nil {
		s.User = strings.TrimRight(user, " ")
	}

	if s.Flags&0x10 != 0 && len(parms) >= 40 {
		s.Lines = int(endian.Big().Uint32(parms[28:32]))
		s.NewLines = int(endian.Big().Uint32(parms[32:36]))
		s.ModifiedLines = int(endian.Big().Uint32(parms[36:40]))
	}

	return s
}

// ispfDate decodes a packed ISPF date field, spec.md §4.5: century byte
// c -> 19+c, year and day bytes are hex-digit pairs read as decimal, day
// "000" is coerced to "001". field is 4 bytes (creation: no time) or 6
// bytes (modification: +hours,+minutes); seconds arrives separately since
// it's shared with an earlier parms offset.
func ispfDate(field []byte, seconds byte) string {
	if len(field) < 4 {
		return ""
	}

	// Each byte's hex digits are read as decimal digits (packed decimal),
	// not the byte's integer value.
	century := 19 + int(field[0])
	year := nibbleHi(field[1])*10 + nibbleLo(field[1])
	day := nibbleHi(field[2])*100 + nibbleLo(field[2])*10 + nibbleHi(field[3])
	if day == 0 {
		day = 1
	}

	hours, minutes := 0, 0
	if len(field) >= 6 {
		hours = nibbleHi(field[4])*10 + nibbleLo(field[4])
		minutes = nibbleHi(field[5])*10 + nibbleLo(field[5])
	}

	secs := 0
	if seconds != 0 {
		secs = nibbleHi(seconds)*10 + nibbleLo(seconds)
	}

	fullYear := century*100 + year
	if fullYear < 1900 || fullYear > 2099 || day < 1 || day > 366 {
		return ""
	}

	t := time.Date(fullYear, time.January, 1, hours, minutes, secs, 0, time.UTC).AddDate(0, 0, day-1)

	return t.Format(time.RFC3339)
}

func nibbleHi(b byte) int { return int(b >> 4) }
func nibbleLo(b byte) int { return int(b & 0x0F) }
