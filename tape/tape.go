// Package tape decodes AWSTAPE and HET virtual tape streams into a sequence
// of tape files, recognizing VOL1/HDR1/HDR2 labels along the way.
//
// A tape stream is a sequence of 6-byte-header blocks; this decoder walks
// them one at a time much like the retrieved time-series module walks its
// own fixed-size section headers (section.NumericHeader et al.), accumulates
// decompressed block data across every block up to the next EOF mark, and
// promotes or discards the accumulator at each EOF mark.
package tape

import (
	"strconv"
	"strings"
	"time"

	"github.com/mainframed/xmit-go/ebcdic"
	"github.com/mainframed/xmit-go/endian"
	"github.com/mainframed/xmit-go/iebcopy"
	"github.com/mainframed/xmit-go/internal/pool"
	"github.com/mainframed/xmit-go/tapecomp"
	"github.com/mainframed/xmit-go/xmerr"
)

const blockHeaderSize = 6

// Flag bits in a block header, spec.md §4.4.
const (
	flagNewRec = 0x8000
	flagEndRec = 0x2000
	flagEOF    = 0x4000
	flagBzip2  = 0x0200
	flagZlib   = 0x0100
)

// VolumeLabel is the VOL1 label, spec.md §3.
type VolumeLabel struct {
	Serial string
	Owner  string
}

// Label is the merged HDR1/HDR2 standard-label pair for one tape file,
// spec.md §3 and §4.4.
type Label struct {
	DatasetName     string
	Serial          string
	VolumeSequence  int
	DatasetSequence int
	Generation      int
	Version         int
	CreationDate    string // ISO-8601, best-effort
	ExpirationDate  string
	SystemCode      string

	RECFM        string
	BlockLength  int
	RecordLength int
	JobID        string
}

// File is one decoded tape file (a dataset's worth of accumulated records).
type File struct {
	Number int
	Label  Label
	Data   []byte
	// Records holds the length-delimited records when the file's HDR2
	// names a variable record format; nil for fixed-format files.
	Records [][]byte
}

// Result is the full decode of a tape stream.
type Result struct {
	Volume *VolumeLabel
	Files  []File
}

// Decode walks data as a sequence of AWS/HET blocks and returns the
// completed tape files, spec.md §4.4.
func Decode(data []byte, codec ebcdic.Codepage) (*Result, error) {
	res := &Result{}

	acc := pool.GetSegmentBuffer()
	defer pool.PutSegmentBuffer(acc)

	var curHDR1, curHDR2 *Label
	fileNum := 1

	loc := 0
	for loc < len(data) {
		if loc+blockHeaderSize > len(data) {
			return nil, xmerr.New(xmerr.Truncated, loc, "tape block header runs past end of buffer")
		}

		curLen := int(endian.Little().Uint16(data[loc : loc+2]))
		flags := endian.Big().Uint16(data[loc+4 : loc+6])

		if flags&(flagNewRec|flagEOF|flagEndRec) == 0 {
			return nil, xmerr.New(xmerr.InvalidFormat, loc, "tape block header carries no recognized flag bit")
		}

		bodyStart := loc + blockHeaderSize
		bodyEnd := bodyStart + curLen
		if bodyEnd > len(data) {
			return nil, xmerr.New(xmerr.Truncated, loc, "tape block body runs past end of buffer")
		}

		body := data[bodyStart:bodyEnd]

		decompressed, err := decompressBlock(body, flags)
		if err != nil {
			return nil, err
		}

		acc.MustWrite(decompressed)

		// Labels are recognized at every block boundary while they're still
		// being accumulated, spec.md §4.4.
		if res.Volume == nil {
			if vol, ok := tryVolumeLabel(acc.Bytes(), codec); ok {
				res.Volume = vol
			}
		}

		if curLen == 80 {
			if hdr, ok := tryHDR1(body, codec); ok {
				curHDR1 = hdr
			}
			if hdr, ok := tryHDR2(body, codec); ok {
				curHDR2 = mergeHDR2(curHDR1, hdr)
			}
		}

		if flags&flagEOF != 0 {
			fileData := append([]byte(nil), acc.Bytes()...)
			acc.Reset()

			if isLabelBuffer(fileData, codec) {
				curHDR1, curHDR2 = nil, nil
				loc = bodyEnd
				continue
			}

			if len(fileData) > 0 {
				f := File{Number: fileNum, Data: fileData}
				if curHDR1 != nil {
					f.Label = *curHDR1
				}
				if curHDR2 != nil {
					mergeLabelFields(&f.Label, curHDR2)

					if strings.HasPrefix(f.Label.RECFM, "V") {
						records, err := iebcopy.SplitVariableRecords(fileData)
						if err == nil {
							f.Records = records
						}
					}
				}

				if f.Label.DatasetName == "" {
					f.Label.DatasetName = "FILE" + pad4(fileNum)
				}

				res.Files = append(res.Files, f)
				fileNum++
			}

			curHDR1, curHDR2 = nil, nil
		}

		loc = bodyEnd
	}

	return res, nil
}

func decompressBlock(body []byte, flags uint16) ([]byte, error) {
	var flag tapecomp.Flag
	switch {
	case flags&flagBzip2 != 0:
		flag = tapecomp.Bzip2
	case flags&flagZlib != 0:
		flag = tapecomp.Zlib
	default:
		flag = tapecomp.None
	}

	d, err := tapecomp.For(flag)
	if err != nil {
		return nil, xmerr.Wrap(xmerr.UnsupportedRecord, 0, "resolving tape block decompressor", err)
	}

	out, err := d.Decompress(body)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func tryVolumeLabel(acc []byte, codec ebcdic.Codepage) (*VolumeLabel, bool) {
	if len(acc) < 51 {
		return nil, false
	}

	head, err := codec.Decode(acc[:4])
	if err != nil || head != "VOL1" {
		return nil, false
	}

	serial, _ := codec.Decode(acc[4:10])
	owner, _ := codec.Decode(acc[41:51])

	return &VolumeLabel{Serial: serial, Owner: owner}, true
}

func isLabelBuffer(data []byte, codec ebcdic.Codepage) bool {
	if len(data) < 4 {
		return false
	}

	head, err := codec.Decode(data[:4])
	if err != nil {
		return false
	}

	switch head {
	case "VOL1", "HDR1", "HDR2", "EOF1", "EOF2":
		return true
	default:
		return false
	}
}

func tryHDR1(block []byte, codec ebcdic.Codepage) (*Label, bool) {
	if len(block) != 80 {
		return nil, false
	}

	t, err := codec.Decode(block)
	if err != nil || !strings.HasPrefix(t, "HDR1") {
		return nil, false
	}

	return &Label{
		DatasetName:     strings.TrimSpace(t[4:21]),
		Serial:          t[21:27],
		VolumeSequence:  lenientInt(t[27:31]),
		DatasetSequence: lenientInt(t[31:35]),
		Generation:      lenientInt(t[35:39]),
		Version:         lenientInt(t[39:41]),
		CreationDate:    decodeTapeDate(t[41:47]),
		ExpirationDate:  decodeTapeDate(t[47:53]),
		SystemCode:      strings.TrimSpace(t[60:73]),
	}, true
}

func tryHDR2(block []byte, codec ebcdic.Codepage) (*Label, bool) {
	if len(block) != 80 {
		return nil, false
	}

	t, err := codec.Decode(block)
	if err != nil || !strings.HasPrefix(t, "HDR2") {
		return nil, false
	}

	return &Label{
		RECFM:        string(t[4]),
		BlockLength:  lenientInt(t[5:10]),
		RecordLength: lenientInt(strings.TrimSpace(t[10:15])),
		JobID:        strings.TrimSpace(t[17:34]),
	}, true
}

func mergeHDR2(hdr1, hdr2 *Label) *Label {
	merged := &Label{}
	if hdr1 != nil {
		*merged = *hdr1
	}

	mergeLabelFields(merged, hdr2)

	return merged
}

func mergeLabelFields(dst *Label, src *Label) {
	if src.RECFM != "" {
		dst.RECFM = src.RECFM
	}
	if src.BlockLength != 0 {
		dst.BlockLength = src.BlockLength
	}
	if src.RecordLength != 0 {
		dst.RecordLength = src.RecordLength
	}
	if src.JobID != "" {
		dst.JobID = src.JobID
	}
}

// decodeTapeDate decodes a 6-character cyyddd packed-ASCII date, spec.md
// §4.4: a leading space means century 19; a non-space digit c selects
// century 20+c. Day 000 is coerced to 001.
func decodeTapeDate(field string) string {
	if len(field) != 6 {
		return ""
	}

	century := 1900
	if field[0] != ' ' {
		digit, err := strconv.Atoi(string(field[0]))
		if err == nil {
			century = (20 + digit) * 100
		}
	}

	yy, err1 := strconv.Atoi(field[1:3])
	ddd := field[3:6]
	if ddd == "000" {
		ddd = "001"
	}
	day, err2 := strconv.Atoi(ddd)
	if err1 != nil || err2 != nil {
		return ""
	}

	year := century + yy
	date := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day-1)

	return date.Format("2006-01-02")
}

func lenientInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}

	return n
}

func pad4(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 4 {
		s = "0" + s
	}

	return s
}

