// Package xmi decodes a NETDATA/XMIT/XMI byte stream into its control
// records, file metadata, and logical dataset records, spec.md §4.2.
//
// The segment loop mirrors the retrieved time-series module's style of
// walking a byte buffer one self-describing unit at a time (mebo's blob
// iteration), here applied to one-byte-length-prefixed XMI segments instead
// of length-prefixed metric blobs.
package xmi

import (
	"strconv"
	"strings"
	"time"

	"github.com/mainframed/xmit-go/ebcdic"
	"github.com/mainframed/xmit-go/format"
	"github.com/mainframed/xmit-go/textunit"
	"github.com/mainframed/xmit-go/xmerr"
)

const (
	flagControl = 0x20
	flagFirst   = 0x80
	flagLast    = 0x40
)

// Header is the XMI originator/destination/version metadata from INMR01.
type Header struct {
	OriginatorNode string
	OriginatorUser string
	TargetNode     string
	TargetUser     string
	Version        string
	CreatedAt      string // ISO-8601 with microseconds, best-effort
	FileCount      int
}

// FileControl is one INMR02/INMR03 pair: a dataset's layout metadata.
type FileControl struct {
	Index int

	DatasetName  string
	Organization format.Organization
	RECFM        format.RecordFormat
	LRECL        int
	BlockSize    int
	UtilityName  string

	HasMessage bool
}

// Dataset is one decoded dataset's logical records, keyed to its
// FileControl by Index.
type Dataset struct {
	FileControl FileControl
	Records     [][]byte
}

// Result is the full decode of an XMI stream.
type Result struct {
	Header   Header
	Datasets []Dataset
	// Message holds the optional transmission message's logical records,
	// spec.md §4.2's message-detection rule.
	Message      [][]byte
	MessageLRECL int
}

// Decode walks data as a sequence of XMI segments, spec.md §4.2. nameStem is
// the dataset-naming fallback's source: the caller's configured override or
// the input file's stem, uppercased, or empty when neither is known. It is
// used only when an INMR02 carries no INMDSNAM text unit.
func Decode(data []byte, codec ebcdic.Codepage, nameStem string) (*Result, error) {
	res := &Result{}

	var curRecord []byte
	var curFileControls []FileControl
	var messageFileControl *FileControl
	var pendingMessageSignal bool
	messageRouted := false
	firstINMR02Seen := false

	loc := 0
	for loc < len(data) {
		if loc+2 > len(data) {
			return nil, xmerr.New(xmerr.Truncated, loc, "XMI segment header runs past end of buffer")
		}

		length := int(data[loc])
		flags := data[loc+1]

		if length < 2 {
			return nil, xmerr.New(xmerr.InvalidFormat, loc, "XMI segment declares length shorter than its own header")
		}
		if loc+length > len(data) {
			return nil, xmerr.New(xmerr.Truncated, loc, "XMI segment runs past end of buffer")
		}

		payload := data[loc+2 : loc+length]

		if flags&flagControl != 0 {
			if len(payload) < 6 {
				return nil, xmerr.New(xmerr.Truncated, loc, "XMI control record shorter than its 6-byte name")
			}

			name, err := codec.Decode(payload[:6])
			if err != nil {
				return nil, xmerr.Wrap(xmerr.EncodingError, loc, "decoding XMI control record name", err)
			}

			body := payload[6:]

			switch name {
			case "INMR01":
				hdr, signal, err := decodeINMR01(body, codec)
				if err != nil {
					return nil, err
				}
				res.Header = hdr
				pendingMessageSignal = signal

			case "INMR02":
				fc, err := decodeINMR02(body, codec, len(curFileControls)+1)
				if err != nil {
					return nil, err
				}

				isFirst := !firstINMR02Seen
				if isFirst {
					firstINMR02Seen = true
					if !fc.HasMessage {
						fc.HasMessage = pendingMessageSignal
					}
					if fc.HasMessage && fc.DatasetName == "" {
						messageRouted = true
					}
				}

				if fc.DatasetName == "" {
					fc.DatasetName = datasetNameFallback(fc.Index, nameStem)
				}

				curFileControls = append(curFileControls, fc)

				if isFirst && messageRouted {
					messageFileControl = &curFileControls[len(curFileControls)-1]
				} else {
					res.Datasets = append(res.Datasets, Dataset{FileControl: fc})
				}

			case "INMR03":
				if len(curFileControls) == 0 {
					return nil, xmerr.New(xmerr.InvalidFormat, loc, "INMR03 with no preceding INMR02")
				}

				target := &curFileControls[len(curFileControls)-1]
				if err := applyINMR03(target, body, codec); err != nil {
					return nil, err
				}

				if messageRouted && target == messageFileControl {
					res.MessageLRECL = target.LRECL
				} else if len(res.Datasets) > 0 {
					res.Datasets[len(res.Datasets)-1].FileControl = *target
				}

			case "INMR04":
				// Installation-exit data, recorded but not interpreted.

			case "INMR06":
				return res, nil

			case "INMR07":
				// Notification, ignored.
			}
		} else {
			curRecord = append(curRecord, payload...)

			if flags&flagLast != 0 {
				record := curRecord
				curRecord = nil

				if messageRouted && len(res.Datasets) == 0 {
					res.Message = append(res.Message, record)
				} else if len(res.Datasets) > 0 {
					idx := len(res.Datasets) - 1
					res.Datasets[idx].Records = append(res.Datasets[idx].Records, record)
				}
			}
		}

		loc += length
	}

	return res, nil
}

func decodeINMR01(body []byte, codec ebcdic.Codepage) (Header, bool, error) {
	set, err := textunit.Decode(body, codec)
	if err != nil {
		return Header{}, false, err
	}

	h := Header{
		OriginatorNode: set.String("INMFNODE"),
		OriginatorUser: set.String("INMFUID"),
		TargetNode:     set.String("INMTNODE"),
		TargetUser:     set.String("INMTUID"),
		Version:        set.String("INMFVERS"),
		FileCount:      int(set.Uint("INMNUMF")),
	}

	if raw := set.String("INMFTIME"); raw != "" {
		h.CreatedAt = normalizeINMFTIME(raw)
	}

	return h, set.HasMessage, nil
}

// normalizeINMFTIME expands a YYYYMMDDHHMMSS[uuuuuu] string, right-padded
// with '0' to width 20, into ISO-8601 with microseconds, spec.md §4.2.
func normalizeINMFTIME(raw string) string {
	for len(raw) < 20 {
		raw += "0"
	}

	t, err := time.Parse("20060102150405.000000", raw[:14]+"."+raw[14:])
	if err != nil {
		return ""
	}

	return t.Format("2006-01-02T15:04:05.000000")
}

func decodeINMR02(body []byte, codec ebcdic.Codepage, index int) (FileControl, error) {
	if len(body) < 4 {
		return FileControl{}, xmerr.New(xmerr.Truncated, 0, "INMR02 shorter than its 4-byte file count")
	}

	set, err := textunit.Decode(body[4:], codec)
	if err != nil {
		return FileControl{}, err
	}

	fc := FileControl{
		Index:       index,
		DatasetName: set.String("INMDSNAM"),
		UtilityName: set.String("INMUTILN"),
		HasMessage:  set.HasMessage,
	}

	if raw := set.Bytes("INMDSORG"); raw != nil {
		fc.Organization = format.DecodeDSORG(uint16From(raw))
	}
	if raw := set.Bytes("INMRECFM"); len(raw) >= 2 {
		fc.RECFM = format.DecodeRECFM([2]byte{raw[0], raw[1]})
	}
	fc.LRECL = int(set.Uint("INMLRECL"))
	fc.BlockSize = int(set.Uint("INMBLKSZ"))

	return fc, nil
}

func applyINMR03(fc *FileControl, body []byte, codec ebcdic.Codepage) error {
	set, err := textunit.Decode(body, codec)
	if err != nil {
		return err
	}

	if fc.LRECL == 0 {
		fc.LRECL = int(set.Uint("INMLRECL"))
	}
	if fc.RECFM == "" {
		if raw := set.Bytes("INMRECFM"); len(raw) >= 2 {
			fc.RECFM = format.DecodeRECFM([2]byte{raw[0], raw[1]})
		}
	}

	return nil
}

func uint16From(raw []byte) uint16 {
	var v uint16
	for _, b := range raw {
		v = v<<8 | uint16(b)
	}

	return v
}

// datasetNameFallback synthesizes a dataset name when INMR02 carries no
// INMDSNAM, spec.md §4.2. stem, when non-empty, is already the resolved
// override-or-file-stem and takes precedence; otherwise a positional
// "DATASET<n>" placeholder is used.
func datasetNameFallback(index int, stem string) string {
	if stem != "" {
		return stem
	}

	return strings.ToUpper("DATASET" + strconv.Itoa(index))
}
