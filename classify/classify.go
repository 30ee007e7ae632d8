// Package classify sniffs dataset and member payloads to decide whether
// they hold text or binary content, and what MIME type and extension they
// should be reported under, spec.md §4.7.
package classify

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mainframed/xmit-go/ebcdic"
)

// Result is the outcome of classifying one payload.
type Result struct {
	MIMEType  string
	Charset   string
	Extension string
	IsText    bool
}

// Payload sniffs data and reports its MIME type, charset, extension, and
// whether it should be treated as textual, spec.md §4.7.
//
// data is sniffed after translation through codec rather than on the raw
// EBCDIC bytes: the sniffer's charset heuristics are built around ASCII and
// UTF-8 byte patterns, with no notion of EBCDIC the way a libmagic-backed
// classifier would have, so translating first is what lets ordinary
// mainframe text (JCL, COBOL source, listings) actually sniff as text
// instead of opaque binary. The nested-XMI eyecatcher check below still
// looks at the original raw bytes, since an XMI stream nested inside a
// member is itself EBCDIC-framed.
//
// forceText overrides the sniffer's textual verdict and forces a ".txt"
// extension regardless of what was sniffed, matching the archive's
// force_text configuration knob.
func Payload(data []byte, codec ebcdic.Codepage, forceText bool) Result {
	decoded, _ := codec.Decode(data)
	detected := mimetype.Detect([]byte(decoded))

	mimeType, charset := splitMIME(detected.String())
	extension := detected.Extension()
	if extension == "" {
		extension = fallbackExtension(mimeType)
	}

	if mimeType == "application/octet-stream" && isNestedXMI(data, codec) {
		mimeType = "application/xmit"
		extension = ".xmi"
	}

	isText := mimeType == "text/plain" || charset != "binary" || forceText

	if forceText {
		extension = ".txt"
	}

	return Result{
		MIMEType:  mimeType,
		Charset:   charset,
		Extension: extension,
		IsText:    isText,
	}
}

// Directory builds the classification the archive assigns a dataset whose
// IEBCOPY reassembly succeeded: a PDS directory carries no payload of its
// own to sniff, spec.md §4.7.
func Directory() Result {
	return Result{MIMEType: "pds/directory"}
}

// splitMIME separates a "type/subtype; charset=value" sniffer string into
// its MIME type and charset, defaulting charset to "binary" when absent
// (mimetype.MIME.String() omits the parameter for non-text detections).
func splitMIME(s string) (mimeType, charset string) {
	parts := strings.SplitN(s, ";", 2)
	mimeType = strings.TrimSpace(parts[0])

	charset = "binary"
	if len(parts) == 2 {
		if idx := strings.Index(parts[1], "="); idx >= 0 {
			charset = strings.TrimSpace(parts[1][idx+1:])
		}
	}

	return mimeType, charset
}

func fallbackExtension(mimeType string) string {
	if idx := strings.Index(mimeType, "/"); idx >= 0 {
		return "." + mimeType[idx+1:]
	}

	return ""
}

// isNestedXMI recognizes a member that is itself an XMI stream even though
// the sniffer reports it as opaque binary, spec.md §4.7.
func isNestedXMI(data []byte, codec ebcdic.Codepage) bool {
	if len(data) < 8 {
		return false
	}

	name, err := codec.Decode(data[2:8])
	return err == nil && name == "INMR01"
}
