// Package xmerr defines the error taxonomy shared by every decoder in xmit-go.
//
// Every decoder in the module returns errors carrying an error kind and the
// byte offset at which the problem was detected, rather than a bare error
// string. (archive option validation and tapecomp.For's unknown-flag error
// are plain errors.) Callers that only care about the category of failure
// can use errors.Is against the package-level sentinels; callers that want
// the offset can type-assert to *Error.
package xmerr

import "fmt"

// Kind classifies why a decode operation failed.
type Kind int

const (
	// InvalidFormat means framing detection failed or a required magic value
	// mismatched (e.g. neither an XMI nor a tape header, or a bad IEBCOPY
	// eyecatcher).
	InvalidFormat Kind = iota
	// Truncated means a declared length runs past the end of the input
	// buffer.
	Truncated
	// UnsupportedRecord means the input asks for something this decoder
	// deliberately does not implement, such as an AMSCIPHR-encrypted payload
	// or an unrecognized compression flag combination.
	UnsupportedRecord
	// EncodingError means an EBCDIC byte fell outside the configured
	// codepage.
	EncodingError
	// InconsistentArchive means the archive does not hold what was asked
	// of it: the archive query API returns it for a dataset or member name
	// it does not hold. There is no strict mode; the DELETED{n} member-count
	// fallback is always applied with a warning.
	InconsistentArchive
	// IoError means a filesystem read or write failed. The core parser never
	// produces this kind; it exists for extraction-path collaborators that
	// choose to report errors through this type.
	IoError
)

func (k Kind) String() string {
	switch k {
	case InvalidFormat:
		return "InvalidFormat"
	case Truncated:
		return "Truncated"
	case UnsupportedRecord:
		return "UnsupportedRecord"
	case EncodingError:
		return "EncodingError"
	case InconsistentArchive:
		return "InconsistentArchive"
	case IoError:
		return "IoError"
	default:
		return "Unknown"
	}
}

// sentinel is the comparable value each Kind's package-level error wraps, so
// that errors.Is(err, ErrTruncated) works regardless of the offset or
// message carried by the concrete *Error.
type sentinel Kind

func (s sentinel) Error() string { return Kind(s).String() }

// Package-level sentinels for errors.Is matching.
var (
	ErrInvalidFormat      error = sentinel(InvalidFormat)
	ErrTruncated          error = sentinel(Truncated)
	ErrUnsupportedRecord  error = sentinel(UnsupportedRecord)
	ErrEncodingError      error = sentinel(EncodingError)
	ErrInconsistentArchive error = sentinel(InconsistentArchive)
	ErrIoError            error = sentinel(IoError)
)

func sentinelFor(k Kind) error {
	switch k {
	case InvalidFormat:
		return ErrInvalidFormat
	case Truncated:
		return ErrTruncated
	case UnsupportedRecord:
		return ErrUnsupportedRecord
	case EncodingError:
		return ErrEncodingError
	case InconsistentArchive:
		return ErrInconsistentArchive
	case IoError:
		return ErrIoError
	default:
		return ErrInvalidFormat
	}
}

// Error is the concrete error type returned by every decoder in the module.
type Error struct {
	Kind   Kind
	Offset int
	Msg    string
	Err    error // optional wrapped cause, e.g. an io or zlib error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at offset %d: %s: %v", e.Kind, e.Offset, e.Msg, e.Err)
	}

	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's Kind, so that
// errors.Is(err, xmerr.ErrTruncated) works for any *Error of that kind.
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

// New creates an *Error with the given kind, offset, and message.
func New(kind Kind, offset int, msg string) *Error {
	return &Error{Kind: kind, Offset: offset, Msg: msg}
}

// Wrap creates an *Error with the given kind, offset, and message, wrapping
// an underlying cause.
func Wrap(kind Kind, offset int, msg string, cause error) *Error {
	return &Error{Kind: kind, Offset: offset, Msg: msg, Err: cause}
}
