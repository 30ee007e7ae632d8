// Package tapecomp provides the two block-level decompressors an AWS/HET
// tape stream can name in its flag bits (spec.md §4.4): zlib and bzip2.
//
// The Decompressor interface mirrors the Compressor/Decompressor split the
// retrieved time-series module uses for its payload codecs; this module only
// ever decompresses (it never writes AWS/HET files, an explicit non-goal),
// so there is no symmetric Compressor here.
package tapecomp

import (
	"bytes"
	"compress/bzip2"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/mainframed/xmit-go/xmerr"
)

// Decompressor decompresses one tape block's data.
type Decompressor interface {
	// Decompress returns the decompressed form of data.
	Decompress(data []byte) ([]byte, error)
}

// Flag identifies which compression, if any, a tape block header requests.
type Flag int

const (
	None Flag = iota
	Zlib
	Bzip2
)

// zlibDecompressor decompresses zlib-framed block data (flag 0x0100).
type zlibDecompressor struct{}

func (zlibDecompressor) Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, xmerr.Wrap(xmerr.InvalidFormat, 0, "opening zlib stream", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, xmerr.Wrap(xmerr.Truncated, 0, "reading zlib stream", err)
	}

	return out, nil
}

// bzip2Decompressor decompresses bzip2-framed block data (flag 0x0200).
type bzip2Decompressor struct{}

func (bzip2Decompressor) Decompress(data []byte) ([]byte, error) {
	r := bzip2.NewReader(bytes.NewReader(data))

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, xmerr.Wrap(xmerr.Truncated, 0, "reading bzip2 stream", err)
	}

	return out, nil
}

// noopDecompressor returns its input unchanged, for blocks carrying no
// compression flag.
type noopDecompressor struct{}

func (noopDecompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

// For returns the Decompressor for flag.
func For(flag Flag) (Decompressor, error) {
	switch flag {
	case None:
		return noopDecompressor{}, nil
	case Zlib:
		return zlibDecompressor{}, nil
	case Bzip2:
		return bzip2Decompressor{}, nil
	default:
		return nil, fmt.Errorf("tapecomp: unknown compression flag %d", flag)
	}
}
