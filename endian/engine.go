// Package endian provides the byte-order engine abstraction used across the
// container decoders.
//
// Mainframe container formats are not uniformly big-endian: AWS/HET tape
// block headers store their length fields little-endian (spec.md §4.4) while
// everything else in this module — XMI text units, IEBCOPY fixed sections,
// TTRs — is big-endian, the native byte order of the System/370 architecture
// these formats came from. Rather than sprinkle encoding/binary.LittleEndian
// and .BigEndian literals through every decoder, each one takes an
// EndianEngine, adapted from the combined ByteOrder/AppendByteOrder
// abstraction used by the retrieved example module's own endian package for
// its (single-order-per-blob) binary layouts.
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary
// into one interface. binary.LittleEndian and binary.BigEndian already
// satisfy it.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Little returns the little-endian engine, used for AWS/HET block headers.
func Little() EndianEngine { return binary.LittleEndian }

// Big returns the big-endian engine, used for everything else this module
// decodes (XMI text units, IEBCOPY sections, TTRs).
func Big() EndianEngine { return binary.BigEndian }
