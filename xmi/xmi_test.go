package xmi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mainframed/xmit-go/ebcdic"
)

var reverseCP1140 = buildReverseCP1140()

func buildReverseCP1140() map[byte]byte {
	reverse := make(map[byte]byte, 256)
	for b := 0; b < 256; b++ {
		decoded, _ := ebcdic.CP1140.Decode([]byte{byte(b)})
		r := []rune(decoded)[0]
		if r < 128 {
			reverse[byte(r)] = byte(b)
		}
	}

	return reverse
}

func ebcdicBytes(t *testing.T, s string) []byte {
	t.Helper()

	out := make([]byte, len(s))
	for i, c := range []byte(s) {
		b, ok := reverseCP1140[c]
		require.True(t, ok)
		out[i] = b
	}

	return out
}

// segment builds one length/flags-prefixed XMI segment.
func segment(flags byte, payload []byte) []byte {
	total := len(payload) + 2
	return append([]byte{byte(total), flags}, payload...)
}

// controlSegment builds a control-record segment: name + text-unit body.
func controlSegment(t *testing.T, name string, body []byte) []byte {
	t.Helper()

	payload := append(ebcdicBytes(t, name), body...)
	return segment(0x20, payload)
}

// textUnit builds one key/count=1/length/value tuple.
func textUnit(key uint16, value []byte) []byte {
	out := []byte{byte(key >> 8), byte(key), 0x00, 0x01}
	out = append(out, byte(len(value)>>8), byte(len(value)))
	out = append(out, value...)
	return out
}

// zeroCountUnit builds a key/count=0 tuple with no entries.
func zeroCountUnit(key uint16) []byte {
	return []byte{byte(key >> 8), byte(key), 0x00, 0x00}
}

func dataSegment(first, last bool, payload []byte) []byte {
	var flags byte
	if first {
		flags |= flagFirst
	}
	if last {
		flags |= flagLast
	}

	return segment(flags, payload)
}

func TestDecodeSequentialDataset(t *testing.T) {
	var tunits []byte
	tunits = append(tunits, textUnit(0x0002, ebcdicBytes(t, "MY.DATASET"))...) // INMDSNAM
	tunits = append(tunits, textUnit(0x003C, []byte{0x40, 0x00})...)          // INMDSORG -> PS
	tunits = append(tunits, textUnit(0x0049, []byte{0x90, 0x00})...)          // INMRECFM -> FB

	inmr02Body := append([]byte{0, 0, 0, 1}, tunits...)

	var lrecl []byte
	lrecl = append(lrecl, textUnit(0x0042, []byte{0x00, 0x50})...) // INMLRECL = 80

	var stream []byte
	stream = append(stream, controlSegment(t, "INMR01", nil)...)
	stream = append(stream, controlSegment(t, "INMR02", inmr02Body)...)
	stream = append(stream, controlSegment(t, "INMR03", lrecl)...)
	stream = append(stream, dataSegment(true, true, []byte("HELLO, WORLD"))...)
	stream = append(stream, controlSegment(t, "INMR06", nil)...)

	res, err := Decode(stream, ebcdic.CP1140, "")
	require.NoError(t, err)
	require.Len(t, res.Datasets, 1)
	require.Equal(t, "MY.DATASET", res.Datasets[0].FileControl.DatasetName)
	require.Equal(t, "FB", res.Datasets[0].FileControl.RECFM.String())
	require.Equal(t, 80, res.Datasets[0].FileControl.LRECL)
	require.Len(t, res.Datasets[0].Records, 1)
	require.Equal(t, "HELLO, WORLD", string(res.Datasets[0].Records[0]))
}

func TestDecodeDatasetNameFallback(t *testing.T) {
	inmr02Body := append([]byte{0, 0, 0, 1}, textUnit(0x003C, []byte{0x40, 0x00})...)

	var stream []byte
	stream = append(stream, controlSegment(t, "INMR01", nil)...)
	stream = append(stream, controlSegment(t, "INMR02", inmr02Body)...)
	stream = append(stream, controlSegment(t, "INMR06", nil)...)

	res, err := Decode(stream, ebcdic.CP1140, "")
	require.NoError(t, err)
	require.Len(t, res.Datasets, 1)
	require.Equal(t, "DATASET1", res.Datasets[0].FileControl.DatasetName)
}

func TestDecodeDatasetNameFallbackUsesStem(t *testing.T) {
	inmr02Body := append([]byte{0, 0, 0, 1}, textUnit(0x003C, []byte{0x40, 0x00})...)

	var stream []byte
	stream = append(stream, controlSegment(t, "INMR01", nil)...)
	stream = append(stream, controlSegment(t, "INMR02", inmr02Body)...)
	stream = append(stream, controlSegment(t, "INMR06", nil)...)

	res, err := Decode(stream, ebcdic.CP1140, "PAYROLL")
	require.NoError(t, err)
	require.Len(t, res.Datasets, 1)
	require.Equal(t, "PAYROLL", res.Datasets[0].FileControl.DatasetName)
}

func TestDecodeMultipleLogicalRecords(t *testing.T) {
	inmr02Body := append([]byte{0, 0, 0, 1}, textUnit(0x0002, ebcdicBytes(t, "X"))...)

	var stream []byte
	stream = append(stream, controlSegment(t, "INMR01", nil)...)
	stream = append(stream, controlSegment(t, "INMR02", inmr02Body)...)
	stream = append(stream, dataSegment(true, false, []byte("PART1"))...)
	stream = append(stream, dataSegment(false, true, []byte("PART2"))...)
	stream = append(stream, dataSegment(true, true, []byte("RECORD2"))...)
	stream = append(stream, controlSegment(t, "INMR06", nil)...)

	res, err := Decode(stream, ebcdic.CP1140, "")
	require.NoError(t, err)
	require.Len(t, res.Datasets[0].Records, 2)
	require.Equal(t, "PART1PART2", string(res.Datasets[0].Records[0]))
	require.Equal(t, "RECORD2", string(res.Datasets[0].Records[1]))
}

func TestDecodeINMFTIMENormalization(t *testing.T) {
	body := textUnit(0x1024, ebcdicBytes(t, "19991231235959"))

	var stream []byte
	stream = append(stream, controlSegment(t, "INMR01", body)...)
	stream = append(stream, controlSegment(t, "INMR06", nil)...)

	res, err := Decode(stream, ebcdic.CP1140, "")
	require.NoError(t, err)
	require.Equal(t, "1999-12-31T23:59:59.000000", res.Header.CreatedAt)
}

func TestDecodeTerminatesAtINMR06(t *testing.T) {
	var stream []byte
	stream = append(stream, controlSegment(t, "INMR01", nil)...)
	stream = append(stream, controlSegment(t, "INMR06", nil)...)
	stream = append(stream, []byte{0xFF, 0xFF, 0xFF}...) // garbage past terminator

	res, err := Decode(stream, ebcdic.CP1140, "")
	require.NoError(t, err)
	require.Empty(t, res.Datasets)
}

func TestDecodeMultipleDatasetsNoInterleave(t *testing.T) {
	inmr02A := append([]byte{0, 0, 0, 1}, textUnit(0x0002, ebcdicBytes(t, "A"))...)
	inmr02B := append([]byte{0, 0, 0, 1}, textUnit(0x0002, ebcdicBytes(t, "B"))...)

	var stream []byte
	stream = append(stream, controlSegment(t, "INMR01", nil)...)
	stream = append(stream, controlSegment(t, "INMR02", inmr02A)...)
	stream = append(stream, dataSegment(true, true, []byte("AAA"))...)
	stream = append(stream, controlSegment(t, "INMR02", inmr02B)...)
	stream = append(stream, dataSegment(true, true, []byte("BBB"))...)
	stream = append(stream, controlSegment(t, "INMR06", nil)...)

	res, err := Decode(stream, ebcdic.CP1140, "")
	require.NoError(t, err)
	require.Len(t, res.Datasets, 2)
	require.Equal(t, "A", res.Datasets[0].FileControl.DatasetName)
	require.Equal(t, "AAA", string(res.Datasets[0].Records[0]))
	require.Equal(t, "B", res.Datasets[1].FileControl.DatasetName)
	require.Equal(t, "BBB", string(res.Datasets[1].Records[0]))
}

func TestDecodeTruncatedSegmentHeader(t *testing.T) {
	_, err := Decode([]byte{0x05}, ebcdic.CP1140, "")
	require.Error(t, err)
}

func TestDecodeTruncatedSegmentBody(t *testing.T) {
	_, err := Decode([]byte{0x10, 0x20, 0x00}, ebcdic.CP1140, "")
	require.Error(t, err)
}

func TestDecodeMessageViaINMTERM(t *testing.T) {
	inmr01Body := zeroCountUnit(0x0028) // INMTERM zero-count -> message signal

	inmr02Body := []byte{0, 0, 0, 1} // no INMDSNAM

	lrecl := textUnit(0x0042, []byte{0x00, 0x50}) // INMLRECL = 80

	var stream []byte
	stream = append(stream, controlSegment(t, "INMR01", inmr01Body)...)
	stream = append(stream, controlSegment(t, "INMR02", inmr02Body)...)
	stream = append(stream, controlSegment(t, "INMR03", lrecl)...)
	stream = append(stream, dataSegment(true, true, []byte("A MESSAGE"))...)
	stream = append(stream, controlSegment(t, "INMR06", nil)...)

	res, err := Decode(stream, ebcdic.CP1140, "")
	require.NoError(t, err)
	require.Empty(t, res.Datasets)
	require.Len(t, res.Message, 1)
	require.Equal(t, "A MESSAGE", string(res.Message[0]))
	require.Equal(t, 80, res.MessageLRECL)
}
