package archive

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

func padTo8(name string) string {
	for len(name) < 8 {
		name += " "
	}

	return name
}

// --- XMI stream builders, mirroring the xmi package's own test helpers ---

func xmiSegment(flags byte, payload []byte) []byte {
	total := len(payload) + 2
	return append([]byte{byte(total), flags}, payload...)
}

func xmiControlSegment(t *testing.T, name string, body []byte) []byte {
	t.Helper()

	payload := append(ebcdicBytes(t, name), body...)
	return xmiSegment(0x20, payload)
}

func xmiTextUnit(key uint16, value []byte) []byte {
	out := []byte{byte(key >> 8), byte(key), 0x00, 0x01}
	out = append(out, byte(len(value)>>8), byte(len(value)))
	out = append(out, value...)
	return out
}

func xmiZeroCountUnit(key uint16) []byte {
	return []byte{byte(key >> 8), byte(key), 0x00, 0x00}
}

func xmiDataSegment(first, last bool, payload []byte) []byte {
	var flags byte
	if first {
		flags |= 0x80
	}
	if last {
		flags |= 0x40
	}

	return xmiSegment(flags, payload)
}

// xmiLogicalRecord splits data across as many segments as its length needs
// (each segment's 1-byte length caps its payload at 253 bytes), so a
// logical record longer than that still decodes back to one contiguous
// record.
func xmiLogicalRecord(data []byte) []byte {
	const maxChunk = 253

	if len(data) == 0 {
		return xmiDataSegment(true, true, nil)
	}

	var out []byte
	for i := 0; i < len(data); i += maxChunk {
		end := i + maxChunk
		if end > len(data) {
			end = len(data)
		}

		out = append(out, xmiDataSegment(i == 0, end == len(data), data[i:end])...)
	}

	return out
}

// --- tape stream builder, mirroring the tape package's own test helper ---

const (
	tapeFlagNewRec = 0x8000
	tapeFlagEOF    = 0x4000
)

func tapeBlock(flags uint16, body []byte) []byte {
	hdr := make([]byte, 6)
	hdr[0], hdr[1] = byte(len(body)), byte(len(body)>>8)
	hdr[2], hdr[3] = 0, 0
	hdr[4], hdr[5] = byte(flags>>8), byte(flags)

	return append(hdr, body...)
}

// --- IEBCOPY fixture builders, mirroring the iebcopy package's own helpers ---

func copyr1Fixture() []byte {
	data := make([]byte, 38)
	data[1], data[2], data[3] = 0xCA, 0x6D, 0x0F
	data[4], data[5] = 0x02, 0x00 // DSORG: PO
	data[6], data[7] = 0x00, 0x50 // block length 80
	data[8], data[9] = 0x00, 0x50 // LRECL 80
	data[10] = 0x80 | 0x10        // F + B -> FB

	return data
}

func dirEntry(t *testing.T, name string, ttr uint32, infoByte byte) []byte {
	t.Helper()

	nameBytes := ebcdicBytes(t, padTo8(name))
	out := append([]byte{}, nameBytes...)
	out = append(out, byte(ttr>>16), byte(ttr>>8), byte(ttr), infoByte)

	return out
}

func directoryPage(entries [][]byte) []byte {
	var info []byte
	for _, e := range entries {
		info = append(info, e...)
	}
	info = append(info, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)

	page := make([]byte, 276)
	length := len(info) + 2
	page[20] = byte(length >> 8)
	page[21] = byte(length)
	copy(page[22:], info)

	return page
}

func memberBlock(ttr uint32, dataLen int, payload []byte) []byte {
	hdr := make([]byte, 12)
	hdr[6], hdr[7], hdr[8] = byte(ttr>>16), byte(ttr>>8), byte(ttr)
	hdr[10] = byte(dataLen >> 8)
	hdr[11] = byte(dataLen)

	return append(hdr, payload...)
}

func TestParseXMISequentialDataset(t *testing.T) {
	var tunits []byte
	tunits = append(tunits, xmiTextUnit(0x0002, ebcdicBytes(t, "MY.DATASET"))...) // INMDSNAM
	tunits = append(tunits, xmiTextUnit(0x003C, []byte{0x40, 0x00})...)          // INMDSORG -> PS
	tunits = append(tunits, xmiTextUnit(0x0049, []byte{0x90, 0x00})...)          // INMRECFM -> FB

	inmr02Body := append([]byte{0, 0, 0, 1}, tunits...)
	lrecl := xmiTextUnit(0x0042, []byte{0x00, 0x50}) // INMLRECL = 80

	payload := ebcdicBytes(t, "HELLO, WORLD")

	var stream []byte
	stream = append(stream, xmiControlSegment(t, "INMR01", nil)...)
	stream = append(stream, xmiControlSegment(t, "INMR02", inmr02Body)...)
	stream = append(stream, xmiControlSegment(t, "INMR03", lrecl)...)
	stream = append(stream, xmiDataSegment(true, true, payload)...)
	stream = append(stream, xmiControlSegment(t, "INMR06", nil)...)

	arc, err := Parse(stream)
	require.NoError(t, err)
	require.Equal(t, []string{"MY.DATASET"}, arc.ListDatasets())
	require.True(t, arc.IsSequential("MY.DATASET"))
	require.False(t, arc.IsPartitioned("MY.DATASET"))

	text, err := arc.DatasetText("MY.DATASET")
	require.NoError(t, err)
	require.Equal(t, "HELLO, WORLD\n", text)

	data, err := arc.DatasetBytes("MY.DATASET")
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestParseXMIMessage(t *testing.T) {
	inmr01Body := xmiZeroCountUnit(0x0028) // INMTERM zero-count -> message signal
	inmr02Body := []byte{0, 0, 0, 1}       // no INMDSNAM
	lrecl := xmiTextUnit(0x0042, []byte{0x00, 0x50})

	payload := ebcdicBytes(t, "PLEASE READ ME")

	var stream []byte
	stream = append(stream, xmiControlSegment(t, "INMR01", inmr01Body)...)
	stream = append(stream, xmiControlSegment(t, "INMR02", inmr02Body)...)
	stream = append(stream, xmiControlSegment(t, "INMR03", lrecl)...)
	stream = append(stream, xmiDataSegment(true, true, payload)...)
	stream = append(stream, xmiControlSegment(t, "INMR06", nil)...)

	arc, err := Parse(stream)
	require.NoError(t, err)
	require.Empty(t, arc.ListDatasets())

	msg, ok := arc.Message()
	require.True(t, ok)
	require.Equal(t, "PLEASE READ ME", msg)
}

func TestParseXMIPartitionedWithAlias(t *testing.T) {
	memberText := ebcdicBytes(t, "SOURCE LINE ONE")

	entries := [][]byte{
		dirEntry(t, "MEMBER1", 1, 0x00),
		dirEntry(t, "ALIAS1", 1, 0x80),
	}
	dirPage := directoryPage(entries)

	var memberData []byte
	memberData = append(memberData, memberBlock(1, len(memberText), memberText)...)
	memberData = append(memberData, memberBlock(1, 0, nil)...)

	records := [][]byte{copyr1Fixture(), make([]byte, 276), dirPage, memberData}

	var tunits []byte
	tunits = append(tunits, xmiTextUnit(0x0002, ebcdicBytes(t, "MY.PDS"))...)
	inmr02Body := append([]byte{0, 0, 0, 1}, tunits...)

	var stream []byte
	stream = append(stream, xmiControlSegment(t, "INMR01", nil)...)
	stream = append(stream, xmiControlSegment(t, "INMR02", inmr02Body)...)
	for _, rec := range records {
		stream = append(stream, xmiLogicalRecord(rec)...)
	}
	stream = append(stream, xmiControlSegment(t, "INMR06", nil)...)

	arc, err := Parse(stream)
	require.NoError(t, err)
	require.True(t, arc.IsPartitioned("MY.PDS"))

	members, err := arc.Members("MY.PDS")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"MEMBER1", "ALIAS1"}, members)

	require.False(t, arc.IsAlias("MY.PDS", "MEMBER1"))
	require.True(t, arc.IsAlias("MY.PDS", "ALIAS1"))

	resolved, ok := arc.ResolvesTo("MY.PDS", "ALIAS1")
	require.True(t, ok)
	require.Equal(t, "MEMBER1", resolved)

	text, err := arc.MemberText("MY.PDS", "MEMBER1")
	require.NoError(t, err)
	require.Equal(t, "SOURCE LINE ONE\n", text)
}

func TestParseTapeSequentialDataset(t *testing.T) {
	body := ebcdicBytes(t, "ONE TAPE RECORD")
	stream := tapeBlock(tapeFlagNewRec|tapeFlagEOF, body)

	arc, err := Parse(stream)
	require.NoError(t, err)
	require.Equal(t, []string{"FILE0001"}, arc.ListDatasets())

	text, err := arc.DatasetText("FILE0001")
	require.NoError(t, err)
	require.Equal(t, "ONE TAPE RECORD\n", text)
}

func TestParseXMIDatasetNameFallbackFromFilename(t *testing.T) {
	inmr02Body := append([]byte{0, 0, 0, 1}, xmiTextUnit(0x003C, []byte{0x40, 0x00})...) // no INMDSNAM

	var stream []byte
	stream = append(stream, xmiControlSegment(t, "INMR01", nil)...)
	stream = append(stream, xmiControlSegment(t, "INMR02", inmr02Body)...)
	stream = append(stream, xmiControlSegment(t, "INMR06", nil)...)

	arc, err := Parse(stream, WithInputFilename("/tmp/payroll.xmi"))
	require.NoError(t, err)
	require.Equal(t, []string{"PAYROLL"}, arc.ListDatasets())
}

func TestParseXMIDatasetNameOverrideWinsOverFilename(t *testing.T) {
	inmr02Body := append([]byte{0, 0, 0, 1}, xmiTextUnit(0x003C, []byte{0x40, 0x00})...) // no INMDSNAM

	var stream []byte
	stream = append(stream, xmiControlSegment(t, "INMR01", nil)...)
	stream = append(stream, xmiControlSegment(t, "INMR02", inmr02Body)...)
	stream = append(stream, xmiControlSegment(t, "INMR06", nil)...)

	arc, err := Parse(stream,
		WithInputFilename("/tmp/payroll.xmi"),
		WithDatasetNameOverride("override"),
	)
	require.NoError(t, err)
	require.Equal(t, []string{"OVERRIDE"}, arc.ListDatasets())
}

func TestArchiveDatasetNotFound(t *testing.T) {
	stream := tapeBlock(tapeFlagNewRec|tapeFlagEOF, ebcdicBytes(t, "SOME BYTES"))

	arc, err := Parse(stream)
	require.NoError(t, err)

	_, err = arc.DatasetText("NOPE")
	require.Error(t, err)

	_, err = arc.Members("NOPE")
	require.Error(t, err)

	require.False(t, arc.IsPartitioned("NOPE"))
}

func TestArchiveMetadataJSON(t *testing.T) {
	stream := tapeBlock(tapeFlagNewRec|tapeFlagEOF, ebcdicBytes(t, "SOME DATA"))

	arc, err := Parse(stream)
	require.NoError(t, err)

	out, err := arc.MetadataJSON(false)
	require.NoError(t, err)
	require.Contains(t, string(out), "FILE0001")
	require.NotContains(t, string(out), `"data"`)
}
