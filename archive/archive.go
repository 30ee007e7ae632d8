// Package archive assembles the decoded output of the container, XMI, tape,
// and IEBCOPY decoders into a single queryable Archive value, and classifies
// and synthesizes text for every dataset and member along the way, spec.md
// §3 and §4.8.
package archive

import (
	"path/filepath"
	"strings"

	"github.com/mainframed/xmit-go/classify"
	"github.com/mainframed/xmit-go/container"
	"github.com/mainframed/xmit-go/format"
	"github.com/mainframed/xmit-go/iebcopy"
	"github.com/mainframed/xmit-go/internal/options"
	"github.com/mainframed/xmit-go/internal/pool"
	"github.com/mainframed/xmit-go/recfmtext"
	"github.com/mainframed/xmit-go/tape"
	"github.com/mainframed/xmit-go/xmerr"
	"github.com/mainframed/xmit-go/xmi"
)

// ISPFStats is a PDS member's ISPF editor statistics, spec.md §3.
type ISPFStats struct {
	Version       string
	CreationDate  string
	ModifyDate    string
	Lines         int
	NewLines      int
	ModifiedLines int
	User          string
}

// Member is one PDS member's decoded content and metadata, spec.md §3.
type Member struct {
	Name       string
	Alias      bool
	ResolvesTo string // canonical member name, set only when Alias is true

	MIMEType  string
	Extension string
	RECFM     format.RecordFormat
	LRECL     int

	Data [][]byte // raw records (one element for fixed/undefined data)
	Text string
	Size int // bytes of Text if textual, else bytes of Data

	ISPF *ISPFStats
}

// Dataset is one top-level dataset (sequential or partitioned), spec.md §3.
type Dataset struct {
	Name         string
	Organization format.Organization
	RECFM        format.RecordFormat
	LRECL        int
	BlockSize    int

	Partitioned bool
	Members     []Member // only set when Partitioned
	memberIndex map[string]int

	Data []byte // only set when not Partitioned
	Text string

	MIMEType  string
	Extension string

	CreatedAt  string
	ModifiedAt string
	ExpiresAt  string
}

// Archive is the fully decoded result of one XMI or tape input buffer,
// spec.md §3.
type Archive struct {
	Kind format.ArchiveKind

	OriginatorNodes [2]string // [0] originating node, [1] target node
	Owner           string
	VolumeSerial    string

	// MessageText is the transmission note carried alongside an XMI
	// stream's datasets, empty when the input carried none or is tape.
	MessageText string

	Datasets   []Dataset
	datasetIdx map[string]int

	Warnings []string
}

// Parse decodes data into a fully assembled Archive, spec.md §4.8.
func Parse(data []byte, opts ...Option) (*Archive, error) {
	cfg := defaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	kind, err := container.Detect(data, cfg.codepage)
	if err != nil {
		return nil, err
	}

	arc := &Archive{Kind: kind, datasetIdx: map[string]int{}}

	switch kind {
	case format.KindXMI:
		if err := parseXMI(arc, data, cfg); err != nil {
			return nil, err
		}
	case format.KindTape:
		if err := parseTape(arc, data, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, xmerr.New(xmerr.InvalidFormat, 0, "unrecognized container framing")
	}

	for _, w := range arc.Warnings {
		cfg.logger.Warn(w)
	}

	return arc, nil
}

// resolveNameStem picks the XMI dataset-naming fallback's source, spec.md
// §4.2 and §9 Design Note (a): an explicit override always wins; failing
// that, the configured input filename's stem, uppercased; empty when
// neither was configured, leaving xmi.Decode to fall back to a positional
// placeholder.
func resolveNameStem(cfg *Config) string {
	if cfg.datasetNameOverride != "" {
		return strings.ToUpper(cfg.datasetNameOverride)
	}

	if cfg.inputFilename != "" {
		base := filepath.Base(cfg.inputFilename)
		stem := strings.TrimSuffix(base, filepath.Ext(base))

		return strings.ToUpper(stem)
	}

	return ""
}

func parseXMI(arc *Archive, data []byte, cfg *Config) error {
	res, err := xmi.Decode(data, cfg.codepage, resolveNameStem(cfg))
	if err != nil {
		return err
	}

	arc.OriginatorNodes = [2]string{res.Header.OriginatorNode, res.Header.TargetNode}
	arc.Owner = res.Header.OriginatorUser

	if len(res.Message) > 0 {
		text, err := recfmtext.Synthesize(nil, res.Message, recfmtext.Options{
			RECFM:              "V",
			LRECL:              res.MessageLRECL,
			ManualRecordLength: cfg.lreclDefault,
			Codepage:           cfg.codepage,
		})
		if err == nil {
			arc.MessageText = text
		}
	}

	for _, ds := range res.Datasets {
		d, warnings, err := buildDatasetFromXMI(ds, cfg)
		if err != nil {
			arc.Warnings = append(arc.Warnings, err.Error())
			continue
		}

		arc.Warnings = append(arc.Warnings, warnings...)
		addDataset(arc, d)
	}

	return nil
}

func buildDatasetFromXMI(ds xmi.Dataset, cfg *Config) (Dataset, []string, error) {
	fc := ds.FileControl

	d := Dataset{
		Name:         fc.DatasetName,
		Organization: fc.Organization,
		RECFM:        fc.RECFM,
		LRECL:        fc.LRECL,
		BlockSize:    fc.BlockSize,
	}

	if len(ds.Records) > 0 && iebcopy.HasEyecatcher(ds.Records[0]) {
		result, err := iebcopy.Reassemble(ds.Records, cfg.codepage)
		if err == nil {
			applyIEBCOPYResult(&d, result, cfg)
			return d, result.Warnings, nil
		}
	}

	d.Data = concatLogicalRecords(ds.Records)
	populateSequentialText(&d, cfg, ds.Records)

	return d, nil, nil
}

func parseTape(arc *Archive, data []byte, cfg *Config) error {
	res, err := tape.Decode(data, cfg.codepage)
	if err != nil {
		return err
	}

	if res.Volume != nil {
		arc.VolumeSerial = res.Volume.Serial
		arc.Owner = res.Volume.Owner
	}

	for _, f := range res.Files {
		d, warnings, err := buildDatasetFromTape(f, cfg)
		if err != nil {
			arc.Warnings = append(arc.Warnings, err.Error())
			continue
		}

		arc.Warnings = append(arc.Warnings, warnings...)
		addDataset(arc, d)
	}

	return nil
}

func buildDatasetFromTape(f tape.File, cfg *Config) (Dataset, []string, error) {
	d := Dataset{
		Name:      f.Label.DatasetName,
		RECFM:     format.RecordFormat(f.Label.RECFM),
		LRECL:     f.Label.RecordLength,
		BlockSize: f.Label.BlockLength,
		CreatedAt: f.Label.CreationDate,
		ExpiresAt: f.Label.ExpirationDate,
	}

	if iebcopy.HasEyecatcher(f.Data) {
		blocks, err := iebcopy.SplitIEBCOPYBlocks(f.Data)
		if err == nil {
			result, err := iebcopy.Reassemble(blocks, cfg.codepage)
			if err == nil {
				applyIEBCOPYResult(&d, result, cfg)
				return d, result.Warnings, nil
			}
		}
	}

	d.Data = f.Data
	populateSequentialText(&d, cfg, f.Records)

	return d, nil, nil
}

// applyIEBCOPYResult builds one Member per directory entry, canonical and
// alias alike: an alias shares its canonical owner's TTR and so its content,
// but is still a distinct queryable name, spec.md §4.5 and §4.8.
func applyIEBCOPYResult(d *Dataset, result *iebcopy.Result, cfg *Config) {
	d.Partitioned = true
	d.Organization = result.COPYR1.DSORG
	d.RECFM = result.COPYR1.RECFM
	d.LRECL = result.COPYR1.RecordLength
	d.BlockSize = result.COPYR1.BlockLength
	d.MIMEType = classify.Directory().MIMEType
	d.memberIndex = make(map[string]int, len(result.Entries))

	ttrToName, promoted, _ := iebcopy.CanonicalTTRs(result.Entries)

	dataByTTR := make(map[uint32]iebcopy.MemberData, len(result.Members))
	for _, md := range result.Members {
		dataByTTR[md.TTR] = md
	}

	for _, entry := range result.Entries {
		m := Member{
			Name:  entry.Name,
			Alias: entry.Alias && !promoted[entry.Name],
			RECFM: d.RECFM,
			LRECL: d.LRECL,
		}

		if m.Alias {
			if canonical, ok := ttrToName[entry.TTR]; ok && canonical != m.Name {
				m.ResolvesTo = canonical
			}
		}

		if entry.ISPF != nil {
			m.ISPF = &ISPFStats{
				Version:       entry.ISPF.Version,
				CreationDate:  entry.ISPF.CreationDate,
				ModifyDate:    entry.ISPF.ModifyDate,
				Lines:         entry.ISPF.Lines,
				NewLines:      entry.ISPF.NewLines,
				ModifiedLines: entry.ISPF.ModifiedLines,
				User:          entry.ISPF.User,
			}
		}

		if md, ok := dataByTTR[entry.TTR]; ok {
			populateMemberContent(&m, md, cfg)
		}

		d.Members = append(d.Members, m)
		d.memberIndex[m.Name] = len(d.Members) - 1
	}
}

func populateMemberContent(m *Member, md iebcopy.MemberData, cfg *Config) {
	payload := md.Data
	if m.RECFM.IsVariable() {
		m.Data = md.Records
		for _, r := range md.Records {
			payload = append(payload, r...)
		}
	} else {
		m.Data = [][]byte{md.Data}
	}

	cls := classify.Payload(payload, cfg.codepage, cfg.forceText)
	m.MIMEType = cls.MIMEType
	m.Extension = cls.Extension

	if cfg.binaryOnly || !cls.IsText {
		m.Size = len(payload)

		return
	}

	text, err := recfmtext.Synthesize(md.Data, md.Records, recfmtext.Options{
		RECFM:              m.RECFM,
		LRECL:              m.LRECL,
		ManualRecordLength: cfg.lreclDefault,
		Unnum:              cfg.unnum,
		Codepage:           cfg.codepage,
	})
	if err != nil {
		m.Size = len(payload)

		return
	}

	m.Text = text
	m.Size = len(text)
}

func populateSequentialText(d *Dataset, cfg *Config, records [][]byte) {
	payload := d.Data
	if len(payload) == 0 {
		payload = concatLogicalRecords(records)
	}

	cls := classify.Payload(payload, cfg.codepage, cfg.forceText)
	d.MIMEType = cls.MIMEType
	d.Extension = cls.Extension

	if cfg.binaryOnly || !cls.IsText {
		return
	}

	text, err := recfmtext.Synthesize(d.Data, records, recfmtext.Options{
		RECFM:              d.RECFM,
		LRECL:              d.LRECL,
		ManualRecordLength: cfg.lreclDefault,
		Unnum:              cfg.unnum,
		Codepage:           cfg.codepage,
	})
	if err == nil {
		d.Text = text
	}
}

// concatLogicalRecords flattens a dataset or member's logical records into
// one owned buffer. The accumulation itself runs through the pooled
// dataset/member buffer rather than a fresh append chain, since members
// routinely run to hundreds of KiB and MemberBytes builds one of these per
// query.
func concatLogicalRecords(records [][]byte) []byte {
	bb := pool.GetRecordBuffer()
	defer pool.PutRecordBuffer(bb)

	for _, r := range records {
		bb.MustWrite(r)
	}

	return append([]byte(nil), bb.Bytes()...)
}

func addDataset(arc *Archive, d Dataset) {
	arc.datasetIdx[strings.ToUpper(d.Name)] = len(arc.Datasets)
	arc.Datasets = append(arc.Datasets, d)
}
