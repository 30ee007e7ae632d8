package archive

import (
	"encoding/json"
	"strings"

	"github.com/mainframed/xmit-go/xmerr"
)

// ListDatasets returns every dataset name in arrival order, spec.md §4.8.
func (a *Archive) ListDatasets() []string {
	names := make([]string, len(a.Datasets))
	for i, d := range a.Datasets {
		names[i] = d.Name
	}

	return names
}

func (a *Archive) dataset(name string) (*Dataset, error) {
	idx, ok := a.datasetIdx[strings.ToUpper(name)]
	if !ok {
		return nil, xmerr.New(xmerr.InconsistentArchive, 0, "dataset not found: "+name)
	}

	return &a.Datasets[idx], nil
}

func (d *Dataset) member(name string) (*Member, error) {
	idx, ok := d.memberIndex[name]
	if !ok {
		return nil, xmerr.New(xmerr.InconsistentArchive, 0, "member not found: "+name)
	}

	return &d.Members[idx], nil
}

// Members returns the member names of a partitioned dataset, in directory
// order, spec.md §4.8.
func (a *Archive) Members(dataset string) ([]string, error) {
	d, err := a.dataset(dataset)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(d.Members))
	for i, m := range d.Members {
		names[i] = m.Name
	}

	return names, nil
}

// IsPartitioned reports whether dataset reassembled as a PDS, spec.md §4.8.
func (a *Archive) IsPartitioned(dataset string) bool {
	d, err := a.dataset(dataset)
	return err == nil && d.Partitioned
}

// IsSequential reports whether dataset holds flat, non-member data, spec.md
// §4.8.
func (a *Archive) IsSequential(dataset string) bool {
	d, err := a.dataset(dataset)
	return err == nil && !d.Partitioned
}

// IsAlias reports whether member is an alias of another member within
// dataset, spec.md §4.8.
func (a *Archive) IsAlias(dataset, member string) bool {
	d, err := a.dataset(dataset)
	if err != nil {
		return false
	}

	m, err := d.member(member)
	return err == nil && m.Alias
}

// ResolvesTo returns the canonical member name an alias points to, spec.md
// §4.8. ok is false when member is not an alias (including an alias that
// circular-chain repair promoted to canonical) or has no canonical owner.
func (a *Archive) ResolvesTo(dataset, member string) (string, bool) {
	d, err := a.dataset(dataset)
	if err != nil {
		return "", false
	}

	m, err := d.member(member)
	if err != nil || !m.Alias || m.ResolvesTo == "" {
		return "", false
	}

	return m.ResolvesTo, true
}

// MemberInfo returns the full metadata of one PDS member, spec.md §4.8.
func (a *Archive) MemberInfo(dataset, member string) (Member, error) {
	d, err := a.dataset(dataset)
	if err != nil {
		return Member{}, err
	}

	m, err := d.member(member)
	if err != nil {
		return Member{}, err
	}

	return *m, nil
}

// MemberBytes returns the raw, concatenated byte content of one PDS member,
// spec.md §4.8.
func (a *Archive) MemberBytes(dataset, member string) ([]byte, error) {
	d, err := a.dataset(dataset)
	if err != nil {
		return nil, err
	}

	m, err := d.member(member)
	if err != nil {
		return nil, err
	}

	return concatLogicalRecords(m.Data), nil
}

// MemberText returns the synthesized text of one PDS member, spec.md §4.8.
// The error reports a missing dataset or member; a member whose content was
// classified as binary returns an empty string with no error.
func (a *Archive) MemberText(dataset, member string) (string, error) {
	d, err := a.dataset(dataset)
	if err != nil {
		return "", err
	}

	m, err := d.member(member)
	if err != nil {
		return "", err
	}

	return m.Text, nil
}

// DatasetBytes returns the raw byte content of a sequential dataset, spec.md
// §4.8.
func (a *Archive) DatasetBytes(dataset string) ([]byte, error) {
	d, err := a.dataset(dataset)
	if err != nil {
		return nil, err
	}

	return d.Data, nil
}

// DatasetText returns the synthesized text content of a sequential dataset,
// spec.md §4.8.
func (a *Archive) DatasetText(dataset string) (string, error) {
	d, err := a.dataset(dataset)
	if err != nil {
		return "", err
	}

	return d.Text, nil
}

// Message returns the transmission note carried alongside an XMI stream's
// datasets, spec.md §4.2. ok is false when the input carried no message.
func (a *Archive) Message() (string, bool) {
	return a.MessageText, a.MessageText != ""
}

// MetadataJSON serializes the archive to JSON, spec.md §4.8. When
// includeData is false, member and dataset byte payloads are omitted (text
// is always included, since it is the primary consumable form); when true,
// raw bytes are included as base64 via the default []byte JSON encoding.
func (a *Archive) MetadataJSON(includeData bool) ([]byte, error) {
	type memberJSON struct {
		Name       string     `json:"name"`
		Alias      bool       `json:"alias"`
		ResolvesTo string     `json:"resolves_to,omitempty"`
		MIMEType   string     `json:"mime_type"`
		Extension  string     `json:"extension"`
		RECFM      string     `json:"recfm"`
		LRECL      int        `json:"lrecl"`
		Size       int        `json:"size"`
		Text       string     `json:"text,omitempty"`
		Data       [][]byte   `json:"data,omitempty"`
		ISPF       *ISPFStats `json:"ispf,omitempty"`
	}

	type datasetJSON struct {
		Name         string       `json:"name"`
		Organization string       `json:"organization"`
		RECFM        string       `json:"recfm"`
		LRECL        int          `json:"lrecl"`
		BlockSize    int          `json:"block_size"`
		Partitioned  bool         `json:"partitioned"`
		MIMEType     string       `json:"mime_type,omitempty"`
		Extension    string       `json:"extension,omitempty"`
		CreatedAt    string       `json:"created_at,omitempty"`
		ModifiedAt   string       `json:"modified_at,omitempty"`
		ExpiresAt    string       `json:"expires_at,omitempty"`
		Members      []memberJSON `json:"members,omitempty"`
		Text         string       `json:"text,omitempty"`
		Data         []byte       `json:"data,omitempty"`
	}

	type archiveJSON struct {
		Kind            string        `json:"kind"`
		OriginatorNodes [2]string     `json:"originator_nodes"`
		Owner           string        `json:"owner,omitempty"`
		VolumeSerial    string        `json:"volume_serial,omitempty"`
		Message         string        `json:"message,omitempty"`
		Datasets        []datasetJSON `json:"datasets"`
		Warnings        []string      `json:"warnings,omitempty"`
	}

	out := archiveJSON{
		Kind:            a.Kind.String(),
		OriginatorNodes: a.OriginatorNodes,
		Owner:           a.Owner,
		VolumeSerial:    a.VolumeSerial,
		Message:         a.MessageText,
		Warnings:        a.Warnings,
	}

	for _, d := range a.Datasets {
		dj := datasetJSON{
			Name:         d.Name,
			Organization: d.Organization.String(),
			RECFM:        d.RECFM.String(),
			LRECL:        d.LRECL,
			BlockSize:    d.BlockSize,
			Partitioned:  d.Partitioned,
			MIMEType:     d.MIMEType,
			Extension:    d.Extension,
			CreatedAt:    d.CreatedAt,
			ModifiedAt:   d.ModifiedAt,
			ExpiresAt:    d.ExpiresAt,
			Text:         d.Text,
		}

		if includeData {
			dj.Data = d.Data
		}

		for _, m := range d.Members {
			mj := memberJSON{
				Name:       m.Name,
				Alias:      m.Alias,
				ResolvesTo: m.ResolvesTo,
				MIMEType:   m.MIMEType,
				Extension:  m.Extension,
				RECFM:      m.RECFM.String(),
				LRECL:      m.LRECL,
				Size:       m.Size,
				Text:       m.Text,
				ISPF:       m.ISPF,
			}

			if includeData {
				mj.Data = m.Data
			}

			dj.Members = append(dj.Members, mj)
		}

		out.Datasets = append(out.Datasets, dj)
	}

	return json.Marshal(out)
}
