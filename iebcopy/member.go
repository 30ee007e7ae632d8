package iebcopy

import (
	"fmt"
	"sort"

	"github.com/mainframed/xmit-go/endian"
	"github.com/mainframed/xmit-go/format"
	"github.com/mainframed/xmit-go/xmerr"
)

// MemberData is one reassembled member's raw payload, keyed by the member
// name resolved from its TTR, spec.md §4.5.
type MemberData struct {
	Name string
	TTR  uint32
	// Records holds the length-delimited records when the dataset's RECFM
	// is variable; nil for fixed-format members.
	Records [][]byte
	Data    []byte
}

// ResolveMembers walks the directory entries and the member-data blocks
// together, resolving each block of accumulated data to its owning member
// name via TTR, spec.md §4.5's "TTR -> name resolution" algorithm. isPDSE
// enables the zero-length-record skip rule PDSE member data needs.
func ResolveMembers(entries []DirEntry, memberBlocks []byte, recfm format.RecordFormat, isPDSE bool) ([]MemberData, []string, error) {
	ttrToName, _, warnings := canonicalTTRs(entries)

	sortedTTRs := make([]uint32, 0, len(ttrToName))
	for ttr := range ttrToName {
		sortedTTRs = append(sortedTTRs, ttr)
	}
	sort.Slice(sortedTTRs, func(i, j int) bool { return sortedTTRs[i] < sortedTTRs[j] })

	be := endian.Big()

	var results []MemberData
	ttrLocation := 0
	deletedNum := 1

	var memberData []byte
	var vbRecords [][]byte
	recordClosed := false
	var prevTTR uint32

	loc := 0
	for loc < len(memberBlocks) {
		if loc+12 > len(memberBlocks) {
			return nil, warnings, xmerr.New(xmerr.Truncated, loc, "member-data block header runs past end of buffer")
		}

		dataLen := int(be.Uint16(memberBlocks[loc+10 : loc+12]))
		ttr := uint32(memberBlocks[loc+6])<<16 | uint32(memberBlocks[loc+7])<<8 | uint32(memberBlocks[loc+8])

		if recordClosed {
			// PDSE variants emit zero-length records carrying the old TTR
			// ahead of the next real member; skip them, spec.md §4.5.
			for loc+12 <= len(memberBlocks) {
				ttr = uint32(memberBlocks[loc+6])<<16 | uint32(memberBlocks[loc+7])<<8 | uint32(memberBlocks[loc+8])
				dataLen = int(be.Uint16(memberBlocks[loc+10 : loc+12]))
				if ttr != prevTTR {
					break
				}
				loc += dataLen + 12
			}
			recordClosed = false
		}

		if ttr == 0 && dataLen == 0 {
			loc += dataLen + 12
			continue
		}

		if loc+12+dataLen > len(memberBlocks) {
			return nil, warnings, xmerr.New(xmerr.Truncated, loc, "member-data payload runs past end of buffer")
		}

		payload := memberBlocks[loc+12 : loc+12+dataLen]

		if recfm.IsVariable() {
			records, err := SplitVariableRecords(payload)
			if err == nil {
				vbRecords = append(vbRecords, records...)
			}
			memberData = flattenRecords(vbRecords)
		} else {
			memberData = append(memberData, payload...)
		}

		if dataLen == 0 {
			if isPDSE {
				recordClosed = true
			}

			if ttrLocation >= len(sortedTTRs) {
				name := fmt.Sprintf("DELETED%d", deletedNum)
				warnings = append(warnings, fmt.Sprintf("member data block for TTR %#06x exceeds directory entries; synthesized name %s", ttr, name))
				sortedTTRs = append(sortedTTRs, ttr)
				ttrToName[ttr] = name
				deletedNum++
			}

			name := ttrToName[sortedTTRs[ttrLocation]]

			md := MemberData{Name: name, TTR: sortedTTRs[ttrLocation], Data: memberData}
			if recfm.IsVariable() {
				md.Records = vbRecords
			}
			results = append(results, md)

			memberData = nil
			vbRecords = nil
			ttrLocation++
			prevTTR = ttr
		}

		loc += dataLen + 12
	}

	if len(memberData) > 0 && ttrLocation < len(sortedTTRs) {
		// Trailing record not followed by a zero-length closer.
		name := ttrToName[sortedTTRs[ttrLocation]]
		md := MemberData{Name: name, TTR: sortedTTRs[ttrLocation], Data: memberData}
		if recfm.IsVariable() {
			md.Records = vbRecords
		}
		results = append(results, md)
	}

	return results, warnings, nil
}

// canonicalTTRs builds the TTR->name map for every canonical (non-alias)
// member, promoting the first visited member of a fully circular alias
// chain when no canonical owner exists for its TTR, spec.md §4.5. The
// returned set names the members promoted this way, for callers that need
// to override the directory's own alias flag when answering IsAlias.
func canonicalTTRs(entries []DirEntry) (map[uint32]string, map[string]bool, []string) {
	ttrToName := make(map[uint32]string)
	var aliasTTR []uint32
	aliasName := make(map[uint32]string)
	var warnings []string
	promoted := make(map[string]bool)

	for _, e := range entries {
		if e.Alias {
			aliasTTR = append(aliasTTR, e.TTR)
			if _, seen := aliasName[e.TTR]; !seen {
				aliasName[e.TTR] = e.Name
			}
		} else {
			ttrToName[e.TTR] = e.Name
		}
	}

	for _, ttr := range aliasTTR {
		if _, ok := ttrToName[ttr]; !ok {
			// No canonical owner claimed this TTR; the alias chain is
			// circular (or orphaned) -- promote it to canonical.
			ttrToName[ttr] = aliasName[ttr]
			promoted[aliasName[ttr]] = true
			warnings = append(warnings, fmt.Sprintf("alias %s promoted to canonical for TTR %#06x (no canonical owner found)", aliasName[ttr], ttr))
		}
	}

	return ttrToName, promoted, warnings
}

// CanonicalTTRs exposes canonicalTTRs' alias-promotion result to callers
// (the archive query layer) that need to know which member names were
// promoted from alias to canonical status by circular-chain repair.
func CanonicalTTRs(entries []DirEntry) (ttrToName map[uint32]string, promoted map[string]bool, warnings []string) {
	return canonicalTTRs(entries)
}

func flattenRecords(records [][]byte) []byte {
	var out []byte
	for _, r := range records {
		out = append(out, r...)
	}

	return out
}
