package ingest

// headers.go maps raw column identifiers to canonical record fields using
// ordered keyword heuristics.
//
// Institutional sources never agree on header names ("Group No.", "Grp",
// "GROUP NUMBER", ...), so each canonical field carries an ordered list of
// case-insensitive substring candidates. The first header whose lowercased
// form contains a candidate wins. Headers are scanned in their original
// column order, which pins ambiguity resolution to a deterministic result.
//
// The candidate tables are data, not code: adding a new source spelling is
// a one-line change and the matching strategy is testable on its own.

import "strings"

// Canonical field keys shared by every source layout.
const (
	FieldGroupNo      = "group_no"
	FieldStudentName  = "student_name"
	FieldEnrollmentNo = "enrollment_no"
	FieldGuideName    = "guide_name"
	FieldTitle1       = "title_1"
	FieldTitle2       = "title_2"
	FieldTitle3       = "title_3"

	FieldTeamLeader        = "team_leader"
	FieldLeaderEnrollment  = "leader_enrollment"
	FieldSection           = "section"
	FieldMember1           = "member_1"
	FieldMember1Enrollment = "member_1_enrollment"
	FieldMember2           = "member_2"
	FieldMember2Enrollment = "member_2_enrollment"
	FieldMember3           = "member_3"
	FieldMember3Enrollment = "member_3_enrollment"
)

// fieldCandidate binds a canonical field to its ordered substring
// candidates. Candidates are matched with strings.Contains against the
// lowercased header.
type fieldCandidate struct {
	Field      string
	Candidates []string
}

// baseCandidates covers the fields every layout shares. Order matters:
// more specific candidates come before generic ones ("name of student"
// before "name") so a roster with both "Name of Student" and "Guide Name"
// columns resolves correctly.
var baseCandidates = []fieldCandidate{
	{FieldGroupNo, []string{"group", "grp"}},
	{FieldStudentName, []string{"name of student", "student", "name"}},
	{FieldEnrollmentNo, []string{"enrollment", "enrol", "roll"}},
	{FieldGuideName, []string{"guide", "mentor", "faculty"}},
	{FieldTitle1, []string{"proposed title - 01", "title 1", "title-01", "title1"}},
	{FieldTitle2, []string{"proposed title - 02", "title 2", "title-02", "title2"}},
	{FieldTitle3, []string{"proposed title - 03", "title 3", "title-03", "title3"}},
}

// sheetExtraCandidates covers the form-response-only fields that some
// roster sheets also carry as named columns.
var sheetExtraCandidates = []fieldCandidate{
	{FieldTeamLeader, []string{"team leader", "leader name"}},
	{FieldLeaderEnrollment, []string{"leader enrollment", "leader enrol"}},
	{FieldSection, []string{"section", "class"}},
	{FieldMember1, []string{"member 1", "member-1", "member1"}},
	{FieldMember1Enrollment, []string{"member 1 enrollment", "member-1 enrol", "enrollment 1"}},
	{FieldMember2, []string{"member 2", "member-2", "member2"}},
	{FieldMember2Enrollment, []string{"member 2 enrollment", "member-2 enrol", "enrollment 2"}},
	{FieldMember3, []string{"member 3", "member-3", "member3"}},
	{FieldMember3Enrollment, []string{"member 3 enrollment", "member-3 enrol", "enrollment 3"}},
}

// HeaderMap maps canonical field keys to the matched source header.
// A field with no matching header is simply absent; its value defaults to
// the empty string for every row rather than failing the upload.
type HeaderMap map[string]string

// ColumnMap maps canonical field keys to source column indices.
type ColumnMap map[string]int

// MatchHeaders resolves canonical fields against named headers (delimited
// text path). Headers are scanned in the order given.
func MatchHeaders(headers []string) HeaderMap {
	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	out := make(HeaderMap, len(baseCandidates))
	for _, fc := range baseCandidates {
		if i := matchIndex(lowered, fc.Candidates); i >= 0 {
			out[fc.Field] = headers[i]
		}
	}
	return out
}

// MatchColumns resolves canonical fields against a header row's cell values
// (spreadsheet path), returning column indices. Sheet-specific extra fields
// are included so roster sheets can carry form-style columns.
func MatchColumns(headerRow []string) ColumnMap {
	lowered := make([]string, len(headerRow))
	for i, h := range headerRow {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	out := make(ColumnMap, len(baseCandidates)+len(sheetExtraCandidates))
	for _, fc := range baseCandidates {
		if i := matchIndex(lowered, fc.Candidates); i >= 0 {
			out[fc.Field] = i
		}
	}
	for _, fc := range sheetExtraCandidates {
		if i := matchIndex(lowered, fc.Candidates); i >= 0 {
			out[fc.Field] = i
		}
	}
	return out
}

// matchIndex returns the index of the first header (in column order) whose
// lowercased form contains any candidate substring.
func matchIndex(lowered []string, candidates []string) int {
	for i, h := range lowered {
		if h == "" {
			continue
		}
		for _, c := range candidates {
			if strings.Contains(h, c) {
				return i
			}
		}
	}
	return -1
}
