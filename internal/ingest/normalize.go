package ingest

// normalize.go converts raw rows into canonical AllocationRecords.
//
// Every layout shares the same discipline: trim every mapped value, default
// unmapped fields to "", skip fully blank rows, and drop any record that
// ends up with neither a student name nor a group number. Dropped rows are
// never persisted.

import (
	"fmt"
	"strings"
)

func trim(s string) string { return strings.TrimSpace(s) }

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func contains(s, sub string) bool { return strings.Contains(s, sub) }

// normalizeDelimitedRows builds one record per data row using the named
// header mapping. Row values are addressed by matched header name.
func normalizeDelimitedRows(headers []string, dataRows [][]string, hm HeaderMap) []AllocationRecord {
	// Pre-resolve matched header names to column positions once.
	pos := make(map[string]int, len(headers))
	for i, h := range headers {
		pos[h] = i
	}

	cell := func(row []string, field string) string {
		h, ok := hm[field]
		if !ok {
			return ""
		}
		i, ok := pos[h]
		if !ok || i >= len(row) {
			return ""
		}
		return trim(row[i])
	}

	var out []AllocationRecord
	for _, row := range dataRows {
		if isEmptyRow(row) {
			continue
		}
		rec := AllocationRecord{
			GroupNo:      cell(row, FieldGroupNo),
			StudentName:  cell(row, FieldStudentName),
			EnrollmentNo: cell(row, FieldEnrollmentNo),
			GuideName:    cell(row, FieldGuideName),
			Title1:       cell(row, FieldTitle1),
			Title2:       cell(row, FieldTitle2),
			Title3:       cell(row, FieldTitle3),
			SheetName:    SheetCSV,
		}
		if !rec.Keep() {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// normalizeRosterRows builds records from the rows strictly after the
// located header row, using the positional column mapping.
func normalizeRosterRows(sheetName string, rows [][]string, headerIdx int, cm ColumnMap) []AllocationRecord {
	cell := func(row []string, field string) string {
		i, ok := cm[field]
		if !ok || i >= len(row) {
			return ""
		}
		return trim(row[i])
	}

	var out []AllocationRecord
	for _, row := range rows[headerIdx+1:] {
		if isEmptyRow(row) {
			continue
		}
		rec := AllocationRecord{
			GroupNo:           cell(row, FieldGroupNo),
			StudentName:       cell(row, FieldStudentName),
			EnrollmentNo:      cell(row, FieldEnrollmentNo),
			GuideName:         cell(row, FieldGuideName),
			Title1:            cell(row, FieldTitle1),
			Title2:            cell(row, FieldTitle2),
			Title3:            cell(row, FieldTitle3),
			TeamLeader:        cell(row, FieldTeamLeader),
			LeaderEnrollment:  cell(row, FieldLeaderEnrollment),
			Section:           cell(row, FieldSection),
			Member1:           cell(row, FieldMember1),
			Member1Enrollment: cell(row, FieldMember1Enrollment),
			Member2:           cell(row, FieldMember2),
			Member2Enrollment: cell(row, FieldMember2Enrollment),
			Member3:           cell(row, FieldMember3),
			Member3Enrollment: cell(row, FieldMember3Enrollment),
			SheetName:         sheetName,
		}
		if !rec.Keep() {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// normalizeFormRows builds records from the fixed positional questionnaire
// layout. The first row is the form's own header; data rows follow.
//
// A row is skipped when its first cell (timestamp) is empty or its second
// cell is the "Email" header marker leaking into the data region. When the
// form supplies no group number, one is synthesized from the section so
// aggregation still has a grouping key.
func normalizeFormRows(sheetName string, rows [][]string) []AllocationRecord {
	at := func(row []string, i int) string {
		if i >= len(row) {
			return ""
		}
		return trim(row[i])
	}

	var out []AllocationRecord
	for idx, row := range rows {
		if idx == 0 {
			continue // form header row
		}
		if isEmptyRow(row) {
			continue
		}
		if at(row, formColTimestamp) == "" {
			continue
		}
		second := lowerTrim(at(row, formColEmail))
		if second == "email" || contains(second, "address") && contains(second, "email") {
			continue
		}

		rec := AllocationRecord{
			StudentName:       at(row, formColTeamLeader),
			EnrollmentNo:      at(row, formColLeaderEnrollment),
			TeamLeader:        at(row, formColTeamLeader),
			LeaderEnrollment:  at(row, formColLeaderEnrollment),
			Section:           at(row, formColSection),
			Member1:           at(row, formColMember1),
			Member1Enrollment: at(row, formColMember1Enrollment),
			Member2:           at(row, formColMember2),
			Member2Enrollment: at(row, formColMember2Enrollment),
			Member3:           at(row, formColMember3),
			Member3Enrollment: at(row, formColMember3Enrollment),
			Title1:            at(row, formColTitle1),
			Title2:            at(row, formColTitle2),
			Title3:            at(row, formColTitle3),
			SheetName:         sheetName,
		}

		if rec.StudentName == "" {
			continue
		}
		if rec.GroupNo == "" {
			rec.GroupNo = synthesizeGroupNo(rec.Section, idx-1)
		}
		out = append(out, rec)
	}
	return out
}

// synthesizeGroupNo derives a stable group number for form rows that lack
// one: the first three characters of the section (or "GRP" when the
// section is empty) plus the row's position.
func synthesizeGroupNo(section string, rowIdx int) string {
	prefix := "GRP"
	if s := trim(section); s != "" {
		// First three characters, not bytes; sections can carry accents.
		if r := []rune(s); len(r) > 3 {
			s = string(r[:3])
		}
		prefix = strings.ToUpper(s)
	}
	return fmt.Sprintf("%s-G%d", prefix, rowIdx+1)
}

// normalizeSheet dispatches one sheet to its layout strategy.
func normalizeSheet(name string, rows [][]string) []AllocationRecord {
	switch classifySheet(name) {
	case layoutFormResponse:
		return normalizeFormRows(name, rows)
	default:
		headerIdx := findRosterHeaderRow(rows)
		if headerIdx < 0 {
			return nil // unrecognized sheet layout, not an error
		}
		cm := MatchColumns(rows[headerIdx])
		return normalizeRosterRows(name, rows, headerIdx, cm)
	}
}
