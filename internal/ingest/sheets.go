package ingest

// sheets.go handles the spreadsheet path: workbook parsing, per-sheet
// layout classification, and roster header-row discovery.
//
// Two layouts exist and the set is closed:
//
//	form-response - the questionnaire export sheet, always named
//	                "Form Responses 1", with fixed positional columns.
//	                No header scan is needed.
//	roster        - everything else. The header row position varies by
//	                institution, so rows are scanned top to bottom for
//	                known marker cells before column mapping.
//
// A sheet whose layout cannot be resolved yields zero records; the rest of
// the workbook still processes.

import (
	"bytes"

	"github.com/xuri/excelize/v2"
)

// formResponseSheetName is the exact sheet name of the questionnaire
// export layout.
const formResponseSheetName = "Form Responses 1"

// rosterHeaderMarkers identify a roster header row: the first row whose
// cells contain any of these (case-insensitive substring) is the header.
var rosterHeaderMarkers = []string{"sr. no", "group no", "name of student"}

// Fixed column offsets of the form-response layout. The sheet is a
// questionnaire export, so positions are stable even though names drift.
const (
	formColTimestamp = iota
	formColEmail
	formColTeamLeader
	formColLeaderEnrollment
	formColSection
	formColMember1
	formColMember1Enrollment
	formColMember2
	formColMember2Enrollment
	formColMember3
	formColMember3Enrollment
	formColTitle1
	formColTitle2
	formColTitle3
)

// sheetLayout tags which strategy applies to a sheet.
type sheetLayout int

const (
	layoutRoster sheetLayout = iota
	layoutFormResponse
)

// classifySheet selects the processing strategy for a sheet by name.
func classifySheet(name string) sheetLayout {
	if name == formResponseSheetName {
		return layoutFormResponse
	}
	return layoutRoster
}

// workbook is the parsed, in-memory form of a spreadsheet upload:
// sheet names in workbook order plus each sheet's cell grid.
type workbook struct {
	SheetNames []string
	Rows       map[string][][]string
}

// openWorkbook parses spreadsheet bytes into a workbook. Cell values come
// back as display strings, matching what a user sees in the sheet.
func openWorkbook(data []byte) (*workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, structuralf("open spreadsheet: %v", err)
	}
	defer f.Close()

	wb := &workbook{
		SheetNames: f.GetSheetList(),
		Rows:       make(map[string][][]string),
	}

	for _, name := range wb.SheetNames {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, structuralf("read sheet %q: %v", name, err)
		}
		wb.Rows[name] = rows
	}
	return wb, nil
}

// findRosterHeaderRow scans rows top to bottom for the first row containing
// a known header marker in any non-empty cell. Returns -1 if the sheet has
// no recognizable header row, in which case it yields zero records.
func findRosterHeaderRow(rows [][]string) int {
	for i, row := range rows {
		if rowHasMarker(row) {
			return i
		}
	}
	return -1
}

func rowHasMarker(row []string) bool {
	for _, cell := range row {
		lc := lowerTrim(cell)
		if lc == "" {
			continue
		}
		for _, marker := range rosterHeaderMarkers {
			if contains(lc, marker) {
				return true
			}
		}
	}
	return false
}

// Preview returns a read-only structural report of a workbook without
// persisting anything: sheet names, shapes, first-row headers and data
// row counts per the layout each sheet would be processed with.
func Preview(data []byte) (*SpreadsheetPreview, error) {
	if len(data) == 0 {
		return nil, structuralf("empty file")
	}

	wb, err := openWorkbook(data)
	if err != nil {
		return nil, err
	}

	out := &SpreadsheetPreview{SheetNames: wb.SheetNames}
	for _, name := range wb.SheetNames {
		rows := wb.Rows[name]

		sp := SheetPreview{Name: name, Rows: len(rows)}
		for _, row := range rows {
			if len(row) > sp.Columns {
				sp.Columns = len(row)
			}
		}

		switch classifySheet(name) {
		case layoutFormResponse:
			if len(rows) > 0 {
				sp.FirstRow = rows[0]
			}
			for i := 1; i < len(rows); i++ {
				if !isEmptyRow(rows[i]) {
					sp.DataRowCount++
				}
			}
		case layoutRoster:
			if h := findRosterHeaderRow(rows); h >= 0 {
				sp.FirstRow = rows[h]
				for i := h + 1; i < len(rows); i++ {
					if !isEmptyRow(rows[i]) {
						sp.DataRowCount++
					}
				}
			}
		}

		out.Sheets = append(out.Sheets, sp)
	}
	return out, nil
}
