package ingest

import (
	"strings"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
	}{
		{"roster.csv", FormatDelimitedText},
		{"roster.CSV", FormatDelimitedText},
		{"roster.txt", FormatDelimitedText},
		{"roster.tsv", FormatDelimitedText},
		{"allocations.xlsx", FormatSpreadsheet},
		{"allocations.XLSX", FormatSpreadsheet},
		{"allocations.xls", FormatSpreadsheet},
		{"no_extension", FormatDelimitedText},
		{"", FormatDelimitedText},
	}

	for _, tt := range tests {
		if got := DetectFormat(tt.filename); got != tt.want {
			t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestDecodeText_StripsBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Group No,Name")...)
	got := DecodeText(raw)
	if got != "Group No,Name" {
		t.Errorf("DecodeText() = %q, want %q", got, "Group No,Name")
	}
}

func TestDecodeText_ReplacesInvalidBytes(t *testing.T) {
	raw := []byte{'a', 0xFF, 'b'}
	got := DecodeText(raw)
	if !strings.Contains(got, "�") {
		t.Errorf("DecodeText() = %q, want replacement rune for invalid byte", got)
	}
	if !strings.HasPrefix(got, "a") || !strings.HasSuffix(got, "b") {
		t.Errorf("DecodeText() = %q, valid bytes should survive", got)
	}
}

func TestSniffDelimited_Comma(t *testing.T) {
	text := "Group No,Name of Student,Enrollment No\nG1,Alice,E100\nG1,Bob,E101\n"
	res := SniffDelimited(text)
	if res.Delimiter != ',' {
		t.Errorf("Delimiter = %q, want ','", res.Delimiter)
	}
	if !res.HasHeader {
		t.Error("HasHeader = false, want true")
	}
}

func TestSniffDelimited_Semicolon(t *testing.T) {
	text := "Group No;Name of Student;Enrollment No\nG1;Alice;E100\n"
	res := SniffDelimited(text)
	if res.Delimiter != ';' {
		t.Errorf("Delimiter = %q, want ';'", res.Delimiter)
	}
}

func TestSniffDelimited_Tab(t *testing.T) {
	text := "Group No\tName of Student\nG1\tAlice\n"
	res := SniffDelimited(text)
	if res.Delimiter != '\t' {
		t.Errorf("Delimiter = %q, want tab", res.Delimiter)
	}
}

func TestSniffDelimited_Pipe(t *testing.T) {
	text := "Group No|Name of Student\nG1|Alice\n"
	res := SniffDelimited(text)
	if res.Delimiter != '|' {
		t.Errorf("Delimiter = %q, want '|'", res.Delimiter)
	}
}

func TestSniffDelimited_EmptyDefaultsToComma(t *testing.T) {
	res := SniffDelimited("")
	if res.Delimiter != ',' {
		t.Errorf("Delimiter = %q, want ','", res.Delimiter)
	}
	if !res.HasHeader {
		t.Error("HasHeader = false, want true (default)")
	}
}

func TestSniffDelimited_NumericFirstRowIsNotHeader(t *testing.T) {
	text := "1,2,3\n4,5,6\n"
	res := SniffDelimited(text)
	if res.HasHeader {
		t.Error("HasHeader = true for purely numeric first row, want false")
	}
}

func TestSniffDelimited_NumericDataBelowTextRowConfirmsHeader(t *testing.T) {
	text := "Sr No,Group No\n1,G1\n2,G2\n"
	res := SniffDelimited(text)
	if !res.HasHeader {
		t.Error("HasHeader = false, want true when data rows are numeric below text row")
	}
}

func TestSniffDelimited_IgnoresQuotedDelimiters(t *testing.T) {
	text := "\"Doe, John\";Section\n\"Roe, Jane\";CSE-A\n\"Poe, Mary\";CSE-B\n"
	res := SniffDelimited(text)
	if res.Delimiter != ';' {
		t.Errorf("Delimiter = %q, want ';' (commas inside quotes are field content)", res.Delimiter)
	}
}

func TestSniffDelimited_MultiByteSampleBoundary(t *testing.T) {
	// Long enough that the sample cut-off lands inside the repeated
	// multi-byte content; the cut must never split a rune.
	line := "José,Müller,André\n"
	text := "Name,Guide,Section\n" + strings.Repeat(line, 200)

	res := SniffDelimited(text)
	if res.Delimiter != ',' {
		t.Errorf("Delimiter = %q, want ','", res.Delimiter)
	}
	if !res.HasHeader {
		t.Error("HasHeader = false, want true")
	}
}

func TestParseDelimited_RaggedRows(t *testing.T) {
	rows, err := ParseDelimited("a,b,c\n1,2\n", ',')
	if err != nil {
		t.Fatalf("ParseDelimited() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if len(rows[1]) != 2 {
		t.Errorf("second row has %d fields, ragged rows should be tolerated", len(rows[1]))
	}
}

func TestIsEmptyRow(t *testing.T) {
	if !isEmptyRow([]string{"", "  ", "\t"}) {
		t.Error("whitespace-only row should be empty")
	}
	if isEmptyRow([]string{"", "x"}) {
		t.Error("row with a value should not be empty")
	}
	if !isEmptyRow(nil) {
		t.Error("nil row should be empty")
	}
}
