package ingest

// detect.go classifies uploaded blobs and sniffs delimited-text structure.
//
// Format detection is extension-driven: .xlsx/.xls means spreadsheet,
// everything else is treated as delimited text. There is deliberately no
// content-based fallback for spreadsheets; the extension is authoritative.
//
// Delimiter sniffing inspects a fixed-size leading sample of the decoded
// text and votes on both the delimiter character and whether row 1 is a
// header. When the sample is too ambiguous to decide, it falls back to
// comma-delimited with a header assumed present.

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Format is the detected shape of an uploaded blob.
type Format int

const (
	// FormatDelimitedText covers CSV and friends (semicolon, tab, pipe).
	FormatDelimitedText Format = iota
	// FormatSpreadsheet covers .xlsx/.xls workbooks.
	FormatSpreadsheet
)

// sniffSampleSize is how many characters of the decoded text the sniffer
// inspects. Matches the upstream form-export tooling.
const sniffSampleSize = 2048

// candidateDelimiters are tried in order when sniffing; comma wins ties.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// DetectFormat classifies a blob by filename extension. An unreadable or
// absent filename defaults to delimited text.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return FormatSpreadsheet
	default:
		return FormatDelimitedText
	}
}

// DecodeText converts raw upload bytes to a UTF-8 string, stripping a
// leading byte-order mark and replacing invalid sequences with U+FFFD.
func DecodeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return string(raw)
	}

	var buf bytes.Buffer
	buf.Grow(len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			raw = raw[1:]
		} else {
			buf.WriteRune(r)
			raw = raw[size:]
		}
	}
	return buf.String()
}

// SniffResult is the outcome of delimiter sniffing.
type SniffResult struct {
	Delimiter rune
	HasHeader bool
}

// SniffDelimited infers the delimiter and header presence from a leading
// sample of text. Defaults to comma + header on an undecidable sample.
func SniffDelimited(text string) SniffResult {
	// The sample size is in characters, not bytes. Slicing bytes could
	// split a multi-byte rune at the boundary.
	sample := text
	truncated := false
	if runes := []rune(text); len(runes) > sniffSampleSize {
		sample = string(runes[:sniffSampleSize])
		truncated = true
	}

	res := SniffResult{Delimiter: ',', HasHeader: true}

	lines := sampleLines(sample, truncated)
	if len(lines) == 0 {
		return res
	}

	if d, ok := voteDelimiter(lines); ok {
		res.Delimiter = d
	}

	rows := parseSample(sample, res.Delimiter)
	if len(rows) > 0 {
		res.HasHeader = looksLikeHeader(rows)
	}
	return res
}

// sampleLines splits the sample into non-empty lines, discarding a trailing
// partial line so counts are not skewed by the sample cut-off.
func sampleLines(sample string, truncated bool) []string {
	raw := strings.Split(strings.ReplaceAll(sample, "\r\n", "\n"), "\n")
	if len(raw) > 1 && truncated {
		raw = raw[:len(raw)-1]
	}

	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// voteDelimiter picks the candidate whose per-line count is positive and
// consistent across the sampled lines. Candidates are tried in declared
// order so comma wins ties deterministically. Delimiters inside quoted
// fields are field content, not separators, and do not count.
func voteDelimiter(lines []string) (rune, bool) {
	best := rune(0)
	bestCount := 0

	for _, d := range candidateDelimiters {
		count := countUnquoted(lines[0], d)
		if count == 0 {
			continue
		}
		consistent := true
		for _, l := range lines[1:] {
			if countUnquoted(l, d) != count {
				consistent = false
				break
			}
		}
		if consistent && count > bestCount {
			best = d
			bestCount = count
		}
	}

	if best == 0 {
		return 0, false
	}
	return best, true
}

// countUnquoted counts occurrences of delim outside double-quoted regions.
func countUnquoted(line string, delim rune) int {
	count := 0
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			count++
		}
	}
	return count
}

// parseSample parses the sample with the chosen delimiter, tolerating
// ragged rows and lazy quotes the way the main reader does.
func parseSample(sample string, delim rune) [][]string {
	r := csv.NewReader(strings.NewReader(sample))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil
	}
	return rows
}

// looksLikeHeader reports whether row 1 reads like column names rather than
// data. A purely numeric cell in row 1 is a strong vote against a header;
// a column that is numeric below row 1 but not in it is a vote for one.
func looksLikeHeader(rows [][]string) bool {
	first := rows[0]

	nonEmpty := 0
	for _, cell := range first {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		nonEmpty++
		if isNumericCell(cell) {
			return false
		}
	}
	if nonEmpty == 0 {
		return false
	}

	// Single-row files: nothing to compare against, assume header present.
	if len(rows) < 2 {
		return true
	}

	for col := range first {
		for _, row := range rows[1:] {
			if col < len(row) && isNumericCell(strings.TrimSpace(row[col])) {
				return true
			}
		}
	}

	// No type difference detected; headers are still the common case for
	// institutional exports, so keep the default.
	return true
}

func isNumericCell(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// ParseDelimited parses the full decoded text with the sniffed delimiter.
func ParseDelimited(text string, delim rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
