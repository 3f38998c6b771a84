package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Default limits, overridable through Options.
const (
	defaultMaxFileSize   = int64(100 * 1024 * 1024)
	defaultMaxConcurrent = 5
	defaultListLimit     = 100
)

// Options tunes service behaviour. Zero values fall back to defaults.
type Options struct {
	// MaxFileSize is the largest upload accepted, in bytes.
	MaxFileSize int64
	// MaxConcurrent caps simultaneous ingestion calls; further calls are
	// rejected with ErrTooManyUploads rather than queued.
	MaxConcurrent int
}

// Service exposes the ingestion and aggregation operations over a Store.
// One Ingest call runs the whole pipeline synchronously: detect, sniff,
// map, normalize, persist.
type Service struct {
	store       Store
	maxFileSize int64
	slots       chan struct{}
}

// NewService creates a Service backed by the given store.
func NewService(store Store, opts Options) *Service {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Service{
		store:       store,
		maxFileSize: maxSize,
		slots:       make(chan struct{}, maxConcurrent),
	}
}

// batchIDLayout is a fixed-width ISO-8601 UTC layout. The width matters:
// uploaded_at is stored as text and every listing orders by lexicographic
// comparison, so the format must make string order equal time order.
// RFC3339Nano would trim trailing fractional zeros and break that.
const batchIDLayout = "2006-01-02T15:04:05.000000000Z07:00"

// newBatchID returns the shared batch identifier for one ingestion call.
// The batch_id doubles as the uploaded_at value of every record in the
// batch.
func newBatchID(now time.Time) string {
	return now.UTC().Format(batchIDLayout)
}

// acquireSlot reserves an ingestion slot or fails fast when saturated.
func (s *Service) acquireSlot() error {
	select {
	case s.slots <- struct{}{}:
		return nil
	default:
		return ErrTooManyUploads
	}
}

func (s *Service) releaseSlot() { <-s.slots }

// Ingest runs the full pipeline on an uploaded file and persists the
// resulting records as one batch. It returns a structural error when the
// file yields no records; partial batches never exist.
func (s *Service) Ingest(ctx context.Context, fileBytes []byte, filename, uploaderID string) (*IngestResult, error) {
	if err := s.acquireSlot(); err != nil {
		return nil, err
	}
	defer s.releaseSlot()

	if len(fileBytes) == 0 {
		return nil, structuralf("empty file uploaded")
	}
	if int64(len(fileBytes)) > s.maxFileSize {
		return nil, structuralf("file exceeds %d byte limit", s.maxFileSize)
	}

	batchID := newBatchID(time.Now())

	var (
		records  []AllocationRecord
		fileType FileType
		err      error
	)

	switch DetectFormat(filename) {
	case FormatSpreadsheet:
		fileType = FileTypeExcel
		records, err = s.normalizeSpreadsheet(fileBytes)
	default:
		fileType = FileTypeCSV
		records, err = s.normalizeDelimited(fileBytes)
	}
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, structuralf("no data rows found in %q", filename)
	}

	for i := range records {
		records[i].BatchID = batchID
		records[i].UploadedBy = uploaderID
		records[i].UploadedAt = batchID
	}

	if _, err := s.store.InsertRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	res := summarizeBatch(records)
	res.BatchID = batchID
	res.FileType = fileType

	slog.Info("batch ingested",
		"batch_id", batchID,
		"file", filename,
		"file_type", fileType,
		"inserted", res.Inserted,
		"sheets", res.SheetsProcessed,
	)
	return res, nil
}

// normalizeDelimited runs the delimited-text path: decode, sniff, map
// headers, normalize rows.
func (s *Service) normalizeDelimited(raw []byte) ([]AllocationRecord, error) {
	text := DecodeText(raw)
	sniff := SniffDelimited(text)

	if !sniff.HasHeader {
		return nil, structuralf("CSV header not detected; ensure the first row contains column names")
	}

	rows, err := ParseDelimited(text, sniff.Delimiter)
	if err != nil {
		return nil, structuralf("parse CSV: %v", err)
	}
	if len(rows) == 0 || isEmptyRow(rows[0]) {
		return nil, structuralf("CSV header not detected; no field names could be derived")
	}

	headers := rows[0]
	hm := MatchHeaders(headers)
	return normalizeDelimitedRows(headers, rows[1:], hm), nil
}

// normalizeSpreadsheet runs the spreadsheet path across every sheet. A
// sheet with no recognizable layout contributes zero records without
// aborting the rest of the workbook.
func (s *Service) normalizeSpreadsheet(raw []byte) ([]AllocationRecord, error) {
	wb, err := openWorkbook(raw)
	if err != nil {
		return nil, err
	}

	var records []AllocationRecord
	for _, name := range wb.SheetNames {
		recs := normalizeSheet(name, wb.Rows[name])
		if len(recs) == 0 {
			slog.Debug("sheet yielded no records", "sheet", name)
			continue
		}
		records = append(records, recs...)
	}
	return records, nil
}

// summarizeBatch derives the response counts for one freshly built batch.
func summarizeBatch(records []AllocationRecord) *IngestResult {
	groups := map[string]struct{}{}
	guides := map[string]struct{}{}
	sheets := map[string]struct{}{}
	students := 0

	for _, r := range records {
		if r.GroupNo != "" {
			groups[r.GroupNo] = struct{}{}
		}
		if r.GuideName != "" {
			guides[r.GuideName] = struct{}{}
		}
		if r.HasStudent() {
			students++
		}
		if r.SheetName != "" {
			sheets[r.SheetName] = struct{}{}
		}
	}

	return &IngestResult{
		Inserted:        len(records),
		Groups:          len(groups),
		Guides:          len(guides),
		Students:        students,
		SheetsProcessed: len(sheets),
	}
}

// Summary recomputes overall aggregate counts by scanning every stored
// record. Nothing is cached; two calls with no intervening writes return
// identical results.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	records, err := s.store.AllRecords(ctx)
	if err != nil {
		// Availability over correctness: summaries back read-only
		// dashboards, so degrade to zeros instead of failing.
		slog.Error("summary scan failed", "error", err)
		return &Summary{FileTypeBreakdown: map[string]int{}, UniqueSheets: []string{}}, nil
	}

	groups := map[string]struct{}{}
	guides := map[string]struct{}{}
	students := 0
	breakdown := map[string]int{}
	excelSheets := map[string]struct{}{}

	for _, r := range records {
		if r.GroupNo != "" {
			groups[r.GroupNo] = struct{}{}
		}
		if r.GuideName != "" {
			guides[r.GuideName] = struct{}{}
		}
		if r.HasStudent() {
			students++
		}

		bucket := r.SheetName
		if bucket == "" {
			bucket = string(FileTypeManual)
		}
		breakdown[bucket]++
		if r.SheetName != "" && r.SheetName != SheetCSV {
			excelSheets[r.SheetName] = struct{}{}
		}
	}

	unique := make([]string, 0, len(excelSheets))
	for name := range excelSheets {
		unique = append(unique, name)
	}
	sort.Strings(unique)

	return &Summary{
		TotalStudentsFromCSV: students,
		TotalGuidesFromCSV:   len(guides),
		TotalTeamsFromCSV:    len(groups),
		FileTypeBreakdown:    breakdown,
		ExcelSheetsProcessed: len(excelSheets),
		UniqueSheets:         unique,
	}, nil
}

// ListRecords returns up to limit records ordered by uploaded_at
// descending. It never fails: store errors degrade to an empty list so
// the listing UI stays functional.
func (s *Service) ListRecords(ctx context.Context, limit int) []AllocationRecord {
	if limit <= 0 {
		limit = defaultListLimit
	}
	records, err := s.store.ListRecords(ctx, limit)
	if err != nil {
		slog.Error("list records failed", "error", err)
		return []AllocationRecord{}
	}
	if records == nil {
		records = []AllocationRecord{}
	}
	return records
}

// patchAllowList is the fixed set of patchable fields. project_title is an
// input alias stored as title_1.
var patchAllowList = map[string]string{
	"team_name":     "team_name",
	"project_title": "title_1",
	"title_1":       "title_1",
	"guide_name":    "guide_name",
	"student_name":  "student_name",
	"group_no":      "group_no",
	"enrollment_no": "enrollment_no",
}

// PatchRecord applies a partial update to one record. Fields outside the
// allow-list are silently dropped; an empty post-filter patch is invalid.
func (s *Service) PatchRecord(ctx context.Context, id string, fields map[string]string) (*AllocationRecord, error) {
	update := make(map[string]string, len(fields))
	for k, v := range fields {
		if stored, ok := patchAllowList[k]; ok {
			update[stored] = v
		}
	}
	if len(update) == 0 {
		return nil, validationf("no valid fields to update")
	}

	if err := s.store.UpdateRecord(ctx, id, update); err != nil {
		return nil, err
	}

	rec, err := s.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// maxGroupStudents bounds manual group creation.
const maxGroupStudents = 4

// CreateGroup writes one record per student with the shared group fields
// replicated, bypassing file parsing entirely. Manual records are not
// tagged to a sheet.
func (s *Service) CreateGroup(ctx context.Context, uploaderID, groupNo, teamName, guideName, projectTitle string, students []StudentEntry) (*CreateGroupResult, error) {
	groupNo = strings.TrimSpace(groupNo)
	if groupNo == "" {
		return nil, validationf("group_no is required")
	}
	if len(students) == 0 {
		return nil, validationf("at least one student is required")
	}
	if len(students) > maxGroupStudents {
		return nil, validationf("maximum %d students per group", maxGroupStudents)
	}

	batchID := newBatchID(time.Now())

	records := make([]AllocationRecord, 0, len(students))
	for _, st := range students {
		records = append(records, AllocationRecord{
			BatchID:      batchID,
			UploadedBy:   uploaderID,
			UploadedAt:   batchID,
			GroupNo:      groupNo,
			StudentName:  strings.TrimSpace(st.StudentName),
			EnrollmentNo: strings.TrimSpace(st.EnrollmentNo),
			GuideName:    strings.TrimSpace(guideName),
			Title1:       strings.TrimSpace(projectTitle),
			TeamName:     strings.TrimSpace(teamName),
		})
	}

	ids, err := s.store.InsertRecords(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}

	slog.Info("group created", "group_no", groupNo, "batch_id", batchID, "students", len(ids))
	return &CreateGroupResult{Created: len(ids), IDs: ids, GroupNo: groupNo}, nil
}

// ListBatches derives per-batch summaries by grouping all records on
// batch_id, sorted by uploaded_at descending. Purely derived, like every
// aggregate here. Store failures degrade to an empty list.
func (s *Service) ListBatches(ctx context.Context) []BatchSummary {
	records, err := s.store.AllRecords(ctx)
	if err != nil {
		slog.Error("list batches failed", "error", err)
		return []BatchSummary{}
	}

	grouped := map[string][]AllocationRecord{}
	for _, r := range records {
		grouped[r.BatchID] = append(grouped[r.BatchID], r)
	}

	out := make([]BatchSummary, 0, len(grouped))
	for id, recs := range grouped {
		out = append(out, buildBatchSummary(id, recs))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt > out[j].UploadedAt })
	return out
}

// buildBatchSummary derives one batch's aggregates from its records.
func buildBatchSummary(batchID string, recs []AllocationRecord) BatchSummary {
	sum := BatchSummary{BatchID: batchID, Records: len(recs)}

	groups := map[string]struct{}{}
	guides := map[string]struct{}{}
	sheets := map[string]struct{}{}
	fileType := FileTypeCSV
	sawSheet := false

	for _, r := range recs {
		if sum.UploadedAt == "" {
			sum.UploadedAt = r.UploadedAt
			sum.UploadedBy = r.UploadedBy
		}
		if r.GroupNo != "" {
			groups[r.GroupNo] = struct{}{}
		}
		if r.GuideName != "" {
			guides[r.GuideName] = struct{}{}
		}
		if r.HasStudent() {
			sum.Students++
		}
		if r.SheetName != "" {
			sawSheet = true
			sheets[r.SheetName] = struct{}{}
			if r.SheetName != SheetCSV {
				fileType = FileTypeExcel
			}
		}
	}

	if !sawSheet {
		fileType = FileTypeManual
	}

	sum.Groups = len(groups)
	sum.Guides = len(guides)
	sum.FileType = fileType
	sum.Sheets = make([]string, 0, len(sheets))
	for name := range sheets {
		sum.Sheets = append(sum.Sheets, name)
	}
	sort.Strings(sum.Sheets)
	return sum
}

// DeleteBatch removes every record sharing the given batch_id in one
// operation, returning the removed batch's derived aggregates. Zero
// matching records means not-found.
func (s *Service) DeleteBatch(ctx context.Context, batchID string) (*DeleteBatchResult, error) {
	records, err := s.store.AllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan batch: %w", err)
	}

	var batch []AllocationRecord
	for _, r := range records {
		if r.BatchID == batchID {
			batch = append(batch, r)
		}
	}
	if len(batch) == 0 {
		return nil, ErrBatchNotFound
	}

	deleted, err := s.store.DeleteBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("delete batch: %w", err)
	}

	slog.Info("batch deleted", "batch_id", batchID, "records", deleted)
	return &DeleteBatchResult{
		DeletedCount: deleted,
		Aggregates:   buildBatchSummary(batchID, batch),
	}, nil
}

// PreviewSpreadsheet returns the read-only structural preview of a
// workbook. It performs no persistence.
func (s *Service) PreviewSpreadsheet(ctx context.Context, fileBytes []byte) (*SpreadsheetPreview, error) {
	_ = ctx
	return Preview(fileBytes)
}
