// Package ingest provides the business logic for roster allocation ingestion.
// It normalizes heterogeneous tabular uploads (delimited text and multi-sheet
// spreadsheets) into a single canonical record schema and has no HTTP
// dependencies, so it can be driven by any transport.
package ingest

import "context"

// FileType classifies an uploaded blob for processing.
type FileType string

const (
	// FileTypeCSV is any delimited-text upload (comma, semicolon, tab, pipe).
	FileTypeCSV FileType = "CSV"
	// FileTypeExcel is an .xlsx/.xls spreadsheet upload.
	FileTypeExcel FileType = "Excel"
	// FileTypeManual marks records created through manual group entry,
	// which are not tagged to any source sheet.
	FileTypeManual FileType = "Manual"
)

// SheetCSV is the sheet_name stamped on records from delimited-text uploads.
const SheetCSV = "CSV"

// AllocationRecord is one row of normalized allocation data. Every record
// belongs to exactly one batch; batch membership is the sole grouping key.
type AllocationRecord struct {
	ID         string `json:"id,omitempty"`
	BatchID    string `json:"batch_id"`
	UploadedBy string `json:"uploaded_by"`
	UploadedAt string `json:"uploaded_at"`

	GroupNo      string `json:"group_no"`
	StudentName  string `json:"student_name"`
	EnrollmentNo string `json:"enrollment_no"`
	GuideName    string `json:"guide_name"`

	Title1 string `json:"title_1"`
	Title2 string `json:"title_2"`
	Title3 string `json:"title_3"`

	// SheetName is the source sheet for spreadsheet uploads, "CSV" for
	// delimited text, and empty for manual entries.
	SheetName string `json:"sheet_name,omitempty"`

	// Form-response-only fields.
	TeamLeader        string `json:"team_leader,omitempty"`
	LeaderEnrollment  string `json:"leader_enrollment,omitempty"`
	Section           string `json:"section,omitempty"`
	Member1           string `json:"member_1,omitempty"`
	Member1Enrollment string `json:"member_1_enrollment,omitempty"`
	Member2           string `json:"member_2,omitempty"`
	Member2Enrollment string `json:"member_2_enrollment,omitempty"`
	Member3           string `json:"member_3,omitempty"`
	Member3Enrollment string `json:"member_3_enrollment,omitempty"`

	// Manual-entry-only field, set via CreateGroup.
	TeamName string `json:"team_name,omitempty"`
}

// HasStudent reports whether the record carries a non-empty student name.
func (r AllocationRecord) HasStudent() bool { return r.StudentName != "" }

// Keep reports whether the record survives normalization. Rows with neither
// a student name nor a group number are dropped, never persisted.
func (r AllocationRecord) Keep() bool { return r.StudentName != "" || r.GroupNo != "" }

// IngestResult summarizes one successful ingestion call.
type IngestResult struct {
	Inserted        int      `json:"inserted"`
	BatchID         string   `json:"batch_id"`
	Groups          int      `json:"groups"`
	Guides          int      `json:"guides"`
	Students        int      `json:"students"`
	SheetsProcessed int      `json:"sheets_processed"`
	FileType        FileType `json:"file_type"`
}

// Summary holds derived aggregate counts over stored records. All values
// are recomputed by a full scan on every call; nothing is cached.
type Summary struct {
	TotalStudentsFromCSV int            `json:"total_students_from_csv"`
	TotalGuidesFromCSV   int            `json:"total_guides_from_csv"`
	TotalTeamsFromCSV    int            `json:"total_teams_from_csv"`
	FileTypeBreakdown    map[string]int `json:"file_type_breakdown"`
	ExcelSheetsProcessed int            `json:"excel_sheets_processed"`
	UniqueSheets         []string       `json:"unique_sheets"`
}

// BatchSummary is a derived view over all records sharing one batch_id.
// No Batch entity is stored; these are materialized on every listing call.
type BatchSummary struct {
	BatchID    string   `json:"batch_id"`
	UploadedBy string   `json:"uploaded_by"`
	UploadedAt string   `json:"uploaded_at"`
	Records    int      `json:"records"`
	Groups     int      `json:"groups"`
	Guides     int      `json:"guides"`
	Students   int      `json:"students"`
	Sheets     []string `json:"sheets"`
	FileType   FileType `json:"file_type"`
}

// DeleteBatchResult reports what a batch deletion removed.
type DeleteBatchResult struct {
	DeletedCount int          `json:"deleted_count"`
	Aggregates   BatchSummary `json:"aggregates"`
}

// StudentEntry is one student in a manual group-creation request.
type StudentEntry struct {
	StudentName  string `json:"student_name"`
	EnrollmentNo string `json:"enrollment_no"`
}

// CreateGroupResult reports the records created by manual group entry.
type CreateGroupResult struct {
	Created int      `json:"created"`
	IDs     []string `json:"ids"`
	GroupNo string   `json:"group_no"`
}

// SheetPreview is the read-only structural preview of one sheet.
type SheetPreview struct {
	Name         string   `json:"name"`
	Rows         int      `json:"rows"`
	Columns      int      `json:"columns"`
	FirstRow     []string `json:"first_row"`
	DataRowCount int      `json:"data_row_count"`
}

// SpreadsheetPreview is the read-only structural preview of a workbook.
// It performs no persistence.
type SpreadsheetPreview struct {
	SheetNames []string       `json:"sheet_names"`
	Sheets     []SheetPreview `json:"sheets"`
}

// Store is the record persistence boundary. The unit of atomicity is one
// batch: InsertRecords persists all records of one ingestion call or none,
// and DeleteBatch removes every record sharing a batch_id in one operation.
type Store interface {
	// InsertRecords persists all records atomically and returns the
	// store-assigned identifiers in input order.
	InsertRecords(ctx context.Context, records []AllocationRecord) ([]string, error)

	// AllRecords returns every stored record. Used by the derived
	// aggregation paths, which always rescan rather than cache.
	AllRecords(ctx context.Context) ([]AllocationRecord, error)

	// ListRecords returns up to limit records ordered by uploaded_at
	// descending.
	ListRecords(ctx context.Context, limit int) ([]AllocationRecord, error)

	// GetRecord returns the record with the given identifier, or
	// ErrRecordNotFound.
	GetRecord(ctx context.Context, id string) (AllocationRecord, error)

	// UpdateRecord applies a partial update (field name -> new value) to a
	// single record and returns ErrRecordNotFound if no record matches.
	UpdateRecord(ctx context.Context, id string, fields map[string]string) error

	// DeleteBatch removes every record with the given batch_id and returns
	// the number removed.
	DeleteBatch(ctx context.Context, batchID string) (int, error)
}
