package ingest_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Nikhilraj155/project-managment/internal/ingest"
	"github.com/Nikhilraj155/project-managment/internal/store"
)

const rosterCSV = "Group No.,Name of Student,Enrollment No,Guide Name\n" +
	"G1,Alice,E100,Dr. X\n" +
	"G1,Bob,E101,Dr. X\n" +
	"G2,Carol,E102,Dr. Y\n"

func newTestService(t *testing.T) (*ingest.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return ingest.NewService(mem, ingest.Options{}), mem
}

func TestIngest_CSV(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, []byte(rosterCSV), "roster.csv", "prof.ada")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if res.Inserted != 3 {
		t.Errorf("Inserted = %d, want 3", res.Inserted)
	}
	if res.Groups != 2 {
		t.Errorf("Groups = %d, want 2", res.Groups)
	}
	if res.Guides != 2 {
		t.Errorf("Guides = %d, want 2", res.Guides)
	}
	if res.Students != 3 {
		t.Errorf("Students = %d, want 3", res.Students)
	}
	if res.FileType != ingest.FileTypeCSV {
		t.Errorf("FileType = %s, want CSV", res.FileType)
	}
	if res.BatchID == "" {
		t.Fatal("BatchID should not be empty")
	}

	// Every record carries the shared batch identity.
	records, err := mem.AllRecords(ctx)
	if err != nil {
		t.Fatalf("AllRecords() error = %v", err)
	}
	for _, r := range records {
		if r.BatchID != res.BatchID {
			t.Errorf("record BatchID = %q, want %q", r.BatchID, res.BatchID)
		}
		if r.UploadedAt != res.BatchID {
			t.Errorf("record UploadedAt = %q, want batch_id %q", r.UploadedAt, res.BatchID)
		}
		if r.UploadedBy != "prof.ada" {
			t.Errorf("record UploadedBy = %q, want prof.ada", r.UploadedBy)
		}
		if r.SheetName != ingest.SheetCSV {
			t.Errorf("record SheetName = %q, want CSV", r.SheetName)
		}
	}
}

func TestIngest_SemicolonDelimited(t *testing.T) {
	svc, _ := newTestService(t)

	data := "Group No;Name of Student;Guide Name\nG1;Alice;Dr. X\n"
	res, err := svc.Ingest(context.Background(), []byte(data), "export.csv", "u1")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", res.Inserted)
	}
}

func TestIngest_EmptyFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Ingest(context.Background(), nil, "empty.csv", "u1")
	if !ingest.IsStructural(err) {
		t.Fatalf("Ingest() error = %v, want structural", err)
	}
	if got := ingest.MapError(err).Code; got != "FILE001" {
		t.Errorf("error code = %s, want FILE001", got)
	}
}

func TestIngest_FileTooLarge(t *testing.T) {
	mem := store.NewMemory()
	svc := ingest.NewService(mem, ingest.Options{MaxFileSize: 8})

	_, err := svc.Ingest(context.Background(), []byte(rosterCSV), "big.csv", "u1")
	if !ingest.IsStructural(err) {
		t.Fatalf("Ingest() error = %v, want structural", err)
	}
	if got := ingest.MapError(err).Code; got != "FILE002" {
		t.Errorf("error code = %s, want FILE002", got)
	}
}

func TestIngest_HeaderOnlyFile(t *testing.T) {
	svc, mem := newTestService(t)

	_, err := svc.Ingest(context.Background(),
		[]byte("Group No,Name of Student,Guide Name\n"), "roster.csv", "u1")
	if !ingest.IsStructural(err) {
		t.Fatalf("Ingest() error = %v, want structural", err)
	}

	// Nothing may be persisted on a rejected upload.
	records, _ := mem.AllRecords(context.Background())
	if len(records) != 0 {
		t.Errorf("store holds %d records after rejected upload, want 0", len(records))
	}
}

func TestIngest_NoHeaderDetected(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Ingest(context.Background(), []byte("1,2,3\n4,5,6\n"), "numbers.csv", "u1")
	if !ingest.IsStructural(err) {
		t.Fatalf("Ingest() error = %v, want structural", err)
	}
	if got := ingest.MapError(err).Code; got != "FILE003" {
		t.Errorf("error code = %s, want FILE003", got)
	}
}

func TestSummary_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, []byte(rosterCSV), "roster.csv", "u1"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	first, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	second, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Summary not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}

	if first.TotalStudentsFromCSV != 3 {
		t.Errorf("TotalStudentsFromCSV = %d, want 3", first.TotalStudentsFromCSV)
	}
	if first.TotalTeamsFromCSV != 2 {
		t.Errorf("TotalTeamsFromCSV = %d, want 2", first.TotalTeamsFromCSV)
	}
	if first.TotalGuidesFromCSV != 2 {
		t.Errorf("TotalGuidesFromCSV = %d, want 2", first.TotalGuidesFromCSV)
	}
	if first.FileTypeBreakdown["CSV"] != 3 {
		t.Errorf("FileTypeBreakdown[CSV] = %d, want 3", first.FileTypeBreakdown["CSV"])
	}
	if first.ExcelSheetsProcessed != 0 {
		t.Errorf("ExcelSheetsProcessed = %d, want 0", first.ExcelSheetsProcessed)
	}
}

func TestSummary_EmptyStore(t *testing.T) {
	svc, _ := newTestService(t)

	sum, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.TotalStudentsFromCSV != 0 || sum.TotalTeamsFromCSV != 0 {
		t.Errorf("empty store summary = %+v, want zeros", sum)
	}
}

func TestListRecords(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, []byte(rosterCSV), "roster.csv", "u1"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	all := svc.ListRecords(ctx, 0)
	if len(all) != 3 {
		t.Errorf("ListRecords(0) = %d records, want 3 (default limit)", len(all))
	}

	limited := svc.ListRecords(ctx, 2)
	if len(limited) != 2 {
		t.Errorf("ListRecords(2) = %d records, want 2", len(limited))
	}
}

func TestPatchRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateGroup(ctx, "u1", "G9", "Tigers", "Dr. Z", "Old Title",
		[]ingest.StudentEntry{{StudentName: "Dana", EnrollmentNo: "E300"}})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	id := created.IDs[0]

	// project_title is an alias stored as title_1; unknown keys are dropped.
	rec, err := svc.PatchRecord(ctx, id, map[string]string{
		"project_title": "New Title",
		"batch_id":      "evil",
	})
	if err != nil {
		t.Fatalf("PatchRecord() error = %v", err)
	}
	if rec.Title1 != "New Title" {
		t.Errorf("Title1 = %q, want New Title", rec.Title1)
	}
	if rec.ID != id {
		t.Errorf("ID = %q, want %q", rec.ID, id)
	}
}

func TestPatchRecord_NoValidFields(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PatchRecord(context.Background(), "some-id", map[string]string{"batch_id": "x"})
	if !ingest.IsValidation(err) {
		t.Fatalf("PatchRecord() error = %v, want validation", err)
	}
	if got := ingest.MapError(err).Code; got != "VAL003" {
		t.Errorf("error code = %s, want VAL003", got)
	}
}

func TestPatchRecord_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PatchRecord(context.Background(), "missing", map[string]string{"team_name": "x"})
	if !errors.Is(err, ingest.ErrRecordNotFound) {
		t.Fatalf("PatchRecord() error = %v, want ErrRecordNotFound", err)
	}
}

func TestCreateGroup(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	res, err := svc.CreateGroup(ctx, "prof.ada", " G5 ", "Falcons", "Dr. Q", "Robot Arm",
		[]ingest.StudentEntry{
			{StudentName: "Hal", EnrollmentNo: "E400"},
			{StudentName: "Ivy", EnrollmentNo: "E401"},
		})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	if res.Created != 2 || len(res.IDs) != 2 {
		t.Fatalf("Created = %d, IDs = %d, want 2/2", res.Created, len(res.IDs))
	}
	if res.GroupNo != "G5" {
		t.Errorf("GroupNo = %q, want trimmed G5", res.GroupNo)
	}

	records, _ := mem.AllRecords(ctx)
	if len(records) != 2 {
		t.Fatalf("store holds %d records, want 2", len(records))
	}
	for _, r := range records {
		if r.GroupNo != "G5" || r.TeamName != "Falcons" || r.GuideName != "Dr. Q" || r.Title1 != "Robot Arm" {
			t.Errorf("record = %+v, group fields should be replicated per student", r)
		}
		if r.UploadedBy != "prof.ada" {
			t.Errorf("UploadedBy = %q, want prof.ada", r.UploadedBy)
		}
		if r.SheetName != "" {
			t.Errorf("SheetName = %q, manual records are not tagged to a sheet", r.SheetName)
		}
		if r.BatchID == "" || r.BatchID != records[0].BatchID {
			t.Error("all group records must share one batch_id")
		}
	}
}

func TestCreateGroup_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	one := []ingest.StudentEntry{{StudentName: "A"}}

	tests := []struct {
		name     string
		groupNo  string
		students []ingest.StudentEntry
		code     string
	}{
		{"missing group_no", "  ", one, "VAL001"},
		{"no students", "G1", nil, "VAL002"},
		{"five students", "G1", make([]ingest.StudentEntry, 5), "VAL002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateGroup(ctx, "u1", tt.groupNo, "", "", "", tt.students)
			if !ingest.IsValidation(err) {
				t.Fatalf("CreateGroup() error = %v, want validation", err)
			}
			if got := ingest.MapError(err).Code; got != tt.code {
				t.Errorf("error code = %s, want %s", got, tt.code)
			}
		})
	}
}

func TestListBatches(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	uploaded, err := svc.Ingest(ctx, []byte(rosterCSV), "roster.csv", "u1")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	manual, err := svc.CreateGroup(ctx, "u2", "G9", "", "", "",
		[]ingest.StudentEntry{{StudentName: "Solo"}})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	_ = manual

	batches := svc.ListBatches(ctx)
	if len(batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(batches))
	}

	// Newest batch first.
	if batches[0].UploadedAt < batches[1].UploadedAt {
		t.Error("batches should be ordered newest first")
	}

	byID := map[string]ingest.BatchSummary{}
	for _, b := range batches {
		byID[b.BatchID] = b
	}

	csvBatch, ok := byID[uploaded.BatchID]
	if !ok {
		t.Fatalf("uploaded batch %q missing from listing", uploaded.BatchID)
	}
	if csvBatch.FileType != ingest.FileTypeCSV {
		t.Errorf("uploaded batch FileType = %s, want CSV", csvBatch.FileType)
	}
	if csvBatch.Records != 3 || csvBatch.Groups != 2 || csvBatch.Students != 3 {
		t.Errorf("uploaded batch = %+v, want 3 records / 2 groups / 3 students", csvBatch)
	}

	for id, b := range byID {
		if id == uploaded.BatchID {
			continue
		}
		if b.FileType != ingest.FileTypeManual {
			t.Errorf("manual batch FileType = %s, want Manual", b.FileType)
		}
		if len(b.Sheets) != 0 {
			t.Errorf("manual batch Sheets = %v, want none", b.Sheets)
		}
	}
}

func TestDeleteBatch(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, []byte(rosterCSV), "roster.csv", "u1")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	deleted, err := svc.DeleteBatch(ctx, res.BatchID)
	if err != nil {
		t.Fatalf("DeleteBatch() error = %v", err)
	}
	if deleted.DeletedCount != 3 {
		t.Errorf("DeletedCount = %d, want 3", deleted.DeletedCount)
	}
	if deleted.Aggregates.Groups != 2 {
		t.Errorf("Aggregates.Groups = %d, want 2", deleted.Aggregates.Groups)
	}

	records, _ := mem.AllRecords(ctx)
	if len(records) != 0 {
		t.Errorf("store holds %d records after deletion, want 0", len(records))
	}

	// Deleting the same batch again is not-found.
	if _, err := svc.DeleteBatch(ctx, res.BatchID); !errors.Is(err, ingest.ErrBatchNotFound) {
		t.Errorf("second DeleteBatch() error = %v, want ErrBatchNotFound", err)
	}
}

func TestDeleteBatch_Unknown(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.DeleteBatch(context.Background(), "2020-01-01T00:00:00Z")
	if !errors.Is(err, ingest.ErrBatchNotFound) {
		t.Fatalf("DeleteBatch() error = %v, want ErrBatchNotFound", err)
	}
}

// blockingStore parks InsertRecords until released, to hold an ingestion
// slot open.
type blockingStore struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) InsertRecords(_ context.Context, records []ingest.AllocationRecord) ([]string, error) {
	s.entered <- struct{}{}
	<-s.release
	return make([]string, len(records)), nil
}

func (s *blockingStore) AllRecords(context.Context) ([]ingest.AllocationRecord, error) {
	return nil, nil
}

func (s *blockingStore) ListRecords(context.Context, int) ([]ingest.AllocationRecord, error) {
	return nil, nil
}

func (s *blockingStore) GetRecord(context.Context, string) (ingest.AllocationRecord, error) {
	return ingest.AllocationRecord{}, ingest.ErrRecordNotFound
}

func (s *blockingStore) UpdateRecord(context.Context, string, map[string]string) error {
	return ingest.ErrRecordNotFound
}

func (s *blockingStore) DeleteBatch(context.Context, string) (int, error) {
	return 0, nil
}

func TestIngest_ConcurrencyLimit(t *testing.T) {
	bs := &blockingStore{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := ingest.NewService(bs, ingest.Options{MaxConcurrent: 1})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Ingest(ctx, []byte(rosterCSV), "roster.csv", "u1")
		done <- err
	}()
	<-bs.entered // first upload now holds the only slot

	_, err := svc.Ingest(ctx, []byte(rosterCSV), "roster.csv", "u2")
	if !errors.Is(err, ingest.ErrTooManyUploads) {
		t.Errorf("second Ingest() error = %v, want ErrTooManyUploads", err)
	}

	close(bs.release)
	if err := <-done; err != nil {
		t.Errorf("first Ingest() error = %v", err)
	}

	// Slot is free again once the first upload completes.
	go func() {
		_, err := svc.Ingest(ctx, []byte(rosterCSV), "roster.csv", "u3")
		done <- err
	}()
	<-bs.entered
	if err := <-done; err != nil {
		t.Errorf("third Ingest() error = %v", err)
	}
}
