// Package store provides implementations of the ingest.Store interface:
// a PostgreSQL store for production and an in-memory store for tests and
// local development.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Nikhilraj155/project-managment/internal/ingest"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// recordColumns lists the allocation_records columns in insert order.
var recordColumns = []string{
	"id", "batch_id", "uploaded_by", "uploaded_at",
	"group_no", "student_name", "enrollment_no", "guide_name",
	"title_1", "title_2", "title_3", "sheet_name",
	"team_leader", "leader_enrollment", "section",
	"member_1", "member_1_enrollment",
	"member_2", "member_2_enrollment",
	"member_3", "member_3_enrollment",
	"team_name",
}

// updatableColumns is the set of columns UpdateRecord may touch. Anything
// else in the patch map is rejected to keep SET clauses parameter-safe.
var updatableColumns = map[string]bool{
	"team_name":     true,
	"title_1":       true,
	"guide_name":    true,
	"student_name":  true,
	"group_no":      true,
	"enrollment_no": true,
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS allocation_records (
	id                  UUID PRIMARY KEY,
	batch_id            TEXT NOT NULL,
	uploaded_by         TEXT NOT NULL DEFAULT '',
	uploaded_at         TEXT NOT NULL,
	group_no            TEXT NOT NULL DEFAULT '',
	student_name        TEXT NOT NULL DEFAULT '',
	enrollment_no       TEXT NOT NULL DEFAULT '',
	guide_name          TEXT NOT NULL DEFAULT '',
	title_1             TEXT NOT NULL DEFAULT '',
	title_2             TEXT NOT NULL DEFAULT '',
	title_3             TEXT NOT NULL DEFAULT '',
	sheet_name          TEXT NOT NULL DEFAULT '',
	team_leader         TEXT NOT NULL DEFAULT '',
	leader_enrollment   TEXT NOT NULL DEFAULT '',
	section             TEXT NOT NULL DEFAULT '',
	member_1            TEXT NOT NULL DEFAULT '',
	member_1_enrollment TEXT NOT NULL DEFAULT '',
	member_2            TEXT NOT NULL DEFAULT '',
	member_2_enrollment TEXT NOT NULL DEFAULT '',
	member_3            TEXT NOT NULL DEFAULT '',
	member_3_enrollment TEXT NOT NULL DEFAULT '',
	team_name           TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_allocation_records_batch_id
	ON allocation_records (batch_id);
CREATE INDEX IF NOT EXISTS idx_allocation_records_uploaded_at
	ON allocation_records (uploaded_at DESC);
`

// PG is the PostgreSQL-backed record store.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG creates a Postgres store and ensures the schema exists.
func NewPG(ctx context.Context, pool *pgxpool.Pool) (*PG, error) {
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PG{pool: pool}, nil
}

// Ping verifies database connectivity.
func (s *PG) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InsertRecords persists all records in one transaction using the COPY
// protocol, assigning UUID identifiers. All records land or none do.
func (s *PG) InsertRecords(ctx context.Context, records []ingest.AllocationRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, len(records))
	rows := make([][]any, len(records))
	for i, r := range records {
		ids[i] = uuid.New().String()
		rows[i] = []any{
			ids[i], r.BatchID, r.UploadedBy, r.UploadedAt,
			r.GroupNo, r.StudentName, r.EnrollmentNo, r.GuideName,
			r.Title1, r.Title2, r.Title3, r.SheetName,
			r.TeamLeader, r.LeaderEnrollment, r.Section,
			r.Member1, r.Member1Enrollment,
			r.Member2, r.Member2Enrollment,
			r.Member3, r.Member3Enrollment,
			r.TeamName,
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"allocation_records"},
		recordColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return nil, fmt.Errorf("copy records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

const selectColumns = `id, batch_id, uploaded_by, uploaded_at,
	group_no, student_name, enrollment_no, guide_name,
	title_1, title_2, title_3, sheet_name,
	team_leader, leader_enrollment, section,
	member_1, member_1_enrollment,
	member_2, member_2_enrollment,
	member_3, member_3_enrollment,
	team_name`

func scanRecord(row pgx.Row) (ingest.AllocationRecord, error) {
	var r ingest.AllocationRecord
	err := row.Scan(
		&r.ID, &r.BatchID, &r.UploadedBy, &r.UploadedAt,
		&r.GroupNo, &r.StudentName, &r.EnrollmentNo, &r.GuideName,
		&r.Title1, &r.Title2, &r.Title3, &r.SheetName,
		&r.TeamLeader, &r.LeaderEnrollment, &r.Section,
		&r.Member1, &r.Member1Enrollment,
		&r.Member2, &r.Member2Enrollment,
		&r.Member3, &r.Member3Enrollment,
		&r.TeamName,
	)
	return r, err
}

func (s *PG) queryRecords(ctx context.Context, sql string, args ...any) ([]ingest.AllocationRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ingest.AllocationRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllRecords returns every stored record.
func (s *PG) AllRecords(ctx context.Context) ([]ingest.AllocationRecord, error) {
	return s.queryRecords(ctx, "SELECT "+selectColumns+" FROM allocation_records")
}

// ListRecords returns up to limit records, newest upload first.
func (s *PG) ListRecords(ctx context.Context, limit int) ([]ingest.AllocationRecord, error) {
	return s.queryRecords(ctx,
		"SELECT "+selectColumns+" FROM allocation_records ORDER BY uploaded_at DESC LIMIT $1",
		limit,
	)
}

// GetRecord fetches one record by identifier.
func (s *PG) GetRecord(ctx context.Context, id string) (ingest.AllocationRecord, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+selectColumns+" FROM allocation_records WHERE id = $1",
		id,
	)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.AllocationRecord{}, ingest.ErrRecordNotFound
	}
	return r, err
}

// UpdateRecord applies a partial update to one record. Unknown columns in
// the patch map are an error here: filtering happens in the service.
func (s *PG) UpdateRecord(ctx context.Context, id string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	set := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for col, val := range fields {
		if !updatableColumns[col] {
			return fmt.Errorf("column %q is not updatable", col)
		}
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, id)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("UPDATE allocation_records SET %s WHERE id = $%d",
			strings.Join(set, ", "), len(args)),
		args...,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ingest.ErrRecordNotFound
	}
	return nil
}

// DeleteBatch removes every record sharing batch_id in one statement.
func (s *PG) DeleteBatch(ctx context.Context, batchID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM allocation_records WHERE batch_id = $1",
		batchID,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
