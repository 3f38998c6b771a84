package ingest

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError_Codes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"empty file", structuralf("empty file uploaded"), "FILE001"},
		{"too large", structuralf("file exceeds 100 byte limit"), "FILE002"},
		{"no header", structuralf("CSV header not detected; ensure the first row contains column names"), "FILE003"},
		{"no data rows", structuralf("no data rows found in %q", "x.csv"), "FILE004"},
		{"bad workbook", structuralf("open spreadsheet: zip: not a valid zip file"), "FILE005"},
		{"missing group", validationf("group_no is required"), "VAL001"},
		{"too few students", validationf("at least one student is required"), "VAL002"},
		{"too many students", validationf("maximum 4 students per group"), "VAL002"},
		{"empty patch", validationf("no valid fields to update"), "VAL003"},
		{"record missing", ErrRecordNotFound, "NF001"},
		{"batch missing", ErrBatchNotFound, "NF002"},
		{"saturated", ErrTooManyUploads, "UPL001"},
		{"canceled", errors.New("context canceled"), "UPL002"},
		{"timeout", errors.New("context deadline exceeded"), "UPL003"},
		{"db down", errors.New("dial tcp: connection refused"), "DB001"},
		{"unknown", errors.New("something odd"), "GEN001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := MapError(tt.err)
			if msg.Code != tt.code {
				t.Errorf("MapError(%v).Code = %s, want %s", tt.err, msg.Code, tt.code)
			}
			if msg.Message == "" {
				t.Error("Message should never be empty")
			}
		})
	}
}

func TestMapError_WrappedErrorsStillMatch(t *testing.T) {
	err := fmt.Errorf("insert batch: %w", errors.New("connection refused"))
	if got := MapError(err).Code; got != "DB001" {
		t.Errorf("Code = %s, want DB001", got)
	}
}

func TestMapError_Nil(t *testing.T) {
	if got := MapError(nil).Code; got != "OK" {
		t.Errorf("Code = %s, want OK", got)
	}
}

func TestErrorKinds(t *testing.T) {
	structural := structuralf("broken file")
	validation := validationf("bad input")

	if !IsStructural(structural) {
		t.Error("IsStructural should match StructuralError")
	}
	if IsStructural(validation) {
		t.Error("IsStructural should not match ValidationError")
	}
	if !IsValidation(validation) {
		t.Error("IsValidation should match ValidationError")
	}

	wrapped := fmt.Errorf("pipeline: %w", structural)
	if !IsStructural(wrapped) {
		t.Error("IsStructural should match wrapped errors")
	}

	if !IsNotFound(ErrRecordNotFound) || !IsNotFound(ErrBatchNotFound) {
		t.Error("IsNotFound should match both not-found sentinels")
	}
	if IsNotFound(structural) {
		t.Error("IsNotFound should not match structural errors")
	}
}
