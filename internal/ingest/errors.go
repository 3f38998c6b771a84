package ingest

// errors.go defines the error taxonomy for ingestion operations and maps
// technical errors to user-friendly messages with support codes.
//
// Error categories:
//
//	Structural (FILE0xx) - the file itself is unusable: empty, unsupported,
//	                       no header row, no data rows. Nothing is persisted.
//	Validation (VAL0xx)  - the request is invalid: missing group_no,
//	                       student count out of range, empty patch.
//	                       Rejected before any write.
//	Not-found            - unknown record or batch identifier.
//	Store (DB0xx)        - persistence failures, surfaced as-is.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRecordNotFound is returned when no record matches the given identifier.
var ErrRecordNotFound = errors.New("record not found")

// ErrBatchNotFound is returned when no records share the given batch_id.
var ErrBatchNotFound = errors.New("batch not found")

// ErrTooManyUploads is returned when the concurrent ingestion limit is hit.
var ErrTooManyUploads = errors.New("too many uploads in progress")

// StructuralError marks a file that cannot be processed at all. The whole
// upload is rejected and nothing is persisted.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string { return e.Msg }

// structuralf builds a StructuralError with a formatted message.
func structuralf(format string, args ...any) error {
	return &StructuralError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError marks invalid caller input, rejected before any write.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsStructural reports whether err is (or wraps) a StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a record or batch not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrBatchNotFound)
}

// UserMessage is a user-friendly error with a code for support reference.
type UserMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// errorMapping pairs error substring patterns with a user message.
// First match wins, so more specific patterns come first.
type errorMapping struct {
	patterns []string
	msg      UserMessage
}

var errorMappings = []errorMapping{
	// File errors
	{
		patterns: []string{"empty file"},
		msg: UserMessage{
			Code:    "FILE001",
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with data rows",
		},
	},
	{
		patterns: []string{"file too large", "exceeds"},
		msg: UserMessage{
			Code:    "FILE002",
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller uploads",
		},
	},
	{
		patterns: []string{"header not detected", "no header"},
		msg: UserMessage{
			Code:    "FILE003",
			Message: "No header row was detected",
			Action:  "Ensure the first row contains column names",
		},
	},
	{
		patterns: []string{"no data rows"},
		msg: UserMessage{
			Code:    "FILE004",
			Message: "The file contains no data rows below the header",
			Action:  "Add at least one data row and upload again",
		},
	},
	{
		patterns: []string{"open spreadsheet", "not a valid zip", "workbook"},
		msg: UserMessage{
			Code:    "FILE005",
			Message: "The spreadsheet could not be read",
			Action:  "Re-save the file as .xlsx and try again",
		},
	},

	// Validation errors
	{
		patterns: []string{"group_no is required"},
		msg: UserMessage{
			Code:    "VAL001",
			Message: "A group number is required",
			Action:  "Provide a non-empty group_no",
		},
	},
	{
		patterns: []string{"at least one student", "maximum 4 students"},
		msg: UserMessage{
			Code:    "VAL002",
			Message: "Groups must have between 1 and 4 students",
		},
	},
	{
		patterns: []string{"no valid fields"},
		msg: UserMessage{
			Code:    "VAL003",
			Message: "The update contains no editable fields",
			Action:  "Only team_name, project_title, guide_name, student_name, group_no and enrollment_no can be edited",
		},
	},

	// Not-found
	{
		patterns: []string{"record not found"},
		msg: UserMessage{
			Code:    "NF001",
			Message: "No record exists with that identifier",
		},
	},
	{
		patterns: []string{"batch not found"},
		msg: UserMessage{
			Code:    "NF002",
			Message: "No batch exists with that identifier",
		},
	},

	// Upload/store errors
	{
		patterns: []string{"too many uploads"},
		msg: UserMessage{
			Code:    "UPL001",
			Message: "Too many uploads are in progress",
			Action:  "Please wait a moment and try again",
		},
	},
	{
		patterns: []string{"context canceled"},
		msg: UserMessage{
			Code:    "UPL002",
			Message: "The request was cancelled",
			Action:  "Please try again",
		},
	},
	{
		patterns: []string{"context deadline exceeded", "timeout"},
		msg: UserMessage{
			Code:    "UPL003",
			Message: "The request timed out",
			Action:  "Try a smaller file or check your connection",
		},
	},
	{
		patterns: []string{"connection refused", "connection reset"},
		msg: UserMessage{
			Code:    "DB001",
			Message: "Unable to reach the database",
			Action:  "Please try again in a few moments",
		},
	},
}

// MapError converts a technical error into a user-friendly message.
// Unmatched errors get a generic message with the GEN001 code; the
// technical detail stays in the server logs only.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{Code: "OK"}
	}

	lower := strings.ToLower(err.Error())
	for _, m := range errorMappings {
		for _, p := range m.patterns {
			if strings.Contains(lower, p) {
				return m.msg
			}
		}
	}

	return UserMessage{
		Code:    "GEN001",
		Message: "An unexpected error occurred",
		Action:  "Please try again or contact support with code GEN001",
	}
}
