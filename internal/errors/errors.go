// Package errors defines the ingestion pipeline error taxonomy and the
// structured HTTP error responses served to collaborators.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Type classifies a pipeline error. Transient types are retryable with
// backoff; permanent types fail the affected archive or row only.
type Type string

const (
	TypeNetwork           Type = "network"
	TypeRateLimited       Type = "rate_limited"
	TypeCorruptArchive    Type = "corrupt_archive"
	TypeUnsupportedFormat Type = "unsupported_format"
	TypeFormat            Type = "format"
	TypeRow               Type = "row"
	TypeValidation        Type = "validation"
	TypeStorage           Type = "storage"
	TypeUnknownSymbol     Type = "unknown_symbol"
	TypePartialSync       Type = "partial_sync"
	TypeCancelled         Type = "cancelled"
)

// Sentinel control-flow conditions. These are not pipeline failures.
var (
	// ErrNoData signals the upstream published nothing for a date
	// (holiday or 404); the day is recorded and skipped.
	ErrNoData = stderrors.New("no data for date")

	// ErrIngestionInProgress rejects a second concurrent ingestion run.
	ErrIngestionInProgress = stderrors.New("an ingestion run is already in progress")
)

// PipelineError is a classified error raised anywhere in the ingestion
// pipeline. Retryable errors may be re-attempted with bounded backoff;
// the rest permanently fail the unit (row, archive, or day) they scope.
type PipelineError struct {
	Type      Type
	Date      time.Time
	Line      int
	Message   string
	Cause     error
	Retryable bool
}

func (e *PipelineError) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	switch {
	case !e.Date.IsZero() && e.Line > 0:
		return fmt.Sprintf("[%s] %s line %d: %s", e.Type, e.Date.Format("2006-01-02"), e.Line, e.Message)
	case !e.Date.IsZero():
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Date.Format("2006-01-02"), e.Message)
	case e.Line > 0:
		return fmt.Sprintf("[%s] line %d: %s", e.Type, e.Line, e.Message)
	default:
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
}

func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsRetryable reports whether err (or anything it wraps) is a transient
// pipeline error worth another attempt.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// TypeOf returns the pipeline error type of err, or "" if err is not a
// PipelineError.
func TypeOf(err error) Type {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Type
	}
	return ""
}

// NewNetworkError wraps a transport failure; transient and retryable.
func NewNetworkError(date time.Time, cause error) *PipelineError {
	return &PipelineError{
		Type:      TypeNetwork,
		Date:      date,
		Message:   "archive source unreachable",
		Cause:     cause,
		Retryable: true,
	}
}

// NewRateLimitedError wraps an upstream throttle response (429);
// transient, retried after backoff.
func NewRateLimitedError(date time.Time) *PipelineError {
	return &PipelineError{
		Type:      TypeRateLimited,
		Date:      date,
		Message:   "rate limited by archive source",
		Retryable: true,
	}
}

// NewCorruptArchiveError marks an archive whose structure or checksum
// does not verify; permanent for that date.
func NewCorruptArchiveError(date time.Time, cause error) *PipelineError {
	return &PipelineError{
		Type:    TypeCorruptArchive,
		Date:    date,
		Message: "archive failed integrity checks",
		Cause:   cause,
	}
}

// NewUnsupportedFormatError marks an archive in a container format the
// extractor does not recognize; permanent for that date.
func NewUnsupportedFormatError(date time.Time, detail string) *PipelineError {
	return &PipelineError{
		Type:    TypeUnsupportedFormat,
		Date:    date,
		Message: detail,
	}
}

// NewFormatError marks a payload that cannot be mapped onto the
// canonical record shape (missing required columns, no header row).
func NewFormatError(message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    TypeFormat,
		Message: message,
		Cause:   cause,
	}
}

// NewRowError marks a single unparseable row. Row errors are counted in
// the day's summary and never abort the rest of the file.
func NewRowError(line int, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    TypeRow,
		Line:    line,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError marks a record that violates a semantic invariant.
func NewValidationError(line int, message string) *PipelineError {
	return &PipelineError{
		Type:    TypeValidation,
		Line:    line,
		Message: message,
	}
}

// NewStorageError wraps a failed storage transaction; retried up to a
// bounded limit before the day is marked failed.
func NewStorageError(date time.Time, cause error) *PipelineError {
	return &PipelineError{
		Type:      TypeStorage,
		Date:      date,
		Message:   "storage transaction failed",
		Cause:     cause,
		Retryable: true,
	}
}

// NewUnknownSymbolError marks a row whose symbol code does not resolve.
// Whether these rows are auto-registered or rejected is a policy choice.
func NewUnknownSymbolError(line int, code string) *PipelineError {
	return &PipelineError{
		Type:    TypeUnknownSymbol,
		Line:    line,
		Message: fmt.Sprintf("unknown symbol %q", code),
	}
}

// NewPartialSyncError marks a directory refresh interrupted before its
// reconciliation transaction committed.
func NewPartialSyncError(cause error) *PipelineError {
	return &PipelineError{
		Type:    TypePartialSync,
		Message: "symbol directory refresh interrupted",
		Cause:   cause,
	}
}
