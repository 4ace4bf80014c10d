package findings

import "errors"

var (
	// ErrNotFound indicates an expected input (report file, config) is absent.
	ErrNotFound = errors.New("not found")
	// ErrReportFormat indicates a structurally invalid scanner report.
	ErrReportFormat = errors.New("invalid report format")
	// ErrValidationRejected indicates generated SQL failed the safety gate.
	ErrValidationRejected = errors.New("query rejected by safety gate")
	// ErrStorage wraps transactional upsert/query failures.
	ErrStorage = errors.New("storage failure")
)
