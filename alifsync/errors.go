package alifsync

import (
	"errors"
	"fmt"
	"time"
)

// ErrMainAccountNotFound is returned whenever an operation needs the MAIN
// merchant account and none exists yet.
var ErrMainAccountNotFound = errors.New("main merchant account not found; create it first via POST /accounts")

// AuthError means no usable credential path remains: the password grant
// (the final fallback) failed or produced no token.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("auth failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ReportError wraps a malformed or failed external report API response.
type ReportError struct {
	Op  string
	Err error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report %s failed: %v", e.Op, e.Err)
}

func (e *ReportError) Unwrap() error { return e.Err }

// ReportFailedError means the platform explicitly reported the report as
// FAILED. Retrying the same request will not help.
type ReportFailedError struct {
	ReportId string
}

func (e *ReportFailedError) Error() string {
	return fmt.Sprintf("report %s reported FAILED by the platform", e.ReportId)
}

// ReportTimeoutError means the wait loop exhausted its budget before the
// platform reached a terminal status. Distinct from ReportFailedError so
// callers can decide to retry later.
type ReportTimeoutError struct {
	ReportId string
	Waited   time.Duration
}

func (e *ReportTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for report %s after %s", e.ReportId, e.Waited)
}

// SchemaError means the export does not have the expected column layout.
type SchemaError struct {
	Expected int
	Actual   int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected export layout: want %d columns (row no + 19 fields), got %d", e.Expected, e.Actual)
}
