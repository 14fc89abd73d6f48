package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a cohesion error code.
type ErrorCode string

const (
	ErrReadinessTimeout ErrorCode = "READINESS_TIMEOUT" // 503
	ErrCatalogLoad      ErrorCode = "CATALOG_LOAD"      // 502
	ErrNoSelection      ErrorCode = "NO_SELECTION"      // 400
	ErrEmptyCategory    ErrorCode = "EMPTY_CATEGORY"    // 422
	ErrEmptyItems       ErrorCode = "EMPTY_ITEMS"       // 422
	ErrNoValidTokens    ErrorCode = "NO_VALID_TOKENS"   // 422
	ErrTransport        ErrorCode = "TRANSPORT_ERROR"   // 502
	ErrService          ErrorCode = "SERVICE_ERROR"     // upstream status
	ErrShapeMismatch    ErrorCode = "SHAPE_MISMATCH"    // 502
	ErrBusy             ErrorCode = "BUSY"              // 409
	ErrHost             ErrorCode = "HOST_ERROR"        // 502
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// Readiness failure classifications.
const (
	ClassWrongContext = "wrong_context"
	ClassGeneric      = "generic"
)

// CohesionError represents a structured error with code, status, and details.
type CohesionError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *CohesionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CohesionError) Unwrap() error {
	return e.Err
}

// NewReadinessTimeout creates a 503 error when the host API never became available.
func NewReadinessTimeout(class string, attempts int, location string) *CohesionError {
	return &CohesionError{
		Code:    ErrReadinessTimeout,
		Status:  503,
		Message: fmt.Sprintf("host API not ready after %d attempts", attempts),
		Details: map[string]any{
			"classification": class,
			"attempts":       attempts,
			"location":       location,
		},
	}
}

// NewCatalogLoad creates a 502 error when field enumeration fails.
func NewCatalogLoad(err error) *CohesionError {
	return &CohesionError{
		Code:    ErrCatalogLoad,
		Status:  502,
		Message: fmt.Sprintf("failed to load fields: %v", err),
		Err:     err,
	}
}

// NewNoSelection creates a 400 error when no row is selected in the host.
func NewNoSelection() *CohesionError {
	return &CohesionError{
		Code:    ErrNoSelection,
		Status:  400,
		Message: "select a record first",
	}
}

// NewEmptyCategory creates a 422 error when the category cell is empty.
func NewEmptyCategory(fieldID string) *CohesionError {
	return &CohesionError{
		Code:    ErrEmptyCategory,
		Status:  422,
		Message: "category field is empty or has an unsupported format",
		Details: map[string]any{"field_id": fieldID},
	}
}

// NewEmptyItems creates a 422 error when the items cell is empty.
func NewEmptyItems(fieldID string) *CohesionError {
	return &CohesionError{
		Code:    ErrEmptyItems,
		Status:  422,
		Message: "items field is empty or has an unsupported format",
		Details: map[string]any{"field_id": fieldID},
	}
}

// NewNoValidTokens creates a 422 error when the items cell holds only delimiters.
func NewNoValidTokens() *CohesionError {
	return &CohesionError{
		Code:    ErrNoValidTokens,
		Status:  422,
		Message: "items field contains no valid words",
	}
}

// NewTransport creates a 502 error when the scoring service could not be reached.
func NewTransport(err error) *CohesionError {
	return &CohesionError{
		Code:    ErrTransport,
		Status:  502,
		Message: fmt.Sprintf("scoring service unreachable: %v", err),
		Err:     err,
	}
}

// NewService creates an error carrying the scoring service's own message and status.
func NewService(status int, msg string) *CohesionError {
	return &CohesionError{
		Code:    ErrService,
		Status:  status,
		Message: msg,
		Details: map[string]any{"upstream_status": status},
	}
}

// NewShapeMismatch creates a 502 error when similarities don't line up with items.
func NewShapeMismatch(items, similarities int) *CohesionError {
	return &CohesionError{
		Code:    ErrShapeMismatch,
		Status:  502,
		Message: fmt.Sprintf("scoring response has %d similarities for %d items", similarities, items),
		Details: map[string]any{"items": items, "similarities": similarities},
	}
}

// NewBusy creates a 409 error when an analysis is already in flight.
func NewBusy() *CohesionError {
	return &CohesionError{
		Code:    ErrBusy,
		Status:  409,
		Message: "an analysis is already running",
	}
}

// NewHost creates a 502 error for host data API failures outside catalog loading.
func NewHost(op string, err error) *CohesionError {
	return &CohesionError{
		Code:    ErrHost,
		Status:  502,
		Message: fmt.Sprintf("host %s failed: %v", op, err),
		Details: map[string]any{"op": op},
		Err:     err,
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CohesionError {
	return &CohesionError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing host object.
func NewNotFound(kind, identifier string) *CohesionError {
	return &CohesionError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CohesionError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CohesionError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// As extracts a *CohesionError from err's chain.
func As(err error) (*CohesionError, bool) {
	var cErr *CohesionError
	if stderrors.As(err, &cErr) {
		return cErr, true
	}
	return nil, false
}

// Is checks if an error is a CohesionError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := As(err); ok {
		return cErr.Code == code
	}
	return false
}
