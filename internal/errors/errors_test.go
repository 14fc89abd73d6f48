package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCohesionError_Error(t *testing.T) {
	err := &CohesionError{
		Code:    ErrNoSelection,
		Status:  400,
		Message: "select a record first",
	}

	expected := "NO_SELECTION: select a record first"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewReadinessTimeout(t *testing.T) {
	err := NewReadinessTimeout(ClassWrongContext, 300, "https://example.feishu.cn/wiki/abc")

	if err.Code != ErrReadinessTimeout {
		t.Errorf("Code = %q, want %q", err.Code, ErrReadinessTimeout)
	}
	if err.Status != 503 {
		t.Errorf("Status = %d, want 503", err.Status)
	}
	if err.Details["classification"] != ClassWrongContext {
		t.Errorf("Details[classification] = %v, want %q", err.Details["classification"], ClassWrongContext)
	}
	if err.Details["attempts"] != 300 {
		t.Errorf("Details[attempts] = %v, want 300", err.Details["attempts"])
	}
}

func TestNewCatalogLoad_Unwraps(t *testing.T) {
	cause := fmt.Errorf("table gone")
	err := NewCatalogLoad(cause)

	if err.Code != ErrCatalogLoad {
		t.Errorf("Code = %q, want %q", err.Code, ErrCatalogLoad)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected CatalogLoad to unwrap to its cause")
	}
}

func TestNewService(t *testing.T) {
	err := NewService(400, "category must not be empty")

	if err.Code != ErrService {
		t.Errorf("Code = %q, want %q", err.Code, ErrService)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "category must not be empty" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewShapeMismatch(t *testing.T) {
	err := NewShapeMismatch(3, 2)

	if err.Code != ErrShapeMismatch {
		t.Errorf("Code = %q, want %q", err.Code, ErrShapeMismatch)
	}
	if err.Details["items"] != 3 || err.Details["similarities"] != 2 {
		t.Errorf("Details = %v", err.Details)
	}
}

func TestNewInternal_NilErr(t *testing.T) {
	err := NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNoValidTokens(), ErrNoValidTokens, true},
		{"different code", NewNoValidTokens(), ErrEmptyItems, false},
		{"wrapped", fmt.Errorf("analyze: %w", NewBusy()), ErrBusy, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
