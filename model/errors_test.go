package model

import (
	"fmt"
	"testing"
)

func TestErrorEnvelope_Error(t *testing.T) {
	e := &ErrorEnvelope{Code: ErrNotFound, Message: "field not found"}
	want := "NOT_FOUND: field not found"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorEnvelope_implements_error(t *testing.T) {
	var _ error = (*ErrorEnvelope)(nil)
}

func TestNewNotFoundError(t *testing.T) {
	e := NewNotFoundError("resource missing")
	if e.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", e.Code, ErrNotFound)
	}
	if e.Message != "resource missing" {
		t.Errorf("Message = %q, want %q", e.Message, "resource missing")
	}
}

func TestNewInvalidTransitionError(t *testing.T) {
	e := NewInvalidTransitionError("open -> closed not allowed")
	if e.Code != ErrInvalidTransition {
		t.Errorf("Code = %q, want %q", e.Code, ErrInvalidTransition)
	}
}

func TestNewValidationError(t *testing.T) {
	details := []FieldError{
		{Field: "mappings[0]", Code: CodeIncompatibleTypes, Message: "number cannot be mapped to date"},
	}
	e := NewValidationError(details)
	if e.Code != ErrValidationError {
		t.Errorf("Code = %q, want %q", e.Code, ErrValidationError)
	}
	if len(e.Details) != 1 {
		t.Fatalf("Details length = %d, want 1", len(e.Details))
	}
	if e.Details[0].Code != CodeIncompatibleTypes {
		t.Errorf("Details[0].Code = %q, want %q", e.Details[0].Code, CodeIncompatibleTypes)
	}
}

func TestNewConflictError(t *testing.T) {
	e := NewConflictError("version mismatch")
	if e.Code != ErrConflict {
		t.Errorf("Code = %q, want %q", e.Code, ErrConflict)
	}
}

func TestNewInternalError(t *testing.T) {
	e := NewInternalError()
	if e.Code != ErrInternalError {
		t.Errorf("Code = %q, want %q", e.Code, ErrInternalError)
	}
}

func TestNewStoreUnavailableError(t *testing.T) {
	e := NewStoreUnavailableError()
	if e.Code != ErrStoreUnavailable {
		t.Errorf("Code = %q, want %q", e.Code, ErrStoreUnavailable)
	}
}

func TestErrorCode_wrapped(t *testing.T) {
	err := fmt.Errorf("load field: %w", NewNotFoundError("field f1 not found"))
	if got := ErrorCode(err); got != ErrNotFound {
		t.Errorf("ErrorCode() = %q, want %q", got, ErrNotFound)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound() = false, want true")
	}
}

func TestErrorCode_plain(t *testing.T) {
	if got := ErrorCode(fmt.Errorf("boom")); got != "" {
		t.Errorf("ErrorCode() = %q, want empty", got)
	}
	if IsNotFound(nil) {
		t.Error("IsNotFound(nil) = true, want false")
	}
}
