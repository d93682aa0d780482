package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestPersistence_PassesDomainErrorsThrough(t *testing.T) {
	wrapped := fmt.Errorf("create record: %w", ErrConflict)
	if got := Persistence("insert", wrapped); got != wrapped {
		t.Fatalf("domain error was rewrapped: %v", got)
	}
	if got := Persistence("insert", Invalid("date", "required")); !IsValidation(got) {
		t.Fatalf("validation error lost: %v", got)
	}
	if Persistence("noop", nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestPersistence_WrapsInfrastructureErrors(t *testing.T) {
	base := errors.New("connection refused")
	err := Persistence("insert attendance", base)

	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("want *PersistenceError, got %T", err)
	}
	if pe.Op != "insert attendance" || !errors.Is(err, base) {
		t.Fatalf("unexpected wrap: %+v", pe)
	}
	if again := Persistence("outer", err); again != err {
		t.Fatal("persistence errors must not be double wrapped")
	}
	if !IsPersistence(err) || !IsPersistence(context.DeadlineExceeded) {
		t.Fatal("IsPersistence misclassified")
	}
}

func TestBatchReplayError_Unwrap(t *testing.T) {
	err := &BatchReplayError{BatchID: "b1", Index: 1, LocalID: "l-2", Err: ErrConflict}
	if !errors.Is(err, ErrConflict) {
		t.Fatal("replay error must unwrap to its cause")
	}
	if want := "batch b1: record #2 (l-2): already exists"; err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError(nil, FieldError{Field: "accuracy", Error: "must be >= 0"})
	if err.Error() != "validation failed: accuracy: must be >= 0" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !IsDomain(err) {
		t.Fatal("validation errors are domain errors")
	}
}
