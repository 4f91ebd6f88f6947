// Package apperror provides tests for the custom error types and utility functions.
package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TestError_Error verifies that the Error() method returns the correct string format.
func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without field",
			err:      New(CodeInvalidGraph, "graph is invalid"),
			expected: "[INVALID_GRAPH] graph is invalid",
		},
		{
			name:     "with field",
			err:      NewWithField(CodeInvalidSource, "source out of range", "source"),
			expected: "[INVALID_SOURCE] source out of range (field: source)",
		},
		{
			name:     "with cause",
			err:      Wrap(errors.New("line 3: malformed edge"), CodeMalformedInput, "a.in"),
			expected: "[MALFORMED_INPUT] a.in: line 3: malformed edge",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// TestError_Unwrap verifies that the Unwrap() method correctly returns the underlying cause.
func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, CodeInternal, "wrapped error")

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should see the cause through Unwrap")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeMalformedInput, "line %d: bad token %q", 7, "x")
	if err.Message != `line 7: bad token "x"` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Severity != SeverityError {
		t.Errorf("Severity = %v, want error", err.Severity)
	}
}

func TestNewCritical(t *testing.T) {
	err := NewCritical(CodeCapacityOverflow, "flow exceeds capacity")
	if err.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want critical", err.Severity)
	}
	if !IsCritical(err) {
		t.Error("IsCritical() = false, want true")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeFlowViolation, "bad arc").
		WithDetails("arc", 3).
		WithDetails("flow", int64(-1))

	if err.Details["arc"] != 3 {
		t.Errorf("Details[arc] = %v, want 3", err.Details["arc"])
	}
	if len(err.Details) != 2 {
		t.Errorf("Details = %v, want 2 entries", err.Details)
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("context: %w", New(CodeFlowMismatch, "disagree"))

	if !Is(err, CodeFlowMismatch) {
		t.Error("Is() should find the code through a wrapped chain")
	}
	if Is(err, CodeInternal) {
		t.Error("Is() matched the wrong code")
	}
	if Is(errors.New("plain"), CodeFlowMismatch) {
		t.Error("Is() matched a plain error")
	}
}

func TestCode(t *testing.T) {
	if got := Code(New(CodeSelfLoop, "loop")); got != CodeSelfLoop {
		t.Errorf("Code() = %v, want %v", got, CodeSelfLoop)
	}
	if got := Code(errors.New("plain")); got != CodeInternal {
		t.Errorf("Code() = %v, want %v", got, CodeInternal)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"malformed input", New(CodeMalformedInput, "bad"), 2},
		{"mismatch", fmt.Errorf("wrap: %w", New(CodeFlowMismatch, "x")), 3},
		{"critical", NewCritical(CodeNegativeFlow, "x"), 70},
		{"ordinary", New(CodeNotFound, "x"), 1},
		{"not configured", Newf(CodeNotConfigured, "%s requires %s", "history", "database.enabled"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInvariant_PanicsWithCriticalError(t *testing.T) {
	defer func() {
		r := recover()
		appErr, ok := r.(*Error)
		if !ok {
			t.Fatalf("panic value = %T, want *Error", r)
		}
		if appErr.Code != CodeRelabelNotIncreasing {
			t.Errorf("Code = %v", appErr.Code)
		}
		if appErr.Message != "node 4: 3 -> 3" {
			t.Errorf("Message = %q", appErr.Message)
		}
	}()

	Invariant(CodeRelabelNotIncreasing, "node %d: %d -> %d", 4, 3, 3)
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		Invariant(CodeExcessNotDrained, "node 2 keeps excess")
		return nil
	}

	err := run()
	if !Is(err, CodeExcessNotDrained) {
		t.Fatalf("Recover() error = %v", err)
	}
}

func TestRecover_RepanicsForeignValues(t *testing.T) {
	defer func() {
		if r := recover(); r != "foreign" {
			t.Errorf("recover() = %v, want foreign", r)
		}
	}()

	func() {
		var err error
		defer Recover(&err)
		panic("foreign")
	}()
}

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		s    Severity
		want string
	}{
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	if v.HasErrors() || v.First() != nil {
		t.Fatal("new collection should be empty")
	}

	v.Add(&Error{Code: CodeConservationViolation, Message: "node 3 unbalanced", Severity: SeverityWarning})
	if v.HasErrors() {
		t.Error("warnings must not count as errors")
	}

	v.Add(New(CodeCapacityOverflow, "arc 1"))
	v.Add(New(CodeNegativeFlow, "arc 2"))

	if !v.HasErrors() {
		t.Fatal("HasErrors() = false")
	}
	if got := Code(v.First()); got != CodeCapacityOverflow {
		t.Errorf("First() code = %v", got)
	}
	if msgs := v.ErrorMessages(); len(msgs) != 2 {
		t.Errorf("ErrorMessages() len = %d, want 2", len(msgs))
	}
}
