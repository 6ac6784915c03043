package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
)

func TestSourceUnavailable_Classification(t *testing.T) {
	tests := []struct {
		name    string
		cause   error
		code    Code
		message string
	}{
		{"missing", fs.ErrNotExist, CodeSourceUnavailable, "source not found"},
		{"permission", fs.ErrPermission, CodeSourceUnavailable, "source permission denied"},
		{"closed", os.ErrClosed, CodeSourceUnavailable, "source closed"},
		{"deadline", context.DeadlineExceeded, CodeTimeout, "source read timed out"},
		{"canceled", fmt.Errorf("read: %w", context.Canceled), CodeContextCanceled, "source read canceled"},
		{"other", errors.New("boom"), CodeSourceUnavailable, "source unavailable"},
		{"nil", nil, CodeSourceUnavailable, "source unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SourceUnavailable("/tmp/x", tt.cause)
			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %q, got %q", tt.message, err.Message)
			}
			if err.Context["location"] != "/tmp/x" {
				t.Errorf("Expected location context, got %v", err.Context)
			}
			if !IsSourceFailure(err) {
				t.Error("Expected IsSourceFailure to be true")
			}
		})
	}
}

func TestCodepageError_UnwrapAndIs(t *testing.T) {
	cause := fs.ErrNotExist
	err := fmt.Errorf("outer: %w", SourceUnavailable("a.txt", cause))

	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("Expected errors.Is to reach the cause")
	}
	if !errors.Is(err, New(CodeSourceUnavailable, "")) {
		t.Error("Expected errors.Is to match by code")
	}
	if GetCode(err) != CodeSourceUnavailable {
		t.Errorf("Expected %s, got %s", CodeSourceUnavailable, GetCode(err))
	}
	if GetCode(errors.New("plain")) != CodeUnknown {
		t.Error("Expected CodeUnknown for plain errors")
	}
}

func TestCodepageError_ErrorStringIsStable(t *testing.T) {
	err := New(CodeUnknownDetector, "unknown detector").
		WithContext("name", "magic").
		WithContext("available", []string{"ascii"})

	want := "[E201] unknown detector (available=[ascii], name=magic)"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	if err.FormatStack() != "" {
		t.Errorf("Expected no stack for a plain error, got %q", err.FormatStack())
	}
}

func panicky() {
	panic("bad table")
}

func TestRecovered(t *testing.T) {
	var err *CodepageError
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = Recovered("detector panicked", p)
			}
		}()
		panicky()
	}()

	if err == nil {
		t.Fatal("Expected an error from the recovered panic")
	}
	if err.Code != CodeUnknown {
		t.Errorf("Expected %s, got %s", CodeUnknown, err.Code)
	}
	if err.Context["panic"] != "bad table" {
		t.Errorf("Expected panic value in context, got %v", err.Context)
	}
	stack := err.FormatStack()
	if !strings.Contains(stack, "panicky") || !strings.Contains(stack, "errors_test.go") {
		t.Errorf("Expected stack to reach the panicking function, got:\n%s", stack)
	}
	if Stack(fmt.Errorf("detect: %w", err)) != stack {
		t.Error("Expected Stack to find the trace through wrapping")
	}
	if Stack(errors.New("plain")) != "" {
		t.Error("Expected no trace for a plain error")
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, CodeUnknown, "x") != nil {
		t.Error("Expected Wrap(nil) to return nil")
	}
}

func TestMultiError(t *testing.T) {
	var m MultiError
	if m.Combined() != nil {
		t.Error("Expected nil for empty MultiError")
	}

	first := errors.New("first")
	m.Add(first)
	m.Add(nil)
	if m.Combined() != first {
		t.Error("Expected single error to be returned as-is")
	}

	m.Add(errors.New("second"))
	if !m.HasErrors() || len(m.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(m.Errors))
	}
	if !strings.HasPrefix(m.Combined().Error(), "2 errors occurred") {
		t.Errorf("Unexpected message: %s", m.Error())
	}
}
