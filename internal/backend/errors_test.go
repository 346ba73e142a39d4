package backend

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is(t *testing.T) {
	cause := errors.New("no rows")
	err := fmt.Errorf("delete: %w", &Error{Op: "delete task", Code: CodeNotFound, Err: cause})

	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = false")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("errors.Is(err, ErrConflict) = true")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if got := CodeOf(err); got != CodeNotFound {
		t.Errorf("CodeOf = %q, want %q", got, CodeNotFound)
	}
	if got := CodeOf(errors.New("plain")); got != CodeInternal {
		t.Errorf("CodeOf(plain) = %q, want %q", got, CodeInternal)
	}
}

func TestError_Message(t *testing.T) {
	for _, tc := range []struct {
		err  *Error
		want string
	}{
		{&Error{Op: "insert task", Code: CodeInvalid, Message: "bad quadrant"}, "insert task: bad quadrant (invalid)"},
		{&Error{Op: "list tasks", Code: CodeUnavailable, Err: errors.New("dial tcp")}, "list tasks: dial tcp (unavailable)"},
		{&Error{Op: "update section", Code: CodeNotFound}, "update section: not_found (not_found)"},
	} {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}
