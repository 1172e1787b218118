package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnauthorized, "unauthorized"},
		{fmt.Errorf("load: %w", ErrNotFound), "not_found"},
		{ErrAlreadyExists, "already_exists"},
		{errors.Join(ErrInvalidTransition, errors.New("lifecycle")), "invalid_transition"},
		{ErrImmutableRecord, "immutable_record"},
		{ErrNoPattern, "no_pattern"},
		{ErrConflict, "conflict"},
		{context.DeadlineExceeded, "canceled"},
		{&ValidationError{FieldErrors: map[string]string{"title": "required"}}, "validation"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
