package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/room-booking/internal/logging"
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

func TestServiceLogger_PrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewTextHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	serviceLogger(ctx, baseLogger, "BookingService", "Toggle").Info("hello")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay silent, got %q", base.String())
	}
	if !strings.Contains(scoped.String(), "service=BookingService") || !strings.Contains(scoped.String(), "operation=Toggle") {
		t.Fatalf("expected service attributes, got %q", scoped.String())
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ValidationError{FieldErrors: map[string]string{"date": "bad"}}, "validation"},
		{&LookupError{Op: "x", Err: errors.New("boom")}, "lookup"},
		{fmt.Errorf("wrapped: %w", &PersistenceError{Step: "ensure_date", Err: errors.New("boom")}), "persistence"},
		{&AuthError{Reason: authReasonPINMismatch}, "invalid_credentials"},
		{ErrNotFound, "not_found"},
		{ErrAlreadyExists, "already_exists"},
		{context.Canceled, "canceled"},
		{errors.New("other"), "unexpected"},
	}

	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
