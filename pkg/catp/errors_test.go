package catp

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCodeOfMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("%w: parent is full", ErrLimitExceeded), CodeLimitExceeded},
		{fmt.Errorf("%w: declared 10, received 9", ErrSizeMismatch), CodeSizeMismatch},
		{ErrNotFound, CodeNotFound},
		{context.DeadlineExceeded, CodeDeadlineExceeded},
		{context.Canceled, CodeCanceled},
		{errors.New("badger: disk corruption"), CodeInternal},
	}

	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.code {
			t.Errorf("CodeOf(%v) = %s, want %s", tc.err, got, tc.code)
		}
	}
}

func TestErrorSurvivesWire(t *testing.T) {
	serverErr := fmt.Errorf("%w: declared 1000 bytes, received 999", ErrSizeMismatch)

	wire := Error{Code: CodeOf(serverErr), Message: serverErr.Error()}
	clientErr := ErrorFromFrame(wire)

	if !errors.Is(clientErr, ErrSizeMismatch) {
		t.Fatalf("sentinel lost across the wire: %v", clientErr)
	}
}

func TestUnknownCodeFallsBackToInternal(t *testing.T) {
	err := ErrorFromFrame(Error{Code: "SOMETHING_NEW", Message: "???"})
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected internal fallback, got %v", err)
	}
}
