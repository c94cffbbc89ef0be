package require

import (
	"errors"
	"strings"
	"testing"

	"github.com/keep-network/tbtc-relayer/shared/testutil/mock"
)

func TestRequire_Equal(t *testing.T) {
	tests := []struct {
		name        string
		expected    interface{}
		actual      interface{}
		msg         []interface{}
		expectedErr string
	}{
		{
			name:     "equal values",
			expected: 42,
			actual:   42,
		},
		{
			name:        "non-equal values",
			expected:    42,
			actual:      41,
			expectedErr: "Values are not equal, want: 42 (int), got: 41 (int)",
		},
		{
			name:        "custom error message",
			expected:    42,
			actual:      41,
			msg:         []interface{}{"Custom values are not equal"},
			expectedErr: "Custom values are not equal, want: 42 (int), got: 41 (int)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := &mock.TBMock{}
			Equal(tb, tt.expected, tt.actual, tt.msg...)
			if !strings.Contains(tb.FatalfMsg, tt.expectedErr) {
				t.Errorf("got: %q, want: %q", tb.FatalfMsg, tt.expectedErr)
			}
		})
	}
}

func TestRequire_NoError(t *testing.T) {
	tb := &mock.TBMock{}
	NoError(tb, nil)
	if tb.FatalfMsg != "" {
		t.Errorf("unexpected fatal: %q", tb.FatalfMsg)
	}

	tb = &mock.TBMock{}
	NoError(tb, errors.New("failed"))
	if !strings.Contains(tb.FatalfMsg, "Unexpected error: failed") {
		t.Errorf("got: %q, want error report", tb.FatalfMsg)
	}
}

func TestRequire_ErrorContains(t *testing.T) {
	tb := &mock.TBMock{}
	ErrorContains(tb, "failed", errors.New("something failed somewhere"))
	if tb.FatalfMsg != "" {
		t.Errorf("unexpected fatal: %q", tb.FatalfMsg)
	}

	tb = &mock.TBMock{}
	ErrorContains(tb, "failed", errors.New("something went wrong"))
	if !strings.Contains(tb.FatalfMsg, "Expected error not returned") {
		t.Errorf("got: %q, want mismatch report", tb.FatalfMsg)
	}
}

func TestRequire_ErrorIs(t *testing.T) {
	sentinel := errors.New("sentinel")

	tb := &mock.TBMock{}
	ErrorIs(tb, sentinel, sentinel)
	if tb.FatalfMsg != "" {
		t.Errorf("unexpected fatal: %q", tb.FatalfMsg)
	}

	tb = &mock.TBMock{}
	ErrorIs(tb, sentinel, errors.New("other"))
	if !strings.Contains(tb.FatalfMsg, "Expected error not returned") {
		t.Errorf("got: %q, want mismatch report", tb.FatalfMsg)
	}
}

func TestRequire_NotNil(t *testing.T) {
	tb := &mock.TBMock{}
	var nilPtr *int
	NotNil(tb, nilPtr)
	if !strings.Contains(tb.FatalfMsg, "Unexpected nil value") {
		t.Errorf("got: %q, want nil value report", tb.FatalfMsg)
	}
}
