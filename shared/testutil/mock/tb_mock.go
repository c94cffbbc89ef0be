// Package mock includes useful mocks for testing the assertion helpers.
package mock

import "fmt"

// TBMock exposes enough testing.TB methods for assertions.
type TBMock struct {
	ErrMsg    string
	FatalfMsg string
}

// Errorf records the formatted error message.
func (tb *TBMock) Errorf(format string, args ...interface{}) {
	tb.ErrMsg = fmt.Sprintf(format, args...)
}

// Fatalf records the formatted fatal message.
func (tb *TBMock) Fatalf(format string, args ...interface{}) {
	tb.FatalfMsg = fmt.Sprintf(format, args...)
}
