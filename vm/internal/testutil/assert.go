// Package testutil holds the one assertion helper shared by this module's
// package tests, following the teacher repo's convention of a small local
// assert(t, cond, format, args...) rather than a third-party assertion
// library (see DESIGN.md).
package testutil

import (
	"fmt"
	"testing"
)

// Assert fails the test immediately with a formatted message if cond is false.
func Assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}
