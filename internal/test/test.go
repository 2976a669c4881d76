// Package test provides testing utilities for the shader compiler.
//
// This follows esbuild's testing patterns with small assertion helpers
// and a line diff for comparing emitted shader text.
package test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// AssertEqual checks if two values are equal and reports a test error if not.
func AssertEqual[T comparable](t *testing.T, actual, expected T) {
	t.Helper()
	if actual != expected {
		t.Errorf("\nexpected: %v\nactual:   %v", expected, actual)
	}
}

// AssertEqualWithDiff checks if two strings are equal and shows a diff if not.
func AssertEqualWithDiff(t *testing.T, actual, expected string) {
	t.Helper()
	if actual != expected {
		t.Errorf("\n%s", Diff(expected, actual))
	}
}

// AssertErrorIs fails the test unless err matches target with errors.Is.
func AssertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("\nexpected error: %v\nactual:         %v", target, err)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Diff produces a line-by-line diff between two strings, with +/- prefixes
// on lines that differ.
func Diff(expected, actual string) string {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")

	var result strings.Builder
	result.WriteString("--- expected\n+++ actual\n")

	for i := 0; i < max(len(expectedLines), len(actualLines)); i++ {
		var expLine, actLine string
		if i < len(expectedLines) {
			expLine = expectedLines[i]
		}
		if i < len(actualLines) {
			actLine = actualLines[i]
		}

		if expLine == actLine {
			fmt.Fprintf(&result, " %s\n", expLine)
			continue
		}
		if i < len(expectedLines) {
			fmt.Fprintf(&result, "-%s\n", expLine)
		}
		if i < len(actualLines) {
			fmt.Fprintf(&result, "+%s\n", actLine)
		}
	}

	return result.String()
}
