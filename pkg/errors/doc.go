// Package errors provides structured error types for lain.
//
// Every failure that reaches the command line is rendered through
// StructuredError, which carries a code for programmatic handling, a
// human-readable message, the underlying cause and an optional hint telling
// the user how to fix the problem.
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodeMissingValue,
//	    "environment variable DB_PASSWORD is missing",
//	    nil,
//	    map[string]any{"cluster": "test"},
//	).WithHint("export it before running lain")
package errors
