// Package types defines core interfaces and data structures used throughout
// Dagger. This package contains the fundamental types that decouple the
// console loop from the script engine and from the input source.
package types

import "fmt"

// Source identifies the call site that activated a console session. It is
// reported in the startup banner and anchors helper-script discovery.
type Source struct {
	File string
	Line int
}

// IsZero reports whether the source has been filled in.
func (s Source) IsZero() bool {
	return s.File == "" && s.Line == 0
}

func (s Source) String() string {
	return fmt.Sprintf("%s line: %d", s.File, s.Line)
}

// Validity is the tri-state execution outcome of a submitted command.
// It starts unknown and is set exactly once, after the first execution
// attempt.
type Validity int

const (
	// ValidityUnknown means the command has not been executed yet.
	ValidityUnknown Validity = iota
	// ValiditySucceeded means evaluation or execution completed without error.
	ValiditySucceeded
	// ValidityFailed means both evaluation and execution raised an error.
	ValidityFailed
)

func (v Validity) String() string {
	switch v {
	case ValiditySucceeded:
		return "succeeded"
	case ValidityFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Value is the result of an expression evaluation.
type Value interface {
	// Empty reports whether the value should be suppressed by the console
	// (no result, undefined, null, or otherwise falsy).
	Empty() bool
	// String renders the value for display.
	String() string
	// Export converts the value to a native Go representation.
	Export() any
}

// Engine is the narrow evaluate-or-execute seam between the console loop and
// whatever interprets operator input. The loop tries Eval first so that pure
// lookups print their value, and falls back to Exec for statements that are
// not valid expressions.
type Engine interface {
	// Eval evaluates src as a single expression against the namespace.
	Eval(src string) (Value, error)
	// Exec executes src as a program against the same namespace. Namespace
	// mutations are retained for subsequent calls.
	Exec(src string) error
	// Run executes src as a program under the given name, for error
	// reporting and stack traces. Used to load helper scripts.
	Run(name, src string) error
	// Set binds a value into the namespace.
	Set(name string, value any) error
	// Get reads a binding back out of the namespace.
	Get(name string) (any, bool)
}

// LineReader supplies one line of operator input per call, blocking until a
// line is available. It returns io.EOF when the input source is exhausted.
type LineReader interface {
	ReadLine() (string, error)
}
