package console

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"dagger/pkg/types"
)

// ErrPersistUnsupported is returned by CommandCache.Persist. History
// persistence is an explicit non-goal; the stub fails loudly rather than
// appearing to work.
var ErrPersistUnsupported = errors.New("command history persistence is not supported")

// Command is a single submitted line of operator input plus its execution
// outcome. The text is immutable; validity starts unknown and is set exactly
// once, after the first execution attempt.
type Command struct {
	text     string
	validity types.Validity
}

// NewCommand wraps a submitted line into an unexecuted Command.
func NewCommand(text string) *Command {
	return &Command{text: text, validity: types.ValidityUnknown}
}

// Text returns the submitted line.
func (c *Command) Text() string {
	return c.text
}

// Validity returns the command's execution outcome.
func (c *Command) Validity() types.Validity {
	return c.validity
}

// Execute runs the two-tier evaluate-then-execute strategy against the
// engine. Expression evaluation is tried first so pure lookups print their
// value; on any evaluation error the line is re-run as a statement, which
// accommodates assignments and multi-clause input. Only when both tiers fail
// is the command marked failed, with the execution error printed inline.
// Execute never aborts the session.
func (c *Command) Execute(eng types.Engine, out io.Writer) {
	if c.validity != types.ValidityUnknown {
		return
	}

	v, err := eng.Eval(c.text)
	if err == nil {
		if !v.Empty() {
			fmt.Fprintln(out, v.String())
		}
		c.validity = types.ValiditySucceeded
		return
	}

	if execErr := eng.Exec(c.text); execErr != nil {
		c.validity = types.ValidityFailed
		fmt.Fprintln(out, execErr.Error())
		return
	}
	c.validity = types.ValiditySucceeded
}

func (c *Command) String() string {
	return c.text
}

// CommandCache is the session transcript: an append-only, order-preserving
// log of every Command submitted to the console. Entries are never removed
// or reordered during a session.
type CommandCache struct {
	commands []*Command
}

// NewCommandCache creates an empty command cache.
func NewCommandCache() *CommandCache {
	return &CommandCache{}
}

// Append adds a command to the end of the log.
func (cc *CommandCache) Append(cmd *Command) {
	cc.commands = append(cc.commands, cmd)
}

// Len returns the number of stored commands.
func (cc *CommandCache) Len() int {
	return len(cc.commands)
}

// Commands returns the stored commands in submission order. The returned
// slice is a copy and can be safely modified.
func (cc *CommandCache) Commands() []*Command {
	out := make([]*Command, len(cc.commands))
	copy(out, cc.commands)
	return out
}

// Render produces a human-readable listing of every stored command, one per
// line with a tab prefix, in submission order.
func (cc *CommandCache) Render() string {
	var sb strings.Builder
	sb.WriteString("Currently stored commands:")
	for _, cmd := range cc.commands {
		sb.WriteString("\n\t")
		sb.WriteString(cmd.Text())
	}
	return sb.String()
}

// Clear resets the log to empty.
func (cc *CommandCache) Clear() {
	cc.commands = nil
}

// Persist is a placeholder for writing the transcript to disk. It always
// returns ErrPersistUnsupported.
func (cc *CommandCache) Persist(_ string) error {
	return ErrPersistUnsupported
}
