// Package console implements the Dagger interactive scripting console: a
// read-evaluate-print loop dropped into the middle of a running program.
// A session captures a snapshot of the host's variable bindings, loads
// helper scripts so registered actions become available, and executes
// operator input against that shared namespace while recording every
// submitted line.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"dagger/internal/interp"
	"dagger/internal/loader"
	"dagger/internal/logger"
	"dagger/internal/registry"
	"dagger/pkg/types"
)

// Prompt is the string printed before each read.
const Prompt = ">>> "

// quitTokens terminate the session when a submitted line matches one of them
// exactly. Matching is case-sensitive.
var quitTokens = []string{":q", "quit", "exit"}

// Reserved literals handled by the loop itself, never recorded as commands.
const (
	literalCache    = "cache"
	literalRegistry = "registry"
)

type state int

const (
	stateRunning state = iota
	stateTerminated
)

// prompter is implemented by line readers that display their own prompt
// (e.g. readline). For plain readers the console prints the prompt itself.
type prompter interface {
	SetPrompt(prompt string)
}

// Options configures a console session. The host hands the console an
// explicit namespace snapshot and a source location instead of the console
// reaching up the call stack.
type Options struct {
	// Globals is the host's variable bindings at the activation point. The
	// console copies them into its own namespace; session mutations are never
	// written back.
	Globals map[string]any

	// Source is the activation call site, reported in the banner and used as
	// the anchor for helper-script discovery. Activate fills a zero Source
	// from its own caller.
	Source types.Source

	// ScriptDir overrides the helper-script directory. Empty means the
	// directory containing the source file; a relative path resolves against
	// that directory.
	ScriptDir string

	// Input supplies operator lines. Defaults to a buffered reader over
	// stdin.
	Input types.LineReader

	// Output receives printed results, renderings and inline errors.
	// Defaults to stdout.
	Output io.Writer

	// Registry is the action table consulted for exact-name matches.
	// Defaults to the process-wide registry.
	Registry *registry.Registry
}

// Console drives one session of the read-evaluate-print loop. It owns its
// namespace copy and command cache exclusively; only the action registry is
// shared process-wide.
type Console struct {
	id     string
	source types.Source
	engine types.Engine
	reg    *registry.Registry
	cache  *CommandCache
	input  types.LineReader
	output io.Writer
	state  state
}

// New constructs a console session from explicit inputs. The namespace is
// seeded from opts.Globals, helper scripts are loaded (once, before the loop
// can start) and their register(...) calls populate the registry.
func New(opts Options) (*Console, error) {
	if opts.Source.IsZero() {
		return nil, errors.New("console: source location is required")
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	input := opts.Input
	if input == nil {
		input = NewBufferedReader(os.Stdin)
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.Global()
	}

	eng, err := interp.New(opts.Globals, output)
	if err != nil {
		return nil, err
	}
	if err := eng.BindRegistrar(func(name string, invoke func() error) {
		reg.Register(name, invoke)
	}); err != nil {
		return nil, err
	}

	c := &Console{
		id:     uuid.New().String(),
		source: opts.Source,
		engine: eng,
		reg:    reg,
		cache:  NewCommandCache(),
		input:  input,
		output: output,
		state:  stateRunning,
	}

	if err := c.loadModules(opts.ScriptDir); err != nil {
		return nil, err
	}

	logger.Debug("Console session created", "session", c.id, "source", c.source.String())
	return c, nil
}

// loadModules runs helper-script loading once per session. When no override
// is given and the default directory (the source file's parent) does not
// exist, loading is skipped rather than failing the session. That is the
// normal case for a compiled binary activated far from its sources.
func (c *Console) loadModules(scriptDir string) error {
	if scriptDir == "" {
		dir := filepath.Dir(c.source.File)
		if _, err := os.Stat(dir); err != nil {
			logger.Debug("No helper-script directory, skipping module loading", "session", c.id, "dir", dir)
			return nil
		}
	}
	return loader.Setup(c.engine, c.source, scriptDir)
}

// Activate starts an interactive session at the current execution point.
// A zero opts.Source is filled from the immediate caller. The call blocks
// until the operator submits a quit token or input reaches EOF; the only
// other way out is an action error, which propagates.
func Activate(opts Options) error {
	if opts.Source.IsZero() {
		if _, file, line, ok := runtime.Caller(1); ok {
			opts.Source = types.Source{File: file, Line: line}
		}
	}
	c, err := New(opts)
	if err != nil {
		return err
	}
	return c.Run()
}

// Run prints the banner and drives the loop until termination. It returns
// nil on a quit token or EOF, a read error from the input source, or the
// error raised by a failing registered action.
func (c *Console) Run() error {
	c.printBanner()

	selfPrompting := false
	if p, ok := c.input.(prompter); ok {
		p.SetPrompt(Prompt)
		selfPrompting = true
	}

	for c.state == stateRunning {
		if !selfPrompting {
			fmt.Fprint(c.output, Prompt)
		}
		line, err := c.input.ReadLine()
		if err != nil {
			c.state = stateTerminated
			if errors.Is(err, io.EOF) {
				logger.Debug("Console input closed", "session", c.id)
				return nil
			}
			return fmt.Errorf("console read failed: %w", err)
		}
		if err := c.handle(line); err != nil {
			c.state = stateTerminated
			return err
		}
	}
	logger.Debug("Console session terminated", "session", c.id, "commands", c.cache.Len())
	return nil
}

// handle processes one submitted line. Reserved literals, action names and
// quit tokens are matched exactly and never recorded; everything else is a
// Command.
func (c *Console) handle(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	for _, token := range quitTokens {
		if line == token {
			c.state = stateTerminated
			return nil
		}
	}

	switch line {
	case literalCache:
		fmt.Fprintln(c.output, c.cache.Render())
		return nil
	case literalRegistry:
		fmt.Fprintln(c.output, c.reg.Render())
		return nil
	}

	if action, ok := c.reg.Lookup(line); ok {
		logger.ActionInvoked(c.id, line)
		// Fail fast: actions are trusted setup code, their errors propagate.
		return action()
	}

	logger.CommandSubmitted(c.id, line)
	cmd := NewCommand(line)
	cmd.Execute(c.engine, c.output)
	c.cache.Append(cmd)
	return nil
}

func (c *Console) printBanner() {
	fmt.Fprintf(c.output, "Dagger debug session on:\n\t%s\nWrite either %s to exit debug mode.\n",
		c.source.String(), strings.Join(quitTokens, ", "))
}

// ID returns the session identifier used in logs.
func (c *Console) ID() string {
	return c.id
}

// Engine exposes the session's script engine, mainly so hosts and tests can
// inspect the namespace after (or between) submissions.
func (c *Console) Engine() types.Engine {
	return c.engine
}

// Cache returns the session transcript.
func (c *Console) Cache() *CommandCache {
	return c.cache
}
