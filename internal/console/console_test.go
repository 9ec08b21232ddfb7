package console

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagger/internal/registry"
	"dagger/pkg/types"
)

// testSource points at a file that does not exist, so sessions built from it
// skip helper-script loading.
var testSource = types.Source{File: "/nonexistent/host/main.go", Line: 42}

// scriptedInput replays a fixed set of lines and then returns EOF, standing
// in for an operator at the keyboard.
func scriptedInput(lines ...string) types.LineReader {
	return NewBufferedReader(strings.NewReader(strings.Join(lines, "\n")))
}

func newTestConsole(t *testing.T, opts Options) (*Console, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	if opts.Source.IsZero() {
		opts.Source = testSource
	}
	if opts.Output == nil {
		opts.Output = out
	}
	if opts.Registry == nil {
		opts.Registry = registry.New()
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c, out
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(Options{Output: &bytes.Buffer{}, Registry: registry.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source location")
}

func TestRun_BannerAndQuit(t *testing.T) {
	c, out := newTestConsole(t, Options{Input: scriptedInput(":q")})
	require.NoError(t, c.Run())

	banner := out.String()
	assert.Contains(t, banner, "Dagger debug session on:")
	assert.Contains(t, banner, "/nonexistent/host/main.go line: 42")
	assert.Contains(t, banner, ":q, quit, exit")
}

func TestRun_AllQuitTokens(t *testing.T) {
	for _, token := range []string{":q", "quit", "exit"} {
		t.Run(token, func(t *testing.T) {
			c, _ := newTestConsole(t, Options{Input: scriptedInput(token, "neverReached")})
			require.NoError(t, c.Run())
			assert.Equal(t, 0, c.Cache().Len())
		})
	}
}

func TestRun_QuitTokensAreCaseSensitive(t *testing.T) {
	// ":Q" is not a quit token; it falls through to command execution and the
	// session ends at EOF instead.
	c, _ := newTestConsole(t, Options{Input: scriptedInput(":Q")})
	require.NoError(t, c.Run())

	require.Equal(t, 1, c.Cache().Len())
	assert.Equal(t, ":Q", c.Cache().Commands()[0].Text())
}

func TestRun_EOFTerminates(t *testing.T) {
	c, _ := newTestConsole(t, Options{Input: scriptedInput("1 + 1")})
	require.NoError(t, c.Run())
	assert.Equal(t, 1, c.Cache().Len())
}

func TestRun_EvaluatesAgainstGlobals(t *testing.T) {
	c, out := newTestConsole(t, Options{
		Globals: map[string]any{"x": 40},
		Input:   scriptedInput("x + 2", "quit"),
	})
	require.NoError(t, c.Run())
	assert.Contains(t, out.String(), "42")
}

func TestRun_StatementThenLookup(t *testing.T) {
	c, out := newTestConsole(t, Options{
		Input: scriptedInput("var greeting = 'hello'", "greeting", "quit"),
	})
	require.NoError(t, c.Run())

	assert.Contains(t, out.String(), "hello")
	require.Equal(t, 2, c.Cache().Len())
	for _, cmd := range c.Cache().Commands() {
		assert.Equal(t, types.ValiditySucceeded, cmd.Validity())
	}
}

func TestRun_FailingCommandContinues(t *testing.T) {
	c, out := newTestConsole(t, Options{
		Input: scriptedInput("bogus.deref()", "1 + 1", "quit"),
	})
	require.NoError(t, c.Run())

	assert.Contains(t, out.String(), "bogus")
	assert.Contains(t, out.String(), "2")

	stored := c.Cache().Commands()
	require.Len(t, stored, 2)
	assert.Equal(t, types.ValidityFailed, stored[0].Validity())
	assert.Equal(t, types.ValiditySucceeded, stored[1].Validity())
}

func TestRun_BlankLinesIgnored(t *testing.T) {
	c, _ := newTestConsole(t, Options{
		Input: scriptedInput("", "   ", "\t", "quit"),
	})
	require.NoError(t, c.Run())
	assert.Equal(t, 0, c.Cache().Len())
}

func TestRun_CacheLiteral(t *testing.T) {
	c, out := newTestConsole(t, Options{
		Input: scriptedInput("1 + 1", "cache", "quit"),
	})
	require.NoError(t, c.Run())

	assert.Contains(t, out.String(), "Currently stored commands:\n\t1 + 1")
	// The literal itself is never recorded.
	assert.Equal(t, 1, c.Cache().Len())
}

func TestRun_RegistryLiteral(t *testing.T) {
	reg := registry.New()
	reg.Register("screenshot", func() error { return nil })

	c, out := newTestConsole(t, Options{
		Registry: reg,
		Input:    scriptedInput("registry", "quit"),
	})
	require.NoError(t, c.Run())

	assert.Contains(t, out.String(), "Registered actions:")
	assert.Contains(t, out.String(), "screenshot")
	assert.Equal(t, 0, c.Cache().Len())
}

func TestRun_ActionInvokedNotRecorded(t *testing.T) {
	calls := 0
	reg := registry.New()
	reg.Register("ping", func() error {
		calls++
		return nil
	})

	c, _ := newTestConsole(t, Options{
		Registry: reg,
		Input:    scriptedInput("ping", "ping", "quit"),
	})
	require.NoError(t, c.Run())

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Cache().Len())
}

func TestRun_ActionErrorPropagates(t *testing.T) {
	boom := errors.New("driver gone")
	reg := registry.New()
	reg.Register("crash", func() error { return boom })

	c, _ := newTestConsole(t, Options{
		Registry: reg,
		Input:    scriptedInput("crash", "neverReached", "quit"),
	})

	err := c.Run()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Cache().Len())
}

func TestRun_ActionNameShadowsExecution(t *testing.T) {
	// A line matching a registered action is dispatched to the registry even
	// when it would also evaluate as script.
	reg := registry.New()
	invoked := false
	reg.Register("x", func() error {
		invoked = true
		return nil
	})

	c, _ := newTestConsole(t, Options{
		Globals:  map[string]any{"x": 7},
		Registry: reg,
		Input:    scriptedInput("x", "quit"),
	})
	require.NoError(t, c.Run())

	assert.True(t, invoked)
	assert.Equal(t, 0, c.Cache().Len())
}

func TestRun_HelperScriptsRegisterActions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "helpers")
	require.NoError(t, os.MkdirAll(dir, 0755))

	script := `
var fired = false;
register("fire", function () { fired = true; });
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.js"), []byte(script), 0644))

	reg := registry.New()
	c, out := newTestConsole(t, Options{
		Registry:  reg,
		ScriptDir: dir,
		Input:     scriptedInput("fire", "fired", "quit"),
	})

	_, ok := reg.Lookup("fire")
	require.True(t, ok, "helper script should have registered the action")

	require.NoError(t, c.Run())

	fired, ok := c.Engine().Get("fired")
	require.True(t, ok)
	assert.Equal(t, true, fired)
	assert.Contains(t, out.String(), "true")
}

func TestNew_SessionIDsAreUnique(t *testing.T) {
	a, _ := newTestConsole(t, Options{Input: scriptedInput()})
	b, _ := newTestConsole(t, Options{Input: scriptedInput()})
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotEmpty(t, a.ID())
}

func TestActivate_FillsSourceFromCaller(t *testing.T) {
	out := &bytes.Buffer{}
	err := Activate(Options{
		Input:    scriptedInput("quit"),
		Output:   out,
		Registry: registry.New(),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "console_test.go")
}
