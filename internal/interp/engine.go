// Package interp implements the console's script engine on top of the Goja
// JavaScript runtime. The rest of the console only sees the types.Engine
// interface: evaluate an expression, execute a statement, read and write
// namespace bindings. Everything Goja-specific stays behind that seam.
package interp

import (
	"fmt"
	"io"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"dagger/pkg/types"
)

// Engine wraps a single goja.Runtime. Goja runtimes are not goroutine safe;
// the console loop is single-threaded so one runtime per session is enough.
type Engine struct {
	vm *goja.Runtime
}

var _ types.Engine = (*Engine)(nil)

// writerPrinter routes the script `console` module to the session's output.
type writerPrinter struct {
	w io.Writer
}

func (p *writerPrinter) Log(msg string)   { fmt.Fprintln(p.w, msg) }
func (p *writerPrinter) Warn(msg string)  { fmt.Fprintln(p.w, msg) }
func (p *writerPrinter) Error(msg string) { fmt.Fprintln(p.w, msg) }

// New creates an engine whose global object is seeded with a copy of the
// provided namespace. The copy is deliberate: mutations made by operator
// input persist for the session but are never written back into the host's
// own bindings. console.log output goes to the given writer.
func New(globals map[string]any, output io.Writer) (*Engine, error) {
	vm := goja.New()

	reg := new(require.Registry)
	reg.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(&writerPrinter{w: output}))
	reg.Enable(vm)
	console.Enable(vm)

	for name, value := range globals {
		if err := vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("failed to bind %q into namespace: %w", name, err)
		}
	}

	return &Engine{vm: vm}, nil
}

// Eval evaluates src as a single expression. The source is compiled inside
// parentheses so statements that are not expressions fail at compile time and
// the caller can fall back to Exec.
func (e *Engine) Eval(src string) (types.Value, error) {
	prog, err := goja.Compile("<eval>", "("+src+"\n)", false)
	if err != nil {
		return nil, fmt.Errorf("not an expression: %w", err)
	}
	v, err := e.vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}
	return value{v: v}, nil
}

// Exec executes src as a program against the shared namespace.
func (e *Engine) Exec(src string) error {
	return e.Run("<console>", src)
}

// Run executes src as a program under the given name so errors and stack
// traces point at the right file.
func (e *Engine) Run(name, src string) error {
	_, err := e.vm.RunScript(name, src)
	return err
}

// Set binds a value into the namespace.
func (e *Engine) Set(name string, v any) error {
	return e.vm.Set(name, v)
}

// Get reads a binding back out of the namespace.
func (e *Engine) Get(name string) (any, bool) {
	v := e.vm.GlobalObject().Get(name)
	if v == nil {
		return nil, false
	}
	return v.Export(), true
}

// BindRegistrar installs a global register(name, fn) builtin. Helper scripts
// call it at top level to publish zero-argument actions; record receives the
// name and a wrapper that invokes the script function. register returns fn
// unchanged so scripts can use it as a transparent decoration:
//
//	var greet = register("greet", function () { console.log("hi"); });
func (e *Engine) BindRegistrar(record func(name string, invoke func() error)) error {
	return e.vm.Set("register", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		fnArg := call.Argument(1)
		callable, ok := goja.AssertFunction(fnArg)
		if !ok {
			panic(e.vm.NewTypeError("register: second argument must be a function"))
		}
		record(name, func() error {
			_, err := callable(goja.Undefined())
			return err
		})
		return fnArg
	})
}

// value adapts a goja.Value to types.Value.
type value struct {
	v goja.Value
}

// Empty follows the original console contract: only results that are present
// and truthy get printed.
func (g value) Empty() bool {
	if g.v == nil || goja.IsUndefined(g.v) || goja.IsNull(g.v) {
		return true
	}
	return !g.v.ToBoolean()
}

func (g value) String() string {
	if g.v == nil {
		return ""
	}
	return g.v.String()
}

func (g value) Export() any {
	if g.v == nil {
		return nil
	}
	return g.v.Export()
}
