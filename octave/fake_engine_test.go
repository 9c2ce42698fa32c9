package octave

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/jonwraymond/octexec/engine"
	"github.com/jonwraymond/octexec/mat"
)

// fakeEngine emulates an interpreter end to end: it parses dispatch
// statements, reads real request payloads with the codec, executes
// against an in-memory workspace, and writes real response payloads.
// Session tests therefore exercise the full exchange path without an
// interpreter binary.
type fakeEngine struct {
	mu        sync.Mutex
	workspace map[string]any // mat.Value, *fakeObject or fakeHandle
	funcs     map[string]fakeFunc
	classes   map[string]fakeFunc // constructors
	paths     []string
	objSeq    int
	closed    bool
	stream    func(line string)

	// failNext makes the next Evaluate report a dead channel.
	failNext bool

	// stallNext makes the next Evaluate block until its context
	// expires.
	stallNext bool

	// stmts records every statement for assertions.
	stmts []string

	// interrupts counts Interrupt calls for assertions.
	interrupts int
}

type fakeFunc func(f *fakeEngine, args []any, nout int) ([]any, error)

type fakeObject struct {
	class string
	props map[string]any
}

type fakeHandle struct {
	name string
}

func newFakeEngine() *fakeEngine {
	f := &fakeEngine{
		workspace: make(map[string]any),
		funcs:     make(map[string]fakeFunc),
		classes:   make(map[string]fakeFunc),
	}
	f.funcs["zeros"] = func(_ *fakeEngine, args []any, _ int) ([]any, error) {
		n := int(args[0].(mat.Array).Real[0])
		return []any{mat.Array{
			Kind: mat.Double,
			Dims: []int{n, n},
			Real: make([]float64, n*n),
		}}, nil
	}
	f.funcs["add"] = func(_ *fakeEngine, args []any, _ int) ([]any, error) {
		a := args[0].(mat.Array).Real[0]
		b := args[1].(mat.Array).Real[0]
		return []any{mat.Scalar(a + b)}, nil
	}
	f.funcs["minmax"] = func(_ *fakeEngine, args []any, _ int) ([]any, error) {
		vals := args[0].(mat.Array).Real
		lo, hi := vals[0], vals[0]
		for _, v := range vals[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		return []any{mat.Scalar(lo), mat.Scalar(hi)}, nil
	}
	f.funcs["fail"] = func(_ *fakeEngine, _ []any, _ int) ([]any, error) {
		return nil, fmt.Errorf("Octave:demo-error|deliberate failure")
	}
	f.funcs["describe"] = func(_ *fakeEngine, args []any, _ int) ([]any, error) {
		h, ok := args[0].(fakeHandle)
		if !ok {
			return nil, fmt.Errorf("|describe wants a handle, got %T", args[0])
		}
		return []any{mat.Text("handle:" + h.name)}, nil
	}
	f.funcs["countargs"] = func(_ *fakeEngine, args []any, _ int) ([]any, error) {
		return []any{mat.Scalar(float64(len(args)))}, nil
	}
	f.funcs["gethandle"] = func(_ *fakeEngine, args []any, _ int) ([]any, error) {
		return []any{fakeHandle{name: string(args[0].(mat.Text))}}, nil
	}
	f.funcs["getcount"] = func(_ *fakeEngine, args []any, _ int) ([]any, error) {
		obj := args[0].(*fakeObject)
		return []any{obj.props["count"]}, nil
	}
	f.funcs["bump"] = func(_ *fakeEngine, args []any, _ int) ([]any, error) {
		obj := args[0].(*fakeObject)
		count := obj.props["count"].(mat.Array).Real[0]
		return []any{&fakeObject{
			class: obj.class,
			props: map[string]any{"count": mat.Scalar(count + 1)},
		}}, nil
	}
	f.classes["counter"] = func(f *fakeEngine, args []any, _ int) ([]any, error) {
		start := mat.Value(mat.Scalar(0))
		if len(args) > 0 {
			start = args[0].(mat.Array)
		}
		return []any{&fakeObject{
			class: "counter",
			props: map[string]any{"count": start},
		}}, nil
	}
	return f
}

func (f *fakeEngine) SetStreamHandler(fn func(line string)) {
	f.mu.Lock()
	f.stream = fn
	f.mu.Unlock()
}

func (f *fakeEngine) Interrupt() error {
	f.mu.Lock()
	f.interrupts++
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) interruptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interrupts
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

var (
	dispatchRe = regexp.MustCompile(`^_octexec\("([^"]+)", "([^"]+)"\);$`)
	existRe    = regexp.MustCompile(`^disp\(exist\("([^"]+)"\)\)$`)
	isobjectRe = regexp.MustCompile(`^disp\(isobject\(([^)]+)\)\)$`)
	addpathRe  = regexp.MustCompile(`^addpath\("([^"]+)"\);$`)
)

func (f *fakeEngine) Evaluate(ctx context.Context, stmt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", engine.ErrClosed
	}
	if f.failNext {
		f.closed = true
		return "", fmt.Errorf("interpreter stream ended: %w", engine.ErrClosed)
	}
	if f.stallNext {
		f.stallNext = false
		<-ctx.Done()
		return "", fmt.Errorf("evaluate: %w", ctx.Err())
	}
	f.stmts = append(f.stmts, stmt)

	if m := addpathRe.FindStringSubmatch(stmt); m != nil {
		f.paths = append(f.paths, m[1])
		return "", nil
	}
	if m := existRe.FindStringSubmatch(stmt); m != nil {
		return strconv.Itoa(f.exist(m[1])), nil
	}
	if m := isobjectRe.FindStringSubmatch(stmt); m != nil {
		if _, ok := f.workspace[m[1]].(*fakeObject); ok {
			return "1", nil
		}
		return "0", nil
	}
	if m := dispatchRe.FindStringSubmatch(stmt); m != nil {
		f.dispatch(m[1], m[2])
		return "", nil
	}
	return "", fmt.Errorf("fake engine: unsupported statement %q", stmt)
}

func (f *fakeEngine) exist(name string) int {
	if _, ok := f.workspace[name]; ok {
		return 1
	}
	if _, ok := f.classes[name]; ok {
		return 103
	}
	switch name {
	case "assignin", "evalin", "subsref", "subsasgn", "help", "type":
		return 5
	}
	if _, ok := f.funcs[name]; ok {
		return 2
	}
	return 0
}

// dispatch emulates the interpreter-side request handler, including
// its error capture: failures become an err struct in the response.
func (f *fakeEngine) dispatch(reqFile, respFile string) {
	result, err := f.run(reqFile)

	resp := []mat.NamedValue{
		{Name: "result", Value: mat.Empty()},
		{Name: "err", Value: mat.Value(mat.Empty())},
	}
	if err != nil {
		id, msg, _ := strings.Cut(err.Error(), "|")
		var st mat.Struct
		st.Set("message", mat.Text(msg))
		st.Set("identifier", mat.Text(id))
		resp[1].Value = st
	} else if result != nil {
		resp[0].Value = result
	}
	if werr := mat.Write(respFile, resp, mat.DefaultOptions()); werr != nil {
		panic(werr)
	}
}

func (f *fakeEngine) run(reqFile string) (mat.Value, error) {
	vars, err := mat.Read(reqFile)
	if err != nil {
		return nil, fmt.Errorf("|unreadable request: %v", err)
	}
	req := make(map[string]mat.Value, len(vars))
	for _, v := range vars {
		req[v.Name] = v.Value
	}

	funcName := string(req["func_name"].(mat.Text))
	nout := int(req["nout"].(mat.Array).Real[0])

	args := make([]any, 0)
	if cell, ok := req["func_args"].(mat.Cell); ok {
		for _, v := range cell {
			args = append(args, v)
		}
	}
	if refs, ok := req["ref_indices"].(mat.Array); ok {
		for _, idx := range refs.Real {
			i := int(idx) - 1
			addr := string(args[i].(mat.Text))
			v, err := f.evalAddress(addr)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
	}

	fn, err := f.lookup(funcName)
	if err != nil {
		return nil, err
	}
	outputs, err := fn(f, args, nout)
	if err != nil {
		return nil, err
	}

	var result any
	switch {
	case nout == 0 || len(outputs) == 0:
		result = nil
	case nout == 1:
		result = outputs[0]
	default:
		if len(outputs) < nout {
			return nil, fmt.Errorf("|%s returned %d outputs, want %d", funcName, len(outputs), nout)
		}
		cell := make([]any, nout)
		copy(cell, outputs)
		result = cell
	}

	if st, ok := req["store_as"].(mat.Text); ok {
		f.workspace[string(st)] = result
		result = nil
	}
	if result == nil {
		return nil, nil
	}
	return f.encode(result), nil
}

func (f *fakeEngine) lookup(name string) (fakeFunc, error) {
	switch name {
	case "assignin":
		return (*fakeEngine).builtinAssignin, nil
	case "evalin":
		return (*fakeEngine).builtinEvalin, nil
	case "subsref":
		return (*fakeEngine).builtinSubsref, nil
	case "subsasgn":
		return (*fakeEngine).builtinSubsasgn, nil
	case "help":
		return func(f *fakeEngine, args []any, _ int) ([]any, error) {
			name := string(args[0].(mat.Text))
			switch f.exist(name) {
			case 2, 3, 5, 103:
				return []any{mat.Text("help for " + name)}, nil
			}
			return nil, fmt.Errorf("Octave:help|no help found for '%s'", name)
		}, nil
	case "type":
		return func(_ *fakeEngine, args []any, _ int) ([]any, error) {
			return []any{mat.Cell{mat.Text("source of " + string(args[0].(mat.Text)))}}, nil
		}, nil
	}
	if fn, ok := f.funcs[name]; ok {
		return fn, nil
	}
	if fn, ok := f.classes[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("Octave:undefined-function|'%s' undefined", name)
}

func (f *fakeEngine) builtinAssignin(args []any, _ int) ([]any, error) {
	name := string(args[1].(mat.Text))
	f.workspace[name] = args[2]
	return nil, nil
}

func (f *fakeEngine) builtinEvalin(args []any, nout int) ([]any, error) {
	expr := string(args[1].(mat.Text))

	if expr == "clear ans" {
		delete(f.workspace, "ans")
		return nil, nil
	}

	if m := regexp.MustCompile(`^class\(([A-Za-z_][A-Za-z0-9_]*)\)$`).FindStringSubmatch(expr); m != nil {
		if obj, ok := f.workspace[m[1]].(*fakeObject); ok {
			return []any{mat.Text(obj.class)}, nil
		}
		return []any{mat.Text("double")}, nil
	}
	if m := regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*) = ([0-9.]+)$`).FindStringSubmatch(expr); m != nil {
		v, _ := strconv.ParseFloat(m[2], 64)
		f.workspace[m[1]] = mat.Scalar(v)
		return nil, nil
	}
	if identPattern.MatchString(expr) {
		v, ok := f.workspace[expr]
		if !ok {
			return nil, fmt.Errorf("Octave:undefined-function|'%s' undefined", expr)
		}
		if nout == 0 {
			// An expression statement leaves its value in ans.
			f.workspace["ans"] = v
			return nil, nil
		}
		return []any{v}, nil
	}
	return nil, fmt.Errorf("|fake evalin: unsupported expression %q", expr)
}

func (f *fakeEngine) builtinSubsref(args []any, _ int) ([]any, error) {
	obj, ok := args[0].(*fakeObject)
	if !ok {
		return nil, fmt.Errorf("|subsref on %T", args[0])
	}
	prop := subsField(args[1])
	v, ok := obj.props[prop]
	if !ok {
		return nil, fmt.Errorf("Octave:undefined-property|no property '%s'", prop)
	}
	return []any{v}, nil
}

func (f *fakeEngine) builtinSubsasgn(args []any, _ int) ([]any, error) {
	obj, ok := args[0].(*fakeObject)
	if !ok {
		return nil, fmt.Errorf("|subsasgn on %T", args[0])
	}
	prop := subsField(args[1])
	props := make(map[string]any, len(obj.props)+1)
	for k, v := range obj.props {
		props[k] = v
	}
	props[prop] = args[2]
	return []any{&fakeObject{class: obj.class, props: props}}, nil
}

func subsField(v any) string {
	st := v.(mat.Struct)
	subs, _ := st.Get("subs")
	return string(subs.(mat.Text))
}

// evalAddress resolves a proxy address the way evalin('base', ...)
// would.
func (f *fakeEngine) evalAddress(addr string) (any, error) {
	if strings.HasPrefix(addr, "@") {
		return fakeHandle{name: strings.TrimPrefix(addr, "@")}, nil
	}
	v, ok := f.workspace[addr]
	if !ok {
		return nil, fmt.Errorf("Octave:undefined-function|'%s' undefined", addr)
	}
	return v, nil
}

// encode mirrors the dispatcher's response encoding: objects and
// handles become workspace references, containers recurse.
func (f *fakeEngine) encode(v any) mat.Value {
	switch tv := v.(type) {
	case *fakeObject:
		f.objSeq++
		name := fmt.Sprintf("_octexec_obj_%d", f.objSeq)
		f.workspace[name] = tv
		var st mat.Struct
		st.Set("class__", mat.Text(tv.class))
		st.Set("address__", mat.Text(name))
		return st
	case fakeHandle:
		var st mat.Struct
		st.Set("class__", mat.Text("function_handle"))
		st.Set("address__", mat.Text("@"+tv.name))
		return st
	case []any:
		cell := make(mat.Cell, len(tv))
		for i, e := range tv {
			cell[i] = f.encode(e)
		}
		return cell
	case mat.Cell:
		cell := make(mat.Cell, len(tv))
		for i, e := range tv {
			cell[i] = f.encode(e)
		}
		return cell
	case mat.Value:
		return tv
	default:
		panic(fmt.Sprintf("fake engine: cannot encode %T", v))
	}
}
