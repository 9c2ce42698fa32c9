package octave

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/octexec/mat"
)

// Ptr is a handle to an interpreter-side entity. Passing a Ptr as a
// call argument substitutes the referenced entity instead of a copied
// value.
type Ptr interface {
	// Name is the entity's display name.
	Name() string

	// Address is the base-workspace expression that yields the entity.
	Address() string
}

// FunctionPtr is a handle to a named interpreter function.
type FunctionPtr struct {
	session *Session
	name    string
}

func (p *FunctionPtr) Name() string    { return p.name }
func (p *FunctionPtr) Address() string { return "@" + p.name }

// Call invokes the function.
func (p *FunctionPtr) Call(ctx context.Context, args []any, opts ...CallOption) (any, error) {
	return p.session.Call(ctx, p.name, args, opts...)
}

// VariablePtr is a handle to a base-workspace variable. The value is
// fetched on demand, never cached.
type VariablePtr struct {
	session *Session
	name    string
}

func (p *VariablePtr) Name() string    { return p.name }
func (p *VariablePtr) Address() string { return p.name }

// Value transfers the variable's current value to the host.
func (p *VariablePtr) Value(ctx context.Context) (any, error) {
	return p.session.Call(ctx, "evalin", []any{"base", p.name}, Nout(1))
}

// Set replaces the variable's value.
func (p *VariablePtr) Set(ctx context.Context, value any) error {
	_, err := p.session.Call(ctx, "assignin", []any{"base", p.name, value}, Nout(0))
	return err
}

// ClassPtr is a handle to an interpreter-side class.
type ClassPtr struct {
	session *Session
	name    string
}

func (p *ClassPtr) Name() string    { return p.name }
func (p *ClassPtr) Address() string { return "@" + p.name }

// New constructs an instance of the class.
func (p *ClassPtr) New(ctx context.Context, args []any) (*InstancePtr, error) {
	v, err := p.session.Call(ctx, p.name, args, Nout(1))
	if err != nil {
		return nil, err
	}
	inst, ok := v.(*InstancePtr)
	if !ok {
		return nil, protocolErr("constructor %s returned %T, not an object", p.name, v)
	}
	return inst, nil
}

// InstancePtr is a handle to an object held in the interpreter's base
// workspace. Property access and method calls round-trip through the
// interpreter; the object itself never crosses to the host.
type InstancePtr struct {
	session *Session
	class   string
	address string
}

func (p *InstancePtr) Name() string    { return p.address }
func (p *InstancePtr) Address() string { return p.address }

// Class returns the instance's class name.
func (p *InstancePtr) Class() string { return p.class }

func (p *InstancePtr) String() string {
	return fmt.Sprintf("<%s object at %s>", p.class, p.address)
}

func subsArg(prop string) mat.Value {
	var s mat.Struct
	s.Set("type", mat.Text("."))
	s.Set("subs", mat.Text(prop))
	return s
}

// Get reads a property of the instance.
func (p *InstancePtr) Get(ctx context.Context, prop string) (any, error) {
	if !identPattern.MatchString(prop) {
		return nil, usageErr("invalid property name %q", prop)
	}
	return p.session.Call(ctx, "subsref", []any{p, subsArg(prop)}, Nout(1))
}

// Set writes a property of the instance. The updated object replaces
// the stored one.
func (p *InstancePtr) Set(ctx context.Context, prop string, value any) error {
	if !identPattern.MatchString(prop) {
		return usageErr("invalid property name %q", prop)
	}
	_, err := p.session.Call(ctx, "subsasgn",
		[]any{p, subsArg(prop), value}, Nout(1), StoreAs(p.address))
	return err
}

// Invoke calls a method with the instance as its first argument.
func (p *InstancePtr) Invoke(ctx context.Context, method string, args []any, opts ...CallOption) (any, error) {
	return p.session.Call(ctx, method, append([]any{any(p)}, args...), opts...)
}

// proxyFromRef binds a decoded workspace reference to this session.
func (s *Session) proxyFromRef(r mat.Ref) Ptr {
	if r.Class == "function_handle" {
		return &FunctionPtr{session: s, name: strings.TrimPrefix(r.Address, "@")}
	}
	return &InstancePtr{session: s, class: r.Class, address: r.Address}
}

// Resolve returns a proxy for a name: a VariablePtr or InstancePtr for
// workspace variables, a FunctionPtr for callable names, a ClassPtr
// for class definitions.
func (s *Session) Resolve(ctx context.Context, name string) (Ptr, error) {
	code, err := s.existCode(ctx, name)
	if err != nil {
		return nil, err
	}
	switch code {
	case 0:
		return nil, usageErr("%q is not defined in the interpreter", name)
	case 1:
		isObj, err := s.isObject(ctx, name)
		if err != nil {
			return nil, err
		}
		if !isObj {
			return &VariablePtr{session: s, name: name}, nil
		}
		class, err := s.classOf(ctx, name)
		if err != nil {
			return nil, err
		}
		return &InstancePtr{session: s, class: class, address: name}, nil
	case 2, 3, 5:
		return &FunctionPtr{session: s, name: name}, nil
	case 103:
		return s.classPtr(name), nil
	default:
		return nil, protocolErr("unsupported exist code %d for %q", code, name)
	}
}

// Get returns a proxy for a callable name, memoized per session.
// Unlike Resolve it rejects plain variables, so stale workspace state
// cannot shadow a function lookup.
func (s *Session) Get(ctx context.Context, name string) (Ptr, error) {
	s.proxyMu.Lock()
	if p, ok := s.bound[name]; ok {
		s.proxyMu.Unlock()
		return p, nil
	}
	s.proxyMu.Unlock()

	code, err := s.existCode(ctx, name)
	if err != nil {
		return nil, err
	}

	var p Ptr
	switch code {
	case 2, 3, 5:
		p = &FunctionPtr{session: s, name: name}
	case 103:
		p = s.classPtr(name)
	default:
		return nil, usageErr("%q is not a callable name (exist code %d)", name, code)
	}

	s.proxyMu.Lock()
	s.bound[name] = p
	s.proxyMu.Unlock()
	return p, nil
}

func (s *Session) classPtr(name string) *ClassPtr {
	s.proxyMu.Lock()
	defer s.proxyMu.Unlock()
	if c, ok := s.classes[name]; ok {
		return c
	}
	c := &ClassPtr{session: s, name: name}
	s.classes[name] = c
	return c
}

// classOf reports the class name of a base-workspace variable.
func (s *Session) classOf(ctx context.Context, name string) (string, error) {
	v, err := s.Call(ctx, "evalin", []any{"base", fmt.Sprintf("class(%s)", name)}, Nout(1))
	if err != nil {
		return "", err
	}
	class, ok := v.(string)
	if !ok {
		return "", protocolErr("unexpected class payload %T", v)
	}
	return class, nil
}
