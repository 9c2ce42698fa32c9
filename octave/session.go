package octave

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/octexec/engine"
)

//go:embed scripts/_octexec.m
var dispatcherScript []byte

// dispatcherName is the interpreter-side entry point for remote calls.
const dispatcherName = "_octexec"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Var is a named value for batch transfers.
type Var struct {
	Name  string
	Value any
}

// Session drives one interpreter process.
//
// Contract:
// - Concurrency: safe for concurrent use; operations serialize on the
//   interpreter, except Interrupt which may overlap a running call.
// - Context: operations honor ctx for cancellation; the session's
//   Timeout applies when the call sets no tighter deadline.
// - Errors: interpreter rejections wrap ErrRemote, exchange failures
//   wrap ErrProtocol, host-side misuse wraps ErrUsage, and operations
//   after Exit return ErrSessionClosed.
// - Ownership: the caller must Exit the session to release the
//   interpreter process and the exchange directory.
type Session struct {
	cfg     Config
	id      string
	tempDir string
	logger  Logger

	mu     sync.Mutex // serializes interpreter operations
	closed bool

	proxyMu sync.Mutex // guards the proxy memo maps
	classes map[string]*ClassPtr
	bound   map[string]Ptr

	engMu sync.Mutex // guards eng for Interrupt
	eng   engine.Engine
}

// New starts an interpreter session.
func New(ctx context.Context, cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	tempDir, err := os.MkdirTemp(cfg.TempDir, "octexec-")
	if err != nil {
		return nil, fmt.Errorf("create exchange dir: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		id:      uuid.NewString(),
		tempDir: tempDir,
		logger:  cfg.Logger,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.restartLocked(ctx); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, err
	}
	s.logger.Info("session started", "id", s.id, "dir", tempDir)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// restartLocked replaces the interpreter process and resets all
// interpreter-side state. Caller holds s.mu.
func (s *Session) restartLocked(ctx context.Context) error {
	if eng := s.engine(); eng != nil {
		_ = eng.Close()
		s.setEngine(nil)
	}

	script := filepath.Join(s.tempDir, dispatcherName+".m")
	if err := os.WriteFile(script, dispatcherScript, 0o644); err != nil {
		return fmt.Errorf("write dispatcher: %w", err)
	}

	eng, err := s.cfg.StartEngine(engine.Config{
		Executable: s.cfg.Executable,
		Logger:     s.logger,
	})
	if err != nil {
		return fmt.Errorf("start interpreter: %w", err)
	}

	stmt := fmt.Sprintf(`addpath("%s");`, filepath.ToSlash(s.tempDir))
	if _, err := eng.Evaluate(ctx, stmt); err != nil {
		_ = eng.Close()
		return fmt.Errorf("register dispatcher path: %w", err)
	}

	s.setEngine(eng)
	s.proxyMu.Lock()
	s.classes = make(map[string]*ClassPtr)
	s.bound = make(map[string]Ptr)
	s.proxyMu.Unlock()
	return nil
}

// Restart replaces the interpreter process. Interpreter-side state,
// including workspace variables and proxy bindings, is lost.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.logger.Info("session restarting", "id", s.id)
	return s.restartLocked(ctx)
}

// Exit shuts the interpreter down and removes the exchange directory.
// Exit is idempotent.
func (s *Session) Exit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if eng := s.engine(); eng != nil {
		err = eng.Close()
		s.setEngine(nil)
	}
	if rmErr := os.RemoveAll(s.tempDir); err == nil {
		err = rmErr
	}
	s.logger.Info("session exited", "id", s.id)
	return err
}

// Interrupt signals the interpreter to abandon the running statement.
// It may be called while another goroutine is blocked in a call.
func (s *Session) Interrupt() error {
	eng := s.engine()
	if eng == nil {
		return ErrSessionClosed
	}
	return eng.Interrupt()
}

func (s *Session) engine() engine.Engine {
	s.engMu.Lock()
	defer s.engMu.Unlock()
	return s.eng
}

func (s *Session) setEngine(eng engine.Engine) {
	s.engMu.Lock()
	s.eng = eng
	s.engMu.Unlock()
}

// Push assigns a host value to a variable in the interpreter's base
// workspace.
func (s *Session) Push(ctx context.Context, name string, value any) error {
	if !identPattern.MatchString(name) {
		return usageErr("invalid variable name %q", name)
	}
	_, err := s.Call(ctx, "assignin", []any{"base", name, value}, Nout(0))
	return err
}

// PushAll assigns each variable in order.
func (s *Session) PushAll(ctx context.Context, vars []Var) error {
	for _, v := range vars {
		if err := s.Push(ctx, v.Name, v.Value); err != nil {
			return fmt.Errorf("push %s: %w", v.Name, err)
		}
	}
	return nil
}

// Pull transfers a base-workspace variable to the host. Names bound to
// functions, files, or classes come back as proxies, and so do object
// values that cannot cross the exchange format.
func (s *Session) Pull(ctx context.Context, name string) (any, error) {
	code, err := s.existCode(ctx, name)
	if err != nil {
		return nil, err
	}
	if code == 1 {
		return s.Call(ctx, "evalin", []any{"base", name}, Nout(1))
	}
	return s.Resolve(ctx, name)
}

// PullAll transfers the named variables in order.
func (s *Session) PullAll(ctx context.Context, names ...string) ([]any, error) {
	out := make([]any, 0, len(names))
	for _, name := range names {
		v, err := s.Pull(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("pull %s: %w", name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Eval evaluates statements in the interpreter's base workspace, in
// order. When the last statement left an ans value behind, Eval
// transfers and returns it; otherwise it returns nil.
func (s *Session) Eval(ctx context.Context, commands ...string) (any, error) {
	if len(commands) == 0 {
		return nil, nil
	}
	// A leftover ans from an earlier Eval must not masquerade as this
	// sequence's result.
	if _, err := s.Call(ctx, "evalin", []any{"base", "clear ans"}, Nout(0)); err != nil {
		return nil, err
	}
	for _, cmd := range commands {
		if _, err := s.Call(ctx, "evalin", []any{"base", cmd}, Nout(0)); err != nil {
			var re *RemoteError
			if errors.As(err, &re) {
				re.Command = cmd
			}
			return nil, err
		}
	}
	code, err := s.existCode(ctx, "ans")
	if err != nil || code != 1 {
		return nil, err
	}
	return s.Call(ctx, "evalin", []any{"base", "ans"}, Nout(1))
}

// Doc returns the interpreter's help text for a name, falling back to
// the source listing for names help does not cover.
func (s *Session) Doc(ctx context.Context, name string) (string, error) {
	v, err := s.Call(ctx, "help", []any{name}, Nout(1), Quiet())
	if err == nil {
		return docText(v)
	}
	if !errors.Is(err, ErrRemote) {
		return "", err
	}
	v, typeErr := s.Call(ctx, "type", []any{name}, Nout(1), Quiet())
	if typeErr != nil {
		return "", err
	}
	return docText(v)
}

func docText(v any) (string, error) {
	switch tv := v.(type) {
	case string:
		return tv, nil
	case []any:
		parts := make([]string, 0, len(tv))
		for _, p := range tv {
			line, ok := p.(string)
			if !ok {
				return "", protocolErr("unexpected help payload %T", p)
			}
			parts = append(parts, line)
		}
		return strings.Join(parts, "\n"), nil
	default:
		return "", protocolErr("unexpected help payload %T", v)
	}
}

// existCode reports the interpreter's exist() code for a name: 0 when
// undefined, 1 for a variable, 2, 3, 5 and 103 for callable kinds.
func (s *Session) existCode(ctx context.Context, name string) (int, error) {
	if !identPattern.MatchString(name) {
		return 0, usageErr("invalid name %q", name)
	}
	out, err := s.evaluateRaw(ctx, fmt.Sprintf(`disp(exist("%s"))`, name))
	if err != nil {
		return 0, err
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(out))
	if convErr != nil {
		return 0, protocolErr("unexpected exist output %q", out)
	}
	return code, nil
}

// isObject reports whether a base-workspace name holds an old-style
// class instance.
func (s *Session) isObject(ctx context.Context, name string) (bool, error) {
	out, err := s.evaluateRaw(ctx, fmt.Sprintf("disp(isobject(%s))", name))
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(out) {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, protocolErr("unexpected isobject output %q", out)
	}
}

// evaluateRaw runs one statement through the line channel without the
// payload exchange. Used for introspection that prints a single value.
func (s *Session) evaluateRaw(ctx context.Context, stmt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	eng := s.engine()
	if eng == nil {
		return "", ErrSessionClosed
	}

	ctx, cancel := s.deadline(ctx, 0)
	defer cancel()
	out, err := eng.Evaluate(ctx, stmt)
	if err != nil {
		return "", s.channelErr(stmt, err)
	}
	return out, nil
}

// deadline applies the call's timeout, falling back to the session's.
func (s *Session) deadline(ctx context.Context, override time.Duration) (context.Context, context.CancelFunc) {
	d := s.cfg.Timeout
	if override > 0 {
		d = override
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// channelErr maps engine failures to session errors. A dead engine
// poisons the session. Caller holds s.mu.
func (s *Session) channelErr(stmt string, err error) error {
	switch {
	case errors.Is(err, engine.ErrClosed):
		s.closed = true
		s.logger.Error("interpreter died", "id", s.id, "statement", stmt)
		return protocolErr("interpreter exited during %q", stmt)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %q", ErrTimeout, stmt)
	default:
		return fmt.Errorf("evaluate %q: %w", stmt, err)
	}
}
