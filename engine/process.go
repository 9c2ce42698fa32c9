package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// promptSentinel is the prompt configured at startup. The control-byte
// framing keeps it from colliding with any printable interpreter output.
const promptSentinel = "\x02octexec:ready\x03"

// promptSetup is the single statement that switches the interpreter to
// sentinel prompts and disables paging.
var promptSetup = fmt.Sprintf(
	`PS1("%s"); PS2(""); page_screen_output(false); page_output_immediately(true);`,
	promptSentinel)

// defaultArgs are the interpreter flags for an embedded session.
var defaultArgs = []string{
	"--interactive",
	"--quiet",
	"--no-init-file",
	"--no-line-editing",
	"--no-window-system",
}

// DefaultStartupTimeout bounds the wait for the interpreter's first prompt.
const DefaultStartupTimeout = 30 * time.Second

// Logger is an optional interface for engine observability.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config configures a process engine.
type Config struct {
	// Executable is the interpreter executable or path. Optional; when
	// empty it is resolved via LookupExecutable.
	Executable string

	// Args are the interpreter arguments. Optional; nil selects the
	// embedded-session defaults.
	Args []string

	// Logger is an optional logger for engine events.
	Logger Logger

	// StartupTimeout bounds the wait for the first prompt.
	// Default: DefaultStartupTimeout.
	StartupTimeout time.Duration
}

// LookupExecutable resolves the interpreter executable: OCTAVE_EXECUTABLE,
// then OCTAVE, then a PATH lookup of octave-cli and octave.
func LookupExecutable() (string, error) {
	if v := os.Getenv("OCTAVE_EXECUTABLE"); v != "" {
		return v, nil
	}
	if v := os.Getenv("OCTAVE"); v != "" {
		return v, nil
	}
	for _, name := range []string{"octave-cli", "octave"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrExecutableNotFound
}

// Process is an Engine over one spawned interpreter process. stdout and
// stderr are merged into a single captured stream so diagnostics appear in
// statement output.
type Process struct {
	cfg    Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	chunks chan []byte

	group    *errgroup.Group
	waitDone chan struct{}

	mu     sync.Mutex // serializes Evaluate
	carry  []byte
	closed atomic.Bool

	streamMu sync.Mutex
	stream   func(line string)
}

// Start spawns the interpreter and waits for its first sentinel prompt.
func Start(cfg Config) (*Process, error) {
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}

	exe := cfg.Executable
	if exe == "" {
		var err error
		exe, err = LookupExecutable()
		if err != nil {
			return nil, err
		}
	}

	args := cfg.Args
	if args == nil {
		args = defaultArgs
	}

	cmd := exec.Command(exe, args...)
	// Own process group so interrupts reach the interpreter's children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine: stdin pipe: %w", err)
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("engine: output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("engine: start %s: %w", exe, err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	p := &Process{
		cfg:      cfg,
		cmd:      cmd,
		stdin:    stdin,
		chunks:   make(chan []byte, 16),
		group:    new(errgroup.Group),
		waitDone: make(chan struct{}),
	}

	p.group.Go(func() error {
		defer close(p.chunks)
		defer pr.Close()
		buf := make([]byte, 4096)
		for {
			n, err := pr.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				p.chunks <- chunk
			}
			if err != nil {
				return nil
			}
		}
	})
	p.group.Go(func() error {
		defer close(p.waitDone)
		return p.cmd.Wait()
	})

	if p.cfg.Logger != nil {
		p.cfg.Logger.Debug("interpreter started", "executable", exe)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupTimeout)
	defer cancel()
	if _, err := p.Evaluate(ctx, promptSetup); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("engine: waiting for first prompt: %w", err)
	}
	return p, nil
}

// SetStreamHandler routes captured output lines to fn.
func (p *Process) SetStreamHandler(fn func(line string)) {
	p.streamMu.Lock()
	p.stream = fn
	p.streamMu.Unlock()
}

func (p *Process) emit(line string) {
	p.streamMu.Lock()
	fn := p.stream
	p.streamMu.Unlock()
	if fn != nil {
		fn(line)
	}
}

// Evaluate writes one statement and captures output until the sentinel
// prompt reappears.
func (p *Process) Evaluate(ctx context.Context, stmt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return "", fmt.Errorf("evaluate: %w", ErrClosed)
	}

	// Stale output from a previous statement must never leak into this
	// statement's capture.
	p.carry = nil

	if _, err := io.WriteString(p.stdin, stmt+"\n"); err != nil {
		p.closed.Store(true)
		return "", fmt.Errorf("evaluate: write statement: %w", ErrClosed)
	}
	return p.readUntilPrompt(ctx)
}

func (p *Process) readUntilPrompt(ctx context.Context) (string, error) {
	var lines []string
	buf := p.carry
	p.carry = nil

	flushComplete := func() {
		for {
			i := bytes.IndexByte(buf, '\n')
			if i < 0 {
				return
			}
			line := strings.TrimRight(string(buf[:i]), "\r")
			buf = buf[i+1:]
			p.emit(line)
			lines = append(lines, line)
		}
	}

	for {
		if i := bytes.Index(buf, []byte(promptSentinel)); i >= 0 {
			rest := append([]byte(nil), buf[i+len(promptSentinel):]...)
			buf = buf[:i]
			flushComplete()
			if len(buf) > 0 {
				line := strings.TrimRight(string(buf), "\r")
				p.emit(line)
				lines = append(lines, line)
			}
			p.carry = rest
			return strings.Join(lines, "\n"), nil
		}
		flushComplete()

		select {
		case chunk, ok := <-p.chunks:
			if !ok {
				p.closed.Store(true)
				return strings.Join(lines, "\n"),
					fmt.Errorf("interpreter stream ended: %w", ErrClosed)
			}
			buf = append(buf, chunk...)
		case <-ctx.Done():
			return strings.Join(lines, "\n"), fmt.Errorf("evaluate: %w", ctx.Err())
		}
	}
}

// Interrupt delivers SIGINT to the interpreter, aborting the statement in
// flight while keeping the process alive.
func (p *Process) Interrupt() error {
	if p.closed.Load() {
		return ErrClosed
	}
	if p.cfg.Logger != nil {
		p.cfg.Logger.Info("interrupting interpreter")
	}
	return p.signal(syscall.SIGINT)
}

// signal delivers sig to the interpreter's process group.
func (p *Process) signal(sig syscall.Signal) error {
	return syscall.Kill(-p.cmd.Process.Pid, sig)
}

// Close terminates the interpreter. The first call asks it to exit, then
// escalates to SIGTERM and SIGKILL; later calls are no-ops.
func (p *Process) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.cfg.Logger != nil {
		p.cfg.Logger.Debug("closing interpreter")
	}

	// Best-effort polite exit; the process may already be gone.
	_, _ = io.WriteString(p.stdin, "exit\n")
	_ = p.stdin.Close()

	select {
	case <-p.waitDone:
	case <-time.After(2 * time.Second):
		_ = p.signal(syscall.SIGTERM)
		select {
		case <-p.waitDone:
		case <-time.After(2 * time.Second):
			_ = p.signal(syscall.SIGKILL)
			<-p.waitDone
		}
	}

	// Unblock the pump so it can reach EOF, then let it finish.
	for range p.chunks {
	}

	// Exit status of a killed interpreter is not an error here.
	_ = p.group.Wait()
	return nil
}
