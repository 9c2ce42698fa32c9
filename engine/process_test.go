package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeFakeInterpreter creates a shell script that behaves like a
// line-oriented interpreter: it echoes each statement and prints the
// sentinel prompt, with trigger words for hangs and crashes. SIGINT
// aborts the statement in flight and returns to the prompt, the way
// the real interpreter does.
func writeFakeInterpreter(t *testing.T) string {
	t.Helper()

	script := "#!/bin/sh\n" +
		"trap \"printf 'interrupted\\n" + promptSentinel + "'\" INT\n" +
		"while IFS= read -r line; do\n" +
		"  case \"$line\" in\n" +
		"    *pause*) sleep 5; continue ;;\n" +
		"    *die*) exit 3 ;;\n" +
		"  esac\n" +
		"  printf '%s\\n' \"$line\"\n" +
		"  printf '" + promptSentinel + "'\n" +
		"done\n"

	path := filepath.Join(t.TempDir(), "fake-octave")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake interpreter: %v", err)
	}
	return path
}

func startFake(t *testing.T) *Process {
	t.Helper()

	p, err := Start(Config{
		Executable:     writeFakeInterpreter(t),
		StartupTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProcessEvaluate(t *testing.T) {
	p := startFake(t)

	out, err := p.Evaluate(context.Background(), "disp(42)")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if out != "disp(42)" {
		t.Errorf("Evaluate() = %q, want echoed statement", out)
	}
}

func TestProcessStreamHandler(t *testing.T) {
	p := startFake(t)

	var mu sync.Mutex
	var lines []string
	p.SetStreamHandler(func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	})

	if _, err := p.Evaluate(context.Background(), "x = 1"); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 1 || lines[0] != "x = 1" {
		t.Errorf("stream handler saw %v, want the echoed statement", lines)
	}
}

func TestProcessEvaluateTimeout(t *testing.T) {
	p := startFake(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := p.Evaluate(ctx, "pause")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Evaluate() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestProcessInterrupt(t *testing.T) {
	p := startFake(t)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := p.Evaluate(context.Background(), "pause")
		done <- result{out, err}
	}()

	// Let the interpreter start blocking on the statement first.
	time.Sleep(200 * time.Millisecond)
	if err := p.Interrupt(); err != nil {
		t.Fatalf("Interrupt() error = %v", err)
	}

	var got result
	select {
	case got = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Evaluate() did not return after Interrupt()")
	}
	if got.err != nil {
		t.Fatalf("interrupted Evaluate() error = %v", got.err)
	}
	if !strings.Contains(got.out, "interrupted") {
		t.Errorf("interrupted Evaluate() = %q, want abort notice", got.out)
	}

	// The interpreter stays alive and keeps serving statements.
	out, err := p.Evaluate(context.Background(), "disp(1)")
	if err != nil {
		t.Fatalf("Evaluate() after Interrupt() error = %v", err)
	}
	if out != "disp(1)" {
		t.Errorf("Evaluate() after Interrupt() = %q, want echoed statement", out)
	}
}

func TestProcessStreamEnded(t *testing.T) {
	p := startFake(t)

	_, err := p.Evaluate(context.Background(), "die")
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Evaluate() after crash error = %v, want ErrClosed", err)
	}

	// The engine is unusable afterwards.
	_, err = p.Evaluate(context.Background(), "x = 1")
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Evaluate() on dead engine error = %v, want ErrClosed", err)
	}
}

func TestProcessCloseIdempotent(t *testing.T) {
	p := startFake(t)

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestProcessOutputDoesNotLeakAcrossStatements(t *testing.T) {
	p := startFake(t)

	first, err := p.Evaluate(context.Background(), "first statement")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	second, err := p.Evaluate(context.Background(), "second statement")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if strings.Contains(second, "first") {
		t.Errorf("second capture %q contains first statement's output %q", second, first)
	}
}

func TestLookupExecutable(t *testing.T) {
	t.Setenv("OCTAVE_EXECUTABLE", "/opt/custom/octave")
	exe, err := LookupExecutable()
	if err != nil {
		t.Fatalf("LookupExecutable() error = %v", err)
	}
	if exe != "/opt/custom/octave" {
		t.Errorf("LookupExecutable() = %q, want env override", exe)
	}

	t.Setenv("OCTAVE_EXECUTABLE", "")
	t.Setenv("OCTAVE", "/opt/other/octave")
	exe, err = LookupExecutable()
	if err != nil {
		t.Fatalf("LookupExecutable() error = %v", err)
	}
	if exe != "/opt/other/octave" {
		t.Errorf("LookupExecutable() = %q, want OCTAVE fallback", exe)
	}
}

func TestStartExecutableNotFound(t *testing.T) {
	_, err := Start(Config{Executable: filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Fatal("Start() with missing executable should fail")
	}
}
