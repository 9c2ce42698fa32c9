// Octexec drives a GNU Octave process from the command line. It can
// evaluate one-off statements, call named functions, run an
// interactive loop, or expose the session as an MCP tool server over
// stdio.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/octexec/mat"
	"github.com/jonwraymond/octexec/mcpserver"
	"github.com/jonwraymond/octexec/octave"
)

const version = "0.1.0"

var (
	// Global flags
	executable string
	timeout    time.Duration
	tempDir    string
	configPath string
	verbose    bool
	columnVecs bool

	// Logger
	logger *zap.Logger
)

// fileConfig mirrors the optional YAML configuration file.
type fileConfig struct {
	Executable string `yaml:"executable"`
	Timeout    string `yaml:"timeout"`
	TempDir    string `yaml:"temp_dir"`
	OnedAs     string `yaml:"oned_as"`
}

var rootCmd = &cobra.Command{
	Use:     "octexec",
	Short:   "Drive a GNU Octave interpreter from the command line",
	Version: version,
	Long: `octexec starts an Octave process and exchanges values with it
through MAT-file payloads. Results print as JSON. Values that cannot
cross the exchange, such as objects, print as workspace references.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Optional; a missing .env is not an error.
		_ = godotenv.Load()

		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return loadConfigFile()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval [statement...]",
	Short: "Evaluate statements and print the last value",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer session.Exit()

		result, err := session.Eval(cmd.Context(), args...)
		if err != nil {
			return err
		}
		return printResult(cmd, result)
	},
}

var callCmd = &cobra.Command{
	Use:   "call [function] [arg...]",
	Short: "Call a function with positional arguments",
	Long: `Arguments parse as JSON when possible, so numbers, arrays and
objects pass through typed; anything else passes as a string.

Example:
  octexec call max "[1, 9, 4]"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nout, err := cmd.Flags().GetInt("nout")
		if err != nil {
			return err
		}
		session, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer session.Exit()

		callArgs := make([]any, 0, len(args)-1)
		for _, raw := range args[1:] {
			callArgs = append(callArgs, parseArg(raw))
		}
		result, err := session.Call(cmd.Context(), args[0], callArgs, octave.Nout(nout))
		if err != nil {
			return err
		}
		return printResult(cmd, result)
	},
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Run an interactive evaluation loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer session.Exit()

		// Ctrl-C interrupts the running statement, not the loop.
		interrupts := make(chan os.Signal, 1)
		signal.Notify(interrupts, syscall.SIGINT)
		defer signal.Stop(interrupts)
		go func() {
			for range interrupts {
				_ = session.Interrupt()
			}
		}()

		scanner := bufio.NewScanner(os.Stdin)
		out := cmd.OutOrStdout()
		fmt.Fprint(out, ">> ")
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "exit" || line == "quit" {
				break
			}
			if line != "" {
				result, err := session.Eval(cmd.Context(), line)
				switch {
				case err != nil:
					fmt.Fprintln(out, "error:", err)
				case result != nil:
					if err := printResult(cmd, result); err != nil {
						fmt.Fprintln(out, "error:", err)
					}
				}
			}
			fmt.Fprint(out, ">> ")
		}
		fmt.Fprintln(out)
		return scanner.Err()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the session as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer session.Exit()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server := mcpserver.New(session, "octexec", version)
		return server.Serve(ctx, os.Stdin, os.Stdout)
	},
}

// loadConfigFile folds the optional YAML file into unset flags. Flags
// win over file values.
func loadConfigFile() error {
	if configPath == "" {
		return nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if executable == "" {
		executable = fc.Executable
	}
	if timeout == 0 && fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("parse config timeout: %w", err)
		}
		timeout = d
	}
	if tempDir == "" {
		tempDir = fc.TempDir
	}
	if fc.OnedAs == "column" {
		columnVecs = true
	}
	return nil
}

func newSession(ctx context.Context) (*octave.Session, error) {
	cfg := octave.Config{
		Executable: executable,
		Timeout:    timeout,
		TempDir:    tempDir,
		Logger:     zapAdapter{s: logger.Sugar()},
	}
	if columnVecs {
		cfg.OnedAs = mat.Column
	}
	return octave.New(ctx, cfg)
}

// parseArg reads a CLI argument as JSON, falling back to a plain
// string.
func parseArg(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func printResult(cmd *cobra.Command, result any) error {
	if p, ok := result.(octave.Ptr); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "<reference %s>\n", p.Address())
		return nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

// zapAdapter exposes a SugaredLogger through the session's logging
// interface.
type zapAdapter struct {
	s *zap.SugaredLogger
}

func (a zapAdapter) Debug(msg string, args ...any) { a.s.Debugw(msg, args...) }
func (a zapAdapter) Info(msg string, args ...any)  { a.s.Infow(msg, args...) }
func (a zapAdapter) Warn(msg string, args ...any)  { a.s.Warnw(msg, args...) }
func (a zapAdapter) Error(msg string, args ...any) { a.s.Errorw(msg, args...) }

func init() {
	rootCmd.PersistentFlags().StringVar(&executable, "executable", "", "interpreter executable (default: $OCTAVE_EXECUTABLE, then PATH)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-call deadline (0 means none)")
	rootCmd.PersistentFlags().StringVar(&tempDir, "temp-dir", "", "parent directory for the exchange files")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&columnVecs, "column-vectors", false, "send 1-D values as column vectors")

	callCmd.Flags().Int("nout", 1, "number of output values")

	rootCmd.AddCommand(evalCmd, callCmd, replCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
