package octave

import (
	"time"

	"github.com/jonwraymond/octexec/engine"
	"github.com/jonwraymond/octexec/mat"
)

// Config configures a Session.
type Config struct {
	// Executable is the interpreter executable or path. Optional; when
	// empty it is resolved via engine.LookupExecutable.
	Executable string

	// Logger receives session events and interpreter output. Optional.
	Logger Logger

	// Timeout is the per-call deadline. Zero means no deadline unless
	// a call sets its own.
	Timeout time.Duration

	// OnedAs selects the interpreter-side shape of host slices.
	// Default: row vectors.
	OnedAs mat.Orientation

	// ConvertToFloat widens host integer scalars and slices to double
	// before transfer. Default: true. Use a pointer to select false
	// explicitly.
	ConvertToFloat *bool

	// TempDir is the parent for the session's exchange directory.
	// Optional; empty selects the system default.
	TempDir string

	// StartEngine builds the session's interpreter backend. Optional;
	// nil spawns a process engine. Tests substitute in-memory engines
	// here.
	StartEngine func(engine.Config) (engine.Engine, error)
}

// Validate reports configuration that cannot produce a working
// session.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return usageErr("negative timeout %v", c.Timeout)
	}
	if c.OnedAs != mat.Row && c.OnedAs != mat.Column {
		return usageErr("unknown orientation %d", c.OnedAs)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
	if c.ConvertToFloat == nil {
		v := true
		c.ConvertToFloat = &v
	}
	if c.StartEngine == nil {
		c.StartEngine = func(ec engine.Config) (engine.Engine, error) {
			return engine.Start(ec)
		}
	}
}

// matOptions derives the codec options for outbound payloads.
func (c *Config) matOptions() mat.Options {
	opts := mat.DefaultOptions()
	opts.OnedAs = c.OnedAs
	opts.ConvertToFloat = *c.ConvertToFloat
	return opts
}
