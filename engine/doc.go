// Package engine drives an external interpreter process over a
// line-oriented text channel.
//
// The package defines the [Engine] interface the session layer depends on
// and provides [Process], the production implementation that spawns an
// Octave executable, merges its stdout/stderr into one captured stream,
// and recognizes statement completion with a sentinel prompt.
//
// # Channel Model
//
// The channel offers no call/return mechanism: the engine writes one
// statement line, then reads output lines until the interpreter prints
// its prompt again. Everything between write and prompt is the statement's
// captured output. Structured data does not travel on this channel; the
// session layer exchanges it through container files on disk.
//
// # Executable Selection
//
// The executable is resolved once at engine start: an explicit
// Config.Executable wins, then the OCTAVE_EXECUTABLE and OCTAVE
// environment variables, then a PATH lookup of octave-cli and octave.
// The environment is not re-read per call.
package engine
