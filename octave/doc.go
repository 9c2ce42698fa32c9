// Package octave drives a GNU Octave process as a remote-call backend.
//
// A Session owns one interpreter process plus a temporary exchange
// directory. Function calls travel as MAT-file payloads: the session
// writes the request to writer.mat, evaluates a single dispatch
// statement through the line channel, and reads the response from
// reader.mat. Values that cannot cross the file boundary stay in the
// interpreter's base workspace and come back as proxies.
//
// # Sessions
//
// New starts the interpreter; Exit shuts it down. A session serializes
// its operations, so one Session is safe to share across goroutines,
// but concurrent calls do not overlap in the interpreter.
//
// # Proxies
//
// Resolve and Get hand back Ptr values for named functions, variables,
// classes, and files. Object values returned by calls arrive as
// InstancePtr handles bound to interpreter-side storage. Proxies passed
// back into Call are substituted by reference, not by value.
//
// # Errors
//
// Interpreter-side failures surface as RemoteError wrapping ErrRemote.
// Channel and payload corruption surfaces as ErrProtocol. Misuse that
// is caught before reaching the interpreter surfaces as ErrUsage.
package octave
