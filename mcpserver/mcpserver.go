// Package mcpserver exposes an interpreter session as MCP tools using
// the official MCP Go SDK.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/octexec/octave"
)

// handler evaluates one tool call against the session.
type handler func(ctx context.Context, input json.RawMessage) (string, error)

// Server serves a session's operations over the MCP protocol.
type Server struct {
	server  *mcp.Server
	session *octave.Session
}

// New creates a Server for the given session.
func New(session *octave.Session, name, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    name,
			Version: version,
		}, nil),
		session: session,
	}
	s.register()
	return s
}

func (s *Server) register() {
	s.addTool("octave_eval",
		"Evaluate statements in the interpreter and return the last value.",
		`{"type":"object","properties":{"code":{"type":"string","description":"Statement to evaluate"}},"required":["code"]}`,
		s.handleEval)
	s.addTool("octave_call",
		"Call an interpreter function with positional arguments.",
		`{"type":"object","properties":{"function":{"type":"string"},"args":{"type":"array"},"nout":{"type":"integer","description":"Number of outputs, default 1"}},"required":["function"]}`,
		s.handleCall)
	s.addTool("octave_push",
		"Assign a value to a variable in the interpreter's workspace.",
		`{"type":"object","properties":{"name":{"type":"string"},"value":{}},"required":["name","value"]}`,
		s.handlePush)
	s.addTool("octave_pull",
		"Transfer a workspace variable to the caller.",
		`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`,
		s.handlePull)
	s.addTool("octave_restart",
		"Restart the interpreter process, clearing all workspace state.",
		`{"type":"object","properties":{}}`,
		s.handleRestart)
}

func (s *Server) addTool(name, description, schema string, h handler) {
	s.server.AddTool(&mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: json.RawMessage(schema),
	}, toSDKHandler(h))
}

// Serve reads MCP requests from in and writes responses to out. It
// blocks until ctx is cancelled or the transport closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	}
	return s.run(ctx, transport)
}

// run starts the server with the given transport. Exported via Serve
// for production use; called directly by tests with in-memory
// transports.
func (s *Server) run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

func (s *Server) handleEval(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	result, err := s.session.Eval(ctx, args.Code)
	if err != nil {
		return "", err
	}
	return renderResult(result)
}

func (s *Server) handleCall(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Function string `json:"function"`
		Args     []any  `json:"args"`
		Nout     *int   `json:"nout"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	nout := 1
	if args.Nout != nil {
		nout = *args.Nout
	}
	result, err := s.session.Call(ctx, args.Function, args.Args, octave.Nout(nout))
	if err != nil {
		return "", err
	}
	return renderResult(result)
}

func (s *Server) handlePush(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if err := s.session.Push(ctx, args.Name, args.Value); err != nil {
		return "", err
	}
	return "ok", nil
}

func (s *Server) handlePull(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	result, err := s.session.Pull(ctx, args.Name)
	if err != nil {
		return "", err
	}
	return renderResult(result)
}

func (s *Server) handleRestart(ctx context.Context, _ json.RawMessage) (string, error) {
	if err := s.session.Restart(ctx); err != nil {
		return "", err
	}
	return "ok", nil
}

// renderResult encodes a session result as JSON. Proxies become
// address descriptors instead of values.
func renderResult(v any) (string, error) {
	b, err := json.Marshal(jsonValue(v))
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}

func jsonValue(v any) any {
	switch tv := v.(type) {
	case *octave.InstancePtr:
		return map[string]any{"proxy": tv.Address(), "class": tv.Class()}
	case octave.Ptr:
		return map[string]any{"proxy": tv.Address()}
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = jsonValue(e)
		}
		return out
	default:
		return v
	}
}

// toSDKHandler wraps a handler as an SDK ToolHandler. Handler errors
// come back as tool-level errors, not protocol failures.
func toSDKHandler(h handler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.Params.Arguments
		if args == nil {
			args = json.RawMessage("{}")
		}
		result, err := h(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result}},
		}, nil
	}
}

// nopWriteCloser wraps an io.Writer as an io.WriteCloser with a no-op
// Close.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
