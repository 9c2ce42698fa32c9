package octave

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonwraymond/octexec/mat"
)

// Exchange file names inside the session's temp directory. The host
// writes requests to writerFile and reads responses from readerFile.
const (
	writerFile = "writer.mat"
	readerFile = "reader.mat"
)

// Call invokes an interpreter function by name with positional args.
//
// The function name may carry a directory prefix; the directory is
// added to the interpreter's path before the call. Proxy arguments are
// passed by reference. The result shape follows Nout: zero outputs
// return nil, one output returns the converted value, several outputs
// return a []any. With StoreAs the value stays in the interpreter and
// a *VariablePtr comes back instead.
func (s *Session) Call(ctx context.Context, name string, args []any, opts ...CallOption) (any, error) {
	call := callOptions{nout: 1}
	call.apply(opts)

	dname, funcName, err := splitFuncName(name)
	if err != nil {
		return nil, err
	}
	if call.storeAs != "" && !identPattern.MatchString(call.storeAs) {
		return nil, usageErr("invalid store name %q", call.storeAs)
	}
	if call.nout < 0 {
		return nil, usageErr("negative nout %d", call.nout)
	}

	for _, pair := range call.named {
		args = append(args, pair.name, pair.value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	eng := s.engine()
	if eng == nil {
		return nil, ErrSessionClosed
	}

	request, err := s.buildRequest(funcName, dname, args, &call)
	if err != nil {
		return nil, err
	}

	reqFile := filepath.Join(s.tempDir, writerFile)
	respFile := filepath.Join(s.tempDir, readerFile)
	_ = os.Remove(respFile)
	if err := mat.Write(reqFile, request, s.cfg.matOptions()); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	eng.SetStreamHandler(func(line string) {
		if call.quiet {
			s.logger.Debug("interpreter output", "line", line)
		} else {
			s.logger.Info("interpreter output", "line", line)
		}
	})
	defer eng.SetStreamHandler(nil)

	stmt := fmt.Sprintf(`%s("%s", "%s");`,
		dispatcherName, filepath.ToSlash(reqFile), filepath.ToSlash(respFile))

	callCtx, cancel := s.deadline(ctx, call.timeout)
	defer cancel()
	s.logger.Debug("call", "func", funcName, "nout", call.nout)
	output, err := eng.Evaluate(callCtx, stmt)
	if err != nil {
		return nil, s.channelErr(funcName, err)
	}

	result, err := s.readResponse(respFile, funcName, output)
	if err != nil {
		return nil, err
	}

	if call.storeAs != "" {
		return &VariablePtr{session: s, name: call.storeAs}, nil
	}
	if call.nout == 0 {
		return nil, nil
	}
	return result, nil
}

// splitFuncName separates an optional directory prefix from the
// function name and validates the name before any file is written.
func splitFuncName(name string) (dname, funcName string, err error) {
	dname, funcName = filepath.Split(name)
	dname = strings.TrimSuffix(dname, string(filepath.Separator))
	funcName = strings.TrimSuffix(funcName, ".m")
	if !identPattern.MatchString(funcName) {
		return "", "", usageErr("invalid function name %q", name)
	}
	return dname, funcName, nil
}

// buildRequest encodes the request variables for the dispatcher.
// Caller holds s.mu.
func (s *Session) buildRequest(funcName, dname string, args []any, call *callOptions) ([]mat.NamedValue, error) {
	opts := s.cfg.matOptions()

	funcArgs := make(mat.Cell, 0, len(args))
	var refIndices []float64
	for i, arg := range args {
		if p, ok := arg.(Ptr); ok {
			funcArgs = append(funcArgs, mat.Text(p.Address()))
			refIndices = append(refIndices, float64(i+1))
			continue
		}
		v, err := mat.FromGo(arg, opts)
		if err != nil {
			return nil, usageErr("argument %d of %s: %v", i+1, funcName, err)
		}
		funcArgs = append(funcArgs, v)
	}

	request := []mat.NamedValue{
		{Name: "func_name", Value: mat.Text(funcName)},
		{Name: "func_args", Value: funcArgs},
		{Name: "nout", Value: mat.Scalar(float64(call.nout))},
	}
	if dname != "" {
		request = append(request, mat.NamedValue{
			Name: "dname", Value: mat.Text(filepath.ToSlash(dname)),
		})
	}
	if call.storeAs != "" {
		request = append(request, mat.NamedValue{
			Name: "store_as", Value: mat.Text(call.storeAs),
		})
	}
	if len(refIndices) > 0 {
		request = append(request, mat.NamedValue{
			Name: "ref_indices",
			Value: mat.Array{
				Kind: mat.Double,
				Dims: []int{1, len(refIndices)},
				Real: refIndices,
			},
		})
	}
	return request, nil
}

// readResponse decodes the dispatcher's response file. Caller holds
// s.mu.
func (s *Session) readResponse(respFile, funcName, output string) (any, error) {
	vars, err := mat.Read(respFile)
	if err != nil {
		return nil, protocolErr("read response for %s: %v", funcName, err)
	}

	var result, remoteErr mat.Value
	for _, v := range vars {
		switch v.Name {
		case "result":
			result = v.Value
		case "err":
			remoteErr = v.Value
		}
	}
	if result == nil || remoteErr == nil {
		return nil, protocolErr("incomplete response for %s", funcName)
	}

	if st, ok := remoteErr.(mat.Struct); ok {
		re := &RemoteError{Command: funcName, Output: output}
		if msg, ok := st.Get("message"); ok {
			if txt, ok := msg.(mat.Text); ok {
				re.Message = string(txt)
			}
		}
		if id, ok := st.Get("identifier"); ok {
			if txt, ok := id.(mat.Text); ok {
				re.Identifier = string(txt)
			}
		}
		return nil, re
	}

	value := s.wrapResult(mat.ToGo(result))
	if txt, ok := value.(string); ok && txt == "" {
		return nil, nil
	}
	return value, nil
}

// wrapResult binds workspace references in a converted result to this
// session as proxies.
func (s *Session) wrapResult(v any) any {
	switch tv := v.(type) {
	case mat.Ref:
		return s.proxyFromRef(tv)
	case []any:
		for i := range tv {
			tv[i] = s.wrapResult(tv[i])
		}
		return tv
	case mat.Record:
		for i := range tv {
			tv[i].Value = s.wrapResult(tv[i].Value)
		}
		return tv
	default:
		return v
	}
}
