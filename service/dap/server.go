// Package dap implements VSCode's Debug Adaptor Protocol (DAP).
// This allows wtree to serve the variables of a snapshot to frontends
// using DAP without a separate adaptor. The frontend runs wtree in
// server mode listening on a port and communicating over TCP. Requests
// are processed synchronously, one at a time.
// For DAP details see https://microsoft.github.io/debug-adapter-protocol.
package dap

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-dap"

	"github.com/watchtree/watchtree/pkg/backend/replay"
	"github.com/watchtree/watchtree/pkg/logflags"
	"github.com/watchtree/watchtree/pkg/symgroup"
	"github.com/watchtree/watchtree/service"
)

// maxReadMemory is the largest readMemory request served.
const maxReadMemory = 1 << 16

// Server implements a DAP server that can accept a single client for
// a single debug session.
// The server operates via two goroutines:
// (1) Main goroutine where the server is created via NewServer(),
// started via Run() and stopped via Stop().
// (2) Run goroutine started from Run() that accepts a client connection,
// reads, decodes and processes each request, querying the symbol
// context of the snapshot and sending back events and responses.
type Server struct {
	// config is all the information necessary to start the server.
	config *service.Config
	// listener is used to accept the client connection.
	listener net.Listener
	// sessionMu guards conn and target, which the run goroutine sets and
	// Stop releases.
	sessionMu sync.Mutex
	// conn is the accepted client connection.
	conn net.Conn
	// stopChan is closed when the server is Stop()-ed. This can be used to signal
	// to goroutines run by the server that it's time to quit.
	stopChan chan struct{}
	// reader is used to read requests from the connection.
	reader *bufio.Reader
	// target is the snapshot opened by the launch request.
	target *replay.Target
	// log is used for structured logging.
	log logflags.Logger
	// stackFrameHandles maps the frame of the snapshot to a unique id.
	stackFrameHandles *handlesMap
	// variableHandles maps variables with children to unique references.
	variableHandles *variablesHandlesMap
	// args holds the attributes of the launch request.
	args LaunchConfig
}

// NewServer creates a new DAP Server. It takes an opened Listener
// via config and assumes its ownership. config.DisconnectChan has to be set;
// it will be closed by the server when the client disconnects or requests
// shutdown. Once DisconnectChan is closed, Server.Stop() must be called.
func NewServer(config *service.Config) *Server {
	logger := logflags.DAPLogger()
	logflags.WriteDAPListeningMessage(config.Listener.Addr().String())
	logger.Debug("DAP server pid = ", os.Getpid())
	return &Server{
		config:            config,
		listener:          config.Listener,
		stopChan:          make(chan struct{}),
		log:               logger,
		stackFrameHandles: newHandlesMap(),
		variableHandles:   newVariablesHandlesMap(),
	}
}

// Stop stops the DAP service, closes the listener and the client
// connection. It releases the snapshot if one was opened. This method
// mustn't be called more than once.
func (s *Server) Stop() {
	s.listener.Close()

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	close(s.stopChan)
	if s.conn != nil {
		// Unless Stop() was called after serveDAPCodec()
		// returned, this will result in closed connection error
		// on next read, breaking out of the read loop and
		// allowing the run goroutine to exit.
		s.conn.Close()
	}
	if s.target != nil {
		s.target.Close()
	}
}

// signalDisconnect closes config.DisconnectChan if not nil, which
// signals that the client disconnected or there was a client
// connection failure. It can be called multiple times.
func (s *Server) signalDisconnect() {
	if s.config.DisconnectChan != nil {
		close(s.config.DisconnectChan)
		s.config.DisconnectChan = nil
	}
}

// Run launches a new goroutine where it accepts a client connection
// and starts processing requests from it. Use Stop() to close connection.
// The server does not support multiple clients, serially or in parallel.
// The snapshot won't be opened until the launch request is received.
func (s *Server) Run() {
	go func() {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
			default:
				s.log.Errorf("Error accepting client connection: %s\n", err)
			}
			s.signalDisconnect()
			return
		}
		s.sessionMu.Lock()
		select {
		case <-s.stopChan:
			s.sessionMu.Unlock()
			conn.Close()
			s.signalDisconnect()
			return
		default:
		}
		s.conn = conn
		s.sessionMu.Unlock()
		s.serveDAPCodec()
	}()
}

// serveDAPCodec reads and decodes requests from the client
// until it encounters an error or EOF, when it sends
// the disconnect signal and returns.
func (s *Server) serveDAPCodec() {
	defer s.signalDisconnect()
	s.reader = bufio.NewReader(s.conn)
	for {
		request, err := dap.ReadProtocolMessage(s.reader)
		if err != nil {
			stopRequested := false
			select {
			case <-s.stopChan:
				stopRequested = true
			default:
			}
			if err != io.EOF && !stopRequested {
				s.log.Error("DAP error: ", err)
			}
			return
		}
		s.handleRequest(request)
	}
}

func (s *Server) handleRequest(request dap.Message) {
	defer func() {
		// In case a handler panics, we catch the panic and send an error response
		// back to the client.
		if ierr := recover(); ierr != nil {
			s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("%v", ierr))
		}
	}()

	jsonmsg, _ := json.Marshal(request)
	s.log.Debug("[<- from client]", string(jsonmsg))

	switch request := request.(type) {
	case *dap.InitializeRequest:
		s.onInitializeRequest(request)
	case *dap.LaunchRequest:
		s.onLaunchRequest(request)
	case *dap.AttachRequest:
		s.sendUnsupportedErrorResponse(request.Request)
	case *dap.DisconnectRequest:
		s.onDisconnectRequest(request)
	case *dap.RestartRequest:
		s.onRestartRequest(request)
	case *dap.SetBreakpointsRequest:
		s.onSetBreakpointsRequest(request)
	case *dap.SetExceptionBreakpointsRequest:
		s.send(&dap.SetExceptionBreakpointsResponse{Response: *newResponse(request.Request)})
	case *dap.ConfigurationDoneRequest:
		s.onConfigurationDoneRequest(request)
	case *dap.ThreadsRequest:
		s.onThreadsRequest(request)
	case *dap.StackTraceRequest:
		s.onStackTraceRequest(request)
	case *dap.ScopesRequest:
		s.onScopesRequest(request)
	case *dap.VariablesRequest:
		s.onVariablesRequest(request)
	case *dap.SetVariableRequest:
		s.onSetVariableRequest(request)
	case *dap.EvaluateRequest:
		s.onEvaluateRequest(request)
	case *dap.ReadMemoryRequest:
		s.onReadMemoryRequest(request)
	case *dap.ContinueRequest, *dap.NextRequest, *dap.StepInRequest, *dap.StepOutRequest,
		*dap.StepBackRequest, *dap.ReverseContinueRequest, *dap.PauseRequest:
		// A snapshot can not be resumed.
		s.sendUnsupportedErrorResponse(requestOf(request))
	case dap.RequestMessage:
		s.sendUnsupportedErrorResponse(*request.GetRequest())
	default:
		// This is a DAP message that go-dap has a struct for, so
		// decoding succeeded, but this function does not know how
		// to handle.
		s.sendInternalErrorResponse(request.GetSeq(), fmt.Sprintf("Unable to process %#v\n", request))
	}
}

func requestOf(m dap.Message) dap.Request {
	if r, ok := m.(dap.RequestMessage); ok {
		return *r.GetRequest()
	}
	return dap.Request{ProtocolMessage: dap.ProtocolMessage{Seq: m.GetSeq(), Type: "request"}}
}

func (s *Server) send(message dap.Message) {
	jsonmsg, _ := json.Marshal(message)
	s.log.Debug("[-> to client]", string(jsonmsg))
	dap.WriteProtocolMessage(s.conn, message)
}

func (s *Server) onInitializeRequest(request *dap.InitializeRequest) {
	response := &dap.InitializeResponse{Response: *newResponse(request.Request)}
	response.Body.SupportsConfigurationDoneRequest = true
	response.Body.SupportsSetVariable = true
	response.Body.SupportsEvaluateForHovers = true
	response.Body.SupportsReadMemoryRequest = true
	response.Body.SupportsRestartRequest = true
	response.Body.SupportsTerminateRequest = false
	response.Body.SupportsFunctionBreakpoints = false
	response.Body.SupportsStepBack = false
	response.Body.SupportsSetExpression = false
	response.Body.SupportsLoadedSourcesRequest = false
	response.Body.SupportsDisassembleRequest = false
	response.Body.SupportsCancelRequest = false
	s.send(response)
}

func (s *Server) onLaunchRequest(request *dap.LaunchRequest) {
	if s.target != nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch",
			"a snapshot is already open")
		return
	}

	args := LaunchConfig{Snapshot: s.config.Snapshot}
	if err := unmarshalLaunchArgs(request.Arguments, &args); err != nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch",
			fmt.Sprintf("invalid debug configuration - %v", err))
		return
	}
	if args.Snapshot == "" {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch",
			"The snapshot attribute is missing in debug configuration.")
		return
	}
	path, err := filepath.Abs(args.Snapshot)
	if err != nil {
		s.sendInternalErrorResponse(request.Seq, err.Error())
		return
	}

	target, err := replay.Open(path, s.config.Conf)
	if err != nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to launch", err.Error())
		return
	}
	s.setTarget(target)
	s.args = args

	// Notify the client that the snapshot is ready to start accepting
	// configuration requests. The client will end the configuration
	// sequence with 'configurationDone'.
	s.send(&dap.InitializedEvent{Event: *newEvent("initialized")})
	s.send(&dap.LaunchResponse{Response: *newResponse(request.Request)})
}

// onDisconnectRequest handles the DisconnectRequest. Per the DAP spec,
// it releases the snapshot and signals that the debug adaptor
// (in our case this TCP server) can be terminated.
func (s *Server) onDisconnectRequest(request *dap.DisconnectRequest) {
	s.send(&dap.DisconnectResponse{Response: *newResponse(request.Request)})
	s.setTarget(nil)
	s.signalDisconnect()
}

// setTarget replaces the opened snapshot, closing the previous one.
func (s *Server) setTarget(target *replay.Target) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.target != nil {
		s.target.Close()
	}
	s.target = target
}

// onRestartRequest reads the snapshot again, dropping all expansions.
func (s *Server) onRestartRequest(request *dap.RestartRequest) {
	if s.target == nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to restart", "no snapshot")
		return
	}
	if err := s.target.Reload(); err != nil {
		s.sendErrorResponse(request.Request, FailedToLaunch, "Failed to restart", err.Error())
		return
	}
	s.clearStateHandles()
	s.send(&dap.RestartResponse{Response: *newResponse(request.Request)})
	s.sendStoppedEvent("entry")
}

// onSetBreakpointsRequest reports every breakpoint as unverified, the
// snapshot does not run.
func (s *Server) onSetBreakpointsRequest(request *dap.SetBreakpointsRequest) {
	response := &dap.SetBreakpointsResponse{Response: *newResponse(request.Request)}
	response.Body.Breakpoints = make([]dap.Breakpoint, len(request.Arguments.Breakpoints))
	for i, b := range request.Arguments.Breakpoints {
		response.Body.Breakpoints[i].Line = b.Line
		response.Body.Breakpoints[i].Message = "snapshots can not be resumed"
	}
	s.send(response)
}

func (s *Server) onConfigurationDoneRequest(request *dap.ConfigurationDoneRequest) {
	if s.target != nil {
		s.sendStoppedEvent("entry")
	}
	s.send(&dap.ConfigurationDoneResponse{Response: *newResponse(request.Request)})
}

func (s *Server) sendStoppedEvent(reason string) {
	e := &dap.StoppedEvent{Event: *newEvent("stopped")}
	e.Body.Reason = reason
	e.Body.ThreadId = s.threadID()
	e.Body.AllThreadsStopped = true
	s.send(e)
}

func (s *Server) threadID() int {
	if s.target == nil || s.target.Snapshot().Thread == 0 {
		return 1
	}
	return s.target.Snapshot().Thread
}

func (s *Server) onThreadsRequest(request *dap.ThreadsRequest) {
	if s.target == nil {
		s.sendErrorResponse(request.Request, UnableToDisplayThreads, "Unable to display threads", "no snapshot")
		return
	}
	name := s.target.Snapshot().Frame.Function
	if name == "" {
		name = "Dummy"
	}
	response := &dap.ThreadsResponse{
		Response: *newResponse(request.Request),
		Body:     dap.ThreadsResponseBody{Threads: []dap.Thread{{Id: s.threadID(), Name: name}}},
	}
	s.send(response)
}

// onStackTraceRequest handles ‘stackTrace’ requests. A snapshot holds
// a single frame.
func (s *Server) onStackTraceRequest(request *dap.StackTraceRequest) {
	if s.target == nil {
		s.sendErrorResponse(request.Request, UnableToProduceStackTrace, "Unable to produce stack trace", "no snapshot")
		return
	}
	if request.Arguments.ThreadId != s.threadID() {
		s.sendErrorResponse(request.Request, UnableToProduceStackTrace, "Unable to produce stack trace",
			fmt.Sprintf("unknown thread %d", request.Arguments.ThreadId))
		return
	}
	frame := s.target.Snapshot().Frame
	stackFrames := []dap.StackFrame{{
		Id:   s.stackFrameHandles.create(0),
		Name: frame.Function,
		Line: frame.Line,
	}}
	if frame.File != "" {
		stackFrames[0].Source = &dap.Source{Name: filepath.Base(frame.File), Path: frame.File}
	}
	if request.Arguments.StartFrame > 0 {
		stackFrames = stackFrames[:0]
	}
	response := &dap.StackTraceResponse{
		Response: *newResponse(request.Request),
		Body:     dap.StackTraceResponseBody{StackFrames: stackFrames, TotalFrames: 1},
	}
	s.send(response)
}

// onScopesRequest handles 'scopes' requests. The only scope lists the
// top level symbols of the frame.
func (s *Server) onScopesRequest(request *dap.ScopesRequest) {
	if _, ok := s.stackFrameHandles.get(request.Arguments.FrameId); !ok || s.target == nil {
		s.sendErrorResponse(request.Request, UnableToListLocals, "Unable to list locals", fmt.Sprintf("unknown frame id %d", request.Arguments.FrameId))
		return
	}
	ctx := s.target.Context()
	scopeLocals := dap.Scope{Name: "Locals", VariablesReference: s.variableHandles.create(ctx.Prefix())}
	response := &dap.ScopesResponse{
		Response: *newResponse(request.Request),
		Body:     dap.ScopesResponseBody{Scopes: []dap.Scope{scopeLocals}},
	}
	s.send(response)
}

// onVariablesRequest handles 'variables' requests. The children of the
// variable are expanded as needed.
func (s *Server) onVariablesRequest(request *dap.VariablesRequest) {
	iname, ok := s.variableHandles.get(request.Arguments.VariablesReference)
	if !ok || s.target == nil {
		s.sendErrorResponse(request.Request, UnableToLookupVariable, "Unable to lookup variable", fmt.Sprintf("unknown reference %d", request.Arguments.VariablesReference))
		return
	}
	ctx, mem := s.target.Context(), s.target.Memory()
	vars, err := ctx.Children(iname)
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToLookupVariable, "Unable to lookup variable", err.Error())
		return
	}
	children := make([]dap.Variable, len(vars))
	for i := range vars {
		ctx.ApplyDumpers(mem, &vars[i])
		children[i] = s.convertVariable(vars[i])
	}
	response := &dap.VariablesResponse{
		Response: *newResponse(request.Request),
		Body:     dap.VariablesResponseBody{Variables: children},
	}
	s.send(response)
}

// convertVariable converts a projected symbol to a dap.Variable. Variables
// with children get a positive reference that the client can use in a
// subsequent variables request, scalars get the zero reference.
func (s *Server) convertVariable(wd symgroup.WatchData) dap.Variable {
	v := dap.Variable{
		Name:         wd.Name,
		Value:        s.convertValue(wd),
		Type:         wd.Type,
		EvaluateName: s.shortIName(wd.IName),
	}
	if wd.Addr != "0x0" {
		v.MemoryReference = wd.Addr
	}
	if wd.HasChildren == symgroup.True {
		v.VariablesReference = s.variableHandles.create(wd.IName)
	}
	return v
}

func (s *Server) convertValue(wd symgroup.WatchData) string {
	if s.args.ShowAddresses && wd.Addr != "0x0" {
		return fmt.Sprintf("%s (%s)", wd.Value, wd.Addr)
	}
	return wd.Value
}

// shortIName strips the root prefix from iname.
func (s *Server) shortIName(iname string) string {
	ctx := s.target.Context()
	return strings.TrimPrefix(iname, ctx.Prefix()+ctx.Delimiter())
}

// fullIName returns the iname of expr, which may omit the root prefix.
func (s *Server) fullIName(expr string) string {
	ctx := s.target.Context()
	expr = strings.TrimSpace(expr)
	if expr == ctx.Prefix() || strings.HasPrefix(expr, ctx.Prefix()+ctx.Delimiter()) {
		return expr
	}
	return ctx.Prefix() + ctx.Delimiter() + expr
}

// onSetVariableRequest assigns a new value to a child of the variable
// named by the reference and answers with the value as formatted by the
// engine.
func (s *Server) onSetVariableRequest(request *dap.SetVariableRequest) {
	arg := request.Arguments
	parent, ok := s.variableHandles.get(arg.VariablesReference)
	if !ok || s.target == nil {
		s.sendErrorResponse(request.Request, UnableToSetVariable, "Unable to set variable", fmt.Sprintf("unknown reference %d", arg.VariablesReference))
		return
	}
	ctx := s.target.Context()
	vars, err := ctx.Children(parent)
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToSetVariable, "Unable to set variable", err.Error())
		return
	}
	iname := ""
	for _, v := range vars {
		if v.Name == arg.Name {
			iname = v.IName
			break
		}
	}
	if iname == "" {
		s.sendErrorResponse(request.Request, UnableToSetVariable, "Unable to set variable", fmt.Sprintf("could not find %q", arg.Name))
		return
	}
	value, err := ctx.AssignValue(iname, arg.Value)
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToSetVariable, "Unable to set variable", err.Error())
		return
	}
	s.target.Flush()

	response := &dap.SetVariableResponse{Response: *newResponse(request.Request)}
	response.Body.Value = value
	if wd, err := ctx.Project(iname); err == nil {
		response.Body.Type = wd.Type
		if wd.HasChildren == symgroup.True {
			response.Body.VariablesReference = s.variableHandles.create(iname)
		}
	}
	s.send(response)
}

// onEvaluateRequest evaluates an iname, given relative to the root of the
// locals tree or in full.
func (s *Server) onEvaluateRequest(request *dap.EvaluateRequest) {
	showErrorToUser := request.Arguments.Context != "watch" && request.Arguments.Context != "hover"
	if s.target == nil {
		s.sendErrorResponseWithOpts(request.Request, UnableToEvaluateExpression, "Unable to evaluate expression", "no snapshot", showErrorToUser)
		return
	}
	ctx := s.target.Context()
	wd, _, err := ctx.ProjectWithDumpers(s.fullIName(request.Arguments.Expression), s.target.Memory())
	if err != nil {
		s.sendErrorResponseWithOpts(request.Request, UnableToEvaluateExpression, "Unable to evaluate expression", err.Error(), showErrorToUser)
		return
	}
	v := s.convertVariable(wd)
	response := &dap.EvaluateResponse{Response: *newResponse(request.Request)}
	response.Body.Result = v.Value
	response.Body.Type = v.Type
	response.Body.VariablesReference = v.VariablesReference
	response.Body.MemoryReference = v.MemoryReference
	s.send(response)
}

// onReadMemoryRequest reads target memory. Bytes past the first unreadable
// one are reported as unreadable.
func (s *Server) onReadMemoryRequest(request *dap.ReadMemoryRequest) {
	if s.target == nil {
		s.sendErrorResponse(request.Request, UnableToReadMemory, "Unable to read memory", "no snapshot")
		return
	}
	arg := request.Arguments
	addr, err := strconv.ParseUint(arg.MemoryReference, 0, 64)
	if err != nil {
		s.sendErrorResponse(request.Request, UnableToReadMemory, "Unable to read memory", fmt.Sprintf("invalid memory reference %q", arg.MemoryReference))
		return
	}
	if arg.Count < 0 || arg.Count > maxReadMemory {
		s.sendErrorResponse(request.Request, UnableToReadMemory, "Unable to read memory", fmt.Sprintf("count must be between 0 and %d", maxReadMemory))
		return
	}
	addr += uint64(int64(arg.Offset))
	buf := make([]byte, arg.Count)
	n, err := s.target.Memory().ReadMemory(buf, addr)
	if err != nil {
		s.log.Debugf("read of %d bytes at %#x stopped after %d: %v", len(buf), addr, n, err)
	}
	response := &dap.ReadMemoryResponse{Response: *newResponse(request.Request)}
	response.Body.Address = fmt.Sprintf("%#x", addr)
	response.Body.Data = base64.StdEncoding.EncodeToString(buf[:n])
	response.Body.UnreadableBytes = len(buf) - n
	s.send(response)
}

func (s *Server) clearStateHandles() {
	s.stackFrameHandles.reset()
	s.variableHandles.reset()
}

func (s *Server) sendErrorResponseWithOpts(request dap.Request, id int, summary, details string, showUser bool) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.Command = request.Command
	er.RequestSeq = request.Seq
	er.Success = false
	er.Message = summary
	er.Body.Error = &dap.ErrorMessage{
		Id:       id,
		Format:   fmt.Sprintf("%s: %s", summary, details),
		ShowUser: showUser,
	}
	s.log.Error(er.Body.Error.Format)
	s.send(er)
}

func (s *Server) sendErrorResponse(request dap.Request, id int, summary, details string) {
	s.sendErrorResponseWithOpts(request, id, summary, details, false)
}

// sendInternalErrorResponse sends an "internal error" response back to the client.
// We only take a seq here because we don't want to make assumptions about the
// kind of message received by the server that this error is a reply to.
func (s *Server) sendInternalErrorResponse(seq int, details string) {
	er := &dap.ErrorResponse{}
	er.Type = "response"
	er.RequestSeq = seq
	er.Success = false
	er.Message = "Internal Error"
	er.Body.Error = &dap.ErrorMessage{
		Id:     InternalError,
		Format: fmt.Sprintf("%s: %s", er.Message, details),
	}
	s.log.Error(er.Body.Error.Format)
	s.send(er)
}

func (s *Server) sendUnsupportedErrorResponse(request dap.Request) {
	s.sendErrorResponse(request, UnsupportedCommand, "Unsupported command",
		fmt.Sprintf("cannot process '%s' request", request.Command))
}

func newResponse(request dap.Request) *dap.Response {
	return &dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "response",
		},
		Command:    request.Command,
		RequestSeq: request.Seq,
		Success:    true,
	}
}

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  0,
			Type: "event",
		},
		Event: event,
	}
}
