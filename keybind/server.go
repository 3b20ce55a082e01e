package keybind

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

var serverLog = log.WithField("component", "control")

// Control-plane commands.
const (
	CmdGetBindings   = "get_bindings"
	CmdSetBinding    = "set_binding"
	CmdRemoveBinding = "remove_binding"
	CmdListActions   = "list_actions"
)

// Request is one newline-delimited control message.
type Request struct {
	Command  string          `json:"command"`
	ActionID string          `json:"action_id,omitempty"`
	Action   *keydial.Action `json:"action,omitempty"`
}

// Response is the single reply to a Request. Status is "success" or "error".
type Response struct {
	Status   string                             `json:"status"`
	Message  string                             `json:"message,omitempty"`
	Bindings map[keydial.ActionID]keydial.Action `json:"bindings,omitempty"`
	Actions  []keydial.ActionID                 `json:"actions,omitempty"`
}

func okResponse(msg string) Response {
	return Response{Status: "success", Message: msg}
}

func errResponse(msg string) Response {
	return Response{Status: "error", Message: msg}
}

// Server exposes the binding table over a unix socket. Mutations are
// serialized by the table; the server only shapes requests and responses.
type Server struct {
	table      *Table
	socketPath string

	mu       sync.Mutex
	listener net.Listener
	open     map[net.Conn]struct{}
	closing  bool
	conns    sync.WaitGroup
	shutdown sync.Once
}

func NewServer(table *Table, socketPath string) *Server {
	return &Server{
		table:      table,
		socketPath: socketPath,
		open:       make(map[net.Conn]struct{}),
	}
}

// Start binds the socket and begins serving. It removes a stale socket file
// left behind by a previous run; a path occupied by a non-socket is an error.
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return errors.Wrap(keydial.ErrResource, err.Error())
	}
	if st, err := os.Lstat(s.socketPath); err == nil {
		if st.Mode()&os.ModeSocket == 0 {
			return errors.Wrapf(keydial.ErrResource, "%s exists and is not a socket", s.socketPath)
		}
		if err := os.Remove(s.socketPath); err != nil {
			return errors.Wrap(keydial.ErrResource, err.Error())
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(keydial.ErrResource, err.Error())
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.Wrap(keydial.ErrResource, err.Error())
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close()
		return errors.Wrap(keydial.ErrResource, err.Error())
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	serverLog.Infof("control socket listening at %s", s.socketPath)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed on shutdown.
			return
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			defer s.untrack(conn)
			s.serveConn(conn)
		}()
	}
}

// track registers an open connection so Stop can close it; a connection
// accepted during shutdown is refused.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.open[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.open, conn)
	s.mu.Unlock()
}

// serveConn handles any number of newline-delimited requests on one
// connection. Malformed requests yield an error response, never a closed
// socket. The client closes the connection.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		var resp Response
		if err := json.Unmarshal(line, &req); err != nil {
			resp = errResponse("invalid JSON")
		} else {
			resp = s.handle(req)
		}
		payload, err := json.Marshal(resp)
		if err != nil {
			serverLog.Warnf("marshal response: %v", err)
			return
		}
		payload = append(payload, '\n')
		if _, err := conn.Write(payload); err != nil {
			serverLog.Debugf("write response: %v", err)
			return
		}
	}
}

func (s *Server) handle(req Request) Response {
	switch req.Command {
	case CmdGetBindings:
		return Response{Status: "success", Bindings: s.table.All()}
	case CmdSetBinding:
		return s.handleSet(req)
	case CmdRemoveBinding:
		return s.handleRemove(req)
	case CmdListActions:
		return Response{Status: "success", Actions: s.table.ActionIDs()}
	default:
		return errResponse("unknown command: " + req.Command)
	}
}

func (s *Server) handleSet(req Request) Response {
	if req.ActionID == "" || req.Action == nil {
		return errResponse("missing action_id or action")
	}
	id, err := keydial.CanonicalizeActionID(req.ActionID)
	if err != nil {
		return errResponse(err.Error())
	}
	action := *req.Action
	if action.Type == "" {
		action.Type = keydial.ActionKeyboard
	}
	if err := action.Validate(); err != nil {
		return errResponse("invalid action data: " + err.Error())
	}
	s.table.Set(id, action)
	serverLog.Infof("set binding %s: %s", id, action.Description)
	return okResponse("binding " + string(id) + " updated")
}

func (s *Server) handleRemove(req Request) Response {
	if req.ActionID == "" {
		return errResponse("missing action_id")
	}
	id, err := keydial.CanonicalizeActionID(req.ActionID)
	if err != nil {
		return errResponse(err.Error())
	}
	if !s.table.Remove(id) {
		return errResponse("binding " + string(id) + " not found")
	}
	serverLog.Infof("removed binding %s", id)
	return okResponse("binding " + string(id) + " removed")
}

// Stop closes the listener and every open connection, waits for their
// handlers, and removes the socket file so a restart can bind cleanly.
// Open connections must be closed here: the protocol permits idle long-lived
// clients, and waiting them out would park shutdown forever.
func (s *Server) Stop() {
	s.shutdown.Do(func() {
		s.mu.Lock()
		s.closing = true
		ln := s.listener
		s.listener = nil
		for conn := range s.open {
			conn.Close()
		}
		s.mu.Unlock()
		if ln != nil {
			ln.Close()
		}
		s.conns.Wait()
		if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			serverLog.Warnf("remove control socket: %v", err)
		}
		serverLog.Info("control socket stopped")
	})
}
