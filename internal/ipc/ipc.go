// Package ipc is the local control channel: iveri-ctl sends one JSON
// command over a unix socket and the running assistant reacts to it.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const DefaultSocketPath = "/tmp/iveri.sock"

const (
	CmdTrigger = "trigger"
	CmdPing    = "ping"
)

type ControlMessage struct {
	Cmd  string   `json:"cmd"`
	Args []string `json:"args,omitempty"`
}

type ControlReply struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type Server struct {
	ln      net.Listener
	path    string
	handler func(ControlMessage) error
	logger  *log.Logger
}

// Listen binds the socket, replacing a stale one.
func Listen(path string, handler func(ControlMessage) error, logger *log.Logger) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	if logger == nil {
		logger = log.Default()
	}

	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}

	return &Server{ln: ln, path: path, handler: handler, logger: logger}, nil
}

// Serve accepts connections until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("Accept failed", "err", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.ln.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		s.logger.Debug("Bad control message", "err", err)
		return
	}

	s.logger.Debug("Control message", "cmd", msg.Cmd)

	reply := ControlReply{Ok: true}
	if err := s.handler(msg); err != nil {
		reply = ControlReply{Error: err.Error()}
	}
	_ = json.NewEncoder(conn).Encode(reply)
}

// SendCommand delivers cmd to the assistant listening on path.
func SendCommand(path, cmd string, args ...string) error {
	if path == "" {
		path = DefaultSocketPath
	}

	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd, Args: args}); err != nil {
		return err
	}

	var reply ControlReply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if !reply.Ok {
		return errors.New(reply.Error)
	}
	return nil
}
