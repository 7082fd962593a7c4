package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/gobeyondidentity/attestd/pkg/rot"
)

// DefaultReadTimeout bounds how long a connection may take to deliver its
// command line. A client that never completes its line stalls only until
// the deadline, not forever.
const DefaultReadTimeout = 10 * time.Second

// Server accepts connections on a unix domain socket and dispatches
// protocol commands to an attester capability.
//
// Connections are handled strictly sequentially: one command, one
// response, close, then the accept loop advances. The attester is the only
// state shared across connections and is treated as read-only.
type Server struct {
	attester rot.Attester
	listener net.Listener
	path     string

	// ReadTimeout is the per-connection deadline for receiving a full
	// command line. Zero disables the deadline.
	ReadTimeout time.Duration
}

// NewServer binds the socket at path. Creation fails if the path already
// exists; stale sockets are never cleaned up implicitly.
func NewServer(path string, attester rot.Attester) (*Server, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("socket path %s already exists", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("socket path %s: %w", path, err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to bind socket %s: %w", path, err)
	}

	return &Server{
		attester:    attester,
		listener:    listener,
		path:        path,
		ReadTimeout: DefaultReadTimeout,
	}, nil
}

// Path returns the socket path the server is bound to.
func (s *Server) Path() string {
	return s.path
}

// Run accepts and serves connections until Close is called. A failure on
// one connection is logged and dropped; it never stops the accept loop.
func (s *Server) Run() error {
	log.Printf("[transport] listening on %s", s.path)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		// Handled to completion before the next accept; connections are
		// never multiplexed.
		if err := s.handle(conn); err != nil {
			log.Printf("[transport] connection error: %v", err)
		}
	}
}

// Close stops the accept loop and removes the socket file.
func (s *Server) Close() error {
	err := s.listener.Close()
	if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

// handle serves one connection: read one command line, dispatch, write one
// response line. The read buffer is fresh per connection so no bytes from
// a previous exchange can leak into this one.
func (s *Server) handle(conn net.Conn) error {
	defer conn.Close()

	id := uuid.NewString()[:8]
	log.Printf("[transport] conn %s: accepted", id)

	if s.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			return fmt.Errorf("conn %s: set read deadline: %w", id, err)
		}
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("conn %s: read command: %w", id, err)
	}

	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		return fmt.Errorf("conn %s: decode command: %w", id, err)
	}
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("conn %s: %w", id, err)
	}
	log.Printf("[transport] conn %s: command %s", id, cmd.name())

	resp, err := s.dispatch(&cmd)
	if err != nil {
		return fmt.Errorf("conn %s: %s: %w", id, cmd.name(), err)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("conn %s: encode response: %w", id, err)
	}
	out = append(out, '\n')

	// One atomic write for the whole framed response.
	if _, err := conn.Write(out); err != nil {
		return fmt.Errorf("conn %s: write response: %w", id, err)
	}

	log.Printf("[transport] conn %s: done", id)
	return nil
}

// dispatch routes a validated command to the attester capability.
func (s *Server) dispatch(cmd *Command) (interface{}, error) {
	switch {
	case cmd.Attest != nil:
		return s.attester.Attest(cmd.Attest.Nonce, cmd.Attest.UserData)
	case cmd.GetMeasurementLogs != nil:
		return s.attester.MeasurementLogs()
	case cmd.GetCertChains != nil:
		return s.attester.CertChains()
	default:
		return nil, fmt.Errorf("%w: empty command", rot.ErrMalformed)
	}
}
