// Package workerserver runs the in-container TCP listener that accepts one
// broker session per connection and drives it against a language runner.
package workerserver

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/codescord/broker/internal/protocol"
)

// DefaultPort is the fixed in-container port the worker listens on.
const DefaultPort = 6090

// Server accepts connections and runs one worker-side protocol session per
// connection, until its listener is closed or the parent context is
// cancelled.
type Server struct {
	addr      string
	constants protocol.Constants
	runner    protocol.Runner
	log       *slog.Logger
}

// New builds a Server bound to addr (typically ":6090" inside the
// container).
func New(addr string, constants protocol.Constants, runner protocol.Runner, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{addr: addr, constants: constants, runner: runner, log: log}
}

// Run listens and serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info("worker listening", "addr", s.addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return err
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	if err := protocol.RunWorkerSession(ctx, conn, s.constants, s.runner, s.log); err != nil {
		s.log.Warn("worker session ended", "remote", conn.RemoteAddr(), "error", err)
	}
}
