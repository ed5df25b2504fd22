package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// Runner executes a single job and captures its output. Implementations
// decide ok (exit status) and return ErrLangUnsupported/ErrJobTimeout to
// signal those specific outcomes to the worker-side session.
type Runner interface {
	Run(ctx context.Context, lang string, code []byte, argv string) (out []byte, ok bool, err error)
}

// RunWorkerSession drives one accepted connection through the worker-side
// state machine: AUTHENTICATE, then a single FILE exchange, then AWAIT_CLOSE.
// It returns when the broker sends CLOSE or the connection fails.
func RunWorkerSession(ctx context.Context, conn net.Conn, constants Constants, runner Runner, log *slog.Logger) error {
	for {
		status, err := RecvStatus(conn)
		if err != nil {
			return err
		}
		switch status {
		case Authenticate:
			if err := handleAuthenticate(conn, constants); err != nil {
				return err
			}
		case File:
			if err := handleFile(ctx, conn, runner, log); err != nil {
				return err
			}
		case Close:
			return SendStatus(conn, Success)
		default:
			if status.String() == "UNKNOWN" {
				// A byte outside the code table: close without replying.
				return fmt.Errorf("%w: unknown instruction byte %d", ErrProtocol, uint8(status))
			}
			_ = SendStatus(conn, InternalError)
			return errors.New("protocol: unexpected instruction from broker")
		}
	}
}

func handleAuthenticate(conn net.Conn, constants Constants) error {
	if err := SendStatus(conn, Success); err != nil {
		return err
	}
	peerHS, err := RecvBlob(conn)
	if err != nil {
		return err
	}
	if string(peerHS) != HandshakeString(constants) {
		return SendStatus(conn, NotImpl)
	}
	return SendStatus(conn, Success)
}

func handleFile(ctx context.Context, conn net.Conn, runner Runner, log *slog.Logger) error {
	if err := SendStatus(conn, Success); err != nil {
		return err
	}
	langB, err := RecvBlob(conn)
	if err != nil {
		return err
	}
	code, err := RecvBlob(conn)
	if err != nil {
		return err
	}
	argvB, err := RecvBlob(conn)
	if err != nil {
		return err
	}
	if err := expectStatus(conn, Awaiting); err != nil {
		return err
	}

	out, ok, runErr := runner.Run(ctx, string(langB), code, string(argvB))
	switch {
	case errors.Is(runErr, ErrLangUnsupported):
		return SendStatus(conn, LangNotImpl)
	case errors.Is(runErr, ErrJobTimeout):
		return SendStatus(conn, ProcessTimeout)
	case runErr != nil:
		if log != nil {
			log.Error("job execution failed", "error", runErr)
		}
		return SendStatus(conn, InternalError)
	}
	_ = ok // captured in out; exit status only determines which stream was returned

	if err := SendStatus(conn, Text); err != nil {
		return err
	}
	if err := expectStatus(conn, Success); err != nil {
		return err
	}
	if err := SendBlob(conn, out); err != nil {
		return err
	}
	return SendStatus(conn, Awaiting)
}
