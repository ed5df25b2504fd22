package protocol

import (
	"fmt"
	"log/slog"
	"net"
)

// Job is the (language, code, argv) triple a broker-side session sends to a
// worker.
type Job struct {
	Language string
	Code     []byte
	Argv     string
}

// RunBrokerSession drives one full conversation with a worker over conn and
// returns the worker's result text on success. On any failure it returns a
// non-success Outcome and a wrapped error describing the cause; it never
// retries within the session (that's the lease goroutine's job, at the
// connect boundary only).
func RunBrokerSession(conn net.Conn, constants Constants, job Job, log *slog.Logger) (string, Outcome, error) {
	if err := SendStatus(conn, Authenticate); err != nil {
		return "", OutcomeLinkFailure, err
	}
	if err := expectStatus(conn, Success); err != nil {
		return "", OutcomeLinkFailure, err
	}
	hs := HandshakeString(constants)
	if err := SendBlob(conn, []byte(hs)); err != nil {
		return "", OutcomeLinkFailure, err
	}
	ackStatus, err := RecvStatus(conn)
	if err != nil {
		return "", OutcomeLinkFailure, err
	}
	if ackStatus != Success {
		if log != nil {
			log.Debug("handshake rejected", "fingerprint", Fingerprint(hs))
		}
		drainClose(conn)
		return "", OutcomeProtocolMismatch, fmt.Errorf("%w: worker rejected handshake", ErrProtocol)
	}

	if err := SendStatus(conn, File); err != nil {
		return "", OutcomeLinkFailure, err
	}
	if err := expectStatus(conn, Success); err != nil {
		return "", OutcomeWorkerInternal, fmt.Errorf("%w: worker rejected FILE", ErrProtocol)
	}

	for _, blob := range [][]byte{[]byte(job.Language), job.Code, []byte(job.Argv)} {
		if err := SendBlob(conn, blob); err != nil {
			return "", OutcomeLinkFailure, err
		}
	}
	if err := SendStatus(conn, Awaiting); err != nil {
		return "", OutcomeLinkFailure, err
	}

	resultStatus, err := RecvStatus(conn)
	if err != nil {
		return "", OutcomeLinkFailure, err
	}
	switch resultStatus {
	case LangNotImpl:
		drainClose(conn)
		return "", OutcomeLangUnsupported, fmt.Errorf("language %q not implemented on worker", job.Language)
	case ProcessTimeout:
		drainClose(conn)
		return "", OutcomeWorkerTimeout, fmt.Errorf("worker reported process timeout")
	case InternalError:
		drainClose(conn)
		return "", OutcomeWorkerInternal, fmt.Errorf("worker reported internal error")
	case Text:
		// falls through to result read below
	default:
		return "", OutcomeWorkerInternal, fmt.Errorf("%w: unexpected status %s before result", ErrProtocol, resultStatus)
	}

	if err := SendStatus(conn, Success); err != nil {
		return "", OutcomeLinkFailure, err
	}
	out, err := RecvBlob(conn)
	if err != nil {
		return "", OutcomeLinkFailure, err
	}
	if err := expectStatus(conn, Awaiting); err != nil {
		return "", OutcomeLinkFailure, err
	}

	if err := SendStatus(conn, Close); err != nil {
		return "", OutcomeLinkFailure, err
	}
	if err := expectStatus(conn, Success); err != nil {
		return "", OutcomeLinkFailure, err
	}
	return string(out), OutcomeSuccess, nil
}

// drainClose best-effort sends CLOSE on a session that is ending abnormally
// and reads the worker's acknowledgement, so the worker doesn't block on
// AwaitInstruction (or on its CLOSE reply) until its own deadline.
func drainClose(conn net.Conn) {
	if err := SendStatus(conn, Close); err == nil {
		_, _ = RecvStatus(conn)
	}
}
