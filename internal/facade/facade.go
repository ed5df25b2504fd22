// Package facade exposes the single public entry point a front-end
// collaborator calls to run untrusted code: Submit.
package facade

import (
	"context"
	"errors"
	"fmt"

	"github.com/codescord/broker/internal/pool"
	"github.com/codescord/broker/internal/protocol"
)

// cannedMessages maps each failure Outcome to the exact string returned to
// the submitter. Submit never surfaces a Go error for these; they are
// folded into the success string so callers always get one result.
var cannedMessages = map[protocol.Outcome]string{
	protocol.OutcomeLinkFailure:      "Processing server down. Please try again later.",
	protocol.OutcomeProtocolMismatch: "client protocol out of sync with server, please contact developer for update.",
	protocol.OutcomeWorkerInternal:   "something went wrong internally, please contact developer.",
	protocol.OutcomeWorkerTimeout:    "process took longer than the allotted time and was terminated.",
}

func languageUnsupportedMessage(lang string) string {
	return fmt.Sprintf("language %q is not implemented on the server.", lang)
}

// Facade is the broker-facing entry point: enqueue a job, wait for the
// pool to run it, translate the outcome into user-visible text.
type Facade struct {
	pool *pool.Pool
}

// New wraps pool behind the public Submit surface.
func New(p *pool.Pool) *Facade {
	return &Facade{pool: p}
}

// Submit runs source and returns the text the submitter should see. It
// returns a Go error only for a nil context or when ctx ends before the
// result arrives. A pool that is shutting down, an open circuit breaker and
// every protocol or execution failure are folded into the returned text per
// the error taxonomy.
func (f *Facade) Submit(ctx context.Context, language string, code []byte, argv string) (string, error) {
	if ctx == nil {
		return "", errors.New("facade: nil context")
	}

	job := protocol.Job{Language: language, Code: code, Argv: argv}
	res, err := f.pool.Submit(ctx, job)
	if err != nil {
		if errors.Is(err, pool.ErrShuttingDown) {
			return cannedMessages[protocol.OutcomeLinkFailure], nil
		}
		return "", err
	}

	if res.Outcome == protocol.OutcomeSuccess {
		return res.Text, nil
	}
	if res.Outcome == protocol.OutcomeLangUnsupported {
		return languageUnsupportedMessage(language), nil
	}
	if msg, ok := cannedMessages[res.Outcome]; ok {
		return msg, nil
	}
	return cannedMessages[protocol.OutcomeWorkerInternal], nil
}
