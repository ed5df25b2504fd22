package protocol

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	out []byte
	ok  bool
	err error
}

func (s stubRunner) Run(ctx context.Context, lang string, code []byte, argv string) ([]byte, bool, error) {
	return s.out, s.ok, s.err
}

func runPair(t *testing.T, runner Runner, job Job) (string, Outcome, error) {
	t.Helper()
	brokerConn, workerConn := net.Pipe()
	defer brokerConn.Close()
	defer workerConn.Close()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		RunWorkerSession(context.Background(), workerConn, DefaultConstants, runner, nil)
	}()

	out, outcome, err := RunBrokerSession(brokerConn, DefaultConstants, job, nil)
	<-workerDone
	return out, outcome, err
}

func TestSessionHappyPath(t *testing.T) {
	out, outcome, err := runPair(t,
		stubRunner{out: []byte("Hello World!\n"), ok: true},
		Job{Language: "python", Code: []byte("print('Hello World!')"), Argv: ""},
	)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, "Hello World!\n", out)
}

func TestSessionLangUnsupported(t *testing.T) {
	_, outcome, err := runPair(t,
		stubRunner{err: ErrLangUnsupported},
		Job{Language: "brainfuck", Code: []byte("+++"), Argv: ""},
	)
	require.Error(t, err)
	assert.Equal(t, OutcomeLangUnsupported, outcome)
}

func TestSessionJobTimeout(t *testing.T) {
	_, outcome, err := runPair(t,
		stubRunner{err: ErrJobTimeout},
		Job{Language: "python", Code: []byte("while True: pass"), Argv: ""},
	)
	require.Error(t, err)
	assert.Equal(t, OutcomeWorkerTimeout, outcome)
}

func TestSessionProtocolMismatch(t *testing.T) {
	brokerConn, workerConn := net.Pipe()
	defer brokerConn.Close()
	defer workerConn.Close()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		mismatched := DefaultConstants
		mismatched.MaxChunk = 1
		RunWorkerSession(context.Background(), workerConn, mismatched, stubRunner{}, nil)
	}()

	_, outcome, err := RunBrokerSession(brokerConn, DefaultConstants, Job{Language: "python"}, nil)
	<-workerDone
	require.Error(t, err)
	assert.Equal(t, OutcomeProtocolMismatch, outcome)
}

func TestWorkerSessionClosesOnClose(t *testing.T) {
	brokerConn, workerConn := net.Pipe()
	defer brokerConn.Close()
	defer workerConn.Close()

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- RunWorkerSession(context.Background(), workerConn, DefaultConstants, stubRunner{}, nil)
	}()

	require.NoError(t, SendStatus(brokerConn, Close))
	status, err := RecvStatus(brokerConn)
	require.NoError(t, err)
	assert.Equal(t, Success, status)

	select {
	case err := <-workerDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker session did not return after CLOSE")
	}
}
