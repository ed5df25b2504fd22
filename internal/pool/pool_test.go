package pool

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescord/broker/internal/protocol"
)

// fakeContainerManager runs an in-process worker listener instead of a real
// container, so the pool's scheduling logic can be exercised without
// Docker.
type fakeContainerManager struct {
	mu        sync.Mutex
	listeners map[string]net.Listener
	starts    []string // ids in the order Start was called
	maxLive   int      // most listeners ever running at once
	runner    protocol.Runner
	readyWait time.Duration
}

func newFakeContainerManager(runner protocol.Runner) *fakeContainerManager {
	return &fakeContainerManager{listeners: make(map[string]net.Listener), runner: runner}
}

func (f *fakeContainerManager) Start(ctx context.Context, id string, hostPort int) error {
	f.mu.Lock()
	f.starts = append(f.starts, id)
	f.mu.Unlock()

	if f.readyWait > 0 {
		time.Sleep(f.readyWait)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", hostPort))
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.listeners[id] = ln
	if len(f.listeners) > f.maxLive {
		f.maxLive = len(f.listeners)
	}
	f.mu.Unlock()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go protocol.RunWorkerSession(context.Background(), conn, protocol.DefaultConstants, f.runner, nil)
		}
	}()
	return nil
}

func (f *fakeContainerManager) Stop(ctx context.Context, id string) error {
	f.mu.Lock()
	ln, ok := f.listeners[id]
	delete(f.listeners, id)
	f.mu.Unlock()
	if ok {
		return ln.Close()
	}
	return nil
}

type echoRunner struct{}

func (echoRunner) Run(ctx context.Context, lang string, code []byte, argv string) ([]byte, bool, error) {
	return []byte("Hello World!\n"), true, nil
}

func newTestPool(t *testing.T, startPort, endPort int, mgr ContainerManager) *Pool {
	t.Helper()
	cfg := Config{
		StartPort:      startPort,
		EndPort:        endPort,
		ConnectRetries: 5,
		Constants:      protocol.DefaultConstants,
	}
	return New(cfg, mgr, nil, nil)
}

func TestPoolHappyPath(t *testing.T) {
	mgr := newFakeContainerManager(echoRunner{})
	p := newTestPool(t, 41000, 41000, mgr)

	res, err := p.Submit(context.Background(), protocol.Job{Language: "python", Code: []byte("print('Hello World!')")})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, protocol.OutcomeSuccess, res.Outcome)
	assert.Equal(t, "Hello World!\n", res.Text)

	// The result is delivered before the lease's deferred cleanup runs.
	require.Eventually(t, func() bool { return p.Stats().InFlight == 0 }, 2*time.Second, 5*time.Millisecond)
	stats := p.Stats()
	assert.Equal(t, 0, stats.InFlight)
	assert.Empty(t, stats.UsedPorts)
}

func TestPoolBoundedConcurrency(t *testing.T) {
	mgr := newFakeContainerManager(echoRunner{})
	mgr.readyWait = 50 * time.Millisecond
	p := newTestPool(t, 41010, 41011, mgr) // pool size 2

	var wg sync.WaitGroup
	results := make([]Result, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := p.Submit(context.Background(), protocol.Job{Language: "python", Code: []byte("x")})
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, protocol.OutcomeSuccess, r.Outcome)
	}
	assert.LessOrEqual(t, len(mgr.starts), 5)
	mgr.mu.Lock()
	assert.LessOrEqual(t, mgr.maxLive, 2)
	mgr.mu.Unlock()
}

func TestPoolFIFOAdmissionOrder(t *testing.T) {
	mgr := newFakeContainerManager(echoRunner{})
	p := newTestPool(t, 41020, 41020, mgr) // pool size 1

	first := make(chan struct{})
	var order []string
	var mu sync.Mutex

	go func() {
		res, _ := p.Submit(context.Background(), protocol.Job{Language: "python"})
		mu.Lock()
		order = append(order, "a:"+res.Outcome.String())
		mu.Unlock()
		close(first)
	}()
	<-first // ensure A is admitted (and completed, pool size 1) before B is submitted

	res, err := p.Submit(context.Background(), protocol.Job{Language: "python"})
	require.NoError(t, err)
	mu.Lock()
	order = append(order, "b:"+res.Outcome.String())
	mu.Unlock()

	require.Len(t, order, 2)
	assert.Equal(t, "a:success", order[0])
	assert.Equal(t, "b:success", order[1])
}

func TestPoolStartFailureReportsLinkFailure(t *testing.T) {
	mgr := &erroringContainerManager{}
	p := newTestPool(t, 41030, 41030, mgr)

	res, err := p.Submit(context.Background(), protocol.Job{Language: "python"})
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeLinkFailure, res.Outcome)
	assert.Error(t, res.Err)
}

type erroringContainerManager struct{}

func (erroringContainerManager) Start(ctx context.Context, id string, hostPort int) error {
	return fmt.Errorf("docker daemon unreachable")
}
func (erroringContainerManager) Stop(ctx context.Context, id string) error { return nil }
