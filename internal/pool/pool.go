// Package pool implements the bounded, FIFO-admission container pool: the
// core scheduler that turns a stream of submitted jobs into a bounded set of
// concurrently running worker containers.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codescord/broker/internal/circuitbreaker"
	"github.com/codescord/broker/internal/metrics"
	"github.com/codescord/broker/internal/protocol"
)

// ContainerManager is the narrow capability the pool needs from container
// orchestration.
type ContainerManager interface {
	Start(ctx context.Context, id string, hostPort int) error
	Stop(ctx context.Context, id string) error
}

// ErrShuttingDown is returned by Submit once the pool has begun shutting
// down.
var ErrShuttingDown = errors.New("pool: shutting down")

// submission is one queued job awaiting admission.
type submission struct {
	job    protocol.Job
	result chan Result
}

// Result is what a submission resolves to: either output text or a
// classified, user-visible failure.
type Result struct {
	Text    string
	Outcome protocol.Outcome
	Err     error
}

// Config parameterizes the pool.
type Config struct {
	StartPort      int
	EndPort        int
	ConnectRetries int // ceiling on connect attempts beyond the first
	Constants      protocol.Constants
}

// Pool is the bounded FIFO admission-controlled scheduler.
type Pool struct {
	cfg     Config
	mgr     ContainerManager
	breaker *circuitbreaker.CircuitBreaker
	log     *slog.Logger
	metrics *metrics.Pool

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []*submission
	usedPorts map[int]bool
	usedIDs   map[string]bool
	inFlight  int
	shutdown  bool
	wg        sync.WaitGroup
	slots     chan struct{}
}

// New builds a Pool with poolSize = EndPort - StartPort + 1 lease slots.
func New(cfg Config, mgr ContainerManager, breaker *circuitbreaker.CircuitBreaker, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	size := cfg.EndPort - cfg.StartPort + 1
	if size <= 0 {
		panic("pool: end port must be >= start port")
	}
	p := &Pool{
		cfg:       cfg,
		mgr:       mgr,
		breaker:   breaker,
		log:       log,
		usedPorts: make(map[int]bool, size),
		usedIDs:   make(map[string]bool, size),
		slots:     make(chan struct{}, size),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < size; i++ {
		p.slots <- struct{}{}
	}
	go p.scheduleLoop()
	return p
}

// SetMetrics attaches the Prometheus collectors the scheduler updates on
// every admission and completion. Optional; a pool with no metrics attached
// simply skips these updates.
func (p *Pool) SetMetrics(m *metrics.Pool) {
	p.metrics = m
}

// Size returns the pool's fixed capacity.
func (p *Pool) Size() int {
	return p.cfg.EndPort - p.cfg.StartPort + 1
}

// Submit enqueues job and blocks until a lease completes it, preserving
// FIFO admission order among concurrent callers.
func (p *Pool) Submit(ctx context.Context, job protocol.Job) (Result, error) {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return Result{}, ErrShuttingDown
	}
	sub := &submission{job: job, result: make(chan Result, 1)}
	p.queue = append(p.queue, sub)
	p.cond.Signal()
	p.mu.Unlock()
	p.reportOccupancy()

	select {
	case res := <-sub.result:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Stats is a point-in-time snapshot for the admin surface.
type Stats struct {
	PoolSize    int
	InFlight    int
	QueueDepth  int
	UsedPorts   []int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	ports := make([]int, 0, len(p.usedPorts))
	for port := range p.usedPorts {
		ports = append(ports, port)
	}
	return Stats{
		PoolSize:   p.Size(),
		InFlight:   p.inFlight,
		QueueDepth: len(p.queue),
		UsedPorts:  ports,
	}
}

// Shutdown stops admitting new submissions and waits (up to grace) for
// in-flight leases to finish.
func (p *Pool) Shutdown(grace time.Duration) {
	p.mu.Lock()
	p.shutdown = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		p.log.Warn("shutdown grace period elapsed with leases still in flight")
	}
}

// scheduleLoop is the single scheduler goroutine: pop FIFO head, acquire a
// slot, mint id/port, spawn the lease.
func (p *Pool) scheduleLoop() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.shutdown {
			p.cond.Wait()
		}
		if p.shutdown && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		sub := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		<-p.slots

		id := "codescord-" + uuid.New().String()
		port := p.allocatePort(id)
		p.reportOccupancy()

		p.wg.Add(1)
		go p.runLease(id, port, sub)
	}
}

// allocatePort scans the bounded range in ascending order for the lowest
// free port, marking it and id in use. A free port always exists because a
// slot token was just acquired in lockstep with the previous release.
func (p *Pool) allocatePort(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usedIDs[id] = true
	for port := p.cfg.StartPort; port <= p.cfg.EndPort; port++ {
		if !p.usedPorts[port] {
			p.usedPorts[port] = true
			p.inFlight++
			return port
		}
	}
	panic("pool: no free port despite acquired slot")
}

func (p *Pool) release(id string, port int) {
	p.mu.Lock()
	delete(p.usedIDs, id)
	delete(p.usedPorts, port)
	p.inFlight--
	p.mu.Unlock()
	p.slots <- struct{}{}
	p.reportOccupancy()
}

// reportOccupancy pushes a fresh gauge snapshot to the attached collectors,
// if any.
func (p *Pool) reportOccupancy() {
	if p.metrics == nil {
		return
	}
	p.mu.Lock()
	inFlight, queueDepth, ports := p.inFlight, len(p.queue), len(p.usedPorts)
	p.mu.Unlock()
	p.metrics.Observe(inFlight, queueDepth, ports)
}

// runLease drives one admitted submission end to end: start the container,
// connect with retry, run the session, publish the result, and always clean
// up, even on panic or early return.
func (p *Pool) runLease(id string, port int, sub *submission) {
	defer p.wg.Done()
	defer p.release(id, port)

	leaseStart := time.Now()
	ctx := context.Background()

	startErr := p.startContainer(ctx, id, port)
	if startErr != nil {
		p.log.Error("failed to start worker container", "id", id, "error", startErr)
		p.deliver(sub, Result{Outcome: protocol.OutcomeLinkFailure, Err: startErr}, leaseStart)
		return
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.mgr.Stop(stopCtx, id); err != nil {
			p.log.Warn("failed to stop worker container", "id", id, "error", err)
		}
	}()

	conn, err := p.connectWithRetry(ctx, port)
	if err != nil {
		p.deliver(sub, Result{Outcome: protocol.OutcomeLinkFailure, Err: err}, leaseStart)
		return
	}
	defer conn.Close()

	text, outcome, err := protocol.RunBrokerSession(conn, p.cfg.Constants, sub.job, p.log)
	p.deliver(sub, Result{Text: text, Outcome: outcome, Err: err}, leaseStart)
}

// deliver publishes a lease's result to its waiting caller and, if metrics
// are attached, records the outcome and total lease duration.
func (p *Pool) deliver(sub *submission, res Result, start time.Time) {
	sub.result <- res
	if p.metrics != nil {
		p.metrics.RecordLease(res.Outcome, time.Since(start).Seconds())
	}
}

func (p *Pool) startContainer(ctx context.Context, id string, port int) error {
	if p.breaker == nil {
		return p.mgr.Start(ctx, id, port)
	}
	return p.breaker.Execute(func() error {
		return p.mgr.Start(ctx, id, port)
	})
}

// connectWithRetry waits roughly 450ms for the worker to bind, then retries
// the TCP connect with a fixed back-off: 100ms before the first retry,
// 500ms before each subsequent one, bounded by cfg.ConnectRetries retries
// after the first attempt.
func (p *Pool) connectWithRetry(ctx context.Context, port int) (net.Conn, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	time.Sleep(450 * time.Millisecond)

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt <= p.cfg.ConnectRetries; attempt++ {
		dialer := net.Dialer{}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt == p.cfg.ConnectRetries {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff = 500 * time.Millisecond
	}
	return nil, fmt.Errorf("pool: connect to worker at %s: %w", addr, lastErr)
}
