// Package executor implements the fixed-size pool of reactors that
// sessions are bound to for their entire lifetime, and the acceptor's
// round-robin assignment policy across them.
package executor

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/puttle-proxy/puttle/internal/clog"
	"github.com/puttle-proxy/puttle/internal/puttleproxy"
)

// Executor is one member of the pool a session is bound to for its
// lifetime. It carries no session-local state of its own beyond simple
// counters; Go's scheduler does the actual work-stealing across OS
// threads, so the identity that matters here is bookkeeping, not a real
// single-threaded event loop.
type Executor struct {
	id       int
	sessions int64
	bytesUp  int64
	bytesDn  int64
}

// ID returns the executor's position in its pool.
func (e *Executor) ID() int { return e.id }

// Stats reports the executor's lifetime counters.
func (e *Executor) Stats() (sessions, bytesUp, bytesDown int64) {
	return atomic.LoadInt64(&e.sessions),
		atomic.LoadInt64(&e.bytesUp),
		atomic.LoadInt64(&e.bytesDn)
}

// run executes session on this executor, reporting the result on done
// once the session terminates.
func (e *Executor) run(session *puttleproxy.Session, done chan<- puttleproxy.Stats) {
	stats := session.Run()
	atomic.AddInt64(&e.sessions, 1)
	atomic.AddInt64(&e.bytesUp, stats.BytesUp)
	atomic.AddInt64(&e.bytesDn, stats.BytesDown)
	clog.Debug("executor %d: session %s done (%s)", e.id, stats.ID, stats.TerminalNote)
	if done != nil {
		done <- stats
	}
}

// Pool is a fixed-size set of executors with round-robin assignment: the
// front of the rotation is dequeued, a new session is bound to it, and it
// is enqueued at the back, matching the acceptor's rotating-queue policy.
type Pool struct {
	mu        sync.Mutex
	rotation  []*Executor
	Done      chan puttleproxy.Stats
	upstreams []puttleproxy.Upstream
	dialTTL   int
}

// NewPool builds a pool of n executors bound to the given upstream list
// and dial TTL. Every dispatched session draws its own shuffled snapshot
// of upstreams from puttleproxy.NewSession.
func NewPool(n int, upstreams []puttleproxy.Upstream, dialTTL int) *Pool {
	rotation := make([]*Executor, n)
	for i := range rotation {
		rotation[i] = &Executor{id: i}
	}
	return &Pool{
		rotation:  rotation,
		Done:      make(chan puttleproxy.Stats, 64),
		upstreams: upstreams,
		dialTTL:   dialTTL,
	}
}

// Dispatch binds a new session for conn to the next executor in rotation
// and starts it. It returns immediately; the session runs concurrently.
func (p *Pool) Dispatch(conn net.Conn) {
	e := p.nextExecutor()
	session := puttleproxy.NewSession(conn, p.upstreams, p.dialTTL)
	go e.run(session, p.Done)
}

// nextExecutor dequeues the front executor and enqueues it at the back.
func (p *Pool) nextExecutor() *Executor {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := p.rotation[0]
	p.rotation = append(p.rotation[1:], e)
	return e
}

// Executors returns a snapshot of the pool's executors, in no guaranteed
// order, for stats reporting.
func (p *Pool) Executors() []*Executor {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Executor, len(p.rotation))
	copy(out, p.rotation)
	return out
}
