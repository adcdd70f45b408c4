package ldapclient

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/dirctl/ldapdm/internal/direrr"
	"github.com/dirctl/ldapdm/internal/retry"
)

// pooledConn wraps one bound *ldap.Conn with the bookkeeping the pool needs
// to decide whether it is still reusable.
type pooledConn struct {
	conn       *ldap.Conn
	createdAt  time.Time
	lastUsedAt time.Time
	mu         sync.Mutex
	healthy    bool
}

// pool is a bounded set of bound connections to a single LDAP server,
// acquired by sweeping expired idle connections, reusing a free one, or
// creating a new one under the configured cap; callers beyond the cap poll
// at AcquirePollEvery (spec.md §4.1 "Connection pool").
type pool struct {
	cfg Config

	mu    sync.Mutex
	idle  []*pooledConn
	count int32 // total live connections, idle + checked out

	closed int32

	acquired atomic.Int64
	failed   atomic.Int64
}

func newPool(cfg Config) *pool {
	return &pool{cfg: cfg}
}

// Stats mirrors the teacher's PoolStats shape, exposed via the health
// endpoint (internal/web).
type Stats struct {
	TotalConnections int32 `json:"totalConnections"`
	IdleConnections  int32 `json:"idleConnections"`
	MaxConnections   int32 `json:"maxConnections"`
	AcquiredCount    int64 `json:"acquiredCount"`
	FailedCount      int64 `json:"failedCount"`
}

func (p *pool) Stats() Stats {
	p.mu.Lock()
	idle := len(p.idle)
	p.mu.Unlock()

	return Stats{
		TotalConnections: atomic.LoadInt32(&p.count),
		IdleConnections:  int32(idle),
		MaxConnections:   int32(p.cfg.PoolSize),
		AcquiredCount:    p.acquired.Load(),
		FailedCount:      p.failed.Load(),
	}
}

// acquire implements spec.md's documented algorithm: sweep expired idle
// connections, return the first free one, otherwise create under the cap,
// otherwise poll every AcquirePollEvery until one frees up or ctx is done.
func (p *pool) acquire(ctx context.Context) (*pooledConn, error) {
	if atomic.LoadInt32(&p.closed) == 1 {
		return nil, direrr.Kind(direrr.ErrIOFailed, "connection pool is closed")
	}

	for {
		p.sweepExpired()

		if conn, ok := p.takeIdle(); ok {
			p.acquired.Add(1)
			return conn, nil
		}

		if int(atomic.LoadInt32(&p.count)) < p.cfg.PoolSize {
			conn, err := p.create(ctx)
			if err != nil {
				p.failed.Add(1)
				return nil, err
			}

			p.acquired.Add(1)

			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.cfg.AcquirePollEvery):
		}
	}
}

func (p *pool) takeIdle() (*pooledConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) == 0 {
		return nil, false
	}

	conn := p.idle[len(p.idle)-1]
	p.idle = p.idle[:len(p.idle)-1]

	return conn, true
}

func (p *pool) sweepExpired() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) == 0 {
		return
	}

	kept := p.idle[:0]

	for _, c := range p.idle {
		if time.Since(c.lastUsedAt) > p.cfg.ConnectionTTL {
			p.closeLocked(c)
			continue
		}

		kept = append(kept, c)
	}

	p.idle = kept
}

// create dials and binds a new connection, retrying transient dial/bind
// failures with backoff (spec.md §4.1 connection pool, resilience carried
// from the teacher's internal/retry package rather than a bare one-shot
// dial).
func (p *pool) create(ctx context.Context) (*pooledConn, error) {
	conn, err := retry.DoWithResultConfig(ctx, retry.LDAPConfig(), func() (*pooledConn, error) {
		return dialAndBind(p.cfg)
	})
	if err != nil {
		return nil, err
	}

	atomic.AddInt32(&p.count, 1)

	return conn, nil
}

func dialAndBind(cfg Config) (*pooledConn, error) {
	conn, err := ldap.DialURL(cfg.URL)
	if err != nil {
		return nil, direrr.Kind(direrr.ErrBindFailed, "dial %s: %v", cfg.URL, err)
	}

	if cfg.TimeLimit > 0 {
		conn.SetTimeout(cfg.TimeLimit)
	}

	if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
		conn.Close()
		return nil, direrr.Kind(direrr.ErrBindFailed, "bind as %s: %v", cfg.BindDN, err)
	}

	now := time.Now()

	return &pooledConn{conn: conn, createdAt: now, lastUsedAt: now, healthy: true}, nil
}

// release returns conn to the idle set, or closes it outright if it is
// stale or the pool is already closed.
func (p *pool) release(conn *pooledConn) {
	if conn == nil {
		return
	}

	conn.mu.Lock()
	conn.lastUsedAt = time.Now()
	healthy := conn.healthy
	conn.mu.Unlock()

	if atomic.LoadInt32(&p.closed) == 1 || !healthy || time.Since(conn.createdAt) > p.cfg.ConnectionTTL*connectionMaxLifetimeFactor {
		p.mu.Lock()
		p.closeLocked(conn)
		p.mu.Unlock()

		return
	}

	p.mu.Lock()
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

// invalidate marks conn unhealthy after a protocol error, so it is never
// returned from the idle set again; used by the operation wrappers when the
// wire layer itself reports an IO error.
func (p *pool) invalidate(conn *pooledConn) {
	if conn == nil {
		return
	}

	conn.mu.Lock()
	conn.healthy = false
	conn.mu.Unlock()

	p.mu.Lock()
	p.closeLocked(conn)
	p.mu.Unlock()
}

// closeLocked closes conn and decrements the live count. Callers must hold p.mu.
func (p *pool) closeLocked(conn *pooledConn) {
	conn.mu.Lock()
	conn.healthy = false
	conn.mu.Unlock()

	if err := conn.conn.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing LDAP connection")
	}

	atomic.AddInt32(&p.count, -1)
}

// connectionMaxLifetimeFactor bounds absolute connection age as a multiple
// of the idle TTL, so a connection in constant use is still recycled
// eventually.
const connectionMaxLifetimeFactor = 60

func (p *pool) Close() error {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.idle {
		p.closeLocked(c)
	}

	p.idle = nil

	return nil
}
