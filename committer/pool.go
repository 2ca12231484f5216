package committer

// pool.go wraps the durable Postgres connection used by Gateway. It is
// grounded on the teacher's connection_pool.go: same acquire/release/stats
// accounting and background reaper shape, here wrapping database/sql's own
// pool (which already does connection reuse) rather than reimplementing one
// over net.Conn — the reaper's job becomes periodic health-checking instead
// of idle-TTL eviction, since database/sql already evicts idle connections
// itself via SetConnMaxIdleTime.

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PoolConfig configures the persistence connection pool.
type PoolConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	PingInterval    time.Duration
}

// Pool wraps a *sql.DB with a background health-check reaper and basic
// liveness accounting, mirroring the teacher's ConnPool.Stats/Close shape.
type Pool struct {
	db        *sql.DB
	cfg       PoolConfig
	log       *logrus.Entry
	closing   chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	healthy bool
	lastErr error
}

// NewPool opens the Postgres connection described by cfg and starts its
// health-check reaper.
func NewPool(cfg PoolConfig) (*Pool, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("committer: open pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	p := &Pool{
		db:      db,
		cfg:     cfg,
		log:     logrus.WithField("component", "committer_pool"),
		closing: make(chan struct{}),
		healthy: true,
	}
	interval := cfg.PingInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go p.reaper(interval)
	return p, nil
}

// DB returns the underlying *sql.DB for issuing queries. database/sql
// already pools and reuses connections internally, so callers don't
// Acquire/Release individual connections the way the teacher's net.Conn
// pool required.
func (p *Pool) DB() *sql.DB { return p.db }

// Healthy reports whether the most recent background ping succeeded.
func (p *Pool) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy
}

// Stats mirrors the teacher's ConnPool.Stats: the count of currently open
// connections in the pool.
func (p *Pool) Stats() int {
	return p.db.Stats().OpenConnections
}

func (p *Pool) reaper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval/2)
			err := p.db.PingContext(ctx)
			cancel()
			p.mu.Lock()
			wasHealthy := p.healthy
			p.healthy = err == nil
			p.lastErr = err
			p.mu.Unlock()
			if err != nil && wasHealthy {
				p.log.WithError(err).Warn("persistence pool ping failed")
			} else if err == nil && !wasHealthy {
				p.log.Info("persistence pool recovered")
			}
		case <-p.closing:
			return
		}
	}
}

// Close stops the reaper and closes the underlying pool.
func (p *Pool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closing)
		err = p.db.Close()
	})
	return err
}
