package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/infrastructure/metrics"
	"github.com/asakaida/relata/internal/repositories"
	"github.com/asakaida/relata/internal/repositories/sqlstore"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Handler receives a batch of dequeued entries. A failed batch stays queued.
type Handler func(ctx context.Context, entries []*entities.IndexEntry) error

// ListenerConfig configures a Listener
type ListenerConfig struct {
	// ConnString enables PostgreSQL LISTEN/NOTIFY wake-ups; empty means polling only
	ConnString   string
	PollInterval time.Duration
	BatchSize    int
}

// Listener drains the reindex queue into a handler. On PostgreSQL it wakes up on
// NOTIFY; the poll interval is the fallback for missed notifications and other drivers.
type Listener struct {
	queue   repositories.ReindexQueueRepository
	tx      repositories.Transactor
	handler Handler
	config  ListenerConfig
	logger  *zap.Logger
	instr   *metrics.Instrumenter

	mu       sync.Mutex
	listener *pq.Listener
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopped  bool
	started  bool
}

// NewListener creates a listener. instr may be nil.
func NewListener(queue repositories.ReindexQueueRepository, tx repositories.Transactor, handler Handler, config ListenerConfig, logger *zap.Logger, instr *metrics.Instrumenter) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &Listener{
		queue:   queue,
		tx:      tx,
		handler: handler,
		config:  config,
		logger:  logger,
		instr:   instr,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start drains pending entries and then processes new ones in the background
func (l *Listener) Start(ctx context.Context) error {
	if _, err := l.Drain(ctx); err != nil {
		return fmt.Errorf("failed to drain reindex queue: %w", err)
	}

	var notify <-chan *pq.Notification
	if l.config.ConnString != "" {
		reportProblem := func(ev pq.ListenerEventType, err error) {
			if err != nil {
				l.logger.Warn("reindex listener error", zap.Error(err))
			}
		}
		listener := pq.NewListener(l.config.ConnString, 10*time.Second, time.Minute, reportProblem)
		if err := listener.Listen(sqlstore.ReindexChannel); err != nil {
			listener.Close()
			return fmt.Errorf("failed to listen on %s: %w", sqlstore.ReindexChannel, err)
		}
		l.mu.Lock()
		l.listener = listener
		l.mu.Unlock()
		notify = listener.Notify
	}

	l.mu.Lock()
	l.started = true
	l.mu.Unlock()
	go l.run(ctx, notify)
	return nil
}

func (l *Listener) run(ctx context.Context, notify <-chan *pq.Notification) {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		case n := <-notify:
			// nil after a reconnect: entries may have been missed, drain anyway
			if n != nil {
				l.logger.Debug("reindex notification", zap.String("queue_id", n.Extra))
			}
		case <-ticker.C:
		}

		if _, err := l.Drain(ctx); err != nil {
			l.logger.Warn("failed to drain reindex queue", zap.Error(err))
		}
	}
}

// Drain processes queued entries batch by batch until the queue is empty and
// returns the number handled
func (l *Listener) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := l.processBatch(ctx)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
		l.instr.Reindexed(n)
	}
}

func (l *Listener) processBatch(ctx context.Context) (int, error) {
	tx, err := l.tx.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	txCtx := repositories.WithTx(ctx, tx)

	entries, err := l.queue.Dequeue(txCtx, l.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := l.handler(txCtx, entries); err != nil {
		return 0, fmt.Errorf("reindex handler failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	l.logger.Debug("reindexed batch", zap.Int("entries", len(entries)))
	return len(entries), nil
}

// Stop stops the background loop and closes the notification connection
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	close(l.stopCh)
	listener := l.listener
	l.mu.Unlock()

	if listener != nil {
		return listener.Close()
	}
	return nil
}

// Wait blocks until the background loop started by Start has exited. It
// returns at once when Start was not called or failed.
func (l *Listener) Wait() {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()
	if started {
		<-l.doneCh
	}
}
