package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds archiver batching settings.
type Config struct {
	// Instance tags every row with the streamer that captured it.
	Instance string

	BatchSize     int
	FlushInterval time.Duration
	SpoolSize     int
}

// DefaultConfig returns the production batching defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
		SpoolSize:     1024,
	}
}

type messageRow struct {
	ReceivedAt int64 // microseconds since epoch
	Instance   string
	Payload    []byte
}

// Stats tracks archiver write counters.
type Stats struct {
	Inserts int64
	Flushes int64
	Errors  int64
}

// Archiver spools raw stream messages and batch-inserts them into the
// messages table. It satisfies the sink interface, so it can sit in a
// fan-out next to other consumers.
type Archiver struct {
	cfg    Config
	logger *slog.Logger

	spool *Spool
	db    *pgxpool.Pool

	batch       []messageRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats Stats
}

// NewArchiver creates an Archiver writing through db.
func NewArchiver(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Archiver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if cfg.SpoolSize <= 0 {
		cfg.SpoolSize = DefaultConfig().SpoolSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		cfg:    cfg,
		db:     db,
		logger: logger,
		spool:  NewSpool(cfg.SpoolSize),
		batch:  make([]messageRow, 0, cfg.BatchSize),
	}
}

// OnMessage spools a raw message for persistence.
func (a *Archiver) OnMessage(msg json.RawMessage) {
	if !a.spool.Push(Record{ReceivedAt: time.Now(), Payload: msg}) {
		a.logger.Warn("archive spool closed, dropping message")
	}
}

// OnRateLimited records the upstream throttle in the log.
func (a *Archiver) OnRateLimited() {
	a.logger.Warn("stream rate limited upstream")
}

// OnError records a terminal stream error in the log.
func (a *Archiver) OnError(err error) {
	a.logger.Error("stream failed", "error", err)
}

// Start begins draining the spool into the database.
func (a *Archiver) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.flushTicker = time.NewTicker(a.cfg.FlushInterval)

	a.wg.Add(1)
	go a.consumeLoop()

	a.wg.Add(1)
	go a.flushLoop()

	a.logger.Info("archiver started",
		"batch_size", a.cfg.BatchSize,
		"flush_interval", a.cfg.FlushInterval,
	)
	return nil
}

// Stop drains remaining work and shuts the archiver down. The context
// bounds how long to wait for in-flight goroutines.
func (a *Archiver) Stop(ctx context.Context) error {
	a.logger.Info("stopping archiver")

	a.spool.Close()
	if a.cancel != nil {
		a.cancel()
	}
	if a.flushTicker != nil {
		a.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("archiver stop timed out")
	}

	// Anything still spooled or batched goes out in one final flush. The
	// run context is canceled by now, so flush on the stop context.
	for _, r := range a.spool.Drain(0) {
		a.appendNoFlush(r)
	}
	a.flush(ctx)

	a.logger.Info("archiver stopped")
	return nil
}

// WriteStats returns current write counters.
func (a *Archiver) WriteStats() Stats {
	a.batchMu.Lock()
	defer a.batchMu.Unlock()
	return a.stats
}

func (a *Archiver) consumeLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		default:
			r, ok := a.spool.TryPop()
			if !ok {
				select {
				case <-a.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}
			a.append(r)
		}
	}
}

func (a *Archiver) flushLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-a.flushTicker.C:
			a.flush(a.ctx)
		}
	}
}

// append adds a record to the batch, flushing when the batch fills.
func (a *Archiver) append(r Record) {
	row := messageRow{
		ReceivedAt: r.ReceivedAt.UnixMicro(),
		Instance:   a.cfg.Instance,
		Payload:    r.Payload,
	}

	a.batchMu.Lock()
	a.batch = append(a.batch, row)
	full := len(a.batch) >= a.cfg.BatchSize
	a.batchMu.Unlock()

	if full {
		a.flush(a.ctx)
	}
}

// appendNoFlush adds a record to the batch without triggering a flush.
func (a *Archiver) appendNoFlush(r Record) {
	row := messageRow{
		ReceivedAt: r.ReceivedAt.UnixMicro(),
		Instance:   a.cfg.Instance,
		Payload:    r.Payload,
	}
	a.batchMu.Lock()
	a.batch = append(a.batch, row)
	a.batchMu.Unlock()
}

// flush writes the current batch to the database.
func (a *Archiver) flush(ctx context.Context) {
	a.batchMu.Lock()
	if len(a.batch) == 0 {
		a.batchMu.Unlock()
		return
	}
	batch := a.batch
	a.batch = make([]messageRow, 0, a.cfg.BatchSize)
	a.batchMu.Unlock()

	start := time.Now()

	if err := a.batchInsert(ctx, batch); err != nil {
		a.logger.Error("batch insert failed", "error", err, "count", len(batch))
		a.batchMu.Lock()
		a.stats.Errors++
		a.batchMu.Unlock()
		return
	}

	a.batchMu.Lock()
	a.stats.Inserts += int64(len(batch))
	a.stats.Flushes++
	a.batchMu.Unlock()

	a.logger.Debug("flushed messages",
		"count", len(batch),
		"duration", time.Since(start),
	)
}

func (a *Archiver) batchInsert(ctx context.Context, rows []messageRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO messages (received_at, instance, payload)
			VALUES ($1, $2, $3)
		`, r.ReceivedAt, r.Instance, r.Payload)
	}

	results := a.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
