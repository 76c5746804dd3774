package dispatch

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/cryptosurveil/surveil/internal/alertgate"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// alertSchema matches §6's persisted alert record exactly: id, ts, venue,
// symbol, kind, severity, value, price, slippage, side, with indexes on
// ts/severity/symbol. "slippage" and "side" are generic columns reused by
// every detector kind (slippage holds Value for the slippage detector and
// NULL otherwise; side holds Direction).
const alertSchema = `
CREATE TABLE IF NOT EXISTS alerts (
	id       text PRIMARY KEY,
	ts       timestamptz NOT NULL,
	venue    text NOT NULL,
	symbol   text NOT NULL,
	kind     text NOT NULL,
	severity text NOT NULL,
	value    double precision,
	price    double precision,
	slippage double precision,
	side     text
);
CREATE INDEX IF NOT EXISTS alerts_ts_idx ON alerts (ts);
CREATE INDEX IF NOT EXISTS alerts_severity_idx ON alerts (severity);
CREATE INDEX IF NOT EXISTS alerts_symbol_idx ON alerts (symbol);
`

// StoreConfig configures the Postgres-backed store sink. Modeled on the
// teacher's internal/infrastructure/db/connection.go Config/Manager split:
// an empty DSN means the sink runs entirely in-process.
type StoreConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	BatchSize       int
	QueueDepth      int
	RingBufferCap   int
}

// DefaultStoreConfig returns sensible pool sizing, matching the teacher's
// db.DefaultConfig defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
		BatchSize:       50,
		QueueDepth:      512,
		RingBufferCap:   10000,
	}
}

// StoreSink persists alerts to Postgres in small batches when a DSN is
// configured. With no DSN it keeps the most recent RingBufferCap alerts
// in memory instead, so the service stays cold-startable without a
// database (§6: "no other on-disk state is required for correctness").
type StoreSink struct {
	cfg     StoreConfig
	log     zerolog.Logger
	db      *sqlx.DB
	queue   chan alertgate.Alert
	dropped uint64

	ring    []alertgate.Alert
	ringPos int
}

// NewStoreSink opens the Postgres pool if cfg.DSN is non-empty and pings
// it; on any failure it falls back to the in-process ring buffer rather
// than failing startup, since the store is not required for correctness.
func NewStoreSink(cfg StoreConfig, log zerolog.Logger) *StoreSink {
	s := &StoreSink{cfg: cfg, log: log, queue: make(chan alertgate.Alert, cfg.QueueDepth)}

	if cfg.DSN == "" {
		return s
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		log.Warn().Err(err).Msg("store sink: failed to open postgres, using ring buffer")
		return s
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Warn().Err(err).Msg("store sink: failed to ping postgres, using ring buffer")
		db.Close()
		return s
	}
	if _, err := db.ExecContext(ctx, alertSchema); err != nil {
		log.Warn().Err(err).Msg("store sink: failed to apply schema, using ring buffer")
		db.Close()
		return s
	}

	s.db = db
	return s
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Submit(a alertgate.Alert) {
	select {
	case s.queue <- a:
	default:
		atomic.AddUint64(&s.dropped, 1)
	}
}

func (s *StoreSink) Dropped() uint64 { return atomic.LoadUint64(&s.dropped) }

func (s *StoreSink) Run(ctx context.Context) {
	batch := make([]alertgate.Alert, 0, s.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.persist(ctx, batch)
		batch = batch[:0]
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case a := <-s.queue:
			batch = append(batch, a)
			if len(batch) >= s.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *StoreSink) persist(ctx context.Context, batch []alertgate.Alert) {
	if s.db == nil {
		s.appendRing(batch)
		return
	}

	qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(qctx, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("store sink: begin tx failed, falling back to ring buffer for batch")
		s.appendRing(batch)
		return
	}

	const stmt = `INSERT INTO alerts (id, ts, venue, symbol, kind, severity, value, price, slippage, side)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING`
	for _, a := range batch {
		var slippage sql.NullFloat64
		if a.Kind == "slippage" {
			slippage = sql.NullFloat64{Float64: a.Value, Valid: true}
		}
		if _, err := tx.ExecContext(qctx, stmt, a.ID, a.Ts, a.Venue, a.Symbol, string(a.Kind), string(a.Severity), a.Value, a.Price, slippage, a.Direction); err != nil {
			s.log.Warn().Err(err).Str("alert_id", a.ID).Msg("store sink: insert failed")
		}
	}
	if err := tx.Commit(); err != nil {
		s.log.Warn().Err(err).Msg("store sink: commit failed, falling back to ring buffer for batch")
		s.appendRing(batch)
	}
}

func (s *StoreSink) appendRing(batch []alertgate.Alert) {
	size := s.cfg.RingBufferCap
	if size <= 0 {
		size = 10000
	}
	if s.ring == nil {
		s.ring = make([]alertgate.Alert, size)
	}
	for _, a := range batch {
		s.ring[s.ringPos] = a
		s.ringPos = (s.ringPos + 1) % size
	}
}

// RingSnapshot returns the ring buffer's contents oldest-first (admin
// introspection when there is no database configured).
func (s *StoreSink) RingSnapshot() []alertgate.Alert {
	if s.ring == nil {
		return nil
	}
	out := make([]alertgate.Alert, 0, len(s.ring))
	for i := 0; i < len(s.ring); i++ {
		idx := (s.ringPos + i) % len(s.ring)
		if s.ring[idx].ID != "" {
			out = append(out, s.ring[idx])
		}
	}
	return out
}

// Close releases the underlying database handle, if any.
func (s *StoreSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
