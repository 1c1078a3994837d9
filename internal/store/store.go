// Package store records batch runs and per-frame measurements in SQLite.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"meltpool/internal/models"
	"meltpool/internal/pipeline"

	_ "modernc.org/sqlite"
)

// Store is safe for concurrent use; batch workers write through it.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

type Run struct {
	ID        int64
	Source    string
	Config    models.ParameterConfig
	StartedAt time.Time
	Finished  *time.Time
	Processed int
	Failed    int
}

type Record struct {
	RunID        int64
	FrameID      string
	Points       int
	OuterArea    float64
	InnerArea    float64
	MeltPoolArea float64
	OuterCount   int
	InnerCount   int
	ProcessMs    int64
	RecordedAt   time.Time
}

// memoryDBs names each in-memory database so separate opens never share one.
var memoryDBs atomic.Uint64

// Open creates tables on first use. Every ":memory:" open gets its own
// shared-cache in-memory database limited to one connection.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		connStr = fmt.Sprintf("file:meltpool-%d?mode=memory&cache=shared", memoryDBs.Add(1))
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		config TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		processed INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS measurements (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		frame_id TEXT NOT NULL,
		points INTEGER NOT NULL,
		outer_area REAL NOT NULL,
		inner_area REAL NOT NULL,
		melt_pool_area REAL NOT NULL,
		outer_vertices INTEGER NOT NULL,
		inner_vertices INTEGER NOT NULL,
		process_ms INTEGER NOT NULL,
		recorded_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, frame_id)
	);

	CREATE INDEX IF NOT EXISTS idx_measurements_frame ON measurements(frame_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// BeginRun records the configuration a batch is about to use.
func (s *Store) BeginRun(ctx context.Context, source string, cfg models.ParameterConfig) (int64, error) {
	var buf bytes.Buffer
	if err := models.EncodeConfig(&buf, cfg); err != nil {
		return 0, fmt.Errorf("encode config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (source, config, started_at) VALUES (?, ?, ?)`,
		source, buf.String(), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) FinishRun(ctx context.Context, runID int64, processed, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, failed = ? WHERE id = ?`,
		time.Now().UTC(), processed, failed, runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

// SaveMeasurement replaces any earlier record of the same frame in the run.
func (s *Store) SaveMeasurement(ctx context.Context, runID int64, m models.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO measurements (
			run_id, frame_id, points, outer_area, inner_area, melt_pool_area,
			outer_vertices, inner_vertices, process_ms, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, m.FrameID, m.Points,
		m.Area.OuterArea, m.Area.InnerArea, m.Area.MeltPoolArea,
		len(m.Pair.Outer), len(m.Pair.Inner),
		m.ProcessTime.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save measurement %s: %w", m.FrameID, err)
	}
	return nil
}

// Measurements returns a run's records ordered by frame ID.
func (s *Store) Measurements(ctx context.Context, runID int64) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, frame_id, points, outer_area, inner_area, melt_pool_area,
			outer_vertices, inner_vertices, process_ms, recorded_at
		FROM measurements
		WHERE run_id = ?
		ORDER BY frame_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.RunID, &r.FrameID, &r.Points, &r.OuterArea, &r.InnerArea,
			&r.MeltPoolArea, &r.OuterCount, &r.InnerCount, &r.ProcessMs, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, runID int64) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		r        Run
		config   string
		finished sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, config, started_at, finished_at, processed, failed
		FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.Source, &config, &r.StartedAt, &finished, &r.Processed, &r.Failed)
	if err != nil {
		return Run{}, fmt.Errorf("get run %d: %w", runID, err)
	}

	cfg, err := models.DecodeConfig(strings.NewReader(config))
	if err != nil {
		return Run{}, fmt.Errorf("run %d config: %w", runID, err)
	}
	r.Config = cfg

	if finished.Valid {
		t := finished.Time
		r.Finished = &t
	}
	return r, nil
}

// LedgerSink records each measurement before passing the frame on to Next.
// A ledger write failure fails the frame.
type LedgerSink struct {
	Store *Store
	RunID int64
	Next  pipeline.Sink
}

func (l *LedgerSink) Save(ctx context.Context, frame pipeline.AnnotatedFrame) error {
	if err := l.Store.SaveMeasurement(ctx, l.RunID, frame.Measurement); err != nil {
		return err
	}
	if l.Next == nil {
		return nil
	}
	return l.Next.Save(ctx, frame)
}
