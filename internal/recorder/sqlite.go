package recorder

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"TrendScout/internal/logger"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logger.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *logger.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = logger.Nop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// WAL lets dashboards read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", logger.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_runs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at    INTEGER NOT NULL,
			duration_ms   INTEGER,
			source        TEXT,
			requested     INTEGER,
			skipped       INTEGER,
			fetched       INTEGER,
			empty         INTEGER,
			failed        INTEGER,
			rows_appended INTEGER,
			batches       INTEGER,
			error         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_started ON fetch_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS scan_runs (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at   INTEGER NOT NULL,
			duration_ms  INTEGER,
			rows_read    INTEGER,
			rows_dropped INTEGER,
			symbols      INTEGER,
			success      INTEGER,
			skipped      INTEGER,
			failed       INTEGER,
			signals      INTEGER,
			trends       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_started ON scan_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS buy_signals (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id     INTEGER NOT NULL REFERENCES scan_runs(id),
			symbol      TEXT NOT NULL,
			bar_date    TEXT NOT NULL,
			close       REAL,
			rsi         REAL,
			signal_type TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol ON buy_signals(symbol, bar_date)`,

		`CREATE TABLE IF NOT EXISTS uptrend_members (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id   INTEGER NOT NULL REFERENCES scan_runs(id),
			symbol    TEXT NOT NULL,
			close     REAL,
			sma_short REAL,
			sma_long  REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_uptrend_scan ON uptrend_members(scan_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordFetch(run *FetchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO fetch_runs
		(started_at, duration_ms, source, requested, skipped, fetched, empty, failed, rows_appended, batches, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		run.StartedAt.Unix(), run.Duration.Milliseconds(), run.Source,
		run.Requested, run.Skipped, run.Fetched, run.Empty, run.Failed,
		run.RowsAppended, run.Batches, run.Err,
	)
	return err
}

// RecordScan stores the run row and all of its records in one transaction.
func (r *SQLiteRecorder) RecordScan(run *ScanRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO scan_runs
		(started_at, duration_ms, rows_read, rows_dropped, symbols, success, skipped, failed, signals, trends)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.StartedAt.Unix(), run.Duration.Milliseconds(), run.RowsRead, run.RowsDropped,
		run.Symbols, run.Success, run.Skipped, run.Failed, len(run.Signals), len(run.Trends),
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("scan run id: %w", err)
	}

	if len(run.Signals) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO buy_signals
			(scan_id, symbol, bar_date, close, rsi, signal_type) VALUES (?,?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare signals: %w", err)
		}
		defer stmt.Close()
		for _, s := range run.Signals {
			if _, err := stmt.Exec(scanID, s.Symbol, s.Date.Format("2006-01-02"), s.Close, s.RSI, string(s.Type)); err != nil {
				return fmt.Errorf("insert signal %s: %w", s.Symbol, err)
			}
		}
	}

	if len(run.Trends) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO uptrend_members
			(scan_id, symbol, close, sma_short, sma_long) VALUES (?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare trends: %w", err)
		}
		defer stmt.Close()
		for _, t := range run.Trends {
			if _, err := stmt.Exec(scanID, t.Symbol, t.Close, t.SMAShort, t.SMALong); err != nil {
				return fmt.Errorf("insert trend %s: %w", t.Symbol, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	r.log.Debug("closing sqlite recorder")
	return r.db.Close()
}
