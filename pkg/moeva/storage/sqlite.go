package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists run records in a sqlite database file.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			experiment TEXT NOT NULL,
			config_digest TEXT NOT NULL,
			norm TEXT NOT NULL,
			n_pop INTEGER NOT NULL,
			n_gen INTEGER NOT NULL,
			eps REAL NOT NULL,
			success_rates TEXT NOT NULL,
			duration_ns INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, record RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	rates, err := json.Marshal(record.SuccessRates)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, experiment, config_digest, norm, n_pop, n_gen, eps, success_rates, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			experiment = excluded.experiment,
			config_digest = excluded.config_digest,
			norm = excluded.norm,
			n_pop = excluded.n_pop,
			n_gen = excluded.n_gen,
			eps = excluded.eps,
			success_rates = excluded.success_rates,
			duration_ns = excluded.duration_ns,
			created_at = excluded.created_at
	`, record.ID, record.Experiment, record.ConfigDigest, record.Norm, record.NPop, record.NGen,
		record.Eps, string(rates), record.Duration.Nanoseconds(), record.CreatedAt.UnixNano())
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return RunRecord{}, false, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, experiment, config_digest, norm, n_pop, n_gen, eps, success_rates, duration_ns, created_at
		FROM runs WHERE id = ?
	`, id)
	record, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, err
	}
	return record, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, experiment string) ([]RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, experiment, config_digest, norm, n_pop, n_gen, eps, success_rates, duration_ns, created_at
		FROM runs WHERE experiment = ? ORDER BY created_at
	`, experiment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (RunRecord, error) {
	var record RunRecord
	var rates string
	var durationNs, createdNs int64
	if err := row.Scan(&record.ID, &record.Experiment, &record.ConfigDigest, &record.Norm,
		&record.NPop, &record.NGen, &record.Eps, &rates, &durationNs, &createdNs); err != nil {
		return RunRecord{}, err
	}
	if err := json.Unmarshal([]byte(rates), &record.SuccessRates); err != nil {
		return RunRecord{}, fmt.Errorf("decode success rates for run %s: %w", record.ID, err)
	}
	record.Duration = time.Duration(durationNs)
	record.CreatedAt = time.Unix(0, createdNs)
	return record, nil
}
