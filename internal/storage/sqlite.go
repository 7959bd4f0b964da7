//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"pulmoprint/internal/hash"
	"pulmoprint/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps model metadata in one table and the token table as one
// row per token.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
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

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveModel(ctx context.Context, name string, m *model.Model) error {
	if err := validName(name); err != nil {
		return err
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO models (name, run_id, created, normal_images, anomaly_images, rejected, params)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			run_id = excluded.run_id,
			created = excluded.created,
			normal_images = excluded.normal_images,
			anomaly_images = excluded.anomaly_images,
			rejected = excluded.rejected,
			params = excluded.params
	`, name, m.Meta.RunID, m.Meta.Created.UTC().Format(time.RFC3339Nano),
		m.Meta.NormalImages, m.Meta.AnomalyImages, m.Meta.Rejected, m.Meta.Params)
	if err != nil {
		return fmt.Errorf("save model %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE model = ?`, name); err != nil {
		return fmt.Errorf("save model %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tokens (model, token, normal, anomaly) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for tok, c := range m.Tokens {
		if _, err := stmt.ExecContext(ctx, name, string(tok), c.Normal, c.Anomaly); err != nil {
			return fmt.Errorf("save token %s: %w", tok, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadModel(ctx context.Context, name string) (*model.Model, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	m := model.New()
	var created string
	err = db.QueryRowContext(ctx, `
		SELECT run_id, created, normal_images, anomaly_images, rejected, params
		FROM models WHERE name = ?
	`, name).Scan(&m.Meta.RunID, &created, &m.Meta.NormalImages, &m.Meta.AnomalyImages, &m.Meta.Rejected, &m.Meta.Params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if m.Meta.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, false, fmt.Errorf("decode model %s: %w", name, err)
	}

	rows, err := db.QueryContext(ctx, `SELECT token, normal, anomaly FROM tokens WHERE model = ?`, name)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var tok string
		var c model.Counts
		if err := rows.Scan(&tok, &c.Normal, &c.Anomaly); err != nil {
			return nil, false, fmt.Errorf("decode model %s: %w", name, err)
		}
		m.Tokens[hash.Token(tok)] = c
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (s *SQLiteStore) ListModels(ctx context.Context) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT name FROM models ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
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

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS models (
			name TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			created TEXT NOT NULL,
			normal_images INTEGER NOT NULL,
			anomaly_images INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			params TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS tokens (
			model TEXT NOT NULL,
			token TEXT NOT NULL,
			normal INTEGER NOT NULL,
			anomaly INTEGER NOT NULL,
			PRIMARY KEY (model, token)
		);
	`)
	return err
}
