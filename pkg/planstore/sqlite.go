package planstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/temotskipa/autoredistrict/pkg/plan"
)

// SQLiteStore keeps plans in a single database file. The listing columns
// are denormalized so List never parses plan JSON.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open plan db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping plan db: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate plan db: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS plans (
			id            TEXT PRIMARY KEY,
			created_at    TEXT NOT NULL,
			districts     INTEGER NOT NULL,
			population    INTEGER NOT NULL,
			max_deviation REAL NOT NULL,
			data          BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_plans_created ON plans(created_at);
	`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, p *plan.Plan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	info := infoOf(p)
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO plans (id, created_at, districts, population, max_deviation, data)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.CreatedAt.UTC().Format(time.RFC3339Nano),
		info.Districts, info.Population, info.MaxDeviation, data)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*plan.Plan, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM plans WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select plan: %w", err)
	}
	var p plan.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, districts, population, max_deviation
		FROM plans ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		var created string
		if err := rows.Scan(&info.ID, &created, &info.Districts, &info.Population, &info.MaxDeviation); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		info.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
