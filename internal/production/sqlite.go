package production

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/comalice/timelinex"
)

// SQLitePersister keeps the latest snapshot per name, plus a history of
// every save, in a SQLite database.
type SQLitePersister struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLitePersister opens (or creates) the database at dbPath. Use
// ":memory:" for a throwaway store.
func NewSQLitePersister(dbPath string) (*SQLitePersister, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			taken DATETIME NOT NULL,
			position REAL,
			playing INTEGER NOT NULL DEFAULT 0,
			body TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_name ON snapshots(name, id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}
	return &SQLitePersister{db: db}, nil
}

func (p *SQLitePersister) Save(ctx context.Context, name string, snapshot timelinex.Snapshot) error {
	if err := validName(name); err != nil {
		return err
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	taken := snapshot.Taken
	if taken.IsZero() {
		taken = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, taken, position, playing, body)
		VALUES (?, ?, ?, ?, ?)
	`, name, taken, finite(float64(snapshot.CurrentTime)), snapshot.Playing, string(body))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (p *SQLitePersister) Load(ctx context.Context, name string) (timelinex.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var body string
	err := p.db.QueryRowContext(ctx,
		`SELECT body FROM snapshots WHERE name = ? ORDER BY id DESC LIMIT 1`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return timelinex.Snapshot{}, fmt.Errorf("timeline %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return timelinex.Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	var snapshot timelinex.Snapshot
	if err := json.Unmarshal([]byte(body), &snapshot); err != nil {
		return timelinex.Snapshot{}, fmt.Errorf("json unmarshal: %w", err)
	}
	return snapshot, nil
}

func (p *SQLitePersister) List(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT name FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// History returns up to limit saved positions for name, newest first.
func (p *SQLitePersister) History(ctx context.Context, name string, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 100
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	rows, err := p.db.QueryContext(ctx,
		`SELECT position FROM snapshots WHERE name = ? ORDER BY id DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v.Float64)
	}
	return out, rows.Err()
}

// Prune deletes history older than the newest keep rows per name.
func (p *SQLitePersister) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY name ORDER BY id DESC) AS rn
				FROM snapshots
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

func (p *SQLitePersister) Close() error {
	return p.db.Close()
}

// finite maps ±Inf and NaN to NULL; SQLite REAL can not hold them.
func finite(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
