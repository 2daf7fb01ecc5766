package experience

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS experiences (
	id                   TEXT PRIMARY KEY,
	chain_id             TEXT NOT NULL,
	task_id              TEXT,
	stage                TEXT NOT NULL,
	reward               REAL NOT NULL,
	passed               INTEGER NOT NULL,
	aggregate_confidence REAL NOT NULL,
	steps                INTEGER NOT NULL,
	payload              TEXT NOT NULL,
	created_at           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS experiences_by_reward ON experiences (reward DESC, created_at DESC);
`

// #endregion schema

// #region store-struct

// SQLiteStore persists experiences in SQLite. The full experience is kept as JSON;
// reward and summary columns exist for ordering and ad-hoc queries.
type SQLiteStore struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor

// NewSQLiteStore opens a SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// #endregion constructor

// #region close

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region save

// Save inserts or replaces one experience.
func (s *SQLiteStore) Save(ctx context.Context, exp state.Experience) error {
	payload, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal experience: %w", err)
	}
	created := exp.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO experiences (id, chain_id, task_id, stage, reward, passed, aggregate_confidence, steps, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   reward = excluded.reward,
		   passed = excluded.passed,
		   aggregate_confidence = excluded.aggregate_confidence,
		   payload = excluded.payload`,
		exp.ID, exp.Chain.ID, nullIfEmpty(exp.Chain.TaskID), string(exp.Stage), exp.Reward,
		boolToInt(exp.Verification.Passed), exp.Chain.AggregateConfidence, len(exp.Chain.Steps),
		string(payload), created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return unavailable("insert experience", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// #endregion save

// #region load

// LoadTop returns up to n experiences, highest reward first.
func (s *SQLiteStore) LoadTop(ctx context.Context, n int) ([]state.Experience, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM experiences ORDER BY reward DESC, created_at DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, unavailable("query top", err)
	}
	defer rows.Close()

	var out []state.Experience
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, unavailable("scan experience", err)
		}
		var exp state.Experience
		if err := json.Unmarshal([]byte(payload), &exp); err != nil {
			return nil, fmt.Errorf("unmarshal experience: %w", err)
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate experiences", err)
	}
	return out, nil
}

// Get reads one experience by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (state.Experience, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM experiences WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return state.Experience{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return state.Experience{}, unavailable("get experience", err)
	}
	var exp state.Experience
	if err := json.Unmarshal([]byte(payload), &exp); err != nil {
		return state.Experience{}, fmt.Errorf("unmarshal experience: %w", err)
	}
	return exp, nil
}

// #endregion load

// #region helpers

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
