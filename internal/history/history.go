// Package history persists a per-run ledger of convergence-loop rounds
// to sqlite. The ledger feeds the final report's per-strategy round
// counts and leaves an audit trail of what was tried; it is never read
// by a later invocation to resume work.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/autopatch/autopatch/internal/remediation"
	"github.com/autopatch/autopatch/internal/scanner"
)

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	strategy   TEXT NOT NULL,
	round      INTEGER NOT NULL,
	budget     INTEGER NOT NULL,
	candidates TEXT NOT NULL,
	blocklist  TEXT NOT NULL,
	verdict    TEXT NOT NULL,
	remaining  INTEGER,
	unfixable  INTEGER,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rounds_run ON rounds(run_id, strategy, round);
`

// Ledger is a sqlite-backed round recorder.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the ledger database and initializes the schema.
func Open(path string) (*Ledger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordRound implements remediation.RoundRecorder.
func (l *Ledger) RecordRound(ctx context.Context, rec remediation.RoundRecord) error {
	candidates, err := json.Marshal(rec.Candidates)
	if err != nil {
		return fmt.Errorf("failed to encode candidates: %w", err)
	}
	blocklist, err := json.Marshal(rec.Blocklist)
	if err != nil {
		return fmt.Errorf("failed to encode blocklist: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO rounds (run_id, strategy, round, budget, candidates, blocklist, verdict, remaining, unfixable, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Strategy, rec.Round, rec.Budget,
		string(candidates), string(blocklist), string(rec.Verdict),
		countValue(rec.Remaining), countValue(rec.Unfixable),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert round record: %w", err)
	}
	return nil
}

// Rounds returns every recorded round for a run, in execution order.
func (l *Ledger) Rounds(ctx context.Context, runID string) ([]remediation.RoundRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT strategy, round, budget, candidates, blocklist, verdict, remaining, unfixable
		FROM rounds WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var records []remediation.RoundRecord
	for rows.Next() {
		var (
			rec                   remediation.RoundRecord
			candidates, blocklist string
			verdict               string
			remaining, unfixable  sql.NullInt64
		)
		if err := rows.Scan(&rec.Strategy, &rec.Round, &rec.Budget, &candidates, &blocklist, &verdict, &remaining, &unfixable); err != nil {
			return nil, fmt.Errorf("failed to scan round record: %w", err)
		}
		rec.RunID = runID
		rec.Verdict = remediation.Verdict(verdict)
		if err := json.Unmarshal([]byte(candidates), &rec.Candidates); err != nil {
			return nil, fmt.Errorf("failed to decode candidates: %w", err)
		}
		if err := json.Unmarshal([]byte(blocklist), &rec.Blocklist); err != nil {
			return nil, fmt.Errorf("failed to decode blocklist: %w", err)
		}
		rec.Remaining = countFrom(remaining)
		rec.Unfixable = countFrom(unfixable)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate round records: %w", err)
	}
	return records, nil
}

// RoundCounts returns the number of rounds each strategy ran, keyed by
// strategy name.
func (l *Ledger) RoundCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT strategy, COUNT(*) FROM rounds WHERE run_id = ? GROUP BY strategy`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query round counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var strategy string
		var n int
		if err := rows.Scan(&strategy, &n); err != nil {
			return nil, fmt.Errorf("failed to scan round count: %w", err)
		}
		counts[strategy] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate round counts: %w", err)
	}
	return counts, nil
}

// countValue converts an optional count to its nullable column value.
func countValue(c scanner.Count) interface{} {
	if !c.Known {
		return nil
	}
	return c.Value
}

// countFrom converts a nullable column back to an optional count.
func countFrom(n sql.NullInt64) scanner.Count {
	if !n.Valid {
		return scanner.Count{}
	}
	return scanner.KnownCount(int(n.Int64))
}
