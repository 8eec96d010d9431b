package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/termbridge/pkg/log"
)

// Event kinds written by the terminal loop.
const (
	KindSessionStart = "session_start"
	KindSessionEnd   = "session_end"
	KindUser         = "user"
	KindReply        = "reply"
)

type EventsRepo struct {
	db *sql.DB
}

func NewEventsRepo(db *sql.DB) *EventsRepo {
	return &EventsRepo{db: db}
}

func (r *EventsRepo) Append(ctx context.Context, session, kind, content string) error {
	// created_at goes through the driver rather than the column default
	// so Prune compares values in one consistent format.
	query := `INSERT INTO events (session, kind, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, session, kind, content, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Recent returns the last limit event lines whose content contains
// term, oldest first. An empty term matches everything.
func (r *EventsRepo) Recent(ctx context.Context, term string, limit int) ([]string, error) {
	query := `SELECT kind, content FROM events WHERE content LIKE ? ORDER BY id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, "%"+term+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	lines, err := scanEventLines(rows)
	if err != nil {
		return nil, err
	}

	reverse(lines)
	log.FromCtx(ctx).Debug().Int("count", len(lines)).Str("term", term).Msg("loaded event lines")
	return lines, nil
}

// Commands returns the last limit user commands for one session,
// oldest first.
func (r *EventsRepo) Commands(ctx context.Context, session string, limit int) ([]string, error) {
	query := `SELECT content FROM events WHERE session = ? AND kind = ? ORDER BY id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, session, KindUser, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		lines = append(lines, content)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverse(lines)
	return lines, nil
}

// Prune drops events older than the retention window. Returns the
// number of rows removed.
func (r *EventsRepo) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.FromCtx(ctx).Info().Int64("removed", n).Msg("pruned old events")
	}
	return n, nil
}

func scanEventLines(rows *sql.Rows) ([]string, error) {
	var lines []string
	for rows.Next() {
		var kind, content string
		if err := rows.Scan(&kind, &content); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		lines = append(lines, kind+": "+content)
	}
	return lines, rows.Err()
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
