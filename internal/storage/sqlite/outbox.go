package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"wealthwatch/internal/storage"
)

func (r *Repository) PendingEvents(ctx context.Context, limit int) ([]storage.OutboxEntry, error) {
	rows, err := r.reader.QueryContext(ctx, `
		SELECT id, payload, status, attempts, last_error, created_at
		FROM ledger_events
		WHERE status = ?
		ORDER BY id
		LIMIT ?`, storage.EventPending, limit)
	if err != nil {
		return nil, mapError("list pending events", err)
	}
	defer rows.Close()

	var out []storage.OutboxEntry
	for rows.Next() {
		var (
			entry     storage.OutboxEntry
			payload   string
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &payload, &entry.Status, &entry.Attempts, &entry.LastError, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &entry.Event); err != nil {
			return nil, fmt.Errorf("decode ledger event %d: %w", entry.ID, err)
		}
		if entry.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse ledger event time: %w", err)
		}
		out = append(out, entry)
	}
	return out, mapError("list pending events", rows.Err())
}

func (r *Repository) MarkEventPublished(ctx context.Context, id int64) error {
	res, err := r.exec(ctx,
		"UPDATE ledger_events SET status = ?, processed_at = ? WHERE id = ?",
		storage.EventPublished, now(), id)
	if err != nil {
		return mapError("mark event published", err)
	}
	return requireRow(res, "ledger event", id)
}

func (r *Repository) RecordEventAttempt(ctx context.Context, id int64, reason string) error {
	res, err := r.exec(ctx,
		"UPDATE ledger_events SET attempts = attempts + 1, last_error = ? WHERE id = ?",
		reason, id)
	if err != nil {
		return mapError("record event attempt", err)
	}
	return requireRow(res, "ledger event", id)
}

func (r *Repository) MarkEventFailed(ctx context.Context, id int64, reason string) error {
	res, err := r.exec(ctx,
		"UPDATE ledger_events SET status = ?, attempts = attempts + 1, last_error = ?, processed_at = ? WHERE id = ?",
		storage.EventFailed, reason, now(), id)
	if err != nil {
		return mapError("mark event failed", err)
	}
	return requireRow(res, "ledger event", id)
}

func (r *Repository) RetryFailedEvents(ctx context.Context) (int64, error) {
	res, err := r.exec(ctx,
		"UPDATE ledger_events SET status = ?, attempts = 0, processed_at = NULL WHERE status = ?",
		storage.EventPending, storage.EventFailed)
	if err != nil {
		return 0, mapError("retry failed events", err)
	}
	return res.RowsAffected()
}

func (r *Repository) CleanupPublishedEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.exec(ctx,
		"DELETE FROM ledger_events WHERE status = ? AND processed_at < ?",
		storage.EventPublished, before.UTC().Format(timeLayout))
	if err != nil {
		return 0, mapError("cleanup published events", err)
	}
	return res.RowsAffected()
}

func (r *Repository) OutboxStats(ctx context.Context) (storage.OutboxStats, error) {
	rows, err := r.reader.QueryContext(ctx, "SELECT status, COUNT(*) FROM ledger_events GROUP BY status")
	if err != nil {
		return storage.OutboxStats{}, mapError("outbox stats", err)
	}
	defer rows.Close()

	var stats storage.OutboxStats
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return storage.OutboxStats{}, fmt.Errorf("scan outbox stats: %w", err)
		}
		switch status {
		case storage.EventPending:
			stats.Pending = n
		case storage.EventPublished:
			stats.Published = n
		case storage.EventFailed:
			stats.Failed = n
		}
	}
	return stats, mapError("outbox stats", rows.Err())
}

// exec runs a single autocommit statement under the write lock.
func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	release, err := r.lock.Acquire(ctx, "outbox")
	if err != nil {
		return nil, err
	}
	defer release()
	return r.writer.ExecContext(ctx, query, args...)
}

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}
