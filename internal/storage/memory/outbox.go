package memory

import (
	"context"
	"time"

	"wealthwatch/internal/core"
	"wealthwatch/internal/storage"
)

func (s *Store) PendingEvents(ctx context.Context, limit int) ([]storage.OutboxEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []storage.OutboxEntry
	for _, e := range s.current.Load().events {
		if len(out) >= limit {
			break
		}
		if e.Status == storage.EventPending {
			out = append(out, e)
		}
	}
	return out, nil
}

// updateEvent applies fn to the entry with the given id.
func (s *Store) updateEvent(ctx context.Context, op string, id int64, fn func(e *storage.OutboxEntry)) error {
	return s.mutate(ctx, op, func(st *state) error {
		for i := range st.events {
			if st.events[i].ID == id {
				fn(&st.events[i])
				return nil
			}
		}
		return &core.NotFoundError{Entity: "ledger event", ID: id}
	})
}

func (s *Store) MarkEventPublished(ctx context.Context, id int64) error {
	return s.updateEvent(ctx, "mark event published", id, func(e *storage.OutboxEntry) {
		e.Status = storage.EventPublished
		e.ProcessedAt = time.Now().UTC()
	})
}

func (s *Store) RecordEventAttempt(ctx context.Context, id int64, reason string) error {
	return s.updateEvent(ctx, "record event attempt", id, func(e *storage.OutboxEntry) {
		e.Attempts++
		e.LastError = reason
	})
}

func (s *Store) MarkEventFailed(ctx context.Context, id int64, reason string) error {
	return s.updateEvent(ctx, "mark event failed", id, func(e *storage.OutboxEntry) {
		e.Status = storage.EventFailed
		e.Attempts++
		e.LastError = reason
		e.ProcessedAt = time.Now().UTC()
	})
}

func (s *Store) RetryFailedEvents(ctx context.Context) (int64, error) {
	var n int64
	err := s.mutate(ctx, "retry failed events", func(st *state) error {
		for i := range st.events {
			if st.events[i].Status == storage.EventFailed {
				st.events[i].Status = storage.EventPending
				st.events[i].Attempts = 0
				st.events[i].ProcessedAt = time.Time{}
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) CleanupPublishedEvents(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.mutate(ctx, "cleanup published events", func(st *state) error {
		kept := st.events[:0]
		for _, e := range st.events {
			if e.Status == storage.EventPublished && e.ProcessedAt.Before(before) {
				n++
				continue
			}
			kept = append(kept, e)
		}
		st.events = kept
		return nil
	})
	return n, err
}

func (s *Store) OutboxStats(ctx context.Context) (storage.OutboxStats, error) {
	if err := ctx.Err(); err != nil {
		return storage.OutboxStats{}, err
	}
	var stats storage.OutboxStats
	for _, e := range s.current.Load().events {
		switch e.Status {
		case storage.EventPending:
			stats.Pending++
		case storage.EventPublished:
			stats.Published++
		case storage.EventFailed:
			stats.Failed++
		}
	}
	return stats, nil
}
