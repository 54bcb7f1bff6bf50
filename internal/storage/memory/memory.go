// Package memory is an in-process ledger store with the same semantics as the
// SQLite backend. Each write unit works on a private copy of the state that
// replaces the published one only when the unit succeeds, so readers never
// see partial work.
package memory

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"wealthwatch/internal/core"
	"wealthwatch/internal/storage"
)

const DefaultBusyTimeout = 5 * time.Second

type Store struct {
	lock    *storage.WriteLock
	current atomic.Pointer[state]
}

var _ storage.Store = (*Store)(nil)

// New returns a store seeded with the given categories, or with
// storage.DefaultCategories when none are given.
func New(categories ...string) *Store {
	if len(categories) == 0 {
		categories = storage.DefaultCategories
	}
	s := &Store{lock: storage.NewWriteLock(DefaultBusyTimeout)}
	st := newState()
	for _, name := range dedupe(categories) {
		st.categorySeq++
		st.categories[st.categorySeq] = core.Category{ID: st.categorySeq, Name: name}
	}
	s.current.Store(st)
	return s
}

// NewFromFile seeds categories from a file with one name per line. Blank
// lines and lines starting with # are skipped.
func NewFromFile(path string) (*Store, error) {
	names, err := readLines(path)
	if err != nil {
		return nil, err
	}
	return New(names...), nil
}

// WithBusyTimeout sets how long a writer waits for the write lock.
func (s *Store) WithBusyTimeout(d time.Duration) *Store {
	if d > 0 {
		s.lock = storage.NewWriteLock(d)
	}
	return s
}

func (s *Store) Close() error { return nil }

// Update runs fn against a copy of the current state and publishes the copy
// only if fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, w storage.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock, err := s.lock.Acquire(ctx, "begin")
	if err != nil {
		return err
	}
	defer unlock()

	next := s.current.Load().clone()
	if err := fn(ctx, &view{st: next}); err != nil {
		return err
	}
	s.current.Store(next)
	return nil
}

// View runs fn against the last published state.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, r storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &view{st: s.current.Load(), readOnly: true})
}

// mutate applies fn to a copy of the state under the write lock.
func (s *Store) mutate(ctx context.Context, op string, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock, err := s.lock.Acquire(ctx, op)
	if err != nil {
		return err
	}
	defer unlock()

	next := s.current.Load().clone()
	if err := fn(next); err != nil {
		return err
	}
	s.current.Store(next)
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
