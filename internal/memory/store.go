// internal/memory/store.go
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/lumix-ai/hopfield/internal/core"
	"github.com/lumix-ai/hopfield/internal/patterns"
)

var (
	ErrEmptyPattern    = errors.New("memory: cannot store an empty pattern")
	ErrPatternExists   = errors.New("memory: pattern name already stored")
	ErrPatternNotFound = errors.New("memory: pattern not found")
)

type Config struct {
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cache_size"`
}

// Entry - one stored pattern
type Entry struct {
	ID        int64
	Name      string
	Pattern   core.Pattern
	CreatedAt time.Time
}

// Store - persistent pattern collection.
// SQLite holds the list; an LRU keeps recently read entries in RAM.
type Store struct {
	db    *sql.DB
	size  int
	cache *lru.Cache[string, Entry]
	mu    sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS patterns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT    NOT NULL UNIQUE,
	size       INTEGER NOT NULL,
	bits       TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);`

// Open - opens (or creates) the store for patterns of the given size
func Open(cfg Config, size int) (*Store, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", core.ErrInvalidSize, size)
	}
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 128
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern store: %w", err)
	}
	// single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate pattern store: %w", err)
	}

	cache, err := lru.New[string, Entry](cacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Int("size", size).Msg("Pattern store opened")

	return &Store{db: db, size: size, cache: cache}, nil
}

func (s *Store) Size() int { return s.size }

// Add stores a copy of p. An empty name becomes "Pattern <n>", starting at
// count+1 and skipping numbers already taken.
func (s *Store) Add(ctx context.Context, name string, p core.Pattern) (Entry, error) {
	if err := p.Validate(s.size); err != nil {
		return Entry{}, err
	}
	if p.Sum() == 0 {
		return Entry{}, ErrEmptyPattern
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	auto := name == ""
	next := 0
	if auto {
		n, err := s.countLocked(ctx)
		if err != nil {
			return Entry{}, err
		}
		next = n + 1
	}

	now := time.Now().UTC()
	var res sql.Result
	for {
		if auto {
			name = fmt.Sprintf("Pattern %d", next)
		}
		var err error
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO patterns (name, size, bits, created_at) VALUES (?, ?, ?, ?)`,
			name, s.size, patterns.Format(p), now.UnixNano())
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return Entry{}, fmt.Errorf("failed to store pattern: %w", err)
		}
		if !auto {
			return Entry{}, fmt.Errorf("%w: %q", ErrPatternExists, name)
		}
		// deletions leave gaps, so "Pattern <count+1>" may be taken
		next++
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{ID: id, Name: name, Pattern: p.Clone(), CreatedAt: now}
	s.cache.Add(name, entry)
	return cloneEntry(entry), nil
}

func (s *Store) Get(ctx context.Context, name string) (Entry, error) {
	if e, ok := s.cache.Get(name); ok {
		return cloneEntry(e), nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, bits, created_at FROM patterns WHERE name = ?`, name)
	e, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %q", ErrPatternNotFound, name)
	}
	if err != nil {
		return Entry{}, err
	}
	s.cache.Add(name, e)
	return cloneEntry(e), nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM patterns WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete pattern: %w", err)
	}
	s.cache.Remove(name)
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrPatternNotFound, name)
	}
	return nil
}

// List returns entries in insertion order.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, bits, created_at FROM patterns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Patterns - stored patterns only, in insertion order
func (s *Store) Patterns(ctx context.Context) ([]core.Pattern, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Pattern, len(entries))
	for i, e := range entries {
		out[i] = e.Pattern
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(ctx)
}

func (s *Store) countLocked(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patterns`).Scan(&n)
	return n, err
}

func (s *Store) Close() error {
	s.cache.Purge()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(row scanner) (Entry, error) {
	var (
		e       Entry
		bits    string
		created int64
	)
	if err := row.Scan(&e.ID, &e.Name, &bits, &created); err != nil {
		return Entry{}, err
	}
	p, err := patterns.Parse(bits)
	if err != nil {
		return Entry{}, fmt.Errorf("corrupt pattern %q: %w", e.Name, err)
	}
	if err := p.Validate(s.size); err != nil {
		return Entry{}, fmt.Errorf("stored pattern %q: %w", e.Name, err)
	}
	e.Pattern = p
	e.CreatedAt = time.Unix(0, created).UTC()
	return e, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func cloneEntry(e Entry) Entry {
	e.Pattern = e.Pattern.Clone()
	return e
}
