package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// Index is a sqlite read model of save activity. It is advisory: the
// chunk files are the source of truth, and writes that cannot keep up
// are dropped rather than stalling the world loop. A single writer
// goroutine owns the connection.
type Index struct {
	db *sql.DB

	ch   chan saveRow
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type saveRow struct {
	CX      int
	CZ      int
	Digest  string
	SavedAt string
}

func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunk_saves (
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			digest TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			saves INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (cx, cz)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_saves_at ON chunk_saves(saved_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	idx := &Index{
		db: db,
		ch: make(chan saveRow, 4096),
	}
	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		idx.loop()
	}()
	return idx, nil
}

func (i *Index) loop() {
	for row := range i.ch {
		_, err := i.db.Exec(
			`INSERT INTO chunk_saves (cx, cz, digest, saved_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(cx, cz) DO UPDATE SET digest = excluded.digest, saved_at = excluded.saved_at, saves = saves + 1;`,
			row.CX, row.CZ, row.Digest, row.SavedAt,
		)
		if err != nil {
			// Index writes are best effort.
			continue
		}
	}
}

// RecordSave notes one chunk save. Non-blocking.
func (i *Index) RecordSave(cx, cz int, digest string) {
	if i == nil || i.closed.Load() {
		return
	}
	row := saveRow{CX: cx, CZ: cz, Digest: digest, SavedAt: time.Now().UTC().Format(time.RFC3339Nano)}
	select {
	case i.ch <- row:
	default:
	}
}

// SetMeta stores one key/value pair synchronously, for boot-time facts
// like the palette digest and world seed.
func (i *Index) SetMeta(key, value string) error {
	if i == nil {
		return nil
	}
	_, err := i.db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value;`,
		key, value,
	)
	return err
}

// SaveCount reports how many times the chunk has ever been saved.
func (i *Index) SaveCount(cx, cz int) (int, error) {
	if i == nil {
		return 0, nil
	}
	var n int
	err := i.db.QueryRow(`SELECT saves FROM chunk_saves WHERE cx = ? AND cz = ?;`, cx, cz).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

func (i *Index) Close() error {
	var err error
	i.once.Do(func() {
		i.closed.Store(true)
		close(i.ch)
		i.wg.Wait()
		err = i.db.Close()
	})
	return err
}
