// Package hashdb records file checksums in a sqlite database so that they
// can be compared between runs.
package hashdb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/charlievieth/utils/stm32crc/pkg/filecrc"
)

//go:embed sql/create_runs_table.sql
var createRunsTableStmt string

//go:embed sql/create_checksums_table.sql
var createChecksumsTableStmt string

//go:embed sql/insert_checksum.sql
var insertChecksumStmt string

//go:embed sql/select_latest.sql
var selectLatestStmt string

var ErrNotFound = errors.New("hashdb: no record for path")

type DB struct {
	db *sql.DB
}

type Run struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

type Record struct {
	RunID     uuid.UUID
	CreatedAt time.Time
	Path      string
	Size      int64
	CRC       uint32
}

// connectionString returns a "file:" URI DSN for the database at name.
// The path is escaped so that names containing '?', '#' or '%' open the
// file they name.
func connectionString(name string) string {
	p := filepath.ToSlash(name)
	if filepath.VolumeName(name) != "" {
		p = "/" + p
	}
	v := url.Values{}
	v.Set("_foreign_keys", "1")
	v.Set("_cache_size", "-4000")
	v.Set("_mutex", "full")
	v.Set("_journal_mode", "TRUNCATE")
	return "file:" + (&url.URL{Path: p}).EscapedPath() + "?" + v.Encode()
}

// key returns the absolute form of path so that every spelling of a file
// shares one history.
func key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Open opens the database at name, creating it and its tables if they do
// not exist.
func Open(ctx context.Context, name string) (*DB, error) {
	db, err := sql.Open("sqlite3", connectionString(name))
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		createRunsTableStmt,
		createChecksumsTableStmt,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// NewRun creates a run that subsequent inserts are grouped under.
func (d *DB) NewRun(ctx context.Context) (*Run, error) {
	run := &Run{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
	const query = `INSERT INTO runs (id, created_at) VALUES (?, ?);`
	if _, err := d.db.ExecContext(ctx, query, run.ID.String(), run.CreatedAt); err != nil {
		return nil, err
	}
	return run, nil
}

func extension(path string) *string {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" || ext == base {
		return nil
	}
	return &ext
}

// Insert records results under run, keyed by absolute path, in a single
// transaction.
func (d *DB) Insert(ctx context.Context, run *Run, results ...*filecrc.Result) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, insertChecksumStmt)
	if err != nil {
		return err
	}
	defer stmt.Close()
	id := run.ID.String()
	for _, r := range results {
		path := key(r.Name)
		_, err := stmt.ExecContext(ctx, id, path, filepath.Base(path),
			extension(path), r.Size, int64(r.CRC))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Latest returns the most recent record for path or ErrNotFound. Records
// are keyed by absolute path.
func (d *DB) Latest(ctx context.Context, path string) (*Record, error) {
	var (
		rec   Record
		runID string
		crc   int64
	)
	err := d.db.QueryRowContext(ctx, selectLatestStmt, key(path)).Scan(
		&runID, &rec.CreatedAt, &rec.Path, &rec.Size, &crc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if rec.RunID, err = uuid.Parse(runID); err != nil {
		return nil, err
	}
	rec.CRC = uint32(crc)
	return &rec, nil
}
