// Package store is a compile cache mapping source text to compiled images.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/tliron/commonlog"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"

	"sable/internal/ir"
)

var log = commonlog.GetLogger("sable.store")

// Supported drivers, as named in sable.toml.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var schema = map[string]string{
	DriverSQLite: `CREATE TABLE IF NOT EXISTS images (
		key TEXT PRIMARY KEY,
		image BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	DriverPostgres: `CREATE TABLE IF NOT EXISTS images (
		key TEXT PRIMARY KEY,
		image BYTEA NOT NULL,
		created_at BIGINT NOT NULL
	)`,
}

// Store is a compile cache backed by database/sql. It is safe for
// concurrent use.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the cache database and creates the table if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	ddl, ok := schema[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported cache driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == DriverSQLite {
		// An in-memory database exists per connection.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened %s cache", driver)
	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Key is the cache key of a source text: the hex blake2b-256 of the source
// salted with the image version, so a format change never hits stale rows.
func Key(src string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("sable-image-v" + strconv.Itoa(ir.ImageVersion) + "\x00"))
	h.Write([]byte(src))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached unit for key. A corrupt row counts as a miss.
func (s *Store) Get(ctx context.Context, key string) (*ir.Bytecode, bool, error) {
	var image []byte
	err := s.db.QueryRowContext(ctx, s.bind("SELECT image FROM images WHERE key = ?"), key).Scan(&image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying image: %w", err)
	}

	bc, err := ir.UnmarshalBytecode(image)
	if err != nil {
		log.Warningf("discarding cached image %s: %s", key, err)
		return nil, false, nil
	}
	return bc, true, nil
}

// Put stores the unit under key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key string, bc *ir.Bytecode) error {
	image, err := ir.MarshalBytecode(bc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.bind(
		`INSERT INTO images (key, image, created_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET image = excluded.image, created_at = excluded.created_at`),
		key, image, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	return nil
}

// Len returns the number of cached images.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting images: %w", err)
	}
	return n, nil
}

// Purge removes every cached image.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM images"); err != nil {
		return fmt.Errorf("purging images: %w", err)
	}
	return nil
}

// bind rewrites ? placeholders to $n for postgres.
func (s *Store) bind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
