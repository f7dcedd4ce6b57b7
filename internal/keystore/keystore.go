// Package keystore implements the Keystore Facade: append-and-lookup
// of (tag -> host, port, public key) entries used to resolve outbound
// connections. The on-disk format is out of scope for the core (spec:
// "the keystore on-disk format" is a contract-only external
// collaborator); this package only needs a place to persist the
// mapping, so it uses the same modernc.org/sqlite driver the rest of
// this codebase's lineage uses for local state.
package keystore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrAlreadyOpen is returned by Open when a keystore is already open
// in this process; only one keystore may be open at a time.
var ErrAlreadyOpen = errors.New("keystore: a keystore is already open in this process")

var openMu sync.Mutex
var openCount int

const schema = `
CREATE TABLE IF NOT EXISTS tags (
	tag    TEXT PRIMARY KEY,
	host   TEXT NOT NULL,
	port   INTEGER NOT NULL,
	pubkey BLOB
);`

// Entry is one (tag -> host, port, pubkey) mapping.
type Entry struct {
	Tag    string
	Host   string
	Port   int
	Pubkey []byte
}

// Store is an open keystore, backed by a directory descriptor opened
// from ARCAN_STATEPATH (or the dir the caller passes explicitly).
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens (creating if missing, with owner-only permissions) the
// keystore rooted at dir. Only one Store may be open at a time in
// this process.
func Open(dir string) (*Store, error) {
	openMu.Lock()
	defer openMu.Unlock()
	if openCount > 0 {
		return nil, ErrAlreadyOpen
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("keystore: create state dir: %w", err)
	}

	dbPath := filepath.Join(dir, "keystore.sqlite")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("keystore: open %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("keystore: apply schema: %w", err)
	}

	openCount++
	return &Store{db: db, dir: dir}, nil
}

// Close releases the keystore, allowing a subsequent Open in this
// process.
func (s *Store) Close() error {
	openMu.Lock()
	defer openMu.Unlock()
	openCount--
	return s.db.Close()
}

// Lookup resolves tag to (host, port, pubkey), or reports ok=false if
// the tag is not registered.
func (s *Store) Lookup(tag string) (entry Entry, ok bool, err error) {
	row := s.db.QueryRow(`SELECT tag, host, port, pubkey FROM tags WHERE tag = ?`, tag)
	var e Entry
	if scanErr := row.Scan(&e.Tag, &e.Host, &e.Port, &e.Pubkey); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("keystore: lookup %s: %w", tag, scanErr)
	}
	return e, true, nil
}

// Register appends (or overwrites) a (tag -> host, port) mapping.
// Pubkey may be nil: the authenticated key exchange itself is out of
// scope, so this core never validates key material, only stores it.
//
// A failed Register must be treated by the caller as fatal to the CLI
// invocation that requested it (non-zero exit with a diagnostic) --
// unlike the original, which discarded this return value.
func (s *Store) Register(tag, host string, port int, pubkey []byte) error {
	if tag == "" || host == "" {
		return fmt.Errorf("keystore: register: tag and host are required")
	}
	_, err := s.db.Exec(
		`INSERT INTO tags (tag, host, port, pubkey) VALUES (?, ?, ?, ?)
		 ON CONFLICT(tag) DO UPDATE SET host = excluded.host, port = excluded.port, pubkey = excluded.pubkey`,
		tag, host, port, pubkey,
	)
	if err != nil {
		return fmt.Errorf("keystore: register %s: %w", tag, err)
	}
	return nil
}
