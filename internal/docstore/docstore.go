// Package docstore provides durable, content-addressed storage for graph
// documents. Uses SQLite with WAL mode for concurrent read access. A stored
// document is keyed by the hash of its serialized bytes, so saving the same
// network twice is a no-op and history survives renames.
package docstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/protograph/protograph/internal/graph"
	"github.com/protograph/protograph/internal/serialize"
	"github.com/protograph/protograph/internal/value"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when no document matches the requested key.
var ErrNotFound = errors.New("docstore: document not found")

// Store holds graph documents in a SQLite database.
type Store struct {
	db         *sql.DB
	serializer *serialize.Serializer
	codec      string
	compress   string
}

// Open creates or opens the database at path. Documents are written with the
// default serializer (msgpack, zstd); any stored codec/compression pairing
// can still be read back.
//
// Idempotent: pragmas and schema apply on every open.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("docstore: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore: connect: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("docstore: %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("docstore: schema: %w", err)
	}

	return &Store{
		db:         db,
		serializer: serialize.Default(),
		codec:      "msgpack",
		compress:   string(serialize.CompressionZstd),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Entry describes one stored document.
type Entry struct {
	Hash      string
	Name      string
	CreatedAt string
}

// Put stores a document under name and returns its content hash. Storing
// identical bytes again returns the same hash without writing a new row.
func (s *Store) Put(ctx context.Context, name string, nw *graph.NodeNetwork) (string, error) {
	data, err := s.serializer.MarshalNetwork(nw)
	if err != nil {
		return "", fmt.Errorf("docstore: put %q: %w", name, err)
	}
	hash := value.HashWithDomain(value.DomainDocument, data)

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (hash, name, codec, compression, data) VALUES (?, ?, ?, ?, ?)`,
		hash, name, s.codec, s.compress, data)
	if err != nil {
		return "", fmt.Errorf("docstore: put %q: %w", name, err)
	}
	return hash, nil
}

// Get loads the document with the given content hash.
func (s *Store) Get(ctx context.Context, hash string) (*graph.NodeNetwork, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT codec, compression, data FROM documents WHERE hash = ?`, hash)
	return s.scanDocument(row, hash)
}

// GetLatest loads the most recently stored document under name.
func (s *Store) GetLatest(ctx context.Context, name string) (*graph.NodeNetwork, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT codec, compression, data FROM documents WHERE name = ? ORDER BY created_at DESC, hash LIMIT 1`, name)
	return s.scanDocument(row, name)
}

// List returns all stored documents, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, name, created_at FROM documents ORDER BY created_at DESC, hash`)
	if err != nil {
		return nil, fmt.Errorf("docstore: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Hash, &e.Name, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("docstore: list: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: list: %w", err)
	}
	return entries, nil
}

func (s *Store) scanDocument(row *sql.Row, key string) (*graph.NodeNetwork, error) {
	var codec, compression string
	var data []byte
	if err := row.Scan(&codec, &compression, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return nil, fmt.Errorf("docstore: get %q: %w", key, err)
	}

	ser, err := serializerFor(codec, compression)
	if err != nil {
		return nil, fmt.Errorf("docstore: get %q: %w", key, err)
	}
	nw, err := ser.UnmarshalNetwork(data)
	if err != nil {
		return nil, fmt.Errorf("docstore: get %q: %w", key, err)
	}
	return nw, nil
}

func serializerFor(codec, compression string) (*serialize.Serializer, error) {
	var c serialize.Codec
	switch codec {
	case "json":
		c = serialize.JSONCodec{}
	case "msgpack":
		c = serialize.MsgpackCodec{}
	default:
		return nil, fmt.Errorf("unknown codec %q", codec)
	}
	switch comp := serialize.Compression(compression); comp {
	case serialize.CompressionNone, serialize.CompressionGzip, serialize.CompressionZstd:
		return serialize.New(c, comp), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}
