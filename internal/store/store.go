// Package store keeps chunked books and their embeddings in SQLite.
//
// The caller opens the database with Open; the modernc.org/sqlite driver is
// registered by this package.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dgallion1/bookchunk/internal/book"
)

// ErrNotFound is returned when a book id or hash is unknown.
var ErrNotFound = errors.New("book not found")

const schema = `
CREATE TABLE IF NOT EXISTS books (
    id           TEXT PRIMARY KEY,
    source       TEXT NOT NULL,
    title        TEXT NOT NULL DEFAULT '',
    resource     TEXT NOT NULL DEFAULT '',
    class        TEXT NOT NULL DEFAULT '',
    subject      TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    strategy     TEXT NOT NULL,
    config       TEXT NOT NULL DEFAULT '{}',
    toc          TEXT NOT NULL DEFAULT '{}',
    chunk_count  INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
    book_id        TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
    seq            INTEGER NOT NULL,
    content        TEXT NOT NULL,
    page_number    INTEGER NOT NULL,
    chapter_number INTEGER NOT NULL,
    embedding      BLOB NOT NULL,
    PRIMARY KEY (book_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_books_hash ON books(content_hash);
CREATE INDEX IF NOT EXISTS idx_chunks_chapter ON chunks(book_id, chapter_number);
`

// Book is the stored summary of one chunked book.
type Book struct {
	ID          string               `json:"id"`
	Source      string               `json:"source"`
	Title       string               `json:"title"`
	Resource    string               `json:"resource,omitempty"`
	Class       string               `json:"class,omitempty"`
	Subject     string               `json:"subject,omitempty"`
	ContentHash string               `json:"content_hash"`
	Strategy    string               `json:"strategy"`
	Config      json.RawMessage      `json:"chunker_config"`
	TOC         book.TableOfContents `json:"table_of_contents"`
	ChunkCount  int                  `json:"chunk_count"`
	CreatedAt   time.Time            `json:"created_at"`
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: in-memory databases are per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBook inserts b and its chunks in one transaction. An empty b.ID is
// replaced with a new UUIDv7; the stored id is returned.
func (s *Store) SaveBook(ctx context.Context, b Book, chunks []book.Chunk) (string, error) {
	if b.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate book id: %w", err)
		}
		b.ID = id.String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	if len(b.Config) == 0 {
		b.Config = json.RawMessage("{}")
	}
	tocJSON, err := json.Marshal(b.TOC)
	if err != nil {
		return "", fmt.Errorf("marshal toc: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO books
        (id, source, title, resource, class, subject, content_hash, strategy, config, toc, chunk_count, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Source, b.Title, b.Resource, b.Class, b.Subject, b.ContentHash,
		b.Strategy, string(b.Config), string(tocJSON), len(chunks), b.CreatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert book: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
        (book_id, seq, content, page_number, chapter_number, embedding)
        VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()
	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, b.ID, i, c.Content, c.PageNumber, c.ChapterNumber, SerializeVector(c.Embedding)); err != nil {
			return "", fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return b.ID, nil
}

const bookColumns = `id, source, title, resource, class, subject, content_hash, strategy, config, toc, chunk_count, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (Book, error) {
	var (
		b         Book
		config    string
		tocJSON   string
		createdMS int64
	)
	err := row.Scan(&b.ID, &b.Source, &b.Title, &b.Resource, &b.Class, &b.Subject,
		&b.ContentHash, &b.Strategy, &config, &tocJSON, &b.ChunkCount, &createdMS)
	if err != nil {
		return Book{}, err
	}
	b.Config = json.RawMessage(config)
	if err := json.Unmarshal([]byte(tocJSON), &b.TOC); err != nil {
		return Book{}, fmt.Errorf("decode toc of %s: %w", b.ID, err)
	}
	b.CreatedAt = time.UnixMilli(createdMS)
	return b, nil
}

// GetBook returns the book with the given id.
func (s *Store) GetBook(ctx context.Context, id string) (Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrNotFound
	}
	if err != nil {
		return Book{}, fmt.Errorf("get book %s: %w", id, err)
	}
	return b, nil
}

// FindByHash returns the newest book stored for a content hash. A book
// re-chunked with different settings shares the hash of its earlier runs.
func (s *Store) FindByHash(ctx context.Context, hash string) (Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books
        WHERE content_hash = ? ORDER BY created_at DESC, id DESC LIMIT 1`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return Book{}, ErrNotFound
	}
	if err != nil {
		return Book{}, fmt.Errorf("find book by hash: %w", err)
	}
	return b, nil
}

// ListBooks returns every book, newest first.
func (s *Store) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Chunks returns the chunks of a book in their original order.
func (s *Store) Chunks(ctx context.Context, bookID string) ([]book.Chunk, error) {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT content, page_number, chapter_number, embedding
        FROM chunks WHERE book_id = ? ORDER BY seq`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	out := []book.Chunk{}
	for rows.Next() {
		var (
			c    book.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.Content, &c.PageNumber, &c.ChapterNumber, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Embedding = DeserializeVector(blob)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteBook removes a book and, by cascade, its chunks.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SerializeVector encodes a vector as little-endian float32s.
func SerializeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DeserializeVector reverses SerializeVector.
func DeserializeVector(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
