package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// documentIndex implements driven.DocumentIndex.
type documentIndex struct {
	store *Store
}

var _ driven.DocumentIndex = (*documentIndex)(nil)

const documentColumns = `id, hash, path, name, total_pages, section_count, created_at, processed_at`

// Save stores or updates a document. The original creation time is kept.
func (d *documentIndex) Save(ctx context.Context, doc domain.Document) error {
	if doc.ID == "" || doc.Hash == "" {
		return domain.ErrInvalidInput
	}

	_, err := d.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hash = excluded.hash,
			path = excluded.path,
			name = excluded.name,
			total_pages = excluded.total_pages,
			section_count = excluded.section_count,
			processed_at = excluded.processed_at
	`, doc.ID, doc.Hash, doc.Path, doc.Name, doc.TotalPages, doc.SectionCount,
		formatTime(doc.CreatedAt), formatNullableTime(doc.ProcessedAt))

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// Get retrieves a document by ID.
func (d *documentIndex) Get(ctx context.Context, id string) (*domain.Document, error) {
	row := d.store.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// GetByHash retrieves a document by content hash.
func (d *documentIndex) GetByHash(ctx context.Context, hash string) (*domain.Document, error) {
	row := d.store.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE hash = ?`, hash)
	return scanDocument(row)
}

// List returns all documents, newest first.
func (d *documentIndex) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var createdAt string
	var processedAt sql.NullString
	if err := row.Scan(&doc.ID, &doc.Hash, &doc.Path, &doc.Name, &doc.TotalPages,
		&doc.SectionCount, &createdAt, &processedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.CreatedAt = parseTime(createdAt)
	doc.ProcessedAt = parseNullableTime(processedAt)
	return &doc, nil
}
