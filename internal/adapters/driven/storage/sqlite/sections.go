package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// sectionStore implements driven.SectionStore.
type sectionStore struct {
	store *Store
}

var _ driven.SectionStore = (*sectionStore)(nil)

const sectionColumns = `document_id, ordinal, title, text, page, bbox_x, bbox_y, bbox_width, bbox_height`

const scoreColumns = `semantic_fitness, legal_relevance, conceptual_density, contextual_clarity, composite, conserved`

// SaveAll stores or replaces sections. Stored classification scores are kept.
func (s *sectionStore) SaveAll(ctx context.Context, sections []domain.Section) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sections (`+sectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, ordinal) DO UPDATE SET
			title = excluded.title,
			text = excluded.text,
			page = excluded.page,
			bbox_x = excluded.bbox_x,
			bbox_y = excluded.bbox_y,
			bbox_width = excluded.bbox_width,
			bbox_height = excluded.bbox_height
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, sec := range sections {
		if _, err := stmt.ExecContext(ctx, sec.DocumentID, sec.ID, sec.Title, sec.Text, sec.Page,
			sec.BBox.X, sec.BBox.Y, sec.BBox.Width, sec.BBox.Height); err != nil {
			return fmt.Errorf("saving section %d: %w", sec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// FindAll returns a document's sections in ordinal order.
func (s *sectionStore) FindAll(ctx context.Context, documentID string) ([]domain.Section, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+sectionColumns+` FROM sections WHERE document_id = ? ORDER BY ordinal
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	var sections []domain.Section //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sec domain.Section
		if err := rows.Scan(&sec.DocumentID, &sec.ID, &sec.Title, &sec.Text, &sec.Page,
			&sec.BBox.X, &sec.BBox.Y, &sec.BBox.Width, &sec.BBox.Height); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		sections = append(sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sections: %w", err)
	}
	return sections, nil
}

// SaveClassifications stores classification scores. The tier is not
// stored; it is recomputed against the thresholds of each query.
func (s *sectionStore) SaveClassifications(ctx context.Context, classified []domain.ClassifiedSection) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE sections SET
			semantic_fitness = ?,
			legal_relevance = ?,
			conceptual_density = ?,
			contextual_clarity = ?,
			composite = ?,
			conserved = ?
		WHERE document_id = ? AND ordinal = ?
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range classified {
		r := c.Result
		res, err := stmt.ExecContext(ctx, r.SemanticFitness, r.LegalRelevance, r.ConceptualDensity,
			r.ContextualClarity, r.Composite, boolToInt(r.Conserved), c.Section.DocumentID, c.Section.ID)
		if err != nil {
			return fmt.Errorf("saving classification of section %d: %w", c.Section.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("section %s/%d: %w", c.Section.DocumentID, c.Section.ID, domain.ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// FindClassified returns classified sections retiered against t.
func (s *sectionStore) FindClassified(
	ctx context.Context,
	documentID string,
	t domain.Thresholds,
) ([]domain.ClassifiedSection, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+sectionColumns+`, `+scoreColumns+`
		FROM sections
		WHERE document_id = ? AND composite IS NOT NULL
		ORDER BY ordinal
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying classified sections: %w", err)
	}
	defer rows.Close()

	var out []domain.ClassifiedSection //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sec domain.Section
		var r domain.ClassificationResult
		var conserved sql.NullInt64
		if err := rows.Scan(&sec.DocumentID, &sec.ID, &sec.Title, &sec.Text, &sec.Page,
			&sec.BBox.X, &sec.BBox.Y, &sec.BBox.Width, &sec.BBox.Height,
			&r.SemanticFitness, &r.LegalRelevance, &r.ConceptualDensity, &r.ContextualClarity,
			&r.Composite, &conserved); err != nil {
			return nil, fmt.Errorf("scanning classified section: %w", err)
		}
		r.Conserved = conserved.Int64 == 1
		out = append(out, domain.ClassifiedSection{Section: sec, Result: r.Retier(t)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating classified sections: %w", err)
	}
	return out, nil
}

// FindRelevant returns sections whose retiered tier flows on to generation.
func (s *sectionStore) FindRelevant(
	ctx context.Context,
	documentID string,
	t domain.Thresholds,
	includeReview bool,
) ([]domain.Section, error) {
	classified, err := s.FindClassified(ctx, documentID, t)
	if err != nil {
		return nil, err
	}
	var out []domain.Section
	for _, c := range classified {
		if c.Result.Tier.IsKept(includeReview) {
			out = append(out, c.Section)
		}
	}
	return out, nil
}

// DeleteByDocument removes all sections of a document.
func (s *sectionStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM sections WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting sections: %w", err)
	}
	return nil
}
