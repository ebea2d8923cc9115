package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// questionStore implements driven.QuestionStore.
type questionStore struct {
	store *Store
}

var _ driven.QuestionStore = (*questionStore)(nil)

const questionColumns = `id, document_id, section_id, type, content, status, violations, metadata, srs,
	provider, model, created_at`

// SaveAll stores or updates questions in one transaction.
func (s *questionStore) SaveAll(ctx context.Context, questions []domain.Question) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (`+questionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			section_id = excluded.section_id,
			type = excluded.type,
			content = excluded.content,
			status = excluded.status,
			violations = excluded.violations,
			metadata = excluded.metadata,
			srs = excluded.srs,
			provider = excluded.provider,
			model = excluded.model
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, q := range questions {
		if q.ID == "" {
			return domain.ErrInvalidInput
		}
		content, err := marshalJSON(q.Content, "content")
		if err != nil {
			return err
		}
		violations := q.Violations
		if violations == nil {
			violations = []domain.Violation{}
		}
		violationsJSON, err := marshalJSON(violations, "violations")
		if err != nil {
			return err
		}
		metadata, err := marshalJSON(q.Metadata, "metadata")
		if err != nil {
			return err
		}
		srs, err := marshalJSON(q.SRS, "srs")
		if err != nil {
			return err
		}

		if _, err := stmt.ExecContext(ctx, q.ID, q.Origin.DocumentID, q.Origin.SectionID,
			string(q.Type), content, string(q.Status), violationsJSON, metadata, srs,
			string(q.Provider), q.Model, formatTime(q.CreatedAt)); err != nil {
			return fmt.Errorf("saving question %s: %w", q.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a question by ID.
func (s *questionStore) Get(ctx context.Context, id string) (*domain.Question, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return q, err
}

// Find returns questions matching the filter, oldest first.
func (s *questionStore) Find(ctx context.Context, filter driven.QuestionFilter) ([]domain.Question, error) {
	var where []string
	var args []any
	if filter.DocumentID != "" {
		where = append(where, "document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}

	query := `SELECT ` + questionColumns + ` FROM questions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question //nolint:prealloc // size unknown from query
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating questions: %w", err)
	}
	return out, nil
}

// CountByStatus returns per-status counts for a document.
func (s *questionStore) CountByStatus(ctx context.Context, documentID string) (map[domain.ValidationStatus]int, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM questions WHERE document_id = ? GROUP BY status
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("counting questions: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ValidationStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[domain.ValidationStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}
	return counts, nil
}

// DeleteByDocument removes all questions of a document.
func (s *questionStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM questions WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting questions: %w", err)
	}
	return nil
}

// scanQuestion returns sql.ErrNoRows unwrapped so Get can map it.
func scanQuestion(row rowScanner) (*domain.Question, error) {
	var q domain.Question
	var qtype, status, provider, createdAt string
	var content, violations, metadata, srs string
	if err := row.Scan(&q.ID, &q.Origin.DocumentID, &q.Origin.SectionID, &qtype, &content, &status,
		&violations, &metadata, &srs, &provider, &q.Model, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning question: %w", err)
	}
	q.Type = domain.QuestionType(qtype)
	q.Status = domain.ValidationStatus(status)
	q.Provider = domain.AIProvider(provider)
	q.CreatedAt = parseTime(createdAt)

	if err := unmarshalJSON(content, &q.Content, "content"); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(violations, &q.Violations, "violations"); err != nil {
		return nil, err
	}
	if len(q.Violations) == 0 {
		q.Violations = nil
	}
	if err := unmarshalJSON(metadata, &q.Metadata, "metadata"); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(srs, &q.SRS, "srs"); err != nil {
		return nil, err
	}
	return &q, nil
}
