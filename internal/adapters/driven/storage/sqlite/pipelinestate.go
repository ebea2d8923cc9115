package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// pipelineStateStore implements driven.PipelineStateStore.
type pipelineStateStore struct {
	store *Store
}

var _ driven.PipelineStateStore = (*pipelineStateStore)(nil)

// Get returns the state for a document.
func (s *pipelineStateStore) Get(ctx context.Context, documentID string) (*domain.PipelineState, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT document_id, completed, last_run_id, updated_at
		FROM pipeline_states WHERE document_id = ?
	`, documentID)

	var docID, completed, lastRunID string
	var updatedAt sql.NullString
	if err := row.Scan(&docID, &completed, &lastRunID, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning pipeline state: %w", err)
	}

	var stamps map[domain.Stage]string
	if err := unmarshalJSON(completed, &stamps, "completed stages"); err != nil {
		return nil, err
	}

	state := domain.NewPipelineState(docID)
	for stage, at := range stamps {
		state.Completed[stage] = parseTime(at)
	}
	state.LastRunID = lastRunID
	state.UpdatedAt = parseNullableTime(updatedAt)
	return state, nil
}

// Save stores the state, replacing any previous one.
func (s *pipelineStateStore) Save(ctx context.Context, state domain.PipelineState) error {
	if state.DocumentID == "" {
		return domain.ErrInvalidInput
	}

	stamps := make(map[domain.Stage]string, len(state.Completed))
	for stage, at := range state.Completed {
		stamps[stage] = formatTime(at)
	}
	completed, err := marshalJSON(stamps, "completed stages")
	if err != nil {
		return err
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO pipeline_states (document_id, completed, last_run_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			completed = excluded.completed,
			last_run_id = excluded.last_run_id,
			updated_at = excluded.updated_at
	`, state.DocumentID, completed, state.LastRunID, formatNullableTime(state.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving pipeline state: %w", err)
	}
	return nil
}

