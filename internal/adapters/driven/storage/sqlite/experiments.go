package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

// experimentStore implements driven.ExperimentStore.
type experimentStore struct {
	store *Store
}

var _ driven.ExperimentStore = (*experimentStore)(nil)

const experimentColumns = `id, run_id, document_id, stage, config, counts, provider, model,
	tokens_used, cost_estimate, duration_ms, success, error, created_at`

// Save inserts an experiment. Existing IDs are rejected.
func (s *experimentStore) Save(ctx context.Context, exp domain.Experiment) error {
	config, err := marshalJSON(exp.Config, "config")
	if err != nil {
		return err
	}
	counts := exp.Counts
	if counts == nil {
		counts = map[string]int{}
	}
	countsJSON, err := marshalJSON(counts, "counts")
	if err != nil {
		return err
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO experiments (`+experimentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, exp.ID, exp.RunID, exp.DocumentID, string(exp.Stage), config, countsJSON,
		string(exp.Provider), exp.Model, exp.TokensUsed, exp.CostEstimate,
		exp.Duration.Milliseconds(), boolToInt(exp.Success), nullString(exp.Error),
		formatTime(exp.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving experiment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving experiment: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("experiment %s already recorded: %w", exp.ID, domain.ErrInvalidInput)
	}
	return nil
}

// ListByDocument returns a document's experiments in insertion order.
func (s *experimentStore) ListByDocument(ctx context.Context, documentID string) ([]domain.Experiment, error) {
	return s.list(ctx, "document_id", documentID)
}

// ListByRun returns a run's experiments in insertion order.
func (s *experimentStore) ListByRun(ctx context.Context, runID string) ([]domain.Experiment, error) {
	return s.list(ctx, "run_id", runID)
}

func (s *experimentStore) list(ctx context.Context, column, value string) ([]domain.Experiment, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+experimentColumns+` FROM experiments WHERE `+column+` = ? ORDER BY seq
	`, value)
	if err != nil {
		return nil, fmt.Errorf("querying experiments: %w", err)
	}
	defer rows.Close()

	var out []domain.Experiment //nolint:prealloc // size unknown from query
	for rows.Next() {
		var exp domain.Experiment
		var stage, config, counts, provider, createdAt string
		var durationMS int64
		var success int
		var errText sql.NullString
		if err := rows.Scan(&exp.ID, &exp.RunID, &exp.DocumentID, &stage, &config, &counts,
			&provider, &exp.Model, &exp.TokensUsed, &exp.CostEstimate, &durationMS, &success,
			&errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning experiment: %w", err)
		}
		exp.Stage = domain.Stage(stage)
		exp.Provider = domain.AIProvider(provider)
		exp.Duration = time.Duration(durationMS) * time.Millisecond
		exp.Success = success == 1
		exp.Error = errText.String
		exp.CreatedAt = parseTime(createdAt)
		if err := unmarshalJSON(config, &exp.Config, "config"); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(counts, &exp.Counts, "counts"); err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating experiments: %w", err)
	}
	return out, nil
}
