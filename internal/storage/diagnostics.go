package storage

import (
	"context"

	"github.com/scopecraft/scopecraft/internal/core"
)

// Append records one generation attempt in the generation_log table. The table
// is append-only; nothing in the application reads it back, it exists for
// operators debugging provider behavior.
func (s *Store) Append(ctx context.Context, attempt *core.GenerationAttempt) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO generation_log (id, operation, attempt, prompt_snippet, outcome, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, attempt.ID, attempt.Operation, attempt.Attempt, attempt.PromptSnippet,
		attempt.Outcome, attempt.Detail, attempt.Timestamp)

	return err
}
