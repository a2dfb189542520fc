package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"promptforge/internal/types"
)

// PromptRepository provides data access for the prompts table.
type PromptRepository struct {
	db DBTX
}

// NewPromptRepository creates a new PromptRepository backed by the given
// database connection (pool or transaction).
func NewPromptRepository(db DBTX) *PromptRepository {
	return &PromptRepository{db: db}
}

const promptColumns = `p.id, p.author_id, p.title, p.body, p.visibility,
	p.copy_count, p.created_at, p.updated_at`

func scanPrompt(row pgx.Row) (*types.Prompt, error) {
	var p types.Prompt
	err := row.Scan(
		&p.ID,
		&p.AuthorID,
		&p.Title,
		&p.Body,
		&p.Visibility,
		&p.CopyCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new prompt. The caller must set the ID (prefixed UUID,
// e.g. "prompt_...") and required fields before calling.
func (r *PromptRepository) Create(ctx context.Context, p *types.Prompt) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO prompts (id, author_id, title, body, visibility, copy_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 0, NOW(), NOW())`,
		p.ID,
		p.AuthorID,
		p.Title,
		p.Body,
		p.Visibility,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create prompt", err)
	}
	return nil
}

// GetByID retrieves a prompt by ID.
// Returns ErrCodeNotFoundPrompt if no prompt is found.
func (r *PromptRepository) GetByID(ctx context.Context, id string) (*types.Prompt, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+promptColumns+` FROM prompts p WHERE p.id = $1`,
		id,
	)

	p, err := scanPrompt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPrompt, "prompt not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve prompt", err)
	}
	return p, nil
}

// ListPublic returns public prompts, newest first, bounded by limit.
func (r *PromptRepository) ListPublic(ctx context.Context, limit int) ([]types.Prompt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+promptColumns+`
		 FROM prompts p
		 WHERE p.visibility = 'public'
		 ORDER BY p.created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list prompts", err)
	}
	defer rows.Close()

	var prompts []types.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan prompt row", err)
		}
		prompts = append(prompts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating prompt rows", err)
	}

	return prompts, nil
}

// IncrementCopyCount bumps the public copy counter on a prompt. This is
// display bookkeeping, independent of the author's quota counters.
func (r *PromptRepository) IncrementCopyCount(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE prompts SET copy_count = copy_count + 1, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to increment copy count", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPrompt, "prompt not found", nil)
	}
	return nil
}

// Delete removes a prompt owned by authorID. Returns ErrCodeNotFoundPrompt
// when the prompt does not exist or belongs to another author; the handler
// maps ownership separately before calling when a 403 is wanted.
func (r *PromptRepository) Delete(ctx context.Context, id, authorID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM prompts WHERE id = $1 AND author_id = $2`,
		id,
		authorID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete prompt", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPrompt, "prompt not found", nil)
	}
	return nil
}
