package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/internal/storage"
)

// Drafts are persisted as JSON blobs. All time values
// inside the blob are stored in microseconds.

// SaveDraft inserts or replaces the durable draft representation.
func (s *Storage) SaveDraft(ctx context.Context, draft models.Draft) error {
	const op = "storage.sqlite.SaveDraft"

	body, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	stmt, err := s.db.Prepare(`
		INSERT INTO drafts(id, name, width, height, body, updated_at_mus)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			width = excluded.width,
			height = excluded.height,
			body = excluded.body,
			updated_at_mus = excluded.updated_at_mus
	`)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(
		ctx,
		draft.ID,
		draft.Name,
		draft.Width,
		draft.Height,
		body,
		time.Now().UnixMicro(),
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Draft returns the durable draft by its id.
func (s *Storage) Draft(ctx context.Context, id string) (models.Draft, error) {
	const op = "storage.sqlite.Draft"

	stmt, err := s.db.Prepare("SELECT body FROM drafts WHERE id = ?")
	if err != nil {
		return models.Draft{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var body []byte
	if err := stmt.QueryRowContext(ctx, id).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Draft{}, fmt.Errorf("%s: %w", op, storage.ErrDraftNotFound)
		}

		return models.Draft{}, fmt.Errorf("%s: %w", op, err)
	}

	var draft models.Draft
	if err := json.Unmarshal(body, &draft); err != nil {
		return models.Draft{}, fmt.Errorf("%s: %w", op, err)
	}

	return draft, nil
}

// DeleteDraft deletes the durable draft by its id.
func (s *Storage) DeleteDraft(ctx context.Context, id string) error {
	const op = "storage.sqlite.DeleteDraft"

	stmt, err := s.db.Prepare("DELETE FROM drafts WHERE id = ?")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrDraftNotFound)
	}

	return nil
}
