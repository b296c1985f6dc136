package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ptr "github.com/velmark/draftline/internal/lib/utils/pointers"
	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/internal/storage"
)

// SaveMaterial registers new material and returns its id.
func (s *Storage) SaveMaterial(ctx context.Context, material models.Material) (int64, error) {
	const op = "storage.sqlite.SaveMaterial"

	stmt, err := s.db.Prepare("INSERT INTO materials(name, kind, source, duration_mus) VALUES(?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var durationMuS sql.NullInt64
	if material.Duration != nil {
		durationMuS = sql.NullInt64{Int64: material.Duration.Microseconds(), Valid: true}
	}

	res, err := stmt.ExecContext(ctx, material.Name, string(material.Kind), material.Source, durationMuS)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// Material returns material by its id.
func (s *Storage) Material(ctx context.Context, id int64) (models.Material, error) {
	const op = "storage.sqlite.Material"

	stmt, err := s.db.Prepare("SELECT id, name, kind, source, duration_mus FROM materials WHERE id = ?")
	if err != nil {
		return models.Material{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	material, err := scanMaterial(stmt.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Material{}, fmt.Errorf("%s: %w", op, storage.ErrMaterialNotFound)
		}

		return models.Material{}, fmt.Errorf("%s: %w", op, err)
	}

	return material, nil
}

// AllMaterials returns all registered materials.
func (s *Storage) AllMaterials(ctx context.Context) ([]models.Material, error) {
	const op = "storage.sqlite.AllMaterials"

	stmt, err := s.db.Prepare("SELECT id, name, kind, source, duration_mus FROM materials ORDER BY id")
	if err != nil {
		return []models.Material{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return []models.Material{}, fmt.Errorf("%s: %w", op, err)
	}

	materials := make([]models.Material, 0)
	for rows.Next() {
		material, err := scanMaterial(rows)
		if err != nil {
			return materials, fmt.Errorf("%s: %w", op, err)
		}
		materials = append(materials, material)
	}

	return materials, nil
}

// DeleteMaterial deletes material by id.
func (s *Storage) DeleteMaterial(ctx context.Context, id int64) error {
	const op = "storage.sqlite.DeleteMaterial"

	stmt, err := s.db.Prepare("DELETE FROM materials WHERE id = ?")
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
		return fmt.Errorf("%s: %w", op, storage.ErrMaterialNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (models.Material, error) {
	var (
		material    models.Material
		kind        string
		durationMuS sql.NullInt64
	)

	if err := row.Scan(&material.ID, &material.Name, &kind, &material.Source, &durationMuS); err != nil {
		return models.Material{}, err
	}

	material.Kind = models.MaterialKind(kind)
	if durationMuS.Valid {
		material.Duration = ptr.Ptr(time.Duration(durationMuS.Int64) * time.Microsecond)
	}

	return material, nil
}
