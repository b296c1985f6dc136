package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/velmark/draftline/internal/lib/logger/sl"
	ptr "github.com/velmark/draftline/internal/lib/utils/pointers"
	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/internal/service"
	"github.com/velmark/draftline/internal/storage"
)

// Library manages the global registry of uploaded
// materials referenced by draft segments.
type Library struct {
	log             *slog.Logger
	materialStorage MaterialStorage
	probe           DurationProbe
	sourceDir       string
}

type MaterialStorage interface {
	SaveMaterial(ctx context.Context, material models.Material) (int64, error)
	Material(ctx context.Context, id int64) (models.Material, error)
	AllMaterials(ctx context.Context) ([]models.Material, error)
	DeleteMaterial(ctx context.Context, id int64) error
}

type DurationProbe interface {
	Duration(ctx context.Context, file string) (time.Duration, error)
}

func New(
	log *slog.Logger,
	materialStorage MaterialStorage,
	probe DurationProbe,
	sourceDir string,
) *Library {
	return &Library{
		log:             log,
		materialStorage: materialStorage,
		probe:           probe,
		sourceDir:       sourceDir,
	}
}

// NewMaterial registers the uploaded file as a material.
//
// The file is copied into the source directory, its kind
// is detected from content and, for audio and video, the
// duration is probed.
func (l *Library) NewMaterial(ctx context.Context, uploadPath string, name string) (models.Material, error) {
	const op = "Library.NewMaterial"

	log := l.log.With(
		slog.String("op", op),
	)

	log.Info("registering new material", slog.String("name", name))

	mimeType, err := mimetype.DetectFile(uploadPath)
	if err != nil {
		log.Error("failed to detect file type", slog.String("file", uploadPath), sl.Err(err))
		return models.Material{}, fmt.Errorf("%s: %w", op, err)
	}

	kind, ok := materialKind(mimeType.String())
	if !ok {
		log.Warn("unsupported material type", slog.String("mime", mimeType.String()))
		return models.Material{}, service.ErrUnsupportedMaterial
	}

	source := filepath.Join(l.sourceDir, uuid.NewString()+mimeType.Extension())
	if err := copyFile(uploadPath, source); err != nil {
		log.Error("failed to store source file", sl.Err(err))
		return models.Material{}, fmt.Errorf("%s: %w", op, err)
	}

	material := models.Material{
		Name:   name,
		Kind:   kind,
		Source: source,
	}

	if kind != models.MaterialImage {
		duration, err := l.probe.Duration(ctx, source)
		if err != nil {
			log.Error("failed to probe duration", slog.String("file", source), sl.Err(err))
			return models.Material{}, fmt.Errorf("%s: %w", op, err)
		}
		material.Duration = ptr.Ptr(duration)
	}

	id, err := l.materialStorage.SaveMaterial(ctx, material)
	if err != nil {
		log.Error("failed to save material", sl.Err(err))
		return models.Material{}, fmt.Errorf("%s: %w", op, err)
	}
	material.ID = id

	log.Info(
		"registered material",
		slog.Int64("id", id),
		slog.String("kind", string(kind)),
		slog.String("source", source),
	)

	return material, nil
}

// Material returns material by its id.
func (l *Library) Material(ctx context.Context, id int64) (models.Material, error) {
	const op = "Library.Material"

	log := l.log.With(
		slog.String("op", op),
	)

	material, err := l.materialStorage.Material(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrMaterialNotFound) {
			log.Warn("material not found", slog.Int64("id", id))
			return models.Material{}, service.ErrMaterialNotFound
		}
		log.Error("failed to get material", slog.Int64("id", id), sl.Err(err))
		return models.Material{}, fmt.Errorf("%s: %w", op, err)
	}

	return material, nil
}

// AllMaterials returns all registered materials.
func (l *Library) AllMaterials(ctx context.Context) ([]models.Material, error) {
	const op = "Library.AllMaterials"

	log := l.log.With(
		slog.String("op", op),
	)

	materials, err := l.materialStorage.AllMaterials(ctx)
	if err != nil {
		log.Error("failed to get materials", sl.Err(err))
		return []models.Material{}, fmt.Errorf("%s: %w", op, err)
	}

	return materials, nil
}

// SearchMaterial returns materials ranked by fuzzy
// similarity of their names to the filter.
func (l *Library) SearchMaterial(ctx context.Context, filter models.MaterialFilter) ([]models.Material, error) {
	const op = "Library.SearchMaterial"

	log := l.log.With(
		slog.String("op", op),
	)

	all, err := l.materialStorage.AllMaterials(ctx)
	if err != nil {
		log.Error("failed to get materials", sl.Err(err))
		return []models.Material{}, fmt.Errorf("%s: %w", op, err)
	}

	ranked := filterRank(all, filter)

	res := make([]models.Material, 0, len(ranked))
	for _, r := range ranked {
		res = append(res, r.material)
	}

	if filter.MaxRespLen > 0 && len(res) > filter.MaxRespLen {
		res = res[:filter.MaxRespLen]
	}

	log.Info("search finished", slog.String("name", filter.Name), slog.Int("size", len(res)))

	return res, nil
}

// DeleteMaterial deletes material and its source file.
func (l *Library) DeleteMaterial(ctx context.Context, id int64) error {
	const op = "Library.DeleteMaterial"

	log := l.log.With(
		slog.String("op", op),
	)

	material, err := l.materialStorage.Material(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrMaterialNotFound) {
			log.Warn("material not found", slog.Int64("id", id))
			return service.ErrMaterialNotFound
		}
		log.Error("failed to get material", slog.Int64("id", id), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := l.materialStorage.DeleteMaterial(ctx, id); err != nil {
		log.Error("failed to delete material", slog.Int64("id", id), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Remove(material.Source); err != nil {
		log.Warn("failed to remove source file", slog.String("file", material.Source), sl.Err(err))
	}

	log.Info("deleted material", slog.Int64("id", id))

	return nil
}

func materialKind(mime string) (models.MaterialKind, bool) {
	switch {
	case strings.HasPrefix(mime, "video/"):
		return models.MaterialVideo, true
	case strings.HasPrefix(mime, "audio/"):
		return models.MaterialAudio, true
	case strings.HasPrefix(mime, "image/"):
		return models.MaterialImage, true
	default:
		return "", false
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Close()
}
