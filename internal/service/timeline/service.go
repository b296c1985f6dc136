package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/velmark/draftline/internal/lib/cache"
	"github.com/velmark/draftline/internal/lib/logger/sl"
	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/internal/service"
	"github.com/velmark/draftline/internal/storage"
)

// Timeline owns the draft session cache and gates
// all mutating timeline operations.
//
// Sessions live only for process lifetime. Callers must
// serialize mutations per draft identifier; the cache
// structure itself is safe for concurrent use.
type Timeline struct {
	log          *slog.Logger
	sessions     *cache.LRU[string, *models.Draft]
	draftStorage DraftStorage
	materials    MaterialProvider
}

type DraftStorage interface {
	SaveDraft(ctx context.Context, draft models.Draft) error
	Draft(ctx context.Context, id string) (models.Draft, error)
}

type MaterialProvider interface {
	Material(ctx context.Context, id int64) (models.Material, error)
}

func New(
	log *slog.Logger,
	draftStorage DraftStorage,
	materials MaterialProvider,
	sessionCapacity int,
) *Timeline {
	return &Timeline{
		log:          log,
		sessions:     cache.New[string, *models.Draft](sessionCapacity),
		draftStorage: draftStorage,
		materials:    materials,
	}
}

// NewSession creates a new draft owned by the given
// editor, registers its session in the cache and persists
// the empty draft.
func (t *Timeline) NewSession(ctx context.Context, name, owner string, width, height int) (models.Draft, error) {
	const op = "Timeline.NewSession"

	log := t.log.With(
		slog.String("op", op),
	)

	draft := &models.Draft{
		ID:        uuid.NewString(),
		Name:      name,
		Owner:     owner,
		Width:     width,
		Height:    height,
		Tracks:    make([]*models.Track, 0),
		Materials: make([]models.Material, 0),
	}

	if err := t.draftStorage.SaveDraft(ctx, *draft); err != nil {
		log.Error("failed to persist new draft", sl.Err(err))
		return models.Draft{}, fmt.Errorf("%s: %w", op, err)
	}

	t.sessions.Put(draft.ID, draft)

	log.Info(
		"created session",
		slog.String("id", draft.ID),
		slog.String("owner", owner),
		slog.Int("width", width),
		slog.Int("height", height),
	)

	return *draft, nil
}

// Session returns the open session by draft id.
//
// Operating on an identifier absent from the cache
// fails with service.ErrSessionNotFound; sessions are
// never created implicitly.
func (t *Timeline) Session(ctx context.Context, id string) (*models.Draft, error) {
	const op = "Timeline.Session"

	draft, ok := t.sessions.Get(id)
	if !ok {
		t.log.Warn("session not found", slog.String("op", op), slog.String("id", id))
		return nil, service.ErrSessionNotFound
	}

	return draft, nil
}

// AddTrack adds a named track to an open session.
func (t *Timeline) AddTrack(ctx context.Context, sessionID, name string, kind models.TrackKind, index int) error {
	const op = "Timeline.AddTrack"

	log := t.log.With(
		slog.String("op", op),
		slog.String("session", sessionID),
	)

	draft, err := t.Session(ctx, sessionID)
	if err != nil {
		return err
	}

	if _, err := draft.NewTrack(name, kind, index); err != nil {
		log.Warn("failed to add track", slog.String("name", name), sl.Err(err))
		return err
	}
	draft.Dirty = true

	log.Info("added track", slog.String("name", name), slog.String("kind", string(kind)))

	return nil
}

// PlaceSegment places segment on a track strictly:
// any overlap fails the placement.
func (t *Timeline) PlaceSegment(ctx context.Context, sessionID, trackName string, segment models.Segment) (models.Segment, error) {
	const op = "Timeline.PlaceSegment"

	log := t.log.With(
		slog.String("op", op),
		slog.String("session", sessionID),
	)

	draft, track, err := t.track(ctx, sessionID, trackName)
	if err != nil {
		return models.Segment{}, err
	}

	if segment.ID == "" {
		segment.ID = uuid.NewString()
	}

	if err := track.Place(segment); err != nil {
		log.Warn(
			"placement failed",
			slog.String("track", trackName),
			slog.Int64("start", segment.Target.Start.Microseconds()),
			slog.Int64("duration", segment.Target.Duration.Microseconds()),
			sl.Err(err),
		)
		return models.Segment{}, err
	}
	draft.Dirty = true

	log.Info(
		"placed segment",
		slog.String("track", trackName),
		slog.String("id", segment.ID),
		slog.Int64("start", segment.Target.Start.Microseconds()),
	)

	return segment, nil
}

// PlaceSegmentShifted places segment with the bounded
// retry-with-offset policy used for overlay tracks:
// on overlap the start is shifted forward by a fixed
// step until placement succeeds or attempts run out.
func (t *Timeline) PlaceSegmentShifted(ctx context.Context, sessionID, trackName string, segment models.Segment) (models.Segment, error) {
	const op = "Timeline.PlaceSegmentShifted"

	log := t.log.With(
		slog.String("op", op),
		slog.String("session", sessionID),
	)

	draft, track, err := t.track(ctx, sessionID, trackName)
	if err != nil {
		return models.Segment{}, err
	}

	if segment.ID == "" {
		segment.ID = uuid.NewString()
	}

	placed, err := placeWithOffset(track, segment)
	if err != nil {
		log.Warn(
			"placement failed after retries",
			slog.String("track", trackName),
			slog.Int64("start", segment.Target.Start.Microseconds()),
			sl.Err(err),
		)
		return models.Segment{}, err
	}
	draft.Dirty = true

	if placed.Target.Start != segment.Target.Start {
		log.Info(
			"placed segment with offset",
			slog.String("track", trackName),
			slog.Int64("requested", segment.Target.Start.Microseconds()),
			slog.Int64("actual", placed.Target.Start.Microseconds()),
		)
	}

	return placed, nil
}

// PlaceMediaSegment places a media material on a track.
//
// The playable duration is reconciled against the material
// duration before placement. Non-primary tracks get the
// best-effort shifted placement.
func (t *Timeline) PlaceMediaSegment(
	ctx context.Context,
	sessionID, trackName string,
	materialID int64,
	start, end time.Duration,
) (models.Segment, error) {
	const op = "Timeline.PlaceMediaSegment"

	log := t.log.With(
		slog.String("op", op),
		slog.String("session", sessionID),
	)

	draft, track, err := t.track(ctx, sessionID, trackName)
	if err != nil {
		return models.Segment{}, err
	}

	material, err := t.materials.Material(ctx, materialID)
	if err != nil {
		if errors.Is(err, service.ErrMaterialNotFound) || errors.Is(err, storage.ErrMaterialNotFound) {
			log.Warn("material not found", slog.Int64("id", materialID))
			return models.Segment{}, service.ErrMaterialNotFound
		}
		log.Error("failed to get material", slog.Int64("id", materialID), sl.Err(err))
		return models.Segment{}, fmt.Errorf("%s: %w", op, err)
	}

	var sourceDuration time.Duration
	if material.Duration != nil {
		sourceDuration = *material.Duration
	}

	target := ReconcileMediaDuration(start, end, sourceDuration)

	segment := models.Segment{
		ID:         uuid.NewString(),
		MaterialID: materialID,
		Target:     target,
		Source:     &models.TimeRange{Start: 0, Duration: target.Duration},
	}

	// The main video track keeps strict placement;
	// overlay tracks are synthesized from independently
	// specified windows and tolerate a small shift.
	var placed models.Segment
	if track.Kind == models.TrackVideo && track.Index == 0 {
		err = track.Place(segment)
		placed = segment
	} else {
		placed, err = placeWithOffset(track, segment)
	}
	if err != nil {
		log.Warn("media placement failed", slog.String("track", trackName), sl.Err(err))
		return models.Segment{}, err
	}
	draft.Dirty = true

	// Keep session materials in sync with references.
	if !draft.HasMaterial(materialID) {
		draft.Materials = append(draft.Materials, material)
	}

	log.Info(
		"placed media segment",
		slog.String("track", trackName),
		slog.Int64("materialID", materialID),
		slog.Int64("start", placed.Target.Start.Microseconds()),
		slog.Int64("duration", placed.Target.Duration.Microseconds()),
	)

	return placed, nil
}

// AttachKeyframes attaches an opaque keyframe/mask payload
// to an existing segment. The segment time range is not changed.
func (t *Timeline) AttachKeyframes(ctx context.Context, sessionID, trackName, segmentID string, payload json.RawMessage) error {
	const op = "Timeline.AttachKeyframes"

	log := t.log.With(
		slog.String("op", op),
		slog.String("session", sessionID),
	)

	draft, track, err := t.track(ctx, sessionID, trackName)
	if err != nil {
		return err
	}

	segment, ok := track.Segment(segmentID)
	if !ok {
		log.Warn("segment not found", slog.String("id", segmentID))
		return models.ErrSegmentNotFound
	}

	segment.Keyframes = payload
	draft.Dirty = true

	log.Info("attached keyframes", slog.String("segment", segmentID))

	return nil
}

// Save persists the session's draft and clears the dirty flag.
func (t *Timeline) Save(ctx context.Context, sessionID string) error {
	const op = "Timeline.Save"

	log := t.log.With(
		slog.String("op", op),
		slog.String("session", sessionID),
	)

	draft, err := t.Session(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := t.draftStorage.SaveDraft(ctx, *draft); err != nil {
		log.Error("failed to save draft", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	draft.Dirty = false

	log.Info("saved draft")

	return nil
}

func (t *Timeline) track(ctx context.Context, sessionID, trackName string) (*models.Draft, *models.Track, error) {
	draft, err := t.Session(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	track, ok := draft.Track(trackName)
	if !ok {
		return nil, nil, models.ErrTrackNotFound
	}

	return draft, track, nil
}
