package controller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	jwtController "github.com/velmark/draftline/internal/controller/jwt"
	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/internal/service"
)

func New(sessionSrv Session, jwtC *jwtController.JWT) *fiber.App {
	sesCtr := sessionController{
		srv: sessionSrv,
	}

	app := fiber.New()

	app.Use(jwtC.AuthRequired())

	app.Post("/", sesCtr.newSession)
	app.Get("/:id", sesCtr.session)
	app.Post("/:id/track", sesCtr.newTrack)
	app.Post("/:id/segment", sesCtr.placeSegment)
	app.Post("/:id/segment/:segID/keyframes", sesCtr.attachKeyframes)
	app.Post("/:id/save", sesCtr.save)

	return app
}

type sessionController struct {
	srv Session
}

type Session interface {
	NewSession(ctx context.Context, name, owner string, width, height int) (models.Draft, error)
	Session(ctx context.Context, id string) (*models.Draft, error)
	AddTrack(ctx context.Context, sessionID, name string, kind models.TrackKind, index int) error
	PlaceSegment(ctx context.Context, sessionID, trackName string, segment models.Segment) (models.Segment, error)
	PlaceSegmentShifted(ctx context.Context, sessionID, trackName string, segment models.Segment) (models.Segment, error)
	PlaceMediaSegment(ctx context.Context, sessionID, trackName string, materialID int64, start, end time.Duration) (models.Segment, error)
	AttachKeyframes(ctx context.Context, sessionID, trackName, segmentID string, payload json.RawMessage) error
	Save(ctx context.Context, sessionID string) error
}

// newSession opens a new editing session.
func (sesCtr *sessionController) newSession(c *fiber.Ctx) error {
	var request struct {
		Name   string `json:"name"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if request.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name required",
		})
	}
	if request.Width <= 0 || request.Height <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid canvas size",
		})
	}

	// The session belongs to whoever presented the token.
	draft, err := sesCtr.srv.NewSession(context.TODO(), request.Name, jwtController.Login(c), request.Width, request.Height)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"session": draft,
	})
}

// session returns the session draft state.
func (sesCtr *sessionController) session(c *fiber.Ctx) error {
	draft, err := sesCtr.srv.Session(context.TODO(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "session not found",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"session": draft,
	})
}

// newTrack adds a track to the session draft.
func (sesCtr *sessionController) newTrack(c *fiber.Ctx) error {
	var request struct {
		Name  string           `json:"name"`
		Kind  models.TrackKind `json:"kind"`
		Index int              `json:"index"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if request.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name required",
		})
	}

	err := sesCtr.srv.AddTrack(context.TODO(), c.Params("id"), request.Name, request.Kind, request.Index)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "session not found",
			})
		}
		if errors.Is(err, models.ErrTrackExists) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "track exists",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}

// placeSegment places a segment on a track.
//
// A segment referencing a material is reconciled against
// the material duration. Explicit segments may opt in to
// shifted placement.
func (sesCtr *sessionController) placeSegment(c *fiber.Ctx) error {
	var request struct {
		Track   string         `json:"track"`
		Shifted bool           `json:"shifted"`
		Segment models.Segment `json:"segment"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if request.Track == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "track required",
		})
	}
	if !request.Segment.Target.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "target required",
		})
	}

	var placed models.Segment
	var err error

	switch {
	case request.Segment.MaterialID != 0:
		placed, err = sesCtr.srv.PlaceMediaSegment(
			context.TODO(),
			c.Params("id"),
			request.Track,
			request.Segment.MaterialID,
			request.Segment.Target.Start,
			request.Segment.Target.End(),
		)
	case request.Shifted:
		placed, err = sesCtr.srv.PlaceSegmentShifted(context.TODO(), c.Params("id"), request.Track, request.Segment)
	default:
		placed, err = sesCtr.srv.PlaceSegment(context.TODO(), c.Params("id"), request.Track, request.Segment)
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "session not found",
			})
		case errors.Is(err, models.ErrTrackNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "track not found",
			})
		case errors.Is(err, service.ErrMaterialNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "material not found",
			})
		case errors.Is(err, models.ErrInvalidTimeRange):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid time range",
			})
		case errors.Is(err, models.ErrSegmentOverlap):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "segment overlap",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"segment": placed,
	})
}

// attachKeyframes attaches animation keyframes to a
// placed segment.
func (sesCtr *sessionController) attachKeyframes(c *fiber.Ctx) error {
	var request struct {
		Track     string          `json:"track"`
		Keyframes json.RawMessage `json:"keyframes"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if request.Track == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "track required",
		})
	}
	if len(request.Keyframes) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "keyframes required",
		})
	}

	err := sesCtr.srv.AttachKeyframes(context.TODO(), c.Params("id"), request.Track, c.Params("segID"), request.Keyframes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "session not found",
			})
		case errors.Is(err, models.ErrTrackNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "track not found",
			})
		case errors.Is(err, models.ErrSegmentNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "segment not found",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}

// save persists the session draft.
func (sesCtr *sessionController) save(c *fiber.Ctx) error {
	err := sesCtr.srv.Save(context.TODO(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "session not found",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}
