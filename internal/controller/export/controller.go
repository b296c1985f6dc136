package controller

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	jwtController "github.com/velmark/draftline/internal/controller/jwt"
	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/internal/service"
)

func New(exportSrv Export, jwtC *jwtController.JWT) *fiber.App {
	expCtr := exportController{
		srv: exportSrv,
	}

	app := fiber.New()

	app.Use(jwtC.AuthRequired())

	app.Post("/", expCtr.submit)
	app.Get("/status", expCtr.status)

	return app
}

type exportController struct {
	srv Export
}

type Export interface {
	Submit(ctx context.Context, draftRef string, credential string) error
	Status(ctx context.Context, draftRef string) (models.ExportJobView, error)
}

// submit enqueues an export job for a saved draft.
// Resubmitting a pending or processing draft is a no-op.
func (expCtr *exportController) submit(c *fiber.Ctx) error {
	var request struct {
		DraftRef   string `json:"draftRef"`
		Credential string `json:"credential"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if request.DraftRef == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "draftRef required",
		})
	}

	err := expCtr.srv.Submit(context.TODO(), request.DraftRef, request.Credential)
	if err != nil {
		if errors.Is(err, service.ErrQueueFull) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "export queue is full",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

// status reports the export job state for a draft.
func (expCtr *exportController) status(c *fiber.Ctx) error {
	draftRef := c.Query("draftRef")
	if draftRef == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "draftRef required",
		})
	}

	job, err := expCtr.srv.Status(context.TODO(), draftRef)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "export job not found",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"job": job,
	})
}
