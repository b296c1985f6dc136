package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/internal/service"
)

// New returns an fiber.App that will
// authorize editors (including root)
// and return JWT
func New(
	timeout time.Duration,
	a Auth,
) *fiber.App {
	authCtr := authController{
		timeout: timeout,
		srv:     a,
	}

	app := fiber.New()

	app.Post("/", authCtr.login)

	return app
}

type authController struct {
	timeout time.Duration
	srv     Auth
}

type Auth interface {
	Login(ctx context.Context, login string, password string) (string, error)
}

// login exchanges editor credentials for a token. The
// token is what the session and export endpoints expect
// in the Authorization header.
func (authCtr *authController) login(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), authCtr.timeout)
	defer cancel()

	var creds models.EditorIn

	if err := c.BodyParser(&creds); err != nil {
		return fiber.ErrBadRequest
	}

	if creds.Login == "" || creds.Pass == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "login and password required",
		})
	}

	token, err := authCtr.srv.Login(ctx, creds.Login, creds.Pass)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid credentials",
			})
		}

		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"token": token,
	})
}
