package jwtController

import (
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/velmark/draftline/internal/models"
)

type JWT struct {
	secret []byte
}

func New(secret []byte) *JWT {
	return &JWT{secret: secret}
}

// AuthRequired verifies the token signature and stores the
// parsed token in the request locals for the claim helpers
// below.
func (jwtController *JWT) AuthRequired() func(*fiber.Ctx) error {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: jwtController.secret},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication error",
			})
		},
	})
}

// Claims returns the verified claims stored by AuthRequired.
// Outside the middleware it returns nil.
func Claims(c *fiber.Ctx) jwt.MapClaims {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}

	return claims
}

// Login returns the editor login from the verified token.
// New drafts are stamped with it as the owner.
func Login(c *fiber.Ctx) string {
	login, _ := Claims(c)["login"].(string)
	return login
}

// IsRoot reports whether the request is authenticated
// with the root role.
func IsRoot(c *fiber.Ctx) bool {
	role, _ := Claims(c)["role"].(string)
	return role == string(models.RoleRoot)
}
