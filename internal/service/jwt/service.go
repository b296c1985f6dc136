package jwtService

import (
	"fmt"
	"time"

	"github.com/velmark/draftline/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

type JWT struct {
	secret []byte
}

func New(secret []byte) *JWT {
	return &JWT{
		secret: secret,
	}
}

// NewToken issues a signed token for the editor. Besides
// the identity, the token carries the editor's role, so
// controllers can authorize draft and account operations
// without another storage round trip.
func (jwtStruct *JWT) NewToken(editor models.Editor, duration time.Duration) (string, error) {
	const op = "JWT.NewToken"

	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["uid"] = editor.ID
	claims["login"] = editor.Login
	claims["role"] = string(editor.Role())
	claims["exp"] = time.Now().Add(duration).Unix()

	tokenString, err := token.SignedString(jwtStruct.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return tokenString, nil
}
