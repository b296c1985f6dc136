package jwtService

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velmark/draftline/internal/models"
)

func TestNewTokenClaims(t *testing.T) {
	secret := []byte("test-secret")
	srv := New(secret)

	testCases := []struct {
		desc       string
		editor     models.Editor
		expectRole models.EditorRole
	}{
		{
			desc:       "root",
			editor:     models.Editor{ID: models.RootID, Login: models.RootLogin},
			expectRole: models.RoleRoot,
		},
		{
			desc:       "editor",
			editor:     models.Editor{ID: 7, Login: "alice"},
			expectRole: models.RoleEditor,
		},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			tokenString, err := srv.NewToken(tC.editor, time.Hour)
			require.NoError(t, err)

			claims := jwt.MapClaims{}
			token, err := jwt.NewParser().ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
				return secret, nil
			})
			require.NoError(t, err)
			require.True(t, token.Valid)

			keys := make([]string, 0, len(claims))
			for k := range claims {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, []string{"uid", "login", "role", "exp"}, keys)

			assert.Equal(t, tC.editor.ID, int64(claims["uid"].(float64)))
			assert.Equal(t, tC.editor.Login, claims["login"].(string))
			assert.Equal(t, string(tC.expectRole), claims["role"].(string))

			const deltaSeconds = 1
			assert.InDelta(t, time.Now().Add(time.Hour).Unix(), claims["exp"].(float64), deltaSeconds)
		})
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	srv := New([]byte("test-secret"))

	tokenString, err := srv.NewToken(models.Editor{ID: 1, Login: "alice"}, time.Hour)
	require.NoError(t, err)

	_, err = jwt.NewParser().Parse(tokenString, func(_ *jwt.Token) (interface{}, error) {
		return []byte("wrong-secret"), nil
	})
	require.Error(t, err)
}
