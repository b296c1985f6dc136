package tests

import (
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gavv/httpexpect/v2"

	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/tests/suite"
)

// parseToken validates the token signature and returns
// its claims.
func parseToken(t *testing.T, tokenString string) jwt.MapClaims {
	t.Helper()

	claims := jwt.MapClaims{}

	token, err := jwt.NewParser().ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err, "Unrecognized error during token parsing")
	require.Truef(t, token.Valid, "Invalid token")

	return claims
}

// Correctness of login root
// checks http responce and JWT
func TestLoginRoot(t *testing.T) {
	u := url.URL{
		Scheme: "http",
		Host:   cfg.Address,
	}
	e := httpexpect.Default(t, u.String())

	timestamp := time.Now()

	resp := e.POST("/login").
		WithJSON(models.EditorIn{
			Login: "root",
			Pass:  rootPass,
		}).
		Expect().
		Status(200)

	json := resp.JSON()

	// response must be {"token" : "string"}
	json.Object().Keys().ContainsOnly("token")

	tokenString := json.Path("$.token").String().Raw()

	claims := parseToken(t, tokenString)

	// token must be {"uid": "int64", login : "string", role: "string", exp: "int64"}
	expectedKeys := []string{"uid", "login", "role", "exp"}
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	assert.ElementsMatchf(t, expectedKeys, keys, "JWT claims don't match")

	// validate token values
	// (give some gap for TTL due to uncertainty)
	const deltaSeconds = 1
	assert.Equal(t, models.RootLogin, claims["login"].(string))
	assert.Equal(t, models.RootID, int64(claims["uid"].(float64)))
	assert.Equal(t, string(models.RoleRoot), claims["role"].(string))
	assert.InDelta(t, timestamp.Add(cfg.TokenTTL).Unix(), claims["exp"].(float64), deltaSeconds)
}

func TestFailLoginRoot(t *testing.T) {
	u := url.URL{
		Scheme: "http",
		Host:   cfg.Address,
	}
	e := httpexpect.Default(t, u.String())

	resp := e.POST("/login").
		WithJSON(models.EditorIn{
			Login: "root",
			Pass:  suite.RandomFakePassword(),
		}).
		Expect().
		Status(400)

	json := resp.JSON()

	// check returned error
	json.Object().Keys().ContainsOnly("error")
	json.Path("$.error").String().IsEqualFold("invalid credentials")
}

// Editors login with the editor role; tokens from that
// role open draft sessions owned by the editor but don't
// pass the root gate.
func TestLoginEditorRoleAndSessionOwner(t *testing.T) {
	rootToken, err := suite.RootLogin()
	require.NoError(t, err)

	u := url.URL{
		Scheme: "http",
		Host:   cfg.Address,
	}
	e := httpexpect.Default(t, u.String())

	login := gofakeit.Name()
	pass := suite.RandomFakePassword()

	// register a fresh editor as root
	e.POST("/root/editors").
		WithHeader("Authorization", "Bearer "+rootToken).
		WithJSON(struct {
			User models.EditorIn `json:"editor"`
		}{
			User: models.EditorIn{
				Login: login,
				Pass:  pass,
			},
		}).Expect().
		Status(200)

	// login as the editor
	resp := e.POST("/login").
		WithJSON(models.EditorIn{
			Login: login,
			Pass:  pass,
		}).
		Expect().
		Status(200)

	tokenString := resp.JSON().Path("$.token").String().NotEmpty().Raw()

	claims := parseToken(t, tokenString)
	assert.Equal(t, login, claims["login"].(string))
	assert.Equal(t, string(models.RoleEditor), claims["role"].(string))

	// editor tokens don't open root endpoints
	e.GET("/root/editors").
		WithHeader("Authorization", "Bearer "+tokenString).
		Expect().
		Status(401)

	// a new session is stamped with the editor as owner
	sessionResp := e.POST("/session").
		WithHeader("Authorization", "Bearer "+tokenString).
		WithJSON(map[string]any{
			"name":   gofakeit.BookTitle(),
			"width":  1280,
			"height": 720,
		}).
		Expect().
		Status(200)

	sessionResp.JSON().Path("$.session.owner").String().IsEqual(login)
}
