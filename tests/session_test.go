package tests

import (
	"net/url"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gavv/httpexpect/v2"
	"github.com/stretchr/testify/require"

	"github.com/velmark/draftline/internal/models"
	"github.com/velmark/draftline/tests/suite"
)

func newSession(t *testing.T, e *httpexpect.Expect, token string) string {
	t.Helper()

	resp := e.POST("/session").
		WithHeader("Authorization", "Bearer "+token).
		WithJSON(map[string]any{
			"name":   gofakeit.BookTitle(),
			"width":  1920,
			"height": 1080,
		}).
		Expect().
		Status(200)

	resp.JSON().Object().Keys().ContainsOnly("session")

	return resp.JSON().Path("$.session.id").String().NotEmpty().Raw()
}

func TestSessionLifecycle(t *testing.T) {
	token, err := suite.RootLogin()
	require.NoError(t, err)

	u := url.URL{
		Scheme: "http",
		Host:   cfg.Address,
	}
	e := httpexpect.Default(t, u.String())

	id := newSession(t, e, token)

	// fresh session has no tracks yet
	resp := e.GET("/session/"+id).
		WithHeader("Authorization", "Bearer "+token).
		Expect().
		Status(200)

	resp.JSON().Path("$.session.tracks").Array().IsEmpty()

	// add an overlay track
	e.POST("/session/"+id+"/track").
		WithHeader("Authorization", "Bearer "+token).
		WithJSON(map[string]any{
			"name":  "overlay",
			"kind":  models.TrackText,
			"index": 1,
		}).
		Expect().
		Status(200)

	e.POST("/session/"+id+"/save").
		WithHeader("Authorization", "Bearer "+token).
		Expect().
		Status(200)
}

func TestSessionNotFound(t *testing.T) {
	token, err := suite.RootLogin()
	require.NoError(t, err)

	u := url.URL{
		Scheme: "http",
		Host:   cfg.Address,
	}
	e := httpexpect.Default(t, u.String())

	e.GET("/session/unknown").
		WithHeader("Authorization", "Bearer "+token).
		Expect().
		Status(404)
}

func TestPlaceSegmentConflict(t *testing.T) {
	token, err := suite.RootLogin()
	require.NoError(t, err)

	u := url.URL{
		Scheme: "http",
		Host:   cfg.Address,
	}
	e := httpexpect.Default(t, u.String())

	id := newSession(t, e, token)

	e.POST("/session/"+id+"/track").
		WithHeader("Authorization", "Bearer "+token).
		WithJSON(map[string]any{
			"name":  "captions",
			"kind":  models.TrackText,
			"index": 1,
		}).
		Expect().
		Status(200)

	target := models.TimeRange{
		Start:    0,
		Duration: 2 * time.Second,
	}

	e.POST("/session/"+id+"/segment").
		WithHeader("Authorization", "Bearer "+token).
		WithJSON(map[string]any{
			"track": "captions",
			"segment": map[string]any{
				"targetTimerange": target,
			},
		}).
		Expect().
		Status(200)

	// same window must be rejected
	resp := e.POST("/session/"+id+"/segment").
		WithHeader("Authorization", "Bearer "+token).
		WithJSON(map[string]any{
			"track": "captions",
			"segment": map[string]any{
				"targetTimerange": target,
			},
		}).
		Expect().
		Status(409)

	resp.JSON().Path("$.error").String().IsEqualFold("segment overlap")

	// shifted placement slides past the occupied window
	e.POST("/session/"+id+"/segment").
		WithHeader("Authorization", "Bearer "+token).
		WithJSON(map[string]any{
			"track":   "captions",
			"shifted": true,
			"segment": map[string]any{
				"targetTimerange": models.TimeRange{
					Start:    target.End() - 100*time.Microsecond,
					Duration: time.Second,
				},
			},
		}).
		Expect().
		Status(200)
}
