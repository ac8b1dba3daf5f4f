package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"snapfeed/internal/config"
	"snapfeed/internal/database"
	"snapfeed/internal/events"
	"snapfeed/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		Port:                "0",
		FeedDefaultLimit:    config.FeedDefaultLimit,
		PostCacheTTLSeconds: 60,
	}
	return NewServerWithDeps(cfg, db, client, events.NoopSink{}).App()
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createSnap(t *testing.T, app *fiber.App, userID, username, content string) models.PostView {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/snaps", fiber.Map{
		"userId": userID, "username": username, "content": content,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return decode[models.PostView](t, resp)
}

func TestSnapRoutes_EndToEnd(t *testing.T) {
	app := setupTestApp(t)

	a := createSnap(t, app, "author", "alice", "Hello #World")
	assert.Equal(t, []string{"#world"}, a.Hashtags)

	resp := doJSON(t, app, http.MethodPut, "/snaps/"+a.ID+"/like", fiber.Map{"userId": "V"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	state := decode[map[string]any](t, resp)
	assert.Equal(t, true, state["likedByUser"])
	assert.Equal(t, float64(1), state["likes"])

	resp = doJSON(t, app, http.MethodGet, "/snaps/"+a.ID, nil, "X-User-ID", "V")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	view := decode[models.PostView](t, resp)
	assert.True(t, view.LikedByUser)
	assert.Equal(t, int64(1), view.Likes)

	resp = doJSON(t, app, http.MethodPost, "/snaps/"+a.ID+"/share", fiber.Map{"userId": "V2", "username": "vee"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	share := decode[models.PostView](t, resp)
	require.NotNil(t, share.SharedSnap)
	assert.Equal(t, a.ID, share.SharedSnap.ID)

	resp = doJSON(t, app, http.MethodPost, "/snaps/"+a.ID+"/answers", fiber.Map{"userId": "R", "username": "rita", "content": "Nice!"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/snaps/"+a.ID, nil)
	view = decode[models.PostView](t, resp)
	assert.Equal(t, int64(1), view.Comments)
	assert.Equal(t, int64(1), view.Shares)

	resp = doJSON(t, app, http.MethodGet, "/snaps/"+a.ID+"/answers", nil)
	answers := decode[[]models.PostView](t, resp)
	require.Len(t, answers, 1)
	assert.Equal(t, "Nice!", answers[0].Content)

	resp = doJSON(t, app, http.MethodGet, "/users/V2/shares", nil)
	shares := decode[[]models.PostView](t, resp)
	require.Len(t, shares, 1)

	resp = doJSON(t, app, http.MethodGet, "/users/V/likes", nil)
	likes := decode[[]models.PostView](t, resp)
	require.Len(t, likes, 1)
	assert.Equal(t, a.ID, likes[0].ID)

	resp = doJSON(t, app, http.MethodDelete, "/snaps/"+a.ID+"/share", fiber.Map{"userId": "V2"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), decode[map[string]any](t, resp)["removed"])

	resp = doJSON(t, app, http.MethodPut, "/snaps/"+a.ID+"/dislike", nil, "X-User-ID", "V")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode[map[string]any](t, resp)["likedByUser"])
}

func TestSnapRoutes_ListFilters(t *testing.T) {
	app := setupTestApp(t)

	createSnap(t, app, "u1", "Alice", "go is fun #golang")
	createSnap(t, app, "u2", "bob", "rust is fun #rust")

	resp := doJSON(t, app, http.MethodGet, "/snaps?hashtag=golang", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	views := decode[[]models.PostView](t, resp)
	require.Len(t, views, 1)
	assert.Equal(t, "Alice", views[0].Username)

	resp = doJSON(t, app, http.MethodGet, "/snaps?username=BOB", nil)
	views = decode[[]models.PostView](t, resp)
	require.Len(t, views, 1)
	assert.Equal(t, "bob", views[0].Username)

	resp = doJSON(t, app, http.MethodGet, "/snaps?limit=1", nil)
	views = decode[[]models.PostView](t, resp)
	assert.Len(t, views, 1)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	resp = doJSON(t, app, http.MethodGet, "/snaps?createdAfter="+future, nil)
	views = decode[[]models.PostView](t, resp)
	assert.Empty(t, views)

	resp = doJSON(t, app, http.MethodGet, "/snaps?createdBefore=yesterday", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSnapRoutes_ListQueryParsing(t *testing.T) {
	app := setupTestApp(t)

	createSnap(t, app, "u1", "alice", "one")
	createSnap(t, app, "u2", "bob", "two")

	for _, query := range []string{"limit=abc", "limit=-5", "offset=1.5", "offset=-1", "dateFrom=soon"} {
		t.Run(query, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodGet, "/snaps?"+query, nil)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}

	tomorrow := time.Now().AddDate(0, 0, 1).UTC().Format(time.DateOnly)
	tests := []struct {
		query string
		want  int
	}{
		{"dateFrom=2000-01-01", 2},
		{"dateFrom=" + tomorrow, 0},
		{"dateTo=2000-01-01", 0},
		{"dateTo=" + tomorrow, 2},
		{"limit=0&offset=1", 1},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodGet, "/snaps?"+tt.query, nil)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Len(t, decode[[]models.PostView](t, resp), tt.want)
		})
	}
}

func TestSnapRoutes_EditBlockDelete(t *testing.T) {
	app := setupTestApp(t)
	a := createSnap(t, app, "u1", "alice", "first #one")

	// Warm the post cache so the edit has to evict it.
	resp := doJSON(t, app, http.MethodGet, "/snaps/"+a.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPut, "/snaps/"+a.ID, fiber.Map{"content": "second #two", "isPrivate": true})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, a.ID, decode[models.PostRef](t, resp).ID)

	resp = doJSON(t, app, http.MethodPut, "/snaps/block/"+a.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/snaps/"+a.ID, nil)
	view := decode[models.PostView](t, resp)
	assert.Equal(t, "second #two", view.Content)
	assert.Equal(t, []string{"#two"}, view.Hashtags)
	assert.True(t, view.IsPrivate)
	assert.True(t, view.IsBlocked)

	resp = doJSON(t, app, http.MethodDelete, "/snaps/"+a.ID, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	deleted := decode[models.DeletedPost](t, resp)
	assert.Equal(t, "u1", deleted.UserID)

	resp = doJSON(t, app, http.MethodGet, "/snaps/"+a.ID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	problem := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, models.CodeNotFound, problem.Code)
}

func TestSnapRoutes_Validation(t *testing.T) {
	app := setupTestApp(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"empty content", http.MethodPost, "/snaps", fiber.Map{"userId": "u", "content": "   "}, fiber.StatusBadRequest},
		{"content too long", http.MethodPost, "/snaps", fiber.Map{"userId": "u", "content": strings.Repeat("é", 281)}, fiber.StatusBadRequest},
		{"missing author", http.MethodPost, "/snaps", fiber.Map{"content": "hi"}, fiber.StatusBadRequest},
		{"like without viewer", http.MethodPut, "/snaps/x/like", nil, fiber.StatusBadRequest},
		{"like missing snap", http.MethodPut, "/snaps/missing/like", fiber.Map{"userId": "v"}, fiber.StatusNotFound},
		{"share missing snap", http.MethodPost, "/snaps/missing/share", fiber.Map{"userId": "v"}, fiber.StatusNotFound},
		{"answer missing parent", http.MethodPost, "/snaps/missing/answers", fiber.Map{"userId": "v", "content": "hi"}, fiber.StatusNotFound},
		{"edit missing snap", http.MethodPut, "/snaps/missing", fiber.Map{"content": "hi"}, fiber.StatusNotFound},
		{"block missing snap", http.MethodPut, "/snaps/block/missing", nil, fiber.StatusNotFound},
		{"delete missing snap", http.MethodDelete, "/snaps/missing", nil, fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	resp := doJSON(t, app, http.MethodPost, "/snaps", fiber.Map{"userId": "u", "content": strings.Repeat("é", 280)})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	app := setupTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])

	resp = doJSON(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "snapfeed")
}
