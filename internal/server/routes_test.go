package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Tomlord1122/todo-api/internal/config"
	"github.com/Tomlord1122/todo-api/internal/domain"
	"github.com/Tomlord1122/todo-api/internal/repository"
	"github.com/Tomlord1122/todo-api/internal/service"
)

type fakeDB struct {
	stats map[string]string
}

func (f fakeDB) Health(context.Context) map[string]string { return f.stats }
func (f fakeDB) Close() error                            { return nil }

type todoJSON struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type errorJSON struct {
	Error            string              `json:"error"`
	ValidationErrors []domain.FieldError `json:"validation_errors"`
}

// setupRouter returns the full handler stack over a fresh SQLite store.
func setupRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo, err := repository.NewSQLiteTodoRepository(context.Background(), db)
	require.NoError(t, err)

	return newTestHandler(service.NewTodoService(repo), fakeDB{stats: map[string]string{"status": "up"}})
}

func newTestHandler(svc service.TodoService, db fakeDB) http.Handler {
	return NewServer(config.Default(), svc, db).Handler
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestTodoLifecycle(t *testing.T) {
	h := setupRouter(t)

	w := do(t, h, http.MethodPost, "/todos/", `{"title": "Buy milk"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	created := decode[todoJSON](t, w)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Buy milk", created.Title)
	assert.False(t, created.Completed)

	path := fmt.Sprintf("/todos/%d", created.ID)

	w = do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decode[todoJSON](t, w))

	w = do(t, h, http.MethodPut, path, `{"title": "Buy milk", "completed": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[todoJSON](t, w).Completed)

	w = do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[todoJSON](t, w)
	assert.True(t, got.Completed)
	assert.Equal(t, created.ID, got.ID)

	w = do(t, h, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Todo not found", decode[errorJSON](t, w).Error)
}

func TestListTodos(t *testing.T) {
	h := setupRouter(t)

	w := do(t, h, http.MethodGet, "/todos/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	ids := map[string]uint64{}
	for _, title := range []string{"A", "B", "C"} {
		w := do(t, h, http.MethodPost, "/todos/", fmt.Sprintf(`{"title": %q}`, title))
		require.Equal(t, http.StatusCreated, w.Code)
		ids[title] = decode[todoJSON](t, w).ID
	}

	w = do(t, h, http.MethodDelete, fmt.Sprintf("/todos/%d", ids["B"]), "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/todos", "")
	require.Equal(t, http.StatusOK, w.Code)
	var titles []string
	for _, todo := range decode[[]todoJSON](t, w) {
		titles = append(titles, todo.Title)
	}
	assert.ElementsMatch(t, []string{"A", "C"}, titles)
}

func TestListTodos_SortBy(t *testing.T) {
	h := setupRouter(t)

	for _, body := range []string{
		`{"title": "open"}`,
		`{"title": "done", "completed": true}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/todos/", body).Code)
	}

	w := do(t, h, http.MethodGet, "/todos/?sort_by=completed", "")
	require.Equal(t, http.StatusOK, w.Code)
	todos := decode[[]todoJSON](t, w)
	require.Len(t, todos, 2)
	assert.Equal(t, "done", todos[0].Title)

	w = do(t, h, http.MethodGet, "/todos/?sort_by=title", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[errorJSON](t, w)
	require.Len(t, resp.ValidationErrors, 1)
	assert.Equal(t, "sort_by", resp.ValidationErrors[0].Field)
}

func TestCreateTodo_BadRequests(t *testing.T) {
	h := setupRouter(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "empty body", body: "", message: "Request body must not be empty"},
		{name: "malformed", body: `{"title": `, message: "Request body contains badly-formed JSON"},
		{name: "syntax", body: `{"title" "x"}`, message: "Request body contains badly-formed JSON (at position"},
		{name: "wrong type", body: `{"title": 5}`, message: `Request body contains an invalid value for the "title" field`},
		{name: "unknown field", body: `{"title": "x", "id": 3}`, message: `Request body contains unknown field "id"`},
		{name: "missing title", body: `{"completed": true}`, message: "Invalid request format"},
		{name: "blank title", body: `{"title": "   "}`, message: "Invalid request format"},
		{name: "two objects", body: `{"title": "a"}{"title": "b"}`, message: "Request body must only contain a single JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/todos/", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.True(t, strings.HasPrefix(decode[errorJSON](t, w).Error, tt.message),
				"got %s", w.Body.String())
		})
	}

	w := do(t, h, http.MethodGet, "/todos/", "")
	assert.JSONEq(t, `[]`, w.Body.String(), "nothing is created by a rejected request")
}

func TestCreateTodo_ValidationDetails(t *testing.T) {
	h := setupRouter(t)

	w := do(t, h, http.MethodPost, "/todos/", `{"title": ""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[errorJSON](t, w)
	assert.Equal(t, []domain.FieldError{{Field: "title", Message: "title is required"}}, resp.ValidationErrors)
}

func TestInvalidIDs(t *testing.T) {
	h := setupRouter(t)

	for _, id := range []string{
		"abc", "0", "-1", "1.5", "99999999999999999999999",
		"9223372036854775808", "18446744073709551615",
	} {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			w := do(t, h, method, "/todos/"+id, `{"completed": true}`)
			assert.Equal(t, http.StatusBadRequest, w.Code, "%s /todos/%s", method, id)
			assert.Equal(t, "Invalid todo ID provided", decode[errorJSON](t, w).Error)
		}
	}
}

func TestMissingIDs(t *testing.T) {
	h := setupRouter(t)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/todos/42", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPut, "/todos/42", `{"completed": true}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/todos/42", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/todos/9223372036854775807", "").Code)

	w := do(t, h, http.MethodGet, "/todos/", "")
	assert.JSONEq(t, `[]`, w.Body.String(), "updating a missing id creates nothing")
}

func TestUpdateTodo_PartialAndInvalid(t *testing.T) {
	h := setupRouter(t)

	w := do(t, h, http.MethodPost, "/todos/", `{"title": "Buy milk", "description": "2 liters"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[todoJSON](t, w)
	path := fmt.Sprintf("/todos/%d", created.ID)

	w = do(t, h, http.MethodPut, path, `{"completed": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[todoJSON](t, w)
	assert.Equal(t, "Buy milk", updated.Title)
	assert.Equal(t, "2 liters", updated.Description)
	assert.True(t, updated.Completed)

	w = do(t, h, http.MethodPut, path, `{"title": ""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []domain.FieldError{{Field: "title", Message: "title cannot be empty"}},
		decode[errorJSON](t, w).ValidationErrors)

	w = do(t, h, http.MethodPut, path, `{"id": 99}`)
	require.Equal(t, http.StatusBadRequest, w.Code, "id is not a writable field")

	w = do(t, h, http.MethodGet, path, "")
	assert.Equal(t, updated, decode[todoJSON](t, w))
}

func TestDeleteTodo_Concurrent(t *testing.T) {
	h := setupRouter(t)

	w := do(t, h, http.MethodPost, "/todos/", `{"title": "Buy milk"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	path := fmt.Sprintf("/todos/%d", decode[todoJSON](t, w).ID)

	const workers = 8
	codes := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodDelete, path, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	deleted := 0
	for _, code := range codes {
		switch code {
		case http.StatusNoContent:
			deleted++
		case http.StatusNotFound:
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 1, deleted, "exactly one delete succeeds")
}

type brokenService struct{ service.TodoService }

func (brokenService) GetAllTodos(context.Context, domain.SortOrder) ([]service.TodoResponse, error) {
	return nil, &domain.InternalError{Op: "retrieve todos", Err: errors.New("dial tcp 10.0.0.5:5432: connection refused")}
}

func (brokenService) GetTodoByID(context.Context, uint64) (*service.TodoResponse, error) {
	return nil, errors.New("something unexpected")
}

func TestInternalErrors(t *testing.T) {
	h := newTestHandler(brokenService{}, fakeDB{})

	w := do(t, h, http.MethodGet, "/todos/", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to retrieve todos", decode[errorJSON](t, w).Error)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")

	w = do(t, h, http.MethodGet, "/todos/1", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decode[errorJSON](t, w).Error)
}

func TestHealthEndpoints(t *testing.T) {
	up := newTestHandler(brokenService{}, fakeDB{stats: map[string]string{"status": "up", "message": "It's healthy"}})

	w := do(t, up, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "healthy"}`, w.Body.String())

	w = do(t, up, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "It's healthy", decode[map[string]string](t, w)["message"])

	down := newTestHandler(brokenService{}, fakeDB{stats: map[string]string{"status": "down", "error": "db down"}})
	w = do(t, down, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestID(t *testing.T) {
	h := newTestHandler(brokenService{}, fakeDB{})

	w := do(t, h, http.MethodGet, "/", "")
	assert.Len(t, w.Header().Get(requestIDHeader), 36, "generated ids are UUIDs")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "client-id-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-id-1", rec.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(brokenService{}, fakeDB{})

	req := httptest.NewRequest(http.MethodOptions, "/todos/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
