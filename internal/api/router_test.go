package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taskboard/task-system/internal/core/service"
	"github.com/taskboard/task-system/internal/infrastructure/db/sqlite"
	"github.com/taskboard/task-system/internal/infrastructure/http/handlers"
)

const testSecret = "router-test-secret"

// The router registers Prometheus collectors on the default registry, so the
// tests share a single instance.
var (
	routerOnce sync.Once
	testRouter *echo.Echo
	routerErr  error
)

func sharedRouter(t *testing.T) *echo.Echo {
	t.Helper()
	routerOnce.Do(func() {
		ctx := context.Background()
		db, err := sqlite.Connect(ctx, sqlite.Config{Path: ":memory:"})
		if err != nil {
			routerErr = err
			return
		}
		store := sqlite.NewStore(db)

		authService := service.NewAuthService(store.Users(), testSecret, time.Hour)
		if _, err := authService.EnsureAdmin(ctx, "root", "rootpw"); err != nil {
			routerErr = err
			return
		}

		testRouter = NewRouter(Dependencies{
			Log:            zerolog.Nop(),
			JWTSecret:      testSecret,
			AuthService:    authService,
			TaskService:    service.NewTaskService(store, nil, zerolog.Nop()),
			CommentService: service.NewCommentService(store, zerolog.Nop()),
			Health:         map[string]handlers.Pinger{"sqlite": store},
		})
	})
	if routerErr != nil {
		t.Fatalf("router setup: %v", routerErr)
	}
	return testRouter
}

func call(t *testing.T, e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return v
}

type loginBody struct {
	Token string `json:"token"`
	ID    int64  `json:"id"`
}

func registerAndLogin(t *testing.T, e *echo.Echo, username string) loginBody {
	t.Helper()
	rec := call(t, e, http.MethodPost, "/api/auth/register", "",
		fmt.Sprintf(`{"username":%q,"password":"pw","role":"user"}`, username))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", username, rec.Code, rec.Body.String())
	}
	return login(t, e, username, "pw")
}

func login(t *testing.T, e *echo.Echo, username, password string) loginBody {
	t.Helper()
	rec := call(t, e, http.MethodPost, "/api/auth/login", "",
		fmt.Sprintf(`{"username":%q,"password":%q}`, username, password))
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, rec.Code, rec.Body.String())
	}
	return decode[loginBody](t, rec)
}

func TestRouter_Probes(t *testing.T) {
	e := sharedRouter(t)

	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		if rec := call(t, e, http.MethodGet, path, "", ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	e := sharedRouter(t)

	rec := call(t, e, http.MethodGet, "/api/tasks", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decode[errorResponse](t, rec); body.Error == "" {
		t.Fatalf("expected error envelope, got %q", rec.Body.String())
	}

	if rec := call(t, e, http.MethodGet, "/api/auth/me", "garbage", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rec.Code)
	}
}

func TestRouter_TaskLifecycle(t *testing.T) {
	e := sharedRouter(t)

	admin := login(t, e, "root", "rootpw")
	bob := registerAndLogin(t, e, "lifecycle-bob")
	carol := registerAndLogin(t, e, "lifecycle-carol")

	// Only admins list users.
	if rec := call(t, e, http.MethodGet, "/api/users", bob.Token, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("users as user: expected 403, got %d", rec.Code)
	}
	if rec := call(t, e, http.MethodGet, "/api/users", admin.Token, ""); rec.Code != http.StatusOK {
		t.Fatalf("users as admin: expected 200, got %d", rec.Code)
	}

	// A non-admin cannot assign.
	rec := call(t, e, http.MethodPost, "/api/tasks", bob.Token,
		fmt.Sprintf(`{"title":"sneaky","assignedTo":[%d]}`, carol.ID))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("assign as user: expected 403, got %d", rec.Code)
	}

	// Unknown assignee is referential.
	rec = call(t, e, http.MethodPost, "/api/tasks", admin.Token, `{"title":"ghost","assignedTo":[999999]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown assignee: expected 422, got %d", rec.Code)
	}

	// Malformed assignee is a validation error.
	rec = call(t, e, http.MethodPost, "/api/tasks", admin.Token, `{"title":"bad","assignedTo":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed assignee: expected 400, got %d", rec.Code)
	}

	rec = call(t, e, http.MethodPost, "/api/tasks", admin.Token,
		fmt.Sprintf(`{"title":"ship it","category":"release","assignedTo":"%d"}`, bob.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	created := decode[map[string]any](t, rec)
	taskPath := fmt.Sprintf("/api/tasks/%d", int64(created["id"].(float64)))
	if created["status"] != "todo" {
		t.Fatalf("expected default status, got %v", created["status"])
	}

	// Assignee sees it, outsider does not.
	if rec := call(t, e, http.MethodGet, taskPath, bob.Token, ""); rec.Code != http.StatusOK {
		t.Fatalf("assignee read: expected 200, got %d", rec.Code)
	}
	if rec := call(t, e, http.MethodGet, taskPath, carol.Token, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("outsider read: expected 403, got %d", rec.Code)
	}
	list := decode[[]map[string]any](t, call(t, e, http.MethodGet, "/api/tasks?category=release", carol.Token, ""))
	for _, task := range list {
		if task["title"] == "ship it" {
			t.Fatalf("outsider must not see the task in listings")
		}
	}

	// Assignee updates the status; the assignment is untouched.
	rec = call(t, e, http.MethodPut, taskPath, bob.Token, `{"status":"in_progress","assignedTo":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	updated := decode[map[string]any](t, rec)
	if ids := updated["assignedUserIds"].([]any); updated["status"] != "in_progress" || len(ids) != 1 {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	// A malformed assignment from a non-admin is ignored, not rejected.
	rec = call(t, e, http.MethodPut, taskPath, bob.Token, `{"title":"ship it now","assignedTo":"abc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update with ignored assignees: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	renamed := decode[map[string]any](t, rec)
	if ids := renamed["assignedUserIds"].([]any); renamed["title"] != "ship it now" || len(ids) != 1 || ids[0] != float64(bob.ID) {
		t.Fatalf("unexpected update result: %+v", renamed)
	}

	// Comments through both route families.
	commentsPath := taskPath + "/comments"
	if rec := call(t, e, http.MethodPost, commentsPath, bob.Token, `{"text":"first"}`); rec.Code != http.StatusCreated {
		t.Fatalf("comment: expected 201, got %d", rec.Code)
	}
	dedicated := fmt.Sprintf("/api/comments/%d", int64(created["id"].(float64)))
	rec = call(t, e, http.MethodPost, dedicated, admin.Token, `{"text":"second"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("comment: expected 201, got %d", rec.Code)
	}
	second := decode[map[string]any](t, rec)
	if rec := call(t, e, http.MethodPost, commentsPath, carol.Token, `{"text":"intrude"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("outsider comment: expected 403, got %d", rec.Code)
	}

	oldest := decode[[]map[string]any](t, call(t, e, http.MethodGet, dedicated, bob.Token, ""))
	newest := decode[[]map[string]any](t, call(t, e, http.MethodGet, commentsPath, bob.Token, ""))
	if len(oldest) != 2 || len(newest) != 2 {
		t.Fatalf("expected two comments, got %d / %d", len(oldest), len(newest))
	}
	if oldest[0]["text"] != "first" || newest[0]["text"] != "second" {
		t.Fatalf("unexpected ordering: %v / %v", oldest, newest)
	}

	// Bob cannot edit the admin's comment.
	secondPath := fmt.Sprintf("/api/comments/%d", int64(second["id"].(float64)))
	if rec := call(t, e, http.MethodPut, secondPath, bob.Token, `{"text":"mine now"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("edit foreign comment: expected 403, got %d", rec.Code)
	}

	// Assignees cannot delete; the creator can.
	if rec := call(t, e, http.MethodDelete, taskPath, bob.Token, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("assignee delete: expected 403, got %d", rec.Code)
	}
	if rec := call(t, e, http.MethodDelete, taskPath, admin.Token, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	if rec := call(t, e, http.MethodGet, taskPath, admin.Token, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("read deleted: expected 404, got %d", rec.Code)
	}
	if rec := call(t, e, http.MethodPut, secondPath, admin.Token, `{"text":"gone"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("comments should cascade: expected 404, got %d", rec.Code)
	}
}

func TestRouter_DuplicateRegistration(t *testing.T) {
	e := sharedRouter(t)

	registerAndLogin(t, e, "dup-user")
	rec := call(t, e, http.MethodPost, "/api/auth/register", "", `{"username":"dup-user","password":"pw","role":"user"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	rec = call(t, e, http.MethodPost, "/api/auth/login", "", `{"username":"dup-user","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
