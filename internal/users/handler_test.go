package users_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"finparse-backend/internal/bootstrap"
	"finparse-backend/internal/shared/config"
	"finparse-backend/internal/users"
)

func buildTestApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:3000"},
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		PublicBaseURL:   "http://localhost:4000",
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app
}

func postUser(t *testing.T, router *gin.Engine, payload map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestPostUsersFindOrCreate(t *testing.T) {
	app := buildTestApp(t)

	resp := postUser(t, app.Router, map[string]string{"email": "bob@example.com", "name": "Bob"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first create, got %d: %s", resp.Code, resp.Body.String())
	}

	var created users.User
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" || created.Email != "bob@example.com" {
		t.Fatalf("unexpected user %+v", created)
	}

	resp = postUser(t, app.Router, map[string]string{"email": "Bob@Example.com"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat, got %d", resp.Code)
	}

	var found users.User
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected same user, got %s and %s", created.ID, found.ID)
	}
}

func TestPostUsersRejectsInvalidEmail(t *testing.T) {
	app := buildTestApp(t)

	resp := postUser(t, app.Router, map[string]string{"email": "not-an-email"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
