package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/engine"
	"taskline/internal/migrate"
	tasklinesdk "taskline/sdk/go"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) *testServer {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, AuthConfig{AllowLegacyActorHeader: true})
	ctx := context.Background()

	sdk := tasklinesdk.New(srv.URL)
	sdk.ActorID = "tester"

	created, err := sdk.CreateTask(ctx, tasklinesdk.CreateTaskParams{Name: "Ship feature"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if created.ID == "" || created.Version != 1 {
		t.Fatalf("unexpected created task: %+v", created)
	}
	if created.Status == nil || *created.Status != "pending" {
		t.Fatalf("expected pending status, got %v", created.Status)
	}
	if created.StateLabel != "active" {
		t.Fatalf("expected active state, got %s", created.StateLabel)
	}

	status := "in_progress"
	updated, err := sdk.UpdateTask(ctx, created.ID, tasklinesdk.UpdateTaskParams{Status: &status})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if updated.Version != 2 || updated.Status == nil || *updated.Status != "in_progress" {
		t.Fatalf("unexpected updated task: %+v", updated)
	}
	if updated.UpdatedBy == nil || *updated.UpdatedBy != "tester" {
		t.Fatalf("actor not recorded: %v", updated.UpdatedBy)
	}

	deleted, err := sdk.DeleteTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if deleted.StateLabel != "deleted" {
		t.Fatalf("expected deleted state, got %s", deleted.StateLabel)
	}
	// soft delete: the task stays readable
	got, err := sdk.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get deleted task: %v", err)
	}
	if got.Name != "Ship feature" {
		t.Fatalf("deleted task lost data: %+v", got)
	}

	// but vanishes from default listings
	visible, err := sdk.ListTasks(ctx, tasklinesdk.ListTasksParams{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("deleted task still listed: %+v", visible)
	}
	all, err := sdk.ListTasks(ctx, tasklinesdk.ListTasksParams{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("list all tasks: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 task with include_deleted, got %d", len(all))
	}

	back, err := sdk.ActivateTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("activate task: %v", err)
	}
	if back.StateLabel != "active" || back.Version != 4 {
		t.Fatalf("unexpected reactivated task: %+v", back)
	}

	evts, err := sdk.TaskEvents(ctx, created.ID, 0)
	if err != nil {
		t.Fatalf("task events: %v", err)
	}
	if len(evts) != 4 {
		t.Fatalf("expected 4 events, got %d", len(evts))
	}
	if evts[0].Type != "task.activated" {
		t.Fatalf("expected newest event first, got %s", evts[0].Type)
	}
}

func TestValidationErrorEnvelope(t *testing.T) {
	srv := newTestServer(t, AuthConfig{AllowLegacyActorHeader: true})
	headers := map[string]string{"X-Actor-Id": "tester"}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"name": "",
	}, headers)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v: %s", err, string(data))
	}
	if envelope.Error.Code != "validation_failed" {
		t.Fatalf("expected validation_failed, got %s", envelope.Error.Code)
	}
	if envelope.Error.Details["field"] != "name" {
		t.Fatalf("expected name field detail, got %v", envelope.Error.Details)
	}
}

func TestNotFoundAndUnauthorized(t *testing.T) {
	srv := newTestServer(t, AuthConfig{AllowLegacyActorHeader: true})

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks/missing", nil, map[string]string{"X-Actor-Id": "tester"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}

	// health stays open
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected open health endpoint, got %d", res.StatusCode)
	}
}

func TestJWTAuth(t *testing.T) {
	secret := "test-secret"
	srv := newTestServer(t, AuthConfig{JWTSecret: secret})
	ctx := context.Background()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	sdk := tasklinesdk.New(srv.URL)
	sdk.BearerToken = signed
	created, err := sdk.CreateTask(ctx, tasklinesdk.CreateTaskParams{Name: "jwt task"})
	if err != nil {
		t.Fatalf("create with jwt: %v", err)
	}
	if created.CreatedBy == nil || *created.CreatedBy != "alice" {
		t.Fatalf("jwt subject not used as actor: %v", created.CreatedBy)
	}

	// X-Actor-Id is ignored when legacy header auth is off
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, map[string]string{"X-Actor-Id": "mallory"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for header auth when disabled, got %d", res.StatusCode)
	}

	bad := tasklinesdk.New(srv.URL)
	bad.BearerToken = signed + "tampered"
	if _, err := bad.ListTasks(ctx, tasklinesdk.ListTasksParams{}); err == nil {
		t.Fatal("expected error for tampered token")
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, AuthConfig{AllowLegacyActorHeader: true})
	ctx := context.Background()
	sdk := tasklinesdk.New(srv.URL)
	sdk.ActorID = "tester"

	a, err := sdk.CreateTask(ctx, tasklinesdk.CreateTaskParams{Name: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sdk.CreateTask(ctx, tasklinesdk.CreateTaskParams{Name: "b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := sdk.DeleteTask(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/status", nil, map[string]string{"X-Actor-Id": "tester"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint: %d: %s", res.StatusCode, string(data))
	}
	var body StatusResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if body.TaskCounts["active"] != 1 || body.TaskCounts["deleted"] != 1 {
		t.Fatalf("unexpected counts: %v", body.TaskCounts)
	}
}
