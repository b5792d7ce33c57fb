package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/khoitran3172/todo-list/internal/cache"
	"github.com/khoitran3172/todo-list/internal/service"
	"github.com/khoitran3172/todo-list/internal/store/memory"
	"github.com/khoitran3172/todo-list/internal/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	reg := prometheus.NewRegistry()
	svc := service.New(memory.New(),
		service.WithCache(cache.New(cache.Config{Enabled: true, Registerer: reg})),
		service.WithLogger(logger),
	)
	srv := NewServer(svc, &Config{Logger: logger, Gatherer: reg})
	reg.MustRegister(srv.Collectors()...)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("NewRequest() failed: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status = %d, want %d (body %s)",
			resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, bytes.TrimSpace(body))
	}
}

func createTask(t *testing.T, ts *httptest.Server, title string) *types.Task {
	t.Helper()
	body := `{"title":"` + title + `","due_date":"2026-03-01T12:00:00Z"}`
	resp := do(t, http.MethodPost, ts.URL+"/api/tasks", body)
	expectStatus(t, resp, http.StatusCreated)
	return decode[*types.Task](t, resp)
}

func TestTaskCRUD(t *testing.T) {
	ts := newTestServer(t)

	task := createTask(t, ts, "ship it")
	if task.ID == 0 || task.Status != types.StatusTodo || task.Priority != types.PriorityMedium {
		t.Errorf("created task = %+v", task)
	}

	resp := do(t, http.MethodGet, ts.URL+"/api/tasks/1", "")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[*types.Task](t, resp); got.Title != "ship it" {
		t.Errorf("GET title = %q", got.Title)
	}

	resp = do(t, http.MethodPut, ts.URL+"/api/tasks/1", `{"status":"completed"}`)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[*types.Task](t, resp); got.Status != types.StatusCompleted {
		t.Errorf("PUT status = %q", got.Status)
	}

	resp = do(t, http.MethodGet, ts.URL+"/api/tasks?status=completed", "")
	expectStatus(t, resp, http.StatusOK)
	page := decode[types.TaskPage](t, resp)
	if page.Total != 1 || len(page.Items) != 1 {
		t.Errorf("filtered list = %+v", page)
	}

	resp = do(t, http.MethodDelete, ts.URL+"/api/tasks/1", "")
	expectStatus(t, resp, http.StatusNoContent)

	resp = do(t, http.MethodGet, ts.URL+"/api/tasks/1", "")
	expectStatus(t, resp, http.StatusNotFound)
	if e := decode[errorResponse](t, resp); e.Error == "" {
		t.Error("404 response has no error message")
	}

	resp = do(t, http.MethodDelete, ts.URL+"/api/tasks/1", "")
	expectStatus(t, resp, http.StatusNotFound)
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing title", http.MethodPost, "/api/tasks", `{"due_date":"2026-03-01T12:00:00Z"}`, http.StatusBadRequest},
		{"missing due date", http.MethodPost, "/api/tasks", `{"title":"x"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/tasks", `{"title":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/tasks", `{"title":"x","due_date":"2026-03-01T12:00:00Z","owner":"me"}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/tasks/abc", "", http.StatusBadRequest},
		{"bad page", http.MethodGet, "/api/tasks?page=x", "", http.StatusBadRequest},
		{"oversized page", http.MethodGet, "/api/tasks?limit=500", "", http.StatusBadRequest},
		{"page past int range", http.MethodGet, "/api/tasks?page=1152921504606846977&limit=8", "", http.StatusBadRequest},
		{"bad filter", http.MethodGet, "/api/tasks?status=done", "", http.StatusBadRequest},
		{"update missing", http.MethodPut, "/api/tasks/42", `{"title":"x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, ts.URL+tt.path, tt.body)
			expectStatus(t, resp, tt.want)
		})
	}
}

func TestDependencyRoutes(t *testing.T) {
	ts := newTestServer(t)
	a := createTask(t, ts, "A")
	b := createTask(t, ts, "B")
	c := createTask(t, ts, "C")
	base := ts.URL + "/api/tasks/"

	add := func(from, to int64) *http.Response {
		t.Helper()
		body, _ := json.Marshal(addDependencyRequest{DependencyID: to})
		return do(t, http.MethodPost, base+itoa(from)+"/dependencies", string(body))
	}

	expectStatus(t, add(a.ID, b.ID), http.StatusCreated)
	expectStatus(t, add(b.ID, c.ID), http.StatusCreated)
	expectStatus(t, add(a.ID, b.ID), http.StatusOK)
	expectStatus(t, add(c.ID, a.ID), http.StatusConflict)
	expectStatus(t, add(a.ID, a.ID), http.StatusBadRequest)
	expectStatus(t, add(a.ID, 99), http.StatusNotFound)

	resp := do(t, http.MethodPost, base+itoa(a.ID)+"/dependencies", `{"dependencyId":`+itoa(b.ID)+`}`)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[addDependencyResponse](t, resp); got.DependencyID != b.ID || got.Added {
		t.Errorf("camelCase body response = %+v, want existing edge to %d", got, b.ID)
	}

	resp = do(t, http.MethodGet, base+itoa(a.ID)+"/dependencies", "")
	expectStatus(t, resp, http.StatusOK)
	set := decode[types.DependencySet](t, resp)
	if len(set.Direct) != 1 || set.Direct[0].ID != b.ID {
		t.Errorf("direct = %+v, want [B]", set.Direct)
	}
	if len(set.Indirect) != 1 || set.Indirect[0].ID != c.ID {
		t.Errorf("indirect = %+v, want [C]", set.Indirect)
	}

	resp = do(t, http.MethodGet, base+itoa(a.ID), "")
	expectStatus(t, resp, http.StatusOK)
	if got := decode[*types.Task](t, resp); len(got.Dependencies) != 1 || got.Dependencies[0] != b.ID {
		t.Errorf("task dependencies = %v, want [%d]", got.Dependencies, b.ID)
	}

	expectStatus(t, do(t, http.MethodDelete, base+itoa(a.ID)+"/dependencies/"+itoa(c.ID), ""), http.StatusNotFound)
	expectStatus(t, do(t, http.MethodDelete, base+itoa(a.ID)+"/dependencies/"+itoa(b.ID), ""), http.StatusNoContent)
	expectStatus(t, do(t, http.MethodGet, base+"99/dependencies", ""), http.StatusNotFound)
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, http.MethodGet, ts.URL+"/health", "")
	expectStatus(t, resp, http.StatusOK)
	if _, err := uuid.Parse(resp.Header.Get(RequestIDHeader)); err != nil {
		t.Errorf("X-Request-ID = %q, want a UUID", resp.Header.Get(RequestIDHeader))
	}

	id := uuid.NewString()
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/tasks/1", nil)
	req.Header.Set(RequestIDHeader, id)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != id {
		t.Errorf("X-Request-ID = %q, want echoed %q", got, id)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	createTask(t, ts, "A")
	do(t, http.MethodGet, ts.URL+"/api/tasks/1", "")

	resp := do(t, http.MethodGet, ts.URL+"/metrics", "")
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"todo_http_requests_total", "todo_cache_misses_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("/metrics missing %s", name)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{types.ErrTaskNotFound, http.StatusNotFound},
		{types.ErrDependencyNotFound, http.StatusNotFound},
		{types.ErrCircularDependency, http.StatusConflict},
		{types.ErrSelfDependency, http.StatusBadRequest},
		{types.ErrInvalidArgument, http.StatusBadRequest},
		{types.WrapStore("save", io.ErrUnexpectedEOF), http.StatusInternalServerError},
		{types.WrapStore("find task", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{types.WrapStore("find task", context.Canceled), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
