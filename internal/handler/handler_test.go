package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/meridian/internal/metrics"
	"github.com/prn-tf/meridian/internal/repository/memory"
	"github.com/prn-tf/meridian/internal/seed"
	"github.com/prn-tf/meridian/internal/service"
	"github.com/prn-tf/meridian/internal/storage"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error   { return f.err }
func (f fakeDB) Health(context.Context) error { return f.err }
func (f fakeDB) Close() error                 { return nil }

func newTestServer(t *testing.T, db fakeDB) *httptest.Server {
	t.Helper()
	clock := func() time.Time { return testNow }
	users := memory.NewUserRepository(memory.WithClock(clock))
	products := memory.NewProductRepository()
	require.NoError(t, seed.Load(context.Background(), users, products))

	backend, err := storage.NewFilesystemBackend(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	opts := []service.Option{service.WithClock(clock)}
	srv := httptest.NewServer(NewRouter(RouterConfig{
		Users:       service.NewUserService(users, users, m, zerolog.Nop(), opts...),
		Products:    service.NewProductService(products, products, seed.Categories(), m, zerolog.Nop(), opts...),
		Reports:     service.NewReportService(users, products, backend, "reports", m, zerolog.Nop(), opts...),
		Database:    db,
		Metrics:     m,
		MetricsPath: "/metrics",
		MaxBodySize: 1 << 20,
		Logger:      zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeError(t *testing.T, body []byte) APIError {
	t.Helper()
	var e APIError
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func TestHealth(t *testing.T) {
	resp, body := do(t, newTestServer(t, fakeDB{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))

	resp, _ = do(t, newTestServer(t, fakeDB{err: errors.New("down")}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, fakeDB{})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown user", http.MethodGet, "/api/v1/users/404", "", http.StatusNotFound, CodeNotFound},
		{"missing fields", http.MethodPost, "/api/v1/users", `{"email":"a@b.co"}`, http.StatusBadRequest, CodeValidation},
		{"duplicate email", http.MethodPost, "/api/v1/users",
			`{"email":"admin@company.com","first_name":"A","last_name":"B","role":"user"}`, http.StatusConflict, CodeConflict},
		{"malformed body", http.MethodPost, "/api/v1/users", `{"email":`, http.StatusBadRequest, CodeBadRequest},
		{"unknown body field", http.MethodPost, "/api/v1/users", `{"nickname":"x"}`, http.StatusBadRequest, CodeBadRequest},
		{"suspend without reason", http.MethodPost, "/api/v1/users/3/suspend", "", http.StatusBadRequest, CodeValidation},
		{"bad query", http.MethodGet, "/api/v1/products?limit=ten", "", http.StatusBadRequest, CodeBadRequest},
		{"unknown role filter", http.MethodGet, "/api/v1/users?role=ADMIN", "", http.StatusBadRequest, CodeBadRequest},
		{"unknown state filter", http.MethodGet, "/api/v1/users?state=frozen", "", http.StatusBadRequest, CodeBadRequest},
		{"insufficient stock", http.MethodPost, "/api/v1/products/1/reserve", `{"quantity":1000}`, http.StatusBadRequest, CodeValidation},
		{"no report yet", http.MethodGet, "/api/v1/reports/latest", "", http.StatusNotFound, CodeNotFound},
		{"no route", http.MethodGet, "/api/v2/users", "", http.StatusNotFound, CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			assert.Equal(t, tt.wantCode, decodeError(t, body).Code)
		})
	}
}

func TestValidationErrorListsFields(t *testing.T) {
	resp, body := do(t, newTestServer(t, fakeDB{}), http.MethodPost, "/api/v1/products", `{"price":-1}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var e struct {
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Contains(t, e.Details, "name")
	assert.Contains(t, e.Details, "price")
	assert.Contains(t, e.Details, "category_id")
}

func TestUserLifecycle(t *testing.T) {
	srv := newTestServer(t, fakeDB{})

	resp, body := do(t, srv, http.MethodPost, "/api/v1/users",
		`{"email":"kim@company.com","first_name":"Kim","last_name":"Park","role":"user"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		ID     string `json:"id"`
		Status struct {
			State string `json:"value"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "pending", created.Status.State)

	resp, _ = do(t, srv, http.MethodPost, "/api/v1/users/"+created.ID+"/activate", `{"changed_by":"admin"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/users/"+created.ID+"/can/write", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"permission":"write","allowed":true}`, string(body))

	resp, body = do(t, srv, http.MethodPatch, "/api/v1/users/"+created.ID+"/preferences", `{"theme":"dark"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"dark"`)

	resp, _ = do(t, srv, http.MethodDelete, "/api/v1/users/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodDelete, "/api/v1/users/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBulkStatus(t *testing.T) {
	resp, body := do(t, newTestServer(t, fakeDB{}), http.MethodPost, "/api/v1/users/bulk/status",
		`{"ids":["3","missing"],"state":"inactive"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report service.BatchReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 2, report.Requested)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.Items[1].Succeeded)
	assert.NotEmpty(t, report.Items[1].Error)
}

func TestSearchUsersPaginates(t *testing.T) {
	resp, body := do(t, newTestServer(t, fakeDB{}), http.MethodGet, "/api/v1/users?limit=3&offset=3&sort=firstName", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res struct {
		Users      []json.RawMessage `json:"users"`
		Total      int               `json:"total"`
		TotalPages int               `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Len(t, res.Users, 3)
	assert.Equal(t, 10, res.Total)
	assert.Equal(t, 4, res.TotalPages)

	resp, body = do(t, newTestServer(t, fakeDB{}), http.MethodGet, "/api/v1/users?role=moderator", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, 2, res.Total)
}

func TestProductEndpoints(t *testing.T) {
	srv := newTestServer(t, fakeDB{})

	resp, body := do(t, srv, http.MethodGet, "/api/v1/products?category=electronics&tags=bluetooth", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total":2`)

	resp, _ = do(t, srv, http.MethodPost, "/api/v1/products/2/reserve", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/api/v1/products/2/ratings", `{"stars":4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/categories", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var categories []map[string]any
	require.NoError(t, json.Unmarshal(body, &categories))
	assert.Len(t, categories, 6)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/categories/electronics/products", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var electronics []map[string]any
	require.NoError(t, json.Unmarshal(body, &electronics))
	assert.Len(t, electronics, 4)

	resp, _ = do(t, srv, http.MethodGet, "/api/v1/categories/toys/products", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPut, "/api/v1/products/2/active", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportsAndMetrics(t *testing.T) {
	srv := newTestServer(t, fakeDB{})

	resp, body := do(t, srv, http.MethodPost, "/api/v1/reports", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"key":"reports/2024/03/15/statistics-20240315T100000Z.json"}`, string(body))

	resp, body = do(t, srv, http.MethodGet, "/api/v1/reports/latest", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "reports/2024/03/15/statistics-20240315T100000Z.json", resp.Header.Get("X-Report-Key"))
	assert.Contains(t, string(body), `"total_users": 10`)

	_, _ = do(t, srv, http.MethodGet, "/api/v1/users/1", "")
	resp, body = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(body)
	assert.Contains(t, text, "meridian_reports_published_total")
	assert.True(t, strings.Contains(text, `route="/api/v1/users/{id}/"`) || strings.Contains(text, `route="/api/v1/users/{id}"`),
		"latency is labelled by route pattern")
}
