package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/Afrawles/capledger/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	tasks   []capacity.Task
	err     error
	fetches int
}

func (s *stubSource) Name() string                      { return "stub" }
func (s *stubSource) HealthCheck(context.Context) error { return nil }

func (s *stubSource) FetchTasks(context.Context, capacity.Window) ([]capacity.Task, error) {
	s.fetches++
	return s.tasks, s.err
}

func newTestServer(t *testing.T, src *stubSource, cacheSize int) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	firstWeek, err := capacity.ParseWindow("2025-12-01", "2025-12-05")
	require.NoError(t, err)

	s, err := New(report.NewGenerator(logger, src), Config{
		Roster:        []string{"dee"},
		DefaultWindow: func() capacity.Window { return firstWeek },
		CacheSize:     cacheSize,
	}, logger)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

type errorBody struct {
	Status int `json:"status"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
	Err string `json:"err"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var sample = []capacity.Task{
	{ID: "1", Assignee: "A", Team: "Platform", Start: "2025-12-01", Due: "2025-12-02"},
	{ID: "2", Assignee: "B", Team: "Growth", Start: "2025-12-03", Due: "2025-12-05"},
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, &stubSource{}, 0), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestGetLedger_DefaultWindow(t *testing.T) {
	rec := do(t, newTestServer(t, &stubSource{tasks: sample}, 0), http.MethodGet, "/ledger", "")
	require.Equal(t, http.StatusOK, rec.Code)

	ledger := decode[capacity.Ledger](t, rec)
	assert.Equal(t, "2025-12-01..2025-12-05", ledger.Window.String())
	assert.Equal(t, map[string]capacity.Idle{
		"A":   {Days: 3, Hours: 24},
		"B":   {Days: 2, Hours: 16},
		"dee": {Days: 5, Hours: 40},
	}, ledger.Idle())
}

func TestGetLedger_CachesTasksPerWindow(t *testing.T) {
	src := &stubSource{tasks: sample}
	s := newTestServer(t, src, 4)

	do(t, s, http.MethodGet, "/ledger?start=2025-12-01&end=2025-12-05", "")
	do(t, s, http.MethodGet, "/summary?start=2025-12-01&end=2025-12-05", "")
	assert.Equal(t, 1, src.fetches)

	do(t, s, http.MethodGet, "/ledger?start=2025-12-01&end=2025-12-12", "")
	assert.Equal(t, 2, src.fetches)

	do(t, s, http.MethodGet, "/ledger?start=2025-12-01&end=2025-12-05&refresh=true", "")
	assert.Equal(t, 3, src.fetches)
}

func TestGetLedger_InvalidWindow(t *testing.T) {
	s := newTestServer(t, &stubSource{}, 0)

	for _, target := range []string{
		"/ledger?start=2025-12-05&end=2025-12-01",
		"/ledger?start=december",
		"/summary?end=2025-13-01",
	} {
		rec := do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		body := decode[errorBody](t, rec)
		assert.Equal(t, http.StatusBadRequest, body.Status)
		assert.Equal(t, "Invalid window", body.Error.Message)
		assert.NotEmpty(t, body.Err)
	}
}

func TestGetLedger_SourceFailure(t *testing.T) {
	rec := do(t, newTestServer(t, &stubSource{err: errors.New("timeout")}, 0), http.MethodGet, "/ledger", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Err, "timeout")
}

func TestGetSummary(t *testing.T) {
	rec := do(t, newTestServer(t, &stubSource{tasks: sample}, 0), http.MethodGet, "/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[summaryResponse](t, rec)
	assert.Equal(t, 3, body.Global.Assignees)
	assert.Equal(t, 10, body.Global.IdleBusinessDays)
	require.Len(t, body.Teams, 3)
	assert.Equal(t, []string{"Growth", capacity.NoTeam, "Platform"},
		[]string{body.Teams[0].Team, body.Teams[1].Team, body.Teams[2].Team})
}

func TestPostLedger(t *testing.T) {
	src := &stubSource{}
	s := newTestServer(t, src, 0)

	rec := do(t, s, http.MethodPost, "/ledger", `{
		"window": {"start": "2025-12-01", "end": "2025-12-05"},
		"tasks": [
			{"assignee": "A", "start": "2025-12-01", "due": "2025-12-02"},
			{"assignee": "C", "start": "2025-12-08", "due": "2025-12-09"}
		],
		"overrides": {"C": {"start": "2025-12-08", "end": "2025-12-12"}},
		"roster": ["B"],
		"hours_per_day": 6
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ledger := decode[capacity.Ledger](t, rec)
	assert.Equal(t, map[string]capacity.Idle{
		"A":   {Days: 3, Hours: 18},
		"B":   {Days: 5, Hours: 30},
		"C":   {Days: 3, Hours: 18},
		"dee": {Days: 5, Hours: 30},
	}, ledger.Idle())
	assert.Equal(t, 0, src.fetches)
}

func TestPostLedger_Validation(t *testing.T) {
	s := newTestServer(t, &stubSource{}, 0)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed json", `{"window":`, "Wrong format"},
		{"missing window", `{"tasks": []}`, "Start"},
		{"bad date", `{"window": {"start": "2025-12-01", "end": "12/05/2025"}}`, "End"},
		{"inverted window", `{"window": {"start": "2025-12-05", "end": "2025-12-01"}}`, "Invalid window"},
		{"bad override", `{"window": {"start": "2025-12-01", "end": "2025-12-05"}, "overrides": {"A": {"start": "2025-12-01"}}}`, "End"},
		{"hours out of range", `{"window": {"start": "2025-12-01", "end": "2025-12-05"}, "hours_per_day": 30}`, "HoursPerDay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/ledger", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[errorBody](t, rec).Error.Message, tt.message)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, &stubSource{}, 0)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodDelete, "/ledger", "").Code)
}
