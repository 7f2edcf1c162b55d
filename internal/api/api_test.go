package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/starford/gtdspace/internal/docservice"
	"github.com/starford/gtdspace/internal/index"
	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/testutil"
	"github.com/starford/gtdspace/internal/workspace"
)

var fixedNow = time.Date(2024, 6, 4, 8, 0, 0, 0, time.UTC)

const (
	actionPath = "Projects/Launch/Ship it.md"
	habitPath  = "Habits/Stretch.md"
)

var seed = map[string]string{
	actionPath: "# Ship it\n\n## Status\n[!singleselect:status:in-progress]\n\n## Focus Date\n[!datetime:focus_date_time:2024-06-04T09:00:00]\n\n## Due Date\n[!datetime:due_date:2024-06-05]\n\n## Effort\n[!singleselect:effort:medium]\n\n## References\n[!references:references:Goals/Run a marathon.md]\n\nShip the landing page.\n",
	"Projects/Launch/README.md": "# Launch\n\n## Status\n[!singleselect:project-status:in-progress]\n",
	habitPath: "# Stretch\n\n## Status\n[!checkbox:habit-status:false]\n\n## Frequency\n[!singleselect:habit-frequency:daily]\n\n## Created\n[!datetime:created_date:2024-01-01]\n\n## History\n| Date | Time | Status | Action | Details |\n|------|------|--------|--------|---------|\n",
	"Goals/Run a marathon.md": "# Run a marathon\n\nTrain every week.\n",
}

// testEnv sets up a temp workspace, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*docservice.Service, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*docservice.Service, http.Handler) {
	t.Helper()

	_, store := testutil.TestWorkspace(t)
	testutil.Seed(t, store, seed)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	clock := func() time.Time { return fixedNow }
	ws := workspace.New(store, workspace.WithLocation(time.UTC), workspace.WithClock(clock), workspace.WithLogger(logger))
	if err := ws.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := index.Sync(db, store, time.UTC, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	svc := docservice.NewService(store, db, ws, logger, docservice.WithClock(clock))
	return svc, NewRouter(svc, authEnabled, authToken, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (body %q)", err, w.Body.String())
	}
	return v
}

func docURL(p string) string {
	return "/documents/" + url.PathEscape(p)
}

type dayBody struct {
	Entries []models.CalendarEntry `json:"entries"`
}

type scheduleBody struct {
	Days []dayBody `json:"days"`
}

func findEntry(t *testing.T, days []dayBody, kind models.EntryKind) models.CalendarEntry {
	t.Helper()
	for _, d := range days {
		for _, e := range d.Entries {
			if e.Kind == kind {
				return e
			}
		}
	}
	t.Fatalf("no %s entry", kind)
	return models.CalendarEntry{}
}

func TestGetCalendar(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/calendar?start=2024-06-03&end=2024-06-09", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decode[scheduleBody](t, w)
	if len(body.Days) != 7 {
		t.Fatalf("days = %d, want 7", len(body.Days))
	}
	focus := findEntry(t, body.Days, models.EntryFocus)
	if focus.DurationMinutes != 60 {
		t.Errorf("focus duration = %d, want 60", focus.DurationMinutes)
	}

	w = do(t, router, http.MethodGet, "/calendar?start=2024-06-03&span=2d&kinds=habit", nil)
	body = decode[scheduleBody](t, w)
	if len(body.Days) != 2 {
		t.Fatalf("days = %d, want 2", len(body.Days))
	}
	for _, d := range body.Days {
		for _, e := range d.Entries {
			if e.Kind != models.EntryHabit {
				t.Errorf("unexpected %s entry with kinds=habit", e.Kind)
			}
		}
	}
}

func TestGetCalendar_BadQuery(t *testing.T) {
	_, router := testEnv(t, "")
	for _, q := range []string{"start=june", "start=2024-06-03&end=2024-06-01", "kinds=meetings", "start=2024-06-03&span=3h",
		"start=0001-01-01&end=9999-12-31", "start=2024-06-03&span=999999999w"} {
		if w := do(t, router, http.MethodGet, "/calendar?"+q, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestMoveEntry(t *testing.T) {
	_, router := testEnv(t, "")

	body := decode[scheduleBody](t, do(t, router, http.MethodGet, "/calendar", nil))
	due := findEntry(t, body.Days, models.EntryDue)

	w := do(t, router, http.MethodPost, "/calendar/move", map[string]any{
		"entry_id": due.ID, "target_date": "2024-06-07", "start": "2024-06-03", "end": "2024-06-09",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[GestureResponse](t, w)
	if res.OldValue != "2024-06-05" || res.NewValue != "2024-06-07" || res.Skipped {
		t.Errorf("unexpected result: %+v", res)
	}

	doc := decode[DocumentDetail](t, do(t, router, http.MethodGet, docURL(actionPath), nil))
	if !strings.Contains(doc.Content, "[!datetime:due_date:2024-06-07]") {
		t.Errorf("document not rewritten:\n%s", doc.Content)
	}
}

func TestMoveEntry_Errors(t *testing.T) {
	_, router := testEnv(t, "")
	body := decode[scheduleBody](t, do(t, router, http.MethodGet, "/calendar", nil))
	habit := findEntry(t, body.Days, models.EntryHabit)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing id", map[string]any{"target_date": "2024-06-07"}, http.StatusBadRequest},
		{"bad date", map[string]any{"entry_id": "x", "target_date": "07/06/2024"}, http.StatusBadRequest},
		{"bad hour", map[string]any{"entry_id": "x", "target_date": "2024-06-07", "target_hour": 25}, http.StatusBadRequest},
		{"unknown entry", map[string]any{"entry_id": "nope", "target_date": "2024-06-07"}, http.StatusNotFound},
		{"habit", map[string]any{"entry_id": habit.ID, "target_date": "2024-06-07"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := do(t, router, http.MethodPost, "/calendar/move", tc.body); w.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestResizeEntry(t *testing.T) {
	_, router := testEnv(t, "")
	body := decode[scheduleBody](t, do(t, router, http.MethodGet, "/calendar", nil))
	focus := findEntry(t, body.Days, models.EntryFocus)

	w := do(t, router, http.MethodPost, "/calendar/resize", map[string]any{"entry_id": focus.ID, "minutes": 120})
	if w.Code != http.StatusOK {
		t.Fatalf("resize status = %d, body = %s", w.Code, w.Body.String())
	}
	res := decode[GestureResponse](t, w)
	if res.NewValue != string(models.EffortLarge) {
		t.Errorf("new effort = %q", res.NewValue)
	}

	if w := do(t, router, http.MethodPost, "/calendar/resize", map[string]any{"entry_id": focus.ID, "minutes": 0}); w.Code != http.StatusBadRequest {
		t.Errorf("zero minutes status = %d, want 400", w.Code)
	}
}

func TestGetDocument(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, docURL("Goals/Run a marathon.md"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("missing ETag")
	}
	doc := decode[DocumentDetail](t, w)
	if doc.Kind != models.KindGoal || len(doc.Backlinks) != 1 || doc.Backlinks[0].Source != actionPath {
		t.Errorf("unexpected document: %+v", doc)
	}

	if w := do(t, router, http.MethodGet, docURL("Goals/Missing.md"), nil); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", w.Code)
	}
}

func TestPatchDocument_OptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")

	doc := decode[DocumentDetail](t, do(t, router, http.MethodGet, docURL(actionPath), nil))

	w := do(t, router, http.MethodPatch, docURL(actionPath), map[string]string{"key": "status", "value": "waiting"},
		"If-Match", `"wrong"`)
	if w.Code != http.StatusConflict {
		t.Fatalf("stale If-Match status = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPatch, docURL(actionPath), map[string]string{"key": "status", "value": "waiting"},
		"If-Match", `"`+doc.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}
	updated := decode[DocumentDetail](t, w)
	if updated.Fields.Status != models.StatusWaiting {
		t.Errorf("status = %q", updated.Fields.Status)
	}
	if !strings.Contains(updated.Content, "Ship the landing page.") {
		t.Error("prose was not preserved")
	}

	w = do(t, router, http.MethodPatch, docURL(actionPath), map[string]string{"key": "mood", "value": "good"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown key status = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPatch, docURL(actionPath), map[string]string{"value": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing key status = %d, want 400", w.Code)
	}
}

func TestListDocuments(t *testing.T) {
	_, router := testEnv(t, "")
	resp := decode[DocumentListResponse](t, do(t, router, http.MethodGet, "/documents", nil))
	if resp.Total != len(seed) {
		t.Errorf("total = %d, want %d", resp.Total, len(seed))
	}
	resp = decode[DocumentListResponse](t, do(t, router, http.MethodGet, "/documents?kind=project", nil))
	if resp.Total != 1 || resp.Documents[0].Path != "Projects/Launch/README.md" {
		t.Errorf("projects = %+v", resp.Documents)
	}
}

func TestHabits(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/habits/status/"+url.PathEscape(habitPath), map[string]bool{"completed": true})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	list := decode[struct {
		Habits []struct {
			Path      string                `json:"path"`
			Completed bool                  `json:"completed"`
			History   []models.HistoryEntry `json:"history"`
		} `json:"habits"`
	}](t, do(t, router, http.MethodGet, "/habits", nil))
	if len(list.Habits) != 1 || !list.Habits[0].Completed {
		t.Fatalf("habits = %+v", list.Habits)
	}
	if n := len(list.Habits[0].History); n != 1 {
		t.Errorf("history rows = %d, want 1", n)
	}

	w = do(t, router, http.MethodPost, "/habits/status/"+url.PathEscape(actionPath), map[string]bool{"completed": true})
	if w.Code != http.StatusNotFound {
		t.Errorf("non-habit status = %d, want 404", w.Code)
	}
}

func TestReferences(t *testing.T) {
	_, router := testEnv(t, "")

	opts := decode[ReferenceOptionsResponse](t, do(t, router, http.MethodGet, "/references/options?horizon=projects", nil))
	if len(opts.Options) != 1 || opts.Options[0].Path != "Projects/Launch" {
		t.Errorf("project options = %+v", opts.Options)
	}
	opts = decode[ReferenceOptionsResponse](t, do(t, router, http.MethodGet, "/references/options?horizon=goals", nil))
	if len(opts.Options) != 1 || opts.Options[0].Name != "Run a marathon" {
		t.Errorf("goal options = %+v", opts.Options)
	}
	if w := do(t, router, http.MethodGet, "/references/options?horizon=moods", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad horizon status = %d, want 400", w.Code)
	}

	bl := decode[struct {
		Backlinks []index.Backlink `json:"backlinks"`
	}](t, do(t, router, http.MethodGet, "/references/backlinks/"+url.PathEscape("Goals/Run a marathon.md"), nil))
	if len(bl.Backlinks) != 1 || bl.Backlinks[0].Source != actionPath {
		t.Errorf("backlinks = %+v", bl.Backlinks)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search?q=landing", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	resp := decode[SearchResponse](t, w)
	if len(resp.Results) != 1 || resp.Results[0].Path != actionPath {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/documents", nil, "Authorization", "Bearer secret123"); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/documents", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/calendar", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/documents?access_token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	w := do(t, router, http.MethodGet, "/documents?access_token=nope", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate challenge")
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnvFull(t, false, "ignored", nil)
	if w := do(t, router, http.MethodGet, "/documents", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 with auth disabled, got %d", w.Code)
	}
}

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE without token: expected 401, got %d", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
