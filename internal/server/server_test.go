package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reign-theme/demo-install/internal/demo"
	"github.com/reign-theme/demo-install/internal/importer"
	"github.com/reign-theme/demo-install/internal/journal"
	"github.com/reign-theme/demo-install/internal/metrics"
	"github.com/reign-theme/demo-install/internal/model"
)

type fakeImporter struct {
	mu    sync.Mutex
	calls []*importer.ImportContext
	res   *model.ImportResult
	err   error
	// cancelled records whether the context seen by Import was cancelled.
	cancelled bool
}

func (f *fakeImporter) Import(ctx context.Context, ic *importer.ImportContext) (*model.ImportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ic)
	f.cancelled = ctx.Err() != nil
	return f.res, f.err
}

var testAdmin = model.AdminIdentity{ID: 1, Login: "admin"}

func adminHeader(r *http.Request) (model.AdminIdentity, error) {
	switch r.Header.Get("X-Admin") {
	case "admin":
		return testAdmin, nil
	case "other":
		return model.AdminIdentity{ID: 2, Login: "other"}, nil
	default:
		return model.AdminIdentity{}, ErrNotAdmin
	}
}

func testPackage(id string) (*demo.Package, error) {
	if id != "reign-buddypress" {
		return nil, fmt.Errorf("opening %s: %w", id, demo.ErrNoDatabaseDir)
	}
	return &demo.Package{
		ID:    id,
		Order: []string{"wp_options", "wp_posts"},
		Files: []model.DumpFile{
			{Stem: "wp_options", Path: "wp_options.sql"},
			{Stem: "wp_posts", Path: "wp_posts.sql"},
		},
	}, nil
}

func okResult() *model.ImportResult {
	return &model.ImportResult{
		Imported: 2,
		Prefix:   model.PrefixMapping{Source: "old_", Target: "wp_"},
		Tables: []model.TableResult{
			{Table: "wp_options", Outcome: model.OutcomeImported},
			{Table: "wp_posts", Outcome: model.OutcomeImported},
		},
	}
}

func newTestServer(t *testing.T, imp *fakeImporter, mutate ...func(*Config)) (*Server, *Config) {
	t.Helper()
	jdb, err := journal.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { jdb.Close() })

	cfg := Config{
		Importer: imp,
		OpenDemo: testPackage,
		HomeURL:  "https://example.test",
		Admin:    adminHeader,
		Journal:  jdb,
		Metrics:  metrics.New(),
		Log:      zaptest.NewLogger(t),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg), &cfg
}

func postStep(t *testing.T, h http.Handler, step, admin, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/steps/"+step, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if admin != "" {
		req.Header.Set("X-Admin", admin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got), rec.Body.String())
	return rec, got
}

func message(t *testing.T, env map[string]any) string {
	t.Helper()
	data, ok := env["data"].(map[string]any)
	require.True(t, ok, "data is %T", env["data"])
	msg, _ := data["message"].(string)
	return msg
}

func TestContentStepRunsImport(t *testing.T) {
	imp := &fakeImporter{res: okResult()}
	s, cfg := newTestServer(t, imp)

	rec, env := postStep(t, s.Router(), "content", "admin",
		`{"demo_id":"reign-buddypress","options":{"import_users":"0","clean_install":true,"evil":"1"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, env["success"])
	data := env["data"].(map[string]any)
	require.Equal(t, "files", data["next_step"])
	require.NotNil(t, data["results"])

	require.Len(t, imp.calls, 1)
	ic := imp.calls[0]
	require.Equal(t, "reign-buddypress", ic.DemoID)
	require.Equal(t, testAdmin, ic.Admin)
	require.True(t, ic.Ordered)
	require.Len(t, ic.Files, 2)
	require.Equal(t, "https://example.test", ic.HomeURL)
	require.False(t, ic.Options.ImportUsers)
	require.True(t, ic.Options.CleanInstall)
	require.True(t, ic.Options.ImportContent)

	runs, err := journal.ListRuns(cfg.Journal, journal.ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, model.RunSucceeded, runs[0].Status)
	require.Equal(t, "admin (#1)", runs[0].Admin)
	require.Equal(t, "old_", runs[0].SourcePrefix)
}

func TestContentStepIgnoresClientCancellation(t *testing.T) {
	imp := &fakeImporter{res: okResult()}
	s, _ := newTestServer(t, imp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/steps/content", strings.NewReader(`{"demo_id":"reign-buddypress"}`)).WithContext(ctx)
	req.Header.Set("X-Admin", "admin")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, imp.calls, 1)
	require.False(t, imp.cancelled)
}

func TestContentStepPartialImport(t *testing.T) {
	res := okResult()
	res.Errors = []string{"wp_posts: boom"}
	imp := &fakeImporter{res: res, err: &importer.ImportError{Result: res, Err: errors.New("wp_posts: boom")}}
	s, cfg := newTestServer(t, imp)

	rec, env := postStep(t, s.Router(), "content", "admin", `{"demo_id":"reign-buddypress"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, env["success"])
	require.Contains(t, message(t, env), "import partially applied")
	require.NotNil(t, env["data"].(map[string]any)["results"])
	require.Equal(t, "PARTIAL_IMPORT", env["error"].(map[string]any)["code"])

	runs, err := journal.ListRuns(cfg.Journal, journal.ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, model.RunPartial, runs[0].Status)
	require.Equal(t, []string{"wp_posts: boom"}, runs[0].Errors)
}

func TestContentStepFailedImport(t *testing.T) {
	imp := &fakeImporter{err: importer.ErrNoAdmin}
	s, cfg := newTestServer(t, imp)

	rec, env := postStep(t, s.Router(), "content", "admin", `{"demo_id":"reign-buddypress"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, importer.ErrNoAdmin.Error(), message(t, env))

	runs, err := journal.ListRuns(cfg.Journal, journal.ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, model.RunFailed, runs[0].Status)
}

func TestContentStepUnknownDemo(t *testing.T) {
	imp := &fakeImporter{res: okResult()}
	s, _ := newTestServer(t, imp)

	rec, env := postStep(t, s.Router(), "content", "admin", `{"demo_id":"missing"}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, message(t, env), "database directory not found")
	require.Empty(t, imp.calls)
}

func TestStepRejectsInvalidRequests(t *testing.T) {
	imp := &fakeImporter{res: okResult()}
	s, _ := newTestServer(t, imp)
	h := s.Router()

	tests := []struct {
		name  string
		step  string
		admin string
		body  string
		code  int
		msg   string
	}{
		{"unknown step", "explode", "admin", `{"demo_id":"reign-buddypress"}`, http.StatusBadRequest, "invalid import step"},
		{"no admin", "content", "", `{"demo_id":"reign-buddypress"}`, http.StatusForbidden, "insufficient permissions"},
		{"bad json", "content", "admin", `{`, http.StatusBadRequest, "invalid request body"},
		{"missing demo", "content", "admin", `{"demo_id":"  "}`, http.StatusBadRequest, "missing required parameters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := postStep(t, h, tt.step, tt.admin, tt.body)
			require.Equal(t, tt.code, rec.Code)
			require.Equal(t, false, env["success"])
			require.Equal(t, tt.msg, message(t, env))
		})
	}
	require.Empty(t, imp.calls)
}

func TestOtherStepsDispatchToHandlers(t *testing.T) {
	var got StepRequest
	plugins := StepHandlerFunc(func(_ context.Context, req StepRequest) (*StepResponse, error) {
		got = req
		return &StepResponse{Message: "plugins installed"}, nil
	})
	failing := StepHandlerFunc(func(context.Context, StepRequest) (*StepResponse, error) {
		return nil, errors.New("disk full")
	})
	s, _ := newTestServer(t, &fakeImporter{}, func(c *Config) {
		c.Steps = map[model.Step]StepHandler{
			model.StepPlugins: plugins,
			model.StepBackup:  failing,
		}
	})
	h := s.Router()

	rec, env := postStep(t, h, "plugins", "admin", `{"demo_id":"reign-buddypress","options":{"import_media":false}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "plugins installed", message(t, env))
	require.Equal(t, "content", env["data"].(map[string]any)["next_step"])
	require.Equal(t, model.StepPlugins, got.Step)
	require.False(t, got.Options.ImportMedia)

	rec, env = postStep(t, h, "backup", "admin", `{"demo_id":"reign-buddypress"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "disk full", message(t, env))

	rec, env = postStep(t, h, "cleanup", "admin", `{"demo_id":"reign-buddypress"}`)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
	require.Equal(t, "cleanup: step is not handled here", message(t, env))
}

func TestStepRateLimitIsPerAdmin(t *testing.T) {
	s, _ := newTestServer(t, &fakeImporter{res: okResult()}, func(c *Config) { c.RateLimit = 2 })
	h := s.Router()
	body := `{"demo_id":"reign-buddypress"}`

	for i := 0; i < 2; i++ {
		rec, _ := postStep(t, h, "content", "admin", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := postStep(t, h, "content", "admin", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, message(t, env), "too many requests")
	require.Equal(t, "RATE_LIMITED", env["error"].(map[string]any)["code"])

	rec, _ = postStep(t, h, "content", "other", body)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRunsEndpoints(t *testing.T) {
	s, cfg := newTestServer(t, &fakeImporter{res: okResult()})
	h := s.Router()

	id, err := journal.RecordRun(cfg.Journal, &model.Run{DemoID: "reign-woo", Admin: "admin (#1)", Status: model.RunSucceeded})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?demo=reign-woo", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	require.Equal(t, id, runs[0].ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?demo=other", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/ffffffff-ffff", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs?limit=x", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s, cfg := newTestServer(t, &fakeImporter{})
	cfg.Metrics.RunFinished(string(model.RunSucceeded), 0)
	h := s.Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `reign_demo_runs_total{status="succeeded"} 1`)
}

func TestSanitizeOptions(t *testing.T) {
	got := SanitizeOptions(map[string]any{
		"import_content":        "false",
		"import_media":          float64(0),
		"clean_install":         "1",
		"backup_before_import":  "yes",
		"backup_essential_only": []any{"x"},
		"drop_database":         true,
	})
	want := model.StepOptions{
		ImportContent:       false,
		ImportMedia:         false,
		ImportUsers:         true,
		ImportSettings:      true,
		CleanInstall:        true,
		BackupBeforeImport:  true,
		BackupEssentialOnly: false,
	}
	require.Equal(t, want, got)
	require.Equal(t, model.DefaultStepOptions(), SanitizeOptions(nil))
}
