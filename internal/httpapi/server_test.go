package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowpanel/internal/adapters/export"
	"flowpanel/internal/blob"
	"flowpanel/internal/core"
	"flowpanel/pkg/domain"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T, standard bool) *core.Service {
	t.Helper()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithClock(core.ClockFunc(func() time.Time { return fixedNow })))
	if standard {
		ctx := context.Background()
		_, _, err := svc.LoadStandardReagents(ctx)
		require.NoError(t, err)
		_, _, err = svc.LoadStandardTubes(ctx)
		require.NoError(t, err)
	}
	return svc
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := core.NewPrometheusMetricsRecorder(reg)
	require.NoError(t, err)
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithMetricsRecorder(rec))
	h := New(svc, WithGatherer(reg)).Handler()

	res := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/check", "").Code)
	res = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "check")

	res = do(t, h, http.MethodGet, "/debug/vars", "")
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "memstats")
}

func TestReagentAndTubeLifecycle(t *testing.T) {
	h := New(newService(t, false)).Handler()

	res := do(t, h, http.MethodPut, "/api/reagents/"+url.PathEscape("BB515 Rat Anti-Mouse CD45"),
		`{"fluorochrome":"BB515","concentration":200,"recommended_use":0.25,"type":"Surface"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	stored := decode[mutationResponse](t, res)
	require.NotNil(t, stored.Reagent)
	assert.Equal(t, "BB515 Rat Anti-Mouse CD45", stored.Reagent.Name)
	assert.Equal(t, "CD45", stored.Reagent.ShortName)
	assert.Equal(t, domain.ReagentSurface, stored.Reagent.Type)

	res = do(t, h, http.MethodPut, "/api/tubes/Full", `{"description":"full stain"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = do(t, h, http.MethodPut, "/api/tubes/Full/reagents/"+url.PathEscape("BB515 Rat Anti-Mouse CD45"), "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	tube := decode[mutationResponse](t, res).Tube
	require.NotNil(t, tube)
	assert.Equal(t, []string{"BB515 Rat Anti-Mouse CD45"}, tube.ReagentRefs)

	res = do(t, h, http.MethodPut, "/api/tubes/Full/reagents/"+url.PathEscape("anti CD16/32"), "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, []string{"BB515 Rat Anti-Mouse CD45", "anti CD16/32"}, decode[mutationResponse](t, res).Tube.ReagentRefs)

	res = do(t, h, http.MethodDelete, "/api/tubes/Full/reagents/"+url.PathEscape("anti CD16/32"), "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, []string{"BB515 Rat Anti-Mouse CD45"}, decode[mutationResponse](t, res).Tube.ReagentRefs)

	res = do(t, h, http.MethodGet, "/api/tubes", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, decode[map[string][]core.Tube](t, res)["tubes"], 1)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodDelete, "/api/reagents/"+url.PathEscape("BB515 Rat Anti-Mouse CD45"), "").Code)
	res = do(t, h, http.MethodGet, "/api/reagents", "")
	assert.Empty(t, decode[map[string][]core.Reagent](t, res)["reagents"])

	// The tube keeps its now dangling reference.
	res = do(t, h, http.MethodGet, "/api/tubes", "")
	assert.Equal(t, []string{"BB515 Rat Anti-Mouse CD45"}, decode[map[string][]core.Tube](t, res)["tubes"][0].ReagentRefs)
}

func TestErrorMapping(t *testing.T) {
	h := New(newService(t, true)).Handler()

	cases := []struct {
		name   string
		method string
		target string
		body   string
		status int
		kind   string
	}{
		{"name mismatch", http.MethodPut, "/api/reagents/A", `{"name":"B"}`, http.StatusBadRequest, core.KindValidation},
		{"unknown reagent type", http.MethodPut, "/api/reagents/A", `{"type":"Bogus"}`, http.StatusBadRequest, core.KindUnknownVariant},
		{"negative concentration", http.MethodPut, "/api/reagents/A", `{"concentration":-1}`, http.StatusBadRequest, core.KindInvalidNumeric},
		{"malformed json", http.MethodPut, "/api/tubes/T", `{"name":`, http.StatusBadRequest, core.KindValidation},
		{"missing tube", http.MethodDelete, "/api/tubes/Nope", "", http.StatusNotFound, core.KindNotFound},
		{"missing reagent", http.MethodDelete, "/api/reagents/Nope", "", http.StatusNotFound, core.KindNotFound},
		{"add to missing tube", http.MethodPut, "/api/tubes/Nope/reagents/X", "", http.StatusNotFound, core.KindNotFound},
		{"empty groups", http.MethodPost, "/api/plan", `{"groups":[]}`, http.StatusUnprocessableEntity, core.KindEmptyGroups},
		{"zero replicates", http.MethodPost, "/api/plan", `{"replicates":0}`, http.StatusUnprocessableEntity, core.KindInvalidReplicate},
		{"oversized plan", http.MethodPost, "/api/plan", `{"replicates":4611686018427387903}`, http.StatusBadRequest, core.KindInvalidNumeric},
		{"zero cell count", http.MethodPost, "/api/mastermix", `{"cell_count":0,"per_tube":100,"intracellular_per_tube":50}`, http.StatusBadRequest, core.KindInvalidNumeric},
		{"bad volumes", http.MethodPut, "/api/project/volumes", `{"per_tube":0}`, http.StatusBadRequest, core.KindInvalidNumeric},
		{"bad mix flag", http.MethodGet, "/api/protocol?mix=maybe", "", http.StatusBadRequest, core.KindInvalidNumeric},
		{"missing export", http.MethodGet, "/api/exports/abc", "", http.StatusServiceUnavailable, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := do(t, h, tc.method, tc.target, tc.body)
			require.Equal(t, tc.status, res.Code, res.Body.String())
			body := decode[errorResponse](t, res)
			assert.Equal(t, tc.kind, body.Kind)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestEmptyProjectComputations(t *testing.T) {
	h := New(newService(t, false)).Handler()

	res := do(t, h, http.MethodGet, "/api/matrix", "")
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code, res.Body.String())
	assert.Equal(t, core.KindEmptyInput, decode[errorResponse](t, res).Kind)

	res = do(t, h, http.MethodPost, "/api/plan", "")
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code, res.Body.String())
	assert.Equal(t, core.KindEmptyInput, decode[errorResponse](t, res).Kind)
}

func TestStandardPanelComputations(t *testing.T) {
	h := New(newService(t, true)).Handler()

	res := do(t, h, http.MethodGet, "/api/matrix", "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	matrix := decode[core.Matrix](t, res)
	assert.Len(t, matrix.Reagents, 4)
	assert.Len(t, matrix.Rows, 7)

	res = do(t, h, http.MethodGet, "/api/matrix?format=csv", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "text/csv; charset=utf-8", res.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(res.Body.Bytes(), []byte("\ufeff")))

	res = do(t, h, http.MethodPost, "/api/mastermix", "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	mix := decode[core.MasterMixResult](t, res)
	require.NotNil(t, mix.Surface)
	require.NotNil(t, mix.Intracellular)
	assert.Equal(t, 6, mix.Surface.TotalTubes)
	assert.Equal(t, 4, mix.Intracellular.TotalTubes)

	res = do(t, h, http.MethodPost, "/api/mastermix", `{"extra_tubes":0}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	partial := decode[core.MasterMixResult](t, res)
	require.NotNil(t, partial.Surface)
	assert.Equal(t, 4, partial.Surface.TotalTubes)
	assert.Equal(t, 400.0, partial.Surface.TotalVolume)
	assert.Equal(t, mix.Surface.PerTubeVolume, partial.Surface.PerTubeVolume)

	res = do(t, h, http.MethodPost, "/api/mastermix", `{"cell_count":2}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	doubled := decode[core.MasterMixResult](t, res)
	require.NotNil(t, doubled.Surface)
	assert.Equal(t, mix.Surface.TotalTubes, doubled.Surface.TotalTubes)
	assert.Equal(t, core.MasterMixParams{CellCount: 2, PerTubeVolume: 100, IntracellularPerTubeVolume: 50, ExtraTubes: 2}, doubled.Params)

	res = do(t, h, http.MethodPost, "/api/plan", "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	plan := decode[core.Plan](t, res)
	assert.Len(t, plan.Rows, 63)
	assert.False(t, plan.Randomized)

	res = do(t, h, http.MethodPost, "/api/plan", `{"groups":["WT","KO"],"replicates":2,"randomize":true,"seed":7}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	plan = decode[core.Plan](t, res)
	assert.Len(t, plan.Rows, 28)
	assert.True(t, plan.Randomized)
	assert.Equal(t, uint64(7), plan.Seed)

	res = do(t, h, http.MethodPost, "/api/plan?format=run_order", `{"replicates":1}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 1+21, strings.Count(strings.TrimSpace(res.Body.String()), "\n")+1)

	res = do(t, h, http.MethodGet, "/api/protocol?mix=true&format=text", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Intracellular working mix")

	res = do(t, h, http.MethodGet, "/api/protocol?format=pdf", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, bytes.HasPrefix(res.Body.Bytes(), []byte("%PDF-")))
}

func TestProjectRoundTrip(t *testing.T) {
	src := New(newService(t, true)).Handler()
	require.Equal(t, http.StatusOK, do(t, src, http.MethodPut, "/api/project/name", `{"name":"Fibrosis"}`).Code)
	res := do(t, src, http.MethodPut, "/api/project/volumes", `{"extra_tubes":4}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	volumes := decode[mutationResponse](t, res).Volumes
	require.NotNil(t, volumes)
	assert.Equal(t, 4, volumes.ExtraTubes)
	assert.Equal(t, 100.0, volumes.PerTube)

	res = do(t, src, http.MethodGet, "/api/project", "")
	require.Equal(t, http.StatusOK, res.Code)
	saved := res.Body.String()
	assert.Contains(t, saved, `"project_name":"Fibrosis"`)
	assert.Contains(t, saved, `"save_time":"2024-03-01T09:30:00Z"`)

	dst := New(newService(t, false)).Handler()
	res = do(t, dst, http.MethodPut, "/api/project", saved)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	res = do(t, dst, http.MethodGet, "/api/project", "")
	assert.JSONEq(t, saved, res.Body.String())

	res = do(t, dst, http.MethodPut, "/api/project", "")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestExportEndpoints(t *testing.T) {
	svc := newService(t, true)
	worker := export.NewWorker(export.NewExporter(svc, blob.NewMemory()), 4)
	worker.Start()
	t.Cleanup(func() { _ = worker.Stop(context.Background()) })
	h := New(svc, WithExports(worker)).Handler()

	res := do(t, h, http.MethodPost, "/api/exports", `{"formats":["bogus"]}`)
	assert.Equal(t, http.StatusBadRequest, res.Code, res.Body.String())

	res = do(t, h, http.MethodPost, "/api/exports", `{"formats":["matrix","plan","run_order"],"plan":{"replicates":1}}`)
	require.Equal(t, http.StatusAccepted, res.Code, res.Body.String())
	created := decode[map[string]export.Record](t, res)["export"]
	require.NotEmpty(t, created.ID)

	var done export.Record
	require.Eventually(t, func() bool {
		res := do(t, h, http.MethodGet, "/api/exports/"+created.ID, "")
		if res.Code != http.StatusOK {
			return false
		}
		done = decode[map[string]export.Record](t, res)["export"]
		return done.Status == export.StatusSucceeded || done.Status == export.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, export.StatusSucceeded, done.Status, done.Error)
	assert.Len(t, done.Artifacts, 3)

	res = do(t, h, http.MethodGet, "/api/exports/missing", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := New(newService(t, false), WithCORSOrigins([]string{"https://bench.example"})).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/matrix", nil)
	req.Header.Set("Origin", "https://bench.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://bench.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
