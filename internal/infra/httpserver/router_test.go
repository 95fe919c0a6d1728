package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appanalysis "github.com/bryanwahyu/hdfs-analysis-sim/internal/application/analysis"
	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/scoring"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/callback"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/db/memory"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/storage"
)

// receiver collects callbacks posted by the service
type receiver struct {
	mu       sync.Mutex
	paths    []string
	complete chan domain.CompletionPayload
}

func newReceiver(t *testing.T) (*receiver, *httptest.Server) {
	rc := &receiver{complete: make(chan domain.CompletionPayload, 1)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc.mu.Lock()
		rc.paths = append(rc.paths, r.URL.Path)
		rc.mu.Unlock()
		if strings.HasSuffix(r.URL.Path, "-complete") {
			var p domain.CompletionPayload
			if err := json.NewDecoder(r.Body).Decode(&p); err == nil {
				rc.complete <- p
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return rc, srv
}

func newTestRouter(t *testing.T, cfg appanalysis.Config) (http.Handler, *appanalysis.Service) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc := appanalysis.NewService(cfg, appanalysis.Deps{
		Repo:     memory.NewJobRepository(),
		Notifier: callback.New(nil),
		Results:  store,
		Rand:     scoring.NewLockedRand(3),
	})
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return NewRouter(svc, Options{}), svc
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestAnalyze_FullFlow(t *testing.T) {
	rc, cb := newReceiver(t)
	h, _ := newTestRouter(t, appanalysis.Config{WriteCSV: true, PerBlockCallbacks: true})

	body := `{"upload_id": 17, "filename": "HDFS.log", "total_entries": 100,
		"block_ids": ["blk_-1608999687919862906", "blk_7503483334202473044", "blk_3"],
		"callback_url": "` + cb.URL + `/api/analysis-callback"}`
	rec := do(h, http.MethodPost, "/analyze", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	desc := decode(t, rec)
	assert.Equal(t, "processing", desc["status"])
	assert.Equal(t, "Analysis started for 3 blocks", desc["message"])
	assert.True(t, strings.HasPrefix(desc["job_id"].(string), "job_17_"))
	filename := desc["analysis_filename"].(string)

	var p domain.CompletionPayload
	select {
	case p = <-rc.complete:
	case <-time.After(5 * time.Second):
		t.Fatal("no completion callback")
	}

	assert.Equal(t, domain.UploadID("17"), p.UploadID)
	assert.True(t, p.AnalysisComplete)
	assert.Equal(t, 3, p.TotalBlocksProcessed)
	require.Len(t, p.Results, 3)
	assert.Equal(t, "blk_-1608999687919862906", p.Results[0].BlockID)
	assert.Equal(t, "blk_7503483334202473044", p.Results[1].BlockID)
	assert.Equal(t, "blk_3", p.Results[2].BlockID)
	require.NotNil(t, p.AnalysisFilename)
	assert.Equal(t, filename, *p.AnalysisFilename)

	rc.mu.Lock()
	paths := append([]string(nil), rc.paths...)
	rc.mu.Unlock()
	assert.Equal(t, []string{
		"/api/analysis-callback",
		"/api/analysis-callback",
		"/api/analysis-callback",
		"/api/analysis-callback-complete",
	}, paths)

	var status map[string]any
	assert.Eventually(t, func() bool {
		rec := do(h, http.MethodGet, "/status/"+desc["job_id"].(string), "")
		status = nil
		_ = json.Unmarshal(rec.Body.Bytes(), &status)
		return status["status"] == string(domain.StatusComplete)
	}, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 3, status["processed_blocks"])

	res := do(h, http.MethodGet, "/results/"+filename, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "text/csv", res.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(res.Body.String()), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "block_id,anomaly_score,reason", lines[0])
}

func TestAnalyze_MissingFields(t *testing.T) {
	h, svc := newTestRouter(t, appanalysis.Config{})

	for _, body := range []string{
		`{"upload_id": "1", "callback_url": "http://x.test/cb"}`,
		`{"upload_id": "1", "block_ids": [], "callback_url": "http://x.test/cb"}`,
		`{"block_ids": ["blk_1"], "callback_url": "http://x.test/cb"}`,
		`{"upload_id": "1", "block_ids": ["blk_1"]}`,
		`{"upload_id": 0, "block_ids": ["blk_1"], "callback_url": "http://x.test/cb"}`,
	} {
		rec := do(h, http.MethodPost, "/analyze", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Missing required fields", decode(t, rec)["error"])
	}
	svc.Wait()
}

func TestAnalyze_BadInput(t *testing.T) {
	h, _ := newTestRouter(t, appanalysis.Config{})

	rec := do(h, http.MethodPost, "/analyze", `{"upload_id": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "invalid JSON body")

	rec = do(h, http.MethodPost, "/analyze", `{"upload_id": "1", "block_ids": ["blk_1"], "callback_url": "ftp://x/cb"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "invalid callback_url")
}

func TestStatus_UnknownJobPlaceholder(t *testing.T) {
	h, _ := newTestRouter(t, appanalysis.Config{})

	rec := do(h, http.MethodGet, "/status/job_nope", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"job_id":  "job_nope",
		"status":  "processing",
		"message": "Analysis in progress",
	}, decode(t, rec))
}

func TestResults_NotFound(t *testing.T) {
	h, _ := newTestRouter(t, appanalysis.Config{})

	for _, path := range []string{"/results/missing.csv", "/results/..%2Fsecret"} {
		rec := do(h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "File not found", decode(t, rec)["error"])
	}
}

func TestHealth(t *testing.T) {
	h, svc := newTestRouter(t, appanalysis.Config{})

	rec := do(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, svc.ResultsDir(), body["results_directory"])
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, appanalysis.Config{})
	do(h, http.MethodGet, "/status/job_x", "")

	rec := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hdfs_sim_http_requests_total{method="GET",route="/status/{job_id}",status="200"}`)
}

func TestRequestIDHeader(t *testing.T) {
	h, _ := newTestRouter(t, appanalysis.Config{})
	rec := do(h, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
