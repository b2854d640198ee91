package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/job-pipeline/internal/api/dto"
	"github.com/cuongbtq/job-pipeline/internal/api/handler"
	"github.com/cuongbtq/job-pipeline/internal/pipeline"
	"github.com/cuongbtq/job-pipeline/internal/pipeline/storage"
)

type staticStats struct {
	stats pipeline.Stats
}

func (s staticStats) Stats() pipeline.Stats {
	return s.stats
}

type recordedRequest struct {
	method string
	path   string
	status int
}

type fakeRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (f *fakeRecorder) RecordHTTPRequest(_ context.Context, method, path string, statusCode int, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{method: method, path: path, status: statusCode})
}

// newTestRouter registers jobs 0..4; even ids are finished
func newTestRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := storage.NewRegistry(logger)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for id := 0; id < 5; id++ {
		submitted := base.Add(time.Duration(id) * time.Second)
		require.NoError(t, registry.Create(id, submitted, submitted.Add(2*time.Second)))
		if id%2 == 0 {
			require.NoError(t, registry.MarkFinished(id, submitted.Add(12*time.Second)))
		}
	}

	return SetupRouter(&handler.Dependencies{
		Logger: logger,
		Jobs:   registry,
		Stats: staticStats{stats: pipeline.Stats{
			RunID:     "run-1",
			Phase:     pipeline.PhaseProducing,
			Submitted: 5,
			Finished:  3,
		}},
	}, opts)
}

func doGet(t *testing.T, r http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, Options{})

	rec := doGet(t, r, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestGetJob(t *testing.T) {
	r := newTestRouter(t, Options{})

	tests := []struct {
		name       string
		target     string
		wantStatus int
		check      func(t *testing.T, job dto.JobDTO)
	}{
		{
			name:       "finished job",
			target:     "/api/v1/jobs/2",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, job dto.JobDTO) {
				assert.Equal(t, 2, job.JobID)
				assert.Equal(t, "finished", job.State)
				assert.NotEmpty(t, job.FinishedAt)
				require.NotNil(t, job.RuntimeSeconds)
				require.NotNil(t, job.RoundtripSeconds)
				assert.InDelta(t, 10.0, *job.RuntimeSeconds, 1e-9)
				assert.InDelta(t, 12.0, *job.RoundtripSeconds, 1e-9)
			},
		},
		{
			name:       "running job",
			target:     "/api/v1/jobs/1",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, job dto.JobDTO) {
				assert.Equal(t, "running", job.State)
				assert.Empty(t, job.FinishedAt)
				assert.Nil(t, job.RuntimeSeconds)
			},
		},
		{name: "unknown job", target: "/api/v1/jobs/99", wantStatus: http.StatusNotFound},
		{name: "non integer id", target: "/api/v1/jobs/abc", wantStatus: http.StatusBadRequest},
		{name: "negative id", target: "/api/v1/jobs/-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(t, r, tt.target)
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.check != nil {
				var job dto.JobDTO
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
				tt.check(t, job)
			}
		})
	}
}

func TestListJobs(t *testing.T) {
	r := newTestRouter(t, Options{})

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantIDs    []int
		wantTotal  int
		wantMore   bool
	}{
		{name: "all jobs", target: "/api/v1/jobs", wantStatus: http.StatusOK, wantIDs: []int{0, 1, 2, 3, 4}, wantTotal: 5},
		{name: "running only", target: "/api/v1/jobs?state=running", wantStatus: http.StatusOK, wantIDs: []int{1, 3}, wantTotal: 2},
		{name: "finished only", target: "/api/v1/jobs?state=finished", wantStatus: http.StatusOK, wantIDs: []int{0, 2, 4}, wantTotal: 3},
		{name: "first page", target: "/api/v1/jobs?page_size=2", wantStatus: http.StatusOK, wantIDs: []int{0, 1}, wantTotal: 5, wantMore: true},
		{name: "unknown state", target: "/api/v1/jobs?state=queued", wantStatus: http.StatusBadRequest},
		{name: "bad cursor", target: "/api/v1/jobs?cursor=bm90LWEtY3Vyc29y", wantStatus: http.StatusBadRequest},
		{name: "bad page size", target: "/api/v1/jobs?page_size=many", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(t, r, tt.target)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp dto.ListJobsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

			ids := make([]int, 0, len(resp.Jobs))
			for _, job := range resp.Jobs {
				ids = append(ids, job.JobID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, resp.Total)
			assert.Equal(t, tt.wantMore, resp.NextCursor != "")
		})
	}
}

func TestListJobs_Pagination(t *testing.T) {
	r := newTestRouter(t, Options{})

	var ids []int
	target := "/api/v1/jobs?page_size=2"
	for page := 0; page < 5; page++ {
		rec := doGet(t, r, target)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp dto.ListJobsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		for _, job := range resp.Jobs {
			ids = append(ids, job.JobID)
		}
		if resp.NextCursor == "" {
			break
		}
		target = "/api/v1/jobs?page_size=2&cursor=" + resp.NextCursor
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, ids)
}

func TestGetStats(t *testing.T) {
	r := newTestRouter(t, Options{})

	rec := doGet(t, r, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats pipeline.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "run-1", stats.RunID)
	assert.Equal(t, pipeline.PhaseProducing, stats.Phase)
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, int64(3), stats.Finished)
}

func TestMetricsRoute(t *testing.T) {
	t.Run("disabled without handler", func(t *testing.T) {
		r := newTestRouter(t, Options{})
		assert.Equal(t, http.StatusNotFound, doGet(t, r, "/metrics").Code)
	})

	t.Run("served when configured", func(t *testing.T) {
		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("pipeline_jobs_finished_total 3\n"))
		})
		r := newTestRouter(t, Options{MetricsHandler: metrics})

		rec := doGet(t, r, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "pipeline_jobs_finished_total")
	})
}

func TestMetricsMiddleware(t *testing.T) {
	recorder := &fakeRecorder{}
	r := newTestRouter(t, Options{HTTPMetrics: recorder})

	doGet(t, r, "/api/v1/jobs/1")
	doGet(t, r, "/api/v1/jobs/404")

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.requests, 2)
	assert.Equal(t, recordedRequest{method: http.MethodGet, path: "/api/v1/jobs/1", status: http.StatusOK}, recorder.requests[0])
	assert.Equal(t, http.StatusNotFound, recorder.requests[1].status)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, Options{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
