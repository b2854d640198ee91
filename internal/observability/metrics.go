package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
)

// Metrics holds all pipeline metrics:
// - Traffic: submissions, accepted submissions, finished jobs, HTTP requests
// - Errors: dropped submissions, HTTP errors
// - Latency: submit delay, job runtime and roundtrip, HTTP latency
// - Saturation: running jobs, queue depth
type Metrics struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider

	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	SubmissionsTotal metric.Int64Counter
	AcceptedTotal    metric.Int64Counter
	DroppedTotal     metric.Int64Counter
	SubmitDelay      metric.Float64Histogram

	JobsCreatedTotal  metric.Int64Counter
	JobsFinishedTotal metric.Int64Counter
	JobsActive        metric.Int64UpDownCounter
	JobRuntime        metric.Float64Histogram
	JobRoundtrip      metric.Float64Histogram

	StatusReportsTotal metric.Int64Counter
	ReportedJobs       metric.Int64Gauge
	QueueDepth         metric.Int64Gauge
}

// NewMetrics creates all metrics on a dedicated Prometheus registry and
// returns the handler serving that registry.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("job-pipeline")
	m := &Metrics{meter: meter, provider: provider}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Submission metrics
	m.SubmissionsTotal, err = meter.Int64Counter(
		"pipeline_submissions_total",
		metric.WithDescription("Total number of submission requests produced"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.AcceptedTotal, err = meter.Int64Counter(
		"pipeline_submissions_accepted_total",
		metric.WithDescription("Total number of submissions accepted by the executor"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DroppedTotal, err = meter.Int64Counter(
		"pipeline_dropped_total",
		metric.WithDescription("Total number of work items dropped after executor failure"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SubmitDelay, err = meter.Float64Histogram(
		"pipeline_submit_delay_seconds",
		metric.WithDescription("Simulated submit duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	// Job metrics
	m.JobsCreatedTotal, err = meter.Int64Counter(
		"pipeline_jobs_created_total",
		metric.WithDescription("Total number of jobs registered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsFinishedTotal, err = meter.Int64Counter(
		"pipeline_jobs_finished_total",
		metric.WithDescription("Total number of jobs finished"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsActive, err = meter.Int64UpDownCounter(
		"pipeline_jobs_running",
		metric.WithDescription("Number of currently running jobs (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobRuntime, err = meter.Float64Histogram(
		"pipeline_job_runtime_seconds",
		metric.WithDescription("Job runtime from start to finish in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 15, 20, 25, 30, 60),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobRoundtrip, err = meter.Float64Histogram(
		"pipeline_job_roundtrip_seconds",
		metric.WithDescription("Job roundtrip from submission to finish in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 20, 30, 45, 60, 120),
	)
	if err != nil {
		return nil, nil, err
	}

	// Status metrics
	m.StatusReportsTotal, err = meter.Int64Counter(
		"pipeline_status_reports_total",
		metric.WithDescription("Total number of status reports logged"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ReportedJobs, err = meter.Int64Gauge(
		"pipeline_status_jobs",
		metric.WithDescription("Jobs per state as seen by the last status report"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.QueueDepth, err = meter.Int64Gauge(
		"pipeline_queue_depth",
		metric.WithDescription("Items waiting in a stage queue (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// Shutdown flushes and releases the meter provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordSubmitted records a submission request entering the pipeline
func (m *Metrics) RecordSubmitted(ctx context.Context) {
	m.SubmissionsTotal.Add(ctx, 1)
}

// RecordAccepted records an accepted submission and its simulated duration
func (m *Metrics) RecordAccepted(ctx context.Context, delaySeconds float64) {
	m.AcceptedTotal.Add(ctx, 1)
	m.SubmitDelay.Record(ctx, delaySeconds)
}

// RecordDropped records a work item dropped by stage
func (m *Metrics) RecordDropped(ctx context.Context, stage string) {
	m.DroppedTotal.Add(ctx, 1, WithStage(stage))
}

// RecordJobCreated records a job being registered as running
func (m *Metrics) RecordJobCreated(ctx context.Context) {
	m.JobsCreatedTotal.Add(ctx, 1)
	m.JobsActive.Add(ctx, 1)
}

// RecordJobFinished records a job completing
func (m *Metrics) RecordJobFinished(ctx context.Context, runtimeSeconds, roundtripSeconds float64) {
	m.JobsFinishedTotal.Add(ctx, 1)
	m.JobsActive.Add(ctx, -1)
	m.JobRuntime.Record(ctx, runtimeSeconds)
	m.JobRoundtrip.Record(ctx, roundtripSeconds)
}

// RecordStatusReport records the counts logged by a status worker
func (m *Metrics) RecordStatusReport(ctx context.Context, running, finished int) {
	m.StatusReportsTotal.Add(ctx, 1)
	m.ReportedJobs.Record(ctx, int64(running), metric.WithAttributes(stateAttr(domain.JobStateRunning)))
	m.ReportedJobs.Record(ctx, int64(finished), metric.WithAttributes(stateAttr(domain.JobStateFinished)))
}

// RecordQueueDepth records the current depth of a stage queue
func (m *Metrics) RecordQueueDepth(ctx context.Context, queue string, depth int64) {
	m.QueueDepth.Record(ctx, depth, metric.WithAttributes(queueAttr(queue)))
}
