package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/job-pipeline/internal/api/dto"
	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// GetJob handles GET /api/v1/jobs/:job_id
// Returns the timestamps and state of one job
func (h *JobHandler) GetJob(c *gin.Context) {
	rawID := c.Param("job_id")

	// 1. Validate job_id format (integer sequence number)
	jobID, err := strconv.Atoi(rawID)
	if err != nil || jobID < 0 {
		h.logger.Debug("Invalid job_id format", slog.String("job_id", rawID))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "job_id must be a non-negative integer"})
		return
	}

	// 2. Look up the registry
	job, err := h.jobs.Get(jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "job not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.Int("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists registered jobs in ascending id order with optional state filter and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	// 1. Parse query parameters
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid query parameters"})
		return
	}

	// 2. Validate parameters
	switch req.State {
	case "", domain.JobStateRunning, domain.JobStateFinished:
	default:
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "state must be running or finished"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid cursor"})
		return
	}

	// 3. Filter the snapshot
	filtered := make([]domain.JobRecord, 0)
	for _, job := range h.jobs.Snapshot() {
		if req.State != "" && job.State() != req.State {
			continue
		}
		filtered = append(filtered, job)
	}
	total := len(filtered)

	page := filtered[:0:0]
	for _, job := range filtered {
		if cursor != nil && job.ID <= cursor.AfterID {
			continue
		}
		page = append(page, job)
		if len(page) > req.PageSize {
			break
		}
	}

	// 4. Prepare response with next cursor if more results exist
	hasMore := len(page) > req.PageSize
	if hasMore {
		page = page[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(page))
	for i, job := range page {
		jobResponse[i] = toJobDTO(job)
	}

	var nextCursor string
	if hasMore {
		nextCursor = EncodeJobCursor(&JobCursor{AfterID: page[len(page)-1].ID})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		Total:      total,
		NextCursor: nextCursor,
	})
}

// GetStats handles GET /api/v1/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Stats())
}

func toJobDTO(job domain.JobRecord) dto.JobDTO {
	out := dto.JobDTO{
		JobID:       job.ID,
		State:       job.State(),
		SubmittedAt: job.SubmittedAt.Format(time.RFC3339Nano),
		StartedAt:   job.StartedAt.Format(time.RFC3339Nano),
	}

	if job.FinishedAt != nil {
		runtime := job.Runtime().Seconds()
		roundtrip := job.Roundtrip().Seconds()
		out.FinishedAt = job.FinishedAt.Format(time.RFC3339Nano)
		out.RuntimeSeconds = &runtime
		out.RoundtripSeconds = &roundtrip
	}

	return out
}
