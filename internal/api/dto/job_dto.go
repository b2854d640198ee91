package dto

type ListJobsRequest struct {
	State    string `form:"state"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	Total      int      `json:"total"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID            int      `json:"job_id"`
	State            string   `json:"state"`
	SubmittedAt      string   `json:"submitted_at"`
	StartedAt        string   `json:"started_at"`
	FinishedAt       string   `json:"finished_at,omitempty"`
	RuntimeSeconds   *float64 `json:"runtime_seconds,omitempty"`
	RoundtripSeconds *float64 `json:"roundtrip_seconds,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
