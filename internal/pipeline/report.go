package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
)

// ReportHeader is the first line of a final report
const ReportHeader = "Jobid;Runtime;Roundtriptime"

// ReportRow is the timing summary of one finished job
type ReportRow struct {
	JobID     int
	Runtime   time.Duration // finished - started
	Roundtrip time.Duration // finished - submitted
}

// Report lists every registered job in ascending id order
type Report struct {
	Rows []ReportRow
}

// NewReport builds a report from a registry snapshot
func NewReport(jobs []domain.JobRecord) *Report {
	rows := make([]ReportRow, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, ReportRow{
			JobID:     job.ID,
			Runtime:   job.Runtime(),
			Roundtrip: job.Roundtrip(),
		})
	}
	return &Report{Rows: rows}
}

// WriteTo writes the report as semicolon-separated lines, durations in seconds
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64

	n, err := fmt.Fprintln(bw, ReportHeader)
	total += int64(n)
	if err != nil {
		return total, err
	}

	for _, row := range r.Rows {
		n, err := fmt.Fprintf(bw, "%d;%.2f;%.2f\n", row.JobID, row.Runtime.Seconds(), row.Roundtrip.Seconds())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, bw.Flush()
}
