package domain

// Stage names used in logs, executor requests and metrics
const (
	StageSubmit     = "submit"
	StageCompletion = "completion"
	StageStatus     = "status"
)

// Job state names as reported by the status API
const (
	JobStateRunning  = "running"
	JobStateFinished = "finished"
)

// Simulated work durations, in whole seconds
var (
	SubmitDelay     = DelayRange{Min: 2, Max: 5}
	CompletionDelay = DelayRange{Min: 10, Max: 30}
	StatusDelay     = DelayRange{Min: 1, Max: 2}
)

// StatusPoolSize is the fixed number of status workers
const StatusPoolSize = 2
