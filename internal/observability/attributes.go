// Package observability provides pipeline metrics exported in Prometheus format.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrMethod = "method"
	attrPath   = "path"
	attrStatus = "status"
	attrStage  = "stage"
	attrQueue  = "queue"
	attrState  = "state"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func stageAttr(stage string) attribute.KeyValue {
	return attribute.String(attrStage, stage)
}

func queueAttr(queue string) attribute.KeyValue {
	return attribute.String(attrQueue, queue)
}

func stateAttr(state string) attribute.KeyValue {
	return attribute.String(attrState, state)
}

// normalizePath replaces job ids in paths with a placeholder
// /api/v1/jobs/12 -> /api/v1/jobs/{jobId}
func normalizePath(path string) string {
	const prefix = "/api/v1/jobs/"
	if len(path) > len(prefix) && strings.HasPrefix(path, prefix) {
		return prefix + "{jobId}"
	}
	return path
}

// WithStage returns a metric option with the stage attribute
func WithStage(stage string) metric.MeasurementOption {
	return metric.WithAttributes(stageAttr(stage))
}
