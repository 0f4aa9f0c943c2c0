// Package operator implements the analysis steps a query can be routed
// to. Operators never return Go errors: every failure becomes a Result
// with StatusError so the workflow can always complete.
package operator

import (
	"fmt"
	"maps"
)

// Operator names. They double as workflow step names.
const (
	NameRaster      = "raster_analysis"
	NameVector      = "vector_analysis"
	NameSuitability = "suitability_analysis"
	NameRanking     = "ranking"
	NameDisaster    = "disaster_safe"
)

// Output keys.
const (
	OutputRaster      = "raster_output"
	OutputVectorized  = "vectorized_output"
	OutputBuffered    = "buffered_output"
	OutputSuitability = "suitability_output"
	OutputRanking     = "ranking_output"
	OutputSafeZones   = "safe_zones_output"
)

// Status tags a Result.
type Status string

// Result statuses.
const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// Result is the outcome of one operator run. Build it with Success, Empty
// or Failure.
type Result struct {
	Operator string             `json:"operator" yaml:"operator"`
	Status   Status             `json:"status" yaml:"status"`
	Outputs  map[string]string  `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Message  string             `json:"message,omitempty" yaml:"message,omitempty"`
	Stats    map[string]float64 `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// Success reports produced artifacts.
func Success(op string, outputs map[string]string, message string) Result {
	return Result{Operator: op, Status: StatusSuccess, Outputs: maps.Clone(outputs), Message: message}
}

// Empty reports a well-formed run that matched nothing.
func Empty(op, message string) Result {
	return Result{Operator: op, Status: StatusEmpty, Message: message}
}

// Failure reports an operator error.
func Failure(op string, err error) Result {
	return Result{Operator: op, Status: StatusError, Message: err.Error()}
}

// Failuref is Failure with a formatted message.
func Failuref(op, format string, args ...any) Result {
	return Result{Operator: op, Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// OK reports whether the run produced artifacts.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// Output returns the artifact path stored under key, or "".
func (r Result) Output(key string) string { return r.Outputs[key] }

// WithStat returns r with a numeric statistic attached.
func (r Result) WithStat(key string, v float64) Result {
	stats := maps.Clone(r.Stats)
	if stats == nil {
		stats = make(map[string]float64)
	}
	stats[key] = v
	r.Stats = stats
	return r
}

// Tracer receives human-readable progress entries.
type Tracer interface {
	Tracef(format string, args ...any)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(format string, args ...any)

// Tracef implements Tracer.
func (f TracerFunc) Tracef(format string, args ...any) { f(format, args...) }

// fail traces and returns a failure.
func fail(tr Tracer, op string, err error) Result {
	tr.Tracef("%s failed: %v", op, err)
	return Failure(op, err)
}
