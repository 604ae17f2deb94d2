// Package ranking scores tasks and classifies due dates.
package ranking

import "math"

const (
	MinPriority   = 1
	MaxPriority   = 5
	MinImpact     = 1
	MaxImpact     = 5
	MinConfidence = 0.0
	MaxConfidence = 1.0
	// MinEffort is the floor applied to effort before division.
	MinEffort = 0.1
)

// Inputs are the raw scoring fields of a task.
type Inputs struct {
	Priority   int
	Impact     int
	Confidence float64
	Effort     float64
}

// Normalize clamps every field into its valid range and reports whether
// anything changed. +Inf effort is kept so that the score degrades to zero.
func (in Inputs) Normalize() (Inputs, bool) {
	out := in
	clamped := false
	if out.Priority < MinPriority {
		out.Priority, clamped = MinPriority, true
	} else if out.Priority > MaxPriority {
		out.Priority, clamped = MaxPriority, true
	}
	if out.Impact < MinImpact {
		out.Impact, clamped = MinImpact, true
	} else if out.Impact > MaxImpact {
		out.Impact, clamped = MaxImpact, true
	}
	switch {
	case math.IsNaN(out.Confidence):
		out.Confidence, clamped = MinConfidence, true
	case out.Confidence < MinConfidence:
		out.Confidence, clamped = MinConfidence, true
	case out.Confidence > MaxConfidence:
		out.Confidence, clamped = MaxConfidence, true
	}
	switch {
	case math.IsInf(out.Effort, 1):
	case math.IsNaN(out.Effort) || out.Effort < MinEffort:
		out.Effort, clamped = MinEffort, true
	}
	return out, clamped
}

// Score returns the ranking value for the normalized inputs.
func (in Inputs) Score() float64 {
	n, _ := in.Normalize()
	if math.IsInf(n.Effort, 1) {
		return 0
	}
	s := float64(n.Priority) * float64(n.Impact) * n.Confidence / n.Effort
	if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
		return 0
	}
	return s
}

// ComputeScore is priority * impact * confidence / effort with every input
// clamped into range. The result is finite and non-negative.
func ComputeScore(priority, impact int, confidence, effort float64) float64 {
	return Inputs{Priority: priority, Impact: impact, Confidence: confidence, Effort: effort}.Score()
}

// Clamped reports whether ComputeScore would adjust any of the inputs.
func Clamped(priority, impact int, confidence, effort float64) bool {
	_, c := Inputs{Priority: priority, Impact: impact, Confidence: confidence, Effort: effort}.Normalize()
	return c
}
