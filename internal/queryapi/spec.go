// Package queryapi issues single query_range requests against a
// Thanos-compatible backend, classifies failures, and returns either a
// normalized result or one of the two canonical sentinel markers the
// orchestrator acts on.
package queryapi

import "time"

// QuerySpec describes one query_range request. Every field is a
// primitive, so copying by assignment yields an independent, unaliased
// clone; the range splitters rely on this when deriving sub-requests.
type QuerySpec struct {
	BaseURL string
	Target  string // defaults to "query_range" when empty
	Cert    string // path to a combined client certificate/key PEM, or ""
	Timeout time.Duration

	GlobalStart string // UNIX-seconds, as a string
	GlobalEnd   string

	Step                string
	MaxSourceResolution string
}

// defaultStep and defaultMaxSourceResolution are the high-resolution
// tier's parameters; NewSpec seeds them so an unsplit spec behaves
// like that tier until the range splitter overrides them for the
// low-resolution one.
const (
	defaultStep                = "60"
	defaultMaxSourceResolution = "0s"
	defaultTarget              = "query_range"
)

// NewSpec builds a QuerySpec for the given range, applying the
// high-resolution defaults for step/max_source_resolution.
func NewSpec(baseURL, start, end string) QuerySpec {
	return QuerySpec{
		BaseURL:             baseURL,
		Target:              defaultTarget,
		GlobalStart:         start,
		GlobalEnd:           end,
		Step:                defaultStep,
		MaxSourceResolution: defaultMaxSourceResolution,
	}
}

// targetOrDefault returns the configured target, defaulting to
// "query_range".
func (q QuerySpec) targetOrDefault() string {
	if q.Target == "" {
		return defaultTarget
	}
	return q.Target
}

// buildParams assembles the query_range parameter set: the fixed
// ALERTS params plus the tunable step and max_source_resolution.
func (q QuerySpec) buildParams() map[string]string {
	step := q.Step
	if step == "" {
		step = defaultStep
	}
	maxRes := q.MaxSourceResolution
	if maxRes == "" {
		maxRes = defaultMaxSourceResolution
	}

	return map[string]string{
		"query":                 "ALERTS",
		"dedup":                 "true",
		"partial_response":      "false",
		"start":                 q.GlobalStart,
		"end":                   q.GlobalEnd,
		"step":                  step,
		"max_source_resolution": maxRes,
		"engine":                "thanos",
		"analyze":               "false",
	}
}
