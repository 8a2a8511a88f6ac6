package queryapi

import "fmt"

// Kind discriminates a RawResult. The two non-success kinds are
// canonical markers the orchestrator inspects directly; they are never
// conflated with error returns and never persisted as data.
type Kind int

const (
	// KindSuccess carries real series data.
	KindSuccess Kind = iota
	// KindExceeded is the canonical "exceeded maximum resolution"
	// marker: the chunk must be halved and retried.
	KindExceeded
	// KindEmpty is the canonical "no usable data" marker: the chunk's
	// time window simply contributes no samples.
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindExceeded:
		return "exceeded_max"
	case KindEmpty:
		return "empty"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Series is one query_range result series with the sample-state
// component already stripped from its values.
type Series struct {
	Metric     map[string]string `json:"metric"`
	Timestamps []float64         `json:"values"`
}

// RawResult is the executor's return value: either real series data
// (KindSuccess) or one of the two canonical sentinels.
type RawResult struct {
	Kind   Kind
	Series []Series
}

// Exceeded returns the canonical EXCEEDED_MAX marker.
func Exceeded() RawResult { return RawResult{Kind: KindExceeded} }

// Empty returns the canonical EMPTY marker.
func Empty() RawResult { return RawResult{Kind: KindEmpty} }

// Success wraps parsed series data.
func Success(series []Series) RawResult { return RawResult{Kind: KindSuccess, Series: series} }

// FileEnvelope is the on-disk shape of a persisted dataK.json chunk
// result: a trimmed-down query_range response body carrying only the
// status/data/result fields the compactor needs.
type FileEnvelope struct {
	Status string    `json:"status"`
	Data   *FileData `json:"data,omitempty"`
}

// FileData wraps the result series list.
type FileData struct {
	Result []Series `json:"result"`
}

// ToFileEnvelope converts a successful RawResult into its persisted
// on-disk form.
func (r RawResult) ToFileEnvelope() FileEnvelope {
	return FileEnvelope{
		Status: "success",
		Data:   &FileData{Result: r.Series},
	}
}
