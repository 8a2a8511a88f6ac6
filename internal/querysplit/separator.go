package querysplit

import (
	"strconv"

	"github.com/sapcc/alertmagnet/internal/queryapi"
)

// Chunk is one dense, ordinally-numbered sub-range of a tier, ready to
// be scheduled through the query orchestrator.
type Chunk struct {
	Nr   int
	Spec queryapi.QuerySpec
}

// SplitBySeparator walks spec's [GlobalStart, GlobalEnd) range in
// steps of separatorSeconds, producing dense, zero-based chunk
// ordinals. The final chunk always ends exactly at GlobalEnd and covers
// whatever remains, so it can be shorter than separatorSeconds.
func SplitBySeparator(spec queryapi.QuerySpec, separatorSeconds float64) ([]Chunk, error) {
	startF, err := strconv.ParseFloat(spec.GlobalStart, 64)
	if err != nil {
		return nil, err
	}
	endF, err := strconv.ParseFloat(spec.GlobalEnd, 64)
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	cur := startF
	nr := 0

	for cur+separatorSeconds < endF {
		next := cur + separatorSeconds
		chunks = append(chunks, newChunk(nr, spec, cur, next))
		cur = next
		nr++
	}

	chunks = append(chunks, newChunk(nr, spec, cur, endF))

	return chunks, nil
}

func newChunk(nr int, spec queryapi.QuerySpec, start, end float64) Chunk {
	c := spec
	c.GlobalStart = queryapi.FormatTimestamp(start)
	c.GlobalEnd = queryapi.FormatTimestamp(end)
	return Chunk{Nr: nr, Spec: c}
}

// Halve splits a chunk spec in half at its midpoint, for re-issuing a
// chunk whose result exceeded the backend's point cap. It returns the
// two halves in chronological order: [start, mid] then [mid, end].
func Halve(spec queryapi.QuerySpec) (first, second queryapi.QuerySpec, err error) {
	startF, err := strconv.ParseFloat(spec.GlobalStart, 64)
	if err != nil {
		return queryapi.QuerySpec{}, queryapi.QuerySpec{}, err
	}
	endF, err := strconv.ParseFloat(spec.GlobalEnd, 64)
	if err != nil {
		return queryapi.QuerySpec{}, queryapi.QuerySpec{}, err
	}

	mid := (startF + endF) / 2

	first = spec
	first.GlobalEnd = queryapi.FormatTimestamp(mid)

	second = spec
	second.GlobalStart = queryapi.FormatTimestamp(mid)

	return first, second, nil
}
