// Package compactor merges the chunked per-group dataK.json files a
// run produced into one deduplicated, range-encoded finalData.json per
// tier.
package compactor

import "encoding/json"

// Range is the compacted (start, duration) form of a contiguous run
// of timestamps on a fixed grid step. Duration is the elapsed time
// between the first and last timestamp of the run, in the same units
// as the timestamps themselves; the correlation engine, not this
// package, divides by the grid gap to recover a tick count. It
// marshals as a bare [start, duration] 2-tuple, the same shape as the
// raw [timestamp, state] sample pairs it replaces.
type Range struct {
	Start    float64
	Duration float64
}

func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{r.Start, r.Duration})
}

func (r *Range) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	r.Start, r.Duration = pair[0], pair[1]
	return nil
}

// EncodeRanges folds a sorted sequence of timestamps into maximal
// runs spaced exactly step apart. Duplicate adjacent timestamps
// collapse with no effect on the output; isolated timestamps emit a
// zero-duration range.
func EncodeRanges(sorted []float64, step float64) []Range {
	var ranges []Range

	i := 0
	for i < len(sorted) {
		start := sorted[i]
		end := sorted[i]

		j := i + 1
		for j < len(sorted) {
			if sorted[j] == end {
				j++ // duplicate: collapse, no effect
				continue
			}
			if sorted[j] == end+step {
				end = sorted[j]
				j++
				continue
			}
			break
		}

		ranges = append(ranges, Range{Start: start, Duration: end - start})
		i = j
	}

	return ranges
}
