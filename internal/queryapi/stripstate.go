package queryapi

import "fmt"

// StripState extracts the timestamp from each [timestamp, state]
// sample pair. It is kept as a standalone function (rather than folded
// into JSON decoding) so malformed samples are rejected with a precise
// error.
func StripState(samples [][]any) ([]float64, error) {
	out := make([]float64, 0, len(samples))

	for _, sample := range samples {
		if len(sample) == 0 {
			return nil, fmt.Errorf("queryapi: sample is not a [timestamp, state] pair: %v", sample)
		}

		ts, ok := sample[0].(float64)
		if !ok {
			return nil, fmt.Errorf("queryapi: sample timestamp is not a float: %T", sample[0])
		}

		out = append(out, ts)
	}

	return out, nil
}
