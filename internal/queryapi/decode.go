package queryapi

import "encoding/json"

// apiEnvelope mirrors the full query_range response body, with sample
// values left as generic [][]any pairs so StripState can validate and
// convert them.
type apiEnvelope struct {
	Status    string `json:"status"`
	ErrorType string `json:"errorType"`
	Error     string `json:"error"`
	Data      struct {
		Result []struct {
			Metric map[string]string `json:"metric"`
			Values [][]any           `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// decodeBody parses a query_range response body and strips the
// sample-state component from every series before anything is
// persisted.
func decodeBody(body []byte) (status, errorType, errMsg string, series []Series, err error) {
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", "", "", nil, err
	}

	series = make([]Series, 0, len(env.Data.Result))
	for _, r := range env.Data.Result {
		timestamps, err := StripState(r.Values)
		if err != nil {
			return "", "", "", nil, err
		}
		series = append(series, Series{Metric: r.Metric, Timestamps: timestamps})
	}

	return env.Status, env.ErrorType, env.Error, series, nil
}
