// Package duration computes the arithmetic mean firing duration per
// alertname from a run's compacted finalData.json.
package duration

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sapcc/alertmagnet/internal/compactor"
)

const (
	finalDataFilename = "finalData.json"
	outputFilename    = "alertMeanDurations.json"
	alertnameLabel    = "alertname"
)

// Analyze reads runDirectory's finalData.json, computes the mean
// duration of every series' ranges keyed by its alertname label
// (series without one are skipped), and writes
// alertMeanDurations.json. It short-circuits if that file already
// exists.
func Analyze(runDirectory string) (map[string]float64, error) {
	outputPath := filepath.Join(runDirectory, outputFilename)
	if existing, err := loadExisting(outputPath); err == nil {
		return existing, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(runDirectory, finalDataFilename))
	if err != nil {
		return nil, err
	}

	var series []compactor.FinalSeries
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, err
	}

	means := MeanDurations(series)

	payload, err := json.MarshalIndent(means, "", "    ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(outputPath, payload, 0o644); err != nil {
		return nil, err
	}

	return means, nil
}

// MeanDurations computes the arithmetic mean duration per alertname
// across every range of every series carrying that label.
func MeanDurations(series []compactor.FinalSeries) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}

	for _, s := range series {
		alertname, ok := s.Metric[alertnameLabel]
		if !ok {
			continue
		}
		for _, r := range s.Values {
			sums[alertname] += r.Duration
			counts[alertname]++
		}
	}

	means := make(map[string]float64, len(sums))
	for alertname, sum := range sums {
		means[alertname] = sum / float64(counts[alertname])
	}
	return means
}

func loadExisting(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var means map[string]float64
	if err := json.Unmarshal(data, &means); err != nil {
		return nil, err
	}
	return means, nil
}
