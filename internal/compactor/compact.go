package compactor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sapcc/alertmagnet/internal/queryapi"
)

// FinalSeries is one merged, range-encoded series as persisted in
// finalData.json.
type FinalSeries struct {
	Metric map[string]string `json:"metric"`
	Values []Range           `json:"values"`
}

// finalDataFilename is the compactor's output artifact name.
const finalDataFilename = "finalData.json"

// Compact merges every group*/data*.json file under runDirectory in
// lexicographic order, dedupes and range-encodes each series' sample
// timestamps on grid step step, writes finalData.json, and deletes
// the group*/ directories. It is idempotent: if finalData.json
// already exists, it returns immediately without touching anything.
func Compact(runDirectory string, step float64) error {
	finalPath := filepath.Join(runDirectory, finalDataFilename)
	if _, err := os.Stat(finalPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	files, err := chunkFiles(runDirectory)
	if err != nil {
		return err
	}

	series, order, err := mergeFiles(files)
	if err != nil {
		return err
	}

	final := make([]FinalSeries, 0, len(order))
	for _, fp := range order {
		s := series[fp]
		sort.Float64s(s.Timestamps)
		final = append(final, FinalSeries{
			Metric: s.Metric,
			Values: EncodeRanges(s.Timestamps, step),
		})
	}

	payload, err := json.MarshalIndent(final, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(finalPath, payload, 0o644); err != nil {
		return err
	}

	return removeGroupDirs(runDirectory)
}

type mergedSeries struct {
	Metric     map[string]string
	Timestamps []float64
}

// chunkFiles enumerates group*/data*.json under runDirectory in
// deterministic lexicographic order.
func chunkFiles(runDirectory string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(runDirectory, "group*", "data*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// mergeFiles loads every chunk file, merging series by metric
// fingerprint. order preserves first-seen fingerprint order so output
// is deterministic.
func mergeFiles(files []string) (map[string]*mergedSeries, []string, error) {
	series := map[string]*mergedSeries{}
	var order []string

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("compactor: reading %s: %w", path, err)
		}

		var envelope queryapi.FileEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, nil, fmt.Errorf("compactor: decoding %s: %w", path, err)
		}

		if envelope.Status != "success" || envelope.Data == nil {
			continue
		}

		for _, s := range envelope.Data.Result {
			fp := Fingerprint(s.Metric)
			existing, ok := series[fp]
			if !ok {
				existing = &mergedSeries{Metric: s.Metric}
				series[fp] = existing
				order = append(order, fp)
			}
			existing.Timestamps = append(existing.Timestamps, s.Timestamps...)
		}
	}

	return series, order, nil
}

// removeGroupDirs deletes every group*/ subdirectory of runDirectory;
// finalData.json is the only survivor.
func removeGroupDirs(runDirectory string) error {
	matches, err := filepath.Glob(filepath.Join(runDirectory, "group*"))
	if err != nil {
		return err
	}
	for _, dir := range matches {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return nil
}
