// Package correlation groups compacted alert ranges by cluster,
// samples them onto a shared binary grid, and computes pairwise
// Pearson correlation of alertnames within each cluster, averaged
// across clusters.
package correlation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/sapcc/alertmagnet/internal/compactor"
)

const (
	clusterLabel     = "cluster"
	alertnameLabel   = "alertname"
	alertstateLabel  = "alertstate"
	pendingState     = "pending"
	filteredDataFile = "filteredData.json"
	corrMatrixFile   = "corrcoefficient_matrix.json"
	correlatingFile  = "correlating_alerts.json"
)

// Grouped is cluster -> alertname -> concatenated ranges.
type Grouped map[string]map[string][]compactor.Range

// FilterData partitions series on their cluster label, dropping any
// whose alertstate label equals "pending", and concatenates ranges of
// series sharing a cluster+alertname.
func FilterData(series []compactor.FinalSeries) Grouped {
	grouped := Grouped{}

	for _, s := range series {
		if s.Metric[alertstateLabel] == pendingState {
			continue
		}
		cluster, ok := s.Metric[clusterLabel]
		if !ok {
			continue
		}
		alertname, ok := s.Metric[alertnameLabel]
		if !ok {
			continue
		}

		byAlert, ok := grouped[cluster]
		if !ok {
			byAlert = map[string][]compactor.Range{}
			grouped[cluster] = byAlert
		}
		byAlert[alertname] = append(byAlert[alertname], s.Values...)
	}

	for _, byAlert := range grouped {
		for alertname, ranges := range byAlert {
			byAlert[alertname] = stableSortRanges(ranges)
		}
	}

	return grouped
}

// stableSortRanges produces a deterministic ascending-start sort, ties
// broken by duration.
func stableSortRanges(ranges []compactor.Range) []compactor.Range {
	sorted := append([]compactor.Range(nil), ranges...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].Duration < sorted[j].Duration
	})
	return sorted
}

// loadOrBuildGrouped returns the filteredData.json artifact if it
// already exists, otherwise computes it from finalData.json and
// persists it.
func loadOrBuildGrouped(runDirectory string) (Grouped, error) {
	path := filepath.Join(runDirectory, filteredDataFile)

	if data, err := os.ReadFile(path); err == nil {
		var grouped Grouped
		if err := json.Unmarshal(data, &grouped); err != nil {
			return nil, err
		}
		return grouped, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	finalData, err := os.ReadFile(filepath.Join(runDirectory, "finalData.json"))
	if err != nil {
		return nil, err
	}

	var series []compactor.FinalSeries
	if err := json.Unmarshal(finalData, &series); err != nil {
		return nil, err
	}

	grouped := FilterData(series)

	payload, err := json.MarshalIndent(grouped, "", "    ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return nil, err
	}

	return grouped, nil
}
