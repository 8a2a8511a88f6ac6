package correlation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-kit/log"
	"gonum.org/v1/gonum/stat"

	"github.com/sapcc/alertmagnet/internal/compactor"
	"github.com/sapcc/alertmagnet/internal/concurrency"
)

// Options configures one correlation run.
type Options struct {
	Cores          int
	Delay          time.Duration
	Gap            float64 // grid step, seconds
	Start          float64 // run window start, UNIX seconds
	End            float64 // run window end, UNIX seconds
	MinCoefficient float64 // pairs below this coefficient are dropped from the artifact
}

// Matrix2D is the JSON shape of both corrcoefficient_matrix.json and
// correlating_alerts.json: alertname -> correlating alertname ->
// coefficient.
type Matrix2D map[string]map[string]float64

// Analyze runs the full correlation pipeline for one run directory:
// grouping, grid sampling, per-cluster Pearson via a worker pool sized
// by opts.Cores, collapsing into the global matrix, and writing
// corrcoefficient_matrix.json plus correlating_alerts.json. Each
// artifact short-circuits its own producing stage when already
// present.
func Analyze(ctx context.Context, logger log.Logger, runDirectory string, opts Options) (Matrix2D, error) {
	correlatingPath := filepath.Join(runDirectory, correlatingFile)
	if data, err := os.ReadFile(correlatingPath); err == nil {
		var existing Matrix2D
		if err := json.Unmarshal(data, &existing); err != nil {
			return nil, err
		}
		return existing, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	full, err := loadOrComputeMatrix(ctx, runDirectory, opts)
	if err != nil {
		return nil, err
	}

	correlating := filterThreshold(full, opts.MinCoefficient)

	payload, err := json.MarshalIndent(correlating, "", "    ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(correlatingPath, payload, 0o644); err != nil {
		return nil, err
	}

	return correlating, nil
}

func loadOrComputeMatrix(ctx context.Context, runDirectory string, opts Options) (Matrix2D, error) {
	matrixPath := filepath.Join(runDirectory, corrMatrixFile)

	if data, err := os.ReadFile(matrixPath); err == nil {
		var existing Matrix2D
		if err := json.Unmarshal(data, &existing); err != nil {
			return nil, err
		}
		return existing, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	grouped, err := loadOrBuildGrouped(runDirectory)
	if err != nil {
		return nil, err
	}

	axis := alertnameAxis(grouped)
	accum := NewMatrix()

	limiter := concurrency.New(opts.Cores, opts.Delay)
	for _, byAlert := range grouped {
		byAlert := byAlert
		if _, err := limiter.Submit(func(ctx context.Context) error {
			return correlateCluster(byAlert, opts.Gap, opts.Start, opts.End, accum)
		}); err != nil {
			return nil, err
		}
	}
	if err := limiter.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("correlation: %w", err)
	}

	full := collapse(accum, axis)

	payload, err := json.MarshalIndent(full, "", "    ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(matrixPath, payload, 0o644); err != nil {
		return nil, err
	}

	return full, nil
}

// correlateCluster computes Pearson's r for every unordered pair of
// alertnames within one cluster and accumulates into the shared
// matrix. It is the unit of work submitted per cluster to the limiter.
func correlateCluster(byAlert map[string][]compactor.Range, gap, start, end float64, accum *Matrix) error {
	names := make([]string, 0, len(byAlert))
	for name := range byAlert {
		names = append(names, name)
	}
	sort.Strings(names)

	grids := make(map[string][]float64, len(names))
	for _, name := range names {
		grids[name] = BuildGrid(byAlert[name], start, end, gap)
	}

	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			r := stat.Correlation(grids[names[i]], grids[names[j]], nil)
			if math.IsNaN(r) {
				r = 0
			}
			accum.Add(names[i], names[j], r)
		}
	}

	return nil
}

func alertnameAxis(grouped Grouped) []string {
	seen := map[string]struct{}{}
	for _, byAlert := range grouped {
		for name := range byAlert {
			seen[name] = struct{}{}
		}
	}
	axis := make([]string, 0, len(seen))
	for name := range seen {
		axis = append(axis, name)
	}
	sort.Strings(axis)
	return axis
}

func collapse(accum *Matrix, axis []string) Matrix2D {
	full := make(Matrix2D, len(axis))
	for _, a := range axis {
		full[a] = make(map[string]float64, len(axis)-1)
		for _, b := range axis {
			if a == b {
				continue
			}
			full[a][b] = accum.Average(a, b)
		}
	}
	return full
}

func filterThreshold(full Matrix2D, minCoefficient float64) Matrix2D {
	out := make(Matrix2D, len(full))
	for a, row := range full {
		for b, coeff := range row {
			if coeff < minCoefficient {
				continue
			}
			if out[a] == nil {
				out[a] = map[string]float64{}
			}
			out[a][b] = coeff
		}
	}
	return out
}
