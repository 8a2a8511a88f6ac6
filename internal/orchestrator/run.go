// Package orchestrator builds the two-tier query plan, lays out
// per-chunk run directories, and drives every chunk's execution
// (including adaptive halving) through the bounded concurrency limiter
// of internal/concurrency.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/sapcc/alertmagnet/internal/concurrency"
	"github.com/sapcc/alertmagnet/internal/queryapi"
	"github.com/sapcc/alertmagnet/internal/querysplit"
)

// Tier separators: one-day chunks for the high-resolution tier,
// 90-day chunks for the low-resolution tier.
const (
	Tier0Separator = 86400   // 1 day
	Tier1Separator = 7776000 // 90 days

	tier0Dirname = "tier0"
	tier1Dirname = "tier1"
)

// Orchestrator drives one query run end to end.
type Orchestrator struct {
	Client        *http.Client
	Logger        log.Logger
	DirectoryPath string
	Cores         int
	Delay         time.Duration
}

// TierWindow is one tier's actual [start, end] query window in UNIX
// seconds, as resolved by the threshold split. Downstream analyzers
// must use it rather than the outer request range: with a threshold
// configured, tier 0 covers only the most recent days.
type TierWindow struct {
	Start float64
	End   float64
}

// RunResult reports the run's directory layout. TierDirs and
// TierWindows hold an entry for each tier that actually produced
// chunks (the threshold split can leave one empty), keyed by tier
// index (0 or 1).
type RunResult struct {
	RunID       string
	RunDir      string
	TierDirs    map[int]string
	TierWindows map[int]TierWindow
}

// Run builds the plan, schedules every chunk, and blocks until the
// whole run is downloaded. thresholdDays may be nil: no split,
// everything stays at high resolution.
func (o *Orchestrator) Run(ctx context.Context, spec queryapi.QuerySpec, thresholdDays *int) (RunResult, error) {
	now := time.Now().UTC()

	tier0Spec, tier1Spec := querysplit.SplitByThreshold(spec, thresholdDays, now)

	runID := uuid.NewString()
	runDir := filepath.Join(o.DirectoryPath, runID)

	limiter := concurrency.New(o.Cores, o.Delay)
	result := RunResult{
		RunID:       runID,
		RunDir:      runDir,
		TierDirs:    map[int]string{},
		TierWindows: map[int]TierWindow{},
	}

	if tier0Spec != nil {
		window, err := specWindow(*tier0Spec)
		if err != nil {
			return RunResult{}, err
		}
		dir := filepath.Join(runDir, tier0Dirname)
		if err := o.scheduleTier(limiter, *tier0Spec, dir, Tier0Separator); err != nil {
			return RunResult{}, err
		}
		result.TierDirs[0] = dir
		result.TierWindows[0] = window
	}

	if tier1Spec != nil {
		window, err := specWindow(*tier1Spec)
		if err != nil {
			return RunResult{}, err
		}
		dir := filepath.Join(runDir, tier1Dirname)
		if err := o.scheduleTier(limiter, *tier1Spec, dir, Tier1Separator); err != nil {
			return RunResult{}, err
		}
		result.TierDirs[1] = dir
		result.TierWindows[1] = window
	}

	if len(result.TierDirs) == 0 {
		return result, nil
	}

	level.Info(o.Logger).Log("msg", "starting query run", "run_id", runID, "tiers", len(result.TierDirs))

	if err := limiter.RunAll(ctx); err != nil {
		return RunResult{}, fmt.Errorf("orchestrator: query run %s failed: %w", runID, err)
	}

	return result, nil
}

// specWindow parses a tier spec's start/end strings back into the
// numeric window the spec was built from.
func specWindow(spec queryapi.QuerySpec) (TierWindow, error) {
	start, err := strconv.ParseFloat(spec.GlobalStart, 64)
	if err != nil {
		return TierWindow{}, fmt.Errorf("orchestrator: parsing tier start %q: %w", spec.GlobalStart, err)
	}
	end, err := strconv.ParseFloat(spec.GlobalEnd, 64)
	if err != nil {
		return TierWindow{}, fmt.Errorf("orchestrator: parsing tier end %q: %w", spec.GlobalEnd, err)
	}
	return TierWindow{Start: start, End: end}, nil
}

// scheduleTier separator-splits spec into chunks, creates each
// chunk's group directory, and submits its (possibly halving,
// recursive) execution to limiter.
func (o *Orchestrator) scheduleTier(limiter *concurrency.Limiter, spec queryapi.QuerySpec, tierDir string, separator float64) error {
	chunks, err := querysplit.SplitBySeparator(spec, separator)
	if err != nil {
		return fmt.Errorf("orchestrator: splitting tier %s: %w", tierDir, err)
	}

	if err := os.MkdirAll(tierDir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: creating tier directory %s: %w", tierDir, err)
	}

	for _, chunk := range chunks {
		groupDir := filepath.Join(tierDir, fmt.Sprintf("group%d", chunk.Nr))
		if err := os.MkdirAll(groupDir, 0o755); err != nil {
			return fmt.Errorf("orchestrator: creating chunk directory %s: %w", groupDir, err)
		}

		chunkSpec := chunk.Spec
		chunkDir := groupDir
		if _, err := limiter.Submit(func(ctx context.Context) error {
			return o.executeChunk(ctx, chunkSpec, chunkDir)
		}); err != nil {
			return err
		}
	}

	return nil
}

// executeChunk runs one chunk, recursively halving on an exceeded
// result and persisting every successful sub-result as a dense
// dataK.json file.
func (o *Orchestrator) executeChunk(ctx context.Context, spec queryapi.QuerySpec, groupDir string) error {
	counter := 0
	return o.runAndPersist(ctx, spec, groupDir, &counter)
}

func (o *Orchestrator) runAndPersist(ctx context.Context, spec queryapi.QuerySpec, groupDir string, counter *int) error {
	result := queryapi.Execute(ctx, o.Logger, o.Client, spec)

	switch result.Kind {
	case queryapi.KindSuccess:
		return o.writeChunkFile(groupDir, *counter, result, func() { *counter++ })

	case queryapi.KindExceeded:
		level.Debug(o.Logger).Log("msg", "chunk exceeded max resolution, halving", "dir", groupDir)
		first, second, err := querysplit.Halve(spec)
		if err != nil {
			return err
		}
		if err := o.runAndPersist(ctx, first, groupDir, counter); err != nil {
			return err
		}
		return o.runAndPersist(ctx, second, groupDir, counter)

	default: // queryapi.KindEmpty: no file written, chunk slot left empty.
		return nil
	}
}

func (o *Orchestrator) writeChunkFile(groupDir string, k int, result queryapi.RawResult, onWritten func()) error {
	payload, err := json.MarshalIndent(result.ToFileEnvelope(), "", "    ")
	if err != nil {
		return err
	}

	path := filepath.Join(groupDir, fmt.Sprintf("data%d.json", k))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return err
	}

	onWritten()
	return nil
}

// PruneRuns keeps only the keep most recently modified run
// directories directly under root, removing the rest.
func PruneRuns(root string, keep int) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	type dirInfo struct {
		name    string
		modTime time.Time
	}

	var dirs []dirInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, dirInfo{name: e.Name(), modTime: info.ModTime()})
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].modTime.After(dirs[j].modTime) })

	if len(dirs) <= keep {
		return nil
	}

	for _, d := range dirs[keep:] {
		if err := os.RemoveAll(filepath.Join(root, d.name)); err != nil {
			return err
		}
	}

	return nil
}
