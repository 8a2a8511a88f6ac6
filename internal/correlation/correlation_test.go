package correlation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapcc/alertmagnet/internal/compactor"
)

func TestFilterDataDropsPendingAndGroupsByCluster(t *testing.T) {
	series := []compactor.FinalSeries{
		{
			Metric: map[string]string{"cluster": "a", "alertname": "Foo"},
			Values: []compactor.Range{{Start: 0, Duration: 5}},
		},
		{
			Metric: map[string]string{"cluster": "a", "alertname": "Foo", "alertstate": "pending"},
			Values: []compactor.Range{{Start: 100, Duration: 5}},
		},
		{
			Metric: map[string]string{"cluster": "b", "alertname": "Bar"},
			Values: []compactor.Range{{Start: 10, Duration: 0}},
		},
	}

	grouped := FilterData(series)
	require.Contains(t, grouped, "a")
	require.Contains(t, grouped, "b")
	assert.Equal(t, []compactor.Range{{Start: 0, Duration: 5}}, grouped["a"]["Foo"])
}

func TestBuildGridMarksOccupiedTicks(t *testing.T) {
	// range (0, 10) with gap 5 occupies ticks 0,5,10 (duration is a
	// 2-gap elapsed delta, recovered via Duration/gap).
	grid := BuildGrid([]compactor.Range{{Start: 0, Duration: 10}}, 0, 20, 5)
	assert.Equal(t, []float64{1, 1, 1, 0, 0}, grid)
}

func TestMatrixAveragingAcrossClusters(t *testing.T) {
	m := NewMatrix()
	m.Add("x", "y", 1)
	m.Add("x", "y", -1)
	m.Add("x", "y", 0.5)

	assert.InDelta(t, 0.5/3, m.Average("x", "y"), 1e-9)
	assert.Equal(t, m.Average("x", "y"), m.Average("y", "x")) // symmetry
}

func writeFinalData(t *testing.T, dir string, series []compactor.FinalSeries) {
	t.Helper()
	payload, err := json.Marshal(series)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "finalData.json"), payload, 0o644))
}

func TestAnalyzeIdenticalSequencesCorrelateToOne(t *testing.T) {
	dir := t.TempDir()
	// binary grid [1,1,0,0] for both x and y -> r = 1
	writeFinalData(t, dir, []compactor.FinalSeries{
		{Metric: map[string]string{"cluster": "A", "alertname": "x"}, Values: []compactor.Range{{Start: 0, Duration: 5}}},
		{Metric: map[string]string{"cluster": "A", "alertname": "y"}, Values: []compactor.Range{{Start: 0, Duration: 5}}},
	})

	opts := Options{Cores: 2, Gap: 5, Start: 0, End: 15, MinCoefficient: -2}
	result, err := Analyze(context.Background(), log.NewNopLogger(), dir, opts)
	require.NoError(t, err)

	assert.InDelta(t, 1, result["x"]["y"], 1e-9)
	assert.InDelta(t, 1, result["y"]["x"], 1e-9)
}

func TestAnalyzeConstantSequenceYieldsZero(t *testing.T) {
	dir := t.TempDir()
	// x is constant 1 on the whole grid; y varies.
	writeFinalData(t, dir, []compactor.FinalSeries{
		{Metric: map[string]string{"cluster": "A", "alertname": "x"}, Values: []compactor.Range{{Start: 0, Duration: 15}}},
		{Metric: map[string]string{"cluster": "A", "alertname": "y"}, Values: []compactor.Range{{Start: 0, Duration: 5}}},
	})

	opts := Options{Cores: 2, Gap: 5, Start: 0, End: 15, MinCoefficient: -2}
	result, err := Analyze(context.Background(), log.NewNopLogger(), dir, opts)
	require.NoError(t, err)

	assert.Equal(t, 0.0, result["x"]["y"])
}

func TestAnalyzeAcrossTwoClustersAverages(t *testing.T) {
	dir := t.TempDir()
	// cluster A: x=[1,1,0,0], y=[1,1,0,0] -> r=1
	// cluster B: x=[1,0,1,0], y=[0,1,0,1] -> r=-1
	// average across clusters: 0
	writeFinalData(t, dir, []compactor.FinalSeries{
		{Metric: map[string]string{"cluster": "A", "alertname": "x"}, Values: []compactor.Range{{Start: 0, Duration: 5}}},
		{Metric: map[string]string{"cluster": "A", "alertname": "y"}, Values: []compactor.Range{{Start: 0, Duration: 5}}},
		{Metric: map[string]string{"cluster": "B", "alertname": "x"}, Values: []compactor.Range{{Start: 0, Duration: 0}, {Start: 10, Duration: 0}}},
		{Metric: map[string]string{"cluster": "B", "alertname": "y"}, Values: []compactor.Range{{Start: 5, Duration: 0}, {Start: 15, Duration: 0}}},
	})

	opts := Options{Cores: 2, Gap: 5, Start: 0, End: 15, MinCoefficient: -2}
	result, err := Analyze(context.Background(), log.NewNopLogger(), dir, opts)
	require.NoError(t, err)

	assert.InDelta(t, 0, result["x"]["y"], 1e-9)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "correlating_alerts.json"), []byte(`{"x":{"y":1}}`), 0o644))

	opts := Options{Cores: 1, Gap: 5, Start: 0, End: 15}
	result, err := Analyze(context.Background(), log.NewNopLogger(), dir, opts)
	require.NoError(t, err)
	assert.Equal(t, 1.0, result["x"]["y"])
}

func TestAnalyzeRespectsMinCoefficientThreshold(t *testing.T) {
	dir := t.TempDir()
	writeFinalData(t, dir, []compactor.FinalSeries{
		{Metric: map[string]string{"cluster": "A", "alertname": "x"}, Values: []compactor.Range{{Start: 0, Duration: 0}, {Start: 10, Duration: 0}}},
		{Metric: map[string]string{"cluster": "A", "alertname": "y"}, Values: []compactor.Range{{Start: 5, Duration: 0}, {Start: 15, Duration: 0}}},
	})

	opts := Options{Cores: 1, Gap: 5, Start: 0, End: 15, MinCoefficient: 0}
	result, err := Analyze(context.Background(), log.NewNopLogger(), dir, opts)
	require.NoError(t, err)

	// r = -1 here, below the 0.0 threshold: must be filtered out.
	_, hasX := result["x"]
	if hasX {
		_, hasY := result["x"]["y"]
		assert.False(t, hasY)
	}
}
