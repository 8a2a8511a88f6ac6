package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapcc/alertmagnet/internal/config"
	"github.com/sapcc/alertmagnet/internal/metricsink"
)

func TestRunCycleEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"resultType":"matrix","result":[
			{"metric":{"alertname":"Foo","cluster":"a"},"values":[[1.0,"firing"],[2.0,"firing"]]}
		]}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := config.Config{
		APIEndpoint:         srv.URL + "/",
		Timeout:             time.Second,
		DirectoryPath:       dir,
		Delay:               0,
		Cores:               2,
		MaxLongTermStorage:  "1d",
		CorrelationMinCoeff: -2,
	}

	reg := prometheus.NewRegistry()
	sink := metricsink.NewSink(log.NewNopLogger(), reg)

	p := &pipeline{
		logger: log.NewNopLogger(),
		cfg:    cfg,
		client: &http.Client{Timeout: time.Second},
		sink:   sink,
		once:   true,
	}

	require.NoError(t, p.runCycle(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	runDir := filepath.Join(dir, entries[0].Name())
	finalData, err := os.ReadFile(filepath.Join(runDir, "tier0", "finalData.json"))
	require.NoError(t, err)
	assert.Contains(t, string(finalData), "Foo")

	_, err = os.ReadFile(filepath.Join(runDir, "tier0", "alertMeanDurations.json"))
	require.NoError(t, err)

	_, err = os.ReadFile(filepath.Join(runDir, "tier0", "correlating_alerts.json"))
	require.NoError(t, err)
}

func TestRunCycleWithThresholdCompactsBothTiers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"resultType":"matrix","result":[
			{"metric":{"alertname":"Foo","cluster":"a"},"values":[[1.0,"firing"],[2.0,"firing"]]}
		]}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	threshold := 1
	cfg := config.Config{
		APIEndpoint:        srv.URL + "/",
		Timeout:            time.Second,
		DirectoryPath:      dir,
		Cores:              2,
		Threshold:          &threshold,
		MaxLongTermStorage: "5d",
	}

	reg := prometheus.NewRegistry()
	sink := metricsink.NewSink(log.NewNopLogger(), reg)

	p := &pipeline{
		logger: log.NewNopLogger(),
		cfg:    cfg,
		client: &http.Client{Timeout: time.Second},
		sink:   sink,
		once:   true,
	}

	require.NoError(t, p.runCycle(context.Background()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	runDir := filepath.Join(dir, entries[0].Name())

	// Both tiers compacted; duration and correlation artifacts only
	// for the high-resolution tier.
	_, err = os.Stat(filepath.Join(runDir, "tier0", "finalData.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(runDir, "tier1", "finalData.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(runDir, "tier0", "correlating_alerts.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(runDir, "tier1", "correlating_alerts.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRecentTierDirsKeepsMostRecentTwo(t *testing.T) {
	root := t.TempDir()
	for i, name := range []string{"run-a", "run-b", "run-c"} {
		p := filepath.Join(root, name)
		require.NoError(t, os.Mkdir(p, 0o755))
		modTime := time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(p, modTime, modTime))
	}

	dirs := recentTierDirs(root, 2)
	require.Len(t, dirs, 2)
	assert.Equal(t, filepath.Join(root, "run-b", "tier0"), dirs[0])
	assert.Equal(t, filepath.Join(root, "run-c", "tier0"), dirs[1])
}

func TestFilterByLevel(t *testing.T) {
	base := log.NewNopLogger()
	for _, lvl := range []string{"debug", "info", "warn", "error", "unknown"} {
		logger := filterByLevel(base, lvl)
		require.NotNil(t, logger)
		require.NoError(t, logger.Log("msg", "smoke"))
	}
}

func TestBuildLoggerRoutesToFile(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg := config.Config{LogToFile: true, LogLevel: config.LevelInfo}
	logger, err := buildLogger(cfg, "")
	require.NoError(t, err)
	require.NoError(t, logger.Log("msg", "smoke"))

	data, err := os.ReadFile(filepath.Join(dir, "logs", "alertmagnet.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "smoke")
}
