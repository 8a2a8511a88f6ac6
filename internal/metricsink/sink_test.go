package metricsink

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSinkPublishesDurationsOnChange(t *testing.T) {
	dir := t.TempDir()
	reg := prometheus.NewRegistry()
	sink := NewSink(log.NewNopLogger(), reg)
	sink.SetRunDirectories([]string{dir})

	require.NoError(t, os.WriteFile(filepath.Join(dir, meanDurationsFile), []byte(`{"Foo":12.5}`), 0o644))
	sink.observeOnce()

	require.Equal(t, 12.5, testutil.ToFloat64(sink.ImportantTrue.WithLabelValues("Foo")))
}

func TestSinkSkipsUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	reg := prometheus.NewRegistry()
	sink := NewSink(log.NewNopLogger(), reg)
	sink.SetRunDirectories([]string{dir})

	path := filepath.Join(dir, meanDurationsFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"Foo":1}`), 0o644))
	sink.observeOnce()
	require.Equal(t, 1.0, testutil.ToFloat64(sink.ImportantTrue.WithLabelValues("Foo")))

	// Rewrite the file but keep the mtime the sink last observed: the
	// new content must not be republished (observeOnce simply skips).
	modTime := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	sink.mtimes[path] = modTime // pretend we've already seen this mtime
	require.NoError(t, os.WriteFile(path, []byte(`{"Foo":999}`), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))

	sink.observeOnce()
	require.Equal(t, 1.0, testutil.ToFloat64(sink.ImportantTrue.WithLabelValues("Foo")))
}

func TestSinkKeepsOnlyTwoMostRecentRunDirectories(t *testing.T) {
	sink := &Sink{}
	sink.SetRunDirectories([]string{"a", "b", "c"})
	require.Equal(t, []string{"b", "c"}, sink.runDirs)
}

func TestSinkIncrementAnalyzingCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewSink(log.NewNopLogger(), reg)
	sink.IncrementAnalyzingCount()
	sink.IncrementAnalyzingCount()
	require.Equal(t, 2.0, testutil.ToFloat64(sink.AnalyzingCount))
}
