// Package metricsink watches a bounded set of run directories for
// changed analysis artifacts and republishes them as Prometheus
// gauges.
package metricsink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sapcc/alertmagnet/internal/correlation"
)

const (
	meanDurationsFile = "alertMeanDurations.json"
	correlatingFile   = "correlating_alerts.json"

	// PollInterval is the sink's fixed observation cadence.
	PollInterval = 60 * time.Second
)

// Sink watches alertMeanDurations.json and correlating_alerts.json
// across at most the two most recent run directories, republishing
// their contents as gauges whenever the backing file's mtime changes.
// It never clears stale labels from a prior cycle; expired alertnames
// persist until process restart.
type Sink struct {
	Logger log.Logger

	ImportantTrue          *prometheus.GaugeVec
	CorrelationCoefficient *prometheus.GaugeVec
	AnalyzingCount         prometheus.Counter

	runDirs []string
	mtimes  map[string]time.Time
}

// NewSink builds a Sink and registers its metrics on reg.
func NewSink(logger log.Logger, reg prometheus.Registerer) *Sink {
	s := &Sink{
		Logger: logger,
		ImportantTrue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alertmagnet_important_true",
			Help: "Mean observed duration of an alert, in seconds.",
		}, []string{"alertname"}),
		CorrelationCoefficient: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alertmagnet_correlation_coefficient",
			Help: "Pearson correlation coefficient between two alertnames.",
		}, []string{"alertname", "correlating_alert"}),
		AnalyzingCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertmagnet_analyzing_count",
			Help: "Number of completed outer analysis cycles.",
		}),
		mtimes: map[string]time.Time{},
	}

	reg.MustRegister(s.ImportantTrue, s.CorrelationCoefficient, s.AnalyzingCount)
	return s
}

// SetRunDirectories replaces the set of directories the sink watches,
// keeping at most the two most recent.
func (s *Sink) SetRunDirectories(dirs []string) {
	if len(dirs) > 2 {
		dirs = dirs[len(dirs)-2:]
	}
	s.runDirs = dirs
}

// IncrementAnalyzingCount marks completion of one outer analysis cycle.
func (s *Sink) IncrementAnalyzingCount() {
	s.AnalyzingCount.Inc()
}

// Run polls every run directory at PollInterval until ctx is
// cancelled. It is meant to be run as one actor in an oklog/run
// group.
func (s *Sink) Run(ctx context.Context) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	s.observeOnce()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.observeOnce()
		}
	}
}

func (s *Sink) observeOnce() {
	for _, dir := range s.runDirs {
		s.observeFile(filepath.Join(dir, meanDurationsFile), s.publishDurations)
		s.observeFile(filepath.Join(dir, correlatingFile), s.publishCorrelations)
	}
}

// observeFile re-publishes path's contents via publish only if its
// mtime changed since the last observation.
func (s *Sink) observeFile(path string, publish func([]byte)) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	if last, ok := s.mtimes[path]; ok && info.ModTime().Equal(last) {
		return
	}
	s.mtimes[path] = info.ModTime()

	data, err := os.ReadFile(path)
	if err != nil {
		level.Warn(s.Logger).Log("msg", "metrics sink failed to read artifact", "path", path, "err", err)
		return
	}
	publish(data)
}

func (s *Sink) publishDurations(data []byte) {
	var means map[string]float64
	if err := json.Unmarshal(data, &means); err != nil {
		level.Warn(s.Logger).Log("msg", "metrics sink failed to decode alertMeanDurations.json", "err", err)
		return
	}
	for alertname, mean := range means {
		s.ImportantTrue.WithLabelValues(alertname).Set(mean)
	}
}

func (s *Sink) publishCorrelations(data []byte) {
	var matrix correlation.Matrix2D
	if err := json.Unmarshal(data, &matrix); err != nil {
		level.Warn(s.Logger).Log("msg", "metrics sink failed to decode correlating_alerts.json", "err", err)
		return
	}
	for alertname, row := range matrix {
		for correlating, coeff := range row {
			s.CorrelationCoefficient.WithLabelValues(alertname, correlating).Set(coeff)
		}
	}
}
