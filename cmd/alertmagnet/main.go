// Command alertmagnet runs an alert-correlation data pipeline: a
// daily loop of (1) query execution against a Thanos-compatible
// metrics backend, (2) result compaction, and (3) duration and
// correlation analysis, with a Prometheus metrics sink exposing the
// results.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sapcc/alertmagnet/internal/calc"
	"github.com/sapcc/alertmagnet/internal/compactor"
	"github.com/sapcc/alertmagnet/internal/config"
	"github.com/sapcc/alertmagnet/internal/correlation"
	"github.com/sapcc/alertmagnet/internal/duration"
	"github.com/sapcc/alertmagnet/internal/metricsink"
	"github.com/sapcc/alertmagnet/internal/orchestrator"
	"github.com/sapcc/alertmagnet/internal/queryapi"
)

// tier0Step is the grid step (seconds) both the compactor and the
// correlation engine use for the high-resolution tier.
const tier0Step = 60
const tier1Step = 3600

// keepRuns is how many run directories survive pruning.
const keepRuns = 2

func main() {
	a := kingpin.New("alertmagnet", "Alert-correlation data pipeline")
	configFile := a.Flag("config-file", "Path to the INI configuration file").Default(config.ResolvePath()).String()
	logLevel := a.Flag("log-level", "Root log level, overriding the config file's log_level").Default("").Enum("", "debug", "info", "warn", "error")
	once := a.Flag("once", "Run a single analysis cycle and exit, instead of looping forever").Bool()
	a.HelpFlag.Short('h')

	if _, err := a.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		a.Usage(os.Args[1:])
		os.Exit(2)
	}

	logger := level.NewFilter(newLogger(os.Stderr), level.AllowInfo())

	cfg, err := config.Load(*configFile)
	if err != nil {
		level.Error(logger).Log("msg", "loading configuration failed", "err", err)
		os.Exit(1)
	}
	if _, err := calc.ParseRetention(cfg.MaxLongTermStorage); err != nil {
		level.Error(logger).Log("msg", "loading configuration failed", "err", err)
		os.Exit(1)
	}

	logger, err = buildLogger(cfg, *logLevel)
	if err != nil {
		level.Error(newLogger(os.Stderr)).Log("msg", "setting up logging failed", "err", err)
		os.Exit(1)
	}

	client, err := queryapi.NewHTTPClient(cfg.Cert, cfg.Timeout)
	if err != nil {
		level.Error(logger).Log("msg", "building HTTP client failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	sink := metricsink.NewSink(logger, reg)

	p := &pipeline{
		logger: logger,
		cfg:    cfg,
		client: client,
		sink:   sink,
		once:   *once,
	}

	var g run.Group
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return p.loop(ctx)
		}, func(error) {
			cancel()
		})
	}
	{
		ctx, cancel := context.WithCancel(context.Background())
		server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.PrometheusPort)}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		server.Handler = mux

		g.Add(func() error {
			level.Info(logger).Log("msg", "starting metrics server", "addr", server.Addr)
			return server.ListenAndServe()
		}, func(error) {
			shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
			cancel()
		})
	}
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return sink.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	{
		term := make(chan os.Signal, 1)
		cancel := make(chan struct{})
		signal.Notify(term, os.Interrupt, syscall.SIGTERM)

		g.Add(func() error {
			select {
			case <-term:
				level.Info(logger).Log("msg", "received termination signal, exiting gracefully")
			case <-cancel:
			}
			return nil
		}, func(error) {
			close(cancel)
		})
	}

	if err := g.Run(); err != nil {
		level.Error(logger).Log("msg", "alertmagnet exited", "err", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}

// buildLogger routes logs to logs/alertmagnet.log when log_to_file is
// set and applies the config file's log_level; a non-empty --log-level
// flag takes precedence over the config.
func buildLogger(cfg config.Config, flagLevel string) (log.Logger, error) {
	var w io.Writer = os.Stderr
	if cfg.LogToFile {
		if err := os.MkdirAll("logs", 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(filepath.Join("logs", "alertmagnet.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
	}

	logger := newLogger(w)
	if flagLevel != "" {
		return filterByLevel(logger, flagLevel), nil
	}
	return level.NewFilter(logger, levelOption(cfg.LogLevel)), nil
}

func levelOption(l config.Level) level.Option {
	switch l {
	case config.LevelDebug:
		return level.AllowDebug()
	case config.LevelWarning:
		return level.AllowWarn()
	case config.LevelError, config.LevelCritical:
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

func filterByLevel(logger log.Logger, raw string) log.Logger {
	switch strings.ToLower(raw) {
	case "debug":
		return level.NewFilter(logger, level.AllowDebug())
	case "warn":
		return level.NewFilter(logger, level.AllowWarn())
	case "error":
		return level.NewFilter(logger, level.AllowError())
	default:
		return level.NewFilter(logger, level.AllowInfo())
	}
}

// pipeline wires together one daily analysis cycle: query, compact,
// analyze, publish.
type pipeline struct {
	logger log.Logger
	cfg    config.Config
	client *http.Client
	sink   *metricsink.Sink
	once   bool
}

func (p *pipeline) loop(ctx context.Context) error {
	for {
		if err := p.runCycle(ctx); err != nil {
			level.Error(p.logger).Log("msg", "analysis cycle failed", "err", err)
		} else {
			p.sink.IncrementAnalyzingCount()
		}

		if p.once {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.cfg.NaptimeSeconds):
		}
	}
}

func (p *pipeline) runCycle(ctx context.Context) error {
	now := time.Now().UTC()

	start, err := calc.ComputeStart(now, p.cfg.MaxLongTermStorage)
	if err != nil {
		return err
	}

	spec := queryapi.NewSpec(
		p.cfg.APIEndpoint,
		queryapi.FormatTimestamp(float64(start.Unix())),
		queryapi.FormatTimestamp(float64(now.Unix())),
	)
	spec.Cert = p.cfg.Cert
	spec.Timeout = p.cfg.Timeout

	orch := &orchestrator.Orchestrator{
		Client:        p.client,
		Logger:        p.logger,
		DirectoryPath: p.cfg.DirectoryPath,
		Cores:         p.cfg.Cores,
		Delay:         p.cfg.Delay,
	}

	result, err := orch.Run(ctx, spec, p.cfg.Threshold)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}

	if dir, ok := result.TierDirs[0]; ok {
		if err := compactor.Compact(dir, tier0Step); err != nil {
			return fmt.Errorf("compacting tier 0: %w", err)
		}
		if _, err := duration.Analyze(dir); err != nil {
			return fmt.Errorf("duration analysis: %w", err)
		}
		// The correlation grid must span tier 0's actual window: with a
		// threshold configured that is only the most recent days, not
		// the whole retention range.
		window := result.TierWindows[0]
		if _, err := correlation.Analyze(ctx, p.logger, dir, correlation.Options{
			Cores:          p.cfg.Cores,
			Delay:          p.cfg.Delay,
			Gap:            tier0Step,
			Start:          window.Start,
			End:            window.End,
			MinCoefficient: p.cfg.CorrelationMinCoeff,
		}); err != nil {
			return fmt.Errorf("correlation analysis: %w", err)
		}
	}

	if dir, ok := result.TierDirs[1]; ok {
		if err := compactor.Compact(dir, tier1Step); err != nil {
			return fmt.Errorf("compacting tier 1: %w", err)
		}
	}

	if err := orchestrator.PruneRuns(p.cfg.DirectoryPath, keepRuns); err != nil {
		level.Warn(p.logger).Log("msg", "pruning old run directories failed", "err", err)
	}

	p.sink.SetRunDirectories(recentTierDirs(p.cfg.DirectoryPath, keepRuns))

	return nil
}

// recentTierDirs returns the tier-0 subdirectory of the keep most
// recently modified run directories under root, oldest first, for the
// sink to watch.
func recentTierDirs(root string, keep int) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
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

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].modTime.Before(dirs[j].modTime) })

	if len(dirs) > keep {
		dirs = dirs[len(dirs)-keep:]
	}

	paths := make([]string, 0, len(dirs))
	for _, d := range dirs {
		paths = append(paths, filepath.Join(root, d.name, "tier0"))
	}
	return paths
}
