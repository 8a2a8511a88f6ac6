// Package config loads the INI-style [AlertMagnet] configuration
// section, applying defaults and type coercion.
package config

import (
	"os"
	"time"

	"gopkg.in/ini.v1"

	"github.com/sapcc/alertmagnet/internal/errs"
)

// Level is the root log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

// EnvFileOverride is the environment variable that overrides the
// default config file path.
const EnvFileOverride = "ALERTMAGNET_CONFIG_FILE"

// DefaultPath is the config path used when EnvFileOverride is unset.
const DefaultPath = "config/settings.conf"

// Config is the fully parsed, defaulted [AlertMagnet] section.
type Config struct {
	APIEndpoint         string
	Cert                string
	Timeout             time.Duration
	DirectoryPath       string
	Threshold           *int // days; nil means unset
	Delay               time.Duration
	Cores               int
	MaxLongTermStorage  string
	PrometheusPort      int
	NaptimeSeconds      time.Duration
	LogToFile           bool
	LogLevel            Level
	CorrelationMinCoeff float64
}

// ResolvePath returns the config file path, honoring EnvFileOverride.
func ResolvePath() string {
	if p := os.Getenv(EnvFileOverride); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and parses the config file at path.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Config{}, errs.Config("config file %q does not exist", path)
	}

	f, err := ini.Load(path)
	if err != nil {
		return Config{}, errs.Config("parsing config file %q: %v", path, err)
	}

	section, err := f.GetSection("AlertMagnet")
	if err != nil {
		return Config{}, errs.Config("missing [AlertMagnet] section: %v", err)
	}

	return parseSection(section)
}

func parseSection(section *ini.Section) (Config, error) {
	cfg := Config{
		Timeout:             30 * time.Second,
		DirectoryPath:       "data",
		Delay:               250 * time.Millisecond,
		Cores:               12,
		MaxLongTermStorage:  "1y",
		PrometheusPort:      8123,
		NaptimeSeconds:      86400 * time.Second,
		CorrelationMinCoeff: 0.0,
	}

	apiEndpoint := section.Key("api_endpoint").String()
	if apiEndpoint == "" {
		return Config{}, errs.RequiredConfigKey("api_endpoint")
	}
	cfg.APIEndpoint = apiEndpoint

	cfg.Cert = section.Key("cert").String()

	if v := section.Key("directory_path").String(); v != "" {
		cfg.DirectoryPath = v
	}

	if v := section.Key("timeout").String(); v != "" {
		secs, err := section.Key("timeout").Int()
		if err != nil {
			return Config{}, errs.InvalidConfigValue("timeout", v)
		}
		cfg.Timeout = time.Duration(secs) * time.Second
	}

	if v := section.Key("threshold").String(); v != "" {
		days, err := section.Key("threshold").Int()
		if err != nil {
			return Config{}, errs.InvalidConfigValue("threshold", v)
		}
		cfg.Threshold = &days
	}

	if v := section.Key("delay").String(); v != "" {
		secs, err := section.Key("delay").Float64()
		if err != nil {
			return Config{}, errs.InvalidConfigValue("delay", v)
		}
		cfg.Delay = time.Duration(secs * float64(time.Second))
	}

	if v := section.Key("cores").String(); v != "" {
		cores, err := section.Key("cores").Int()
		if err != nil {
			return Config{}, errs.InvalidConfigValue("cores", v)
		}
		cfg.Cores = cores
	}

	if v := section.Key("max_long_term_storage").String(); v != "" {
		cfg.MaxLongTermStorage = v
	}

	if v := section.Key("prometheus_port").String(); v != "" {
		port, err := section.Key("prometheus_port").Int()
		if err != nil {
			return Config{}, errs.InvalidConfigValue("prometheus_port", v)
		}
		cfg.PrometheusPort = port
	}

	if v := section.Key("naptime_seconds").String(); v != "" {
		secs, err := section.Key("naptime_seconds").Int()
		if err != nil {
			return Config{}, errs.InvalidConfigValue("naptime_seconds", v)
		}
		cfg.NaptimeSeconds = time.Duration(secs) * time.Second
	}

	if v := section.Key("correlation_threshold").String(); v != "" {
		coeff, err := section.Key("correlation_threshold").Float64()
		if err != nil {
			return Config{}, errs.InvalidConfigValue("correlation_threshold", v)
		}
		cfg.CorrelationMinCoeff = coeff
	}

	cfg.LogToFile = section.Key("log_to_file").MustBool(false)

	level, err := parseLogLevel(section.Key("log_level").String())
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	return cfg, nil
}

func parseLogLevel(raw string) (Level, error) {
	switch raw {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "CRITICAL":
		return LevelCritical, nil
	default:
		return 0, errs.InvalidConfigValue("log_level", raw)
	}
}
