// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/viper"
)

// Config holds all service settings, populated from environment variables.
// It is built once at startup and never mutated.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DataDir        string
	PublicBaseURL  string
	UploadMaxBytes int64

	// CloudRF propagation API.
	CloudRFURL            string
	CloudRFKey            string
	CloudRFTimeout        time.Duration
	RasterDownloadTimeout time.Duration

	// OpenTopoData elevation API.
	ElevationURL      string
	ElevationTimeout  time.Duration
	ElevationCacheTTL time.Duration
	ProfileSteps      int

	PivotMatchDistance float64
	AlphaThreshold     uint8
	StrictAntenna      bool

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

var defaults = map[string]any{
	"HTTP_ADDR":               ":8080",
	"LOG_LEVEL":               "info",
	"LOG_FORMAT":              "json",
	"DATA_DIR":                "data/studies",
	"PUBLIC_BASE_URL":         "http://localhost:8080",
	"UPLOAD_MAX_BYTES":        "33554432",
	"CLOUDRF_API_URL":         "https://api.cloudrf.com/area",
	"CLOUDRF_API_KEY":         "",
	"CLOUDRF_TIMEOUT":         "60s",
	"RASTER_DOWNLOAD_TIMEOUT": "90s",
	"ELEVATION_API_URL":       "https://api.opentopodata.org/v1/srtm90m",
	"ELEVATION_TIMEOUT":       "60s",
	"ELEVATION_CACHE_TTL":     "1h",
	"PROFILE_STEPS":           "50",
	"PIVOT_MATCH_DISTANCE":    "0.0002",
	"ALPHA_THRESHOLD":         "10",
	"STRICT_ANTENNA":          "false",
	"KAFKA_ENABLED":           "false",
	"KAFKA_BROKERS":           "localhost:9092",
	"KAFKA_TOPIC":             "coverage-reports",
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	p := parser{v: v}

	cfg := &Config{
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:       strings.ToLower(v.GetString("LOG_FORMAT")),
		ShutdownTimeout: shutdownTimeout,

		DataDir:        v.GetString("DATA_DIR"),
		PublicBaseURL:  strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		UploadMaxBytes: int64(p.positiveInt("UPLOAD_MAX_BYTES")),

		CloudRFURL:            v.GetString("CLOUDRF_API_URL"),
		CloudRFKey:            v.GetString("CLOUDRF_API_KEY"),
		CloudRFTimeout:        p.duration("CLOUDRF_TIMEOUT"),
		RasterDownloadTimeout: p.duration("RASTER_DOWNLOAD_TIMEOUT"),

		ElevationURL:      v.GetString("ELEVATION_API_URL"),
		ElevationTimeout:  p.duration("ELEVATION_TIMEOUT"),
		ElevationCacheTTL: p.duration("ELEVATION_CACHE_TTL"),
		ProfileSteps:      p.positiveInt("PROFILE_STEPS"),

		PivotMatchDistance: p.positiveFloat("PIVOT_MATCH_DISTANCE"),
		AlphaThreshold:     p.alpha("ALPHA_THRESHOLD"),
		StrictAntenna:      p.boolean("STRICT_ANTENNA"),

		KafkaEnabled: p.boolean("KAFKA_ENABLED"),
		KafkaBrokers: sharedcfg.ParseBrokers(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.CloudRFURL == "" {
		return nil, errors.New("CLOUDRF_API_URL is required")
	}
	if cfg.ElevationURL == "" {
		return nil, errors.New("ELEVATION_API_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

// parser records the first invalid variable so Load can report it once.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) fail(key, value, reason string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %s", key, value, reason)
	}
}

func (p *parser) duration(key string) time.Duration {
	s := p.v.GetString(key)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(key, s, "must be a positive duration")
		return 0
	}
	return d
}

func (p *parser) positiveInt(key string) int {
	s := p.v.GetString(key)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		p.fail(key, s, "must be a positive integer")
		return 0
	}
	return n
}

func (p *parser) positiveFloat(key string) float64 {
	s := p.v.GetString(key)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		p.fail(key, s, "must be a positive number")
		return 0
	}
	return f
}

func (p *parser) alpha(key string) uint8 {
	s := p.v.GetString(key)
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		p.fail(key, s, "must be between 0 and 255")
		return 0
	}
	return uint8(n)
}

func (p *parser) boolean(key string) bool {
	s := p.v.GetString(key)
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, s, "must be true or false")
		return false
	}
	return b
}
