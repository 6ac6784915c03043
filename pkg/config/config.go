// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codepage/codepage/pkg/errors"
)

// Config holds all codepage configuration.
type Config struct {
	Version int `yaml:"version"`

	Detection DetectionConfig `yaml:"detection"`
	Sources   SourcesConfig   `yaml:"sources"`
	Scan      ScanConfig      `yaml:"scan"`
	Report    ReportConfig    `yaml:"report"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DetectionConfig controls the detector chain and the resolver fallback.
type DetectionConfig struct {
	Order           []string          `yaml:"order"`
	SampleSize      int               `yaml:"sample_size"`      // stream sample, bytes
	DefaultEncoding string            `yaml:"default_encoding"` // empty = derive from locale
	Markup          MarkupConfig      `yaml:"markup"`
	Statistical     StatisticalConfig `yaml:"statistical"`
	ASCII           ASCIIConfig       `yaml:"ascii"`
}

// MarkupConfig tunes the markup detector.
type MarkupConfig struct {
	Window        int64 `yaml:"window"`
	Sniff         *bool `yaml:"sniff"`
	MinConfidence int   `yaml:"min_confidence"`
}

// StatisticalConfig tunes the statistical detector.
type StatisticalConfig struct {
	MaxBytes      int64 `yaml:"max_bytes"`
	MinConfidence int   `yaml:"min_confidence"`
}

// ASCIIConfig tunes the ASCII detector.
type ASCIIConfig struct {
	MaxBytes int64 `yaml:"max_bytes"` // 0 = whole source
}

// SourcesConfig controls how locators are opened.
type SourcesConfig struct {
	HTTP HTTPConfig `yaml:"http"`
	S3   S3Config   `yaml:"s3"`
	Gzip *bool      `yaml:"gzip"`
}

// HTTPConfig for http(s):// locators.
type HTTPConfig struct {
	Timeout     time.Duration     `yaml:"timeout"`
	Headers     map[string]string `yaml:"headers"`
	BearerToken string            `yaml:"bearer_token"`
}

// S3Config for s3:// locators.
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	MaxBytes        int64  `yaml:"max_bytes"`
}

// ScanConfig controls directory scans.
type ScanConfig struct {
	Workers        int      `yaml:"workers"` // 0 = auto
	Include        []string `yaml:"include"`
	Exclude        []string `yaml:"exclude"`
	FollowSymlinks bool     `yaml:"follow_symlinks"`
}

// ReportConfig selects report sinks.
type ReportConfig struct {
	Sinks []string    `yaml:"sinks"` // console | jsonl | parquet | xlsx | redis
	Path  string      `yaml:"path"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig for the redis report sink.
type RedisConfig struct {
	Address string        `yaml:"address"`
	Key     string        `yaml:"key"`
	TTL     time.Duration `yaml:"ttl"`
}

// LoggingConfig for the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// TelemetryConfig for optional tracing.
type TelemetryConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	ServiceName   string  `yaml:"service_name"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

// Default returns the default configuration.
func Default() *Config {
	sniff, gzip := true, true
	return &Config{
		Version: 1,
		Detection: DetectionConfig{
			Order:      []string{"unicode", "ascii", "markup", "statistical"},
			SampleSize: 128,
			Markup: MarkupConfig{
				Window:        8 * 1024,
				Sniff:         &sniff,
				MinConfidence: 50,
			},
			Statistical: StatisticalConfig{
				MaxBytes:      64 * 1024,
				MinConfidence: 50,
			},
		},
		Sources: SourcesConfig{
			HTTP: HTTPConfig{Timeout: 30 * time.Second},
			S3:   S3Config{Region: "us-east-1"},
			Gzip: &gzip,
		},
		Scan: ScanConfig{
			Workers: 0, // auto
		},
		Report: ReportConfig{
			Sinks: []string{"console"},
			Redis: RedisConfig{
				Address: "localhost:6379",
				Key:     "codepage:report",
				TTL:     24 * time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			Endpoint:      "localhost:4317",
			ServiceName:   "codepage",
			SamplingRatio: 1.0,
		},
	}
}

// MaxSampleBytes caps every configured sample or read window.
const MaxSampleBytes = 1 << 30

// Validate checks value ranges. Detector and sink names are checked where
// they are instantiated.
func (c *Config) Validate() error {
	var errs errors.MultiError

	invalid := func(field string, value interface{}, reason string) {
		errs.Add(errors.New(errors.CodeInvalidConfig, reason).
			WithContext("field", field).
			WithContext("value", value))
	}

	if c.Detection.Markup.MinConfidence < 0 || c.Detection.Markup.MinConfidence > 100 {
		invalid("detection.markup.min_confidence", c.Detection.Markup.MinConfidence, "confidence must be within 0-100")
	}
	if c.Detection.Statistical.MinConfidence < 0 || c.Detection.Statistical.MinConfidence > 100 {
		invalid("detection.statistical.min_confidence", c.Detection.Statistical.MinConfidence, "confidence must be within 0-100")
	}
	bytesField := func(field string, value int64) {
		switch {
		case value < 0:
			invalid(field, value, "must not be negative")
		case value > MaxSampleBytes:
			invalid(field, value, fmt.Sprintf("must not exceed %d bytes", int64(MaxSampleBytes)))
		}
	}
	bytesField("detection.sample_size", int64(c.Detection.SampleSize))
	bytesField("detection.markup.window", c.Detection.Markup.Window)
	bytesField("detection.statistical.max_bytes", c.Detection.Statistical.MaxBytes)
	bytesField("detection.ascii.max_bytes", c.Detection.ASCII.MaxBytes)
	bytesField("sources.s3.max_bytes", c.Sources.S3.MaxBytes)
	if c.Scan.Workers < 0 {
		invalid("scan.workers", c.Scan.Workers, "workers must not be negative")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		invalid("logging.level", c.Logging.Level, "unknown log level")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		invalid("logging.format", c.Logging.Format, "unknown log format")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		invalid("telemetry.sampling_ratio", c.Telemetry.SamplingRatio, "sampling ratio must be within 0-1")
	}

	return errs.Combined()
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded

	search []string
	getenv func(string) string
}

// Option configures a Manager.
type Option func(*Manager)

// WithSearchPaths replaces the system/user/project search path.
func WithSearchPaths(paths ...string) Option {
	return func(m *Manager) {
		m.search = paths
	}
}

// WithEnv replaces the environment lookup, mainly for tests.
func WithEnv(getenv func(string) string) Option {
	return func(m *Manager) {
		m.getenv = getenv
	}
}

// NewManager creates a new configuration manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		config: Default(),
		search: DefaultSearchPaths(),
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultSearchPaths returns config file paths in priority order.
func DefaultSearchPaths() []string {
	var paths []string

	// System config
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/codepage/config.yaml")
	}

	// User config
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".codepage", "config.yaml"))
	}

	// Project config (current directory)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".codepage.yaml"))
	}

	return paths
}

// Load loads configuration from all sources in priority order. An explicit
// file, if given, is applied after the search path and must exist.
func (m *Manager) Load(explicit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = Default()
	m.paths = nil

	// Later files override earlier ones
	for _, path := range m.search {
		if err := m.loadFile(path); err != nil {
			if !os.IsNotExist(err) {
				return err
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	if explicit != "" {
		if err := m.loadFile(explicit); err != nil {
			return err
		}
		m.paths = append(m.paths, explicit)
	}

	if err := m.loadEnv(); err != nil {
		return err
	}
	return m.config.Validate()
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "failed to parse config file").
			WithContext("path", path)
	}

	Merge(m.config, &partial)
	return nil
}

// Merge copies non-zero values from src into dst.
func Merge(dst, src *Config) {
	// Detection
	d, s := &dst.Detection, &src.Detection
	if len(s.Order) > 0 {
		d.Order = s.Order
	}
	if s.SampleSize != 0 {
		d.SampleSize = s.SampleSize
	}
	if s.DefaultEncoding != "" {
		d.DefaultEncoding = s.DefaultEncoding
	}
	if s.Markup.Window != 0 {
		d.Markup.Window = s.Markup.Window
	}
	if s.Markup.Sniff != nil {
		d.Markup.Sniff = s.Markup.Sniff
	}
	if s.Markup.MinConfidence != 0 {
		d.Markup.MinConfidence = s.Markup.MinConfidence
	}
	if s.Statistical.MaxBytes != 0 {
		d.Statistical.MaxBytes = s.Statistical.MaxBytes
	}
	if s.Statistical.MinConfidence != 0 {
		d.Statistical.MinConfidence = s.Statistical.MinConfidence
	}
	if s.ASCII.MaxBytes != 0 {
		d.ASCII.MaxBytes = s.ASCII.MaxBytes
	}

	// Sources
	if src.Sources.HTTP.Timeout != 0 {
		dst.Sources.HTTP.Timeout = src.Sources.HTTP.Timeout
	}
	if len(src.Sources.HTTP.Headers) > 0 {
		dst.Sources.HTTP.Headers = src.Sources.HTTP.Headers
	}
	if src.Sources.HTTP.BearerToken != "" {
		dst.Sources.HTTP.BearerToken = src.Sources.HTTP.BearerToken
	}
	if src.Sources.S3.Region != "" {
		dst.Sources.S3.Region = src.Sources.S3.Region
	}
	if src.Sources.S3.Endpoint != "" {
		dst.Sources.S3.Endpoint = src.Sources.S3.Endpoint
	}
	if src.Sources.S3.UsePathStyle {
		dst.Sources.S3.UsePathStyle = true
	}
	if src.Sources.S3.AccessKeyID != "" {
		dst.Sources.S3.AccessKeyID = src.Sources.S3.AccessKeyID
	}
	if src.Sources.S3.SecretAccessKey != "" {
		dst.Sources.S3.SecretAccessKey = src.Sources.S3.SecretAccessKey
	}
	if src.Sources.S3.MaxBytes != 0 {
		dst.Sources.S3.MaxBytes = src.Sources.S3.MaxBytes
	}
	if src.Sources.Gzip != nil {
		dst.Sources.Gzip = src.Sources.Gzip
	}

	// Scan
	if src.Scan.Workers != 0 {
		dst.Scan.Workers = src.Scan.Workers
	}
	if len(src.Scan.Include) > 0 {
		dst.Scan.Include = src.Scan.Include
	}
	if len(src.Scan.Exclude) > 0 {
		dst.Scan.Exclude = src.Scan.Exclude
	}
	if src.Scan.FollowSymlinks {
		dst.Scan.FollowSymlinks = true
	}

	// Report
	if len(src.Report.Sinks) > 0 {
		dst.Report.Sinks = src.Report.Sinks
	}
	if src.Report.Path != "" {
		dst.Report.Path = src.Report.Path
	}
	if src.Report.Redis.Address != "" {
		dst.Report.Redis.Address = src.Report.Redis.Address
	}
	if src.Report.Redis.Key != "" {
		dst.Report.Redis.Key = src.Report.Redis.Key
	}
	if src.Report.Redis.TTL != 0 {
		dst.Report.Redis.TTL = src.Report.Redis.TTL
	}

	// Logging
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		dst.Logging.Format = src.Logging.Format
	}

	// Telemetry
	if src.Telemetry.Enabled {
		dst.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		dst.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
	if src.Telemetry.ServiceName != "" {
		dst.Telemetry.ServiceName = src.Telemetry.ServiceName
	}
	if src.Telemetry.SamplingRatio != 0 {
		dst.Telemetry.SamplingRatio = src.Telemetry.SamplingRatio
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() error {
	// CODEPAGE_DEFAULT_ENCODING
	if v := m.getenv("CODEPAGE_DEFAULT_ENCODING"); v != "" {
		m.config.Detection.DefaultEncoding = v
	}

	// CODEPAGE_SAMPLE_SIZE
	if v := m.getenv("CODEPAGE_SAMPLE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, errors.CodeInvalidConfig, "invalid CODEPAGE_SAMPLE_SIZE").
				WithContext("value", v)
		}
		m.config.Detection.SampleSize = n
	}

	// CODEPAGE_ORDER
	if v := m.getenv("CODEPAGE_ORDER"); v != "" {
		m.config.Detection.Order = SplitList(v)
	}

	// CODEPAGE_LOG_LEVEL
	if v := m.getenv("CODEPAGE_LOG_LEVEL"); v != "" {
		m.config.Logging.Level = v
	}

	// CODEPAGE_OTLP_ENDPOINT
	if v := m.getenv("CODEPAGE_OTLP_ENDPOINT"); v != "" {
		m.config.Telemetry.Endpoint = v
		m.config.Telemetry.Enabled = true
	}
	return nil
}

// SplitList splits a comma-separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Paths returns the files that were loaded.
func (m *Manager) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config to path, or to the user config file when
// path is empty.
func (m *Manager) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".codepage", "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Marshal renders the current config as YAML.
func (m *Manager) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
