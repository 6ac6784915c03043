package resolve

import (
	"log/slog"

	"github.com/codepage/codepage/pkg/config"
	"github.com/codepage/codepage/pkg/ingest/detect"
	"github.com/codepage/codepage/pkg/ingest/sources"
	"github.com/codepage/codepage/pkg/storage/s3"
)

// Settings converts detection config into detector settings.
func Settings(cfg config.DetectionConfig) detect.Settings {
	s := detect.DefaultSettings()
	if cfg.Markup.Window > 0 {
		s.MarkupWindow = cfg.Markup.Window
	}
	if cfg.Markup.Sniff != nil {
		s.MarkupSniff = *cfg.Markup.Sniff
	}
	if cfg.Markup.MinConfidence > 0 {
		s.MarkupMinConfidence = cfg.Markup.MinConfidence
	}
	if cfg.Statistical.MaxBytes > 0 {
		s.StatisticalMaxBytes = cfg.Statistical.MaxBytes
	}
	if cfg.Statistical.MinConfidence > 0 {
		s.StatisticalMinConfidence = cfg.Statistical.MinConfidence
	}
	s.ASCIIMaxBytes = cfg.ASCII.MaxBytes
	return s
}

// NewOpener builds a locator opener from source config.
func NewOpener(cfg config.SourcesConfig) *sources.Opener {
	decompress := cfg.Gzip == nil || *cfg.Gzip

	s3cfg := s3.DefaultConfig(cfg.S3.Region)
	s3cfg.Endpoint = cfg.S3.Endpoint
	s3cfg.UsePathStyle = cfg.S3.UsePathStyle
	s3cfg.AccessKeyID = cfg.S3.AccessKeyID
	s3cfg.SecretAccessKey = cfg.S3.SecretAccessKey

	return &sources.Opener{
		File: sources.FileSourceOptions{
			Decompress:     decompress,
			FollowSymlinks: true,
		},
		HTTP: &sources.HTTPSourceOptions{
			Headers:     cfg.HTTP.Headers,
			Timeout:     cfg.HTTP.Timeout,
			BearerToken: cfg.HTTP.BearerToken,
		},
		S3:         s3cfg,
		S3MaxBytes: cfg.S3.MaxBytes,
	}
}

// FromConfig builds the chain, opener and default provider described by cfg.
// Extra options are applied last and win.
func FromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Resolver, error) {
	detectors, err := detect.Build(cfg.Detection.Order, Settings(cfg.Detection))
	if err != nil {
		return nil, err
	}
	chain := detect.NewChain(detectors, detect.WithLogger(logger))

	var def DefaultFunc = SystemDefault
	if cfg.Detection.DefaultEncoding != "" {
		def = Fixed(cfg.Detection.DefaultEncoding)
	}

	base := []Option{
		WithDefault(def),
		WithOpener(NewOpener(cfg.Sources)),
		WithLogger(logger),
	}
	return New(chain, append(base, opts...)...), nil
}
