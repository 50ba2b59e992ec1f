package cpufeatures

import (
	"sync"

	"go.uber.org/zap"
)

// detectorConfig holds the configuration for a [Detector].
type detectorConfig struct {
	querier Querier
	reader  StateMaskReader
	logger  *zap.Logger
}

// DetectorOption configures a [Detector].
type DetectorOption func(*detectorConfig)

// WithQuerier replaces the leaf query primitive, e.g. with [TargetQuerier].
func WithQuerier(q Querier) DetectorOption {
	return func(c *detectorConfig) {
		c.querier = q
	}
}

// WithStateMaskReader replaces the XCR0 read primitive.
func WithStateMaskReader(x StateMaskReader) DetectorOption {
	return func(c *detectorConfig) {
		c.reader = x
	}
}

// WithLogger sets the logger used to report degraded queries at debug level.
func WithLogger(l *zap.Logger) DetectorOption {
	return func(c *detectorConfig) {
		c.logger = l
	}
}

// Detector decodes the processor features once and hands out the cached
// [Report] afterwards. It is safe for concurrent use.
//
// CPU features don't change while the process runs, and CPUID is slow
// enough that callers on hot paths should hold on to a Detector instead of
// calling [Detect] repeatedly.
type Detector struct {
	cfg detectorConfig

	once   sync.Once
	report Report
}

// NewDetector returns a Detector using the build target's native primitives
// unless overridden by options.
func NewDetector(opts ...DetectorOption) *Detector {
	cfg := detectorConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.querier == nil {
		cfg.querier = nativeQuerier()
	}
	if cfg.reader == nil {
		cfg.reader = nativeStateMaskReader()
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return &Detector{cfg: cfg}
}

// Report returns the cached report, decoding it on first use.
func (d *Detector) Report() Report {
	d.once.Do(func() {
		d.report = d.Refresh()
		d.cfg.logger.Debug("cpu features detected",
			zap.String("source", d.report.Source),
			zap.Strings("present", d.report.Features.Present()))
	})
	return d.report
}

// FeatureSet returns the cached feature set, decoding it on first use.
func (d *Detector) FeatureSet() FeatureSet {
	return d.Report().Features
}

// Refresh decodes a fresh report without touching the cache.
func (d *Detector) Refresh() Report {
	return decode(d.cfg.querier, d.cfg.reader, d.cfg.logger)
}
