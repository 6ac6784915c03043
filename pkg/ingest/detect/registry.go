package detect

import (
	"sort"
	"strings"
	"sync"

	"github.com/codepage/codepage/pkg/errors"
)

// DefaultOrder is the chain order used when configuration names none. Cheap
// exact checks run before declaration parsing and statistics.
var DefaultOrder = []string{"unicode", "ascii", "markup", "statistical"}

// Settings tunes the built-in detectors.
type Settings struct {
	MarkupWindow             int64
	MarkupSniff              bool
	MarkupMinConfidence      int
	StatisticalMaxBytes      int64
	StatisticalMinConfidence int
	ASCIIMaxBytes            int64
}

// DefaultSettings returns the built-in detector defaults.
func DefaultSettings() Settings {
	return Settings{
		MarkupWindow:             DefaultMarkupWindow,
		MarkupSniff:              true,
		MarkupMinConfidence:      DefaultMinConfidence,
		StatisticalMaxBytes:      DefaultStatisticalBytes,
		StatisticalMinConfidence: DefaultMinConfidence,
	}
}

// Factory creates a detector from settings.
type Factory func(s Settings) Detector

// Registry maps detector names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Global default registry
var defaultRegistry = NewRegistry()

func init() {
	defaultRegistry.Register("unicode", func(Settings) Detector {
		return NewUnicodeDetector()
	})
	defaultRegistry.Register("ascii", func(s Settings) Detector {
		return &ASCIIDetector{MaxBytes: s.ASCIIMaxBytes}
	})
	defaultRegistry.Register("markup", func(s Settings) Detector {
		return &MarkupDetector{
			Window:        s.MarkupWindow,
			Sniff:         s.MarkupSniff,
			MinConfidence: s.MarkupMinConfidence,
		}
	})
	defaultRegistry.Register("statistical", func(s Settings) Detector {
		return &StatisticalDetector{
			MaxBytes:      s.StatisticalMaxBytes,
			MinConfidence: s.StatisticalMinConfidence,
		}
	})
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a factory. Names are case-insensitive.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Build instantiates detectors in the given order. An empty order builds
// DefaultOrder.
func (r *Registry) Build(order []string, s Settings) ([]Detector, error) {
	if len(order) == 0 {
		order = DefaultOrder
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	detectors := make([]Detector, 0, len(order))
	for _, name := range order {
		f, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, errors.UnknownDetector(name, r.namesLocked())
		}
		detectors = append(detectors, f(s))
	}
	return detectors, nil
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a factory to the default registry.
func Register(name string, f Factory) { defaultRegistry.Register(name, f) }

// Names lists the detectors of the default registry.
func Names() []string { return defaultRegistry.Names() }

// Build instantiates detectors from the default registry.
func Build(order []string, s Settings) ([]Detector, error) {
	return defaultRegistry.Build(order, s)
}

// NewDefaultChain builds the default-order chain with default settings.
func NewDefaultChain(opts ...ChainOption) *Chain {
	detectors, _ := Build(DefaultOrder, DefaultSettings())
	return NewChain(detectors, opts...)
}
