package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/docweave/docweave/internal/pipeline"
)

// SourceFactory builds a pipeline.Source from a sources-list entry's
// config. OutputFactory does the same for an outputs-list entry.
type SourceFactory func(cfg map[string]any) (pipeline.Source, error)
type OutputFactory func(cfg map[string]any) (pipeline.Output, error)

// The registries below let internal/sources, internal/htmlsource and
// internal/output register their kinds from their own init() functions,
// the way database/sql packages register drivers — config never imports
// those packages directly, so there's no import cycle back from them to
// the decoders they depend on.
var (
	sourceRegistryMu sync.Mutex
	sourceRegistry   = map[string]SourceFactory{}

	outputRegistryMu sync.Mutex
	outputRegistry   = map[string]OutputFactory{}
)

// RegisterSourceKind registers a source kind. Call from an init() in the
// package that implements it. Panics on a duplicate kind, matching
// database/sql.Register's contract — a duplicate registration is a
// programming error caught at startup, not a runtime condition.
func RegisterSourceKind(kind string, factory SourceFactory) {
	sourceRegistryMu.Lock()
	defer sourceRegistryMu.Unlock()
	if _, dup := sourceRegistry[kind]; dup {
		panic(fmt.Sprintf("config: RegisterSourceKind called twice for kind %q", kind))
	}
	sourceRegistry[kind] = factory
}

// RegisterOutputKind registers an output kind, see RegisterSourceKind.
func RegisterOutputKind(kind string, factory OutputFactory) {
	outputRegistryMu.Lock()
	defer outputRegistryMu.Unlock()
	if _, dup := outputRegistry[kind]; dup {
		panic(fmt.Sprintf("config: RegisterOutputKind called twice for kind %q", kind))
	}
	outputRegistry[kind] = factory
}

// BuildSource dispatches a sources-list entry to its registered factory.
func BuildSource(kind string, cfg map[string]any) (pipeline.Source, error) {
	sourceRegistryMu.Lock()
	factory, ok := sourceRegistry[kind]
	sourceRegistryMu.Unlock()
	if !ok {
		return nil, configErrf("unknown source kind %q (known: %v)", kind, knownSourceKinds())
	}
	return factory(cfg)
}

// BuildOutput dispatches an outputs-list entry to its registered factory.
func BuildOutput(kind string, cfg map[string]any) (pipeline.Output, error) {
	outputRegistryMu.Lock()
	factory, ok := outputRegistry[kind]
	outputRegistryMu.Unlock()
	if !ok {
		return nil, configErrf("unknown output kind %q (known: %v)", kind, knownOutputKinds())
	}
	return factory(cfg)
}

func knownSourceKinds() []string {
	sourceRegistryMu.Lock()
	defer sourceRegistryMu.Unlock()
	kinds := make([]string, 0, len(sourceRegistry))
	for k := range sourceRegistry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func knownOutputKinds() []string {
	outputRegistryMu.Lock()
	defer outputRegistryMu.Unlock()
	kinds := make([]string, 0, len(outputRegistry))
	for k := range outputRegistry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
