package source

import (
	"fmt"

	"TenderRadar/internal/ports"
)

// Registry keeps a mapping from notice-source names to their implementations.
// Only the TED back end exists today; the registry keeps the wiring open for
// national procurement portals with the same summary shape.
type Registry struct {
	sources map[string]ports.NoticeSource
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.NoticeSource{}}
}

// Register adds or replaces a notice source under a name.
func (r *Registry) Register(name string, src ports.NoticeSource) {
	if r.sources == nil {
		r.sources = map[string]ports.NoticeSource{}
	}
	r.sources[name] = src
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.NoticeSource, error) {
	if src, ok := r.sources[name]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("notice source %s is not registered", name)
}
