package parser

import "fmt"

// Registry maps file formats to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry with the built-in parsers registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&PDFParser{}, &TextParser{}, &XLSXParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Get returns the parser registered for format.
func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

// Register adds or replaces the parser for a format.
func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}

// Formats lists the registered formats.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		out = append(out, f)
	}
	return out
}
