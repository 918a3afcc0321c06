package feature

import "strings"

// Registry holds an ordered list of features plus a case-insensitive name
// index. Iteration order is the priority order used by regex-era
// matching: the first feature whose Matches returns true handles the
// text.
type Registry struct {
	features []Feature
	byName   map[string]Feature
}

// NewRegistry builds a Registry over features, preserving their order.
func NewRegistry(features ...Feature) *Registry {
	r := &Registry{
		features: features,
		byName:   make(map[string]Feature, len(features)),
	}
	for _, f := range features {
		r.index(f.Name(), f)
	}
	return r
}

func (r *Registry) index(name string, f Feature) {
	r.byName[name] = f
	r.byName[normalize(name)] = f
	r.byName[toggleSeparator(normalize(name))] = f
}

// normalize lowercases and trims whitespace.
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// toggleSeparator swaps spaces for underscores and vice versa, so
// "grocery list" and "grocery_list" both resolve.
func toggleSeparator(name string) string {
	if strings.Contains(name, " ") {
		return strings.ReplaceAll(name, " ", "_")
	}
	return strings.ReplaceAll(name, "_", " ")
}

// Features returns the registry's features in priority order.
func (r *Registry) Features() []Feature {
	return r.features
}

// Lookup resolves name via the raw name, its lowercase, and its
// whitespace↔underscore variant; on miss, falls back to a substring match
// over feature names.
func (r *Registry) Lookup(name string) (Feature, bool) {
	if f, ok := r.byName[name]; ok {
		return f, true
	}
	norm := normalize(name)
	if f, ok := r.byName[norm]; ok {
		return f, true
	}
	if f, ok := r.byName[toggleSeparator(norm)]; ok {
		return f, true
	}

	for _, f := range r.features {
		if strings.Contains(normalize(f.Name()), norm) {
			return f, true
		}
	}
	return nil, false
}

// Close closes every feature, swallowing per-feature failures.
func (r *Registry) Close() {
	for _, f := range r.features {
		_ = f.Close()
	}
}
