package model

import "sync"

// Registry holds compiled cubes keyed by name. It is an owned object per
// compiler instance — there is no package-level/global registry, so
// multiple independent compilers can run over a shared executor without
// leaking state into one another (spec §9 "Global/module state: none").
// Grounded on the teacher's Database type in datalog/storage/database.go,
// which is likewise an owned-per-instance object rather than a package
// singleton.
type Registry struct {
	mu    sync.RWMutex
	cubes map[string]*Cube
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{cubes: make(map[string]*Cube)}
}

// Register adds or replaces a cube by name. Re-registering a name
// already present replaces the prior definition — the test suite
// depends on this for hot-reloading cube definitions (spec §4.1).
func (r *Registry) Register(cube *Cube) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cubes[cube.Name] = cube
}

// Get looks up a cube by name, returning nil if absent.
func (r *Registry) Get(name string) *Cube {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cubes[name]
}

// All returns every registered cube, sorted by name for deterministic
// iteration (the planner's tie-breaks depend on stable ordering).
func (r *Registry) All() []*Cube {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Cube, 0, len(r.cubes))
	for _, c := range r.cubes {
		out = append(out, c)
	}
	sortCubesByName(out)
	return out
}

func sortCubesByName(cubes []*Cube) {
	// Small registries in practice; insertion sort keeps this dependency-free
	// and avoids importing sort for a handful of elements at a time. It is
	// used for every registry size; there is no fallback to the stdlib.
	for i := 1; i < len(cubes); i++ {
		j := i
		for j > 0 && cubes[j-1].Name > cubes[j].Name {
			cubes[j-1], cubes[j] = cubes[j], cubes[j-1]
			j--
		}
	}
}

// CubeMetadata is the per-cube discovery info returned by Registry.Metadata
// without executing any SQL (spec §4.8 metadata()).
type CubeMetadata struct {
	Name        string
	Title       string
	Description string
	Measures    []FieldMetadata
	Dimensions  []FieldMetadata
}

// FieldMetadata describes one measure or dimension for API discovery.
type FieldMetadata struct {
	Name   string
	Title  string
	Type   string
	Format string
	Meta   map[string]string
}

// Metadata returns discovery info for every registered cube.
func (r *Registry) Metadata() []CubeMetadata {
	out := make([]CubeMetadata, 0, len(r.cubes))
	for _, c := range r.All() {
		md := CubeMetadata{Name: c.Name, Title: c.Title, Description: c.Description}
		measureNames := sortedKeys(c.Measures)
		for _, name := range measureNames {
			m := c.Measures[name]
			md.Measures = append(md.Measures, FieldMetadata{
				Name: c.Name + "." + name, Title: m.Title,
				Type: string(m.AggregationType), Format: m.Format, Meta: m.Meta,
			})
		}
		dimNames := sortedKeys(c.Dimensions)
		for _, name := range dimNames {
			d := c.Dimensions[name]
			md.Dimensions = append(md.Dimensions, FieldMetadata{
				Name: c.Name + "." + name, Title: d.Title,
				Type: string(d.Type), Format: d.Format, Meta: d.Meta,
			})
		}
		out = append(out, md)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		j := i
		for j > 0 && keys[j-1] > keys[j] {
			keys[j-1], keys[j] = keys[j], keys[j-1]
			j--
		}
	}
	return keys
}
