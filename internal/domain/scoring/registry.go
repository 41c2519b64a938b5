package scoring

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed tables/*.yaml
var builtinTables embed.FS

// ParseScheme decodes and validates a YAML scheme document.
func ParseScheme(data []byte) (Scheme, error) {
	var s Scheme
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Scheme{}, fmt.Errorf("%w: empty document", ErrInvalidScheme)
		}
		return Scheme{}, fmt.Errorf("%w: %v", ErrInvalidScheme, err)
	}
	if err := s.Validate(); err != nil {
		return Scheme{}, err
	}
	return s, nil
}

// LoadSchemes parses every *.yaml and *.yml file at the root of fsys, sorted by name.
func LoadSchemes(fsys fs.FS) ([]Scheme, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read scheme dir: %w", err)
	}
	var out []Scheme
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch path.Ext(e.Name()) {
		case ".yaml", ".yml":
		default:
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read scheme %s: %w", e.Name(), err)
		}
		s, err := ParseScheme(data)
		if err != nil {
			return nil, fmt.Errorf("scheme %s: %w", e.Name(), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// BuiltinSchemes returns the embedded CRI+ and YCI+ schemes.
func BuiltinSchemes() ([]Scheme, error) {
	sub, err := fs.Sub(builtinTables, "tables")
	if err != nil {
		return nil, err
	}
	return LoadSchemes(sub)
}

// Registry holds schemes by name.
type Registry struct {
	mu      sync.RWMutex
	schemes map[string]Scheme
}

// NewRegistry validates and registers the given schemes. Later schemes
// replace earlier ones with the same name.
func NewRegistry(schemes ...Scheme) (*Registry, error) {
	r := &Registry{schemes: make(map[string]Scheme, len(schemes))}
	for _, s := range schemes {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry of the built-in schemes.
func DefaultRegistry() (*Registry, error) {
	schemes, err := BuiltinSchemes()
	if err != nil {
		return nil, err
	}
	return NewRegistry(schemes...)
}

// LoadRegistry returns the built-in schemes overlaid with the YAML files in
// dir. An empty dir yields the built-ins only.
func LoadRegistry(dir string) (*Registry, error) {
	r, err := DefaultRegistry()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return r, nil
	}
	extra, err := LoadSchemes(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	for _, s := range extra {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates s and stores it, replacing any scheme of the same name.
func (r *Registry) Register(s Scheme) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.schemes[s.Name] = s
	r.mu.Unlock()
	return nil
}

// Get returns the named scheme.
func (r *Registry) Get(name string) (Scheme, error) {
	r.mu.RLock()
	s, ok := r.schemes[name]
	r.mu.RUnlock()
	if !ok {
		return Scheme{}, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
	return s, nil
}

// Names returns the registered scheme names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemes))
	for n := range r.schemes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// List returns the registered schemes sorted by name.
func (r *Registry) List() []Scheme {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Scheme, 0, len(names))
	for _, n := range names {
		out = append(out, r.schemes[n])
	}
	return out
}
