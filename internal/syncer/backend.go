package syncer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danmuck/paramctl/internal/blackboard"
)

var (
	ErrBackendExists   = errors.New("syncer: backend type already registered")
	ErrFactoryNil      = errors.New("syncer: backend factory is nil")
	ErrUnknownBackend  = errors.New("syncer: unknown backend type")
	ErrInvalidType     = errors.New("syncer: invalid backend type")
	ErrMappingRejected = errors.New("syncer: mapping rejected")
)

// Target is the view of an instantiated element a backend maps.
type Target interface {
	Path() string
	Mapping() (string, bool)
	Offset() int
	Size() int
}

// Backend creates the syncers for one subsystem.
type Backend interface {
	Type() string
	// DefaultSyncer covers every element of the subsystem that no mapped
	// element claims.
	DefaultSyncer(subsystem Target) (Syncer, error)
	// MapElement is called for elements carrying a mapping, parents first. A
	// nil syncer leaves the element to its parent's syncer.
	MapElement(t Target) (Syncer, error)
	Close() error
}

// PluginConfig is handed to a factory for one subsystem.
type PluginConfig struct {
	Subsystem string
	Folder    string
}

// Factory builds a backend instance for one subsystem.
type Factory func(cfg PluginConfig) (Backend, error)

// Location selects the enabled plugins. Folder is passed through to factories.
type Location struct {
	Folder  string
	Plugins []string
}

// Registry stores backend factories by type name.
type Registry struct {
	items  map[string]Factory
	folder string
}

// NewRegistry creates a registry holding the Virtual backend.
func NewRegistry() *Registry {
	r := &Registry{items: make(map[string]Factory)}
	_ = r.Register(VirtualType, NewVirtualBackend)
	return r
}

// Register adds a factory under typ.
func (r *Registry) Register(typ string, f Factory) error {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return fmt.Errorf("%w: empty", ErrInvalidType)
	}
	if f == nil {
		return ErrFactoryNil
	}
	if _, ok := r.items[typ]; ok {
		return fmt.Errorf("%w: %s", ErrBackendExists, typ)
	}
	r.items[typ] = f
	return nil
}

// Create instantiates a backend of type typ for the named subsystem.
func (r *Registry) Create(typ, subsystem string) (Backend, error) {
	f, ok := r.items[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q (subsystem %s)", ErrUnknownBackend, typ, subsystem)
	}
	return f(PluginConfig{Subsystem: subsystem, Folder: r.folder})
}

// Types returns the registered types in sorted order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.items))
	for typ := range r.items {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Restrict returns a registry holding only the plugins named by loc, in
// addition to the always available Virtual backend.
func (r *Registry) Restrict(loc Location) (*Registry, error) {
	out := NewRegistry()
	out.folder = loc.Folder
	for _, name := range loc.Plugins {
		name = strings.TrimSpace(name)
		if name == "" || name == VirtualType {
			continue
		}
		f, ok := r.items[name]
		if !ok {
			return nil, fmt.Errorf("%w: plugin %q not available (have %v)", ErrUnknownBackend, name, r.Types())
		}
		if err := out.Register(name, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ParseMapping splits "Key:Value,Key2:Value2" into an ordered list of pairs.
// A key without a value maps to "".
func ParseMapping(raw string) ([][2]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out [][2]string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, fmt.Errorf("%w: empty item in %q", ErrMappingRejected, raw)
		}
		k, v, _ := strings.Cut(item, ":")
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, fmt.Errorf("%w: empty key in %q", ErrMappingRejected, raw)
		}
		out = append(out, [2]string{k, strings.TrimSpace(v)})
	}
	return out, nil
}

// MappingValue returns the value of key in a raw mapping string.
func MappingValue(raw, key string) (string, bool, error) {
	pairs, err := ParseMapping(raw)
	if err != nil {
		return "", false, err
	}
	for _, p := range pairs {
		if p[0] == key {
			return p[1], true, nil
		}
	}
	return "", false, nil
}

// regionSyncer pushes and pulls one byte range through push and pull.
type regionSyncer struct {
	name   string
	offset int
	size   int
	push   func(name string, data []byte) error
	pull   func(name string) ([]byte, bool, error)
}

func (s *regionSyncer) Sync(bb *blackboard.Blackboard, pullBack bool) error {
	data, err := bb.ReadBytes(s.offset, s.size)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	if err := s.push(s.name, data); err != nil {
		return fmt.Errorf("%s: push: %w", s.name, err)
	}
	if !pullBack {
		return nil
	}
	back, ok, err := s.pull(s.name)
	if err != nil {
		return fmt.Errorf("%s: pull: %w", s.name, err)
	}
	if !ok {
		return nil
	}
	if len(back) != s.size {
		return fmt.Errorf("%s: pull: backend holds %d bytes, region is %d", s.name, len(back), s.size)
	}
	return bb.WriteBytes(s.offset, back)
}

func (s *regionSyncer) String() string {
	return s.name
}
