// Package parameter owns the typed parameter model.
//
// Ownership boundary:
// - type descriptions loaded from a parsed structure (Type and its variants)
// - linear adaptation between raw and user values
// - instantiation of types into the instance tree and blackboard layout
// - backend mapping of subsystems and syncer resolution per element
// - textual read/write of parameter values
//
// The set of types is closed: every Type is declared in this package and
// dispatched by its concrete variant. Instances never point at their parent;
// paths are resolved from the system class downwards.
package parameter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/danmuck/paramctl/internal/description"
	"github.com/danmuck/paramctl/internal/element"
)

const (
	KindSystemClass           element.Kind = "SystemClass"
	KindSubsystem             element.Kind = "Subsystem"
	KindComponentLibrary      element.Kind = "ComponentLibrary"
	KindInstanceDefinition    element.Kind = "InstanceDefinition"
	KindComponentType         element.Kind = "ComponentType"
	KindComponent             element.Kind = "Component"
	KindParameterBlock        element.Kind = "ParameterBlock"
	KindIntegerParameter      element.Kind = "IntegerParameter"
	KindBooleanParameter      element.Kind = "BooleanParameter"
	KindEnumParameter         element.Kind = "EnumParameter"
	KindComputedSizeParameter element.Kind = "ComputedSizeParameter"
	KindBitParameterBlock     element.Kind = "BitParameterBlock"
	KindBitParameter          element.Kind = "BitParameter"
)

// Type is one node of the type side of the model.
type Type interface {
	element.Node
	// FromDescription reads the type's own attributes, then the shared ones,
	// and loads child types through reg.
	FromDescription(n description.Node, reg *Registry) error
	// ToDescription writes the same attributes back.
	ToDescription() *description.Element

	common() *typeBase
	populate(b *builder, parent Instance, name string) error
}

// Codec is the textual mapping of a scalar type.
type Codec interface {
	AsInteger(value string) (uint32, error)
	AsString(raw uint32) string
}

// typeBase holds the attributes every type shares.
type typeBase struct {
	element.Base
	mapping     string
	description string
}

func newTypeBase(name string, kind element.Kind) typeBase {
	return typeBase{Base: element.NewBase(name, kind)}
}

func (t *typeBase) common() *typeBase {
	return t
}

// Mapping is the backend mapping string declared on the type.
func (t *typeBase) Mapping() string {
	return t.mapping
}

func (t *typeBase) Description() string {
	return t.description
}

func (t *typeBase) loadShared(n description.Node) {
	t.mapping = description.StringOr(n, "Mapping", "")
	t.description = description.StringOr(n, "Description", "")
}

func (t *typeBase) sharedDescription(tag string) *description.Element {
	el := description.NewElement(tag).Set("Name", t.Name())
	if t.mapping != "" {
		el.Set("Mapping", t.mapping)
	}
	if t.description != "" {
		el.Set("Description", t.description)
	}
	return el
}

// loadChildTypes instantiates every child description as a Type under parent.
func loadChildTypes(parent element.Node, n description.Node, reg *Registry) error {
	for _, c := range n.Children() {
		if c.Tag() == TagLinearAdaptation {
			continue
		}
		child, err := reg.NewType(c)
		if err != nil {
			return err
		}
		if err := parent.AddChild(child); err != nil {
			return configErr(c.Path(), err, "cannot add type")
		}
	}
	return nil
}

func childTypes(n element.Node) []Type {
	out := make([]Type, 0, n.NbChildren())
	for i := 0; i < n.NbChildren(); i++ {
		if t, ok := n.Child(i).(Type); ok {
			out = append(out, t)
		}
	}
	return out
}

func childDescriptions(el *description.Element, n element.Node) {
	for _, t := range childTypes(n) {
		el.Add(t.ToDescription())
	}
}

// Registry is the element library: it maps description tags to type
// constructors. It is built once and passed to every load.
type Registry struct {
	ctors map[string]func(name string) Type
}

// NewRegistry returns a registry knowing every built-in type.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]func(string) Type)}
	r.ctors[string(KindIntegerParameter)] = func(name string) Type { return NewIntegerType(name) }
	r.ctors[string(KindBooleanParameter)] = func(name string) Type { return NewBooleanType(name) }
	r.ctors[string(KindEnumParameter)] = func(name string) Type { return NewEnumType(name) }
	r.ctors[string(KindComputedSizeParameter)] = func(name string) Type { return NewComputedSizeType(name) }
	r.ctors[string(KindBitParameterBlock)] = func(name string) Type { return NewBitBlockType(name) }
	r.ctors[string(KindBitParameter)] = func(name string) Type { return NewBitParameterType(name) }
	r.ctors[string(KindParameterBlock)] = func(name string) Type { return NewBlockType(name) }
	r.ctors[string(KindComponentType)] = func(name string) Type { return NewComponentType(name) }
	r.ctors[string(KindComponent)] = func(name string) Type { return NewComponentReference(name) }
	return r
}

// Tags lists the known type tags.
func (r *Registry) Tags() []string {
	out := make([]string, 0, len(r.ctors))
	for tag := range r.ctors {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// NewType builds and loads the type described by n.
func (r *Registry) NewType(n description.Node) (Type, error) {
	ctor, ok := r.ctors[n.Tag()]
	if !ok {
		return nil, configErr(n.Path(), nil, "unknown element type %q (have %s)", n.Tag(), strings.Join(r.Tags(), ", "))
	}
	name, err := description.String(n, "Name")
	if err != nil {
		return nil, configErr(n.Path(), err, "missing name")
	}
	if err := element.ValidateName(name); err != nil {
		return nil, configErr(n.Path(), err, "bad name")
	}
	t := ctor(name)
	if err := t.FromDescription(n, r); err != nil {
		return nil, err
	}
	return t, nil
}

func checkSize(path string, bits uint64) (uint, error) {
	switch bits {
	case 8, 16, 32:
		return uint(bits), nil
	default:
		return 0, configErr(path, nil, "size must be 8, 16 or 32 bits (got %d)", bits)
	}
}

func describeKind(t Type) string {
	return fmt.Sprintf("%s %s", t.Kind(), t.Name())
}
