package parameter

import (
	"github.com/danmuck/paramctl/internal/description"
	"github.com/danmuck/paramctl/internal/element"
)

const (
	TagSystemClass        = "SystemClass"
	TagSubsystem          = "Subsystem"
	TagComponentLibrary   = "ComponentLibrary"
	TagInstanceDefinition = "InstanceDefinition"
)

// SystemDefinition is the loaded structure: the system class and the type
// trees of its subsystems. It is immutable once loaded and may be built into
// any number of instance trees.
type SystemDefinition struct {
	element.Base
	description string
}

// SubsystemDefinition names the backend type, the component library and the
// instance definition of one subsystem.
type SubsystemDefinition struct {
	element.Base
	backend     string
	mapping     string
	description string
	library     *element.Group
	instances   *element.Group
}

func (s *SubsystemDefinition) BackendType() string { return s.backend }
func (s *SubsystemDefinition) Mapping() string { return s.mapping }

// Library returns the component types in declaration order.
func (s *SubsystemDefinition) Library() []Type { return childTypes(s.library) }

// Instances returns the top level instance types in declaration order.
func (s *SubsystemDefinition) Instances() []Type { return childTypes(s.instances) }

// Subsystems returns the subsystem definitions in declaration order.
func (d *SystemDefinition) Subsystems() []*SubsystemDefinition {
	out := make([]*SubsystemDefinition, 0, d.NbChildren())
	for i := 0; i < d.NbChildren(); i++ {
		out = append(out, d.Child(i).(*SubsystemDefinition))
	}
	return out
}

// LoadSystem reads a SystemClass description. Loading stops at the first
// error, which names the offending element.
func LoadSystem(n description.Node, reg *Registry) (*SystemDefinition, error) {
	if n.Tag() != TagSystemClass {
		return nil, configErr(n.Path(), nil, "expected %s, got %s", TagSystemClass, n.Tag())
	}
	name, err := description.String(n, "Name")
	if err != nil {
		return nil, configErr(n.Path(), err, "missing name")
	}
	if err := element.ValidateName(name); err != nil {
		return nil, configErr(n.Path(), err, "bad name")
	}
	def := &SystemDefinition{
		Base:        element.NewBase(name, KindSystemClass),
		description: description.StringOr(n, "Description", ""),
	}
	for _, c := range n.Children() {
		if c.Tag() != TagSubsystem {
			return nil, configErr(c.Path(), nil, "unexpected %s in system class", c.Tag())
		}
		sub, err := loadSubsystem(c, reg)
		if err != nil {
			return nil, err
		}
		if err := def.AddChild(sub); err != nil {
			return nil, configErr(c.Path(), err, "cannot add subsystem")
		}
	}
	return def, nil
}

func loadSubsystem(n description.Node, reg *Registry) (*SubsystemDefinition, error) {
	name, err := description.String(n, "Name")
	if err != nil {
		return nil, configErr(n.Path(), err, "missing name")
	}
	if err := element.ValidateName(name); err != nil {
		return nil, configErr(n.Path(), err, "bad name")
	}
	backend, err := description.String(n, "Type")
	if err != nil {
		return nil, configErr(n.Path(), err, "missing backend Type")
	}
	sub := &SubsystemDefinition{
		Base:        element.NewBase(name, KindSubsystem),
		backend:     backend,
		mapping:     description.StringOr(n, "Mapping", ""),
		description: description.StringOr(n, "Description", ""),
		library:     element.NewGroup(TagComponentLibrary, KindComponentLibrary),
		instances:   element.NewGroup(TagInstanceDefinition, KindInstanceDefinition),
	}
	for _, c := range n.Children() {
		switch c.Tag() {
		case TagComponentLibrary:
			for _, ct := range c.Children() {
				if ct.Tag() != string(KindComponentType) {
					return nil, configErr(ct.Path(), nil, "only %s may live in a component library", KindComponentType)
				}
			}
			if err := loadChildTypes(sub.library, c, reg); err != nil {
				return nil, err
			}
		case TagInstanceDefinition:
			if err := loadChildTypes(sub.instances, c, reg); err != nil {
				return nil, err
			}
		default:
			return nil, configErr(c.Path(), nil, "unexpected %s in subsystem", c.Tag())
		}
	}
	if err := sub.AddChild(sub.library); err != nil {
		return nil, configErr(n.Path(), err, "component library")
	}
	if err := sub.AddChild(sub.instances); err != nil {
		return nil, configErr(n.Path(), err, "instance definition")
	}
	return sub, nil
}

// ToDescription writes the definition back in load order.
func (d *SystemDefinition) ToDescription() *description.Element {
	el := description.NewElement(TagSystemClass).Set("Name", d.Name())
	if d.description != "" {
		el.Set("Description", d.description)
	}
	for _, sub := range d.Subsystems() {
		el.Add(sub.ToDescription())
	}
	return el
}

func (s *SubsystemDefinition) ToDescription() *description.Element {
	el := description.NewElement(TagSubsystem).Set("Name", s.Name()).Set("Type", s.backend)
	if s.mapping != "" {
		el.Set("Mapping", s.mapping)
	}
	if s.description != "" {
		el.Set("Description", s.description)
	}
	if s.library.NbChildren() > 0 {
		lib := description.NewElement(TagComponentLibrary)
		childDescriptions(lib, s.library)
		el.Add(lib)
	}
	inst := description.NewElement(TagInstanceDefinition)
	childDescriptions(inst, s.instances)
	el.Add(inst)
	return el
}
