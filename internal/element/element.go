package element

import (
	"errors"
	"fmt"
)

var (
	ErrNilNode       = errors.New("element: nil node")
	ErrDuplicateName = errors.New("element: duplicate child name")
	ErrHasParent     = errors.New("element: node already attached")
	ErrInvalidName   = errors.New("element: invalid name")
	ErrCycle         = errors.New("element: child contains its parent")
)

// Kind identifies the concrete role of a node. It is reported, never branched on
// outside diagnostics and description round-trip.
type Kind string

const (
	KindGroup Kind = "Group"
)

// Node is one member of an element hierarchy. Implementations embed Base.
type Node interface {
	Name() string
	Kind() Kind
	NbChildren() int
	Child(i int) Node
	FindChild(name string) (Node, bool)
	AddChild(child Node) error
	HasDynamicChildren() bool

	base() *Base
}

// Base carries the name, kind and owned children of a node.
type Base struct {
	name     string
	kind     Kind
	dynamic  bool
	attached bool
	children []Node
	index    map[string]int
}

// NewBase returns the shared node state for a named element of the given kind.
func NewBase(name string, kind Kind) Base {
	return Base{name: name, kind: kind}
}

func (b *Base) base() *Base {
	return b
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Kind() Kind {
	return b.kind
}

func (b *Base) NbChildren() int {
	return len(b.children)
}

// Child returns the child at ordinal position i, or nil when out of range.
func (b *Base) Child(i int) Node {
	if i < 0 || i >= len(b.children) {
		return nil
	}
	return b.children[i]
}

// Children returns a copy of the ordered child list.
func (b *Base) Children() []Node {
	out := make([]Node, len(b.children))
	copy(out, b.children)
	return out
}

func (b *Base) FindChild(name string) (Node, bool) {
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}
	return b.children[i], true
}

// AddChild appends child and takes ownership of it.
func (b *Base) AddChild(child Node) error {
	if child == nil {
		return ErrNilNode
	}
	cb := child.base()
	if cb == b {
		return fmt.Errorf("%w: %q cannot own itself", ErrHasParent, b.name)
	}
	if cb.attached {
		return fmt.Errorf("%w: %q", ErrHasParent, cb.name)
	}
	if cb.contains(b) {
		return fmt.Errorf("%w: %q under %q", ErrCycle, cb.name, b.name)
	}
	if err := ValidateName(cb.name); err != nil {
		return err
	}
	if _, exists := b.index[cb.name]; exists {
		return fmt.Errorf("%w: %q under %q", ErrDuplicateName, cb.name, b.name)
	}
	if b.index == nil {
		b.index = make(map[string]int)
	}
	b.index[cb.name] = len(b.children)
	b.children = append(b.children, child)
	cb.attached = true
	return nil
}

// contains reports whether target is b or any node below it.
func (b *Base) contains(target *Base) bool {
	if b == target {
		return true
	}
	for _, c := range b.children {
		if c.base().contains(target) {
			return true
		}
	}
	return false
}

// RemoveChild detaches the named child. The ordinal position of later
// children shifts down by one.
func (b *Base) RemoveChild(name string) (Node, bool) {
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}
	child := b.children[i]
	b.children = append(b.children[:i], b.children[i+1:]...)
	delete(b.index, name)
	for j := i; j < len(b.children); j++ {
		b.index[b.children[j].Name()] = j
	}
	child.base().attached = false
	return child, true
}

func (b *Base) HasDynamicChildren() bool {
	return b.dynamic
}

// SetDynamicChildren marks the children as generated rather than declared.
func (b *Base) SetDynamicChildren(dynamic bool) {
	b.dynamic = dynamic
}

// ValidateName rejects names that cannot be addressed by a path.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return fmt.Errorf("%w: %q contains '/'", ErrInvalidName, name)
		}
	}
	return nil
}

// Group is a plain container node.
type Group struct {
	Base
}

// NewGroup returns an empty container of the given kind.
func NewGroup(name string, kind Kind) *Group {
	return &Group{Base: NewBase(name, kind)}
}
