package parameter

import (
	"github.com/danmuck/paramctl/internal/description"
)

// BlockType groups child types. With ArrayLength N > 0 it instantiates an
// array node whose N dynamic children "0".."N-1" each hold the block.
type BlockType struct {
	typeBase
	arrayLength uint64
}

func NewBlockType(name string) *BlockType {
	return &BlockType{typeBase: newTypeBase(name, KindParameterBlock)}
}

func (t *BlockType) ArrayLength() uint64 {
	return t.arrayLength
}

func (t *BlockType) FromDescription(n description.Node, reg *Registry) error {
	var err error
	if t.arrayLength, err = description.UintOr(n, "ArrayLength", 0); err != nil {
		return configErr(n.Path(), err, "bad ArrayLength")
	}
	t.loadShared(n)
	return loadChildTypes(t, n, reg)
}

func (t *BlockType) ToDescription() *description.Element {
	el := t.sharedDescription(string(KindParameterBlock))
	if t.arrayLength > 0 {
		el.SetUint("ArrayLength", t.arrayLength)
	}
	childDescriptions(el, t)
	return el
}

func (t *BlockType) populate(b *builder, parent Instance, name string) error {
	return b.populateArray(parent, name, t, t.mapping, t.arrayLength, func(blk *Block) error {
		return b.populateChildren(blk, t)
	})
}

// ComponentType is a reusable block declared in a subsystem's component
// library and instantiated through ComponentReference.
type ComponentType struct {
	typeBase
}

func NewComponentType(name string) *ComponentType {
	return &ComponentType{typeBase: newTypeBase(name, KindComponentType)}
}

func (t *ComponentType) FromDescription(n description.Node, reg *Registry) error {
	t.loadShared(n)
	return loadChildTypes(t, n, reg)
}

func (t *ComponentType) ToDescription() *description.Element {
	el := t.sharedDescription(string(KindComponentType))
	childDescriptions(el, t)
	return el
}

func (t *ComponentType) populate(b *builder, parent Instance, name string) error {
	return b.populateArray(parent, name, t, t.mapping, 0, func(blk *Block) error {
		return b.populateChildren(blk, t)
	})
}

// ComponentReference instantiates a library component by type name.
type ComponentReference struct {
	typeBase
	typeName    string
	arrayLength uint64
}

func NewComponentReference(name string) *ComponentReference {
	return &ComponentReference{typeBase: newTypeBase(name, KindComponent)}
}

func (t *ComponentReference) TypeName() string {
	return t.typeName
}

func (t *ComponentReference) FromDescription(n description.Node, _ *Registry) error {
	var err error
	if t.typeName, err = description.String(n, "Type"); err != nil {
		return configErr(n.Path(), err, "missing Type")
	}
	if t.arrayLength, err = description.UintOr(n, "ArrayLength", 0); err != nil {
		return configErr(n.Path(), err, "bad ArrayLength")
	}
	t.loadShared(n)
	return nil
}

func (t *ComponentReference) ToDescription() *description.Element {
	el := t.sharedDescription(string(KindComponent)).Set("Type", t.typeName)
	if t.arrayLength > 0 {
		el.SetUint("ArrayLength", t.arrayLength)
	}
	return el
}

func (t *ComponentReference) populate(b *builder, parent Instance, name string) error {
	path := parent.Path() + "/" + name
	comp, err := b.component(t.typeName)
	if err != nil {
		return configErr(path, err, "component %q", t.typeName)
	}
	if err := b.enter(t.typeName); err != nil {
		return configErr(path, err, "component %q", t.typeName)
	}
	defer b.leave(t.typeName)
	mapping := t.mapping
	if mapping == "" {
		mapping = comp.mapping
	}
	return b.populateArray(parent, name, t, mapping, t.arrayLength, func(blk *Block) error {
		return b.populateChildren(blk, comp)
	})
}
