package parameter

import (
	"github.com/danmuck/paramctl/internal/blackboard"
	"github.com/danmuck/paramctl/internal/description"
)

// BitBlockType packs BitParameter fields into one 8, 16 or 32 bit word.
type BitBlockType struct {
	typeBase
	size uint
}

func NewBitBlockType(name string) *BitBlockType {
	return &BitBlockType{typeBase: newTypeBase(name, KindBitParameterBlock), size: 8}
}

func (t *BitBlockType) FromDescription(n description.Node, reg *Registry) error {
	bits, err := description.Uint(n, "Size")
	if err != nil {
		return configErr(n.Path(), err, "bad Size")
	}
	if t.size, err = checkSize(n.Path(), bits); err != nil {
		return err
	}
	t.loadShared(n)
	if err := loadChildTypes(t, n, reg); err != nil {
		return err
	}
	var used uint32
	for i, child := range childTypes(t) {
		bp, ok := child.(*BitParameterType)
		if !ok {
			return configErr(n.Path(), nil, "%s cannot live in a bit block", describeKind(child))
		}
		if bp.pos >= t.size || bp.size > t.size-bp.pos {
			return configErr(n.Path(), nil, "bit field %s [%d+%d] exceeds %d bits", bp.Name(), bp.pos, bp.size, t.size)
		}
		field := mask32(bp.size) << bp.pos
		if used&field != 0 {
			return configErr(n.Path(), nil, "bit field %s (#%d) overlaps another field", bp.Name(), i)
		}
		used |= field
	}
	return nil
}

func (t *BitBlockType) ToDescription() *description.Element {
	el := t.sharedDescription(string(KindBitParameterBlock)).SetUint("Size", uint64(t.size))
	childDescriptions(el, t)
	return el
}

func (t *BitBlockType) populate(b *builder, parent Instance, name string) error {
	return b.populateArray(parent, name, t, t.mapping, 0, func(blk *Block) error {
		offset := b.bb.Extend(int(t.size / 8))
		for _, child := range childTypes(t) {
			bp := child.(*BitParameterType)
			region := blackboard.Region{Offset: offset, BitOffset: bp.pos, BitWidth: bp.size}
			if _, err := b.addRegion(blk, bp.Name(), bp, bp.codec(), region, bp.def, bp.hasDefault); err != nil {
				return err
			}
		}
		return nil
	})
}

// BitParameterType is a field of Size bits at bit position Pos of its block.
type BitParameterType struct {
	typeBase
	pos        uint
	size       uint
	max        uint64
	hasMax     bool
	def        string
	hasDefault bool
}

func NewBitParameterType(name string) *BitParameterType {
	return &BitParameterType{typeBase: newTypeBase(name, KindBitParameter), size: 1}
}

func (t *BitParameterType) FromDescription(n description.Node, _ *Registry) error {
	pos, err := description.Uint(n, "Pos")
	if err != nil {
		return configErr(n.Path(), err, "bad Pos")
	}
	size, err := description.UintOr(n, "Size", 1)
	if err != nil {
		return configErr(n.Path(), err, "bad Size")
	}
	if size == 0 || pos > 31 || size > 32-pos {
		return configErr(n.Path(), nil, "bit field [%d+%d] does not fit 32 bits", pos, size)
	}
	t.pos, t.size = uint(pos), uint(size)
	t.max = uint64(mask32(t.size))
	if n.HasAttr("Max") {
		if t.max, err = description.Uint(n, "Max"); err != nil {
			return configErr(n.Path(), err, "bad Max")
		}
		if t.max > uint64(mask32(t.size)) {
			return configErr(n.Path(), nil, "max %d does not fit %d bits", t.max, t.size)
		}
		t.hasMax = true
	}
	t.def, t.hasDefault = n.Attr("Default")
	if t.hasDefault {
		if _, err := t.codec().AsInteger(t.def); err != nil {
			return configErr(n.Path(), err, "bad Default")
		}
	}
	t.loadShared(n)
	return nil
}

func (t *BitParameterType) ToDescription() *description.Element {
	el := t.sharedDescription(string(KindBitParameter)).
		SetUint("Pos", uint64(t.pos)).
		SetUint("Size", uint64(t.size))
	if t.hasMax {
		el.SetUint("Max", t.max)
	}
	if t.hasDefault {
		el.Set("Default", t.def)
	}
	return el
}

func (t *BitParameterType) codec() Codec {
	return unsignedCodec{bits: t.size, max: t.max}
}

func (t *BitParameterType) populate(_ *builder, parent Instance, name string) error {
	return configErr(parent.Path()+"/"+name, nil, "bit parameter outside a bit parameter block")
}
