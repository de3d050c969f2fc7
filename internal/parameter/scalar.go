package parameter

import (
	"strconv"
	"strings"

	"github.com/danmuck/paramctl/internal/description"
	"github.com/danmuck/paramctl/internal/element"
)

// BooleanType is stored in one byte; any non-zero raw value reads as true.
type BooleanType struct {
	typeBase
	def        string
	hasDefault bool
}

func NewBooleanType(name string) *BooleanType {
	return &BooleanType{typeBase: newTypeBase(name, KindBooleanParameter)}
}

func (t *BooleanType) FromDescription(n description.Node, _ *Registry) error {
	t.def, t.hasDefault = n.Attr("Default")
	if t.hasDefault {
		if _, err := t.AsInteger(t.def); err != nil {
			return configErr(n.Path(), err, "bad Default")
		}
	}
	t.loadShared(n)
	return nil
}

func (t *BooleanType) ToDescription() *description.Element {
	el := t.sharedDescription(string(KindBooleanParameter))
	if t.hasDefault {
		el.Set("Default", t.def)
	}
	return el
}

func (t *BooleanType) AsInteger(value string) (uint32, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "0x1", "true", "on":
		return 1, nil
	case "0", "0x0", "false", "off":
		return 0, nil
	default:
		return 0, valueErr(value, "not a boolean")
	}
}

func (t *BooleanType) AsString(raw uint32) string {
	if raw&0xff != 0 {
		return "1"
	}
	return "0"
}

func (t *BooleanType) populate(b *builder, parent Instance, name string) error {
	_, err := b.addParameter(parent, name, t, t, 1, t.def, t.hasDefault)
	return err
}

// ValuePair binds an enum literal to its numerical value.
type ValuePair struct {
	Literal   string
	Numerical int64
}

// EnumType maps literals to numerical values of a fixed size.
type EnumType struct {
	typeBase
	size       uint
	pairs      []ValuePair
	def        string
	hasDefault bool
}

func NewEnumType(name string) *EnumType {
	return &EnumType{typeBase: newTypeBase(name, KindEnumParameter), size: 8}
}

func (t *EnumType) Pairs() []ValuePair {
	out := make([]ValuePair, len(t.pairs))
	copy(out, t.pairs)
	return out
}

func (t *EnumType) FromDescription(n description.Node, _ *Registry) error {
	bits, err := description.UintOr(n, "Size", 8)
	if err != nil {
		return configErr(n.Path(), err, "bad Size")
	}
	if t.size, err = checkSize(n.Path(), bits); err != nil {
		return err
	}
	lo, _ := naturalRange(true, t.size)
	_, hi := naturalRange(false, t.size)
	seen := make(map[string]struct{})
	for _, c := range n.Children() {
		if c.Tag() != "ValuePair" {
			return configErr(c.Path(), nil, "unexpected %s in enum", c.Tag())
		}
		lit, err := description.String(c, "Literal")
		if err != nil {
			return configErr(c.Path(), err, "missing Literal")
		}
		num, err := description.Int(c, "Numerical")
		if err != nil {
			return configErr(c.Path(), err, "bad Numerical")
		}
		if num < lo || num > hi {
			return configErr(c.Path(), nil, "numerical %d does not fit %d bits", num, t.size)
		}
		if _, dup := seen[lit]; dup {
			return configErr(c.Path(), nil, "duplicate literal %q", lit)
		}
		seen[lit] = struct{}{}
		t.pairs = append(t.pairs, ValuePair{Literal: lit, Numerical: num})
	}
	if len(t.pairs) == 0 {
		return configErr(n.Path(), nil, "enum has no value pairs")
	}
	t.def, t.hasDefault = n.Attr("Default")
	if t.hasDefault {
		if _, err := t.AsInteger(t.def); err != nil {
			return configErr(n.Path(), err, "bad Default")
		}
	}
	t.loadShared(n)
	return nil
}

func (t *EnumType) ToDescription() *description.Element {
	el := t.sharedDescription(string(KindEnumParameter)).SetUint("Size", uint64(t.size))
	if t.hasDefault {
		el.Set("Default", t.def)
	}
	for _, p := range t.pairs {
		el.Add(description.NewElement("ValuePair").Set("Literal", p.Literal).SetInt("Numerical", p.Numerical))
	}
	return el
}

// AsInteger accepts a literal or one of the declared numerical values.
func (t *EnumType) AsInteger(value string) (uint32, error) {
	s := strings.TrimSpace(value)
	for _, p := range t.pairs {
		if p.Literal == s {
			return uint32(p.Numerical) & mask32(t.size), nil
		}
	}
	if v, _, err := parseInteger(s); err == nil {
		for _, p := range t.pairs {
			if p.Numerical == v {
				return uint32(v) & mask32(t.size), nil
			}
		}
	}
	return 0, valueErr(value, "not a literal of %s", t.Name())
}

func (t *EnumType) AsString(raw uint32) string {
	raw &= mask32(t.size)
	for _, p := range t.pairs {
		if uint32(p.Numerical)&mask32(t.size) == raw {
			return p.Literal
		}
	}
	return strconv.FormatUint(uint64(raw), 10)
}

func (t *EnumType) populate(b *builder, parent Instance, name string) error {
	_, err := b.addParameter(parent, name, t, t, int(t.size/8), t.def, t.hasDefault)
	return err
}

// ComputedSizeType takes its width from another parameter's current raw
// value, a bit count, at instantiation. Parameter is an absolute instance
// path or a path relative to the enclosing instance.
type ComputedSizeType struct {
	typeBase
	referent string
}

func NewComputedSizeType(name string) *ComputedSizeType {
	return &ComputedSizeType{typeBase: newTypeBase(name, KindComputedSizeParameter)}
}

// Referent is the path of the parameter whose value sizes this one.
func (t *ComputedSizeType) Referent() string {
	return t.referent
}

func (t *ComputedSizeType) FromDescription(n description.Node, _ *Registry) error {
	ref, err := description.String(n, "Parameter")
	if err != nil {
		return configErr(n.Path(), err, "missing Parameter")
	}
	if _, err := element.SplitPath(ref); err != nil || strings.Trim(ref, "/") == "" {
		return configErr(n.Path(), err, "bad Parameter reference %q", ref)
	}
	t.referent = ref
	t.loadShared(n)
	return nil
}

func (t *ComputedSizeType) ToDescription() *description.Element {
	return t.sharedDescription(string(KindComputedSizeParameter)).Set("Parameter", t.referent)
}

func (t *ComputedSizeType) populate(b *builder, parent Instance, name string) error {
	path := parent.Path() + "/" + name
	ref, err := b.resolveReferent(parent, t.referent)
	if err != nil {
		return configErr(path, err, "cannot size from %q", t.referent)
	}
	bits, err := b.bb.Read(ref.Region())
	if err != nil {
		return configErr(path, err, "cannot read %s", ref.Path())
	}
	size := int(bits / 8)
	if size < 1 || size > 4 {
		return configErr(path, nil, "computed size %d bits from %s is outside 8..32", bits, ref.Path())
	}
	_, err = b.addParameter(parent, name, t, unsignedCodec{bits: uint(size) * 8, max: uint64(mask32(uint(size) * 8))}, size, "", false)
	return err
}

// unsignedCodec is the codec of sized scalars without a declared type codec.
type unsignedCodec struct {
	bits uint
	max  uint64
}

func (c unsignedCodec) AsInteger(value string) (uint32, error) {
	v, _, err := parseInteger(strings.TrimSpace(value))
	if err != nil {
		return 0, valueErr(value, "not an integer")
	}
	if v < 0 || uint64(v) > c.max {
		return 0, valueErr(value, "out of range [0, %d]", c.max)
	}
	return uint32(v), nil
}

func (c unsignedCodec) AsString(raw uint32) string {
	return strconv.FormatUint(uint64(raw&mask32(c.bits)), 10)
}
