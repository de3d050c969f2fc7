package parameter

import (
	"math"
	"strconv"
	"strings"

	"github.com/danmuck/paramctl/internal/description"
)

// IntegerType is a signed or unsigned integer of 8, 16 or 32 bits, optionally
// exposed through a linear adaptation.
type IntegerType struct {
	typeBase
	signed     bool
	size       uint
	min, max   int64
	hasMin     bool
	hasMax     bool
	unit       string
	def        string
	hasDefault bool
	adaptation *LinearAdaptation
}

func NewIntegerType(name string) *IntegerType {
	t := &IntegerType{typeBase: newTypeBase(name, KindIntegerParameter), size: 32}
	t.min, t.max = naturalRange(t.signed, t.size)
	return t
}

func (t *IntegerType) Signed() bool { return t.signed }
func (t *IntegerType) SizeBits() uint { return t.size }
func (t *IntegerType) Range() (int64, int64) { return t.min, t.max }
func (t *IntegerType) Unit() string { return t.unit }
func (t *IntegerType) Adaptation() *LinearAdaptation { return t.adaptation }

func (t *IntegerType) FromDescription(n description.Node, _ *Registry) error {
	signed, err := description.BoolOr(n, "Signed", false)
	if err != nil {
		return configErr(n.Path(), err, "bad Signed")
	}
	bits, err := description.Uint(n, "Size")
	if err != nil {
		return configErr(n.Path(), err, "bad Size")
	}
	size, err := checkSize(n.Path(), bits)
	if err != nil {
		return err
	}
	t.signed, t.size = signed, size
	lo, hi := naturalRange(signed, size)
	t.min, t.max = lo, hi
	if n.HasAttr("Min") {
		if t.min, err = description.Int(n, "Min"); err != nil {
			return configErr(n.Path(), err, "bad Min")
		}
		t.hasMin = true
	}
	if n.HasAttr("Max") {
		if t.max, err = description.Int(n, "Max"); err != nil {
			return configErr(n.Path(), err, "bad Max")
		}
		t.hasMax = true
	}
	if t.min < lo || t.max > hi || t.min > t.max {
		return configErr(n.Path(), nil, "range [%d, %d] does not fit %d bits", t.min, t.max, size)
	}
	t.unit = description.StringOr(n, "Unit", "")
	if a, ok := description.FirstChild(n, TagLinearAdaptation); ok {
		if t.adaptation, err = loadLinearAdaptation(a); err != nil {
			return err
		}
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

func (t *IntegerType) ToDescription() *description.Element {
	el := t.sharedDescription(string(KindIntegerParameter)).
		SetBool("Signed", t.signed).
		SetUint("Size", uint64(t.size))
	if t.hasMin {
		el.SetInt("Min", t.min)
	}
	if t.hasMax {
		el.SetInt("Max", t.max)
	}
	if t.unit != "" {
		el.Set("Unit", t.unit)
	}
	if t.hasDefault {
		el.Set("Default", t.def)
	}
	if t.adaptation != nil {
		el.Add(t.adaptation.toDescription())
	}
	return el
}

// AsInteger converts a user value to the raw bits stored on the blackboard.
// Decimal and 0x prefixed hexadecimal are accepted; a hexadecimal literal on
// a signed type is taken as the raw bit pattern.
func (t *IntegerType) AsInteger(value string) (uint32, error) {
	s := strings.TrimSpace(value)
	var raw int64
	if t.adaptation != nil {
		user, err := parseUserNumber(s)
		if err != nil {
			return 0, valueErr(value, "not a number")
		}
		raw = t.adaptation.FromUserValue(user)
	} else {
		v, hex, err := parseInteger(s)
		if err != nil {
			return 0, valueErr(value, "not an integer")
		}
		if hex && t.signed && v >= 0 && uint64(v) <= uint64(mask32(t.size)) {
			v = signExtend(uint32(v), t.size)
		}
		raw = v
	}
	if raw < t.min || raw > t.max {
		return 0, valueErr(value, "out of range [%d, %d]", t.min, t.max)
	}
	return uint32(raw) & mask32(t.size), nil
}

func (t *IntegerType) AsString(raw uint32) string {
	raw &= mask32(t.size)
	var v int64
	if t.signed {
		v = signExtend(raw, t.size)
	} else {
		v = int64(raw)
	}
	if t.adaptation != nil {
		return strconv.FormatFloat(t.adaptation.ToUserValue(v), 'f', -1, 64)
	}
	return strconv.FormatInt(v, 10)
}

func (t *IntegerType) populate(b *builder, parent Instance, name string) error {
	_, err := b.addParameter(parent, name, t, t, int(t.size/8), t.def, t.hasDefault)
	return err
}

func naturalRange(signed bool, bits uint) (int64, int64) {
	if signed {
		return -(int64(1) << (bits - 1)), int64(1)<<(bits-1) - 1
	}
	return 0, int64(1)<<bits - 1
}

func mask32(bits uint) uint32 {
	if bits >= 32 {
		return math.MaxUint32
	}
	return uint32(1)<<bits - 1
}

func signExtend(raw uint32, bits uint) int64 {
	raw &= mask32(bits)
	if bits < 32 && raw&(1<<(bits-1)) != 0 {
		return int64(raw) - int64(1)<<bits
	}
	if bits >= 32 {
		return int64(int32(raw))
	}
	return int64(raw)
}

// parseInteger accepts decimal or 0x prefixed hexadecimal, with an optional
// sign. Leading zeros never switch to octal.
func parseInteger(s string) (int64, bool, error) {
	neg := false
	body := s
	if strings.HasPrefix(body, "-") || strings.HasPrefix(body, "+") {
		neg = body[0] == '-'
		body = body[1:]
	}
	if len(body) > 2 && (body[:2] == "0x" || body[:2] == "0X") {
		u, err := strconv.ParseUint(body[2:], 16, 63)
		if err != nil {
			return 0, true, err
		}
		v := int64(u)
		if neg {
			v = -v
		}
		return v, true, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, false, err
}

func parseUserNumber(s string) (float64, error) {
	if v, _, err := parseInteger(s); err == nil {
		return float64(v), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}
