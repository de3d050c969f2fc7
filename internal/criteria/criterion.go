// Package criteria owns the selection criteria and the rules evaluated
// against them.
//
// Ownership boundary:
// - named finite-valued criteria (exclusive or inclusive) and their state
// - the criteria definition set and its description load/save
// - rule trees (compound and per-criterion) with a textual form
//
// Criteria hold no reference to domains; the engine re-evaluates domains
// after a state change.
package criteria

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

var (
	ErrUnknownCriterion = errors.New("criteria: unknown criterion")
	ErrUnknownValue     = errors.New("criteria: unknown criterion value")
	ErrDuplicate        = errors.New("criteria: duplicate")
	ErrBadState         = errors.New("criteria: invalid state")
)

// MaxValues is the number of distinct values an inclusive criterion can hold.
const MaxValues = 32

// Kind tells whether a criterion holds exactly one value or any subset.
type Kind int

const (
	Exclusive Kind = iota
	Inclusive
)

func (k Kind) String() string {
	if k == Inclusive {
		return "Inclusive"
	}
	return "Exclusive"
}

// ParseKind accepts "Exclusive" or "Inclusive", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exclusive":
		return Exclusive, nil
	case "inclusive":
		return Inclusive, nil
	default:
		return Exclusive, fmt.Errorf("criteria: unknown criterion kind %q", s)
	}
}

// Criterion is one named fact. An exclusive state is the index of its value;
// an inclusive state is a bit set of value indices.
type Criterion struct {
	name   string
	kind   Kind
	values []string
	index  map[string]int
	state  uint32
}

// New declares a criterion. The first value is the initial state of an
// exclusive criterion; inclusive criteria start empty.
func New(name string, kind Kind, values ...string) (*Criterion, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("criteria: empty criterion name")
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("criteria: %s has no values", name)
	}
	if kind == Inclusive && len(values) > MaxValues {
		return nil, fmt.Errorf("criteria: %s has %d values, inclusive criteria hold at most %d", name, len(values), MaxValues)
	}
	c := &Criterion{name: name, kind: kind, index: make(map[string]int, len(values))}
	for _, v := range values {
		if v == "" || strings.ContainsAny(v, " \t{},|") {
			return nil, fmt.Errorf("criteria: %s: invalid value %q", name, v)
		}
		if _, dup := c.index[v]; dup {
			return nil, fmt.Errorf("%w: value %q in %s", ErrDuplicate, v, name)
		}
		c.index[v] = len(c.values)
		c.values = append(c.values, v)
	}
	return c, nil
}

func (c *Criterion) Name() string { return c.name }
func (c *Criterion) Kind() Kind { return c.kind }

// Values lists the declared values in declaration order.
func (c *Criterion) Values() []string {
	out := make([]string, len(c.values))
	copy(out, c.values)
	return out
}

// Has reports whether v is a declared value.
func (c *Criterion) Has(v string) bool {
	_, ok := c.index[v]
	return ok
}

// State returns the current values: one for an exclusive criterion, any
// number for an inclusive one.
func (c *Criterion) State() []string {
	if c.kind == Exclusive {
		return []string{c.values[c.state]}
	}
	out := make([]string, 0, bits.OnesCount32(c.state))
	for i, v := range c.values {
		if c.state&(1<<uint(i)) != 0 {
			out = append(out, v)
		}
	}
	return out
}

// FormattedState renders the state as "A|B", or "<none>" for an empty
// inclusive criterion.
func (c *Criterion) FormattedState() string {
	st := c.State()
	if len(st) == 0 {
		return "<none>"
	}
	return strings.Join(st, "|")
}

// SetState replaces the state and reports whether it changed. Values may be
// passed as separate arguments or joined with "|".
func (c *Criterion) SetState(values ...string) (bool, error) {
	var names []string
	for _, v := range values {
		for _, part := range strings.Split(v, "|") {
			if part = strings.TrimSpace(part); part != "" && part != "<none>" {
				names = append(names, part)
			}
		}
	}
	if c.kind == Exclusive && len(names) != 1 {
		return false, fmt.Errorf("%w: %s is exclusive and takes exactly one value (got %d)", ErrBadState, c.name, len(names))
	}
	var next uint32
	for _, n := range names {
		i, ok := c.index[n]
		if !ok {
			return false, fmt.Errorf("%w: %q for %s (have %s)", ErrUnknownValue, n, c.name, strings.Join(c.values, ", "))
		}
		if c.kind == Exclusive {
			next = uint32(i)
		} else {
			next |= 1 << uint(i)
		}
	}
	changed := next != c.state
	c.state = next
	return changed, nil
}

func (c *Criterion) position(v string) (int, error) {
	i, ok := c.index[v]
	if !ok {
		return 0, fmt.Errorf("%w: %q for %s", ErrUnknownValue, v, c.name)
	}
	return i, nil
}

// bit is only meaningful for inclusive criteria, which hold at most
// MaxValues values.
func (c *Criterion) bit(v string) (uint32, error) {
	i, err := c.position(v)
	if err != nil {
		return 0, err
	}
	return 1 << uint(i), nil
}

// Is is true when the state is exactly v. An exclusive state is the value
// index, so it is compared directly.
func (c *Criterion) Is(v string) (bool, error) {
	if c.kind == Exclusive {
		i, err := c.position(v)
		if err != nil {
			return false, err
		}
		return c.state == uint32(i), nil
	}
	b, err := c.bit(v)
	if err != nil {
		return false, err
	}
	return c.state == b, nil
}

// Includes is true when v is part of the state. For an exclusive criterion
// it is the same as Is.
func (c *Criterion) Includes(v string) (bool, error) {
	if c.kind == Exclusive {
		return c.Is(v)
	}
	b, err := c.bit(v)
	if err != nil {
		return false, err
	}
	return c.state&b != 0, nil
}
