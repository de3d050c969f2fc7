package criteria

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/paramctl/internal/description"
)

var ErrBadRule = errors.New("criteria: malformed rule")

const (
	TagCompoundRule  = "CompoundRule"
	TagCriterionRule = "SelectionCriterionRule"
)

// Rule is a pure predicate over the criteria states.
type Rule interface {
	Matches(d *Definition) (bool, error)
	// Validate checks every referenced criterion and value exists.
	Validate(d *Definition) error
	String() string
	ToDescription() *description.Element
}

// CompoundType joins the sub-rules of a CompoundRule.
type CompoundType int

const (
	All CompoundType = iota
	Any
)

func (t CompoundType) String() string {
	if t == Any {
		return "Any"
	}
	return "All"
}

// CompoundRule matches when all (or any) of its rules match. An empty All
// always matches; an empty Any never does.
type CompoundRule struct {
	Type  CompoundType
	Rules []Rule
}

func (r *CompoundRule) Matches(d *Definition) (bool, error) {
	for _, sub := range r.Rules {
		ok, err := sub.Matches(d)
		if err != nil {
			return false, err
		}
		if r.Type == All && !ok {
			return false, nil
		}
		if r.Type == Any && ok {
			return true, nil
		}
	}
	return r.Type == All, nil
}

func (r *CompoundRule) Validate(d *Definition) error {
	for _, sub := range r.Rules {
		if err := sub.Validate(d); err != nil {
			return err
		}
	}
	return nil
}

func (r *CompoundRule) String() string {
	parts := make([]string, len(r.Rules))
	for i, sub := range r.Rules {
		parts[i] = sub.String()
	}
	return r.Type.String() + "{" + strings.Join(parts, ", ") + "}"
}

func (r *CompoundRule) ToDescription() *description.Element {
	el := description.NewElement(TagCompoundRule).Set("Type", r.Type.String())
	for _, sub := range r.Rules {
		el.Add(sub.ToDescription())
	}
	return el
}

// MatchMethod is the comparison a CriterionRule applies.
type MatchMethod int

const (
	Is MatchMethod = iota
	IsNot
	Includes
	Excludes
)

var methodNames = [...]string{"Is", "IsNot", "Includes", "Excludes"}

func (m MatchMethod) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "Unknown"
}

func ParseMatchMethod(s string) (MatchMethod, error) {
	for i, name := range methodNames {
		if s == name {
			return MatchMethod(i), nil
		}
	}
	return Is, fmt.Errorf("%w: unknown match method %q", ErrBadRule, s)
}

// CriterionRule compares one criterion with one of its values.
type CriterionRule struct {
	Criterion   string
	MatchesWhen MatchMethod
	Value       string
}

func (r *CriterionRule) Matches(d *Definition) (bool, error) {
	c, err := d.Get(r.Criterion)
	if err != nil {
		return false, err
	}
	switch r.MatchesWhen {
	case Is:
		return c.Is(r.Value)
	case IsNot:
		ok, err := c.Is(r.Value)
		return !ok, err
	case Includes:
		return c.Includes(r.Value)
	case Excludes:
		ok, err := c.Includes(r.Value)
		return !ok, err
	default:
		return false, fmt.Errorf("%w: match method %d", ErrBadRule, r.MatchesWhen)
	}
}

func (r *CriterionRule) Validate(d *Definition) error {
	c, err := d.Get(r.Criterion)
	if err != nil {
		return err
	}
	if !c.Has(r.Value) {
		return fmt.Errorf("%w: %q for %s", ErrUnknownValue, r.Value, r.Criterion)
	}
	return nil
}

func (r *CriterionRule) String() string {
	return r.Criterion + " " + r.MatchesWhen.String() + " " + r.Value
}

func (r *CriterionRule) ToDescription() *description.Element {
	return description.NewElement(TagCriterionRule).
		Set("SelectionCriterion", r.Criterion).
		Set("MatchesWhen", r.MatchesWhen.String()).
		Set("Value", r.Value)
}

// LoadRule reads a rule description tree.
func LoadRule(n description.Node) (Rule, error) {
	switch n.Tag() {
	case TagCompoundRule:
		typ := All
		switch description.StringOr(n, "Type", "All") {
		case "All":
		case "Any":
			typ = Any
		default:
			return nil, fmt.Errorf("%w: %s: compound type must be All or Any", ErrBadRule, n.Path())
		}
		r := &CompoundRule{Type: typ}
		for _, c := range n.Children() {
			sub, err := LoadRule(c)
			if err != nil {
				return nil, err
			}
			r.Rules = append(r.Rules, sub)
		}
		return r, nil
	case TagCriterionRule:
		crit, err := description.String(n, "SelectionCriterion")
		if err != nil {
			return nil, err
		}
		method, err := ParseMatchMethod(description.StringOr(n, "MatchesWhen", ""))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.Path(), err)
		}
		value, err := description.String(n, "Value")
		if err != nil {
			return nil, err
		}
		return &CriterionRule{Criterion: crit, MatchesWhen: method, Value: value}, nil
	default:
		return nil, fmt.Errorf("%w: %s: unexpected %s", ErrBadRule, n.Path(), n.Tag())
	}
}
