package parameter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/paramctl/internal/blackboard"
	"github.com/danmuck/paramctl/internal/element"
	"github.com/danmuck/paramctl/internal/syncer"
)

// Structure is one built instance tree with its blackboard and backends.
// It does no locking; the engine serializes access.
type Structure struct {
	def        *SystemDefinition
	root       *SystemClass
	bb         *blackboard.Blackboard
	subsystems []*Subsystem
}

func (s *Structure) Definition() *SystemDefinition { return s.def }
func (s *Structure) Root() *SystemClass { return s.root }
func (s *Structure) Blackboard() *blackboard.Blackboard { return s.bb }

func (s *Structure) Subsystems() []*Subsystem {
	out := make([]*Subsystem, len(s.subsystems))
	copy(out, s.subsystems)
	return out
}

// Close releases every backend and reports the first failure.
func (s *Structure) Close() error {
	var first error
	for _, sub := range s.subsystems {
		if sub.backend == nil {
			continue
		}
		if err := sub.backend.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// trail resolves an absolute instance path to the nodes from the system class
// down to the target.
func (s *Structure) trail(path string) ([]Instance, error) {
	parts, err := element.SplitPath(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 || parts[0] != s.root.Name() {
		seg := ""
		if len(parts) > 0 {
			seg = parts[0]
		}
		return nil, &element.PathNotFoundError{Path: path, Segment: seg}
	}
	out := []Instance{s.root}
	var cur Instance = s.root
	for _, seg := range parts[1:] {
		next, ok := cur.FindChild(seg)
		if !ok {
			return nil, &element.PathNotFoundError{Path: path, Segment: seg}
		}
		cur = next.(Instance)
		out = append(out, cur)
	}
	return out, nil
}

// Resolve returns the instance at an absolute path such as "/Sys/Sub/p".
func (s *Structure) Resolve(path string) (Instance, error) {
	tr, err := s.trail(path)
	if err != nil {
		return nil, err
	}
	return tr[len(tr)-1], nil
}

// Parameter resolves path and requires a leaf.
func (s *Structure) Parameter(path string) (*Parameter, error) {
	inst, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	p, ok := inst.(*Parameter)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotParameter, path, inst.Kind())
	}
	return p, nil
}

// Get returns the textual value of a parameter.
func (s *Structure) Get(path string) (string, error) {
	p, err := s.Parameter(path)
	if err != nil {
		return "", err
	}
	return p.Value(s.bb)
}

// Set writes a textual value and returns the syncers owning the parameter.
// Nothing is pushed; the caller decides when to sync.
func (s *Structure) Set(path, value string) (*syncer.Set, error) {
	p, err := s.Parameter(path)
	if err != nil {
		return nil, err
	}
	if err := p.SetValue(s.bb, value); err != nil {
		return nil, err
	}
	return s.SyncerSetFor(path)
}

// SyncerSetFor collects the syncer owning path, the deepest one on its trail,
// plus every syncer mapped below it.
func (s *Structure) SyncerSetFor(path string) (*syncer.Set, error) {
	tr, err := s.trail(path)
	if err != nil {
		return nil, err
	}
	set := syncer.NewSet()
	for i := len(tr) - 1; i >= 0; i-- {
		if sy := tr[i].instance().syncer; sy != nil {
			set.Add(sy)
			break
		}
	}
	target := tr[len(tr)-1]
	element.Walk(target, func(_ string, n element.Node) bool {
		if inst, ok := n.(Instance); ok && n != element.Node(target) {
			set.Add(inst.instance().syncer)
		}
		return true
	})
	return set, nil
}

// SyncAll collects every syncer of the tree.
func (s *Structure) SyncAll() *syncer.Set {
	set, _ := s.SyncerSetFor("/" + s.root.Name())
	return set
}

// Parameters lists the leaves below path in tree order.
func (s *Structure) Parameters(path string) ([]*Parameter, error) {
	inst, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	var out []*Parameter
	element.Walk(inst, func(_ string, n element.Node) bool {
		if p, ok := n.(*Parameter); ok {
			out = append(out, p)
		}
		return true
	})
	return out, nil
}

// Bytes returns a copy of the blackboard range of path.
func (s *Structure) Bytes(path string) ([]byte, error) {
	inst, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	return s.bb.ReadBytes(inst.Offset(), inst.Size())
}

// Property is one line of an element's property sheet.
type Property struct {
	Key   string
	Value string
}

// Properties describes the instance at path.
func (s *Structure) Properties(path string) ([]Property, error) {
	inst, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	props := []Property{
		{Key: "Kind", Value: string(inst.Kind())},
		{Key: "Path", Value: inst.Path()},
		{Key: "Offset", Value: strconv.Itoa(inst.Offset())},
		{Key: "Size", Value: strconv.Itoa(inst.Size())},
	}
	if t := inst.Type(); t != nil {
		props = append(props, Property{Key: "Type", Value: t.Name()})
		if d := t.common().description; d != "" {
			props = append(props, Property{Key: "Description", Value: d})
		}
	}
	if m, ok := inst.Mapping(); ok {
		props = append(props, Property{Key: "Mapping", Value: m})
	}
	switch v := inst.(type) {
	case *Subsystem:
		props = append(props, Property{Key: "Backend", Value: v.backendType})
	case *Parameter:
		props = append(props, Property{Key: "Region", Value: v.region.String()})
		props = append(props, typeProperties(v.typ)...)
	}
	if inst.HasDynamicChildren() {
		props = append(props, Property{Key: "ArrayLength", Value: strconv.Itoa(inst.NbChildren())})
	}
	if set, err := s.SyncerSetFor(path); err == nil {
		props = append(props, Property{Key: "Syncers", Value: strconv.Itoa(set.Len())})
	}
	return props, nil
}

func typeProperties(t Type) []Property {
	switch v := t.(type) {
	case *IntegerType:
		lo, hi := v.Range()
		props := []Property{
			{Key: "Signed", Value: strconv.FormatBool(v.signed)},
			{Key: "Range", Value: fmt.Sprintf("[%d, %d]", lo, hi)},
		}
		if v.unit != "" {
			props = append(props, Property{Key: "Unit", Value: v.unit})
		}
		if a := v.adaptation; a != nil {
			props = append(props, Property{Key: "Adaptation", Value: fmt.Sprintf("%g/%g%+d", a.SlopeNumerator, a.SlopeDenominator, a.Offset)})
		}
		return props
	case *EnumType:
		lits := make([]string, 0, len(v.pairs))
		for _, p := range v.pairs {
			lits = append(lits, fmt.Sprintf("%s=%d", p.Literal, p.Numerical))
		}
		return []Property{{Key: "Values", Value: strings.Join(lits, ",")}}
	case *ComputedSizeType:
		return []Property{{Key: "SizeFrom", Value: v.Referent()}}
	case *BitParameterType:
		return []Property{{Key: "Max", Value: strconv.FormatUint(v.max, 10)}}
	default:
		return nil
	}
}

// ListElements returns the children of path as "name [Kind]".
func (s *Structure) ListElements(path string) ([]string, error) {
	inst, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, inst.NbChildren())
	for i := 0; i < inst.NbChildren(); i++ {
		c := inst.Child(i)
		out = append(out, fmt.Sprintf("%s [%s]", c.Name(), c.Kind()))
	}
	return out, nil
}

// Dump renders the subtree at path with the value of every parameter.
func (s *Structure) Dump(path string) (string, error) {
	inst, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	depth := strings.Count(inst.Path(), "/")
	var readErr error
	element.Walk(inst, func(_ string, n element.Node) bool {
		in := n.(Instance)
		indent := strings.Repeat("  ", strings.Count(in.Path(), "/")-depth)
		fmt.Fprintf(&sb, "%s%s [%s]", indent, in.Name(), in.Kind())
		if p, ok := in.(*Parameter); ok {
			v, err := p.Value(s.bb)
			if err != nil && readErr == nil {
				readErr = err
			}
			fmt.Fprintf(&sb, " = %s", v)
		}
		sb.WriteByte('\n')
		return true
	})
	return sb.String(), readErr
}

// IsNotFound reports whether err is a missing path.
func IsNotFound(err error) bool {
	return errors.Is(err, element.ErrPathNotFound)
}
