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

var (
	ErrUnknownComponent = errors.New("parameter: unknown component type")
	ErrComponentCycle   = errors.New("parameter: component includes itself")
)

// builder instantiates types depth first. The blackboard grows as leaves are
// reached, so a node is attached (and addressable) before its children are
// populated and defaults are readable by later siblings.
type builder struct {
	bb      *blackboard.Blackboard
	root    *SystemClass
	library element.Node
	active  map[string]struct{}
}

func (b *builder) addParameter(parent Instance, name string, t Type, codec Codec, bytes int, def string, hasDefault bool) (*Parameter, error) {
	offset := b.bb.Extend(bytes)
	return b.addRegion(parent, name, t, codec, blackboard.ByteRegion(offset, bytes), def, hasDefault)
}

func (b *builder) addRegion(parent Instance, name string, t Type, codec Codec, region blackboard.Region, def string, hasDefault bool) (*Parameter, error) {
	p := &Parameter{
		instanceBase: newInstanceBase(parent.Path(), name, t.Kind(), t, t.common().mapping),
		codec:        codec,
		region:       region,
	}
	p.offset = region.Offset
	p.size = region.Bytes()
	if err := parent.AddChild(p); err != nil {
		return nil, configErr(p.path, err, "cannot attach")
	}
	if !hasDefault {
		return p, nil
	}
	raw, err := codec.AsInteger(def)
	if err != nil {
		return nil, configErr(p.path, err, "bad default")
	}
	if err := b.bb.Write(region, raw); err != nil {
		return nil, configErr(p.path, err, "cannot write default")
	}
	return p, nil
}

func (b *builder) newBlock(parent Instance, name string, t Type, mapping string) (*Block, error) {
	blk := &Block{instanceBase: newInstanceBase(parent.Path(), name, t.Kind(), t, mapping)}
	blk.offset = b.bb.Size()
	if err := parent.AddChild(blk); err != nil {
		return nil, configErr(blk.path, err, "cannot attach")
	}
	return blk, nil
}

// populateArray creates the node for t under parent. With n > 0 the node is
// an array whose dynamic children "0".."n-1" are each filled; otherwise the
// node itself is filled.
func (b *builder) populateArray(parent Instance, name string, t Type, mapping string, n uint64, fill func(*Block) error) error {
	blk, err := b.newBlock(parent, name, t, mapping)
	if err != nil {
		return err
	}
	if n == 0 {
		if err := fill(blk); err != nil {
			return err
		}
		blk.size = b.bb.Size() - blk.offset
		return nil
	}
	blk.SetDynamicChildren(true)
	for i := uint64(0); i < n; i++ {
		item, err := b.newBlock(blk, strconv.FormatUint(i, 10), t, "")
		if err != nil {
			return err
		}
		if err := fill(item); err != nil {
			return err
		}
		item.size = b.bb.Size() - item.offset
	}
	blk.size = b.bb.Size() - blk.offset
	return nil
}

func (b *builder) populateChildren(blk *Block, t element.Node) error {
	for _, child := range childTypes(t) {
		if err := child.populate(b, blk, child.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) component(name string) (*ComponentType, error) {
	if b.library != nil {
		if n, ok := b.library.FindChild(name); ok {
			if ct, ok := n.(*ComponentType); ok {
				return ct, nil
			}
		}
	}
	return nil, ErrUnknownComponent
}

func (b *builder) enter(name string) error {
	if _, ok := b.active[name]; ok {
		return ErrComponentCycle
	}
	b.active[name] = struct{}{}
	return nil
}

func (b *builder) leave(name string) {
	delete(b.active, name)
}

// resolveReferent finds an already instantiated parameter. Absolute paths
// start at the system class; relative ones at the enclosing instance.
func (b *builder) resolveReferent(parent Instance, ref string) (*Parameter, error) {
	var (
		n   element.Node
		err error
	)
	if strings.HasPrefix(ref, "/") {
		n, err = element.Locator{SubRoot: b.root, Strict: true}.Locate(ref)
	} else {
		n, err = element.FindDescendant(parent, ref)
	}
	if err != nil {
		return nil, err
	}
	p, ok := n.(*Parameter)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotParameter, ref)
	}
	return p, nil
}

// Build instantiates def into a fresh instance tree and blackboard, then maps
// every subsystem onto a backend created from backends. Instantiation and
// mapping stop at the first error.
func Build(def *SystemDefinition, backends *syncer.Registry) (*Structure, error) {
	s := &Structure{
		def:  def,
		root: newSystemClass(def.Name()),
		bb:   blackboard.New(0),
	}
	b := &builder{bb: s.bb, root: s.root, active: make(map[string]struct{})}
	for _, subDef := range def.Subsystems() {
		sub := &Subsystem{
			instanceBase: newInstanceBase(s.root.path, subDef.Name(), KindSubsystem, nil, subDef.mapping),
			backendType:  subDef.backend,
		}
		sub.offset = s.bb.Size()
		if err := s.root.AddChild(sub); err != nil {
			return nil, configErr(sub.path, err, "cannot attach")
		}
		b.library = subDef.library
		for _, t := range subDef.Instances() {
			if err := t.populate(b, sub, t.Name()); err != nil {
				return nil, err
			}
		}
		sub.size = s.bb.Size() - sub.offset
		s.subsystems = append(s.subsystems, sub)
	}
	s.root.size = s.bb.Size()
	if err := s.mapBackends(backends); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// mapBackends gives each subsystem its backend's default syncer, then offers
// every mapped element to the backend, parents before children.
func (s *Structure) mapBackends(reg *syncer.Registry) error {
	for _, sub := range s.subsystems {
		backend, err := reg.Create(sub.backendType, sub.Name())
		if err != nil {
			return configErr(sub.path, err, "no backend")
		}
		sub.backend = backend
		if sub.syncer, err = backend.DefaultSyncer(sub); err != nil {
			return configErr(sub.path, err, "default syncer")
		}
		var walkErr error
		element.Walk(sub, func(_ string, n element.Node) bool {
			if walkErr != nil {
				return false
			}
			inst, ok := n.(Instance)
			if !ok || n == element.Node(sub) {
				return true
			}
			ib := inst.instance()
			if ib.mapping == "" {
				return true
			}
			sy, err := backend.MapElement(inst)
			if err != nil {
				walkErr = configErr(ib.path, err, "mapping %q", ib.mapping)
				return false
			}
			ib.syncer = sy
			return true
		})
		if walkErr != nil {
			return walkErr
		}
	}
	return nil
}
