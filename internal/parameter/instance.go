package parameter

import (
	"github.com/danmuck/paramctl/internal/blackboard"
	"github.com/danmuck/paramctl/internal/element"
	"github.com/danmuck/paramctl/internal/syncer"
)

// Instance is one node of the instantiated tree. Every instance knows its own
// absolute path and the byte range it spans on the blackboard.
type Instance interface {
	element.Node
	Path() string
	// Type is nil for the system class and subsystems.
	Type() Type
	Offset() int
	Size() int
	Mapping() (string, bool)

	instance() *instanceBase
}

type instanceBase struct {
	element.Base
	path    string
	typ     Type
	mapping string
	offset  int
	size    int
	syncer  syncer.Syncer
}

func newInstanceBase(parentPath, name string, kind element.Kind, typ Type, mapping string) instanceBase {
	return instanceBase{
		Base:    element.NewBase(name, kind),
		path:    parentPath + "/" + name,
		typ:     typ,
		mapping: mapping,
	}
}

func (i *instanceBase) instance() *instanceBase { return i }

func (i *instanceBase) Path() string { return i.path }
func (i *instanceBase) Type() Type { return i.typ }
func (i *instanceBase) Offset() int { return i.offset }
func (i *instanceBase) Size() int { return i.size }

func (i *instanceBase) Mapping() (string, bool) {
	return i.mapping, i.mapping != ""
}

// Syncer is the syncer the mapping walk attached to this node, if any.
func (i *instanceBase) Syncer() syncer.Syncer {
	return i.syncer
}

// SystemClass is the root of the instance tree.
type SystemClass struct {
	instanceBase
}

func newSystemClass(name string) *SystemClass {
	return &SystemClass{instanceBase: newInstanceBase("", name, KindSystemClass, nil, "")}
}

// Subsystem owns one backend and the instances declared for it.
type Subsystem struct {
	instanceBase
	backendType string
	backend     syncer.Backend
}

func (s *Subsystem) BackendType() string {
	return s.backendType
}

func (s *Subsystem) Backend() syncer.Backend {
	return s.backend
}

// Block is a non-leaf instance: a parameter block, a component, a bit block,
// an array node or one array element.
type Block struct {
	instanceBase
}

// Parameter is a leaf owning a blackboard region.
type Parameter struct {
	instanceBase
	codec  Codec
	region blackboard.Region
}

func (p *Parameter) Region() blackboard.Region {
	return p.region
}

func (p *Parameter) Codec() Codec {
	return p.codec
}

// Raw reads the stored bits.
func (p *Parameter) Raw(bb *blackboard.Blackboard) (uint32, error) {
	return bb.Read(p.region)
}

// Value reads and formats the stored value.
func (p *Parameter) Value(bb *blackboard.Blackboard) (string, error) {
	raw, err := bb.Read(p.region)
	if err != nil {
		return "", err
	}
	return p.codec.AsString(raw), nil
}

// SetValue converts value and writes it. A rejected value leaves the
// blackboard untouched.
func (p *Parameter) SetValue(bb *blackboard.Blackboard, value string) error {
	raw, err := p.codec.AsInteger(value)
	if err != nil {
		return withPath(err, p.path)
	}
	return bb.Write(p.region, raw)
}
