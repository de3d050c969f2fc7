package syncer

import (
	"fmt"

	"github.com/danmuck/paramctl/internal/blackboard"
)

const VirtualType = "Virtual"

// VirtualBackend holds parameters that exist only in memory. It refuses every
// hardware mapping and its syncer always succeeds.
type VirtualBackend struct {
	syncer *virtualSyncer
}

type virtualSyncer struct{}

func (*virtualSyncer) Sync(*blackboard.Blackboard, bool) error {
	return nil
}

func NewVirtualBackend(PluginConfig) (Backend, error) {
	return &VirtualBackend{syncer: &virtualSyncer{}}, nil
}

func (b *VirtualBackend) Type() string {
	return VirtualType
}

func (b *VirtualBackend) DefaultSyncer(Target) (Syncer, error) {
	return b.syncer, nil
}

func (b *VirtualBackend) MapElement(t Target) (Syncer, error) {
	mapping, _ := t.Mapping()
	return nil, fmt.Errorf("%w: %s: virtual subsystem cannot map %q", ErrMappingRejected, t.Path(), mapping)
}

func (b *VirtualBackend) Close() error {
	return nil
}
