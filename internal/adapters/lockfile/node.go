package lockfile

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/bundle/internal/core/ports"
)

// NodeID is the unique identifier for the lock store Graft node.
const NodeID graft.ID = "adapter.lockfile"

func init() {
	graft.Register(graft.Node[ports.LockStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.LockStore, error) {
			return NewStore(), nil
		},
	})
}
