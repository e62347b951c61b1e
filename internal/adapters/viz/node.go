package viz

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/bundle/internal/core/ports"
)

// NodeID is the unique identifier for the graph renderer Graft node.
const NodeID graft.ID = "adapter.viz"

func init() {
	graft.Register(graft.Node[ports.GraphRenderer]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.GraphRenderer, error) {
			return NewRenderer(Options{Versions: true}), nil
		},
	})
}
