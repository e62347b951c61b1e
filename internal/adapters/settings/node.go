package settings

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/bundle/internal/core/ports"
)

// NodeID is the unique identifier for the settings Graft node.
const NodeID graft.ID = "adapter.settings"

func init() {
	graft.Register(graft.Node[ports.SettingsLoader]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.SettingsLoader, error) {
			return New(), nil
		},
	})
}
