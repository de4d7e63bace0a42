package mcpb

import (
	"context"
	"os"

	"github.com/viant/mcpb/bridge"
)

// NewBridge creates a bridge service on the process stdin and stdout
func NewBridge(ctx context.Context, options *bridge.Options) (*bridge.Service, error) {
	return bridge.New(ctx, options, os.Stdin, os.Stdout)
}
