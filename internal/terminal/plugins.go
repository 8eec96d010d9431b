package terminal

import (
	"context"

	"github.com/sandevgo/termbridge/internal/core"
)

// PingProvider contributes the connectivity check command.
func PingProvider() core.Provider {
	return func() ([]core.Command, error) {
		return []core.Command{
			{
				Name:        "/ping",
				Description: "connectivity check",
				Handler: func(ctx context.Context, line string) (core.Reply, error) {
					return core.NewReply("pong"), nil
				},
			},
		}, nil
	}
}
