package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/termbridge/pkg/log"
)

type ServerConfig struct {
	Addr string `env:"TB_HTTP_ADDR" envDefault:":8000"`

	// APIToken is the shared secret: HTTP callers present it as the
	// basic-auth password, WebSocket callers as the token query param.
	APIToken string `env:"API_TOKEN,required,notEmpty"`

	RateLimitPerSec float64 `env:"RATE_LIMIT_RPS" envDefault:"1"`
	RateLimitBurst  int     `env:"RATE_LIMIT_BURST" envDefault:"3"`
}

func NewServerConfig(ctx context.Context) *ServerConfig {
	c := &ServerConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Server config")
	}
	return c
}
