package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix is prepended to every variable name in Config's env tags.
const EnvPrefix = "GOPHAUTH_"

func osLookuper() envconfig.Lookuper {
	return envconfig.PrefixLookuper(EnvPrefix, envconfig.OsLookuper())
}

// parseEnv overlays variables found by l onto config. Unset variables leave
// the current value in place.
func parseEnv(ctx context.Context, config *Config, l envconfig.Lookuper) error {
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           config,
		Lookuper:         l,
		DefaultOverwrite: true,
	})
	if err != nil {
		return fmt.Errorf("env config: %w", err)
	}
	return nil
}
