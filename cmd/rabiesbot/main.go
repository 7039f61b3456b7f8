package main

import (
	"context"
	"fmt"
	"os"

	corecmd "github.com/m3rciful/rabiesbot/core/cmd"
	"github.com/m3rciful/rabiesbot/internal/app"
	"github.com/m3rciful/rabiesbot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return app.New(ctx, appCfg)
		},
	})
	if err != nil {
		// Run has logged the error through the structured logger.
		os.Exit(1)
	}
}
