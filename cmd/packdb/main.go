package main

import (
	"fmt"
	"log"

	"github.com/packdb/packdb/core/cmd"
	"github.com/packdb/packdb/internal/app"
	"github.com/packdb/packdb/internal/config"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			cfg, ok := carrier.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			return app.New(cfg)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
