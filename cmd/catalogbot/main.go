// Command catalogbot runs the catalog browser and inquiry bot.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/m3rciful/catalogbot/catalog/bot"
	corecmd "github.com/m3rciful/catalogbot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return bot.LoadConfig(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			c, ok := cfg.(*bot.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return bot.Bootstrap(ctx, c)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
