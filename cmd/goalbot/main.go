// Command goalbot runs the goal-tracking Telegram bot.
package main

import (
	"log"

	"github.com/m3rciful/goalbot/bot/app"
	"github.com/m3rciful/goalbot/bot/config"
	corecmd "github.com/m3rciful/goalbot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.New(cfg.(*config.Config), app.Options{})
		},
	})
	if err != nil {
		log.Fatalf("goalbot: %v", err)
	}
}
