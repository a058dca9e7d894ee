package main

import (
	"os"

	"github.com/fenilmodi00/ipo-admin/cli"
	"github.com/fenilmodi00/ipo-admin/config"
)

func main() {
	cfg := config.LoadConfig()
	config.ConfigureLogging(cfg.LogLevel, cfg.LogFormat)

	os.Exit(cli.Execute(cfg))
}
