package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"batchscore/internal/config"
	"batchscore/internal/engine"
	"batchscore/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file with BATCHSCORE__ overrides (optional)")
	flag.Parse()
	log.SetFlags(0)
	logging.InitFromEnv()

	cfg, err := config.Load(config.Options{
		File:         *cfgPath,
		EnvFile:      *envFile,
		FileRequired: *cfgPath != "",
	})
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.L().Debug("config loaded", "file", *cfgPath, "schema_version", cfg.SchemaVersion)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	summary, err := e.Run(ctx)
	if err != nil {
		stop()
		log.Fatalf("batchscore: %v", err)
	}
	fmt.Println(summary)
}
