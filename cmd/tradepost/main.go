package main

import (
	"context"

	"github.com/joho/godotenv"

	"tradepost/internal/app"
	"tradepost/pkg/config"
	"tradepost/pkg/logger"
	"tradepost/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Init()
		shutdown.Abort("config_load_failed", err, "", 0)
	}
	envUsed := config.ApplyEnv(cfg)

	logger.InitWithLevel(cfg.Logging.Level)

	// flags win over env and file for addr and db path
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := cfg.Storage.DBPath
	if dbPath == "" || setFlags["db"] {
		dbPath = dbVal
	}

	source := "flags"
	switch {
	case cfgPath != "":
		source = "config"
	case envUsed:
		source = "env"
	}

	a, err := app.New(cfg, addr, dbPath, source, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup_failed", err, dbPath, 0)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server_failed", err, dbPath, 0)
	}
	logger.Sync()
}
