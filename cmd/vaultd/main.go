package main

import (
	"flag"
	"os"

	"vaultfs/pkg/config"
	"vaultfs/pkg/log"
	"vaultfs/pkg/server"
	"vaultfs/pkg/users"
	"vaultfs/pkg/vault"
)

const storageDirPerm = 0o750

func main() {
	configFile := flag.String("config", "", "Optional YAML config file path")
	jsonLogs := flag.Bool("json-logs", false, "Emit JSON logs instead of console output")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.LogLevel == "debug" {
		log.SetDebugMode()
	}
	if *jsonLogs {
		log.SetJSONOutput()
	}

	for _, dir := range []string{cfg.DataDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, storageDirPerm); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("Failed to create storage directory")
		}
	}

	userStore, err := users.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("Failed to open user database")
	}
	defer func() { _ = userStore.Close() }()

	bootstrapAdmin(cfg, userStore)

	vaultStore := vault.New(cfg.DataDir, cfg.TempDir)
	srv := server.New(cfg, userStore, vaultStore)

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}

	os.Exit(0)
}

// bootstrapAdmin creates the configured initial admin account when the user
// database is empty.
func bootstrapAdmin(cfg *config.Config, userStore *users.Store) {
	if cfg.Bootstrap.Username == "" {
		return
	}

	existing, err := userStore.List()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to inspect user database")
	}
	if len(existing) > 0 {
		return
	}

	admin, err := userStore.Create(cfg.Bootstrap.Username, cfg.Bootstrap.Password, true, cfg.DefaultQuotaBytes)
	if err != nil {
		log.Fatal().Err(err).Str("username", cfg.Bootstrap.Username).Msg("Failed to create bootstrap admin")
	}
	log.Info().Str("username", admin.Username).Msg("Bootstrap admin created")
}
