// Command server runs the group-chat backend.
//
//	server serve    # HTTP API + websocket sessions
//	server migrate  # create or update the schema and exit
//
// Configuration comes from the environment (see internal/config), optionally
// seeded from a .env file, with a few flag overrides.
package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-group-chat/internal/config"
	"github.com/tbourn/go-group-chat/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootFlags struct {
	envFile string
	dbPath  string
	port    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f rootFlags
	root := &cobra.Command{
		Use:           "server",
		Short:         "Group chat backend: join requests, presence and realtime fanout",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.envFile, "env-file", ".env", "dotenv file to load before reading the environment (missing file is ignored)")
	root.PersistentFlags().StringVar(&f.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	root.PersistentFlags().StringVar(&f.port, "port", "", "HTTP port (overrides PORT)")

	root.AddCommand(newServeCmd(&f), newMigrateCmd(&f))
	return root
}

// loadConfig reads the dotenv file, the environment and the flag overrides,
// and configures the global logger.
func loadConfig(f *rootFlags) (config.Config, error) {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, err
		}
	}
	if f.dbPath != "" {
		_ = os.Setenv("DB_PATH", f.dbPath)
	}
	if f.port != "" {
		_ = os.Setenv("PORT", f.port)
	}

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	sysutil.ConfigureLogger(os.Stderr, cfg.LogPretty)
	sysutil.SetLogLevel(cfg.LogLevel)
	log.Debug().Str("version", version).Msg("configuration loaded")
	return cfg, nil
}
