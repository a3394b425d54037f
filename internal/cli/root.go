// Package cli implements the outpost command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/outpost-game/outpost/internal/daemon"
	"github.com/outpost-game/outpost/internal/infra/observability"
	"github.com/outpost-game/outpost/internal/infra/sqlite"
)

// Version is stamped at build time.
var Version = "0.1.0"

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
	logJSON    bool

	cfg daemon.Config
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "outpost",
		Short: "Game-state service for the outpost survival game",
		Long: `outpost resolves resource-gathering actions against player stats,
draws rarity-weighted rewards, and gates story milestones behind progression
triggers. Run "outpost serve" for the HTTP API.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd.ErrOrStderr())
		},
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to outpost.toml")
	f.StringVar(&opts.dataDir, "data-dir", "", "Override storage.dir")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
	f.BoolVar(&opts.logJSON, "log-json", false, "Write logs as JSON")

	cmd.AddCommand(
		newServeCmd(opts),
		newSeedCmd(opts),
		newResolveCmd(opts),
		newActorCmd(opts),
		newMilestonesCmd(opts),
	)
	return cmd
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and installs the process logger.
func (o *rootOptions) setup(logOut io.Writer) error {
	cfg, err := daemon.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.dataDir != "" {
		cfg.Storage.Dir = o.dataDir
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logJSON {
		cfg.Log.JSON = true
	}
	o.cfg = cfg

	slog.SetDefault(observability.NewLogger(logOut, cfg.Log.Level, cfg.Log.JSON))
	return nil
}

// openDB opens the configured database. The caller must run cleanup.
func (o *rootOptions) openDB() (*sqlite.DB, func(), error) {
	db, err := sqlite.Open(o.cfg.Storage.Dir)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
