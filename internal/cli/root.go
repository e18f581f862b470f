// Package cli implements the milo-memory CLI commands.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/milohq/milo-memory/internal/activity"
	"github.com/milohq/milo-memory/internal/apperr"
	"github.com/milohq/milo-memory/internal/config"
	"github.com/milohq/milo-memory/internal/curated"
	"github.com/milohq/milo-memory/internal/dailylog"
	"github.com/milohq/milo-memory/internal/hybrid"
	"github.com/milohq/milo-memory/internal/logging"
	"github.com/milohq/milo-memory/internal/store"
)

var (
	settings = config.New()

	cfg    *config.Config
	logger = zap.NewNop()

	red = color.New(color.FgRed, color.Bold).SprintFunc()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "milo-memory",
	Short: "Persistent memory tools for an agent",
	Long: "Memory tools for an agent workspace: a SQLite entry store, a curated MEMORY.md,\n" +
		"dated daily logs, and a hybrid search over all three. Text in, text out.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringP("workspace", "w", "", "Workspace root (default: $MILO_WORKSPACE or the current directory)")
	pf.StringP("db", "d", "", "Entry database path (default: <workspace>/data/memory.db)")
	pf.String("log-level", "", "Diagnostic log level: debug, info, warn, error")

	settings.BindPFlag("workspace", pf.Lookup("workspace"))
	settings.BindPFlag("db_path", pf.Lookup("db"))
	settings.BindPFlag("log.level", pf.Lookup("log-level"))
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(settings)
	if err != nil {
		return err
	}
	l, err := logging.New(logging.Options{Level: c.LogLevel, Format: c.LogFormat, Output: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	cfg, logger = c, l
	logger.Debug("config loaded",
		zap.String("workspace", c.Workspace),
		zap.String("config_file", c.ConfigFile))
	return nil
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath, store.WithLogger(logger))
}

func openActivity() (*activity.Store, error) {
	return activity.Open(cfg.ActivityDBPath, activity.WithLogger(logger))
}

func curatedDoc() *curated.Document {
	return curated.New(cfg.MemoryFile, curated.WithLogger(logger))
}

func dailyLog() *dailylog.Log {
	return dailylog.New(cfg.LogsDir, dailylog.WithLogger(logger))
}

// coordinator wires the three memory sources. A store that failed to open
// is passed as a nil interface so the coordinator skips it.
func coordinator(s *store.SQLiteStore) *hybrid.Coordinator {
	var entries hybrid.EntrySource
	if s != nil {
		entries = s
	}
	return hybrid.New(entries, curatedDoc(), dailyLog(),
		hybrid.WithLogger(logger),
		hybrid.WithRecentLogFiles(cfg.RecentLogFiles))
}

// reportErr prints a failed operation to stderr. Memory commands return
// after reporting so the process still exits 0. Typed errors already carry
// their operation, so op is only prefixed to plain errors.
func reportErr(cmd *cobra.Command, op string, err error) {
	var ae *apperr.Error
	if op == "" || (errors.As(err, &ae) && ae.Op != "") {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", red("error:"), err)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", red("error:"), op, err)
}

func exitErr(cmd *cobra.Command, op string, err error) {
	reportErr(cmd, op, err)
	os.Exit(1)
}
