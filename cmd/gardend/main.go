// Command gardend serves the garden API and the botanical proxy, and hosts
// the operational subcommands for migration checks and recurrence passes.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"gardenkeep/internal/config"
	"gardenkeep/internal/core"
	"gardenkeep/internal/observability"
	"gardenkeep/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, "gardend:", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := config.New()
	root := &cobra.Command{
		Use:           "gardend",
		Short:         "Plant garden API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.String("storage-driver", "", "storage backend: memory, sqlite or postgres")
	flags.String("sqlite-path", "", "sqlite database file")
	flags.String("postgres-dsn", "", "postgres connection string")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: json or console")
	_ = v.BindPFlag(config.KeyStorageDriver, flags.Lookup("storage-driver"))
	_ = v.BindPFlag(config.KeySQLitePath, flags.Lookup("sqlite-path"))
	_ = v.BindPFlag(config.KeyPostgresDSN, flags.Lookup("postgres-dsn"))
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))

	root.AddCommand(newServeCmd(v), newCheckMigrationCmd(v), newRecurCmd(v))
	return root
}

// load resolves configuration and builds the zap logger it names.
func load(v *viper.Viper) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := observability.NewZap(observability.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return config.Config{}, nil, &domain.ConfigError{Setting: "LOG_LEVEL", Reason: err.Error()}
	}
	return cfg, logger, nil
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			var traceOut io.Writer
			if trace {
				traceOut = cmd.ErrOrStderr()
			}
			a, err := newApp(cmd.Context(), cfg, logger, traceOut)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ln, err := net.Listen("tcp", cfg.HTTPAddr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
			}
			if cfg.BotanicalToken == "" {
				logger.Warn("botanical search disabled", zap.String("missing", "BOTANICAL_API_TOKEN"))
			}
			return a.serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().BoolVar(&trace, "trace", false, "write operation spans to stderr as JSON lines")
	_ = v.BindPFlag(config.KeyHTTPAddr, cmd.Flags().Lookup("addr"))
	return cmd
}

// migrationReport is printed by check-migration.
type migrationReport struct {
	Driver  core.StorageDriver `json:"driver"`
	Tables  []core.TableStatus `json:"tables"`
	Missing []string           `json:"missing,omitempty"`
	Probe   core.PolicyProbe   `json:"probe"`
}

func newCheckMigrationCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check-migration",
		Short: "Report missing garden tables and probe the favorites insert policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			store, err := core.OpenPersistentStore(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tables, err := core.CheckTables(cmd.Context(), store)
			if err != nil {
				return err
			}
			probe, err := core.ProbeFavoritesPolicy(cmd.Context(), store)
			if err != nil {
				return err
			}
			report := migrationReport{Driver: cfg.Storage.Driver, Tables: tables, Missing: core.MissingTables(tables), Probe: probe}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if len(report.Missing) > 0 {
				return fmt.Errorf("missing tables %v: apply docs/schema/sql/%s.sql", report.Missing, cfg.Storage.Driver)
			}
			return nil
		},
	}
}

func newRecurCmd(v *viper.Viper) *cobra.Command {
	var users []string
	cmd := &cobra.Command{
		Use:   "recur",
		Short: "Run one recurrence pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load(v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			for _, u := range users {
				cfg.RecurrenceUsers = append(cfg.RecurrenceUsers, domain.UserID(u))
			}
			if len(cfg.RecurrenceUsers) == 0 {
				return &domain.ConfigError{Setting: "RECURRENCE_USERS", Reason: "is empty and no --user was given"}
			}
			store, err := core.OpenPersistentStore(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			svc := core.NewService(store, core.WithLogger(observability.NewZapLogger(logger)), core.WithAuditRecorder(observability.NewAuditLogger(logger)))
			n, err := core.NewRecurrenceWorker(svc, cfg.RecurrenceInterval, cfg.RecurrenceUsers).Pass(cmd.Context())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "emitted %d recurring chores\n", n)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&users, "user", nil, "user id to evaluate (repeatable)")
	return cmd
}
