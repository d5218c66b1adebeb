package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/elastiflow/searchflow"
	"github.com/elastiflow/searchflow/gateway"
	"github.com/elastiflow/searchflow/internal/config"
	"github.com/elastiflow/searchflow/lifecycle"
)

var (
	configPath string
	logLevel   string
	app        *runtime
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	if app != nil {
		app.Close()
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "searchflow",
		Short:        "Debounced character search and combined loads",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				if err := os.Setenv("SEARCHFLOW_CONFIG", configPath); err != nil {
					return err
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			level, err := cfg.Log.SlogLevel()
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			app, err = newRuntime(cmd.Context(), cfg, logger)
			return err
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/searchflow/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(searchCmd(), loadCmd(), serveCmd(), tuiCmd(), seedCmd())
	return root
}

// runtime holds the configuration and the gateway shared by every subcommand.
type runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	characters gateway.Source[gateway.Record]
	planets    gateway.Source[gateway.Record]
	group      lifecycle.Group
}

func newRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	r := &runtime{cfg: cfg, logger: logger}
	var err error
	switch cfg.Gateway.Kind {
	case config.GatewaySQLite:
		err = r.openSQLite()
	default:
		err = r.openMemory(ctx)
	}
	if err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *runtime) openMemory(ctx context.Context) error {
	fixtures := gateway.DefaultFixtures()
	if path := r.cfg.Gateway.Fixtures; path != "" {
		loaded, err := gateway.LoadFixtures(path)
		if err != nil {
			return err
		}
		fixtures = loaded
	}
	opts := []gateway.MemoryOption{
		gateway.WithLatency(r.cfg.Gateway.Latency),
		gateway.WithFuzzyDistance(r.cfg.Gateway.FuzzyDistance),
	}
	characters := gateway.NewMemory(gateway.Character, fixtures.Characters, opts...)
	planets := gateway.NewMemory(gateway.Planet, fixtures.Planets, opts...)
	r.group.AddFunc(characters.Close)
	r.group.AddFunc(planets.Close)
	r.characters, r.planets = characters, planets

	if r.cfg.Gateway.Watch && r.cfg.Gateway.Fixtures != "" {
		reloader := gateway.NewReloader(r.cfg.Gateway.Fixtures, r.logger, characters, planets)
		r.group.Go(ctx, func(ctx context.Context) {
			if err := reloader.Run(ctx); err != nil {
				r.logger.Error("fixture watcher stopped", slog.Any("error", err))
			}
		})
	}
	r.logger.Debug("memory gateway ready",
		slog.Int("characters", characters.Len()),
		slog.Int("planets", planets.Len()),
	)
	return nil
}

func (r *runtime) openSQLite() error {
	db, err := openDB(r.cfg.Gateway.DBPath)
	if err != nil {
		return err
	}
	characters := gateway.NewSQLite(db, gateway.Character)
	planets := gateway.NewSQLite(db, gateway.Planet)
	r.group.AddFunc(characters.Close)
	r.group.AddFunc(planets.Close)
	r.group.AddFunc(func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("close database", slog.Any("error", err))
		}
	})
	r.characters, r.planets = characters, planets
	r.logger.Debug("sqlite gateway ready", slog.String("path", r.cfg.Gateway.DBPath))
	return nil
}

func (r *runtime) params() searchflow.Params {
	return searchflow.Params{
		Debounce:      r.cfg.Search.Debounce,
		MinTermLength: r.cfg.Search.MinLength,
		BusyRule:      r.cfg.BusyRule(),
		Logger:        r.logger,
	}
}

func (r *runtime) newSession(ctx context.Context) *searchflow.Session[gateway.Record] {
	return searchflow.New(searchflow.NewProps(r.characters, r.planets, r.params())).Open(ctx)
}

func (r *runtime) Close() {
	r.group.Close()
}

func printRecords(cmd *cobra.Command, records []gateway.Record) {
	out := cmd.OutOrStdout()
	for _, rec := range records {
		fmt.Fprintf(out, "%-10s %s\n", rec.Kind, rec.Name)
	}
}
