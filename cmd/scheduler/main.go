package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nettuhq/scheduler/booking"
	"github.com/nettuhq/scheduler/freebusy"
	"github.com/nettuhq/scheduler/internal/config"
	"github.com/nettuhq/scheduler/internal/version"
	"github.com/nettuhq/scheduler/metrics"
	"github.com/nettuhq/scheduler/plugin/webhook"
	"github.com/nettuhq/scheduler/reminder"
	"github.com/nettuhq/scheduler/repo"
	"github.com/nettuhq/scheduler/repo/memory"
	"github.com/nettuhq/scheduler/repo/postgres"
	"github.com/nettuhq/scheduler/server"
)

var rootCmd = &cobra.Command{
	Use:   "scheduler",
	Short: `A temporal availability engine: recurrence expansion, free/busy, service booking slots, and reminder dispatch.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cfg := &config.Config{}
		cfg.FromEnv()
		// Flags explicitly passed on the command line win over SCHEDULER_*
		// env vars and FromEnv's built-in defaults.
		flags := cmd.Flags()
		if flags.Changed("mode") {
			cfg.Mode = viper.GetString("mode")
		}
		if flags.Changed("addr") {
			cfg.Addr = viper.GetString("addr")
		}
		if flags.Changed("port") {
			cfg.Port = viper.GetInt("port")
		}
		if flags.Changed("driver") {
			cfg.Driver = viper.GetString("driver")
		}
		if flags.Changed("dsn") {
			cfg.DSN = viper.GetString("dsn")
		}
		cfg.Version = version.GetCurrentVersion(cfg.Mode)

		if err := cfg.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, calendars, schedules, services, accounts, closeRepo, err := openRepos(cfg)
		if err != nil {
			slog.Error("failed to open repository backend", "driver", cfg.Driver, "error", err)
			os.Exit(1)
		}
		defer closeRepo()

		clock := repo.SystemClock{}
		exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())

		fb := freebusy.NewEngine(calendars, events, schedules)
		planner := booking.NewPlanner(services, fb, slog.Default())

		expander := reminder.NewExpander(events, calendars, clock, cfg.ExpansionHorizon.Milliseconds(), slog.Default())
		expander.Interval = cfg.ReminderExpansionInterval
		dispatch := reminder.NewDispatch(events, accounts, clock, webhook.NewDispatcher(), slog.Default())
		dispatch.Interval = cfg.ReminderDispatchInterval
		dispatch.WebhookTimeout = cfg.WebhookTimeout

		go expander.Run(ctx)
		go dispatch.Run(ctx)

		srv := server.New(planner, dispatch, exporter, cfg.Version, slog.Default())

		addr := fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port)
		go func() {
			if err := srv.Start(addr); err != nil {
				slog.Error("server stopped", "error", err)
			}
		}()

		printGreetings(cfg)

		c := make(chan os.Signal, 1)
		signal.Notify(c, terminationSignals...)
		<-c
		slog.Info("shutting down")
		cancel()
	},
}

// openRepos constructs the five repository implementations for cfg.Driver,
// returning a close function that releases any underlying connection.
func openRepos(cfg *config.Config) (repo.EventRepo, repo.CalendarRepo, repo.ScheduleRepo, repo.ServiceRepo, repo.AccountRepo, func(), error) {
	switch cfg.Driver {
	case "postgres":
		db, err := postgres.Open(cfg.DSN)
		if err != nil {
			return nil, nil, nil, nil, nil, nil, err
		}
		closeFn := func() {
			if err := db.Close(); err != nil {
				slog.Error("failed to close database", "error", err)
			}
		}
		return db.Events(), db.Calendars(), db.Schedules(), db.Services(), db.Accounts(), closeFn, nil
	default:
		store := memory.New()
		return store.Events, store.Calendars, store.Schedules, store.Services, store.Accounts, func() {}, nil
	}
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "memory")
	viper.SetDefault("port", 8082)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod", "dev", or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8082, "port of server")
	rootCmd.PersistentFlags().String("driver", "memory", "repository driver (memory, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN), required when driver=postgres")

	for _, flag := range []string{"mode", "addr", "port", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("scheduler")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(cfg *config.Config) {
	fmt.Printf("scheduler %s started successfully!\n", cfg.Version)
	if cfg.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}
	fmt.Printf("Driver: %s\n", cfg.Driver)
	fmt.Printf("Mode: %s\n", cfg.Mode)
	if cfg.Addr == "" {
		fmt.Printf("Server running on port %d\n", cfg.Port)
		fmt.Printf("Access scheduler at: http://localhost:%d\n", cfg.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", cfg.Addr, cfg.Port)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
