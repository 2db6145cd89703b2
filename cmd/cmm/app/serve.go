package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BowlesCR/cable-modem-monitor/internal/config"
	"github.com/BowlesCR/cable-modem-monitor/internal/fetch"
	"github.com/BowlesCR/cable-modem-monitor/internal/logger"
	"github.com/BowlesCR/cable-modem-monitor/internal/parsers"
	"github.com/BowlesCR/cable-modem-monitor/internal/poller"
	"github.com/BowlesCR/cable-modem-monitor/internal/registry"
	"github.com/BowlesCR/cable-modem-monitor/internal/selection"
	"github.com/BowlesCR/cable-modem-monitor/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the configured modems and export metrics",
	Long: `Start the polling loops for every modem in the configuration file.

Each modem is polled on its own interval: the right parser is chosen
automatically (or pinned via the parser setting), the status pages are fetched
and decoded, and the channel readings are exported on the telemetry listener
as Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		logger.Fatalf("Failed to bind config flag: %v", err)
	}

	// Mark config as required
	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		logger.Fatalf("Failed to mark config flag as required: %v", err)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Infof("Loaded configuration from %s (%d modems)", configPath, len(cfg.Modems))

	reg, err := registry.New(parsers.Manifest())
	if err != nil {
		return fmt.Errorf("failed to build parser registry: %w", err)
	}
	logger.Infow("parser registry built", "parsers", reg.Len())

	cache := selection.NewCache(cfg.CachePath())
	coordinator := selection.NewCoordinator(reg, cache)

	connections, err := buildConnections(cfg)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(promReg)

	serverErr := make(chan error, 1)
	if addr := cfg.TelemetryAddress(); addr != "" {
		router := telemetry.NewRouter(promReg, telemetry.WithMiddlewares(telemetry.LoggingMiddleware))
		go func() {
			if err := telemetry.Serve(ctx, addr, router); err != nil {
				serverErr <- err
			}
		}()
		logger.Infof("Telemetry listener on %s", addr)
	}

	p := poller.New(coordinator, connections, poller.WithMetrics(metrics))
	pollerDone := make(chan error, 1)
	go func() {
		pollerDone <- p.Start(ctx)
	}()

	select {
	case err := <-serverErr:
		// Listener failure takes the process down; unwind the poller first.
		stop()
		<-pollerDone
		return fmt.Errorf("telemetry server failed: %w", err)
	case err := <-pollerDone:
		return err
	}
}

// buildConnections turns the modem configuration into poller connections,
// one fetcher per modem so cookie and HNAP sessions stay isolated.
func buildConnections(cfg *config.Config) ([]poller.Connection, error) {
	connections := make([]poller.Connection, 0, len(cfg.Modems))
	for i := range cfg.Modems {
		m := &cfg.Modems[i]

		password, err := m.GetPassword()
		if err != nil {
			return nil, fmt.Errorf("modem %q: %w", m.Name, err)
		}

		fetcher, err := fetch.NewHTTPFetcher(fetch.Options{
			BaseURL:            m.URL,
			Username:           m.Username,
			Password:           password,
			InsecureSkipVerify: m.InsecureSkipVerify,
		})
		if err != nil {
			return nil, fmt.Errorf("modem %q: %w", m.Name, err)
		}

		connections = append(connections, poller.Connection{
			Name:           m.Name,
			ExplicitParser: m.Parser,
			Fetcher:        fetcher,
			Interval:       m.GetPollInterval(),
		})
	}
	return connections, nil
}
