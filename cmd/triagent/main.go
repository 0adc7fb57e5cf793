// Command triagent runs the A2A medical triage service.
//
// Usage:
//
//	triagent serve --config config.yaml
//	triagent serve --port 8000
//	triagent schema > config.schema.json
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	triagent "github.com/outshift/triagent"
	"github.com/outshift/triagent/pkg/config"
	"github.com/outshift/triagent/pkg/logger"
	"github.com/outshift/triagent/pkg/observability"
	"github.com/outshift/triagent/pkg/task"
	"github.com/outshift/triagent/pkg/tbac"
	"github.com/outshift/triagent/pkg/transport"
	"github.com/outshift/triagent/pkg/triage"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the A2A triage service."`
	Schema  SchemaCmd  `cmd:"" help:"Generate JSON Schema for the configuration."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." env:"LOG_LEVEL" default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)." env:"LOG_FILE"`
	LogFormat string `help:"Log format (simple, verbose)." env:"LOG_FORMAT" default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("triagent version %s\n", triagent.Version)
	return nil
}

// ServeCmd starts the service.
type ServeCmd struct {
	Host        string `help:"Bind host (overrides config)."`
	Port        int    `help:"Bind port (overrides config)."`
	Debug       bool   `help:"Enable debug logging."`
	DisableTBAC bool   `name:"disable-tbac" help:"Run with the authorization gate disabled."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutdown signal received")
		cancel()
	}()

	if err := config.LoadEnvFiles(); err != nil {
		return err
	}

	cfg, closeLoader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer closeLoader()

	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.Debug {
		cfg.Server.Debug = true
	}
	if c.DisableTBAC {
		cfg.TBAC = config.TBACConfig{}
	}
	if cfg.Server.Debug {
		cli.LogLevel = "debug"
	}

	cleanup, err := initLogger(cli)
	if err != nil {
		return err
	}
	defer cleanup()

	if !cfg.TriageConfigured() {
		slog.Warn("Triage engine credentials incomplete, conversational tasks will fail",
			"required", "TRIAGE_APP_ID, TRIAGE_APP_KEY, TRIAGE_INSTANCE_ID, TRIAGE_TOKEN_URL, TRIAGE_BASE_URL")
	}

	obs := observability.NewManager(observability.Config{
		Tracing: observability.TracerConfig{
			Enabled:      cfg.Observability.TracingEnabled,
			EndpointURL:  cfg.Observability.OTLPEndpoint,
			SamplingRate: cfg.Observability.SampleRate,
			ServiceName:  cfg.Observability.ServiceName,
		},
		Metrics: observability.MetricsConfig{
			Enabled: cfg.Observability.MetricsEnabled,
		},
	})
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Error("Observability shutdown failed", "error", err)
		}
	}()

	gate := tbac.NewGate(cfg.TBAC)
	gate.Authorize(ctx)

	store := task.NewStore()
	bridge := triage.NewClient(cfg.Triage)
	dispatcher := transport.NewDispatcher(store, gate, bridge)
	server := transport.NewServer(cfg.Server, dispatcher, store, gate, obs)

	slog.Info("A2A triage service initialized",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"tbac_mode", gate.Mode())

	return server.Run(ctx)
}

// loadConfig reads the config file when given, otherwise builds the
// config from environment variables alone. Config file changes are
// logged; a restart picks them up.
func loadConfig(ctx context.Context, path string) (*config.Config, func(), error) {
	if path == "" {
		cfg, err := config.Default()
		return cfg, func() {}, err
	}

	loader, err := config.NewFileLoader(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := loader.Load(ctx)
	if err != nil {
		loader.Close()
		return nil, nil, err
	}

	changes, err := loader.Watch(ctx)
	if err != nil {
		slog.Warn("Config watching unavailable", "error", err)
	} else if changes != nil {
		go func() {
			for range changes {
				slog.Warn("Config file changed, restart to apply", "path", path)
			}
		}()
	}

	return cfg, func() { loader.Close() }, nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("triagent"),
		kong.Description("A2A medical triage service"),
		kong.UsageOnError(),
	)

	if err := kctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func initLogger(cli *CLI) (func(), error) {
	output := os.Stderr
	cleanup := func() {}

	if cli.LogFile != "" {
		file, closeFile, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = closeFile
	}

	logger.Init(logger.ParseLevel(cli.LogLevel), output, cli.LogFormat)
	return cleanup, nil
}
