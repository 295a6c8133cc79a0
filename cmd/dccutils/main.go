// dccutils serves an HTTP automation surface for a DCC host application.
//
// Requests arrive on the HTTP server's goroutines. Calls into the host run
// on the host's main loop, which this binary owns: main() keeps the main
// goroutine on the main OS thread and runs the loop there once everything
// else is wired.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "github.com/nerrad567/dccutils-server/migrations"

	"github.com/nerrad567/dccutils-server/internal/api"
	"github.com/nerrad567/dccutils-server/internal/bridge"
	"github.com/nerrad567/dccutils-server/internal/capture"
	"github.com/nerrad567/dccutils-server/internal/dcc"
	"github.com/nerrad567/dccutils-server/internal/host"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/config"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/database"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/influxdb"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/logging"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func init() {
	// Hosts only accept calls from their main thread; keep the main
	// goroutine, which runs the host loop, on it.
	runtime.LockOSThread()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options carries command line settings into run.
type options struct {
	// configPath overrides DCCUTILS_CONFIG. Empty means defaults only.
	configPath string

	// mode overrides bridge.mode when non-empty.
	mode string

	// ready is called with the bound API address once the server
	// accepts connections (optional).
	ready func(addr net.Addr)
}

// serve runs the server until SIGINT or SIGTERM.
func serve(opts options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return run(ctx, opts)
}

// run wires the server and blocks on the host loop until ctx is cancelled
// or the API server fails to start.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Command line settings
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	log := logging.Default()

	configPath := getConfigPath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.mode != "" {
		cfg.Bridge.Mode = opts.mode
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validating config: %w", err)
		}
	}

	loop := host.New(host.Options{Interval: cfg.Host.TickInterval, Logger: log})

	dccCtx, mode, err := openContext(cfg, loop)
	if err != nil {
		return fmt.Errorf("opening automation context: %w", err)
	}

	// Reinitialise logger with config settings
	log, flushConsole := newLogger(cfg, mode, loop, dccCtx)
	defer flushConsole()
	log.Info("starting dccutils",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	// Open database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Connect to InfluxDB (optional)
	bridgeOpts := bridge.Options{
		Mode:          mode,
		QueueCapacity: cfg.Bridge.QueueCapacity,
		Logger:        log.With("component", "bridge"),
	}
	if cfg.InfluxDB.Enabled {
		influxClient, connectErr := influxdb.Connect(cfg.InfluxDB)
		if connectErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connectErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		bridgeOpts.Recorder = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	b := bridge.New(bridgeOpts)
	if mode == bridge.ModeBridged {
		loop.RegisterPreTick("bridge", func(time.Duration) { b.Executor().Tick() })
	}
	loop.OnShutdown(b.Executor().Shutdown)

	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Bridge:   b,
		Context:  dccCtx,
		Captures: capture.NewSQLiteRepository(db.DB),
		DB:       db,
		Version:  version,
	}

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		mqttClient, connectErr := mqtt.Connect(cfg.MQTT)
		if connectErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connectErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		deps.Events = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// The server starts once the loop is ticking: in bridged mode, a
	// failed port scan reports to the host console through the bridge.
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	startErr := make(chan error, 1)
	go func() {
		err := srv.Start(loopCtx)
		if err != nil {
			stopLoop()
		} else if opts.ready != nil {
			opts.ready(srv.Addr())
		}
		startErr <- err
	}()

	log.Info("host loop running", "mode", string(mode))
	if err := loop.Run(loopCtx); err != nil {
		return fmt.Errorf("running host loop: %w", err)
	}

	if err := <-startErr; err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	if err := srv.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}

	log.Info("dccutils stopped")
	return nil
}

// newLogger builds the configured logger. In bridged mode the host console
// belongs to the loop, so lines are queued and printed from a pre-tick
// callback. The returned flush prints whatever is left once the loop has
// stopped and must run on the loop's goroutine.
func newLogger(cfg *config.Config, mode bridge.Mode, loop *host.Loop, console logging.Printer) (*logging.Logger, func()) {
	if !cfg.Logging.HostConsole {
		return logging.New(cfg.Logging, version), func() {}
	}
	if mode != bridge.ModeBridged {
		return logging.NewHostConsole(cfg.Logging, version, console), func() {}
	}

	lp := logging.NewLoopPrinter(console, logging.DefaultConsoleBacklog)
	loop.RegisterPreTick("log.console", func(time.Duration) { lp.Flush() })
	return logging.NewHostConsole(cfg.Logging, version, lp), lp.Flush
}

// openContext builds the automation context and resolves the bridge mode.
// Direct mode leaves the context detached from loop, so captures complete
// synchronously on the request goroutine. Auto bridges exactly when the
// context reports it is main-thread bound.
func openContext(cfg *config.Config, loop *host.Loop) (dcc.Context, bridge.Mode, error) {
	if cfg.Bridge.Mode == config.BridgeModeDirect {
		ctx, err := dcc.New(cfg.DCC, nil)
		return ctx, bridge.ModeDirect, err
	}

	ctx, err := dcc.New(cfg.DCC, loop)
	if err != nil {
		return nil, "", err
	}
	if cfg.Bridge.Mode == config.BridgeModeAuto && !dcc.RequiresMainThread(ctx) {
		return ctx, bridge.ModeDirect, nil
	}
	return ctx, bridge.ModeBridged, nil
}

// getConfigPath returns the configuration file path: the flag value, else
// DCCUTILS_CONFIG, else "" for built-in defaults.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(config.EnvConfigPath)
}
