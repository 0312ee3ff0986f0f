// doorduino bridges the Bitlair door controller to the space's MQTT broker.
//
// It reads events from the controller's serial line and publishes them
// (doorbell, door opened, lock state), pushes the aggregated space state
// back to the controller, and keeps the controller's iButton list in step
// with the authoritative access list.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/spf13/pflag"

	"github.com/bitlair/doorduino-gateway/internal/bridges/doorduino"
	"github.com/bitlair/doorduino-gateway/internal/buttons"
	"github.com/bitlair/doorduino-gateway/internal/gateway"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/config"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/influxdb"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/logging"
	"github.com/bitlair/doorduino-gateway/internal/process"
	"github.com/bitlair/doorduino-gateway/internal/spacestate"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/doorduino.yaml"
	configEnv         = "DOORDUINO_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, loads configuration, wires every component and blocks
// until ctx is cancelled.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - args: Command-line arguments without the program name
//
// Returns:
//   - error: nil on clean shutdown, or error describing the startup failure
func run(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("doorduino", pflag.ContinueOnError)
	configFlag := flags.StringP("config", "c", "", "path to the configuration file (env "+configEnv+")")
	showVersion := flags.Bool("version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("doorduino %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	configPath := resolveConfigPath(*configFlag)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting doorduino gateway",
		"version", version,
		"commit", commit,
		"config", configPath,
	)

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			// Telemetry is optional; the door keeps working without it.
			log.Warn("InfluxDB unavailable, telemetry disabled", "error", err)
			influxClient = nil
		} else {
			defer func() {
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Warn("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	sup, err := wire(cfg, log, influxClient)
	if err != nil {
		return err
	}

	if err := sup.Run(ctx); err != nil {
		return fmt.Errorf("running supervisor: %w", err)
	}

	log.Info("doorduino gateway stopped")
	return nil
}

type namedLoop struct {
	name string
	loop process.Loop
}

// wire builds every component and registers its loop with a supervisor.
// influxClient may be nil.
func wire(cfg *config.Config, log *logging.Logger, influxClient *influxdb.Client) (*process.Supervisor, error) {
	var rec *telemetry
	if influxClient != nil {
		rec = &telemetry{client: influxClient}
	}

	device := doorduino.NewDevice(cfg.Serial.CommandSettle)
	monitor := doorduino.NewMonitor(cfg.Serial, device)
	monitor.SetLogger(log.With("component", "serial"))

	aggregator := spacestate.NewAggregator(spacestate.NewTopicState(), device)
	aggregator.SetLogger(log.With("component", "spacestate"))

	var syncer *buttons.Syncer
	if cfg.Buttons.AccessList.Path != "" {
		syncer = newSyncer(cfg, device, log.With("component", "buttons"))
	} else {
		log.Info("no access list configured, button sync disabled")
	}

	var trigger func()
	if syncer != nil {
		trigger = syncer.Trigger
	}

	bridge := gateway.NewBridge(gateway.BridgeConfig{
		SpaceStateTopics: cfg.Topics.SpaceState,
		SyncTriggerTopic: cfg.Topics.SyncTrigger,
		QoS:              byte(cfg.MQTT.QoS), //nolint:gosec // validated 0..2
		Policy:           gateway.NewReconnectPolicy(cfg.MQTT.Reconnect),
	}, gateway.MQTTDialer(cfg.MQTT, cfg.Topics.Status, log.With("component", "mqtt")), aggregator, trigger)
	bridge.SetLogger(log.With("component", "mqtt"))

	router := gateway.NewEventRouter(newPublisher(cfg.MQTT, bridge), cfg.Topics)
	router.SetLogger(log.With("component", "events"))

	monitor.OnEvent(aggregator.HandleEvent)
	monitor.OnEvent(router.HandleEvent)
	if syncer != nil && cfg.Buttons.SyncOnConnect {
		monitor.OnConnect(func(context.Context) { syncer.Trigger() })
	}

	if rec != nil {
		aggregator.SetRecorder(rec)
		router.SetRecorder(rec)
		if syncer != nil {
			syncer.SetRecorder(rec)
		}
	}

	sup := process.NewSupervisor(process.Config{
		RestartDelay:    cfg.Supervisor.RestartDelay,
		MaxRestartDelay: cfg.Supervisor.MaxRestartDelay,
		StableThreshold: cfg.Supervisor.StableThreshold,
	})
	sup.SetLogger(log.With("component", "supervisor"))

	loops := []namedLoop{
		{"serial", monitor.Run},
		{"mqtt", bridge.Run},
		{"events", router.Run},
	}
	if syncer != nil {
		loops = append(loops, namedLoop{"buttons", syncer.Run})
	}
	if cfg.Supervisor.HealthInterval > 0 {
		health := &healthReporter{
			interval:   cfg.Supervisor.HealthInterval,
			monitor:    monitor,
			aggregator: aggregator,
			bridge:     bridge,
			router:     router,
			sup:        sup,
			syncer:     syncer,
			influx:     influxClient,
			log:        log.With("component", "health"),
			now:        time.Now,
		}
		loops = append(loops, namedLoop{"health", health.Run})
	}
	for _, l := range loops {
		if err := sup.Add(l.name, l.loop); err != nil {
			return nil, fmt.Errorf("registering %s loop: %w", l.name, err)
		}
	}

	return sup, nil
}

func newSyncer(cfg *config.Config, device *doorduino.Device, log *logging.Logger) *buttons.Syncer {
	comma, _ := utf8.DecodeRuneInString(cfg.Buttons.AccessList.Comma)
	source := buttons.CSVSource{
		Path:   cfg.Buttons.AccessList.Path,
		Column: cfg.Buttons.AccessList.Column,
		Comma:  comma,
		OnSkip: func(line int, err error) {
			log.Warn("skipping access list row", "line", line, "error", err)
		},
	}

	var refresher buttons.Refresher
	if cfg.Buttons.Git.Enabled {
		refresher = buttons.GitRefresher{
			Runner:  process.ExecRunner{},
			Binary:  cfg.Buttons.Git.Binary,
			Dir:     cfg.Buttons.Git.Dir,
			Timeout: cfg.Buttons.Git.Timeout,
		}
	}

	reconciler := buttons.NewReconciler(cfg.Buttons, device)
	reconciler.SetLogger(log)

	syncer := buttons.NewSyncer(source, refresher, reconciler, cfg.Buttons.SyncInterval)
	syncer.SetLogger(log)
	return syncer
}

// newPublisher selects how outbound events reach the broker.
func newPublisher(cfg config.MQTTConfig, bridge *gateway.Bridge) gateway.Publisher {
	if cfg.Publisher != "command" {
		return bridge
	}
	server := cfg.Command.Server
	if server == "" {
		server = cfg.Broker.Host
	}
	return &gateway.CommandPublisher{
		Runner:  process.ExecRunner{},
		Binary:  cfg.Command.Binary,
		Server:  server,
		Timeout: cfg.Command.Timeout,
	}
}

// resolveConfigPath picks the flag, then the environment, then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}
