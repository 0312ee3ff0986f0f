// doorduino-manage lists, adds and removes iButtons on the door
// controllers by hand.
//
// It talks to every managed serial port in turn (serial.manage_devices,
// or --port), so the gateway must not hold the ports while it runs.
//
// Usage:
//
//	doorduino-manage [flags] list
//	doorduino-manage [flags] add <id>:<secret>
//	doorduino-manage [flags] remove <id>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bitlair/doorduino-gateway/internal/bridges/doorduino"
	"github.com/bitlair/doorduino-gateway/internal/buttons"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/config"
	"github.com/bitlair/doorduino-gateway/internal/infrastructure/logging"
)

var version = "dev"

const (
	defaultConfigPath = "configs/doorduino.yaml"
	configEnv         = "DOORDUINO_CONFIG"

	// columnWidth pads table cells; iButton ids are 16 hex digits.
	columnWidth = 16
)

var errUsage = errors.New("usage: doorduino-manage [flags] list | add <id>:<secret> | remove <id>")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args and performs one action on every managed port.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - args: Command-line arguments without the program name
//   - out: Receives the listing and counts
//
// Returns:
//   - error: errUsage for a malformed command line, or the joined per-port failures
func run(ctx context.Context, args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("doorduino-manage", pflag.ContinueOnError)
	configFlag := flags.StringP("config", "c", "", "path to the configuration file (env "+configEnv+")")
	portFlag := flags.StringSliceP("port", "p", nil, "serial port to manage, repeatable (default serial.manage_devices)")
	window := flags.Duration("window", 3*time.Second, "how long to wait for the controller's button list")
	if err := flags.Parse(args); err != nil {
		return err
	}

	act, err := parseAction(flags.Args())
	if err != nil {
		return err
	}

	path := *configFlag
	if path == "" {
		path = os.Getenv(configEnv)
	}
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Keep stdout for the listing.
	cfg.Logging.Output = "stderr"
	log := logging.New(cfg.Logging, version).With("component", "manage")

	m := &manager{serial: cfg.Serial, window: *window, log: log}
	return m.do(ctx, act, managedPorts(cfg.Serial, *portFlag), out)
}

type action struct {
	name   string
	id     buttons.ID
	secret string
}

// parseAction reads "list", "add <id>:<secret>" or "remove <id>".
func parseAction(args []string) (action, error) {
	if len(args) == 0 {
		return action{}, errUsage
	}

	switch args[0] {
	case "list":
		if len(args) != 1 {
			return action{}, errUsage
		}
		return action{name: "list"}, nil
	case "add":
		if len(args) != 2 {
			return action{}, fmt.Errorf("%w: missing button id and secret", errUsage)
		}
		id, secret, ok := strings.Cut(args[1], ":")
		if !ok || id == "" || secret == "" {
			return action{}, fmt.Errorf("%w: want <id>:<secret>, got %q", errUsage, args[1])
		}
		return action{name: "add", id: buttons.Normalize(id), secret: secret}, nil
	case "remove":
		if len(args) != 2 {
			return action{}, fmt.Errorf("%w: missing button id", errUsage)
		}
		return action{name: "remove", id: buttons.Normalize(args[1])}, nil
	default:
		return action{}, fmt.Errorf("%w: unknown action %q", errUsage, args[0])
	}
}

// managedPorts picks --port, then serial.manage_devices, then the
// gateway's own device.
func managedPorts(cfg config.SerialConfig, flagPorts []string) []string {
	switch {
	case len(flagPorts) > 0:
		return flagPorts
	case len(cfg.ManageDevices) > 0:
		return cfg.ManageDevices
	default:
		return []string{cfg.Device}
	}
}

// manager runs actions against one port at a time.
type manager struct {
	serial config.SerialConfig
	open   doorduino.Opener // nil opens the real serial port
	window time.Duration
	log    *logging.Logger
}

func (m *manager) do(ctx context.Context, act action, ports []string, out io.Writer) error {
	if act.name == "list" {
		lists := make([][]buttons.ID, len(ports))
		var errs []error
		for i, port := range ports {
			err := m.exec(ctx, port, func(ctx context.Context, d *doorduino.Device) error {
				set, err := buttons.Collect(ctx, d, m.window)
				lists[i] = set.Sorted()
				return err
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", port, err))
			}
		}
		formatTable(out, ports, lists)
		return errors.Join(errs...)
	}

	var errs []error
	for _, port := range ports {
		err := m.exec(ctx, port, func(ctx context.Context, d *doorduino.Device) error {
			var err error
			if act.name == "add" {
				err = buttons.Add(ctx, d, act.id, act.secret)
			} else {
				err = buttons.Remove(ctx, d, act.id)
			}
			if err != nil {
				return err
			}

			set, err := buttons.Collect(ctx, d, m.window)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s %s, %d buttons stored\n", port, act.name, act.id, len(set))
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", port, err))
		}
	}
	return errors.Join(errs...)
}

func (m *manager) exec(ctx context.Context, port string, fn func(context.Context, *doorduino.Device) error) error {
	cfg := m.serial
	cfg.Device = port

	mon := doorduino.NewMonitor(cfg, doorduino.NewDevice(cfg.CommandSettle))
	mon.SetLogger(m.log.With("device", port))
	if m.open != nil {
		mon.SetOpener(m.open)
	}
	return mon.Exec(ctx, fn)
}

// formatTable prints one column per port: a header row, a count row, and
// the sorted ids.
func formatTable(w io.Writer, ports []string, lists [][]buttons.ID) {
	row := func(cells []string) {
		padded := make([]string, len(cells))
		for i, c := range cells {
			padded[i] = fmt.Sprintf("%-*s", columnWidth, c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(padded, " | "))
	}

	row(ports)

	counts := make([]string, len(lists))
	longest := 0
	for i, ids := range lists {
		counts[i] = fmt.Sprintf("len = %d", len(ids))
		longest = max(longest, len(ids))
	}
	row(counts)

	for n := 0; n < longest; n++ {
		cells := make([]string, len(lists))
		for i, ids := range lists {
			if n < len(ids) {
				cells[i] = string(ids[n])
			}
		}
		row(cells)
	}
}
