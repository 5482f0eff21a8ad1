// remarkable-relay streams pen events from a reMarkable tablet's digitizer
// to any number of TCP clients.
//
// Every connection gets its own handle on the input device, so clients do
// not compete for events. Each client receives a stream of length-prefixed
// CBOR tool events (hover, contact, removal) until it disconnects.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"remarkable-relay/internal/config"
	"remarkable-relay/internal/evdev"
	"remarkable-relay/internal/logging"
	"remarkable-relay/internal/relay"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("remarkable-relay", pflag.ContinueOnError)
	configPath := flagSet.StringP("config", "c", "", "TOML config file")
	listen := flagSet.StringP("listen", "l", "", "address to listen on (default 0.0.0.0:6281)")
	device := flagSet.StringP("device", "d", "", "input device path (default /dev/input/event1)")
	grab := flagSet.Bool("grab", false, "EVIOCGRAB the device while a session is open (hides the pen from xochitl)")
	logLevel := flagSet.String("log-level", "", "debug, info, warn or error")
	logFormat := flagSet.String("log-format", "", "text or json")
	writeConfig := flagSet.String("write-config", "", "write the effective config to this path and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("listen") {
		cfg.Relay.Listen = *listen
	}
	if flagSet.Changed("device") {
		cfg.Relay.Device = *device
	}
	if flagSet.Changed("grab") {
		cfg.Relay.Grab = *grab
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if flagSet.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.ValidateRelay(); err != nil {
		return err
	}
	if *writeConfig != "" {
		return config.Save(*writeConfig, cfg)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path, doGrab := cfg.Relay.Device, cfg.Relay.Grab
	open := func() (io.ReadCloser, error) {
		dev, err := evdev.Open(path, doGrab)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}

	logger.Info("relaying", "device", path, "grab", doGrab)
	return relay.NewServer(open, logger).ListenAndServe(ctx, cfg.Relay.Listen)
}
