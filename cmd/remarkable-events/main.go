// remarkable-events prints the pen events of a local input device. It is a
// debugging aid for picking the right device node and checking what the
// relay would send.
//
// Usage:
//
//	remarkable-events [flags] [device]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"remarkable-relay/internal/config"
	"remarkable-relay/internal/evdev"
	"remarkable-relay/internal/input"
	"remarkable-relay/internal/logging"
	"remarkable-relay/internal/sink"
	"remarkable-relay/internal/tool"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("remarkable-events", pflag.ContinueOnError)
	configPath := flagSet.StringP("config", "c", "", "TOML config file")
	raw := flagSet.Bool("raw", false, "print classified low-level events; unknown records are reported and skipped")
	listDevices := flagSet.Bool("list-devices", false, "print "+evdev.ProcDevicesPath+" names/handlers and exit")
	ranges := flagSet.Bool("ranges", false, "print the device's axis ranges and exit")
	grab := flagSet.Bool("grab", false, "EVIOCGRAB the device while reading")
	logLevel := flagSet.String("log-level", "", "debug, info, warn or error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *listDevices {
		return printDevices(stdout)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	switch rest := flagSet.Args(); len(rest) {
	case 0:
	case 1:
		cfg.Relay.Device = rest[0]
	default:
		return fmt.Errorf("unexpected argument: %s", rest[1])
	}
	if flagSet.Changed("grab") {
		cfg.Relay.Grab = *grab
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.ValidateRelay(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}

	dev, err := evdev.Open(cfg.Relay.Device, cfg.Relay.Grab)
	if err != nil {
		return err
	}
	closeDev := sync.OnceFunc(func() { dev.Close() })
	defer closeDev()

	if *ranges {
		return printRanges(stdout, dev.Ranges())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	context.AfterFunc(ctx, closeDev)

	logger.Info("reading", "device", dev.Path())
	if *raw {
		err = printRaw(stdout, dev)
	} else {
		err = printTools(ctx, tool.NewSource(dev, logger), sink.NewPrint(stdout))
	}
	if ctx.Err() != nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func printDevices(w io.Writer) error {
	devices, err := evdev.ListDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Fprintf(w, "name=%q handlers=%v node=%s\n", d.Name, d.Handlers, d.EventNode())
	}
	return nil
}

func printRanges(w io.Writer, ranges map[string]evdev.AbsInfo) error {
	if len(ranges) == 0 {
		return errors.New("device reports no axis ranges")
	}
	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		r := ranges[name]
		fmt.Fprintf(w, "%-13s min=%d max=%d fuzz=%d flat=%d resolution=%d\n", name, r.Min, r.Max, r.Fuzz, r.Flat, r.Resolution)
	}
	return nil
}

// printRaw prints every record the classifier understands and reports the
// rest without stopping.
func printRaw(w io.Writer, r io.Reader) error {
	records := evdev.NewReader(r)
	for {
		rec, err := records.ReadRecord()
		if err != nil {
			return err
		}
		ev, err := input.Classify(rec)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", rec.Time.Format("15:04:05.000000"), err)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", rec.Time.Format("15:04:05.000000"), ev)
	}
}

func printTools(ctx context.Context, src *tool.Source, dst sink.Sink) error {
	defer dst.Close()
	for {
		ev, err := src.Next()
		if err != nil {
			return err
		}
		if err := dst.Handle(ctx, ev); err != nil {
			return err
		}
	}
}
