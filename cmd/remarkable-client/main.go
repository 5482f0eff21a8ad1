// remarkable-client connects to a remarkable-relay server and consumes its
// tool events.
//
// Sinks:
//   - log: one slog record per event
//   - print: one line per event on stdout
//   - stroke: co-drawing stroke messages over a WebSocket
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"remarkable-relay/internal/config"
	"remarkable-relay/internal/logging"
	"remarkable-relay/internal/relay"
	"remarkable-relay/internal/sink"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("remarkable-client", pflag.ContinueOnError)
	configPath := flagSet.StringP("config", "c", "", "TOML config file")
	server := flagSet.StringP("server", "s", "", "relay address (default 10.11.99.1:6281)")
	sinkName := flagSet.String("sink", "", "log, print or stroke")
	maxFrame := flagSet.Int("max-frame", 0, "largest accepted frame payload in bytes")
	wsURL := flagSet.String("ws", "", "WebSocket URL of the co-drawing server (stroke sink)")
	brush := flagSet.String("brush", "", "brush name for pen strokes (non-eraser)")
	color := flagSet.String("color", "", "optional color hint (e.g. #00ff88)")
	maxBatch := flagSet.Int("max-batch", 0, "max points per stroke_pts message")
	pingSeconds := flagSet.Float64("ping-seconds", 0, "WebSocket ping interval (seconds)")
	pongSeconds := flagSet.Float64("pong-timeout-seconds", 0, "fail if no pong is received in this window")
	logLevel := flagSet.String("log-level", "", "debug, info, warn or error")
	logFormat := flagSet.String("log-format", "", "text or json")

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
	if flagSet.Changed("server") {
		cfg.Client.Server = *server
	}
	if flagSet.Changed("sink") {
		cfg.Client.Sink = *sinkName
	}
	if flagSet.Changed("max-frame") {
		cfg.Client.MaxFrame = *maxFrame
	}
	if flagSet.Changed("ws") {
		cfg.Client.WsURL = *wsURL
	}
	if flagSet.Changed("brush") {
		cfg.Client.Brush = *brush
	}
	if flagSet.Changed("color") {
		cfg.Client.Color = *color
	}
	if flagSet.Changed("max-batch") {
		cfg.Client.MaxBatchPoints = *maxBatch
	}
	if flagSet.Changed("ping-seconds") {
		cfg.Client.PingSeconds = *pingSeconds
	}
	if flagSet.Changed("pong-timeout-seconds") {
		cfg.Client.PongTimeoutSeconds = *pongSeconds
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if flagSet.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.ValidateClient(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(sigCtx)
	defer cancel(nil)

	dst, cleanup, err := openSink(ctx, cancel, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	conn, err := relay.Dial(ctx, cfg.Client.Server)
	if err != nil {
		dst.Close()
		return err
	}
	logger.Info("connected", "server", cfg.Client.Server, "sink", cfg.Client.Sink)

	err = relay.Receive(ctx, conn, cfg.Client.MaxFrame, dst)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if errors.Is(err, context.Canceled) {
		if cause := context.Cause(ctx); !errors.Is(cause, context.Canceled) {
			return cause
		}
		return nil
	}
	if err == nil {
		logger.Info("server closed the stream")
	}
	return err
}

// openSink builds the configured sink. A failing WebSocket cancels ctx
// with the failure as cause.
func openSink(ctx context.Context, cancel context.CancelCauseFunc, cfg *config.Config, logger *slog.Logger) (sink.Sink, func(), error) {
	switch cfg.Client.Sink {
	case config.SinkPrint:
		return sink.NewPrint(os.Stdout), func() {}, nil
	case config.SinkStroke:
		ws, err := sink.DialWS(ctx, cfg.Client.WsURL, sink.WSOptions{
			PingEvery: seconds(cfg.Client.PingSeconds, 1),
			PongWait:  seconds(cfg.Client.PongTimeoutSeconds, 2),
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, err
		}
		go func() {
			select {
			case err := <-ws.Err():
				cancel(fmt.Errorf("websocket: %w", err))
			case <-ctx.Done():
			}
		}()
		stroke := sink.NewStroke(ws, sink.StrokeOptions{
			Brush:          cfg.Client.Brush,
			Color:          cfg.Client.Color,
			MaxBatchPoints: cfg.Client.MaxBatchPoints,
			Ranges:         sink.Ranges(cfg.Client.Ranges),
			Logger:         logger,
		})
		logger.Info("websocket connected", "url", cfg.Client.WsURL)
		return stroke, func() { ws.Close() }, nil
	default:
		return sink.NewLog(logger), func() {}, nil
	}
}

func seconds(s, floor float64) time.Duration {
	return time.Duration(float64(time.Second) * math.Max(floor, s))
}
