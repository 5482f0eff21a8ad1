// Package config holds the settings of the relay server and the receiving
// client. Values come from defaults, an optional TOML file, the environment
// and finally command-line flags, each overriding the previous.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the complete configuration.
type Config struct {
	Relay  RelayConfig  `toml:"relay"`
	Client ClientConfig `toml:"client"`
	Log    LogConfig    `toml:"log"`
}

// RelayConfig is the server side: where to listen and which device to read.
type RelayConfig struct {
	Listen string `toml:"listen"`
	Device string `toml:"device"`
	Grab   bool   `toml:"grab"`
}

// ClientConfig is the receiving side.
type ClientConfig struct {
	Server   string `toml:"server"`
	MaxFrame int    `toml:"max_frame"`
	Sink     string `toml:"sink"`

	// Stroke sink settings.
	WsURL              string       `toml:"ws_url"`
	Brush              string       `toml:"brush"`
	Color              string       `toml:"color"`
	MaxBatchPoints     int          `toml:"max_batch_points"`
	PingSeconds        float64      `toml:"ping_seconds"`
	PongTimeoutSeconds float64      `toml:"pong_timeout_seconds"`
	Ranges             RangesConfig `toml:"ranges"`
}

// RangesConfig is the digitizer's axis ranges, used to normalise points.
// The client cannot query them from the device. X is the kernel's ABS_Y
// and Y is ABS_X.
type RangesConfig struct {
	XMin        int32 `toml:"x_min"`
	XMax        int32 `toml:"x_max"`
	YMin        int32 `toml:"y_min"`
	YMax        int32 `toml:"y_max"`
	PressureMin int32 `toml:"pressure_min"`
	PressureMax int32 `toml:"pressure_max"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Sink names.
const (
	SinkLog    = "log"
	SinkPrint  = "print"
	SinkStroke = "stroke"
)

// DefaultPort is the relay's TCP port.
const DefaultPort = 6281

// Default returns the configuration of a reMarkable 2 relaying over USB
// networking.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			Listen: fmt.Sprintf("0.0.0.0:%d", DefaultPort),
			Device: "/dev/input/event1",
		},
		Client: ClientConfig{
			Server:             fmt.Sprintf("10.11.99.1:%d", DefaultPort),
			MaxFrame:           1024,
			Sink:               SinkLog,
			WsURL:              "ws://127.0.0.1:8000/ws/session1",
			Brush:              "pen",
			MaxBatchPoints:     64,
			PingSeconds:        2,
			PongTimeoutSeconds: 8,
			Ranges: RangesConfig{
				XMax:        15725,
				YMax:        20967,
				PressureMax: 4095,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if
// path is not empty) and the environment. Unknown keys in the file are an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("read config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// Save writes cfg to path as TOML, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// ValidateRelay checks the settings the relay server uses.
func (c *Config) ValidateRelay() error {
	var errs []error
	if c.Relay.Listen == "" {
		errs = append(errs, errors.New("relay.listen is empty"))
	}
	if c.Relay.Device == "" {
		errs = append(errs, errors.New("relay.device is empty"))
	}
	return errors.Join(append(errs, c.validateLog())...)
}

// ValidateClient checks the settings the receiving client uses.
func (c *Config) ValidateClient() error {
	var errs []error
	if c.Client.Server == "" {
		errs = append(errs, errors.New("client.server is empty"))
	}
	if c.Client.MaxFrame <= 0 {
		errs = append(errs, fmt.Errorf("client.max_frame must be positive, got %d", c.Client.MaxFrame))
	}
	switch c.Client.Sink {
	case SinkLog, SinkPrint:
	case SinkStroke:
		if c.Client.WsURL == "" {
			errs = append(errs, errors.New("client.ws_url is required for the stroke sink"))
		}
		if c.Client.MaxBatchPoints <= 0 {
			errs = append(errs, fmt.Errorf("client.max_batch_points must be positive, got %d", c.Client.MaxBatchPoints))
		}
	default:
		errs = append(errs, fmt.Errorf("client.sink %q: expected %q, %q or %q", c.Client.Sink, SinkLog, SinkPrint, SinkStroke))
	}
	return errors.Join(append(errs, c.validateLog())...)
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: expected text or json", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: expected debug, info, warn or error", c.Log.Level)
	}
	return nil
}
