package config

import (
	"math"
	"os"
	"strconv"
	"strings"
)

// getenv returns parse(value) of the variable k, or def when k is unset or
// parse rejects it.
func getenv[T any](k string, def T, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func parseString(v string) (string, error) { return v, nil }

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrRange
	}
	return f, nil
}

// parseBool also takes yes/no and y/n.
func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(v)
}

// ApplyEnv overrides cfg with any environment variables that are set.
// Malformed values leave the current setting in place.
func ApplyEnv(cfg *Config) {
	cfg.Relay.Listen = getenv("REMARKABLE_LISTEN", cfg.Relay.Listen, parseString)
	cfg.Relay.Device = getenv("REMARKABLE_DEVICE", cfg.Relay.Device, parseString)
	cfg.Relay.Grab = getenv("REMARKABLE_GRAB", cfg.Relay.Grab, parseBool)

	cfg.Client.Server = getenv("REMARKABLE_SERVER", cfg.Client.Server, parseString)
	cfg.Client.MaxFrame = getenv("REMARKABLE_MAX_FRAME", cfg.Client.MaxFrame, strconv.Atoi)
	cfg.Client.Sink = getenv("REMARKABLE_SINK", cfg.Client.Sink, parseString)

	cfg.Client.WsURL = getenv("DESKTOP_WS", cfg.Client.WsURL, parseString)
	cfg.Client.Brush = getenv("BRUSH", cfg.Client.Brush, parseString)
	cfg.Client.Color = getenv("COLOR", cfg.Client.Color, parseString)
	cfg.Client.MaxBatchPoints = getenv("MAX_BATCH_POINTS", cfg.Client.MaxBatchPoints, strconv.Atoi)
	cfg.Client.PingSeconds = getenv("PING_SECONDS", cfg.Client.PingSeconds, parseFloat)
	cfg.Client.PongTimeoutSeconds = getenv("PONG_TIMEOUT_SECONDS", cfg.Client.PongTimeoutSeconds, parseFloat)

	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level, parseString)
	cfg.Log.Format = getenv("LOG_FORMAT", cfg.Log.Format, parseString)
}
