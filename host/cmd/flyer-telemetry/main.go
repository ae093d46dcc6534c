package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"flyer/host/serial"
	"flyer/host/telemetry"
	"flyer/protocol"
)

// Config is the monitor configuration file. Flags override file values.
type Config struct {
	Serial   serial.Config `yaml:"serial"`
	CSV      string        `yaml:"csv"`       // Output path, "-" for stdout
	Listen   string        `yaml:"listen"`    // Websocket address, empty to disable
	LogEvery uint64        `yaml:"log_every"` // Promote one record in N to info
	Report   time.Duration `yaml:"report"`    // Link statistics interval
	Level    string        `yaml:"level"`
}

func defaultConfig() Config {
	return Config{
		Serial:   *serial.DefaultConfig("/dev/ttyUSB0"),
		LogEvery: 50,
		Report:   10 * time.Second,
		Level:    "info",
	}
}

var (
	configPath = flag.String("config", "", "YAML configuration file")
	device     = flag.String("device", "", "Serial device path")
	baud       = flag.Int("baud", 0, "Baud rate")
	replay     = flag.String("replay", "", "Decode a captured byte stream instead of a serial port")
	csvPath    = flag.String("csv", "", "Write records as CSV to this path (\"-\" for stdout)")
	listen     = flag.String("listen", "", "Serve records over websocket on this address")
	verbose    = flag.Bool("verbose", false, "Log every record")
)

func loadConfig() (Config, error) {
	cfg := defaultConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", *configPath, err)
		}
	}

	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *csvPath != "" {
		cfg.CSV = *csvPath
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *verbose {
		cfg.Level = "debug"
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration error")
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.Level).Msg("Bad log level")
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Telemetry monitor stopped")
	}
}

func run(ctx context.Context, cfg Config) error {
	var (
		mon *telemetry.Monitor
		err error
	)
	if *replay != "" {
		f, err := os.Open(*replay)
		if err != nil {
			return fmt.Errorf("failed to open capture: %w", err)
		}
		mon = telemetry.NewMonitor(f, log.Logger)
		mon.StopOnEOF = true
		log.Info().Str("file", *replay).Msg("Replaying capture")
	} else {
		mon, err = telemetry.Connect(&cfg.Serial, log.Logger)
		if err != nil {
			return err
		}
	}
	defer mon.Close()

	mon.AddSink(telemetry.NewLogSink(log.Logger, cfg.LogEvery))

	if cfg.CSV != "" {
		out := os.Stdout
		if cfg.CSV != "-" {
			out, err = os.Create(cfg.CSV)
			if err != nil {
				return fmt.Errorf("failed to create CSV file: %w", err)
			}
		}
		sink, err := telemetry.NewCSVSink(out, true)
		if err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		mon.AddSink(sink)
	}

	if cfg.Listen != "" {
		room := telemetry.NewRoom(log.Logger)
		go room.Run(ctx)
		mon.AddSink(room)

		mux := http.NewServeMux()
		mux.Handle("/telemetry", room)
		srv := &http.Server{Addr: cfg.Listen, Handler: mux}
		go func() {
			log.Info().Str("addr", cfg.Listen).Msg("Serving telemetry websocket")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Websocket server failed")
			}
		}()
		defer srv.Close()
	}

	if cfg.Report > 0 {
		go mon.ReportEvery(ctx, cfg.Report)
	}

	log.Info().Str("version", protocol.Version).Msg("Flyer telemetry monitor")
	err = mon.Run(ctx)

	s := mon.Stats()
	log.Info().
		Uint64("bytes", s.Bytes).
		Uint64("records", s.Records).
		Uint64("skipped", s.Skipped).
		Msg("Done")
	return err
}
