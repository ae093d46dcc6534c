//go:build linux

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"flyer/core"
	"flyer/host/serial"
)

var (
	configPath = flag.String("config", "", "YAML board configuration")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

// serialOutput is a protocol.OutputBuffer on a serial port
type serialOutput struct {
	port serial.Port
}

func (s serialOutput) Output(data []byte) {
	s.port.Write(data)
}

func main() {
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli})

	cfg, err := LoadBoardConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration error")
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.Level).Msg("Bad log level")
	}
	if *verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	core.SetDebugWriter(func(s string) { log.Debug().Msg(s) })
	core.SetDebugEnabled(level <= zerolog.DebugLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Flight loop stopped")
	}
}

func run(ctx context.Context, cfg BoardConfig) error {
	start := time.Now()
	core.SetClockSource(func() uint32 {
		return uint32(time.Since(start) / time.Microsecond)
	})

	// Motors first, held at zero
	pwm := NewSysfsPWMDriver(cfg.PWMChip)
	defer pwm.Close()
	core.SetPWMDriver(pwm)

	var pins [core.NumMotors]core.PWMPin
	for i, ch := range cfg.MotorPWM {
		pins[i] = core.PWMPin(ch)
	}
	output := core.NewOutputStage(core.MustPWM(), pins, cfg.Flight.Output)
	if err := output.Configure(cfg.MotorPeriod); err != nil {
		return err
	}
	defer output.Stop()

	gpio := NewCdevGPIODriver(cfg.Chip)
	defer gpio.Close()
	core.SetGPIODriver(gpio)

	capture := core.NewPulseCapture(cfg.Flight.Window)
	rx, err := NewReceiver(cfg.Chip, cfg.ReceiverLines, capture)
	if err != nil {
		return err
	}
	defer rx.Close()

	bus := NewLinuxI2C(cfg.I2CBus)
	defer bus.Close()
	gyro := core.NewMotionPlus(bus)
	if err := gyro.Configure(); err != nil {
		return err
	}
	log.Info().Int("bus", cfg.I2CBus).Msg("Gyro activated")

	flight := core.NewFlight(cfg.Flight, capture, gyro, output)

	if cfg.LEDLine >= 0 {
		led, err := core.NewStatusLED(core.MustGPIO(), core.GPIOPin(cfg.LEDLine))
		if err != nil {
			return err
		}
		flight.SetStatusLED(led)
	}

	if cfg.Telemetry.Device != "" {
		port, err := serial.Open(&cfg.Telemetry)
		if err != nil {
			return err
		}
		defer port.Close()
		flight.SetTelemetry(serialOutput{port})
		log.Info().Str("device", cfg.Telemetry.Device).Msg("Telemetry enabled")
	}

	log.Info().Dur("startup_delay", cfg.Flight.StartupDelay).Msg("Waiting for receiver, then calibrating")
	if err := flight.Start(); err != nil {
		core.DumpEdgeRing()
		flight.Halt()
		return err
	}
	off := flight.Offsets()
	log.Info().
		Int32("pitch_zero", off.PitchGyro).
		Int32("roll_zero", off.RollGyro).
		Int32("yaw_zero", off.YawGyro).
		Uints32("sticks", off.Sticks[:]).
		Int("samples", off.Samples).
		Msg("Calibrated")

	go func() {
		<-ctx.Done()
		flight.Stop()
	}()
	go reportStats(ctx, flight, capture)

	err = flight.Run()
	log.Info().Uint32("cycles", flight.Cycles()).Msg("Flight loop stopped, motors off")
	return err
}

func reportStats(ctx context.Context, flight *core.Flight, capture *core.PulseCapture) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var rejected [core.NumChannels]uint32
			for ch := range rejected {
				rejected[ch] = capture.Rejected(core.Channel(ch))
			}
			snap := capture.Snapshot()
			log.Info().
				Uint32("cycles", flight.Cycles()).
				Uint32("bus_errors", flight.BusErrors()).
				Uints32("sticks", snap[:]).
				Uints32("rejected", rejected[:]).
				Msg("Flight")
		}
	}
}
