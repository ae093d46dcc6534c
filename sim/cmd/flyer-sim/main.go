package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"flyer/core"
	"flyer/sim"
)

// Phase holds the receiver and gyro inputs for a number of control cycles
type Phase struct {
	Name     string `yaml:"name"`
	Cycles   int    `yaml:"cycles"`
	Roll     uint32 `yaml:"roll"`
	Pitch    uint32 `yaml:"pitch"`
	Yaw      uint32 `yaml:"yaw"`
	Throttle uint32 `yaml:"throttle"`

	PitchRate int32 `yaml:"pitch_rate"`
	RollRate  int32 `yaml:"roll_rate"`
	YawRate   int32 `yaml:"yaw_rate"`

	BusFaults int `yaml:"bus_faults"`
}

// Scenario is a scripted bench run
type Scenario struct {
	Flight core.Config `yaml:"flight"`
	Phases []Phase     `yaml:"phases"`
}

var defaultPhases = []Phase{
	{Name: "idle", Cycles: 40, Roll: 1500, Pitch: 1500, Yaw: 1500, Throttle: 1000},
	{Name: "spool", Cycles: 80, Roll: 1500, Pitch: 1500, Yaw: 1500, Throttle: 1200},
	{Name: "pitch forward", Cycles: 80, Roll: 1500, Pitch: 1600, Yaw: 1500, Throttle: 1200},
	{Name: "gust", Cycles: 40, Roll: 1500, Pitch: 1500, Yaw: 1500, Throttle: 1200, RollRate: 25},
	{Name: "yaw", Cycles: 80, Roll: 1500, Pitch: 1500, Yaw: 1400, Throttle: 1200},
	{Name: "bus fault", Cycles: 20, Roll: 1500, Pitch: 1500, Yaw: 1500, Throttle: 1200, BusFaults: 5},
}

var (
	scenarioPath  = flag.String("scenario", "", "YAML scenario file (built-in scenario if empty)")
	telemetryPath = flag.String("telemetry", "", "Write the raw telemetry stream to this file")
	every         = flag.Int("every", 20, "Print motor outputs every N cycles")
	verbose       = flag.Bool("verbose", false, "Print flight debug messages")
)

func loadScenario() (Scenario, error) {
	sc := Scenario{Flight: core.DefaultConfig(), Phases: defaultPhases}
	if *scenarioPath == "" {
		return sc, nil
	}
	data, err := os.ReadFile(*scenarioPath)
	if err != nil {
		return sc, fmt.Errorf("failed to read scenario: %w", err)
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("failed to parse scenario %s: %w", *scenarioPath, err)
	}
	return sc, nil
}

func main() {
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	sc, err := loadScenario()
	if err != nil {
		log.Fatal().Err(err).Msg("Scenario error")
	}
	if err := run(sc); err != nil {
		log.Fatal().Err(err).Msg("Simulation failed")
	}
}

func run(sc Scenario) error {
	if *verbose {
		core.SetDebugWriter(func(s string) { log.Debug().Msg(s) })
		core.SetDebugEnabled(true)
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	bench, err := sim.NewBench(sc.Flight)
	if err != nil {
		return fmt.Errorf("failed to build bench: %w", err)
	}
	defer bench.Close()

	if len(sc.Phases) > 0 {
		p := sc.Phases[0]
		bench.SetSticks(core.Sticks{core.Roll: p.Roll, core.Pitch: p.Pitch, core.Yaw: p.Yaw, core.Throttle: p.Throttle})
	}

	if err := bench.Start(); err != nil {
		core.DumpEdgeRing()
		return fmt.Errorf("startup failed: %w", err)
	}
	off := bench.Flight().Offsets()
	log.Info().
		Int32("pitch_zero", off.PitchGyro).
		Int32("roll_zero", off.RollGyro).
		Int32("yaw_zero", off.YawGyro).
		Int("samples", off.Samples).
		Float64("clock_ms", float64(bench.Now())/1000).
		Msg("Calibrated")

	cycle := 0
	for _, p := range sc.Phases {
		bench.SetSticks(core.Sticks{core.Roll: p.Roll, core.Pitch: p.Pitch, core.Yaw: p.Yaw, core.Throttle: p.Throttle})
		bench.SetRates(p.PitchRate, p.RollRate, p.YawRate)
		bench.Bus.FailNext(p.BusFaults)
		log.Info().Str("phase", p.Name).Int("cycles", p.Cycles).Msg("Phase")

		for i := 0; i < p.Cycles; i++ {
			cmd, err := bench.Step()
			if err != nil {
				return fmt.Errorf("cycle %d: %w", cycle, err)
			}
			if *every > 0 && cycle%*every == 0 {
				log.Info().
					Int("cycle", cycle).
					Int32("front", cmd.Front).
					Int32("left", cmd.Left).
					Int32("right", cmd.Right).
					Int32("rear", cmd.Rear).
					Msg("Motors")
			}
			cycle++
		}
	}

	var rejected uint32
	for ch := core.Channel(0); ch < core.NumChannels; ch++ {
		rejected += bench.Capture().Rejected(ch)
	}
	log.Info().
		Int("cycles", cycle).
		Uint32("bus_errors", bench.Flight().BusErrors()).
		Uint32("rejected_edges", rejected).
		Int("telemetry_bytes", bench.Telemetry.Len()).
		Msg("Done")

	if *telemetryPath != "" {
		if err := os.WriteFile(*telemetryPath, bench.Telemetry.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write telemetry: %w", err)
		}
	}
	return nil
}
