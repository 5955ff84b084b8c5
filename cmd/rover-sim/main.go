package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/rover-sim/internal/bridge"
	"github.com/banshee-data/rover-sim/internal/config"
	"github.com/banshee-data/rover-sim/internal/lidarsim"
	"github.com/banshee-data/rover-sim/internal/monitoring"
	"github.com/banshee-data/rover-sim/internal/report"
	"github.com/banshee-data/rover-sim/internal/rundb"
	"github.com/banshee-data/rover-sim/internal/sim"
	"github.com/banshee-data/rover-sim/internal/telemetry"
	"github.com/banshee-data/rover-sim/internal/version"
	"github.com/banshee-data/rover-sim/internal/visualiser"
)

var (
	configFile  = flag.String("config", "", "Path to JSON run configuration (default: built-in defaults)")
	sceneFile   = flag.String("scene", "", "Path to YAML scenario (default: open ground)")
	ticks       = flag.Int("ticks", -1, "Number of ticks to run; 0 runs until interrupted (default: from config)")
	seed        = flag.Int64("seed", -1, "Sensor noise seed (default: from config)")
	realtime    = flag.Bool("realtime", false, "Pace ticks against the wall clock")
	dbFile      = flag.String("db", "", "Path to SQLite run database (empty disables)")
	csvFile     = flag.String("csv", "", "Write drive telemetry CSV to this path")
	scanCSV     = flag.String("scan-csv", "", "Write per-frame scan statistics CSV to this path")
	plotFile    = flag.String("plot", "", "Write a top-down PNG of the final scan")
	trajFile    = flag.String("trajectory", "", "Write a PNG of the chassis path")
	chartFile   = flag.String("chart", "", "Write an HTML wheel telemetry chart")
	grpcListen  = flag.String("grpc-listen", "", "Serve point cloud frames over gRPC on this address (empty disables)")
	cmdUDP      = flag.String("cmd-udp", "", "Accept JSON twist commands on this UDP address (empty disables)")
	cmdStdin    = flag.Bool("cmd-stdin", false, "Accept JSON twist commands, one per line, on stdin")
	keysStdin   = flag.Bool("keys-stdin", false, "Read manual key presses (forward, back, left, right, stop), one press per line, on stdin")
	tfLog       = flag.Bool("tf-log", false, "Log every pose broadcast")
	logInterval = flag.Duration("log-interval", 0, "Status logging interval in simulated time (default: from config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// options is the resolved command line.
type options struct {
	ConfigFile  string
	SceneFile   string
	Ticks       int
	Seed        int64
	Realtime    bool
	DBFile      string
	CSVFile     string
	ScanCSV     string
	PlotFile    string
	TrajFile    string
	ChartFile   string
	GRPCListen  string
	CmdUDP      string
	CmdStdin    bool
	KeysStdin   bool
	TFLog       bool
	LogInterval time.Duration
}

func optionsFromFlags() options {
	return options{
		ConfigFile:  *configFile,
		SceneFile:   *sceneFile,
		Ticks:       *ticks,
		Seed:        *seed,
		Realtime:    *realtime,
		DBFile:      *dbFile,
		CSVFile:     *csvFile,
		ScanCSV:     *scanCSV,
		PlotFile:    *plotFile,
		TrajFile:    *trajFile,
		ChartFile:   *chartFile,
		GRPCListen:  *grpcListen,
		CmdUDP:      *cmdUDP,
		CmdStdin:    *cmdStdin,
		KeysStdin:   *keysStdin,
		TFLog:       *tfLog,
		LogInterval: *logInterval,
	}
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig(o options) (*config.SimConfig, error) {
	cfg := config.DefaultSimConfig()
	if o.ConfigFile != "" {
		var err error
		if cfg, err = config.LoadSimConfig(o.ConfigFile); err != nil {
			return nil, err
		}
	}
	if o.Ticks >= 0 {
		cfg.Ticks = &o.Ticks
	}
	if o.Seed >= 0 {
		cfg.Seed = &o.Seed
	}
	if o.Realtime {
		cfg.Realtime = &o.Realtime
	}
	if o.LogInterval > 0 {
		s := o.LogInterval.String()
		cfg.StatusLogInterval = &s
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadScenario(path string) (*sim.Scenario, error) {
	if path == "" {
		return sim.OpenGround(), nil
	}
	return sim.LoadScenario(path)
}

// setup builds everything that can fail before the run starts.
func setup(o options) (*config.SimConfig, *sim.World, error) {
	if o.CmdStdin && o.KeysStdin {
		return nil, nil, errors.New("-cmd-stdin and -keys-stdin both read stdin; pick one")
	}
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	sc, err := loadScenario(o.SceneFile)
	if err != nil {
		return nil, nil, fmt.Errorf("scenario: %w", err)
	}
	world, err := sim.NewWorld(cfg, sc)
	if err != nil {
		return nil, nil, fmt.Errorf("world: %w", err)
	}
	return cfg, world, nil
}

// run executes one simulation and writes every requested output.
func run(ctx context.Context, o options, cfg *config.SimConfig, world *sim.World) (sim.Summary, error) {
	rec := &telemetry.Recorder{}
	world.OnSample(rec.AddDrive)
	world.OnFrame(func(f *lidarsim.Frame) { rec.AddScan(telemetry.NewScanSample(f)) })

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	if o.GRPCListen != "" {
		vcfg := visualiser.DefaultConfig()
		vcfg.ListenAddr = o.GRPCListen
		vcfg.SensorID = cfg.GetSensorName()
		pub := visualiser.NewPublisher(vcfg)
		if err := pub.Start(); err != nil {
			return sim.Summary{}, fmt.Errorf("visualiser: %w", err)
		}
		defer pub.Stop()
		world.OnFrame(pub.PublishFrame)
	}

	commands := bridge.NewCommandBridge(world.Vehicle().Twist())
	if o.CmdUDP != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := commands.ListenUDP(ctx, o.CmdUDP); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[Bridge] command listener error: %v", err)
			}
		}()
	}
	if o.CmdStdin {
		// Not joined: a blocked stdin read cannot be interrupted.
		go func() {
			if err := commands.ServeLines(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[Bridge] stdin command error: %v", err)
			}
		}()
	}

	var keys *bridge.KeyInput
	if o.KeysStdin {
		keys = bridge.NewKeyInput()
		go func() {
			if err := keys.ServeLines(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[Bridge] stdin key error: %v", err)
			}
		}()
	}

	throttle := monitoring.NewThrottle(cfg.GetStatusLogInterval(), time.Now)
	broadcaster := bridge.NewPoseBroadcaster(world, cfg.GetSensorName(), cfg.GetPoseBroadcastInterval(), nil,
		func(set bridge.TransformSet) {
			base := set.Transforms[0]
			if o.TFLog {
				monitoring.Logf("[Bridge] tf %s->%s t=%v q=%v", base.Parent, base.Child, base.Translation, base.Rotation)
				return
			}
			throttle.Logf("tf", "[Bridge] tf %s->%s t=%.2f", base.Parent, base.Child, base.Translation)
		})
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = broadcaster.Run(ctx)
	}()

	var db *rundb.DB
	var runID string
	if o.DBFile != "" {
		var err error
		if db, err = rundb.Open(o.DBFile); err != nil {
			return sim.Summary{}, fmt.Errorf("run database: %w", err)
		}
		defer db.Close()
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return sim.Summary{}, fmt.Errorf("encode config: %w", err)
		}
		name := sceneName(o.SceneFile)
		if runID, err = db.CreateRun(name, cfg.GetSeed(), cfg.GetFixedDt().Seconds(), string(cfgJSON)); err != nil {
			return sim.Summary{}, err
		}
		log.Printf("Recording run %s to %s", runID, o.DBFile)
	}

	runner := &sim.Runner{
		World:          world,
		Realtime:       cfg.GetRealtime(),
		StatusInterval: cfg.GetStatusLogInterval(),
		SpeedUnits:     cfg.GetStatusSpeedUnits(),
	}
	if keys != nil {
		runner.Input = keys.Next
	}
	summary, runErr := runner.Run(ctx, cfg.GetTicks())
	cancel()
	wg.Wait()

	interrupted := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	if runErr != nil && !interrupted {
		return summary, runErr
	}
	log.Printf("Run finished: ticks=%d t=%.2fs frames=%d faults=%d distance=%.2fm commands=%d/%d rejected",
		summary.Ticks, summary.SimTime, summary.Frames, summary.Faults, summary.Distance,
		commands.Accepted(), commands.Rejected())

	if db != nil {
		status := rundb.StatusComplete
		if interrupted {
			status = rundb.StatusCancelled
		}
		if err := db.InsertDriveSamples(runID, rec.Drive()); err != nil {
			return summary, err
		}
		if err := db.InsertScanSamples(runID, rec.Scans()); err != nil {
			return summary, err
		}
		final := summary.FinalPose.Position
		if err := db.FinishRun(runID, rundb.RunResult{
			Ticks:    summary.Ticks,
			Frames:   summary.Frames,
			Faults:   summary.Faults,
			Distance: summary.Distance,
			FinalX:   final.X,
			FinalZ:   final.Z,
			Status:   status,
		}); err != nil {
			return summary, err
		}
	}

	return summary, writeOutputs(o, world, rec)
}

func writeOutputs(o options, world *sim.World, rec *telemetry.Recorder) error {
	if o.CSVFile != "" {
		if err := report.SaveDriveCSV(o.CSVFile, rec.Drive()); err != nil {
			return err
		}
		log.Printf("Wrote drive telemetry to %s", o.CSVFile)
	}
	if o.ScanCSV != "" {
		f, err := os.Create(o.ScanCSV)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", o.ScanCSV, err)
		}
		if err := report.WriteScanCSV(f, rec.Scans()); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("Wrote scan statistics to %s", o.ScanCSV)
	}
	if o.PlotFile != "" {
		if frame := world.Sensor().Latest(); frame != nil {
			if err := report.PlotScan(frame, o.PlotFile); err != nil {
				log.Printf("Scan plot skipped: %v", err)
			} else {
				log.Printf("Wrote scan plot to %s", o.PlotFile)
			}
		}
	}
	if o.TrajFile != "" {
		if err := report.PlotTrajectory(rec.Drive(), o.TrajFile); err != nil {
			log.Printf("Trajectory plot skipped: %v", err)
		} else {
			log.Printf("Wrote trajectory plot to %s", o.TrajFile)
		}
	}
	if o.ChartFile != "" {
		if err := report.SaveWheelChart(o.ChartFile, sceneName(o.SceneFile), rec.Drive()); err != nil {
			log.Printf("Wheel chart skipped: %v", err)
		} else {
			log.Printf("Wrote wheel chart to %s", o.ChartFile)
		}
	}
	return nil
}

func sceneName(path string) string {
	if path == "" {
		return "open-ground"
	}
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Printf("Starting %s", version.String())
	o := optionsFromFlags()

	cfg, world, err := setup(o)
	if err != nil {
		log.Fatalf("Failed to set up simulation: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := run(ctx, o, cfg, world); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
}
