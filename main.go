// Command speedfusion runs the vehicle velocity estimation service: a tiered
// diagnostic poller feeding a three-state velocity filter at a fixed 20 Hz
// fusion tick, with the result served over HTTP and optionally recorded to
// sqlite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/driveline-data/speedfusion/internal/api"
	"github.com/driveline-data/speedfusion/internal/config"
	"github.com/driveline-data/speedfusion/internal/db"
	"github.com/driveline-data/speedfusion/internal/estimator"
	"github.com/driveline-data/speedfusion/internal/fusion"
	"github.com/driveline-data/speedfusion/internal/gps"
	"github.com/driveline-data/speedfusion/internal/mat3"
	"github.com/driveline-data/speedfusion/internal/monitoring"
	"github.com/driveline-data/speedfusion/internal/obd"
	"github.com/driveline-data/speedfusion/internal/simdrive"
	"github.com/driveline-data/speedfusion/internal/timeutil"
	"github.com/driveline-data/speedfusion/internal/vision"
)

var (
	listenAddr = flag.String("listen", ":8080", "HTTP listen address")
	configPath = flag.String("config", "", "path to tuning config JSON (optional)")
	dbPath     = flag.String("db", "", "path to sqlite estimate database (empty disables recording)")
	serialPort = flag.String("serial", "", "serial port of the diagnostic adapter (overrides config)")
	devMode    = flag.Bool("dev", false, "run against a scripted adapter instead of real hardware")
)

// devResponses is the scripted adapter used by -dev: plausible steady-state
// readings for every supported parameter, in raw adapter framing.
var devResponses = map[string]string{
	"ATZ":   "ELM327 v1.5",
	"ATE0":  "OK",
	"ATL0":  "OK",
	"ATS0":  "OK",
	"ATSP0": "OK",
	"010C":  "41 0C 1A F2", // 1726 rpm
	"010D":  "41 0D 32",    // 50 km/h
	"010B":  "41 0B 23",    // 35 kPa
	"0111":  "41 11 30",
	"0105":  "41 05 7B", // 83 C
	"010F":  "41 0F 3C",
	"010E":  "41 0E 90",
	"0110":  "41 10 05 DC",
	"0144":  "41 44 80 00",
	"0104":  "41 04 45",
	"0142":  "41 42 34 9C", // 13.5 V
	"012F":  "41 2F A0",
	"0133":  "41 33 63",
	"0146":  "41 46 2E",
	"0123":  "41 23 0F A0",
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "speedfusion: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := &config.TuningConfig{}
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := openTransport(cfg)
	if err != nil {
		return err
	}
	defer transport.Close()

	if err := obd.Initialize(ctx, transport); err != nil {
		return fmt.Errorf("adapter initialization failed: %w", err)
	}

	clock := timeutil.RealClock{}
	cache := obd.NewCache()
	pollCfg := obd.DefaultPollerConfig()
	pollCfg.Backoff = cfg.GetPollBackoff()
	poller := obd.NewPoller(transport, cache, clock, pollCfg)

	filter := estimator.New(estimator.Config{
		ProcessNoise:     mat3.Vec3{cfg.GetProcessNoiseLong(), cfg.GetProcessNoiseLat(), cfg.GetProcessNoiseVert()},
		InitialVariance:  1.0,
		BusSpeedVariance: cfg.GetBusSpeedVariance(),
		SatVarianceFloor: cfg.GetSatVarianceFloor(),
		SatVarianceScale: cfg.GetSatVarianceScale(),
		VisionNoiseScale: cfg.GetVisionNoiseScale(),
		VisionMinConf:    0.1,
	}, vision.New(cfg.GetLighting()))

	var recorder fusion.Recorder
	var history api.HistoryStore
	if *dbPath != "" {
		store, err := db.NewDB(*dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		recorder = store
		history = store
		poller.SetSampleRecorder(store)
	}

	orch := fusion.New(fusion.Config{
		TickPeriod:       cfg.GetTickPeriod(),
		StalenessWindow:  cfg.GetStalenessWindow(),
		FixExpiry:        cfg.GetFixExpiry(),
		VisionEveryTicks: cfg.GetVisionEveryTicks(),
	}, clock, filter, cache, simdrive.New(uint64(time.Now().UnixNano())), recorder)

	monitoring.Logf("main: starting run %s", orch.RunID())

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("main: poller stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("main: orchestrator stopped: %v", err)
		}
	}()

	if *devMode {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runDevFixProducer(ctx, orch)
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", api.NewServer(orch, history).ServeMux()))
	server := &http.Server{
		Addr:    *listenAddr,
		Handler: mux,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitoring.Logf("main: listening on %s", *listenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Logf("main: http server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("main: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("main: http shutdown: %v", err)
	}

	wg.Wait()
	return nil
}

func openTransport(cfg *config.TuningConfig) (obd.Transport, error) {
	if *devMode {
		monitoring.Logf("main: dev mode, using scripted adapter")
		return obd.NewMockTransport(devResponses), nil
	}
	port := cfg.GetSerialPort()
	if *serialPort != "" {
		port = *serialPort
	}
	monitoring.Logf("main: opening adapter on %s at %d baud", port, cfg.GetBaudRate())
	return obd.OpenSerialTransport(port, cfg.GetBaudRate(), cfg.GetRequestTimeout())
}

// runDevFixProducer feeds the orchestrator a synthetic position fix once per
// second, matching the scripted adapter's 50 km/h steady state.
func runDevFixProducer(ctx context.Context, orch *fusion.Orchestrator) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			orch.OnFix(gps.Fix{
				SpeedMps: 13.9,
				HasSpeed: true,
				Accuracy: 3.0,
				Lat:      37.7749,
				Lon:      -122.4194,
			})
		}
	}
}
