package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kwv/beaconmesh/beacon"
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *beacon.Config
	StateTracker *beacon.StateTracker
	MQTTClient   *beacon.MQTTClient
	Publisher    *beacon.Publisher

	In  io.Reader
	Out io.Writer

	// CLI flags (effectively dependencies)
	ConfigFile  string
	InputFile   string
	URL         string
	CachePath   string
	Workers     int
	Reference   int
	OutputFile  string
	Format      string
	GeoJSONFile string
	Report      bool
	HttpPort    int
	MqttMode    bool
	HttpMode    bool

	// solveMu serializes solves from HTTP and MQTT
	solveMu sync.Mutex
}

// NewApp creates a new App instance
func NewApp(in io.Reader, out io.Writer) *App {
	return &App{
		StateTracker: beacon.NewStateTracker(),
		In:           in,
		Out:          out,
		Reference:    -1,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.InputFile = opts.InputFile
	a.URL = opts.URL
	a.CachePath = opts.CachePath
	a.Workers = opts.Workers
	a.Reference = opts.Reference
	a.OutputFile = opts.OutputFile
	a.Format = opts.Format
	a.GeoJSONFile = opts.GeoJSONFile
	a.Report = opts.Report
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig reads the config file (or defaults) and applies flag overrides
func (a *App) loadConfig() (*beacon.Config, error) {
	path := a.ConfigFile
	if path == "" {
		path = beacon.DefaultConfigPath
	}

	config, found, err := beacon.LoadConfigOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if found {
		log.Printf("Loaded config from %s", path)
	}

	if a.Workers > 0 {
		config.Registration.Workers = a.Workers
	}
	if a.Reference >= 0 {
		config.Reference = a.Reference
	}

	a.Config = config
	return config, nil
}

// loadReport reads the scanner report from -url, -input, or stdin
func (a *App) loadReport(ctx context.Context) ([]beacon.Scanner, error) {
	switch {
	case a.URL != "":
		log.Printf("Fetching report from %s", a.URL)
		return beacon.NewReportFetcher(a.Config.Source).Fetch(ctx, a.URL)
	case a.InputFile == "" || a.InputFile == "-":
		if a.In == nil {
			return nil, fmt.Errorf("no input: use -input or -url")
		}
		return beacon.ParseReport(a.In)
	default:
		return beacon.ParseReportFile(a.InputFile)
	}
}

// loadCache seeds the state tracker from the frame cache file, if any
func (a *App) loadCache() {
	if a.CachePath == "" {
		return
	}
	cache, err := beacon.LoadFrameCache(a.CachePath)
	if err != nil {
		log.Printf("Warning: failed to load frame cache %s: %v", a.CachePath, err)
		return
	}
	if cache != nil {
		a.StateTracker.SetCache(cache)
	}
}

// processReport solves a report, updates the state tracker, persists the
// frame cache, and publishes the result when MQTT is active.
func (a *App) processReport(ctx context.Context, scanners []beacon.Scanner) (*beacon.Result, error) {
	a.solveMu.Lock()
	defer a.solveMu.Unlock()

	res, err := beacon.SolveWithCache(ctx, scanners, a.Config, a.StateTracker.GetCache())
	if err != nil {
		a.StateTracker.RecordError(err)
		return nil, err
	}
	a.StateTracker.Update(scanners, res)

	if a.CachePath != "" && !res.FromCache {
		if err := beacon.SaveFrameCache(a.CachePath, a.StateTracker.GetCache()); err != nil {
			log.Printf("Warning: failed to save frame cache: %v", err)
		}
	}

	if a.Publisher != nil {
		if err := a.Publisher.PublishResult(res); err != nil {
			log.Printf("Error publishing result: %v", err)
		}
	}

	return res, nil
}

// solveInput runs the common load-config, load-report, solve sequence
func (a *App) solveInput(ctx context.Context) (*beacon.Result, error) {
	if _, err := a.loadConfig(); err != nil {
		return nil, err
	}
	scanners, err := a.loadReport(ctx)
	if err != nil {
		return nil, err
	}
	a.loadCache()
	return a.processReport(ctx, scanners)
}

// RunSolve prints the distinct beacon count for the input report
func (a *App) RunSolve() error {
	res, err := a.solveInput(context.Background())
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(a.Out, res.BeaconCount)

	if a.Report {
		a.printReport(res)
	}
	if a.GeoJSONFile != "" {
		if err := beacon.SaveGeoJSON(a.GeoJSONFile, res, a.Config.Registration.SensingRange); err != nil {
			return err
		}
		log.Printf("Saved GeoJSON to %s", a.GeoJSONFile)
	}
	return nil
}

// printReport writes per-scanner positions and the registration edges
func (a *App) printReport(res *beacon.Result) {
	w := a.Out
	_, _ = fmt.Fprintf(w, "\nScanners (reference %d):\n", res.Reference)
	for i, p := range res.Positions {
		_, _ = fmt.Fprintf(w, "  scanner %d at (%d, %d, %d)\n", i, p.X, p.Y, p.Z)
	}
	if len(res.Edges) > 0 {
		_, _ = fmt.Fprintln(w, "Registrations:")
		for _, e := range res.Edges {
			_, _ = fmt.Fprintf(w, "  %d -> %d (overlap %d)\n", e.Anchor, e.Target, e.Overlap)
		}
	}
	_, _ = fmt.Fprintf(w, "Max scanner distance: %d\n", res.MaxDistance)
	if res.FromCache {
		_, _ = fmt.Fprintln(w, "Frames: reused from cache")
	}
}

// RunRender solves the input report and writes a plan view to OutputFile
func (a *App) RunRender() error {
	res, err := a.solveInput(context.Background())
	if err != nil {
		return err
	}

	f, err := os.Create(a.OutputFile)
	if err != nil {
		return fmt.Errorf("creating %s: %w", a.OutputFile, err)
	}
	defer func() { _ = f.Close() }()

	renderer := beacon.NewPlanRenderer(res, a.Config)
	if a.Format == "png" {
		err = renderer.RenderToPNG(f)
	} else {
		err = renderer.RenderToSVG(f)
	}
	if err != nil {
		return fmt.Errorf("rendering %s: %w", a.OutputFile, err)
	}

	_, _ = fmt.Fprintf(a.Out, "Rendered %d beacons from %d scanners to %s\n",
		res.BeaconCount, res.ScannerCount, a.OutputFile)
	return nil
}

// RunService starts the combined MQTT and/or HTTP service
func (a *App) RunService() error {
	config, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.loadCache()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.MqttMode {
		handler := func(topic string, scanners []beacon.Scanner, err error) {
			if err != nil {
				a.StateTracker.RecordError(err)
				return
			}
			res, err := a.processReport(ctx, scanners)
			if err != nil {
				log.Printf("[MQTT] error solving report from %s: %v", topic, err)
				return
			}
			log.Printf("[MQTT] solved report from %s: %d beacons", topic, res.BeaconCount)
		}

		mqttClient, err := beacon.InitMQTT(config, handler)
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if mqttClient == nil {
			return fmt.Errorf("MQTT broker not configured (set MQTT_BROKER or mqtt.broker)")
		}
		a.MQTTClient = mqttClient
		a.Publisher = beacon.NewPublisher(mqttClient.GetClient(), config.MQTT.PublishPrefix)
		_, _ = fmt.Fprintln(a.Out, "MQTT result publisher initialized")
	}

	// An explicit report is solved once at startup
	if a.URL != "" || (a.InputFile != "" && a.InputFile != "-") {
		scanners, err := a.loadReport(ctx)
		if err != nil {
			log.Printf("Warning: initial report not loaded: %v", err)
		} else if res, err := a.processReport(ctx, scanners); err != nil {
			log.Printf("Warning: initial report not solved: %v", err)
		} else {
			_, _ = fmt.Fprintf(a.Out, "Solved initial report: %d beacons\n", res.BeaconCount)
		}
	}

	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:    fmt.Sprintf("0.0.0.0:%d", a.HttpPort),
			Handler: newHTTPServer(a.StateTracker, config, a.processReport),
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("[HTTP] Server error: %v", err)
				stop()
			}
		}()
	}

	a.printServiceInfo(config)

	<-ctx.Done()

	_, _ = fmt.Fprintln(a.Out, "\nShutting down service...")
	if server != nil {
		_ = server.Close()
	}
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	_, _ = fmt.Fprintln(a.Out, "Service stopped")
	return nil
}

func (a *App) printServiceInfo(config *beacon.Config) {
	w := a.Out
	_, _ = fmt.Fprintln(w, "\nService Running")
	_, _ = fmt.Fprintln(w, "===============")

	if a.MqttMode {
		_, _ = fmt.Fprintln(w, "\nMQTT:")
		_, _ = fmt.Fprintf(w, "  Subscribed topic: %s\n", config.MQTT.ReportTopic)
		_, _ = fmt.Fprintf(w, "  Publishing to: %s/result\n", a.Publisher.Prefix())
		_, _ = fmt.Fprintf(w, "  Scanner frames: %s/scanners/{index}\n", a.Publisher.Prefix())
	}

	if a.HttpMode {
		_, _ = fmt.Fprintf(w, "\nHTTP endpoints (port %d):\n", a.HttpPort)
		_, _ = fmt.Fprintln(w, "  GET  /health          - Health check")
		_, _ = fmt.Fprintln(w, "  GET  /result.json     - Latest solved result")
		_, _ = fmt.Fprintln(w, "  GET  /beacons.geojson - Beacons and scanners as GeoJSON")
		_, _ = fmt.Fprintln(w, "  GET  /plan.svg        - Plan view (SVG)")
		_, _ = fmt.Fprintln(w, "  GET  /plan.png        - Plan view (PNG)")
		_, _ = fmt.Fprintln(w, "  POST /report          - Submit a scanner report")
	}

	_, _ = fmt.Fprintln(w, "\nPress Ctrl+C to stop")
}
