package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kwv/beaconmesh/beacon"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile  string
	InputFile   string
	URL         string
	CachePath   string
	Workers     int
	Reference   int
	RenderOnly  bool
	OutputFile  string
	Format      string
	GeoJSONFile string
	Report      bool
	MqttMode    bool
	HttpMode    bool
	HttpPort    int
}

// Runner is the set of modes the CLI can dispatch to
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunSolve() error
	RunRender() error
	RunService() error
}

func main() {
	app := NewApp(os.Stdin, os.Stdout)
	if err := run(os.Args[1:], os.Stdout, app); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("Error: %v", err)
	}
}

// run parses args and dispatches to the selected mode
func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("beaconmesh", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", beacon.DefaultConfigPath, "Path to configuration file")
	fs.StringVar(&opts.InputFile, "input", "", "Scanner report file (- or empty reads stdin)")
	fs.StringVar(&opts.URL, "url", "", "Fetch the scanner report over HTTP instead of reading a file")
	fs.StringVar(&opts.CachePath, "cache", beacon.DefaultFrameCachePath, "Frame cache file (empty disables caching)")
	fs.IntVar(&opts.Workers, "workers", 0, "Parallel search lanes (0 = config or number of CPUs)")
	fs.IntVar(&opts.Reference, "reference", -1, "Reference scanner index (-1 = from config)")
	fs.BoolVar(&opts.RenderOnly, "render", false, "Render a plan view of the solved report and exit")
	fs.StringVar(&opts.OutputFile, "output", "", "Output file for -render (default plan.<format>)")
	fs.StringVar(&opts.Format, "format", "svg", "Render format: svg or png")
	fs.StringVar(&opts.GeoJSONFile, "geojson", "", "Also write the solved result as GeoJSON to this path")
	fs.BoolVar(&opts.Report, "report", false, "Print scanner positions and registration edges")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run service mode subscribed to MQTT reports")
	fs.BoolVar(&opts.HttpMode, "http", false, "Run service mode with the HTTP server")
	fs.IntVar(&opts.HttpPort, "http-port", 4040, "HTTP server port")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		_, _ = fmt.Fprintf(out, "beaconmesh version: %s\n", Version)
		return nil
	}

	if opts.Format != "svg" && opts.Format != "png" {
		return fmt.Errorf("unknown format %q (want svg or png)", opts.Format)
	}
	if opts.RenderOnly && opts.OutputFile == "" {
		opts.OutputFile = "plan." + opts.Format
	}

	app.ApplyOptions(opts)

	switch {
	case opts.MqttMode || opts.HttpMode:
		_, _ = fmt.Fprintf(out, "beaconmesh version: %s\n", Version)
		_, _ = fmt.Fprintln(out, "beaconmesh service starting...")
		return app.RunService()
	case opts.RenderOnly:
		return app.RunRender()
	default:
		return app.RunSolve()
	}
}
