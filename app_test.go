package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kwv/beaconmesh/beacon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineReport is two scanners sharing 12 beacons offset by (5,5,5); the merged
// report holds 14 distinct beacons.
func lineReport() string {
	var b strings.Builder
	b.WriteString("--- scanner 0 ---\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "%d,0,0\n", i*10)
	}
	b.WriteString("998,0,0\n\n--- scanner 1 ---\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "%d,5,5\n", i*10+5)
	}
	b.WriteString("-998,0,0\n")
	return b.String()
}

func writeReport(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(path, []byte(lineReport()), 0644); err != nil {
		t.Fatalf("write report fixture: %v", err)
	}
	return path
}

// newTestApp returns an app rooted in a temp dir with no config file present
func newTestApp(t *testing.T) (*App, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	var out bytes.Buffer
	app := NewApp(strings.NewReader(""), &out)
	app.ApplyOptions(AppOptions{
		ConfigFile: filepath.Join(dir, "config.yaml"),
		CachePath:  filepath.Join(dir, ".frame-cache.json"),
		Reference:  -1,
		Format:     "svg",
	})
	return app, &out, dir
}

func TestNewApp(t *testing.T) {
	app := NewApp(nil, nil)
	if app.StateTracker == nil {
		t.Error("StateTracker should be initialized")
	}
	if app.Reference != -1 {
		t.Errorf("Reference = %d, want -1", app.Reference)
	}
}

func TestApplyOptions(t *testing.T) {
	app := NewApp(nil, nil)
	opts := AppOptions{
		ConfigFile:  "test-config.yaml",
		InputFile:   "in.txt",
		URL:         "http://example",
		CachePath:   ".test-cache.json",
		Workers:     3,
		Reference:   1,
		OutputFile:  "out.svg",
		Format:      "svg",
		GeoJSONFile: "out.geojson",
		Report:      true,
		HttpPort:    9999,
		MqttMode:    true,
		HttpMode:    true,
	}
	app.ApplyOptions(opts)

	assert.Equal(t, "test-config.yaml", app.ConfigFile)
	assert.Equal(t, "in.txt", app.InputFile)
	assert.Equal(t, "http://example", app.URL)
	assert.Equal(t, ".test-cache.json", app.CachePath)
	assert.Equal(t, 3, app.Workers)
	assert.Equal(t, 1, app.Reference)
	assert.Equal(t, "out.svg", app.OutputFile)
	assert.Equal(t, "out.geojson", app.GeoJSONFile)
	assert.True(t, app.Report)
	assert.Equal(t, 9999, app.HttpPort)
	assert.True(t, app.MqttMode)
	assert.True(t, app.HttpMode)
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	app, _, dir := newTestApp(t)
	require.NoError(t, os.WriteFile(app.ConfigFile, []byte("reference: 1\nregistration:\n  workers: 2\n"), 0644))

	cfg, err := app.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Reference)
	assert.Equal(t, 2, cfg.Registration.Workers)

	app.Workers = 6
	app.Reference = 0
	cfg, err = app.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Reference)
	assert.Equal(t, 6, cfg.Registration.Workers)

	app.ConfigFile = filepath.Join(dir, "missing.yaml")
	app.Reference = -1
	cfg, err = app.loadConfig()
	require.NoError(t, err, "missing config falls back to defaults")
	assert.Equal(t, beacon.DefaultSensingRange, cfg.Registration.SensingRange)

	require.NoError(t, os.WriteFile(app.ConfigFile, []byte("reference: -4\n"), 0644))
	_, err = app.loadConfig()
	assert.Error(t, err)
}

func TestRunSolve_File(t *testing.T) {
	app, out, dir := newTestApp(t)
	app.InputFile = writeReport(t, dir)

	require.NoError(t, app.RunSolve())
	assert.Equal(t, "14\n", out.String())

	_, err := os.Stat(app.CachePath)
	assert.NoError(t, err, "frame cache should be written")
}

func TestRunSolve_Stdin(t *testing.T) {
	app, out, _ := newTestApp(t)
	app.In = strings.NewReader(lineReport())
	app.InputFile = "-"

	require.NoError(t, app.RunSolve())
	assert.Equal(t, "14\n", out.String())
}

func TestRunSolve_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(lineReport()))
	}))
	defer srv.Close()

	app, out, _ := newTestApp(t)
	app.URL = srv.URL
	app.CachePath = ""

	require.NoError(t, app.RunSolve())
	assert.Equal(t, "14\n", out.String())
}

func TestRunSolve_ReportAndCache(t *testing.T) {
	app, out, dir := newTestApp(t)
	app.InputFile = writeReport(t, dir)
	app.Report = true
	require.NoError(t, app.RunSolve())

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "14\n"))
	assert.Contains(t, text, "scanner 1 at (-5, -5, -5)")
	assert.Contains(t, text, "0 -> 1 (overlap 12)")
	assert.Contains(t, text, "Max scanner distance: 15")
	assert.NotContains(t, text, "reused from cache")

	// A fresh app over the same report reuses the persisted frames
	again, out2, _ := newTestApp(t)
	again.InputFile = app.InputFile
	again.CachePath = app.CachePath
	again.Report = true
	require.NoError(t, again.RunSolve())
	assert.Contains(t, out2.String(), "Frames: reused from cache")
	assert.True(t, strings.HasPrefix(out2.String(), "14\n"))
}

func TestRunSolve_GeoJSON(t *testing.T) {
	app, _, dir := newTestApp(t)
	app.InputFile = writeReport(t, dir)
	app.GeoJSONFile = filepath.Join(dir, "beacons.geojson")

	require.NoError(t, app.RunSolve())
	data, err := os.ReadFile(app.GeoJSONFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}

func TestRunSolve_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		app, _, dir := newTestApp(t)
		app.InputFile = filepath.Join(dir, "nope.txt")
		assert.Error(t, app.RunSolve())
	})

	t.Run("malformed report", func(t *testing.T) {
		app, _, _ := newTestApp(t)
		app.In = strings.NewReader("--- scanner 0 ---\n1,2\n")
		var parseErr *beacon.ParseError
		assert.True(t, errors.As(app.RunSolve(), &parseErr))
	})

	t.Run("disconnected", func(t *testing.T) {
		app, _, _ := newTestApp(t)
		app.In = strings.NewReader("--- scanner 0 ---\n1,2,3\n\n--- scanner 1 ---\n4,5,6\n")
		err := app.RunSolve()
		var graphErr *beacon.DisconnectedGraphError
		require.True(t, errors.As(err, &graphErr))
		assert.Equal(t, []int{1}, graphErr.Unregistered)
		assert.Contains(t, app.StateTracker.Status().LastError, "disconnected")
	})
}

func TestRunRender(t *testing.T) {
	for _, format := range []string{"svg", "png"} {
		t.Run(format, func(t *testing.T) {
			app, out, dir := newTestApp(t)
			app.InputFile = writeReport(t, dir)
			app.Format = format
			app.OutputFile = filepath.Join(dir, "plan."+format)

			require.NoError(t, app.RunRender())
			info, err := os.Stat(app.OutputFile)
			require.NoError(t, err)
			assert.Positive(t, info.Size())
			assert.Contains(t, out.String(), "Rendered 14 beacons from 2 scanners")
		})
	}
}

func TestProcessReport_UpdatesState(t *testing.T) {
	app, _, _ := newTestApp(t)
	_, err := app.loadConfig()
	require.NoError(t, err)

	scanners, err := beacon.ParseReportBytes([]byte(lineReport()))
	require.NoError(t, err)

	res, err := app.processReport(context.Background(), scanners)
	require.NoError(t, err)
	assert.Equal(t, 14, res.BeaconCount)
	assert.Same(t, res, app.StateTracker.GetResult())

	// The second solve of the same report comes from the in-memory cache
	res2, err := app.processReport(context.Background(), scanners)
	require.NoError(t, err)
	assert.True(t, res2.FromCache)
	assert.Equal(t, 2, app.StateTracker.Status().Solves)
}

func TestPrintServiceInfo(t *testing.T) {
	app, out, _ := newTestApp(t)
	app.HttpMode = true
	app.HttpPort = 4041

	app.printServiceInfo(beacon.DefaultConfig())
	assert.Contains(t, out.String(), "HTTP endpoints (port 4041)")
	assert.Contains(t, out.String(), "POST /report")
	assert.NotContains(t, out.String(), "MQTT:")
}
