package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kwv/beaconmesh/beacon"
)

// solveFunc solves a report and records it in the state tracker
type solveFunc func(ctx context.Context, scanners []beacon.Scanner) (*beacon.Result, error)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *beacon.StateTracker, config *beacon.Config, solve solveFunc) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status    string        `json:"status"`
			Timestamp time.Time     `json:"timestamp"`
			Version   string        `json:"version"`
			State     beacon.Status `json:"state"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   Version,
			State:     stateTracker.Status(),
		}
		writeJSON(w, http.StatusOK, status)
	})

	mux.HandleFunc("GET /result.json", func(w http.ResponseWriter, r *http.Request) {
		res := stateTracker.GetResult()
		if res == nil {
			http.Error(w, "No result available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /beacons.geojson", func(w http.ResponseWriter, r *http.Request) {
		res := stateTracker.GetResult()
		if res == nil {
			http.Error(w, "No result available", http.StatusServiceUnavailable)
			return
		}
		fc := beacon.ResultToFeatureCollection(res, config.Registration.SensingRange)
		data, err := fc.MarshalJSON()
		if err != nil {
			log.Printf("[HTTP] Error encoding GeoJSON: %v", err)
			http.Error(w, "Failed to encode GeoJSON", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	})

	mux.HandleFunc("GET /plan.svg", func(w http.ResponseWriter, r *http.Request) {
		servePlan(w, stateTracker, config, "image/svg+xml", (*beacon.PlanRenderer).RenderToSVG)
	})

	mux.HandleFunc("GET /plan.png", func(w http.ResponseWriter, r *http.Request) {
		servePlan(w, stateTracker, config, "image/png", (*beacon.PlanRenderer).RenderToPNG)
	})

	mux.HandleFunc("POST /report", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /report from %s", r.RemoteAddr)

		scanners, err := beacon.ReadReport(r.Body, config.Source.MaxBytes)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, beacon.ErrReportTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			http.Error(w, err.Error(), status)
			return
		}

		res, err := solve(r.Context(), scanners)
		if err != nil {
			log.Printf("[HTTP] Error solving report: %v", err)
			http.Error(w, err.Error(), solveErrorStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	return mux
}

// solveErrorStatus maps solve failures to HTTP status codes
func solveErrorStatus(err error) int {
	var rangeErr *beacon.RangeError
	var graphErr *beacon.DisconnectedGraphError
	switch {
	case errors.As(err, &rangeErr), errors.As(err, &graphErr), errors.Is(err, beacon.ErrNoScanners):
		return http.StatusUnprocessableEntity
	case errors.Is(err, beacon.ErrResourceExhausted):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// servePlan renders the latest result into a buffer so render failures still
// produce a clean error response
func servePlan(w http.ResponseWriter, st *beacon.StateTracker, config *beacon.Config, contentType string,
	render func(*beacon.PlanRenderer, io.Writer) error) {
	res := st.GetResult()
	if res == nil {
		http.Error(w, "No result available", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := render(beacon.NewPlanRenderer(res, config), &buf); err != nil {
		if errors.Is(err, beacon.ErrNothingToRender) {
			http.Error(w, "No drawable content", http.StatusServiceUnavailable)
			return
		}
		log.Printf("[HTTP] Error rendering plan: %v", err)
		http.Error(w, "Failed to render plan", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding response: %v", err)
	}
}
