package beacon

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultMaxReportBytes bounds reports received over HTTP or MQTT (16 MB)
const DefaultMaxReportBytes = 16 << 20

var (
	// ErrNoScanners is returned when a report contains no scanner blocks
	ErrNoScanners = errors.New("report contains no scanners")

	// ErrReportTooLarge is returned when a report exceeds its byte limit.
	// Oversized reports are rejected whole: a cut final record would still
	// parse as a valid point.
	ErrReportTooLarge = errors.New("report too large")
)

// ParseError describes a malformed line in a scanner report
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseReportFile reads and parses a scanner report file
func ParseReportFile(path string) ([]Scanner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseReportBytes(data)
}

// ReadReport parses a report from r, reading at most limit bytes.
// A limit of 0 or less means DefaultMaxReportBytes.
func ReadReport(r io.Reader, limit int64) ([]Scanner, error) {
	data, err := readLimited(r, limit)
	if err != nil {
		return nil, err
	}
	return ParseReportBytes(data)
}

// readLimited reads all of r, failing with ErrReportTooLarge past limit
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxReportBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrReportTooLarge, limit)
	}
	return data, nil
}

// checkSize rejects an in-memory report longer than limit
func checkSize(data []byte, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxReportBytes
	}
	if int64(len(data)) > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrReportTooLarge, len(data), limit)
	}
	return nil
}

// ParseReportBytes parses an in-memory scanner report
func ParseReportBytes(data []byte) ([]Scanner, error) {
	return ParseReport(bytes.NewReader(data))
}

// ParseReport parses scanner blocks: a header line (content ignored) followed
// by "x,y,z" lines, each block ended by a blank line or end of input.
func ParseReport(r io.Reader) ([]Scanner, error) {
	var scanners []Scanner
	var current *Scanner

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		if line == "" {
			if current != nil {
				scanners = append(scanners, *current)
				current = nil
			}
			continue
		}

		if current == nil {
			current = &Scanner{ID: len(scanners)}
			continue
		}

		p, err := parsePoint(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: line, Err: err}
		}
		current.Beacons = append(current.Beacons, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	if current != nil {
		scanners = append(scanners, *current)
	}

	if len(scanners) == 0 {
		return nil, ErrNoScanners
	}
	return scanners, nil
}

// parsePoint parses a single "x,y,z" record
func parsePoint(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Point{}, fmt.Errorf("expected 3 comma-separated values, got %d", len(parts))
	}
	var v [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Point{}, fmt.Errorf("coordinate %d: %w", i, err)
		}
		v[i] = n
	}
	return Point{X: v[0], Y: v[1], Z: v[2]}, nil
}

// FormatReport writes scanners back in the report text format
func FormatReport(w io.Writer, scanners []Scanner) error {
	bw := bufio.NewWriter(w)
	for i, s := range scanners {
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "--- scanner %d ---\n", i)
		for _, p := range s.Beacons {
			fmt.Fprintf(bw, "%d,%d,%d\n", p.X, p.Y, p.Z)
		}
	}
	return bw.Flush()
}
