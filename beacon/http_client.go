package beacon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

const (
	// DefaultFetchTimeout bounds a single report request
	DefaultFetchTimeout = 30 * time.Second

	// DefaultFetchAttempts is how many times a transient failure is tried
	DefaultFetchAttempts = 3

	// DefaultAccept is the media type requested from report sources
	DefaultAccept = "text/plain"

	defaultBaseBackoff = 500 * time.Millisecond
)

// StatusError is a non-200 answer from a report source
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP GET %s: status %d", e.URL, e.StatusCode)
}

// Transient reports whether the source may answer differently on a retry
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// FetchOption overrides a ReportFetcher setting
type FetchOption func(*ReportFetcher)

// WithHTTPClient replaces the fetcher's HTTP client
func WithHTTPClient(client *http.Client) FetchOption {
	return func(f *ReportFetcher) { f.client = client }
}

// WithBaseBackoff sets the delay before the second attempt; later ones double it
func WithBaseBackoff(d time.Duration) FetchOption {
	return func(f *ReportFetcher) { f.backoff = d }
}

// ReportFetcher downloads scanner reports over HTTP.
type ReportFetcher struct {
	client   *http.Client
	accept   string
	maxBytes int64
	attempts int
	backoff  time.Duration
}

// NewReportFetcher builds a fetcher from the source section of the config,
// filling unset fields with defaults.
func NewReportFetcher(src SourceConfig, opts ...FetchOption) *ReportFetcher {
	timeout := DefaultFetchTimeout
	if src.TimeoutSeconds > 0 {
		timeout = time.Duration(src.TimeoutSeconds) * time.Second
	}

	f := &ReportFetcher{
		client:   &http.Client{Timeout: timeout},
		accept:   src.Accept,
		maxBytes: src.MaxBytes,
		attempts: src.Attempts,
		backoff:  defaultBaseBackoff,
	}
	if f.accept == "" {
		f.accept = DefaultAccept
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxReportBytes
	}
	if f.attempts < 1 {
		f.attempts = DefaultFetchAttempts
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads and parses the report at url.
// Transport errors, 5xx and 429 answers are retried with exponential backoff.
// Other statuses, oversized bodies and malformed reports fail at once.
func (f *ReportFetcher) Fetch(ctx context.Context, url string) ([]Scanner, error) {
	if url == "" {
		return nil, errors.New("fetch report: URL is empty")
	}

	var lastErr error
	for attempt := 0; attempt < f.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch report: %w", ctx.Err())
			case <-time.After(f.backoff << (attempt - 1)):
			}
		}

		scanners, transient, err := f.fetchOnce(ctx, url)
		if err == nil {
			return scanners, nil
		}
		if !transient {
			return nil, fmt.Errorf("fetch report: %w", err)
		}
		log.Printf("Fetch attempt %d/%d failed: %v", attempt+1, f.attempts, err)
		lastErr = err
	}

	return nil, fmt.Errorf("fetch report: all %d attempts failed: %w", f.attempts, lastErr)
}

// fetchOnce performs one GET. transient is true when a retry may succeed.
func (f *ReportFetcher) fetchOnce(ctx context.Context, url string) (scanners []Scanner, transient bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", f.accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{URL: url, StatusCode: resp.StatusCode}
		return nil, statusErr.Transient(), statusErr
	}
	if resp.ContentLength > f.maxBytes {
		return nil, false, fmt.Errorf("%w: %s declares %d bytes, limit %d",
			ErrReportTooLarge, url, resp.ContentLength, f.maxBytes)
	}

	data, err := readLimited(resp.Body, f.maxBytes)
	if err != nil {
		return nil, !errors.Is(err, ErrReportTooLarge), err
	}

	scanners, err = ParseReportBytes(data)
	if err != nil {
		return nil, false, err
	}
	return scanners, false, nil
}
