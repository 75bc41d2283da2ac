package beacon

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// DefaultFrameCachePath is the default path for the resolved-frame cache
const DefaultFrameCachePath = ".frame-cache.json"

// FrameCache stores resolved scanner frames for one report.
// Frames are only reusable while the report fingerprint, reference and
// search settings all match.
type FrameCache struct {
	Fingerprint string          `json:"fingerprint"`
	Reference   int             `json:"reference"`
	Search      SearchKey       `json:"search"`
	Scanners    int             `json:"scanners"`
	Frames      map[int]Matrix4 `json:"frames"`
	Edges       []Edge          `json:"edges,omitempty"`
	LastUpdated int64           `json:"lastUpdated"`
}

// Fingerprint hashes the normalized text form of a report with BLAKE3
func Fingerprint(scanners []Scanner) string {
	h := blake3.New()
	// Writes to a hash never fail
	_ = FormatReport(h, scanners)
	return hex.EncodeToString(h.Sum(nil))
}

// LoadFrameCache loads a frame cache from disk.
// A missing file is not an error: it returns (nil, nil).
func LoadFrameCache(path string) (*FrameCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading frame cache: %w", err)
	}

	var fc FrameCache
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing frame cache: %w", err)
	}
	return &fc, nil
}

// SaveFrameCache writes the cache, creating parent directories as needed
func SaveFrameCache(path string, fc *FrameCache) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating frame cache directory: %w", err)
	}

	fc.LastUpdated = time.Now().Unix()

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling frame cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing frame cache: %w", err)
	}
	return nil
}

// Matches reports whether the cache holds a complete frame set for this
// report, reference and search key. A cache written without a key never matches.
func (fc *FrameCache) Matches(fingerprint string, reference, scanners int, key SearchKey) bool {
	if fc == nil || fc.Fingerprint != fingerprint || fc.Reference != reference || fc.Scanners != scanners {
		return false
	}
	if fc.Search != key {
		return false
	}
	for i := 0; i < scanners; i++ {
		m, ok := fc.Frames[i]
		if !ok || !IsProperRotation(RotationOf(m)) {
			return false
		}
	}
	return true
}

// NewFrameCache captures a solved result for reuse
func NewFrameCache(res *Result) *FrameCache {
	frames := make(map[int]Matrix4, len(res.Frames))
	for k, v := range res.Frames {
		frames[k] = v
	}
	return &FrameCache{
		Fingerprint: res.Fingerprint,
		Reference:   res.Reference,
		Search:      res.Search,
		Scanners:    res.ScannerCount,
		Frames:      frames,
		Edges:       res.Edges,
	}
}
