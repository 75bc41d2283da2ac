package beacon

import (
	"sync"
	"time"
)

// Status summarizes the tracker for health endpoints
type Status struct {
	HasResult   bool      `json:"hasResult"`
	BeaconCount int       `json:"beaconCount"`
	Scanners    int       `json:"scanners"`
	Solves      int       `json:"solves"`
	LastError   string    `json:"lastError,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StateTracker holds the latest solved result for the HTTP and MQTT surfaces
type StateTracker struct {
	mu        sync.RWMutex
	result    *Result
	scanners  []Scanner
	cache     *FrameCache
	lastError error
	solves    int
	updatedAt time.Time
}

// NewStateTracker creates an empty state tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{}
}

// Update stores a freshly solved result and the report it came from
func (st *StateTracker) Update(scanners []Scanner, res *Result) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.scanners = scanners
	st.result = res
	st.cache = NewFrameCache(res)
	st.lastError = nil
	st.solves++
	st.updatedAt = time.Now()
}

// RecordError remembers the last failure without discarding the last good result
func (st *StateTracker) RecordError(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastError = err
	st.updatedAt = time.Now()
}

// GetResult returns the latest result, or nil if nothing has been solved
func (st *StateTracker) GetResult() *Result {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.result
}

// GetScanners returns the report behind the latest result
func (st *StateTracker) GetScanners() []Scanner {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.scanners
}

// GetCache returns the frame cache for the latest result
func (st *StateTracker) GetCache() *FrameCache {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cache
}

// SetCache seeds the tracker with a previously persisted frame cache
func (st *StateTracker) SetCache(fc *FrameCache) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cache = fc
}

// HasResult returns true once a report has been solved
func (st *StateTracker) HasResult() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.result != nil
}

// Status returns a snapshot for health reporting
func (st *StateTracker) Status() Status {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s := Status{
		HasResult: st.result != nil,
		Solves:    st.solves,
		UpdatedAt: st.updatedAt,
	}
	if st.result != nil {
		s.BeaconCount = st.result.BeaconCount
		s.Scanners = st.result.ScannerCount
	}
	if st.lastError != nil {
		s.LastError = st.lastError.Error()
	}
	return s
}
