package beacon

// Point is an integer beacon coordinate. The homogeneous fourth component is
// implicit and always 1; TransformPoint supplies it.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Add returns p + q
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns p - q
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// InRange reports whether p lies inside the cube [-r, r] on every axis.
func (p Point) InRange(r int) bool {
	return p.X >= -r && p.X <= r &&
		p.Y >= -r && p.Y <= r &&
		p.Z >= -r && p.Z <= r
}

// Manhattan returns the taxicab distance between p and q
func (p Point) Manhattan(q Point) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y) + abs(p.Z-q.Z)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Scanner is the ordered beacon list reported by one sensor
type Scanner struct {
	ID      int     `json:"id"`
	Beacons []Point `json:"beacons"`
}

// Matrix4 is a row-major 4x4 homogeneous transform with integer entries.
// The upper-left 3x3 block is the rotation, the last column the translation.
type Matrix4 [4][4]int

// Identity returns an identity matrix (no transformation)
func Identity() Matrix4 {
	return Matrix4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Registration is an accepted alignment of a candidate scanner onto an anchor.
type Registration struct {
	Transform       Matrix4 `json:"transform"`       // candidate frame -> anchor frame
	Orientation     int     `json:"orientation"`     // index into Orientations()
	Translation     Point   `json:"translation"`     // candidate origin in the anchor frame
	Overlap         int     `json:"overlap"`         // beacons that coincide exactly
	AnchorBeacon    int     `json:"anchorBeacon"`    // witness beacon index in the anchor
	CandidateBeacon int     `json:"candidateBeacon"` // witness beacon index in the candidate
}

// Edge records which anchor registered which scanner during traversal
type Edge struct {
	Anchor  int `json:"anchor"`
	Target  int `json:"target"`
	Overlap int `json:"overlap"`
}

// Result is the outcome of solving a full report
type Result struct {
	Reference    int             `json:"reference"`
	ScannerCount int             `json:"scannerCount"`
	BeaconCount  int             `json:"beaconCount"`
	Beacons      []Point         `json:"beacons"`
	Frames       map[int]Matrix4 `json:"frames"`
	Positions    []Point         `json:"positions"`
	Edges        []Edge          `json:"edges"`
	MaxDistance  int             `json:"maxDistance"`
	Fingerprint  string          `json:"fingerprint"`
	Search       SearchKey       `json:"search"`
	FromCache    bool            `json:"fromCache"`
}

// Config represents the full configuration file
type Config struct {
	Registration RegistrationConfig `yaml:"registration" json:"registration"`
	Reference    int                `yaml:"reference" json:"reference"` // Reference scanner index (identity frame)
	Source       SourceConfig       `yaml:"source" json:"source"`
	MQTT         MQTTConfig         `yaml:"mqtt" json:"mqtt"`
	Render       RenderConfig       `yaml:"render" json:"render"`
}

// RegistrationConfig tunes the pairwise search
type RegistrationConfig struct {
	OverlapThreshold int `yaml:"overlapThreshold" json:"overlapThreshold"` // Minimum exact matches to accept
	SensingRange     int `yaml:"sensingRange" json:"sensingRange"`         // Half-width of the sensing cube
	Workers          int `yaml:"workers" json:"workers"`                   // 0 = runtime.NumCPU()
	MaxCandidates    int `yaml:"maxCandidates" json:"maxCandidates"`       // Cap on the |A|*24*|B| search size
}

// SearchKey is the part of a registration config that decides which frames
// a search accepts. Worker count is left out: it never changes the result.
type SearchKey struct {
	OverlapThreshold int `json:"overlapThreshold"`
	SensingRange     int `json:"sensingRange"`
	MaxCandidates    int `json:"maxCandidates"`
}

// SourceConfig bounds how reports are read from HTTP and MQTT
type SourceConfig struct {
	MaxBytes       int64  `yaml:"maxBytes" json:"maxBytes"`             // Largest accepted report; 0 = DefaultMaxReportBytes
	Accept         string `yaml:"accept" json:"accept"`                 // Accept header sent when fetching
	TimeoutSeconds int    `yaml:"timeoutSeconds" json:"timeoutSeconds"` // Per-request timeout
	Attempts       int    `yaml:"attempts" json:"attempts"`             // Tries per fetch, including the first
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ReportTopic   string `yaml:"reportTopic" json:"reportTopic"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// RenderConfig controls the plan-view renderer
type RenderConfig struct {
	Padding     float64  `yaml:"padding,omitempty" json:"padding,omitempty"`         // World units around the content
	GridSpacing float64  `yaml:"gridSpacing,omitempty" json:"gridSpacing,omitempty"` // 0 disables the grid
	Resolution  float64  `yaml:"resolution,omitempty" json:"resolution,omitempty"`   // PNG DPI
	Colors      []string `yaml:"colors,omitempty" json:"colors,omitempty"`           // Hex colors cycled per scanner
}
