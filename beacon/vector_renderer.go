package beacon

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ErrNothingToRender is returned when a result has no beacons or scanners
var ErrNothingToRender = errors.New("nothing to render")

// DefaultScannerColors are cycled per scanner; the reference gets the first.
var DefaultScannerColors = []string{"#1E64C8", "#C83C32", "#2E8B57", "#B8860B", "#7B3FA0", "#E07B00"}

var (
	gridColor = color.RGBA{211, 211, 211, 255}
	edgeColor = color.RGBA{96, 96, 96, 255}
)

// parseHexColor parses a hex color string like "#FF6B6B" to color.RGBA
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", hex)
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return color.RGBA{r, g, b, 255}, nil
}

// withAlpha premultiplies c by alpha for the canvas library
func withAlpha(c color.RGBA, alpha uint8) color.RGBA {
	a := uint32(alpha)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: alpha,
	}
}

// PlanRenderer draws a top-down (X/Y) view of a solved result: every
// scanner's sensing square, its position, and the merged beacons.
type PlanRenderer struct {
	Result      *Result
	Colors      []color.RGBA
	Range       int               // Sensing half-width drawn around each scanner
	Scale       float64           // Canvas millimeters per world unit
	Padding     float64           // Padding in world units
	GridSpacing float64           // Grid spacing in world units; 0 disables
	Resolution  canvas.Resolution // PNG output resolution
	Labels      bool              // Draw scanner indices on PNG output
}

// NewPlanRenderer creates a renderer with defaults taken from cfg
func NewPlanRenderer(res *Result, cfg *Config) *PlanRenderer {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	hexes := cfg.Render.Colors
	if len(hexes) == 0 {
		hexes = DefaultScannerColors
	}
	colors := make([]color.RGBA, 0, len(hexes))
	for _, h := range hexes {
		if c, err := parseHexColor(h); err == nil {
			colors = append(colors, c)
		}
	}
	if len(colors) == 0 {
		colors = []color.RGBA{{30, 100, 200, 255}}
	}

	resolution := cfg.Render.Resolution
	if resolution <= 0 {
		resolution = 96
	}

	return &PlanRenderer{
		Result:      res,
		Colors:      colors,
		Range:       cfg.Registration.SensingRange,
		Scale:       0.1,
		Padding:     cfg.Render.Padding,
		GridSpacing: cfg.Render.GridSpacing,
		Resolution:  canvas.DPI(resolution),
		Labels:      true,
	}
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// planBounds is the world-space extent of everything drawn
type planBounds struct {
	minX, minY, maxX, maxY float64
}

func (b planBounds) width(padding float64) float64  { return b.maxX - b.minX + 2*padding }
func (b planBounds) height(padding float64) float64 { return b.maxY - b.minY + 2*padding }

// colorFor returns the color assigned to a scanner; the reference always gets the first
func (r *PlanRenderer) colorFor(scanner int) color.RGBA {
	if scanner == r.Result.Reference {
		return r.Colors[0]
	}
	idx := scanner
	if scanner < r.Result.Reference {
		idx++
	}
	return r.Colors[idx%len(r.Colors)]
}

func (r *PlanRenderer) bounds() (planBounds, error) {
	if r.Result == nil || (len(r.Result.Beacons) == 0 && len(r.Result.Positions) == 0) {
		return planBounds{}, ErrNothingToRender
	}

	b := planBounds{math.MaxFloat64, math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64}
	grow := func(x, y float64) {
		b.minX = math.Min(b.minX, x)
		b.minY = math.Min(b.minY, y)
		b.maxX = math.Max(b.maxX, x)
		b.maxY = math.Max(b.maxY, y)
	}
	for _, p := range r.Result.Beacons {
		grow(float64(p.X), float64(p.Y))
	}
	rng := float64(r.Range)
	for _, p := range r.Result.Positions {
		grow(float64(p.X)-rng, float64(p.Y)-rng)
		grow(float64(p.X)+rng, float64(p.Y)+rng)
	}
	return b, nil
}

// RenderToSVG writes the plan as SVG
func (r *PlanRenderer) RenderToSVG(w io.Writer) error {
	b, err := r.bounds()
	if err != nil {
		return err
	}

	width := b.width(r.Padding) * r.Scale
	height := b.height(r.Padding) * r.Scale

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, b, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the plan as PNG, optionally labelling each scanner
func (r *PlanRenderer) RenderToPNG(w io.Writer) error {
	b, err := r.bounds()
	if err != nil {
		return err
	}

	width := b.width(r.Padding) * r.Scale
	height := b.height(r.Padding) * r.Scale

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, b, width, height)

	if r.Labels {
		r.drawLabels(rast, b, rast.Bounds().Dy())
	}
	return png.Encode(w, rast)
}

// toCanvas maps a world X/Y to canvas millimeters
func (r *PlanRenderer) toCanvas(b planBounds, x, y float64) (float64, float64) {
	return (x - b.minX + r.Padding) * r.Scale, (y - b.minY + r.Padding) * r.Scale
}

func (r *PlanRenderer) renderToCanvas(renderer canvasRenderer, b planBounds, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	if r.GridSpacing > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: gridColor}
		gridStyle.StrokeWidth = 0.2
		gridStyle.Dashes = []float64{1.0, 1.0}

		for x := math.Floor(b.minX/r.GridSpacing) * r.GridSpacing; x <= b.maxX; x += r.GridSpacing {
			p := &canvas.Path{}
			p.MoveTo(r.toCanvas(b, x, b.minY))
			p.LineTo(r.toCanvas(b, x, b.maxY))
			renderer.RenderPath(p, gridStyle, canvas.Identity)
		}
		for y := math.Floor(b.minY/r.GridSpacing) * r.GridSpacing; y <= b.maxY; y += r.GridSpacing {
			p := &canvas.Path{}
			p.MoveTo(r.toCanvas(b, b.minX, y))
			p.LineTo(r.toCanvas(b, b.maxX, y))
			renderer.RenderPath(p, gridStyle, canvas.Identity)
		}
	}

	// Sensing squares
	rng := float64(r.Range)
	for i, pos := range r.Result.Positions {
		c := r.colorFor(i)
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: withAlpha(c, 40)}
		style.Stroke = canvas.Paint{Color: c}
		style.StrokeWidth = 0.4

		x0, y0 := r.toCanvas(b, float64(pos.X)-rng, float64(pos.Y)-rng)
		square := canvas.Rectangle(2*rng*r.Scale, 2*rng*r.Scale).Translate(x0, y0)
		renderer.RenderPath(square, style, canvas.Identity)
	}

	// Overlap edges between anchor and registered scanner
	edgeStyle := canvas.DefaultStyle
	edgeStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	edgeStyle.Stroke = canvas.Paint{Color: edgeColor}
	edgeStyle.StrokeWidth = 0.5
	for _, e := range r.Result.Edges {
		if e.Anchor >= len(r.Result.Positions) || e.Target >= len(r.Result.Positions) {
			continue
		}
		from, to := r.Result.Positions[e.Anchor], r.Result.Positions[e.Target]
		p := &canvas.Path{}
		p.MoveTo(r.toCanvas(b, float64(from.X), float64(from.Y)))
		p.LineTo(r.toCanvas(b, float64(to.X), float64(to.Y)))
		renderer.RenderPath(p, edgeStyle, canvas.Identity)
	}

	// Beacons
	beaconStyle := canvas.DefaultStyle
	beaconStyle.Fill = canvas.Paint{Color: canvas.Black}
	beaconStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	for _, p := range r.Result.Beacons {
		cx, cy := r.toCanvas(b, float64(p.X), float64(p.Y))
		renderer.RenderPath(canvas.Circle(0.6).Translate(cx, cy), beaconStyle, canvas.Identity)
	}

	// Scanner markers
	for i, pos := range r.Result.Positions {
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: r.colorFor(i)}
		style.Stroke = canvas.Paint{Color: canvas.Black}
		style.StrokeWidth = 0.3

		cx, cy := r.toCanvas(b, float64(pos.X), float64(pos.Y))
		renderer.RenderPath(canvas.Rectangle(3, 3).Translate(cx-1.5, cy-1.5), style, canvas.Identity)
	}
}

// drawLabels writes scanner indices next to their markers on a raster image.
// Canvas y grows upward, image y grows downward.
func (r *PlanRenderer) drawLabels(img draw.Image, b planBounds, heightPx int) {
	dpmm := r.Resolution.DPMM()
	for i, pos := range r.Result.Positions {
		cx, cy := r.toCanvas(b, float64(pos.X), float64(pos.Y))
		x := int(cx*dpmm) + 6
		y := heightPx - int(cy*dpmm) + 4
		drawText(img, x, y, fmt.Sprintf("S%d", i), color.RGBA{0, 0, 0, 255})
	}
}

// drawText renders text onto an image at the specified position
func drawText(img draw.Image, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
