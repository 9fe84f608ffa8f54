// Package render implements the graphics collaborator for one panel: a
// dot-matrix canvas plus a closed registry of named drawing functions the
// protocol's graphics submessages can invoke.
//
// The registry replaces reflective function lookup: an unknown function
// name is a typed error, reported to the client at dispatch time via
// Supports and never resolved at render time.
package render

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mezgrman/flipdot/protocol"
)

// ErrUnknownFunction is returned when a graphics call names a drawing
// function the registry does not provide.
var ErrUnknownFunction = errors.New("render: unknown graphics function")

// drawFunc is one registered drawing function.
type drawFunc func(r *Renderer, p params) error

// drawFuncs is the closed registry of graphics functions addressable from
// the wire protocol.
var drawFuncs = map[string]drawFunc{
	"text":   drawText,
	"time":   drawTime,
	"rect":   drawRect,
	"line":   drawLine,
	"pixel":  drawPixel,
	"fill":   drawFill,
	"invert": drawInvert,
}

// Functions returns the names of all registered drawing functions.
func Functions() []string {
	names := make([]string, 0, len(drawFuncs))
	for name := range drawFuncs {
		names = append(names, name)
	}
	return names
}

// Renderer is a dot-matrix canvas for one panel. It satisfies the
// display.Renderer contract: drawing calls accumulate until Snapshot.
//
// A renderer belongs to a single display and is only touched from the
// scheduler goroutine; it needs no locking of its own.
type Renderer struct {
	width  int
	height int
	dots   []bool

	// now is the time source for the time function, replaceable in tests.
	now func() time.Time
}

// New creates a renderer with an all-unset canvas of the given dimensions.
func New(width, height int) *Renderer {
	return &Renderer{
		width:  width,
		height: height,
		dots:   make([]bool, width*height),
		now:    time.Now,
	}
}

// Clear resets the canvas to all-unset dots.
func (r *Renderer) Clear() {
	for i := range r.dots {
		r.dots[i] = false
	}
}

// Supports reports whether the named graphics function is registered.
func (r *Renderer) Supports(name string) bool {
	_, ok := drawFuncs[name]
	return ok
}

// Draw evaluates the named graphics function with the given parameters.
// Returns ErrUnknownFunction for names outside the registry.
func (r *Renderer) Draw(name string, p map[string]any) error {
	fn, ok := drawFuncs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return fn(r, params(p))
}

// Blit copies a raw bitmap onto the canvas at (x, y). Non-zero source
// values set dots; parts outside the canvas are clipped.
func (r *Renderer) Blit(bitmap protocol.Bitmap, x, y int) error {
	for row, line := range bitmap {
		for col, v := range line {
			r.set(x+col, y+row, v != 0)
		}
	}
	return nil
}

// Snapshot returns the current canvas in wire form.
func (r *Renderer) Snapshot() protocol.Bitmap {
	out := make(protocol.Bitmap, r.height)
	for y := range r.height {
		row := make([]int, r.width)
		for x := range r.width {
			if r.dots[y*r.width+x] {
				row[x] = 1
			}
		}
		out[y] = row
	}
	return out
}

// set writes one dot, silently clipping out-of-canvas coordinates.
func (r *Renderer) set(x, y int, on bool) {
	if x < 0 || y < 0 || x >= r.width || y >= r.height {
		return
	}
	r.dots[y*r.width+x] = on
}

// text draws s at (x, y) with the built-in font and returns the width
// consumed.
func (r *Renderer) text(s string, x, y int) int {
	startX := x
	for _, ch := range s {
		g := glyph(ch)
		for col := range glyphWidth {
			for bit := range glyphHeight {
				if g[col]&(1<<bit) != 0 {
					r.set(x+col, y+bit, true)
				}
			}
		}
		x += glyphWidth + 1
	}
	return x - startX
}

// Drawing functions. Parameters arrive as decoded JSON values; the params
// helpers coerce them with defaults.

func drawText(r *Renderer, p params) error {
	text, err := p.requireString("text")
	if err != nil {
		return err
	}
	r.text(text, p.int("x", 0), p.int("y", 0))
	return nil
}

// drawTime renders the current time formatted with an strftime-style
// format string (default "%H:%M"). Clients pair it with the "minute"
// refresh interval for clock faces.
func drawTime(r *Renderer, p params) error {
	format := p.string("format", "%H:%M")
	r.text(r.now().Format(strftimeToLayout(format)), p.int("x", 0), p.int("y", 0))
	return nil
}

func drawRect(r *Renderer, p params) error {
	x, y := p.int("x", 0), p.int("y", 0)
	w, h := p.int("width", 0), p.int("height", 0)
	on := p.bool("state", true)
	if p.bool("fill", false) {
		for dy := range h {
			for dx := range w {
				r.set(x+dx, y+dy, on)
			}
		}
		return nil
	}
	for dx := range w {
		r.set(x+dx, y, on)
		r.set(x+dx, y+h-1, on)
	}
	for dy := range h {
		r.set(x, y+dy, on)
		r.set(x+w-1, y+dy, on)
	}
	return nil
}

// drawLine draws with integer Bresenham stepping.
func drawLine(r *Renderer, p params) error {
	x0, y0 := p.int("x0", 0), p.int("y0", 0)
	x1, y1 := p.int("x1", 0), p.int("y1", 0)
	on := p.bool("state", true)

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		r.set(x0, y0, on)
		if x0 == x1 && y0 == y1 {
			return nil
		}
		if e2 := 2 * err; e2 >= dy {
			err += dy
			x0 += sx
		} else {
			err += dx
			y0 += sy
		}
	}
}

func drawPixel(r *Renderer, p params) error {
	r.set(p.int("x", 0), p.int("y", 0), p.bool("state", true))
	return nil
}

func drawFill(r *Renderer, p params) error {
	on := p.bool("state", true)
	for i := range r.dots {
		r.dots[i] = on
	}
	return nil
}

func drawInvert(r *Renderer, _ params) error {
	for i := range r.dots {
		r.dots[i] = !r.dots[i]
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// strftimeToLayout converts the strftime tokens clients use into a Go time
// layout. Unknown tokens pass through literally.
func strftimeToLayout(format string) string {
	replacer := strings.NewReplacer(
		"%%", "%",
		"%H", "15",
		"%I", "03",
		"%M", "04",
		"%S", "05",
		"%d", "02",
		"%m", "01",
		"%y", "06",
		"%Y", "2006",
		"%a", "Mon",
		"%b", "Jan",
		"%p", "PM",
	)
	return replacer.Replace(format)
}

// params wraps the decoded JSON parameter object of a graphics call.
type params map[string]any

func (p params) int(key string, def int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func (p params) string(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

func (p params) bool(key string, def bool) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return def
	}
}

func (p params) requireString(key string) (string, error) {
	v, ok := p[key].(string)
	if !ok {
		return "", fmt.Errorf("render: parameter %q must be a string", key)
	}
	return v, nil
}
