package render

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/matzehuels/tokenfield/pkg/layout"
)

// groupColors fill token rectangles, cycling by size group.
var groupColors = []string{"#8ecae6", "#ffb703", "#90be6d", "#f28482", "#cdb4db", "#f4a261"}

const previewCSS = `
    .scene { fill: #fafafa; stroke: #333; stroke-width: 2; }
    .area { fill: none; stroke: #e63946; stroke-width: 2; stroke-dasharray: 8 6; }
    .grid { stroke: #ddd; stroke-width: 1; }
    .token { stroke: #222; stroke-width: 1.5; }
    .token-text { font-family: sans-serif; fill: #111; text-anchor: middle; dominant-baseline: middle; }`

// SVGOption configures the placement preview.
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	grid  bool
	title string
}

// WithGrid draws the scene's grid lines.
func WithGrid() SVGOption { return func(r *svgRenderer) { r.grid = true } }

// WithTitle adds a title line above the scene.
func WithTitle(s string) SVGOption { return func(r *svgRenderer) { r.title = s } }

// SVG draws res on a scene whose padded placement area is area, with
// gridSize pixels per cell. The frame is the area plus an equal border on
// every side.
func SVG(res layout.Result, area layout.Area, gridSize int, opts ...SVGOption) []byte {
	var r svgRenderer
	for _, opt := range opts {
		opt(&r)
	}
	g := float64(max(gridSize, 1))

	right, bottom := res.Bounds()
	cols := max(area.LimitX+area.OriginX, right)
	rows := max(area.LimitY+area.OriginY, bottom)
	width, height := float64(cols)*g, float64(rows)*g

	top := 0.0
	if r.title != "" {
		top = g
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		width, height+top, width, height+top)
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", previewCSS)

	if r.title != "" {
		fmt.Fprintf(&buf, `  <text x="%.1f" y="%.1f" font-family="sans-serif" font-size="%.1f">%s</text>`+"\n",
			g/4, g*0.7, g/2, escapeXML(r.title))
	}
	fmt.Fprintf(&buf, `  <g transform="translate(0 %.1f)">`+"\n", top)
	fmt.Fprintf(&buf, `    <rect class="scene" x="0" y="0" width="%.1f" height="%.1f"/>`+"\n", width, height)

	if r.grid {
		for c := 1; c < cols; c++ {
			x := float64(c) * g
			fmt.Fprintf(&buf, `    <line class="grid" x1="%.1f" y1="0" x2="%.1f" y2="%.1f"/>`+"\n", x, x, height)
		}
		for row := 1; row < rows; row++ {
			y := float64(row) * g
			fmt.Fprintf(&buf, `    <line class="grid" x1="0" y1="%.1f" x2="%.1f" y2="%.1f"/>`+"\n", y, width, y)
		}
	}

	fmt.Fprintf(&buf, `    <rect class="area" x="%.1f" y="%.1f" width="%.1f" height="%.1f"/>`+"\n",
		float64(area.OriginX)*g, float64(area.OriginY)*g, float64(area.Width())*g, float64(area.Height())*g)

	for _, p := range res.Placements {
		renderToken(&buf, p, g)
	}

	buf.WriteString("  </g>\n</svg>\n")
	return buf.Bytes()
}

func renderToken(buf *bytes.Buffer, p layout.Placement, g float64) {
	x, y := float64(p.X)*g, float64(p.Y)*g
	w, h := float64(p.Item.Width)*g, float64(p.Item.Height)*g
	color := groupColors[p.Group%len(groupColors)]

	fmt.Fprintf(buf, `    <rect class="token" id="token-%s" x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="%.1f" fill="%s"/>`+"\n",
		escapeXML(p.Item.ID), x+2, y+2, w-4, h-4, g/10, color)

	fontSize := min(g/4, h/3)
	label := truncate(p.Item.Name, w-8, fontSize)
	fmt.Fprintf(buf, `    <text class="token-text" x="%.1f" y="%.1f" font-size="%.1f">%s</text>`+"\n",
		x+w/2, y+h/2, fontSize, escapeXML(label))
}

// truncate shortens label to fit width at the given font size.
func truncate(label string, width, fontSize float64) string {
	charWidth := fontSize * 0.6
	maxChars := max(int(width/charWidth), 3)

	runes := []rune(label)
	if len(runes) <= maxChars {
		return label
	}
	return string(runes[:maxChars-2]) + ".."
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
