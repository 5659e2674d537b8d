package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/tokenfield/pkg/archive"
)

// TreeDOT converts an archive hierarchy to Graphviz DOT format. Folders are
// drawn as tabs and records as rounded boxes.
func TreeDOT(root *archive.Node) string {
	var buf bytes.Buffer
	buf.WriteString("digraph archive {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("  nodesep=0.2;\n")
	buf.WriteString("\n")

	ids := make(map[*archive.Node]string)
	root.Walk(func(n *archive.Node, _ int) {
		id := fmt.Sprintf("n%d", len(ids))
		ids[n] = id
		fmt.Fprintf(&buf, "  %s [%s];\n", id, nodeAttrs(n))
	})

	buf.WriteString("\n")
	root.Walk(func(n *archive.Node, _ int) {
		for _, c := range n.Children {
			fmt.Fprintf(&buf, "  %s -> %s;\n", ids[n], ids[c])
		}
	})

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n *archive.Node) string {
	label := fmt.Sprintf("label=%q", n.Name)
	switch n.Kind {
	case archive.NodeArchive:
		return label + ", shape=cylinder, style=filled, fillcolor=\"#dfe7fd\""
	case archive.NodeFolder:
		return label + ", shape=tab, style=filled, fillcolor=\"#fff3b0\""
	}
	return label
}

// TreeSVG renders an archive hierarchy to SVG using Graphviz.
func TreeSVG(ctx context.Context, root *archive.Node) ([]byte, error) {
	return RenderDOT(ctx, TreeDOT(root))
}

// RenderDOT renders a DOT graph to SVG using Graphviz.
func RenderDOT(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with a
// zero-origin viewBox and matching pixel size.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
