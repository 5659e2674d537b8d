// Package render draws previews of layouts and archive hierarchies.
//
// # Placement Preview
//
// [SVG] draws a computed layout as labelled rectangles on the scene grid,
// one colour per size group, with the padded placement area outlined:
//
//	svg := render.SVG(res, area, 100, render.WithGrid())
//
// # Archive Hierarchy
//
// [TreeDOT] converts an archive tree to Graphviz DOT. [TreeSVG] renders it
// through Graphviz (compiled to WebAssembly, no system install needed):
//
//	tree, _ := archive.LoadTree(ctx, store, "world.actor-archive")
//	svg, err := render.TreeSVG(ctx, tree)
//
// # Format Conversion
//
// [ToPDF] and [ToPNG] convert any SVG to other formats using the external
// rsvg-convert tool (from librsvg).
package render
