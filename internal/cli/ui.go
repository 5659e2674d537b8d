package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/tokenfield/pkg/archive"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleFolder  = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	styleHeader  = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// printNewline prints an empty line.
func printNewline() {
	fmt.Println()
}

// =============================================================================
// Run Output
// =============================================================================

// statsLine renders layout statistics on a single dim line.
func statsLine(placed, skipped, groups int, cached bool) string {
	parts := []string{fmt.Sprintf("%d placed", placed)}
	if skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", skipped))
	}
	if groups > 0 {
		parts = append(parts, fmt.Sprintf("%d size groups", groups))
	}

	status, statusStyle := iconFresh, styleComputed
	if cached {
		status, statusStyle = iconCached, styleCached
	}

	var b strings.Builder
	b.WriteString("  ")
	for i, part := range parts {
		if i > 0 {
			b.WriteString(StyleDim.Render(" · "))
		}
		b.WriteString(StyleDim.Render(part))
	}
	b.WriteString(StyleDim.Render(" · "))
	b.WriteString(statusStyle.Render(status))
	return b.String()
}

// printStats prints layout statistics for a run or preview.
func printStats(res *pipeline.Result) {
	fmt.Println(statsLine(len(res.Layout.Placements), res.Summary.Skipped, len(res.Layout.Groups), res.CacheInfo.LayoutHit))
}

// tokenTable renders placed tokens with their cell position and footprint.
func tokenTable(res *pipeline.Result) string {
	rows := make([][]string, 0, len(res.Layout.Placements))
	for i, p := range res.Layout.Placements {
		name := p.Item.Name
		if i < len(res.Tokens) {
			name = res.Tokens[i].Name
		}
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%d,%d", p.X, p.Y),
			fmt.Sprintf("%dx%d", p.Item.Width, p.Item.Height),
			fmt.Sprint(p.Group),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Token", "Cell", "Size", "Group").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if col == 0 {
				return lipgloss.NewStyle().Foreground(colorWhite)
			}
			return lipgloss.NewStyle().Foreground(colorGray)
		}).
		Render()
}

// printFailures lists actors that could not be archived.
func printFailures(failures []pipeline.Failure) {
	for _, f := range failures {
		printError("%s (%s) kept: %s", f.ActorName, f.ActorID, f.Err)
	}
}

// =============================================================================
// Archive Output
// =============================================================================

// treeText renders an archive hierarchy as an indented outline.
func treeText(root *archive.Node) string {
	var b strings.Builder
	root.Walk(func(n *archive.Node, depth int) {
		indent := strings.Repeat("  ", depth)
		switch n.Kind {
		case archive.NodeArchive:
			b.WriteString(StyleTitle.Render(n.Name))
		case archive.NodeFolder:
			b.WriteString(indent + styleFolder.Render(n.Name+"/"))
		default:
			b.WriteString(indent + n.Name)
		}
		b.WriteString("\n")
	})
	return b.String()
}

// keyValueTable renders settings as a two-column table.
func keyValueTable(rows [][2]string) string {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(_, col int) lipgloss.Style {
			if col == 0 {
				return lipgloss.NewStyle().Foreground(colorGray).PaddingRight(2)
			}
			return StyleValue
		})
	for _, r := range rows {
		t.Row(r[0], r[1])
	}
	return t.Render()
}
