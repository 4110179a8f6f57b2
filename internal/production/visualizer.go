package production

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/comalice/timelinex"
)

// DefaultVisualizer renders timeline snapshots as text.
type DefaultVisualizer struct {
	// Width of the bar area in ExportGantt. Defaults to 60.
	Width int
}

// ExportGantt draws one row per track against the timeline's axis. The
// axis spans the timeline duration, or the furthest finite track end for
// endless timelines. The current position is marked with '|'.
func (v *DefaultVisualizer) ExportGantt(s timelinex.Snapshot) string {
	width := v.Width
	if width <= 0 {
		width = 60
	}
	span := axisSpan(s)

	label := 0
	for _, t := range s.Tracks {
		label = max(label, len(trackLabel(t)))
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s  t=%.0fms / %s  (%s)\n", s.Name, float64(s.CurrentTime), fmtMs(float64(s.Config.Duration)), s.Mode)

	cursor := column(float64(s.CurrentTime), span, width)
	for _, t := range s.Tracks {
		row := []byte(strings.Repeat(" ", width))
		from := column(float64(t.StartTime), span, width)
		to := column(float64(t.EndTime), span, width)
		if to <= from {
			to = from + 1
		}
		for i := from; i < to && i < width; i++ {
			row[i] = barChar(t)
		}
		if cursor >= 0 && cursor < width {
			row[cursor] = '|'
		}
		fmt.Fprintf(&buf, "%-*s [%s]\n", label, trackLabel(t), row)
	}
	return buf.String()
}

// ExportDOT generates Graphviz DOT source with one node per track, running
// tracks highlighted.
func (v *DefaultVisualizer) ExportDOT(s timelinex.Snapshot) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n  rankdir=LR;\n  node [shape=box, fontsize=10, style=rounded];\n", s.Name)
	fmt.Fprintf(&buf, "  \"timeline\" [label=\"%s\\n%.0fms\", shape=ellipse];\n", s.Name, float64(s.CurrentTime))
	for i, t := range s.Tracks {
		attrs := ""
		switch {
		case t.Running:
			attrs = ", style=\"rounded,filled\", fillcolor=lightgreen"
		case !t.Alive:
			attrs = ", color=gray"
		}
		fmt.Fprintf(&buf, "  \"t%d\" [label=\"%s\\n%s - %s\"%s];\n",
			i, trackLabel(t), fmtMs(float64(t.StartTime)), fmtMs(float64(t.EndTime)), attrs)
		fmt.Fprintf(&buf, "  \"timeline\" -> \"t%d\";\n", i)
	}
	buf.WriteString("}\n")
	return buf.String()
}

func axisSpan(s timelinex.Snapshot) float64 {
	if d := float64(s.Config.Duration); !math.IsInf(d, 1) && d > 0 {
		return d
	}
	span := float64(s.CurrentTime)
	for _, t := range s.Tracks {
		if end := float64(t.EndTime); !math.IsInf(end, 1) {
			span = math.Max(span, end)
		} else {
			span = math.Max(span, float64(t.StartTime))
		}
	}
	if span <= 0 {
		return 1
	}
	return span
}

func column(ms, span float64, width int) int {
	if math.IsInf(ms, 1) {
		return width
	}
	c := int(math.Floor(ms / span * float64(width)))
	return max(0, min(c, width))
}

func barChar(t timelinex.TrackSnapshot) byte {
	switch {
	case !t.Alive:
		return '.'
	case t.Running:
		return '#'
	default:
		return '='
	}
}

func trackLabel(t timelinex.TrackSnapshot) string {
	if t.ID == "" {
		return "(anon)"
	}
	if t.Loop {
		return t.ID + "*"
	}
	return t.ID
}

func fmtMs(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.0fms", v)
}
