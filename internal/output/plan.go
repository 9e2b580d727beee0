package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sitekit/sitekit/internal/iarchiver"
	"github.com/sitekit/sitekit/internal/watermark"
)

// DefaultDateLayout is used for the date column when none is configured.
const DefaultDateLayout = "2006-01-02 15:04"

// Config controls rendering.
type Config struct {
	ColorEnabled bool   // Enable colored output using ANSI escape codes.
	DateLayout   string // Layout of the date column.
	PendingOnly  bool   // Hide items already covered by the watermark.
}

// DefaultConfig returns the default rendering configuration.
func DefaultConfig() Config {
	return Config{
		ColorEnabled: true,
		DateLayout:   DefaultDateLayout,
	}
}

// Renderer renders archival plans.
type Renderer struct {
	config Config
}

// NewRenderer creates a Renderer.
func NewRenderer(config Config) *Renderer {
	if config.DateLayout == "" {
		config.DateLayout = DefaultDateLayout
	}
	return &Renderer{config: config}
}

var planHeader = table.Row{
	"#",
	"Status",
	"Date",
	"Updated",
	"Title",
	"Permalink",
}

// RenderPlan renders the plan as a table followed by a summary line.
func (r *Renderer) RenderPlan(plan *iarchiver.Plan) string {
	var buf strings.Builder

	if plan.FirstRun {
		buf.WriteString("Watermark: none (first run, every item is pending)\n")
	} else {
		buf.WriteString("Watermark: " + plan.Since.Format(watermark.Layout) + "\n")
	}

	planTable := table.NewWriter()
	planTable.AppendHeader(planHeader)

	var shown int
	for _, it := range plan.Items {
		status := StatusArchived
		if it.Pending {
			status = StatusPending
		}
		if r.config.PendingOnly && status != StatusPending {
			continue
		}
		shown++
		planTable.AppendRow(table.Row{
			strconv.Itoa(shown),
			r.status(status),
			it.Post.FormattedDate(r.config.DateLayout),
			it.Post.FormattedUpdated(r.config.DateLayout),
			it.Post.Title,
			it.Post.Permalink(true),
		})
	}

	buf.WriteString(planTable.Render())
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "%d of %d items pending\n", plan.PendingCount(), len(plan.Items))
	return buf.String()
}

func (r *Renderer) status(status ItemStatus) string {
	s := StatusSymbol(status) + " " + StatusText(status)
	if !r.config.ColorEnabled {
		return s
	}
	return StatusColorize(s, status)
}
