package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/render-loop/internal/dispatch"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// Summary renders a report as one line per render and a totals line.
func Summary(report dispatch.Report) string {
	if len(report.Outcomes) == 0 {
		return dimStyle.Render("nothing to render") + "\n"
	}
	var b strings.Builder
	for _, o := range report.Outcomes {
		if o.Succeeded() {
			fmt.Fprintf(&b, "%s %d  %s\n", okStyle.Render("✓"), o.Invocation.Value, o.Invocation.Output)
			continue
		}
		detail := fmt.Sprintf("exit %d", o.ExitCode)
		if o.ExitCode < 0 && o.Err != nil {
			detail = o.Err.Error()
		}
		fmt.Fprintf(&b, "%s %d  %s  %s\n",
			failStyle.Render("✗"),
			o.Invocation.Value,
			o.Invocation.Output,
			dimStyle.Render("("+detail+")"),
		)
	}
	total := fmt.Sprintf("%d of %d renders succeeded", report.Succeeded(), len(report.Outcomes))
	if len(report.Failed()) > 0 {
		b.WriteString(failStyle.Render(total))
	} else {
		b.WriteString(okStyle.Render(total))
	}
	b.WriteString("\n")
	return b.String()
}
