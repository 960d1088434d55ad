// Package formatter renders alerts, session progress and conclusions on the
// terminal.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/hbmon/diskdiag/pkg/model"
)

// UI writes colored, human-oriented output. It also implements the session
// controller's event sink.
type UI struct {
	out io.Writer
}

// New creates a UI writing to out.
func New(out io.Writer) *UI {
	return &UI{out: out}
}

// Banner prints the program header.
func (u *UI) Banner(version string) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(u.out)
	cyan.Fprintln(u.out, "diskdiag - AI-assisted disk space diagnosis")
	fmt.Fprintf(u.out, "version %s\n\n", version)
}

// AlertList prints the alerts found by the scan.
func (u *UI) AlertList(alerts []model.Alert) {
	yellow := color.New(color.FgYellow)
	fmt.Fprintf(u.out, "Found %d disk alerts:\n\n", len(alerts))
	for _, a := range alerts {
		fmt.Fprintf(u.out, "  • %s:%s - ", a.Host, a.Mount)
		yellow.Fprintf(u.out, "%.1f%%", a.UsagePercent)
		fmt.Fprintf(u.out, " (%.1fGB used of %.1fGB)\n", a.UsedGB(), a.TotalGB())
	}
	fmt.Fprintln(u.out)
}

// AlertHeader prints the per-session banner.
func (u *UI) AlertHeader(index, total int, a model.Alert) {
	header := color.New(color.FgMagenta)
	bold := color.New(color.Bold)
	warn := color.New(color.FgYellow)

	fmt.Fprintln(u.out)
	header.Fprintln(u.out, strings.Repeat("=", 80))
	bold.Fprintf(u.out, "[%d/%d] Processing Alert: %s:%s\n", index, total, a.Host, a.Mount)
	fmt.Fprint(u.out, "  Usage: ")
	warn.Fprintf(u.out, "%.1f%%", a.UsagePercent)
	fmt.Fprintf(u.out, " (%.1fGB used of %.1fGB)\n", a.UsedGB(), a.TotalGB())
	header.Fprintln(u.out, strings.Repeat("=", 80))
	fmt.Fprintln(u.out)
}

// previewLines caps the command output echoed to the operator; the model
// still receives the larger prompt budget.
const previewLines = 20

// ProposalRequested implements the session event sink.
func (u *UI) ProposalRequested(attempt int) {
	blue := color.New(color.FgBlue)
	if attempt > 1 {
		blue.Fprintf(u.out, "Requesting AI diagnostic recommendation (attempt %d)...\n", attempt)
		return
	}
	blue.Fprintln(u.out, "Requesting AI diagnostic recommendation...")
}

// ProposalRetried implements the session event sink.
func (u *UI) ProposalRetried(rejection string) {
	color.New(color.FgYellow).Fprintf(u.out, "⚠ %s\n", rejection)
}

// CommandExecuting implements the session event sink.
func (u *UI) CommandExecuting(targetHost, command string) {
	color.New(color.FgCyan).Fprintf(u.out, "Executing on %s...\n", targetHost)
}

// CommandFinished implements the session event sink.
func (u *UI) CommandFinished(res model.ExecutionResult) {
	if !res.Success {
		color.New(color.FgRed).Fprintln(u.out, "✗ Command failed")
		if res.ErrorMessage != "" {
			fmt.Fprintf(u.out, "  Error: %s\n", res.ErrorMessage)
		}
		return
	}
	color.New(color.FgGreen).Fprintln(u.out, "✓ Command executed successfully")
	if res.Stdout == "" {
		return
	}
	color.New(color.Bold).Fprintln(u.out, "\nOutput:")
	lines := strings.Split(res.Stdout, "\n")
	for i, line := range lines {
		if i == previewLines {
			color.New(color.FgBlue).Fprintln(u.out, "  ... (truncated)")
			break
		}
		fmt.Fprintf(u.out, "  %s\n", line)
	}
}

// SessionEnded implements the session event sink.
func (u *UI) SessionEnded(outcome model.SessionOutcome) {
	fmt.Fprintln(u.out)
	switch outcome.Status {
	case model.SessionConcluded:
		color.New(color.FgGreen, color.Bold).Fprintln(u.out, "✓ AI diagnosis complete")
		u.Conclusion(outcome.Conclusion)
	case model.SessionAborted:
		color.New(color.FgYellow).Fprintf(u.out, "Session ended: %s\n", outcome.Reason)
	}
	fmt.Fprintf(u.out, "(%d iterations, %d commands executed)\n", outcome.Iterations, outcome.ExecutedCnt)
}

// Conclusion renders the structured terminal artifact of a session.
func (u *UI) Conclusion(c *model.Conclusion) {
	if c == nil {
		return
	}
	section := color.New(color.Bold)

	section.Fprintln(u.out, "\nRoot Cause:")
	fmt.Fprintln(u.out, indent(c.RootCause))

	if c.ImmediateActions != "" {
		section.Fprintln(u.out, "\nImmediate Actions:")
		fmt.Fprintln(u.out, indent(c.ImmediateActions))
	}
	if c.LongTermSolution != "" {
		section.Fprintln(u.out, "\nLong-Term Solution:")
		fmt.Fprintln(u.out, indent(c.LongTermSolution))
	}
	if c.PreventiveMeasures != "" {
		section.Fprintln(u.out, "\nPreventive Measures:")
		fmt.Fprintln(u.out, indent(c.PreventiveMeasures))
	}
	if len(c.Commands) > 0 {
		section.Fprintln(u.out, "\nCommands to Implement:")
		for i, cmd := range c.Commands {
			fmt.Fprintf(u.out, "   %d. %s\n", i+1, color.CyanString(cmd))
		}
	}
}

// Success prints a green checkmark line.
func (u *UI) Success(msg string) {
	color.New(color.FgGreen).Fprintf(u.out, "✓ %s\n", msg)
}

// Warn prints a yellow warning line.
func (u *UI) Warn(msg string) {
	color.New(color.FgYellow).Fprintf(u.out, "⚠ %s\n", msg)
}

// Error prints a red error line.
func (u *UI) Error(msg string) {
	color.New(color.FgRed).Fprintf(u.out, "✗ %s\n", msg)
}

func indent(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, l := range lines {
		lines[i] = "   " + strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n")
}
