// Package gate collects the human decisions that drive a diagnosis session.
package gate

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Verdict is the human decision on a proposed command.
type Verdict int

const (
	Approve Verdict = iota
	Reject
	SkipAlert
	QuitRun
)

// Gate prompts the operator on the terminal. The reader is injected so tests
// can script decisions.
type Gate struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a gate reading decisions from in and prompting on out.
func New(in io.Reader, out io.Writer) *Gate {
	return &Gate{in: bufio.NewReader(in), out: out}
}

// Decide presents one proposed command and returns the operator's verdict.
// Unrecognized input counts as a rejection, the conservative default.
func (g *Gate) Decide(targetHost, command, explanation string) Verdict {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)

	fmt.Fprintln(g.out)
	bold.Fprintln(g.out, "AI Recommendation:")
	cyan.Fprint(g.out, "  Target:  ")
	fmt.Fprintln(g.out, targetHost)
	cyan.Fprint(g.out, "  Command: ")
	fmt.Fprintln(g.out, command)
	cyan.Fprint(g.out, "  Purpose: ")
	fmt.Fprintln(g.out, explanation)
	fmt.Fprintln(g.out)
	bold.Fprint(g.out, "Execute this command? (y/n/s=skip alert/q=quit): ")

	switch g.readLine() {
	case "y", "yes":
		return Approve
	case "s", "skip":
		return SkipAlert
	case "q", "quit":
		return QuitRun
	default:
		return Reject
	}
}

// ConfirmContinue asks whether to move on to the next alert after a session
// ended early. EOF or anything but an explicit "no" continues the run.
func (g *Gate) ConfirmContinue() bool {
	color.New(color.Bold).Fprint(g.out, "Continue with the next alert? (Y/n): ")
	switch g.readLine() {
	case "n", "no", "q", "quit":
		return false
	default:
		return true
	}
}

func (g *Gate) readLine() string {
	line, err := g.in.ReadString('\n')
	if err != nil && line == "" {
		return "q" // closed stdin means stop the run
	}
	return strings.ToLower(strings.TrimSpace(line))
}
