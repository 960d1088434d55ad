package prompts

import (
	"fmt"
	"strings"

	"github.com/hbmon/diskdiag/pkg/model"
)

// DefaultOutputBudget caps how many characters of captured output per
// executed command are echoed back into the prompt.
const DefaultOutputBudget = 3000

// BuildDiagnosticPrompt serializes the problem context and the full ordered
// turn history into the next prompt body.
//
// The function is pure: the same (alert, history, budget) always yields a
// byte-identical prompt. The session controller relies on this — the model
// sees no hidden state, only the reconstructed history.
func BuildDiagnosticPrompt(alert model.Alert, history []model.Turn, outputBudget int) string {
	if outputBudget <= 0 {
		outputBudget = DefaultOutputBudget
	}

	var b strings.Builder

	fmt.Fprintf(&b, `You are an expert Linux systems administrator conducting an interactive diagnosis.

CURRENT ISSUE:
- System: %s
- Mount Point: %s
- Disk Usage: %.1f%%
- Used: %.2fGB of %.2fGB
- Free: %.2fGB

Your goal is to diagnose the root cause through targeted, READ-ONLY commands.

CRITICAL RULES:
1. NEVER repeat a command that has already been executed
2. Commands must be READ-ONLY (no rm, delete, truncate, etc.)
3. Permission errors on lost+found are NORMAL and expected - ignore them
4. Start with broad analysis, then drill down based on results
5. Check if databases/files are actually in use before recommending deletion
6. Look for large log files, old databases, and unnecessary binlogs
`, alert.Host, alert.Mount, alert.UsagePercent, alert.UsedGB(), alert.TotalGB(), alert.FreeGB())

	if len(history) > 0 {
		b.WriteString("\n=== COMMANDS ALREADY EXECUTED ===\nDO NOT REPEAT THESE COMMANDS:\n\n")
		for i, turn := range history {
			if !turn.Executed() {
				fmt.Fprintf(&b, "Command #%d: %s (REJECTED by user - do not retry)\n\n", i+1, turn.Command)
				continue
			}
			fmt.Fprintf(&b, "Command #%d: %s\n", i+1, turn.Command)
			writeResult(&b, turn.Result, outputBudget)
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, `
=== YOUR NEXT ACTION ===

Based on the above results, provide your next diagnostic step.
REMEMBER: Do NOT repeat any command from the history above!

If you need more information to diagnose:
Respond with exactly:
TARGET_HOST: [host to run on, normally %s]
NEXT_COMMAND: [exact NEW command to run - must be different from all previous commands]
EXPLANATION: [why this command helps diagnose the issue]

If you have enough information to make recommendations:
Respond with exactly:
DIAGNOSIS_COMPLETE: true
ROOT_CAUSE: [your complete analysis of the root cause]
LONG_TERM_SOLUTION: [how to prevent recurrence structurally]
IMMEDIATE_ACTIONS: [what the operator should do right now]
PREVENTIVE_MEASURES: [monitoring or housekeeping to add]
COMMANDS_TO_IMPLEMENT:
1. [first remediation command with estimated space freed]
2. [second remediation command with estimated space freed]

Remember: Permission errors on 'lost+found' are normal. Focus on the actual data.`, alert.Host)

	return b.String()
}

func writeResult(b *strings.Builder, res *model.ExecutionResult, budget int) {
	if res == nil {
		b.WriteString("Result: UNKNOWN\n")
		return
	}
	if res.Success {
		out := res.Stdout
		if out == "" {
			out = "No output"
		}
		truncated := false
		if len(out) > budget {
			out = out[:budget]
			truncated = true
		}
		fmt.Fprintf(b, "Result: SUCCESS\nOutput:\n%s\n", out)
		if truncated {
			b.WriteString("... (output truncated)\n")
		}
		return
	}
	b.WriteString("Result: FAILED\n")
	if res.ErrorMessage != "" {
		fmt.Fprintf(b, "Error: %s\n", clip(res.ErrorMessage, 200))
	} else if res.Stderr != "" {
		fmt.Fprintf(b, "Error: %s\n", clip(res.Stderr, 200))
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
