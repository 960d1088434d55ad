package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbmon/diskdiag/pkg/model"
)

func testAlert() model.Alert {
	return model.Alert{
		Host:         "h1",
		Mount:        "/data",
		UsagePercent: 92,
		UsedBytes:    92 << 30,
		TotalBytes:   100 << 30,
	}
}

func TestBuildDiagnosticPromptIsPure(t *testing.T) {
	history := []model.Turn{
		{
			Command:    "du -sh /data/* | sort -rh | head -20",
			TargetHost: "h1",
			Decision:   model.DecisionApproved,
			Result:     &model.ExecutionResult{Stdout: "40G /data/mysql\n12G /data/logs", Success: true},
		},
		{
			Command:  "find / -size +1G",
			Decision: model.DecisionRejected,
		},
	}

	first := BuildDiagnosticPrompt(testAlert(), history, 3000)
	second := BuildDiagnosticPrompt(testAlert(), history, 3000)
	assert.Equal(t, first, second, "same history must yield a byte-identical prompt")
}

func TestBuildDiagnosticPromptProblemContext(t *testing.T) {
	prompt := BuildDiagnosticPrompt(testAlert(), nil, 0)

	assert.Contains(t, prompt, "System: h1")
	assert.Contains(t, prompt, "Mount Point: /data")
	assert.Contains(t, prompt, "Disk Usage: 92.0%")
	assert.Contains(t, prompt, "Used: 92.00GB of 100.00GB")
	assert.Contains(t, prompt, "NEVER repeat a command")
	assert.Contains(t, prompt, "TARGET_HOST:")
	assert.Contains(t, prompt, "DIAGNOSIS_COMPLETE: true")
	assert.NotContains(t, prompt, "COMMANDS ALREADY EXECUTED", "empty history renders no history section")
}

func TestBuildDiagnosticPromptHistory(t *testing.T) {
	history := []model.Turn{
		{
			Command:    "du -sh /data/* | sort -rh | head -20",
			TargetHost: "h1",
			Decision:   model.DecisionApproved,
			Result:     &model.ExecutionResult{Stdout: "40G /data/mysql", Success: true},
		},
		{
			Command:  "cat /var/log/syslog",
			Decision: model.DecisionRejected,
		},
		{
			Command:    "mysql -e \"SHOW BINARY LOGS;\"",
			TargetHost: "h1",
			Decision:   model.DecisionApproved,
			Result:     &model.ExecutionResult{Success: false, ErrorMessage: "ERROR: Connection timeout"},
		},
	}

	prompt := BuildDiagnosticPrompt(testAlert(), history, 3000)

	// executed command appears verbatim with its output
	assert.Contains(t, prompt, "Command #1: du -sh /data/* | sort -rh | head -20")
	assert.Contains(t, prompt, "Result: SUCCESS\nOutput:\n40G /data/mysql")

	// rejected proposal marked, not re-offered as executed
	assert.Contains(t, prompt, "Command #2: cat /var/log/syslog (REJECTED by user - do not retry)")

	// failed execution surfaced as a failure signal
	assert.Contains(t, prompt, "Command #3: mysql -e \"SHOW BINARY LOGS;\"")
	assert.Contains(t, prompt, "Result: FAILED")
	assert.Contains(t, prompt, "Error: ERROR: Connection timeout")
}

func TestBuildDiagnosticPromptTruncatesOutput(t *testing.T) {
	long := strings.Repeat("x", 5000)
	history := []model.Turn{{
		Command:  "du -sh /data",
		Decision: model.DecisionApproved,
		Result:   &model.ExecutionResult{Stdout: long, Success: true},
	}}

	prompt := BuildDiagnosticPrompt(testAlert(), history, 3000)

	require.Contains(t, prompt, "... (output truncated)")
	assert.Contains(t, prompt, strings.Repeat("x", 3000))
	assert.NotContains(t, prompt, strings.Repeat("x", 3001))
}
