// Package executor wraps the remote command channel with the policies the
// transport itself cannot provide: credential injection for privileged
// database commands, transport-safe payload encoding, and the output-based
// success heuristic.
//
// Success heuristic (the contract with the relay transport): the relay
// wrapper reports exit code 0 regardless of what the remote command did, so
// success is inferred from non-trivial stdout combined with the absence of
// the known transport error markers. Replace InferSuccess once a trustworthy
// exit-status channel exists.
package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/hbmon/diskdiag/pkg/audit"
	"github.com/hbmon/diskdiag/pkg/config"
	"github.com/hbmon/diskdiag/pkg/model"
)

// Channel is the command-execution contract the session controller depends
// on: one synchronous call per command, bounded by the configured timeout,
// safe only for read-only commands (a caller obligation).
type Channel interface {
	Execute(ctx context.Context, targetHost, command string) model.ExecutionResult
}

// Transport error markers emitted by the relay wrapper.
const (
	markerConnTimeout   = "ERROR: Connection timeout"
	markerConnFailed    = "ERROR: Failed to connect"
	markerHostUnknown   = "ERROR: Unknown host"
	minMeaningfulOutput = 10
)

// Executor implements Channel on top of a Transport.
type Executor struct {
	transport Transport
	creds     map[string]config.MySQLCredential
	timeout   time.Duration
	audit     *audit.Logger
}

// New builds the policy wrapper around a transport.
func New(transport Transport, creds map[string]config.MySQLCredential, timeout time.Duration, auditLog *audit.Logger) *Executor {
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Executor{transport: transport, creds: creds, timeout: timeout, audit: auditLog}
}

// Execute prepares and runs one diagnostic command on the target host.
// Failures are reported in the result, never as a panic; the caller records
// them as failed turns.
func (e *Executor) Execute(ctx context.Context, targetHost, command string) model.ExecutionResult {
	start := time.Now()

	prepared := e.injectCredentials(targetHost, command)
	payload := EncodePayload(prepared)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.transport.Run(runCtx, targetHost, payload)
	duration := time.Since(start)

	if err != nil {
		e.audit.Error("command execution failed", map[string]interface{}{
			"host": targetHost, "command": clip(command, 100), "error": err.Error(),
		})
		return model.ExecutionResult{
			ExitCode:     -1,
			ErrorMessage: err.Error(),
			Duration:     duration,
		}
	}

	stdout, errMsg := scrubOutput(raw)
	success := InferSuccess(stdout, raw)

	res := model.ExecutionResult{
		Stdout:       stdout,
		Success:      success,
		ErrorMessage: errMsg,
		Duration:     duration,
	}
	if !success {
		res.ExitCode = 1
		if stdout == "" && errMsg == "" {
			res.Stdout = "(No output returned from command)"
		}
		e.audit.Warn("command may have failed", map[string]interface{}{
			"host": targetHost, "command": clip(command, 100), "output_length": len(stdout),
		})
		return res
	}

	e.audit.Info("command executed", map[string]interface{}{
		"host": targetHost, "command": clip(command, 100), "duration": duration.String(),
	})
	return res
}

// TestConnectivity runs a trivial echo through the relay to verify the
// jump-host path before the first session.
func (e *Executor) TestConnectivity(ctx context.Context, targetHost string) bool {
	res := e.Execute(ctx, targetHost, "echo 'connectivity test'")
	return res.Success
}

// EncodePayload makes arbitrary command text survive the intermediary shell.
// Quoting-based escaping corrupts commands with embedded quotes, pipes and
// redirects, so the command is carried as base64 and decoded on the far
// side.
func EncodePayload(command string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(command))
	return fmt.Sprintf("echo %s | base64 -d | bash", encoded)
}

// InferSuccess applies the output heuristic: meaningful stdout and no
// transport error markers in the raw relay output.
func InferSuccess(stdout, raw string) bool {
	if len(strings.TrimSpace(stdout)) <= minMeaningfulOutput {
		return false
	}
	for _, marker := range []string{markerConnTimeout, markerConnFailed, markerHostUnknown} {
		if strings.Contains(raw, marker) {
			return false
		}
	}
	return true
}

// scrubOutput strips relay chatter from the raw output and pulls out any
// transport error line.
func scrubOutput(raw string) (stdout, errMsg string) {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "ERROR:") {
			if errMsg == "" {
				errMsg = trimmed
			}
			continue
		}
		if strings.HasPrefix(trimmed, "WARNING:") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), errMsg
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
