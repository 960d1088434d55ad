// Package session owns the interactive diagnosis loop for one alert.
//
// The controller runs a per-session state machine: request a proposal from
// the model, gate it for safety (grammar, near-duplicates, minimum
// evidence), hand it to the human approver, execute approved commands
// through the command channel, and feed results back into the next prompt.
// The model is untrusted; every safety property is enforced here, in the
// protocol, never delegated to the model.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/hbmon/diskdiag/pkg/audit"
	"github.com/hbmon/diskdiag/pkg/config"
	"github.com/hbmon/diskdiag/pkg/executor"
	"github.com/hbmon/diskdiag/pkg/gate"
	"github.com/hbmon/diskdiag/pkg/model"
	"github.com/hbmon/diskdiag/pkg/similarity"
)

// ErrUserQuit ends the entire multi-alert run, not just the session.
var ErrUserQuit = errors.New("user quit the run")

// Feedback is one earlier attempt in the current proposal episode: the raw
// model reply and the rejection message explaining why it was refused.
type Feedback struct {
	Reply     string
	Rejection string
}

// Advisor produces the next proposed action from the model. It returns the
// typed action together with the raw reply text (needed to thread rejection
// feedback back into the conversation).
type Advisor interface {
	NextAction(ctx context.Context, alert model.Alert, history []model.Turn, feedback []Feedback) (model.ParsedAction, string, error)
}

// Approver collects human decisions.
type Approver interface {
	Decide(targetHost, command, explanation string) gate.Verdict
	ConfirmContinue() bool
}

// HostResolver maps a short or ambiguous model-proposed hostname to a
// canonical one.
type HostResolver interface {
	Resolve(ctx context.Context, short string) (string, error)
}

// Events receives display callbacks so the controller stays free of
// terminal concerns.
type Events interface {
	ProposalRequested(attempt int)
	ProposalRetried(rejection string)
	CommandExecuting(targetHost, command string)
	CommandFinished(res model.ExecutionResult)
	SessionEnded(outcome model.SessionOutcome)
}

// Controller drives diagnosis sessions. One controller serves the whole run;
// per-session state lives in the Diagnose call frame, so a finished
// session leaves nothing behind.
type Controller struct {
	advisor  Advisor
	channel  executor.Channel
	approver Approver
	resolver HostResolver
	detector *similarity.Detector
	audit    *audit.Logger
	events   Events
	cfg      config.Session
}

// New wires a controller.
func New(advisor Advisor, channel executor.Channel, approver Approver, resolver HostResolver, auditLog *audit.Logger, events Events, cfg config.Session) *Controller {
	return &Controller{
		advisor:  advisor,
		channel:  channel,
		approver: approver,
		resolver: resolver,
		detector: similarity.New(cfg.SimilarityThreshold),
		audit:    auditLog,
		events:   events,
		cfg:      cfg,
	}
}

// Diagnose runs one full session for an alert. It returns ErrUserQuit when
// the operator quit the run; every other terminal condition is reported in
// the outcome, not as an error.
func (c *Controller) Diagnose(ctx context.Context, alert model.Alert) (model.SessionOutcome, error) {
	c.audit.Interaction("ALERT_START", alert.Host, fmt.Sprintf("disk:%s", alert.Mount), nil, 0)

	var (
		history  []model.Turn
		feedback []Feedback
		executed int
	)

	for iteration := 1; ; iteration++ {
		if iteration > c.cfg.MaxIterations {
			return c.abort(alert, history, iteration-1, executed, "max iterations reached"), nil
		}

		c.events.ProposalRequested(len(feedback) + 1)
		action, raw, err := c.advisor.NextAction(ctx, alert, history, feedback)
		if err != nil {
			c.audit.Error("AI request failed", map[string]interface{}{"host": alert.Host, "error": err.Error()})
			return c.abort(alert, history, iteration, executed, fmt.Sprintf("AI request failed: %v", err)), nil
		}

		switch action.Kind {
		case model.ActionParseFailure:
			rejection := fmt.Sprintf("Your reply did not follow the required format (%s). "+
				"Reply with exactly TARGET_HOST/NEXT_COMMAND/EXPLANATION lines, or the DIAGNOSIS_COMPLETE block.", action.Reason)
			if outcome, stop := c.retry(&feedback, raw, rejection, alert, history, iteration, executed, "malformed reply"); stop {
				return outcome, nil
			}

		case model.ActionConclude:
			if executed < c.cfg.MinCommands {
				missing := c.cfg.MinCommands - executed
				rejection := fmt.Sprintf("Diagnosis rejected: only %d commands have been executed. "+
					"Run at least %d more diagnostic commands before concluding.", executed, missing)
				if outcome, stop := c.retry(&feedback, raw, rejection, alert, history, iteration, executed, "premature conclusion"); stop {
					return outcome, nil
				}
				continue
			}
			c.audit.Interaction("DIAGNOSIS_COMPLETE", alert.Host, "", nil, len(raw))
			outcome := model.SessionOutcome{
				Status:      model.SessionConcluded,
				Conclusion:  action.Conclusion,
				History:     history,
				Iterations:  iteration,
				ExecutedCnt: executed,
			}
			c.events.SessionEnded(outcome)
			return outcome, nil

		case model.ActionProposeCommand:
			if dup := c.detector.FindDuplicate(action.Command, executedCommands(history)); dup != nil {
				rejection := fmt.Sprintf("Command rejected as a near-duplicate (%.0f%% similar) of an already executed command: %q. "+
					"Propose a genuinely different diagnostic step.", dup.Ratio*100, dup.Command)
				c.audit.Warn("near-duplicate command rejected", map[string]interface{}{
					"host": alert.Host, "command": action.Command, "conflicts_with": dup.Command,
				})
				if outcome, stop := c.retry(&feedback, raw, rejection, alert, history, iteration, executed, "near-duplicate proposals"); stop {
					return outcome, nil
				}
				continue
			}

			feedback = nil
			turn, verdict := c.approvalStep(ctx, alert, action)
			switch verdict {
			case gate.QuitRun:
				c.audit.Info("run aborted by user", map[string]interface{}{"host": alert.Host})
				return c.abort(alert, history, iteration, executed, "user quit"), ErrUserQuit
			case gate.SkipAlert:
				c.audit.Interaction("COMMAND_SKIPPED", alert.Host, action.Command, nil, 0)
				return c.abort(alert, history, iteration, executed, "skipped by user"), nil
			case gate.Reject:
				history = append(history, turn)
			case gate.Approve:
				history = append(history, turn)
				executed++
			}
		}
	}
}

// retry records a rejection for the current proposal episode and reports
// whether the attempt cap is exhausted.
func (c *Controller) retry(feedback *[]Feedback, raw, rejection string, alert model.Alert, history []model.Turn, iteration, executed int, what string) (model.SessionOutcome, bool) {
	*feedback = append(*feedback, Feedback{Reply: raw, Rejection: rejection})
	c.events.ProposalRetried(rejection)
	if len(*feedback) >= c.cfg.MaxAttempts {
		return c.abort(alert, history, iteration, executed, fmt.Sprintf("attempt cap exhausted after %d %s", len(*feedback), what)), true
	}
	return model.SessionOutcome{}, false
}

// approvalStep presents the proposal, and on approval resolves the target
// host and executes the command. The returned turn reflects the decision.
func (c *Controller) approvalStep(ctx context.Context, alert model.Alert, action model.ParsedAction) (model.Turn, gate.Verdict) {
	target := c.resolveTarget(ctx, alert, action.TargetHost)

	verdict := c.approver.Decide(target, action.Command, action.Explanation)
	turn := model.Turn{
		Command:     action.Command,
		TargetHost:  target,
		Explanation: action.Explanation,
	}

	switch verdict {
	case gate.Approve:
		approved := true
		c.audit.Interaction("COMMAND_APPROVED", target, action.Command, &approved, 0)
		c.events.CommandExecuting(target, action.Command)
		res := c.channel.Execute(ctx, target, action.Command)
		c.events.CommandFinished(res)
		c.audit.Interaction("COMMAND_EXECUTED", target, action.Command, nil, len(res.Stdout))
		turn.Decision = model.DecisionApproved
		turn.Result = &res
	case gate.Reject:
		rejected := false
		c.audit.Interaction("COMMAND_REJECTED", target, action.Command, &rejected, 0)
		turn.Decision = model.DecisionRejected
	case gate.SkipAlert:
		turn.Decision = model.DecisionSkipped
	}
	return turn, verdict
}

// resolveTarget canonicalizes the model-proposed host via the device
// directory, defaulting to the alerting host on any failure or when the
// model named no host.
func (c *Controller) resolveTarget(ctx context.Context, alert model.Alert, proposed string) string {
	if proposed == "" {
		return alert.Host
	}
	resolved, err := c.resolver.Resolve(ctx, proposed)
	if err != nil {
		c.audit.Warn("could not resolve proposed host, using alerting host", map[string]interface{}{
			"proposed": proposed, "fallback": alert.Host, "error": err.Error(),
		})
		return alert.Host
	}
	return resolved
}

func (c *Controller) abort(alert model.Alert, history []model.Turn, iterations, executed int, reason string) model.SessionOutcome {
	c.audit.Error("session aborted", map[string]interface{}{"host": alert.Host, "reason": reason})
	outcome := model.SessionOutcome{
		Status:      model.SessionAborted,
		Reason:      reason,
		History:     history,
		Iterations:  iterations,
		ExecutedCnt: executed,
	}
	c.events.SessionEnded(outcome)
	return outcome
}

func executedCommands(history []model.Turn) []string {
	var cmds []string
	for _, t := range history {
		if t.Executed() {
			cmds = append(cmds, t.Command)
		}
	}
	return cmds
}
