package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/hbmon/diskdiag/pkg/audit"
	"github.com/hbmon/diskdiag/pkg/config"
	"github.com/hbmon/diskdiag/pkg/executor"
	"github.com/hbmon/diskdiag/pkg/formatter"
	"github.com/hbmon/diskdiag/pkg/gate"
	"github.com/hbmon/diskdiag/pkg/llm"
	"github.com/hbmon/diskdiag/pkg/model"
	"github.com/hbmon/diskdiag/pkg/observium"
	"github.com/hbmon/diskdiag/pkg/session"
)

var (
	configPath    string
	threshold     int
	minCommands   int
	maxIterations int
	modelOverride string
	preflight     bool
)

// NewDiagnoseCmd builds the interactive diagnosis command.
func NewDiagnoseCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Interactively diagnose disk alerts with AI assistance",
		Long: `Fetch disk alerts from the monitoring database and run an interactive,
AI-guided diagnosis session per alert.

The AI proposes one read-only diagnostic command at a time. Each command
requires your approval before it runs on the target host through the
jump-host relay; its output feeds the next AI step.

Examples:
  # Diagnose everything above the configured threshold
  diskdiag diagnose

  # Raise the threshold and require fewer commands before a diagnosis
  diskdiag diagnose --threshold 90 --min-commands 5

  # Verify connectivity to the jump host and AI endpoint, then exit
  diskdiag diagnose --check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(version)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to config file")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Disk usage percent threshold (overrides config)")
	cmd.Flags().IntVar(&minCommands, "min-commands", 0, "Minimum executed commands before a diagnosis is accepted")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Hard cap on AI iterations per session")
	cmd.Flags().StringVarP(&modelOverride, "model", "m", "", "Model identifier (overrides config)")
	cmd.Flags().BoolVar(&preflight, "check", false, "Only verify AI endpoint and jump-host connectivity")

	return cmd
}

func runDiagnose(version string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg)

	auditLog, err := audit.Open(cfg.AuditFile)
	if err != nil {
		return err
	}
	auditLog.Info("diskdiag started", map[string]interface{}{"version": version})

	ui := formatter.New(os.Stdout)
	ui.Banner(version)

	db, err := observium.NewClient(cfg.Database, auditLog)
	if err != nil {
		auditLog.Error("fatal error", map[string]interface{}{"error": err.Error()})
		return err
	}
	defer db.Close()

	provider, err := llm.NewFromConfig(cfg.LLM)
	if err != nil {
		auditLog.Error("fatal error", map[string]interface{}{"error": err.Error()})
		return err
	}

	transport, err := executor.NewSSHTransport(cfg.SSH)
	if err != nil {
		auditLog.Error("fatal error", map[string]interface{}{"error": err.Error()})
		return err
	}
	channel := executor.New(transport, cfg.MySQL, cfg.SSH.Timeout, auditLog)

	if preflight {
		return runPreflight(provider, channel, cfg, ui)
	}

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	advisor := &spinnerAdvisor{
		inner: session.NewLLMAdvisor(provider, llm.OptionsFromConfig(cfg.LLM), cfg.LLM.Stream, cfg.Session.OutputBudget),
		s:     s,
	}

	approver := gate.New(os.Stdin, os.Stdout)
	controller := session.New(advisor, channel, approver, deviceResolver{db}, auditLog, ui, cfg.Session)

	ctx := context.Background()

	s.Suffix = " Scanning for disk alerts..."
	s.Start()
	alerts, err := db.GetDiskAlerts(ctx, cfg.Session.AlertThreshold)
	s.Stop()

	if err != nil {
		// An unreachable alert source ends the run without crashing it.
		ui.Error(fmt.Sprintf("Alert source unreachable: %v", err))
		auditLog.Error("alert source unreachable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if len(alerts) == 0 {
		ui.Success("No disk alerts found")
		auditLog.Info("no disk alerts found", nil)
		return nil
	}

	ui.AlertList(alerts)

	for i, alert := range alerts {
		ui.AlertHeader(i+1, len(alerts), alert)

		outcome, err := diagnoseAlert(ctx, controller, alert, auditLog)
		if errors.Is(err, session.ErrUserQuit) {
			break
		}
		if err != nil {
			ui.Error(fmt.Sprintf("Error processing alert for %s: %v", alert.Host, err))
			continue
		}

		// Offer to stop the run after a session that ended early.
		if outcome.Status == model.SessionAborted && i < len(alerts)-1 {
			if !approver.ConfirmContinue() {
				break
			}
		}
	}

	ui.Success("Run complete")
	auditLog.Info("diskdiag completed", nil)
	fmt.Printf("\nAudit log: %s\n", cfg.AuditFile)
	return nil
}

// diagnoseAlert is the per-alert fault boundary: an unexpected panic while
// processing one alert is logged in full and the run moves on to the next.
func diagnoseAlert(ctx context.Context, controller *session.Controller, alert model.Alert, auditLog *audit.Logger) (outcome model.SessionOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			auditLog.Error("panic while processing alert", map[string]interface{}{
				"host": alert.Host, "panic": fmt.Sprint(r), "stack": string(debug.Stack()),
			})
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return controller.Diagnose(ctx, alert)
}

func runPreflight(provider llm.Provider, channel *executor.Executor, cfg *config.Config, ui *formatter.UI) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := provider.TestConnection(ctx); err != nil {
		ui.Error(fmt.Sprintf("AI endpoint check failed: %v", err))
		return err
	}
	ui.Success(fmt.Sprintf("AI endpoint reachable (%s)", provider.Name()))

	if channel.TestConnectivity(ctx, cfg.SSH.JumpHost) {
		ui.Success(fmt.Sprintf("Jump host %s reachable", cfg.SSH.JumpHost))
	} else {
		ui.Warn(fmt.Sprintf("Jump host %s check did not return output", cfg.SSH.JumpHost))
	}
	return nil
}

func applyOverrides(cfg *config.Config) {
	if threshold > 0 {
		cfg.Session.AlertThreshold = threshold
	}
	if minCommands > 0 {
		cfg.Session.MinCommands = minCommands
	}
	if maxIterations > 0 {
		cfg.Session.MaxIterations = maxIterations
	}
	if modelOverride != "" {
		cfg.LLM.Model = modelOverride
	}
}

// deviceResolver adapts the monitoring database client to the controller's
// resolver interface.
type deviceResolver struct {
	client *observium.Client
}

func (r deviceResolver) Resolve(ctx context.Context, short string) (string, error) {
	d, err := r.client.ResolveHost(ctx, short)
	if err != nil {
		return "", err
	}
	return d.Hostname, nil
}

// spinnerAdvisor shows progress while blocked on a model request.
type spinnerAdvisor struct {
	inner session.Advisor
	s     *spinner.Spinner
}

func (a *spinnerAdvisor) NextAction(ctx context.Context, alert model.Alert, history []model.Turn, feedback []session.Feedback) (model.ParsedAction, string, error) {
	a.s.Suffix = " Waiting for AI..."
	a.s.Start()
	defer a.s.Stop()
	return a.inner.NextAction(ctx, alert, history, feedback)
}
