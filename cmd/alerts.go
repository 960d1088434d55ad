package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hbmon/diskdiag/pkg/audit"
	"github.com/hbmon/diskdiag/pkg/config"
	"github.com/hbmon/diskdiag/pkg/formatter"
	"github.com/hbmon/diskdiag/pkg/observium"
)

// NewAlertsCmd builds the read-only alert listing command.
func NewAlertsCmd() *cobra.Command {
	var (
		cfgPath   string
		threshold int
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List current disk alerts without starting a diagnosis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if threshold > 0 {
				cfg.Session.AlertThreshold = threshold
			}

			auditLog, err := audit.Open(cfg.AuditFile)
			if err != nil {
				return err
			}

			db, err := observium.NewClient(cfg.Database, auditLog)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			alerts, err := db.GetDiskAlerts(ctx, cfg.Session.AlertThreshold)
			if err != nil {
				return fmt.Errorf("fetch alerts: %w", err)
			}

			ui := formatter.New(os.Stdout)
			if len(alerts) == 0 {
				ui.Success(fmt.Sprintf("No disk alerts above %d%%", cfg.Session.AlertThreshold))
				return nil
			}
			ui.AlertList(alerts)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "Path to config file")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Disk usage percent threshold (overrides config)")

	return cmd
}
