package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hbmon/diskdiag/cmd"
)

var (
	version = "v0.3.0" // Overwritten at build time
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "diskdiag",
		Short: "AI-assisted disk space diagnosis",
		Long: `diskdiag polls the monitoring database for hosts whose disk usage exceeds
a threshold and drives an interactive, AI-guided root-cause diagnosis per
alert. Every proposed command requires human approval before it runs.`,
		SilenceUsage: true,
	}

	// Disable automatic 'completion' command added by cobra
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		cmd.NewDiagnoseCmd(version),
		cmd.NewAlertsCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("diskdiag version %s\n", version)
		},
	}
}
