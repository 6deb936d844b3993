package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/arbiter/internal/observability"
	"github.com/boristopalov/arbiter/pkg/config"
	"github.com/boristopalov/arbiter/pkg/experiment"
)

func main() {
	for _, envFile := range []string{
		".env",
		"../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "arbiter",
		Short:        "Arbiter runs named environments of agents and controls their lifecycle.",
		SilenceUsage: true,
	}

	var configPath, logLevel string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the environments described by an experiment config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(cmd, configPath, logLevel)
		},
	}
	runCmd.Flags().StringVarP(&configPath, "config", "c", "arbiter.yaml", "experiment config file")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an experiment config without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d environment(s), %d scheduled step(s)\n",
				cfg.Name, len(cfg.Environments), len(cfg.Schedule))
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&configPath, "config", "c", "arbiter.yaml", "experiment config file")

	rootCmd.AddCommand(runCmd, validateCmd)
	return rootCmd
}

func runExperiment(cmd *cobra.Command, configPath, logLevel string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger := observability.InitLogger("arbiter", cfg.Logging.Level)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	exp := experiment.New(cfg, experiment.WithLogger(logger))
	reports, err := exp.Run(ctx)
	if err != nil {
		return fmt.Errorf("experiment failed: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENVIRONMENT\tSTATE\tBLOCKS\tAGENTS")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.Label, r.State, r.Blocks, r.Agents)
	}
	if failed := len(exp.Status().Errors); failed > 0 {
		fmt.Fprintf(w, "\n%d scheduled step(s) failed\n", failed)
	}
	return w.Flush()
}
