package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ecollecte/wastefleet/app"
	"github.com/ecollecte/wastefleet/config"
	"github.com/ecollecte/wastefleet/infra/logger"
)

var planFull bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run a single planning pass and exit",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planFull, "full", false, "run a full-cycle pass instead of an emergency pass")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	logg := logger.New("plan-command")
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	if planFull {
		if err := svc.Scheduler.RunFullPass(ctx); err != nil {
			return fmt.Errorf("full pass: %w", err)
		}
		logg.Infof("full pass completed")
		return nil
	}
	if err := svc.Scheduler.RunEmergencyPass(ctx); err != nil {
		return fmt.Errorf("emergency pass: %w", err)
	}
	logg.Infof("emergency pass completed")
	return nil
}
