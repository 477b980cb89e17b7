package cli

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldrover/wayfarer/internal/daemon"
	"github.com/fieldrover/wayfarer/internal/graph"
	"github.com/fieldrover/wayfarer/internal/mission"
)

var (
	// run flags
	runPlanPath string
	runDatabase string
	runPose     string
	runPublish  string
	runHTTP     string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runPlanPath, "plan", "", "mission plan file, or 'builtin' for the bundled demo plan (overrides the config)")
	runCmd.Flags().StringVar(&runDatabase, "database", "", "sqlite file for events and attempts, empty disables persistence (overrides the config)")
	runCmd.Flags().StringVar(&runPose, "pose-listen", "", "UDP address for pose feedback (overrides the config)")
	runCmd.Flags().StringVar(&runPublish, "publish-listen", "", "TCP address for waypoint subscribers (overrides the config)")
	runCmd.Flags().StringVar(&runHTTP, "http-listen", "", "HTTP address for status, events and metrics (overrides the config)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a mission plan",
	Long: `Run the daemon for one plan: serve the pose feed and the waypoint
stream, execute every mission in order, and exit when the plan settles.`,
	Example: `  # Run the plan named in the config file
  wayfarer run

  # Run a specific plan with persistence
  wayfarer run --plan missions/site_survey.yaml --database /var/lib/wayfarer/runs.db

  # Run the bundled demo plan
  wayfarer run --plan builtin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		if runPlanPath != "" {
			cfg.Plan = runPlanPath
		}
		if cmd.Flags().Changed("database") {
			cfg.Database = runDatabase
		}
		if runPose != "" {
			cfg.Listen.Pose = runPose
		}
		if runPublish != "" {
			cfg.Listen.Publish = runPublish
		}
		if runHTTP != "" {
			cfg.Listen.HTTP = runHTTP
		}

		plan, err := mission.LoadPlan(cfg.Plan)
		if err != nil {
			return err
		}

		d, err := daemon.New(cfg, plan)
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := d.Run(ctx); err != nil {
			return err
		}
		if d.Status().Terminal == graph.Failure {
			return errors.New("plan finished: failure")
		}
		return nil
	},
}
