package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fieldrover/wayfarer/internal/mission"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate [plan]",
	Short: "Validate a mission plan",
	Long: `Validate a mission plan document and print its layout.

Without an argument the plan named in the config file is validated. The
reference 'builtin' selects the bundled demo plan.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := appConfig.Plan
		if len(args) == 1 {
			path = args[0]
		}

		plan, err := mission.LoadPlan(path)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(plan.Missions))
		for _, ms := range plan.Missions {
			onAborted := ms.OnAborted
			if onAborted == "" {
				onAborted = "-"
			}
			rows = append(rows, []string{
				ms.Name,
				strconv.Itoa(len(ms.Waypoints)),
				formatYesNo(ms.Exploration),
				onAborted,
			})
		}

		out := cmd.OutOrStdout()
		if err := writeTable(out, []string{"MISSION", "WAYPOINTS", "EXPLORATION", "ON_ABORTED"}, rows); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s: %d mission(s), %d waypoint(s), plan is valid\n", plan.Name, len(plan.Missions), plan.Waypoints())
		return nil
	},
}
