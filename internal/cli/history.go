package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldrover/wayfarer/internal/db"
)

var (
	// history flags
	historyRun    string
	historyEvents int
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyRun, "run", "", "run id (default: the most recent run)")
	historyCmd.Flags().IntVar(&historyEvents, "events", 15, "number of recorded events to print, 0 for none")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarize a recorded run from the database",
	Long: `Summarize the waypoint attempts of a recorded run per mission, with
the run's event trail.

Without --run the most recent run in the database is shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig.Database == "" {
			return errors.New("no database configured")
		}

		database, err := db.Open(appConfig.Database)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := cmd.Context()
		eventRepo := db.NewEventRepository(database)

		runID := historyRun
		if runID == "" {
			recent, err := eventRepo.ListRecent(ctx, 1)
			if err != nil {
				return err
			}
			if len(recent) == 0 || recent[0].RunID == "" {
				return errors.New("no recorded runs")
			}
			runID = recent[0].RunID
		}

		summaries, err := db.NewAttemptRepository(database).SummarizeByMission(ctx, runID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run %s\n\n", runID)

		rows := make([][]string, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, []string{
				s.Mission,
				strconv.Itoa(s.Reached),
				strconv.Itoa(s.Skipped),
				strconv.Itoa(s.Replaced),
				strconv.Itoa(s.Aborted),
				formatAvg(s.AvgToGoal),
			})
		}
		if err := writeTable(out, []string{"MISSION", "REACHED", "SKIPPED", "REPLACED", "ABORTED", "AVG_TO_GOAL"}, rows); err != nil {
			return err
		}

		if historyEvents <= 0 {
			return nil
		}

		recorded, err := eventRepo.ListByRun(ctx, runID, historyEvents)
		if err != nil {
			return err
		}
		if len(recorded) == 0 {
			return nil
		}

		fmt.Fprintln(out)
		eventRows := make([][]string, 0, len(recorded))
		for _, event := range recorded {
			eventRows = append(eventRows, []string{
				event.Timestamp.Local().Format("15:04:05"),
				string(event.Type),
				event.EntityID,
			})
		}
		return writeTable(out, []string{"TIME", "EVENT", "ENTITY"}, eventRows)
	},
}

func formatAvg(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
