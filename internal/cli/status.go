package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldrover/wayfarer/internal/introspect"
	"github.com/fieldrover/wayfarer/internal/pose"
)

var (
	// status flags
	statusAddr string
	statusJSON bool
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "daemon introspection address (default: listen.http from the config)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw status document")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := statusAddr
		if addr == "" {
			addr = appConfig.Listen.HTTP
		}

		url := httpBase(addr) + "/status"
		resp, err := http.Get(url)
		if err != nil {
			return fmt.Errorf("failed to reach daemon: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("daemon returned status %d", resp.StatusCode)
		}

		var status introspect.Status
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("failed to decode status: %w", err)
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(status)
		}

		state := status.State
		if status.Terminal != "" {
			state = "finished: " + colorize(status.Terminal, terminalColor(status.Terminal))
		}

		poseLine := "--"
		if status.Pose.Valid {
			poseLine = fmt.Sprintf("x %.2f  y %.2f  yaw %.2f", status.Pose.X, status.Pose.Y, status.Pose.Yaw)
		}

		fmt.Fprintf(out, "Plan:         %s (run %s)\n", status.Plan, status.RunID)
		fmt.Fprintf(out, "State:        %s\n", state)
		if status.Waypoint != "" {
			fmt.Fprintf(out, "Waypoint:     %s (%d/%d)\n", status.Waypoint, status.Cursor+1, status.Waypoints)
		}
		fmt.Fprintf(out, "Feed:         %s (%d updates)\n", colorize(string(status.Feed.State), feedColor(status.Feed.State)), status.Feed.Updates)
		fmt.Fprintf(out, "Pose:         %s\n", poseLine)
		fmt.Fprintf(out, "Subscribers:  %d\n", status.Subscribers)
		fmt.Fprintf(out, "Uptime:       %s\n", status.Uptime)
		return nil
	},
}

// httpBase turns a listen address into a base URL.
func httpBase(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/")
}

func feedColor(state pose.FeedState) string {
	switch state {
	case pose.FeedLive:
		return colorGreen
	case pose.FeedWaiting, pose.FeedStale:
		return colorYellow
	default:
		return colorRed
	}
}
