package commands

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// HistoryCmd prints recorded batch runs.
var HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return runHistory(limit)
	},
}

func init() {
	HistoryCmd.Flags().Int("limit", 20, "Maximum number of runs to show")
}

func runHistory(limit int) error {
	env, err := Open()
	if err != nil {
		return err
	}
	runs, err := env.Store.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		pterm.Info.Println("No runs recorded")
		return nil
	}

	data := pterm.TableData{{"Started", "Attendance ID", "Total", "OK", "Failed", "Took"}}
	shown := 0
	for i := len(runs) - 1; i >= 0 && (limit <= 0 || shown < limit); i-- {
		r := runs[i]
		data = append(data, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Target,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			r.Duration,
		})
		shown++
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
