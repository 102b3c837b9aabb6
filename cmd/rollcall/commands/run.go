package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/buckleypaul/rollcall/internal/batch"
	"github.com/buckleypaul/rollcall/internal/errors"
	"github.com/buckleypaul/rollcall/internal/logger"
	"github.com/buckleypaul/rollcall/internal/outcome"
)

// RunCmd marks one attendance ID for every stored user.
var RunCmd = &cobra.Command{
	Use:   "run <attendance-id>",
	Short: "Mark attendance for every stored user",
	Long: `Submit the attendance ID once per stored user, one request at a time,
pausing before each request. A failure for one user never stops the run.

Examples:
  rollcall run 6650b1f2c3              # Mark with the configured pace
  rollcall run 6650b1f2c3 --pace 500   # Pause 500ms before each request`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paceMS, _ := cmd.Flags().GetInt("pace")
		return runMark(cmd, args[0], paceMS)
	},
}

func init() {
	RunCmd.Flags().Int("pace", 0, "Pause before each request in milliseconds (default from config)")
}

func runMark(cmd *cobra.Command, target string, paceMS int) error {
	env, err := Open()
	if err != nil {
		return err
	}
	runner := env.Runner(env.Client())
	if paceMS > 0 {
		runner.SetPace(time.Duration(paceMS) * time.Millisecond)
	}

	records := env.Store.Credentials()
	if len(records) == 0 {
		pterm.Warning.Println("No users stored. Add some with 'rollcall add' or 'rollcall import'")
	} else {
		pterm.Info.Printfln("Marking %s for %d users (pace %s)", target, len(records), runner.Pace())
	}

	log := outcome.NewLog(env.Config.LogCapacity)
	zlog := logger.ComponentLogger("cli")
	var summary batch.RunFinished

	err = runner.Run(cmd.Context(), target, records, func(ev batch.Event) {
		if err := batch.Apply(ev, env.Store, log); err != nil {
			zlog.Warnw("applying run event failed", logger.FieldError, err)
		}
		switch ev := ev.(type) {
		case batch.EntryAppended:
			printEntry(ev.Entry)
		case batch.RunFinished:
			summary = ev
		}
	})
	if err != nil {
		return err
	}

	pterm.Println()
	if summary.Failed > 0 {
		pterm.Warning.Printfln("%d succeeded, %d failed in %s",
			summary.Succeeded, summary.Failed, summary.Duration.Round(time.Millisecond))
		return errors.Newf("%d of %d submissions failed", summary.Failed, summary.Total)
	}
	pterm.Success.Printfln("%d succeeded in %s", summary.Succeeded, summary.Duration.Round(time.Millisecond))
	return nil
}

func printEntry(e outcome.Entry) {
	switch e.Status {
	case outcome.StatusSuccess:
		pterm.Success.Printfln("%s: %s", e.Subject, e.Message)
	case outcome.StatusFailed:
		pterm.Error.Printfln("%s: %s", e.Subject, e.Message)
	default:
		pterm.Info.Println(e.Message)
	}
}
