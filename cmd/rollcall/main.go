package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/buckleypaul/rollcall/cmd/rollcall/commands"
	"github.com/buckleypaul/rollcall/internal/app"
	"github.com/buckleypaul/rollcall/internal/errors"
	"github.com/buckleypaul/rollcall/internal/logger"
	"github.com/buckleypaul/rollcall/internal/outcome"
	"github.com/buckleypaul/rollcall/internal/pages"
	"github.com/buckleypaul/rollcall/internal/serial"
)

var rootCmd = &cobra.Command{
	Use:   "rollcall",
	Short: "Mark attendance for a group of stored sessions",
	Long: `rollcall submits one attendance ID on behalf of every stored user,
one request at a time.

Run without a command to open the terminal UI, where IDs can be typed or
read from a serial 2D-code scanner.

Commands:
  run      - Mark an attendance ID for every stored user
  add      - Add a user by session token
  import   - Import users from a JSON array
  list     - List stored users
  remove   - Remove a stored user
  export   - Print stored users as JSON
  history  - Show past runs

Examples:
  rollcall                         # Open the terminal UI
  rollcall import users.json       # Load users
  rollcall run 6650b1f2c3          # Mark attendance headless`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return commands.InitLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context())
	},
}

func init() {
	commands.BindFlags(rootCmd)

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.AddCmd)
	rootCmd.AddCommand(commands.ImportCmd)
	rootCmd.AddCommand(commands.ListCmd)
	rootCmd.AddCommand(commands.RemoveCmd)
	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
}

func runTUI(ctx context.Context) error {
	env, err := commands.Open()
	if err != nil {
		return err
	}
	log := logger.ComponentLogger("tui")
	log.Infow("starting", logger.FieldPath, env.DataDir, logger.FieldCount, env.Store.Len())

	runner := env.Runner(env.Client())
	entries := outcome.NewLog(env.Config.LogCapacity)
	scanner := serial.NewScanner()
	defer scanner.Disconnect()

	cfg := &env.Config
	pageMap := map[app.PageID]app.Page{
		app.RunPage:         pages.NewRunPage(ctx, runner, env.Store, entries, cfg),
		app.CredentialsPage: pages.NewCredentialsPage(env.Store),
		app.ScannerPage:     pages.NewScannerPage(scanner, cfg),
		app.HistoryPage:     pages.NewHistoryPage(env.Store),
		app.SettingsPage:    pages.NewSettingsPage(cfg, env.DataDir, runner),
	}

	model := app.New(pageMap, cfg, env.Store, env.DataDir)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Cleanup()

	if err != nil {
		pterm.Error.Println(err)
		if hint := errors.FlattenHints(err); hint != "" {
			pterm.Info.Println(hint)
		}
		os.Exit(1)
	}
}
