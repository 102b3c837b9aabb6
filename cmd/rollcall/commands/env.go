package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/buckleypaul/rollcall/internal/attendance"
	"github.com/buckleypaul/rollcall/internal/batch"
	"github.com/buckleypaul/rollcall/internal/config"
	"github.com/buckleypaul/rollcall/internal/errors"
	"github.com/buckleypaul/rollcall/internal/logger"
	"github.com/buckleypaul/rollcall/internal/store"
)

// Flags are the persistent flags shared by every command.
type Flags struct {
	DataDir  string
	LogFile  string
	JSONLogs bool
	Debug    bool
}

// Global holds the parsed persistent flags.
var Global Flags

// BindFlags registers the persistent flags on root.
func BindFlags(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.StringVar(&Global.DataDir, "data-dir", config.DefaultDataDir(), "Directory holding users, run history and config")
	pf.StringVar(&Global.LogFile, "log-file", "", "Log file (default <data-dir>/rollcall.log)")
	pf.BoolVar(&Global.JSONLogs, "json-logs", false, "Write logs as JSON")
	pf.BoolVar(&Global.Debug, "debug", false, "Enable debug logging")
}

// InitLogger starts the process logger from Global.
func InitLogger() error {
	file := Global.LogFile
	if file == "" {
		file = filepath.Join(Global.DataDir, "rollcall.log")
	}
	if err := logger.Initialize(logger.Options{File: file, JSON: Global.JSONLogs, Debug: Global.Debug}); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	return nil
}

// Env is everything a command needs to do work.
type Env struct {
	DataDir string
	Config  config.Config
	Store   *store.Store
}

// Open loads config and the credential store from the data directory.
func Open() (*Env, error) {
	cfg := config.Load(Global.DataDir)
	st := store.New(Global.DataDir)
	if err := st.Load(); err != nil {
		return nil, errors.Wrap(err, "failed to load users")
	}
	return &Env{DataDir: Global.DataDir, Config: cfg, Store: st}, nil
}

// Client builds the attendance client from config.
func (e *Env) Client() *attendance.Client {
	return attendance.NewClient(attendance.Options{
		Endpoint:  e.Config.Endpoint,
		Origin:    e.Config.Origin,
		Referer:   e.Config.Referer,
		UserAgent: e.Config.UserAgent,
	})
}

// Runner builds a batch runner that submits through sub.
func (e *Env) Runner(sub batch.Submitter) *batch.Runner {
	return batch.NewRunner(sub, batch.Options{
		Pace:        e.Config.Pace(),
		AutoExecute: e.Config.AutoExecute,
	})
}
