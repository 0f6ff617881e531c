// Package commands is the docsync command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ubuntu/docsync/internal/cli"
	"github.com/ubuntu/docsync/internal/constants"
	"github.com/ubuntu/docsync/internal/summary"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	ctx     context.Context
	cancel  context.CancelFunc
	ready   chan struct{}
	logFile io.Closer
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int    `mapstructure:"verbose"`
	JSONLogs  bool   `mapstructure:"json-logs"`
	LogFile   string `mapstructure:"log-file"`

	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`

	Push pushConfig `mapstructure:",squash"`
}

// pushConfig holds the configuration of the push command.
type pushConfig struct {
	Delay       time.Duration  `mapstructure:"delay"`
	Workers     int            `mapstructure:"workers"`
	DryRun      bool           `mapstructure:"dry-run"`
	Watch       bool           `mapstructure:"watch"`
	CheckServer bool           `mapstructure:"check-server"`
	Format      summary.Format `mapstructure:"format"`
	SummaryFile string         `mapstructure:"summary-file"`
	MetricsFile string         `mapstructure:"metrics-file"`
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.cmd = &cobra.Command{
		Use:   constants.CmdName + " COMMAND",
		Short: "Synchronize document files with a CouchDB database",
		Long: `Synchronize document files with a CouchDB compatible database.

Document files are JSON (.json, .js) or Python-style literals (.py) holding
either one document, created if absent, or a list of documents written
together in a single batch.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs, os.Stderr) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, cmd, a.viper); err != nil {
				return err
			}
			if err := cli.Unmarshal(a.viper, &a.config, formatHook); err != nil {
				return err
			}
			a.setLogging()
			slog.Debug("got app config", "config", a.config)

			// Configuration is valid. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			return nil
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootFlags(&a)
	cli.InstallConfigFlag(a.cmd)
	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	if err := installPushCmd(&a); err != nil {
		return nil, err
	}
	a.installVersion()

	return &a, nil
}

func installRootFlags(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")
	cmd.PersistentFlags().StringVar(&app.config.LogFile, "log-file", "", "write logs to a rotated file instead of the standard error")

	cmd.PersistentFlags().StringVarP(&app.config.Host, "host", "n", constants.DefaultHost, "document store host")
	cmd.PersistentFlags().IntVarP(&app.config.Port, "port", "p", constants.DefaultPort, "document store port")
	cmd.PersistentFlags().DurationVar(&app.config.Timeout, "timeout", constants.DefaultResponseTimeout, "time to wait for the document store to answer a request, 0 to wait forever")

	if err := cmd.MarkPersistentFlagFilename("log-file"); err != nil {
		panic(fmt.Sprintf("failed to mark log-file flag as filename: %v", err))
	}
}

// setLogging redirects logs to the log file, if any, once the configuration is loaded.
func (a *App) setLogging() {
	if a.config.LogFile == "" {
		cli.SetSlog(a.config.Verbosity, a.config.JSONLogs, os.Stderr)
		return
	}

	f := cli.NewLogFile(a.config.LogFile)
	a.logFile = f
	cli.SetSlog(a.config.Verbosity, a.config.JSONLogs, f)
}

// formatHook validates summary formats while decoding the configuration.
func formatHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(summary.Format("")) || from.Kind() != reflect.String {
		return data, nil
	}
	return summary.ParseFormat(reflect.ValueOf(data).String())
}

// Run executes the command and associated process, returning an error if any.
func (a *App) Run() error {
	defer a.closeLogFile()
	return a.cmd.Execute()
}

func (a *App) closeLogFile() {
	if a.logFile == nil {
		return
	}
	// Later logs go back to the standard error.
	cli.SetSlog(a.config.Verbosity, a.config.JSONLogs, os.Stderr)
	if err := a.logFile.Close(); err != nil {
		slog.Warn("Failed to close log file", "error", err)
	}
	a.logFile = nil
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces to the error output, away from the run summary,
// and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	fmt.Fprintf(a.cmd.ErrOrStderr(), "%s", buf[:n])
	return false
}

// Quit interrupts the running command: the current run stops before its next document,
// and watching stops.
func (a *App) Quit() {
	a.cancel()
}

// WaitReady waits for the push command to watch for changes.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}
