package commands

import "io"

type (
	AppConfig = appConfig
)

// SetArgs sets the arguments of the root command.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// SetOut sets where command output, as the run summary, is written.
func (a *App) SetOut(w io.Writer) {
	a.cmd.SetOut(w)
}

// Config returns the configuration of the app.
func (a *App) Config() AppConfig {
	return a.config
}

// Ready returns a channel closed once push watches for changes.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}
