// Package cli defines the command trees for the calendar and tasks
// binaries. Commands stay thin: they parse flags, then delegate to the
// calendar manager, the loader, the aggregator, and the exporters.
package cli

import (
	"log/slog"

	"plandash/internal/config"
	"plandash/internal/infrastructure"
)

// App holds the shared dependencies CLI commands run against.
type App struct {
	Config *config.Config
	Logger *slog.Logger
}

// SetupLogger builds the shared logger once flags are parsed, so
// --verbose can lower the level before the handler exists. A logger
// injected up front (tests) is kept as is.
func (a *App) SetupLogger(verbose bool) error {
	if verbose {
		a.Config.Logging.Level = "debug"
	}
	if a.Logger == nil {
		logger, err := infrastructure.InitializeLogger(a.Config.Logging)
		if err != nil {
			return err
		}
		a.Logger = logger
	}
	if verbose {
		a.Logger.Debug("verbose logging enabled")
	}
	return nil
}
