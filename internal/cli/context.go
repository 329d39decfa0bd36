// Package cli provides the command-line interface for the ratescrape application.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/travelsaas/ratescrape/internal/app"
)

// SetApp stores the Application for the running command.
func SetApp(cmd *cobra.Command, a *app.Application) {
	if cmd == nil {
		return
	}
	globalApp = a
}

// GetApp retrieves the Application initialized for the running command.
func GetApp() *app.Application {
	return globalApp
}

// Cobra commands are package-level values, so the application is too.
var globalApp *app.Application
