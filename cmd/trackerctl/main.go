// trackerctl is an operator CLI for the trackersync services.
//
// Usage:
//
//	trackerctl track lesson.completed --user-id 5 --user-type regular_user -p lesson=12
//	trackerctl user manager 7
//	trackerctl crm-log --limit 50
//	trackerctl metrics --date 2024-05-01
//	trackerctl manage 9 3
//	trackerctl health
package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"trackersync/pkg/config"
)

var (
	version     = "dev"
	outputFmt   string
	apiURL      string
	databaseURL string
)

// openDB is swapped in tests.
var openDB = func(url string) (*sql.DB, error) {
	return sql.Open("postgres", url)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := config.Config{}
	if cfg, err := config.Load(); err == nil {
		defaults = *cfg
	}

	rootCmd := &cobra.Command{
		Use:   "trackerctl",
		Short: "Send and inspect tracked events",
		Long: `trackerctl talks to the trackersync API and database.

It publishes test events, resolves users the way trackers do and shows
what the CRM and analytics trackers recorded.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaults.APIURL, "Base URL of the API service")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", defaults.DatabaseURL, "PostgreSQL URL of the tracker database")

	rootCmd.AddCommand(trackCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(crmLogCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(manageCmd())
	rootCmd.AddCommand(unmanageCmd())
	rootCmd.AddCommand(healthCmd())

	return rootCmd
}
