package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the API and database",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := false

			resp, err := httpClient.Get(apiURL + "/health")
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					err = fmt.Errorf("status %d", resp.StatusCode)
				}
			}
			failed = report(cmd, "api", err) || failed

			err = func() error {
				db, err := openDB(databaseURL)
				if err != nil {
					return err
				}
				defer db.Close()
				return db.PingContext(cmd.Context())
			}()
			failed = report(cmd, "postgres", err) || failed

			if failed {
				return fmt.Errorf("unhealthy")
			}
			fmt.Fprintf(out, "%sall checks passed%s\n", Bold, Reset)
			return nil
		},
	}
}

func report(cmd *cobra.Command, name string, err error) bool {
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s[-]%s %-10s %s%v%s\n", Red, Reset, name, Red, err, Reset)
		return true
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  %s[+]%s %-10s %sok%s\n", Green, Reset, name, Green, Reset)
	return false
}
