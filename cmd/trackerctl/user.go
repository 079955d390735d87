package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"trackersync/internal/api"
	"trackersync/pkg/models"
)

func userCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user [type] [id]",
		Short: "Resolve a user the way trackers do",
		Long: `Resolve a user through the API and show the flags trackers decide on.

Examples:
  trackerctl user regular_user 9
  trackerctl user manager 7 -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := models.ParseUserType(args[0]); err != nil {
				return err
			}

			var u api.UserResponse
			if err := getJSON(fmt.Sprintf("%s/users/%s/%s", apiURL, url.PathEscape(args[0]), url.PathEscape(args[1])), &u); err != nil {
				return err
			}

			if outputFmt == "json" {
				return writeJSON(cmd.OutOrStdout(), u)
			}
			t := table{header: []string{"ID", "TYPE", "NAME", "EMAIL", "TEST", "REGULAR", "MANAGED"}}
			t.add(u.ID, u.Type, u.FullName(), u.Email, u.TestAccount, u.RegularUser, u.Managed)
			return writeTable(cmd.OutOrStdout(), t, outputFmt)
		},
	}
}
