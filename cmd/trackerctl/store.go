package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"trackersync/pkg/postgres"
)

func withDB(fn func(ctx context.Context, db *sql.DB) error) error {
	db, err := openDB(databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return fn(ctx, db)
}

func crmLogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "crm-log",
		Short: "Show recent CRM sync log rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, db *sql.DB) error {
				rows, err := db.QueryContext(ctx,
					`SELECT event_id, event_name, user_id, user_type, user_email, synced_at
					 FROM crm_sync_log ORDER BY synced_at DESC LIMIT $1`, limit)
				if err != nil {
					return fmt.Errorf("query crm_sync_log: %w", err)
				}
				defer rows.Close()

				t := table{header: []string{"EVENT_ID", "EVENT", "USER_ID", "USER_TYPE", "EMAIL", "SYNCED_AT"}}
				for rows.Next() {
					var eventID, event, userType string
					var email sql.NullString
					var userID int64
					var syncedAt time.Time
					if err := rows.Scan(&eventID, &event, &userID, &userType, &email, &syncedAt); err != nil {
						return err
					}
					t.add(eventID, event, userID, userType, email.String, syncedAt.Format(time.RFC3339))
				}
				if err := rows.Err(); err != nil {
					return err
				}
				return writeTable(cmd.OutOrStdout(), t, outputFmt)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of rows")
	return cmd
}

func metricsCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show daily analytics counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if date != "" {
				if _, err := time.Parse("2006-01-02", date); err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
				}
			}
			return withDB(func(ctx context.Context, db *sql.DB) error {
				query := `SELECT metric_date, event_name, user_type, event_count FROM analytics_metrics`
				var args []any
				if date != "" {
					query += ` WHERE metric_date = $1`
					args = append(args, date)
				}
				query += ` ORDER BY metric_date DESC, event_name, user_type`

				rows, err := db.QueryContext(ctx, query, args...)
				if err != nil {
					return fmt.Errorf("query analytics_metrics: %w", err)
				}
				defer rows.Close()

				t := table{header: []string{"DATE", "EVENT", "USER_TYPE", "COUNT"}}
				for rows.Next() {
					var day time.Time
					var event, userType string
					var count int
					if err := rows.Scan(&day, &event, &userType, &count); err != nil {
						return err
					}
					t.add(day.Format("2006-01-02"), event, userType, count)
				}
				if err := rows.Err(); err != nil {
					return err
				}
				return writeTable(cmd.OutOrStdout(), t, outputFmt)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Only show this day (YYYY-MM-DD)")
	return cmd
}

func manageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manage [regular-user-id] [account-manager-id]",
		Short: "Put a regular user under account management",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			managerID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withDB(func(ctx context.Context, db *sql.DB) error {
				if err := postgres.NewUserRepository(db).AssignManager(ctx, userID, managerID, time.Now()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%suser %d is managed by %d%s\n", Green, userID, managerID, Reset)
				return nil
			})
		},
	}
}

func unmanageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unmanage [regular-user-id]",
		Short: "End account management of a regular user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDB(func(ctx context.Context, db *sql.DB) error {
				if err := postgres.NewUserRepository(db).EndManagement(ctx, userID, time.Now()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%suser %d is no longer managed%s\n", Green, userID, Reset)
				return nil
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
