package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trackersync/pkg/middleware"
	"trackersync/pkg/models"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func trackCmd() *cobra.Command {
	var (
		userID        int64
		userType      string
		firstName     string
		lastName      string
		props         []string
		correlationID string
	)

	cmd := &cobra.Command{
		Use:   "track [event]",
		Short: "Publish a track event through the API",
		Long: `Publish a track event for a user through POST /track.

Examples:
  # Track a lesson completion for regular user 5
  trackerctl track lesson.completed --user-id 5 --user-type regular_user -p lesson=12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := models.ParseUserType(userType)
			if err != nil {
				return err
			}
			properties, err := parseProperties(props)
			if err != nil {
				return err
			}

			req := models.TrackRequest{
				Event:      args[0],
				User:       models.EventTrackUser{ID: userID, FirstName: firstName, LastName: lastName, Type: t},
				Properties: properties,
			}
			var resp models.TrackResponse
			if err := postJSON(apiURL+"/track", req, correlationID, &resp); err != nil {
				return err
			}

			if outputFmt == "json" {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accepted event_id=%s correlation_id=%s\n", resp.EventID, resp.CorrelationID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "User ID")
	cmd.Flags().StringVar(&userType, "user-type", string(models.UserTypeRegular), "User type: regular_user, manager, account_manager")
	cmd.Flags().StringVar(&firstName, "first-name", "", "User first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "User last name")
	cmd.Flags().StringArrayVarP(&props, "prop", "p", nil, "Event property as key=value (repeatable)")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "Correlation ID to send")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

// parseProperties turns key=value pairs into a map. Numbers and booleans keep
// their type.
func parseProperties(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid property %q, expected key=value", p)
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = n
		} else if b, err := strconv.ParseBool(v); err == nil {
			out[k] = b
		} else {
			out[k] = v
		}
	}
	return out, nil
}

func postJSON(url string, body any, correlationID string, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if correlationID != "" {
		req.Header.Set(middleware.CorrelationIDHeader, correlationID)
	}
	return doJSON(req, out)
}

func getJSON(url string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return doJSON(req, out)
}

func doJSON(req *http.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	return json.Unmarshal(body, out)
}
