package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apply-app/apply-api/internal/client"
	"github.com/apply-app/apply-api/internal/config"
	"github.com/apply-app/apply-api/internal/observability"
	"github.com/apply-app/apply-api/internal/server"
)

var (
	submitURL    string
	submitAPI    string
	submitToken  string
	submitUser   string
	submitDetach bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a job posting to a running API server",
	Long: `Post a URL to /api/jobs/analyze and follow the run until it finishes.
Without --token, a token for --user is signed with JWT_SECRET.`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitURL, "url", "", "Job posting URL (required)")
	submitCmd.Flags().StringVar(&submitAPI, "api", "http://localhost:8080", "API base URL")
	submitCmd.Flags().StringVar(&submitToken, "token", "", "Bearer token (default: signed locally with JWT_SECRET)")
	submitCmd.Flags().StringVar(&submitUser, "user", "", "User ID for a locally signed token (default: a new random ID)")
	submitCmd.Flags().BoolVar(&submitDetach, "detach", false, "Print the run ID and return without waiting")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	if submitURL == "" {
		return fmt.Errorf("--url is required")
	}
	token, err := resolveToken(submitToken, submitUser)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	c := client.New(submitAPI, token)

	runID, err := c.Analyze(ctx, submitURL)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Run %s queued\n", runID)
	if submitDetach {
		return nil
	}

	printer := observability.NewPrinter(out)
	status, err := c.WaitForRun(ctx, runID, printer.PrintProgress)
	if err != nil {
		return err
	}

	switch {
	case status.Output != nil:
		printer.PrintResult(status.Output)
		return nil
	case status.Error != nil:
		return fmt.Errorf("analysis %s: %s", status.Status, *status.Error)
	default:
		return fmt.Errorf("analysis %s", status.Status)
	}
}

// resolveToken returns token when set, otherwise signs one for user.
func resolveToken(token, user string) (string, error) {
	if token != "" {
		return token, nil
	}
	userID, err := parseUserID(user)
	if err != nil {
		return "", err
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return "", fmt.Errorf("--token not set and cannot sign one: %w", err)
	}
	return server.NewJWTService(jwtCfg).GenerateToken(userID)
}
