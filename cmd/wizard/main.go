package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"lawly.io/sow-wizard/internal/client"
	"lawly.io/sow-wizard/internal/config"
	"lawly.io/sow-wizard/internal/logging"
	"lawly.io/sow-wizard/internal/tui"
	"lawly.io/sow-wizard/internal/wizard"
)

var (
	apiURL   string
	token    string
	logFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:          "wizard",
	Short:        "Answer the SOW questionnaire in the terminal",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if token == "" {
			return errors.New("no token: set SOW_TOKEN or pass --token (see `server token`)")
		}

		// The terminal belongs to the UI, so logs go to a file.
		logger, err := logging.NewFile(logLevel, logFile)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Sync()

		api := client.New(apiURL, token)
		model := tui.New(wizard.New(api), api, logger)

		final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
		if err != nil {
			return fmt.Errorf("wizard UI failed: %w", err)
		}
		if m, ok := final.(tui.Model); ok {
			if text := m.CopyText(); text != "" {
				fmt.Fprintln(cmd.OutOrStdout(), text)
				logger.Info("Wizard completed", zap.Int("bytes", len(text)))
			}
		}
		return nil
	},
}

func main() {
	config.LoadDotEnv()

	rootCmd.Flags().StringVar(&apiURL, "api", envOr("SOW_API_URL", "http://localhost:8080"), "API base URL")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("SOW_TOKEN"), "bearer token")
	rootCmd.Flags().StringVar(&logFile, "log-file", "wizard.log", "where to write logs")
	rootCmd.Flags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "INFO"), "log level")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
