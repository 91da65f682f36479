package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"lawly.io/sow-wizard/internal/auth"
	"lawly.io/sow-wizard/internal/config"
	"lawly.io/sow-wizard/internal/core"
	"lawly.io/sow-wizard/internal/logging"
	"lawly.io/sow-wizard/internal/store"
)

var (
	cfg    *config.Config
	logger *zap.Logger

	seedFile   string
	tokenUser  string
	tokenEmail string
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "SOW wizard API server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the question catalog with the contents of a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer dbStore.Close()

		n, err := dbStore.IngestQuestionsFromFile(cmd.Context(), seedFile)
		if err != nil {
			return fmt.Errorf("catalog seeding failed: %w", err)
		}
		logger.Info("Catalog seeded", zap.String("file", seedFile), zap.Int("questions", n))
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign in a local user and print a bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer dbStore.Close()

		authService := core.NewAuthService(dbStore, auth.NewTokens(cfg.JWTSecret), cfg.SessionTTL, logger)
		signIn, err := authService.SignIn(cmd.Context(), tokenUser, tokenEmail)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signIn.Token)
		logger.Info("Token issued",
			zap.String("user_id", signIn.User.ID),
			zap.Time("expires_at", signIn.ExpiresAt))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "questions.yaml", "YAML catalog to load")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "external user id, e.g. local:alice")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email to record for the user")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, seedCmd, tokenCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if logger != nil {
			logger.Error("Command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
