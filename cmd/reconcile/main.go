package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/infrastructure/config"
	"github.com/nichesite/directory/internal/infrastructure/database"
	"github.com/nichesite/directory/internal/infrastructure/logging"
	"github.com/nichesite/directory/internal/infrastructure/messaging"
	"github.com/nichesite/directory/internal/repositories/relational"
	"github.com/nichesite/directory/internal/services"
)

var envFlag string

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rebuild company-heading relationships from company records",
	Long: `Scans every published company record and writes one relationship row per
linked heading. Existing rankings are preserved. Intended for one-off runs
after bulk imports or from a scheduler.`,
	Args:         cobra.NoArgs,
	RunE:         runReconcile,
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		os.Exit(1)
	}
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if err := config.InitConfig(envFlag); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	publisher := messaging.NewPublisher(cfg.Messaging, logger)
	defer publisher.Close()

	service := services.NewRelationshipService(services.RelationshipServiceConfig{
		Relationships: relational.NewSQLRelationshipRepository(db),
		Records:       relational.NewSQLRecordRepository(db),
		Publisher:     publisher,
		Logger:        logger,
	})

	logger.Info("starting reconciliation",
		zap.String("env", envFlag),
		zap.String("database", cfg.Database.Redacted()),
	)

	result, err := service.Reconcile(cmd.Context())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
