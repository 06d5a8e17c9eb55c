package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nichesite/directory/internal/infrastructure/config"
	"github.com/nichesite/directory/internal/infrastructure/database"
	"github.com/nichesite/directory/internal/infrastructure/logging"
)

var (
	envFlag string
	db      *database.DB
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tool for the NicheSite directory",
	Long: `Database migration tool for the NicheSite directory.
Manages the relationship table and record store schema using golang-migrate.
Migrations are embedded in the binary; the dialect follows DB_DRIVER.`,
	PersistentPreRunE: setupDatabase,
	PersistentPostRun: closeDatabase,
	SilenceUsage:      true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runUp,
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Rollback migrations",
	Long:  `Rollback the specified number of migrations (default: 1).`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDown,
}

var gotoCmd = &cobra.Command{
	Use:   "goto <version>",
	Short: "Migrate to a specific version",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoto,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current migration version",
	RunE:  runVersion,
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force set migration version (use with caution)",
	Long:  `Force set the migration version without running migrations. Use with caution.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runForce,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(gotoCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(forceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("migration command failed", zap.Error(err))
		os.Exit(1)
	}
}

func setupDatabase(cmd *cobra.Command, args []string) error {
	if err := config.InitConfig(envFlag); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err = logging.New(cfg.Log)
	if err != nil {
		return err
	}

	db, err = database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("connected to database",
		zap.String("env", envFlag),
		zap.String("database", cfg.Database.Redacted()),
	)
	return nil
}

func closeDatabase(cmd *cobra.Command, args []string) {
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}
	_ = logger.Sync()
}

func runUp(cmd *cobra.Command, args []string) error {
	m, err := db.NewMigrator()
	if err != nil {
		return err
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	logger.Info("migration up completed")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	steps := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid steps %q", args[0])
		}
		steps = n
	}

	m, err := db.NewMigrator()
	if err != nil {
		return err
	}

	err = m.Steps(-steps)
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to rollback")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}

	logger.Info("migration down completed", zap.Int("steps", steps))
	return nil
}

func runGoto(cmd *cobra.Command, args []string) error {
	version, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid version %q", args[0])
	}

	m, err := db.NewMigrator()
	if err != nil {
		return err
	}

	err = m.Migrate(uint(version))
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("already at version", zap.Uint64("version", version))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration goto failed: %w", err)
	}

	logger.Info("migration goto completed", zap.Uint64("version", version))
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	m, err := db.NewMigrator()
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(cmd.OutOrStdout(), "Current version: no migrations applied yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d (dirty - migration may have failed)\n", version)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d\n", version)
	}
	return nil
}

func runForce(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q", args[0])
	}

	m, err := db.NewMigrator()
	if err != nil {
		return err
	}

	if err := m.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}

	logger.Info("migration forced", zap.Int("version", version))
	return nil
}
