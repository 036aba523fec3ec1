package cli

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/veritas-mfg/tobacco-aps/internal/config"
	"github.com/veritas-mfg/tobacco-aps/internal/db"
)

// NewMigrateCommand applies every pending SQL migration under the
// configured migrations directory.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			database, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer database.Close()

			if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			cmd.Println("migrations completed successfully")
			return nil
		},
	}
}
