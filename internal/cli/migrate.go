package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SscSPs/geexpress_backend/internal/platform/config"
	"github.com/SscSPs/geexpress_backend/pkg/database"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert database migrations",
	}
	cmd.AddCommand(migrateDirectionCmd(database.MigrateUp, "Apply every pending migration"))
	cmd.AddCommand(migrateDirectionCmd(database.MigrateDown, "Revert the most recent migration"))
	return cmd
}

func migrateDirectionCmd(direction database.MigrationDirection, short string) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   string(direction),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.MigrationsPath
			}

			changed, err := database.Migrate(cfg.DatabaseURL, path, direction)
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: %s\n", direction, color.New(color.FgGreen).Sprint("applied"))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: %s\n", direction, color.New(color.FgYellow).Sprint("no change"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "migrations source URL (defaults to MIGRATIONS_PATH)")
	return cmd
}
