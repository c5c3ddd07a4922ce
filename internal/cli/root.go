// Package cli implements geexpressctl, the operator command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/core/services"
	"github.com/SscSPs/geexpress_backend/internal/platform/config"
	"github.com/SscSPs/geexpress_backend/internal/repositories/database/pgsql"
	"github.com/SscSPs/geexpress_backend/pkg/database"
)

// RootCmd returns the geexpressctl command tree.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "geexpressctl",
		Short: "Operator tooling for the GE Express backend",
		Long: `geexpressctl runs maintenance tasks against the GE Express database:
schema migrations, admin bootstrap, debt balance audits and tracking numbers.
Configuration is read from the same environment as the server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(AdminCmd())
	rootCmd.AddCommand(DebtsCmd())
	rootCmd.AddCommand(TrackingCmd())

	return rootCmd
}

// backend is the service layer opened against the configured database.
type backend struct {
	cfg      *config.Config
	services *portssvc.ServiceContainer
	close    func()
}

func openBackend(ctx context.Context) (*backend, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, true)
	if err != nil {
		return nil, err
	}
	// CLI commands log service activity to stderr so stdout stays scriptable
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	repos := pgsql.NewRepositoryProvider(pool)
	return &backend{
		cfg:      cfg,
		services: services.NewServiceContainer(cfg, repos, nil, nil),
		close:    pool.Close,
	}, nil
}
