package cli

import (
	"pixstore/internal/database"
	"pixstore/internal/repositories"
	"pixstore/internal/services"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newMigrateCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and seed the default catalog",
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, logCloser, err := load()
			if err != nil {
				return err
			}
			defer logCloser.Close()

			ctx := background(cmd)
			db, err := database.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, database.Close(db)) }()

			if err := database.Migrate(db); err != nil {
				return err
			}
			log.Info().Str("driver", cfg.Database.Driver).Msg("schema migrated")

			if !cfg.Catalog.Seed {
				return nil
			}
			added, err := services.NewProductService(repositories.NewGORMProductRepository(db)).SeedCatalog(ctx, services.DefaultCatalog)
			if err != nil {
				return err
			}
			log.Info().Int("added", added).Msg("catalog seeded")
			return nil
		},
	}
}
