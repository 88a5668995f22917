package cli

import (
	"fmt"

	"pixstore/internal/database"
	"pixstore/internal/repositories"
	"pixstore/internal/services"
	"pixstore/pkg/rabbitmq"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newSweepCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire abandoned orders and redrive stuck fulfillments once",
		Long: `sweep runs a single expiry and redrive pass. Redrive needs rabbitmq.url: the
in-process dispatcher only exists inside a running server.`,
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

			sweepCfg := services.SweeperConfig{PendingTTL: cfg.Orders.PendingTTL}
			var queue services.FulfillmentQueue
			if cfg.RabbitMQ.URL != "" {
				client, cerr := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue})
				if cerr != nil {
					return cerr
				}
				defer func() { err = multierr.Append(err, client.Close()) }()
				queue = client
				sweepCfg.RedriveAfter = cfg.Fulfillment.RedriveAfter
			}

			sweeper := services.NewSweeper(repositories.NewGORMOrderLedger(db), queue, sweepCfg, nil, nil)
			res, err := sweeper.RunOnce(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "expired=%d redriven=%d\n", res.Expired, res.Redriven)
			return err
		},
	}
}
