package cli

import (
	"fmt"

	"pixstore/pkg/pix"

	"github.com/spf13/cobra"
)

func newPayloadCommand() *cobra.Command {
	var p pix.Payload

	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Print a BR Code payload for the given key, amount and txid",
		Example: `  pixstore payload --key chave@example.com --amount 150050 --txid abc123
  pixstore payload --key +5511999999999 --amount 0 --txid open --name "Loja" --city "Recife"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := pix.Build(p)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), payload)
			return err
		},
	}
	cmd.Flags().StringVar(&p.Key, "key", "", "Pix key of the receiving account")
	cmd.Flags().Int64Var(&p.AmountCents, "amount", 0, "amount in cents; 0 leaves the amount open")
	cmd.Flags().StringVar(&p.TxID, "txid", "", "transaction id, 1-25 alphanumeric characters")
	cmd.Flags().StringVar(&p.MerchantName, "name", "ProxyBat", "merchant name")
	cmd.Flags().StringVar(&p.MerchantCity, "city", "SAO PAULO", "merchant city")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("txid")
	return cmd
}
