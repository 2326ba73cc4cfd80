package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/t77yq/txservice/internal/quote"
)

func newPriceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "price [ewt|xdc|<url>]",
		Short: "Fetch a spot price in USD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			client := quote.NewClient(logger,
				quote.WithTimeout(cfg.Quote.Timeout),
				quote.WithEndpoints(quote.Endpoints{EWT: cfg.Quote.EWTURL, XDC: cfg.Quote.XDCURL}))

			var price float64
			switch strings.ToLower(args[0]) {
			case "ewt":
				price, err = client.FetchEWTPrice(cmd.Context())
			case "xdc":
				price, err = client.FetchXDCPrice(cmd.Context())
			default:
				price, err = client.FetchPrice(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), price)
			return nil
		},
	}
}
