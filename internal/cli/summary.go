package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/papapizza/internal/render"
)

// SummaryOptions holds flags for the summary command.
type SummaryOptions struct {
	*RootOptions
	Orders bool // list every order instead of the totals
	Daily  bool // group by day
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SummaryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print sales totals",
		Long: `Print sales totals from the order API.

Examples:
  papapizza summary
  papapizza summary --orders
  papapizza summary --daily --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Orders, "orders", false, "list every placed order")
	cmd.Flags().BoolVar(&opts.Daily, "daily", false, "totals per day")
	cmd.MarkFlagsMutuallyExclusive("orders", "daily")

	return cmd
}

func runSummary(opts *SummaryOptions, cmd *cobra.Command) error {
	api, err := opts.client()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	switch {
	case opts.Orders:
		orders, err := api.FetchOrders(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to fetch orders", err)
		}
		return out.Success(orders, func(w io.Writer) error { return render.Orders(w, orders) })
	case opts.Daily:
		days, err := api.FetchDailySummary(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to fetch daily summary", err)
		}
		return out.Success(days, func(w io.Writer) error { return render.Daily(w, days) })
	}

	sum, err := api.FetchSummary(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fetch summary", err)
	}
	return out.Success(sum, func(w io.Writer) error { return render.SalesSummary(w, sum) })
}
