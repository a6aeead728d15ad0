package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/papapizza/internal/cart"
	"github.com/roach88/papapizza/internal/render"
	"github.com/roach88/papapizza/internal/reconciler"
)

// NewCartCommand creates the cart command and its subcommands.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the current order",
	}
	cmd.AddCommand(newCartShowCommand(rootOpts))
	cmd.AddCommand(newCartChangeCommand(rootOpts, "add", 1))
	cmd.AddCommand(newCartChangeCommand(rootOpts, "remove", -1))
	cmd.AddCommand(newCartClearCommand(rootOpts))
	return cmd
}

func newCartShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the order summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.client()
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), api)
			if err != nil {
				return err
			}
			defer s.Close()

			return printCart(opts.formatter(cmd), s.engine.Snapshot(), nil)
		},
	}
}

// newCartChangeCommand builds "cart add" (step 1) and "cart remove" (step -1).
func newCartChangeCommand(opts *RootOptions, name string, step int) *cobra.Command {
	short := "Add pizzas to the order"
	if step < 0 {
		short = "Remove pizzas from the order"
	}
	return &cobra.Command{
		Use:   name + " <item> [count]",
		Short: short,
		Long: short + `.

Each pizza is one change of ±1; quantities stay between 0 and 9. Every
change is confirmed by the order API before the next is made, and the
confirmed order is printed. A change the API rejects is rolled back.

Examples:
  papapizza cart ` + name + ` margherita
  papapizza cart ` + name + ` pepperoni 2`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 1
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 1 {
					return NewExitError(ExitCommandError, fmt.Sprintf("count must be a positive integer, got %q", args[1]))
				}
				count = n
			}

			api, err := opts.client()
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), api)
			if err != nil {
				return err
			}
			defer s.Close()

			// One change at a time: concurrent upserts may reach the API out
			// of order, leaving it with a quantity other than the one shown.
			mark := len(s.Notices())
			for i := 0; i < count; i++ {
				if err := s.engine.ApplyDelta(args[0], step); err != nil {
					return WrapExitError(ExitFailure, "cannot change "+args[0], err)
				}
				if err := s.engine.Settle(cmd.Context()); err != nil {
					return WrapExitError(ExitFailure, "cart update interrupted", err)
				}
			}

			state := s.engine.Snapshot()
			notices := s.Notices()[mark:]
			out := opts.formatter(cmd)
			if err := s.failure(mark, cartView{Cart: state, Notices: notices}); err != nil {
				// Show the rolled-back order before reporting the failure.
				if out.Format != "json" {
					_ = render.OrderSummary(out.Writer, state)
				}
				return err
			}
			return printCart(out, state, notices)
		},
	}
}

func newCartClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the current order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := opts.client()
			if err != nil {
				return err
			}
			o, err := api.ClearOrder(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to clear order", err)
			}
			return printCart(opts.formatter(cmd), cart.FromOrder(o), nil)
		},
	}
}

func printCart(out *OutputFormatter, state cart.State, notices []reconciler.Notice) error {
	return out.Success(cartView{Cart: state, Notices: notices}, func(w io.Writer) error {
		return render.OrderSummary(w, state)
	})
}
