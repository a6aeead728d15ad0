package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/papapizza/internal/reconciler"
)

// SubmitResult is the JSON payload of a successful submit.
type SubmitResult struct {
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Place the current order",
		Long: `Place the current order.

Exit codes:
  0 - Order placed
  1 - The cart is empty or the order API refused the order
  2 - Command error`,
		Args: cobra.NoArgs,
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

			mark := len(s.Notices())
			if err := s.engine.SubmitOrder(); err != nil {
				return WrapExitError(ExitFailure, "cannot submit", err)
			}
			if err := s.engine.Settle(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "submit interrupted", err)
			}
			if err := s.failure(mark, nil); err != nil {
				return err
			}

			for _, n := range s.Notices()[mark:] {
				if n.Kind == reconciler.NoticeConfirmed {
					res := SubmitResult{OrderID: n.OrderID, Message: n.Message}
					return opts.formatter(cmd).Success(res, func(w io.Writer) error {
						_, err := fmt.Fprintln(w, res.Message)
						return err
					})
				}
			}
			return NewExitError(ExitFailure, "order was not confirmed")
		},
	}
}
