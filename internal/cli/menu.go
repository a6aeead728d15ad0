package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/papapizza/internal/render"
	"github.com/roach88/papapizza/internal/reconciler"
)

// NewMenuCommand creates the menu command.
func NewMenuCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Print the menu with the quantities in your cart",
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

			if s.engine.Catalog() == nil {
				msg := "menu unavailable"
				for _, n := range s.Notices() {
					if n.Kind == reconciler.NoticeError && n.Request == reconciler.KindMount {
						msg = n.Message
					}
				}
				return &ExitError{Code: ExitFailure, Message: msg, ErrCode: CodeRequestFailed}
			}

			entries := s.engine.Entries()
			return opts.formatter(cmd).Success(entries, func(w io.Writer) error {
				return render.Menu(w, entries)
			})
		},
	}
}
