package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Vinitharameshchand/akai-itoo/internal/pairing"
	"github.com/Vinitharameshchand/akai-itoo/internal/validation"
)

func newRoomKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roomkey <id> [partner]",
		Short: "Print the room a pair shares",
		Long: `Print the room key two participants share and the tic-tac-toe mark of
the first one.

Examples:
  itoo roomkey alice bob
  itoo roomkey alice`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, partner := args[0], ""
			if len(args) == 2 {
				partner = args[1]
			}
			for _, id := range args {
				if err := validation.Var(id, "participant"); err != nil {
					return fmt.Errorf("invalid participant id %q", id)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, pairing.RoomKey(me, partner))
			fmt.Fprintf(out, "%s plays %s\n", me, pairing.Role(me, partner))
			return nil
		},
	}
}
