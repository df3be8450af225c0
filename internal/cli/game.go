package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Vinitharameshchand/akai-itoo/internal/game"
	"github.com/Vinitharameshchand/akai-itoo/internal/ui"
)

func newGameCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:     "game",
		Aliases: []string{"ttt"},
		Short:   "Play tic-tac-toe with your partner",
		Long: `Play tic-tac-toe with your partner. The id that sorts first plays X and
moves first.

Examples:
  itoo game --me alice --partner bob`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer conn.Close()

			fmt.Fprintln(cmd.OutOrStdout(), conn.RoomInfo().View())

			model := ui.NewGameModel(conn.Client, conn.Handler.Game,
				game.NewTicTacToe(conn.Client.Room(), conn.Config.Role()))
			return runProgram(cmd, model)
		},
	}
}
