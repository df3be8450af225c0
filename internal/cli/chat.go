package cli

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Vinitharameshchand/akai-itoo/internal/ui"
)

func newChatCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:     "chat",
		Aliases: []string{"c"},
		Short:   "Chat with your partner",
		Long: `Open an interactive chat with your partner. Your partner sees when you
are typing; the indicator clears a few seconds after you stop.

Examples:
  itoo chat --me alice --partner bob --name Alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer conn.Close()

			fmt.Fprintln(cmd.OutOrStdout(), conn.RoomInfo().View())

			model := ui.NewChatModel(conn.Client, ui.ChatFeed{
				Messages: conn.Handler.Chat,
				Typing:   conn.Handler.Typing,
			}, conn.Client.Room(), conn.Config.Me, conn.Config.Name)

			return runProgram(cmd, model)
		},
	}
}

// sessionModel is a TUI bound to the relay connection.
type sessionModel interface {
	tea.Model
	Err() error
	Closed() bool
}

// runProgram runs a TUI until it quits or the command is interrupted.
func runProgram(cmd *cobra.Command, model sessionModel) error {
	p := tea.NewProgram(model,
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}

	if err := model.Err(); err != nil {
		return err
	}
	if model.Closed() {
		ui.PrintWarning("relay connection closed")
	}
	return nil
}
