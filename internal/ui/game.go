package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Vinitharameshchand/akai-itoo/internal/game"
	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
)

type gameMoveMsg protocol.GameAction

// GameModel is the bubbletea model of `itoo game`.
type GameModel struct {
	emitter Emitter
	moves   <-chan protocol.GameAction
	game    *game.TicTacToe

	status string
	closed bool
	err    error
}

func NewGameModel(emitter Emitter, moves <-chan protocol.GameAction, g *game.TicTacToe) *GameModel {
	return &GameModel{emitter: emitter, moves: moves, game: g}
}

func (m *GameModel) Init() tea.Cmd {
	return m.waitMove()
}

func (m *GameModel) waitMove() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.moves
		if !ok {
			return feedClosed{}
		}
		return gameMoveMsg(ev)
	}
}

func (m *GameModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch {
		case key == "q" || key == "ctrl+c" || key == "esc":
			return m, tea.Quit
		case key == "r":
			return m, m.emit(m.game.Reset())
		case len(key) == 1 && key[0] >= '1' && key[0] <= '9':
			ev, err := m.game.Play(int(key[0] - '1'))
			if err != nil {
				m.status = describeMoveError(err)
				return m, nil
			}
			m.status = ""
			return m, m.emit(ev)
		}

	case gameMoveMsg:
		if err := m.game.Apply(protocol.GameAction(msg)); err != nil {
			m.status = "ignored a bad move from your partner"
		} else {
			m.status = ""
		}
		return m, m.waitMove()

	case feedClosed:
		m.closed = true
		return m, tea.Quit

	case emitFailed:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *GameModel) emit(ev protocol.Event) tea.Cmd {
	if err := m.emitter.Emit(ev); err != nil {
		return func() tea.Msg { return emitFailed{err} }
	}
	return nil
}

func describeMoveError(err error) string {
	switch {
	case errors.Is(err, game.ErrNotYourTurn):
		return "wait for your partner's move"
	case errors.Is(err, game.ErrSquareTaken):
		return "that square is taken"
	case errors.Is(err, game.ErrGameOver):
		return "game over, press r to play again"
	}
	return err.Error()
}

func (m *GameModel) Err() error   { return m.err }
func (m *GameModel) Closed() bool { return m.closed }

// Status describes whose turn it is or how the game ended.
func (m *GameModel) Status() string {
	me := string(m.game.Me())
	switch w := m.game.Winner(); w {
	case game.Draw:
		return "It's a tie!"
	case me:
		return fmt.Sprintf("You win (%s)!", w)
	case "":
	default:
		return fmt.Sprintf("Winner: %s", w)
	}
	if m.game.MyTurn() {
		return fmt.Sprintf("Your turn (%s)", me)
	}
	return fmt.Sprintf("Partner's turn (%s)", m.game.Turn())
}

func (m *GameModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(IconGame + " Tic-tac-toe"))
	b.WriteString("\n")
	b.WriteString(BoardView(m.game.Board()))
	b.WriteString("\n\n")
	b.WriteString(BoldStyle.Render(m.Status()))
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(WarningStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(MutedStyle.Render("1-9 to play, r to reset, q to quit"))
	return b.String()
}
