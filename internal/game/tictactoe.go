// Package game holds the tic-tac-toe rules both partners apply locally. The
// relay only forwards the resulting board.
package game

import (
	"errors"
	"fmt"

	"github.com/Vinitharameshchand/akai-itoo/internal/pairing"
	"github.com/Vinitharameshchand/akai-itoo/internal/protocol"
)

const (
	TypeTicTacToe = "tictactoe"

	ActionMove  = "move"
	ActionReset = "reset"

	// Draw is reported by Winner when the board is full without a line.
	Draw = "Draw"
)

var (
	ErrNotYourTurn   = errors.New("not your turn")
	ErrSquareTaken   = errors.New("square already taken")
	ErrGameOver      = errors.New("game is over")
	ErrOutOfRange    = errors.New("square out of range")
	ErrMalformedMove = errors.New("malformed game move")
)

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Board is a 3x3 grid in row-major order. Empty squares are "".
type Board [9]string

// TicTacToe is one player's view of a shared game.
type TicTacToe struct {
	board   Board
	xNext   bool
	me      pairing.Mark
	roomKey string
}

// NewTicTacToe starts an empty game in room with X to move.
func NewTicTacToe(room string, me pairing.Mark) *TicTacToe {
	return &TicTacToe{xNext: true, me: me, roomKey: room}
}

func (g *TicTacToe) Board() Board     { return g.board }
func (g *TicTacToe) Me() pairing.Mark { return g.me }
func (g *TicTacToe) XNext() bool      { return g.xNext }
func (g *TicTacToe) Winner() string   { return Winner(g.board) }
func (g *TicTacToe) Over() bool       { return g.Winner() != "" }

// Turn returns the mark expected to move next.
func (g *TicTacToe) Turn() pairing.Mark {
	if g.xNext {
		return pairing.MarkX
	}
	return pairing.MarkO
}

// MyTurn reports whether the local player may move.
func (g *TicTacToe) MyTurn() bool {
	return !g.Over() && g.Turn() == g.me
}

// Play places the local mark on square and returns the event to send.
func (g *TicTacToe) Play(square int) (protocol.GameAction, error) {
	if square < 0 || square >= len(g.board) {
		return protocol.GameAction{}, fmt.Errorf("square %d: %w", square, ErrOutOfRange)
	}
	if g.Over() {
		return protocol.GameAction{}, ErrGameOver
	}
	if g.Turn() != g.me {
		return protocol.GameAction{}, ErrNotYourTurn
	}
	if g.board[square] != "" {
		return protocol.GameAction{}, fmt.Errorf("square %d: %w", square, ErrSquareTaken)
	}

	g.board[square] = string(g.me)
	g.xNext = !g.xNext
	return g.moveEvent(), nil
}

// Reset clears the board and returns the event to send.
func (g *TicTacToe) Reset() protocol.GameAction {
	g.clear()
	return protocol.GameAction{RoomID: g.roomKey, GameType: TypeTicTacToe, Action: ActionReset}
}

// Apply adopts a move or reset received from the partner. Moves carry the
// whole board, so the last one received wins.
func (g *TicTacToe) Apply(ev protocol.GameAction) error {
	if ev.GameType != TypeTicTacToe {
		return fmt.Errorf("game type %q: %w", ev.GameType, ErrMalformedMove)
	}
	switch ev.Action {
	case ActionReset:
		g.clear()
		return nil
	case ActionMove:
		if len(ev.Board) != len(g.board) || ev.IsXNext == nil {
			return ErrMalformedMove
		}
		var next Board
		for i, sq := range ev.Board {
			if sq != "" && sq != string(pairing.MarkX) && sq != string(pairing.MarkO) {
				return fmt.Errorf("square %d holds %q: %w", i, sq, ErrMalformedMove)
			}
			next[i] = sq
		}
		g.board = next
		g.xNext = *ev.IsXNext
		return nil
	}
	return fmt.Errorf("action %q: %w", ev.Action, ErrMalformedMove)
}

func (g *TicTacToe) clear() {
	g.board = Board{}
	g.xNext = true
}

func (g *TicTacToe) moveEvent() protocol.GameAction {
	xNext := g.xNext
	return protocol.GameAction{
		RoomID:   g.roomKey,
		GameType: TypeTicTacToe,
		Action:   ActionMove,
		Board:    append([]string(nil), g.board[:]...),
		IsXNext:  &xNext,
	}
}

// Winner returns "X" or "O" for a completed line, Draw for a full board and
// "" while the game is open.
func Winner(b Board) string {
	for _, l := range lines {
		if b[l[0]] != "" && b[l[0]] == b[l[1]] && b[l[0]] == b[l[2]] {
			return b[l[0]]
		}
	}
	for _, sq := range b {
		if sq == "" {
			return ""
		}
	}
	return Draw
}
