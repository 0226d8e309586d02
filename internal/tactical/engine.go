package tactical

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rocketscienceinc/xo-arena-backend/internal/apperror"
	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
)

var (
	ErrNotTactical      = errors.New("room is not in tactical mode")
	ErrUnknownAction    = errors.New("unknown tactical action")
	ErrNoAvailableCells = errors.New("no available cells")
)

// Outcome describes what a tactical ply did beyond its target cell, so the
// transport can narrate detonations, swaps and scored points.
type Outcome struct {
	Action        string
	Cell          int
	Forced        bool
	Detonated     []int
	Swapped       *[2]int
	DiagonalPoint string
	BoardReset    bool
}

// ApplyAction plays one tactical ply: fuses tick first (bomb detonations and
// shield expiries land before the mover acts), then the chosen action is
// validated and applied, then the outcome of the board is resolved.
//
// On any error the ply has not happened: callers must discard the room rather
// than persist it, since fuse ticking mutates in place.
func ApplyAction(room *entity.Room, mark, action string, cell int) (*Outcome, error) {
	if !room.IsTactical() || room.Tactical == nil {
		return nil, ErrNotTactical
	}

	if err := room.ConfirmActiveState(); err != nil {
		return nil, err
	}

	if room.Turn != mark {
		return nil, apperror.ErrNotYourTurn
	}

	if cell < 0 || cell >= len(room.Board) {
		return nil, fmt.Errorf("%w: cell %d", entity.ErrInvalidCell, cell)
	}

	outcome := &Outcome{Action: action, Cell: cell}
	tickFuses(room, outcome)

	var err error
	switch action {
	case entity.ActionStrike:
		err = strike(room, mark, cell, outcome)
	case entity.ActionDefend:
		err = defend(room, mark, cell)
	case entity.ActionSacrifice:
		err = sacrifice(room, mark, cell)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if err != nil {
		return nil, err
	}

	resolveBoard(room, mark, outcome)

	return outcome, nil
}

// ForcedStrike is the blitz-expiry move: a uniformly random strike on an
// empty, unlocked cell for the player on the clock.
func ForcedStrike(room *entity.Room, mark string) (*Outcome, error) {
	cells := StrikeableCells(room)
	if len(cells) == 0 {
		return nil, ErrNoAvailableCells
	}

	cell := cells[rand.Intn(len(cells))] //nolint: gosec // it's ok

	if !room.IsTactical() {
		if err := room.ApplyStrike(mark, cell); err != nil {
			return nil, fmt.Errorf("forced strike on cell %d: %w", cell, err)
		}
		return &Outcome{Action: entity.ActionStrike, Cell: cell, Forced: true}, nil
	}

	outcome, err := ApplyAction(room, mark, entity.ActionStrike, cell)
	if err != nil {
		return nil, fmt.Errorf("forced strike on cell %d: %w", cell, err)
	}

	outcome.Forced = true
	return outcome, nil
}

// StrikeableCells lists every cell a strike may target: empty and not locked.
func StrikeableCells(room *entity.Room) []int {
	cells := make([]int, 0, len(room.Board))
	for i, cell := range room.Board {
		if cell != entity.EmptyCell {
			continue
		}
		if room.Tactical != nil && room.Tactical.LockedCells[i] {
			continue
		}
		cells = append(cells, i)
	}
	return cells
}

func strike(room *entity.Room, mark string, cell int, outcome *Outcome) error {
	state := room.Tactical

	if state.LockedCells[cell] {
		return apperror.ErrCellLocked
	}

	occupant := room.Board[cell]
	if entity.IsShielded(occupant) {
		return apperror.ErrCellShielded
	}
	if occupant != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	room.Board[cell] = mark

	switch state.TileAt(cell) {
	case entity.TileBomb:
		armBomb(state, cell)
	case entity.TileSwap:
		swapWithOpponent(room, mark, cell, outcome)
	case entity.TileLock:
		state.LockedCells[cell] = true
	}

	return nil
}

func defend(room *entity.Room, mark string, cell int) error {
	state := room.Tactical

	if state.Shields[mark] <= 0 {
		return apperror.ErrNoShieldsLeft
	}

	occupant := room.Board[cell]
	if entity.IsShielded(occupant) {
		return apperror.ErrCellShielded
	}
	if occupant != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	room.Board[cell] = entity.Shielded(mark)
	state.ShieldFuses[cell] = entity.ShieldPlies
	state.Shields[mark]--

	// A shield still occupies a bomb tile: it arms the fuse and will be
	// cleared by the detonation.
	if state.TileAt(cell) == entity.TileBomb {
		armBomb(state, cell)
	}

	return nil
}

func sacrifice(room *entity.Room, mark string, cell int) error {
	state := room.Tactical

	if state.SacrificeUsed[mark] {
		return apperror.ErrSacrificeUsed
	}

	if state.LockedCells[cell] {
		return apperror.ErrCellLocked
	}

	if room.Board[cell] != mark {
		return apperror.ErrNotYourSymbol
	}

	room.Board[cell] = entity.EmptyCell
	state.SacrificeUsed[mark] = true
	state.Shields[mark] += entity.SacrificeShieldBonus

	return nil
}

func armBomb(state *entity.TacticalState, cell int) {
	if state.BombSpent(cell) {
		return
	}
	if _, armed := state.BombFuses[cell]; armed {
		return
	}
	state.BombFuses[cell] = entity.BombFusePlies
}

// swapWithOpponent trades the just-placed symbol with the first opposing
// symbol in ascending scan order. Shielded and locked cells stay put.
func swapWithOpponent(room *entity.Room, mark string, cell int, outcome *Outcome) {
	opponent := entity.Opponent(mark)
	for i, occupant := range room.Board {
		if i == cell || occupant != opponent || room.Tactical.LockedCells[i] {
			continue
		}

		room.Board[i] = mark
		room.Board[cell] = opponent
		swapped := [2]int{cell, i}
		outcome.Swapped = &swapped
		return
	}
}

// tickFuses advances every countdown by one ply. A shield at zero reverts its
// cell to empty; a bomb at zero clears exactly its own cell and never re-arms
// on this board.
func tickFuses(room *entity.Room, outcome *Outcome) {
	state := room.Tactical

	for cell, fuse := range state.ShieldFuses {
		fuse--
		if fuse > 0 {
			state.ShieldFuses[cell] = fuse
			continue
		}
		room.Board[cell] = entity.EmptyCell
		delete(state.ShieldFuses, cell)
	}

	for cell, fuse := range state.BombFuses {
		if fuse <= 0 {
			continue
		}
		fuse--
		if fuse > 0 {
			state.BombFuses[cell] = fuse
			continue
		}
		room.Board[cell] = entity.EmptyCell
		delete(state.ShieldFuses, cell)
		state.SpendBomb(cell)
		outcome.Detonated = append(outcome.Detonated, cell)
	}
}

// resolveBoard settles the ply: a diagonal line scores a point and resets the
// board unless it reaches the match score; any other line, or a full board,
// ends the match as in classic play.
func resolveBoard(room *entity.Room, mark string, outcome *Outcome) {
	state := room.Tactical

	result := room.Board.DetermineResult()
	if result == nil {
		room.Turn = entity.Opponent(mark)
		return
	}

	if result.Winner != entity.WinnerDraw && result.IsDiagonal() {
		state.DiagonalWins[result.Winner]++
		outcome.DiagonalPoint = result.Winner

		if state.DiagonalWins[result.Winner] < entity.DiagonalWinsForMatch {
			room.Board = entity.Board{}
			state.ClearBoardState()
			room.Turn = entity.PlayerX
			room.Winner = nil
			room.GameEnded = false
			outcome.BoardReset = true
			return
		}
	}

	room.Winner = result
	room.GameEnded = true
	room.Status = entity.StatusEnded
	room.Turn = entity.EmptyCell
}
