package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrRoomFull         = errors.New("room is already full")

	ErrCellShielded  = errors.New("cell is shielded")
	ErrCellLocked    = errors.New("cell is locked")
	ErrNoShieldsLeft = errors.New("no shields left")
	ErrSacrificeUsed = errors.New("sacrifice already used")
	ErrNotYourSymbol = errors.New("cell is not occupied by your symbol")

	ErrResetNotAllowed = errors.New("reset is only allowed after the game ended")
)

// IsIllegalMove reports whether err is a stale-click class error: a move the
// UI should have prevented, dropped without a notification.
func IsIllegalMove(err error) bool {
	return errors.Is(err, ErrNotYourTurn) || errors.Is(err, ErrCellOccupied)
}

// IsActionUnavailable reports whether err is a tactical precondition failure
// that is surfaced to the player as a notification, with state unchanged.
func IsActionUnavailable(err error) bool {
	return errors.Is(err, ErrNoShieldsLeft) ||
		errors.Is(err, ErrSacrificeUsed) ||
		errors.Is(err, ErrNotYourSymbol) ||
		errors.Is(err, ErrCellShielded) ||
		errors.Is(err, ErrCellLocked)
}
