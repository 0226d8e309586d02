package entity

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rocketscienceinc/xo-arena-backend/internal/apperror"
)

const (
	StatusWaiting = "waiting"
	StatusActive  = "active"
	StatusEnded   = "ended"

	PlayerX    = "X"
	PlayerO    = "O"
	WinnerDraw = "Draw"

	EmptyCell = ""
)

const (
	ModeClassic  = "classic"
	ModeTactical = "tactical"
)

const (
	PrivateType = "private"
	PublicType  = "public"
	WithBotType = "bot"
)

const (
	SlotCreator = "creator"
	SlotJoiner  = "joiner"
)

// Bounds on the append-only histories kept inside the room document.
const (
	maxMoveRecords = 32
	maxChatEntries = 50
)

var (
	ErrInvalidCell       = errors.New("invalid cell index")
	ErrUnknownRoomStatus = errors.New("unknown room status")

	WinLines = [8][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}

	DiagonalLines = [2][3]int{
		{0, 4, 8},
		{2, 4, 6},
	}
)

// Board is the 3x3 grid stored row-major. A cell holds "", "X", "O", or a
// shielded marker ("XS"/"OS") in tactical games.
type Board [9]string

// GameResult is the outcome of a finished board: the winning symbol (or
// WinnerDraw) and, for line wins, the completed line.
type GameResult struct {
	Winner string  `json:"winner"`
	Line   *[3]int `json:"line,omitempty"`
}

// MoveRecord is one entry of the append-only move log, kept for audit and
// replay independent of the board snapshot.
type MoveRecord struct {
	Player    string `json:"player"`
	Position  int    `json:"position"`
	Action    string `json:"action,omitempty"`
	Forced    bool   `json:"forced,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ChatMessage is one entry of the per-room chat log.
type ChatMessage struct {
	Sender    string `json:"sender"`
	Mark      string `json:"mark,omitempty"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// ReadyState gates the waiting -> active transition.
type ReadyState struct {
	Creator         bool `json:"creator"`
	Joiner          bool `json:"joiner"`
	CreatorCanStart bool `json:"creator_can_start"`
}

// Room is the shared game document, keyed by its room code. It is the single
// source of truth for a session: every accepted mutation produces a complete
// next-state snapshot of this struct, never a partial patch.
type Room struct {
	Code      string             `json:"code"`
	Status    string             `json:"status"`
	Board     Board              `json:"board"`
	Turn      string             `json:"current_turn"`
	Players   map[string]*Player `json:"players,omitempty"`
	Ready     ReadyState         `json:"ready_state"`
	GameEnded bool               `json:"game_ended"`
	Winner    *GameResult        `json:"winner"`
	Mode      string             `json:"game_mode"`
	Type      string             `json:"type,omitempty"`
	Blitz     bool               `json:"is_blitz_mode"`
	Gambit    bool               `json:"is_gambit_mode"`
	Moves     []MoveRecord       `json:"moves,omitempty"`
	Chat      []ChatMessage      `json:"chat,omitempty"`
	Tactical  *TacticalState     `json:"tactical,omitempty"`
	CreatedAt int64              `json:"created_at,omitempty"`
	StartedAt int64              `json:"started_at,omitempty"`
}

func NewRoom(code, mode, roomType string, blitz, gambit bool) *Room {
	room := &Room{
		Code:    code,
		Status:  StatusWaiting,
		Turn:    PlayerX,
		Mode:    mode,
		Type:    roomType,
		Blitz:   blitz,
		Gambit:  gambit,
		Players: make(map[string]*Player),
	}

	if mode == ModeTactical {
		room.Tactical = NewTacticalState()
	}

	return room
}

// DetermineResult checks the 8 canonical lines; a line counts only when all
// three cells hold the same plain symbol. Shielded cells are terrain, not
// pieces, and never complete a line. Returns nil while the game is open.
func (that Board) DetermineResult() *GameResult {
	for _, line := range WinLines {
		a := that[line[0]]
		if a == EmptyCell || IsShielded(a) {
			continue
		}
		if a == that[line[1]] && a == that[line[2]] {
			won := line
			return &GameResult{Winner: a, Line: &won}
		}
	}

	for _, cell := range that {
		if cell == EmptyCell {
			return nil
		}
	}

	return &GameResult{Winner: WinnerDraw}
}

// IsDiagonal reports whether a completed line is one of the two main
// diagonals, the lines that score points instead of ending a tactical match.
func (that *GameResult) IsDiagonal() bool {
	if that.Line == nil {
		return false
	}
	for _, diag := range DiagonalLines {
		if *that.Line == diag {
			return true
		}
	}
	return false
}

// IsShielded reports whether a cell holds a shield marker.
func IsShielded(cell string) bool {
	return len(cell) == 2 && cell[1] == 'S'
}

// Shielded returns the shield marker for a symbol.
func Shielded(mark string) string {
	return mark + "S"
}

// Opponent returns the other symbol.
func Opponent(mark string) string {
	if mark == PlayerX {
		return PlayerO
	}
	return PlayerX
}

// ApplyStrike places mark into cell after validating the classic
// preconditions, flips the turn and refreshes the end-state.
func (that *Room) ApplyStrike(mark string, cell int) error {
	if cell < 0 || cell >= len(that.Board) {
		return fmt.Errorf("%w: cell %d", ErrInvalidCell, cell)
	}

	if that.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if that.Board[cell] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	that.Board[cell] = mark
	that.Turn = Opponent(mark)
	that.RefreshOutcome()

	return nil
}

// RefreshOutcome recomputes winner and status from the board.
func (that *Room) RefreshOutcome() {
	result := that.Board.DetermineResult()
	if result == nil {
		return
	}

	that.Winner = result
	that.GameEnded = true
	that.Status = StatusEnded
	that.Turn = EmptyCell
}

// AppendMove records an accepted move; the log is bounded so the document
// stays small enough for fire-and-forget publishes.
func (that *Room) AppendMove(record MoveRecord) {
	that.Moves = append(that.Moves, record)
	if len(that.Moves) > maxMoveRecords {
		that.Moves = that.Moves[len(that.Moves)-maxMoveRecords:]
	}
}

func (that *Room) AppendChat(message ChatMessage) {
	that.Chat = append(that.Chat, message)
	if len(that.Chat) > maxChatEntries {
		that.Chat = that.Chat[len(that.Chat)-maxChatEntries:]
	}
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsActive() bool {
	return that.Status == StatusActive
}

func (that *Room) IsEnded() bool {
	return that.Status == StatusEnded
}

func (that *Room) IsTactical() bool {
	return that.Mode == ModeTactical
}

func (that *Room) IsPublic() bool {
	return that.Type == PublicType
}

func (that *Room) IsWithBot() bool {
	return that.Type == WithBotType
}

func (that *Room) ConfirmActiveState() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	case that.IsEnded():
		return apperror.ErrGameFinished
	case that.IsActive():
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownRoomStatus, that.Status)
	}
}

// SlotOf returns the slot key ("creator", "joiner", "X", "O") under which the
// player is registered, or "" if they are not in the room.
func (that *Room) SlotOf(playerID string) string {
	for slot, player := range that.Players {
		if player != nil && player.ID == playerID {
			return slot
		}
	}
	return ""
}

// SymbolOf resolves a player's symbol from the published player map; empty
// until symbols have been randomized.
func (that *Room) SymbolOf(playerID string) string {
	for _, mark := range []string{PlayerX, PlayerO} {
		if player, ok := that.Players[mark]; ok && player != nil && player.ID == playerID {
			return mark
		}
	}
	return ""
}

// VacantSymbol returns the unoccupied symbol slot of an active room, or ""
// when both slots are taken.
func (that *Room) VacantSymbol() string {
	for _, mark := range []string{PlayerX, PlayerO} {
		if player, ok := that.Players[mark]; !ok || player == nil {
			return mark
		}
	}
	return ""
}

// HumanPlayers counts registered non-bot players.
func (that *Room) HumanPlayers() int {
	count := 0
	for _, player := range that.Players {
		if player != nil && !player.IsBot() {
			count++
		}
	}
	return count
}

// RandomMarks draws the creator/joiner symbol assignment: one fair coin flip,
// independent of who moves first.
func RandomMarks() (string, string) {
	if rand.Intn(2) == 0 { //nolint: gosec // it's ok
		return PlayerX, PlayerO
	}
	return PlayerO, PlayerX
}

// RandomFirstTurn draws the opening symbol: the second, independent coin flip.
func RandomFirstTurn() string {
	if rand.Intn(2) == 0 { //nolint: gosec // it's ok
		return PlayerX
	}
	return PlayerO
}
