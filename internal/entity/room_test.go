package entity

import (
	"testing"

	"github.com/rocketscienceinc/xo-arena-backend/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoard_DetermineResult(t *testing.T) {
	t.Run("Returns nil while the board is open", func(t *testing.T) {
		// Given: a board with a few scattered marks
		board := Board{PlayerX, EmptyCell, PlayerO, EmptyCell, PlayerX, EmptyCell, EmptyCell, EmptyCell, EmptyCell}

		// When: determining the result
		result := board.DetermineResult()

		// Then: the game is still open
		assert.Nil(t, result)
	})

	t.Run("Detects a row win", func(t *testing.T) {
		// Given: X completed the top row
		board := Board{PlayerX, PlayerX, PlayerX, PlayerO, PlayerO, EmptyCell, EmptyCell, EmptyCell, EmptyCell}

		// When: determining the result
		result := board.DetermineResult()

		// Then: X wins with the top row line
		require.NotNil(t, result)
		assert.Equal(t, PlayerX, result.Winner)
		require.NotNil(t, result.Line)
		assert.Equal(t, [3]int{0, 1, 2}, *result.Line)
	})

	t.Run("Detects a column win", func(t *testing.T) {
		// Given: O completed the left column
		board := Board{PlayerO, PlayerX, PlayerX, PlayerO, PlayerX, EmptyCell, PlayerO, EmptyCell, EmptyCell}

		// When: determining the result
		result := board.DetermineResult()

		// Then: O wins
		require.NotNil(t, result)
		assert.Equal(t, PlayerO, result.Winner)
	})

	t.Run("Detects a draw on a full board", func(t *testing.T) {
		// Given: a full board with no line
		board := Board{
			PlayerX, PlayerO, PlayerX,
			PlayerX, PlayerO, PlayerO,
			PlayerO, PlayerX, PlayerX,
		}

		// When: determining the result
		result := board.DetermineResult()

		// Then: the game is a draw
		require.NotNil(t, result)
		assert.Equal(t, WinnerDraw, result.Winner)
		assert.Nil(t, result.Line)
	})

	t.Run("Shielded cells never complete a line", func(t *testing.T) {
		// Given: two X marks and a shield of X on the same row
		board := Board{PlayerX, PlayerX, Shielded(PlayerX), EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell, EmptyCell}

		// When: determining the result
		result := board.DetermineResult()

		// Then: the game is still open
		assert.Nil(t, result)
	})

	t.Run("A shield occupies its cell when checking for a full board", func(t *testing.T) {
		// Given: every cell holds a symbol or a shield and no line is complete
		board := Board{
			PlayerX, PlayerO, PlayerX,
			PlayerX, Shielded(PlayerO), PlayerO,
			PlayerO, PlayerX, PlayerX,
		}

		// When: determining the result
		result := board.DetermineResult()

		// Then: the board is full, so the game is drawn
		require.NotNil(t, result)
		assert.Equal(t, WinnerDraw, result.Winner)
	})
}

func TestGameResult_IsDiagonal(t *testing.T) {
	t.Run("Main diagonal counts as diagonal", func(t *testing.T) {
		line := [3]int{0, 4, 8}
		result := &GameResult{Winner: PlayerX, Line: &line}

		assert.True(t, result.IsDiagonal())
	})

	t.Run("Anti diagonal counts as diagonal", func(t *testing.T) {
		line := [3]int{2, 4, 6}
		result := &GameResult{Winner: PlayerO, Line: &line}

		assert.True(t, result.IsDiagonal())
	})

	t.Run("Rows and columns are not diagonal", func(t *testing.T) {
		line := [3]int{0, 1, 2}
		result := &GameResult{Winner: PlayerX, Line: &line}

		assert.False(t, result.IsDiagonal())
	})

	t.Run("A draw has no line and is not diagonal", func(t *testing.T) {
		result := &GameResult{Winner: WinnerDraw}

		assert.False(t, result.IsDiagonal())
	})
}

func TestRoom_ApplyStrike(t *testing.T) {
	newActiveRoom := func() *Room {
		room := NewRoom("ROOM01", ModeClassic, PrivateType, false, false)
		room.Status = StatusActive
		return room
	}

	t.Run("Places the mark and flips the turn", func(t *testing.T) {
		// Given: an active room with X to move
		room := newActiveRoom()

		// When: X strikes cell 4
		err := room.ApplyStrike(PlayerX, 4)

		// Then: the mark lands and O is on turn
		require.NoError(t, err)
		assert.Equal(t, PlayerX, room.Board[4])
		assert.Equal(t, PlayerO, room.Turn)
	})

	t.Run("Rejects a move out of turn", func(t *testing.T) {
		// Given: an active room with X to move
		room := newActiveRoom()

		// When: O tries to strike
		err := room.ApplyStrike(PlayerO, 0)

		// Then: the move is rejected and nothing changed
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, EmptyCell, room.Board[0])
		assert.Equal(t, PlayerX, room.Turn)
	})

	t.Run("Rejects an occupied cell", func(t *testing.T) {
		// Given: a room where cell 0 is taken
		room := newActiveRoom()
		require.NoError(t, room.ApplyStrike(PlayerX, 0))

		// When: O strikes the same cell
		err := room.ApplyStrike(PlayerO, 0)

		// Then: the move is rejected
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
	})

	t.Run("Rejects a cell outside the board", func(t *testing.T) {
		room := newActiveRoom()

		err := room.ApplyStrike(PlayerX, 9)

		require.ErrorIs(t, err, ErrInvalidCell)
	})

	t.Run("A winning strike ends the game", func(t *testing.T) {
		// Given: X one move away from the top row
		room := newActiveRoom()
		room.Board = Board{PlayerX, PlayerX, EmptyCell, PlayerO, PlayerO, EmptyCell, EmptyCell, EmptyCell, EmptyCell}

		// When: X completes the row
		err := room.ApplyStrike(PlayerX, 2)

		// Then: the game is over with X as winner and no one on turn
		require.NoError(t, err)
		assert.True(t, room.GameEnded)
		assert.Equal(t, StatusEnded, room.Status)
		require.NotNil(t, room.Winner)
		assert.Equal(t, PlayerX, room.Winner.Winner)
		assert.Equal(t, EmptyCell, room.Turn)
	})
}

func TestRoom_ConfirmActiveState(t *testing.T) {
	t.Run("Returns nil when room is active", func(t *testing.T) {
		room := &Room{Status: StatusActive}

		assert.NoError(t, room.ConfirmActiveState())
	})

	t.Run("Returns ErrGameIsNotStarted when room is waiting", func(t *testing.T) {
		room := &Room{Status: StatusWaiting}

		assert.ErrorIs(t, room.ConfirmActiveState(), apperror.ErrGameIsNotStarted)
	})

	t.Run("Returns ErrGameFinished when room has ended", func(t *testing.T) {
		room := &Room{Status: StatusEnded}

		assert.ErrorIs(t, room.ConfirmActiveState(), apperror.ErrGameFinished)
	})
}

func TestRoom_PlayerLookups(t *testing.T) {
	t.Run("SlotOf finds provisional and symbol slots", func(t *testing.T) {
		// Given: a waiting room with a creator and an active room with symbols
		room := NewRoom("ROOM02", ModeClassic, PrivateType, false, false)
		room.Players[SlotCreator] = &Player{ID: "alice"}

		assert.Equal(t, SlotCreator, room.SlotOf("alice"))
		assert.Empty(t, room.SlotOf("nobody"))
	})

	t.Run("SymbolOf resolves only symbol slots", func(t *testing.T) {
		room := NewRoom("ROOM03", ModeClassic, PrivateType, false, false)
		room.Players[PlayerX] = &Player{ID: "alice", Mark: PlayerX}
		room.Players[PlayerO] = &Player{ID: "bob", Mark: PlayerO}

		assert.Equal(t, PlayerX, room.SymbolOf("alice"))
		assert.Equal(t, PlayerO, room.SymbolOf("bob"))
		assert.Empty(t, room.SymbolOf("nobody"))
	})

	t.Run("VacantSymbol reports the free seat", func(t *testing.T) {
		room := NewRoom("ROOM04", ModeClassic, PrivateType, false, false)
		room.Players[PlayerO] = &Player{ID: "bob", Mark: PlayerO}

		assert.Equal(t, PlayerX, room.VacantSymbol())

		room.Players[PlayerX] = &Player{ID: "alice", Mark: PlayerX}
		assert.Empty(t, room.VacantSymbol())
	})

	t.Run("HumanPlayers ignores bots", func(t *testing.T) {
		room := NewRoom("ROOM05", ModeClassic, WithBotType, false, false)
		room.Players[PlayerX] = &Player{ID: "alice", Mark: PlayerX}
		room.Players[PlayerO] = NewBotPlayer(room.Code)

		assert.Equal(t, 1, room.HumanPlayers())
	})
}

func TestRoom_BoundedHistories(t *testing.T) {
	t.Run("Move log keeps only the newest records", func(t *testing.T) {
		room := NewRoom("ROOM06", ModeClassic, PrivateType, false, false)

		for i := 0; i < maxMoveRecords+5; i++ {
			room.AppendMove(MoveRecord{Player: PlayerX, Position: i})
		}

		require.Len(t, room.Moves, maxMoveRecords)
		assert.Equal(t, maxMoveRecords+4, room.Moves[len(room.Moves)-1].Position)
	})

	t.Run("Chat log keeps only the newest entries", func(t *testing.T) {
		room := NewRoom("ROOM07", ModeClassic, PrivateType, false, false)

		for i := 0; i < maxChatEntries+3; i++ {
			room.AppendChat(ChatMessage{Sender: "alice", Text: "hi"})
		}

		assert.Len(t, room.Chat, maxChatEntries)
	})
}

func TestRandomDraws(t *testing.T) {
	t.Run("RandomMarks always hands out both symbols", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			creator, joiner := RandomMarks()

			assert.NotEqual(t, creator, joiner)
			assert.Contains(t, []string{PlayerX, PlayerO}, creator)
			assert.Contains(t, []string{PlayerX, PlayerO}, joiner)
		}
	})

	t.Run("Both symbol assignments occur", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 200; i++ {
			creator, _ := RandomMarks()
			seen[creator] = true
		}

		// Two fair coin flips over 200 draws miss a side with probability 2^-199
		assert.True(t, seen[PlayerX])
		assert.True(t, seen[PlayerO])
	})

	t.Run("Both opening turns occur", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 200; i++ {
			seen[RandomFirstTurn()] = true
		}

		assert.True(t, seen[PlayerX])
		assert.True(t, seen[PlayerO])
	})
}

func TestShieldHelpers(t *testing.T) {
	assert.True(t, IsShielded(Shielded(PlayerX)))
	assert.True(t, IsShielded(Shielded(PlayerO)))
	assert.False(t, IsShielded(PlayerX))
	assert.False(t, IsShielded(EmptyCell))

	assert.Equal(t, PlayerO, Opponent(PlayerX))
	assert.Equal(t, PlayerX, Opponent(PlayerO))
}
