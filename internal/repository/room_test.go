package repository

import (
	"testing"

	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
	"github.com/rocketscienceinc/xo-arena-backend/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRepository_CreateOrUpdate(t *testing.T) {
	ctx, st := suite.New(t)

	roomRepo := NewRoomRepository(st.Storage)

	// Given: a waiting room
	room := entity.NewRoom("ABC123", entity.ModeClassic, entity.PrivateType, false, false)

	// When: CreateOrUpdate is called
	err := roomRepo.CreateOrUpdate(ctx, room)

	// Then: no error should be returned
	require.NoError(t, err)
}

func TestRoomRepository_GetByCode(t *testing.T) {
	t.Run("GetByCode_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Storage)

		// Given: a stored tactical room with players and history
		room := entity.NewRoom("ABC123", entity.ModeTactical, entity.PublicType, true, false)
		room.Status = entity.StatusActive
		room.Players[entity.PlayerX] = &entity.Player{ID: "alice", Mark: entity.PlayerX, RoomCode: room.Code}
		room.Players[entity.PlayerO] = &entity.Player{ID: "bob", Mark: entity.PlayerO, RoomCode: room.Code}
		room.Board[4] = entity.PlayerX
		room.AppendMove(entity.MoveRecord{Player: entity.PlayerX, Position: 4, Action: entity.ActionStrike})

		err := roomRepo.CreateOrUpdate(ctx, room)
		require.NoError(t, err)

		// When: GetByCode is called with the existing code
		retrieved, err := roomRepo.GetByCode(ctx, room.Code)

		// Then: the retrieved room should match the saved one
		require.NoError(t, err)
		assert.Equal(t, room.Code, retrieved.Code)
		assert.Equal(t, room.Status, retrieved.Status)
		assert.Equal(t, room.Board, retrieved.Board)
		assert.Equal(t, room.Mode, retrieved.Mode)
		assert.True(t, retrieved.Blitz)
		require.NotNil(t, retrieved.Tactical)
		assert.Equal(t, room.Tactical.PowerTiles, retrieved.Tactical.PowerTiles)
		assert.Equal(t, "alice", retrieved.Players[entity.PlayerX].ID)
		require.Len(t, retrieved.Moves, 1)
		assert.Equal(t, 4, retrieved.Moves[0].Position)
	})

	t.Run("GetByCode_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		roomRepo := NewRoomRepository(st.Storage)

		// When: GetByCode is called with an unknown code
		_, err := roomRepo.GetByCode(ctx, "NOSUCH")

		// Then: ErrRoomNotFound should be returned
		require.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestRoomRepository_DeleteByCode(t *testing.T) {
	ctx, st := suite.New(t)

	roomRepo := NewRoomRepository(st.Storage)

	// Given: a stored room
	room := entity.NewRoom("ABC123", entity.ModeClassic, entity.PrivateType, false, false)
	require.NoError(t, roomRepo.CreateOrUpdate(ctx, room))

	// When: DeleteByCode is called
	err := roomRepo.DeleteByCode(ctx, room.Code)

	// Then: the room is gone
	require.NoError(t, err)
	_, err = roomRepo.GetByCode(ctx, room.Code)
	require.ErrorIs(t, err, ErrRoomNotFound)
}
