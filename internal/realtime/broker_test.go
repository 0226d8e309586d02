package realtime

import (
	"testing"
	"time"

	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
	"github.com/rocketscienceinc/xo-arena-backend/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deliveryTimeout = 5 * time.Second

func TestBroker_RoomFanout(t *testing.T) {
	t.Run("Subscribers receive published room snapshots", func(t *testing.T) {
		ctx, st := suite.New(t)

		broker := NewBroker(st.Logger, st.Storage)

		room := entity.NewRoom("ABC123", entity.ModeClassic, entity.PrivateType, false, false)
		room.Status = entity.StatusActive
		room.Board[4] = entity.PlayerX

		updates, cancel := broker.SubscribeRoom(ctx, room.Code)
		defer cancel()

		// pub/sub delivery only reaches subscriptions that are in place,
		// give the subscriber a moment to register
		time.Sleep(100 * time.Millisecond)

		require.NoError(t, broker.PublishRoom(ctx, room))

		select {
		case received := <-updates:
			assert.Equal(t, room.Code, received.Code)
			assert.Equal(t, entity.PlayerX, received.Board[4])
			assert.Equal(t, entity.StatusActive, received.Status)
		case <-time.After(deliveryTimeout):
			t.Fatal("room snapshot was not delivered")
		}
	})

	t.Run("Rooms are isolated by code", func(t *testing.T) {
		ctx, st := suite.New(t)

		broker := NewBroker(st.Logger, st.Storage)

		updates, cancel := broker.SubscribeRoom(ctx, "ROOM01")
		defer cancel()

		time.Sleep(100 * time.Millisecond)

		other := entity.NewRoom("ROOM02", entity.ModeClassic, entity.PrivateType, false, false)
		require.NoError(t, broker.PublishRoom(ctx, other))

		select {
		case received := <-updates:
			t.Fatalf("unexpected snapshot for room %s", received.Code)
		case <-time.After(500 * time.Millisecond):
		}
	})
}

func TestBroker_TicketFanout(t *testing.T) {
	ctx, st := suite.New(t)

	broker := NewBroker(st.Logger, st.Storage)

	ticket := &entity.Ticket{
		ID:       "TCK001",
		Player1:  "alice",
		Player2:  "bob",
		Status:   entity.TicketMatched,
		RoomCode: "ROOM01",
	}

	updates, cancel := broker.SubscribeTicket(ctx, ticket.ID)
	defer cancel()

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, broker.PublishTicket(ctx, ticket))

	select {
	case received := <-updates:
		assert.Equal(t, ticket.ID, received.ID)
		assert.Equal(t, entity.TicketMatched, received.Status)
		assert.Equal(t, "ROOM01", received.RoomCode)
	case <-time.After(deliveryTimeout):
		t.Fatal("ticket snapshot was not delivered")
	}
}
