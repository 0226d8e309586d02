package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
	"github.com/rocketscienceinc/xo-arena-backend/internal/repository"
)

// The fakes below are in-memory stand-ins for the Redis-backed repositories
// and the pub/sub broker. They copy documents through JSON the way the real
// store does, so aliasing bugs surface in tests too.

type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[string]string
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[string]string)}
}

func (that *fakeRoomRepo) CreateOrUpdate(_ context.Context, room *entity.Room) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	raw, err := json.Marshal(room)
	if err != nil {
		return err
	}
	that.rooms[room.Code] = string(raw)
	return nil
}

func (that *fakeRoomRepo) GetByCode(_ context.Context, code string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	raw, ok := that.rooms[code]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}

	var room entity.Room
	if err := json.Unmarshal([]byte(raw), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (that *fakeRoomRepo) DeleteByCode(_ context.Context, code string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms, code)
	return nil
}

type fakePlayerRepo struct {
	mu      sync.Mutex
	players map[string]string
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: make(map[string]string)}
}

func (that *fakePlayerRepo) CreateOrUpdate(_ context.Context, player *entity.Player) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	raw, err := json.Marshal(player)
	if err != nil {
		return err
	}
	that.players[player.ID] = string(raw)
	return nil
}

func (that *fakePlayerRepo) GetByID(_ context.Context, id string) (*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	raw, ok := that.players[id]
	if !ok {
		return nil, repository.ErrPlayerNotFound
	}

	var player entity.Player
	if err := json.Unmarshal([]byte(raw), &player); err != nil {
		return nil, err
	}
	return &player, nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*entity.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*entity.Ticket)}
}

func (that *fakeTicketRepo) CreateOrUpdate(_ context.Context, ticket *entity.Ticket) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	copied := *ticket
	that.tickets[ticket.ID] = &copied
	return nil
}

func (that *fakeTicketRepo) GetByID(_ context.Context, id string) (*entity.Ticket, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	ticket, ok := that.tickets[id]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}

	copied := *ticket
	return &copied, nil
}

func (that *fakeTicketRepo) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.tickets, id)
	return nil
}

func (that *fakeTicketRepo) FindWaiting(_ context.Context, playerID string) (*entity.Ticket, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, ticket := range that.tickets {
		if ticket.Status == entity.TicketWaiting && ticket.Player1 != playerID {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, repository.ErrTicketNotFound
}

func (that *fakeTicketRepo) Claim(_ context.Context, id, playerID string) (bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	ticket, ok := that.tickets[id]
	if !ok || ticket.Status != entity.TicketWaiting {
		return false, nil
	}

	ticket.Status = entity.TicketMatched
	ticket.Player2 = playerID
	return true, nil
}

func (that *fakeTicketRepo) WithdrawIfWaiting(_ context.Context, id string) (bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	ticket, ok := that.tickets[id]
	if !ok || ticket.Status != entity.TicketWaiting {
		return false, nil
	}

	delete(that.tickets, id)
	return true, nil
}

// fakeBroker records published snapshots instead of fanning them out.
type fakeBroker struct {
	mu      sync.Mutex
	rooms   []*entity.Room
	tickets []*entity.Ticket
}

func (that *fakeBroker) PublishRoom(_ context.Context, room *entity.Room) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	copied := *room
	that.rooms = append(that.rooms, &copied)
	return nil
}

func (that *fakeBroker) PublishTicket(_ context.Context, ticket *entity.Ticket) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	copied := *ticket
	that.tickets = append(that.tickets, &copied)
	return nil
}

func (that *fakeBroker) lastTicket() *entity.Ticket {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.tickets) == 0 {
		return nil
	}
	return that.tickets[len(that.tickets)-1]
}
