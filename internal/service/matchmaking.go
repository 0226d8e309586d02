package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
	"github.com/rocketscienceinc/xo-arena-backend/internal/pkg"
)

type ticketRepo interface {
	CreateOrUpdate(ctx context.Context, ticket *entity.Ticket) error
	GetByID(ctx context.Context, id string) (*entity.Ticket, error)
	DeleteByID(ctx context.Context, id string) error
	FindWaiting(ctx context.Context, playerID string) (*entity.Ticket, error)
	Claim(ctx context.Context, id, playerID string) (bool, error)
	WithdrawIfWaiting(ctx context.Context, id string) (bool, error)
}

type ticketPublisher interface {
	PublishRoom(ctx context.Context, room *entity.Room) error
	PublishTicket(ctx context.Context, ticket *entity.Ticket) error
}

// MatchResult is the outcome of a quick-game request: either an immediately
// started room (the requester claimed a waiting ticket) or the requester's own
// ticket to watch while an opponent is found.
type MatchResult struct {
	Room   *entity.Room
	Ticket *entity.Ticket
}

type MatchmakingService interface {
	QuickMatch(ctx context.Context, player *entity.Player, mode string, blitz, gambit bool) (*MatchResult, error)
	ConfirmMatched(ctx context.Context, playerID, ticketID string) (*entity.Room, error)
	Stop()
}

type matchmakingService struct {
	logger *slog.Logger

	ticketRepo    ticketRepo
	playerService PlayerService
	roomService   RoomService
	session       SessionService
	broker        ticketPublisher
	blitzRunner   *BlitzRunner
	timeout       time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewMatchmakingService(logger *slog.Logger, ticketRepo ticketRepo, playerService PlayerService, roomService RoomService, session SessionService, broker ticketPublisher, blitzRunner *BlitzRunner, timeout time.Duration) MatchmakingService {
	return &matchmakingService{
		logger:        logger.With("component", "matchmaking"),
		ticketRepo:    ticketRepo,
		playerService: playerService,
		roomService:   roomService,
		session:       session,
		broker:        broker,
		blitzRunner:   blitzRunner,
		timeout:       timeout,
		timers:        make(map[string]*time.Timer),
	}
}

// QuickMatch pairs the player with the oldest waiting ticket, or posts their
// own ticket when nobody is waiting. Claiming is a compare-and-set on the
// ticket document, so two simultaneous requests can never both claim it; the
// loser simply posts a ticket of their own.
func (that *matchmakingService) QuickMatch(ctx context.Context, player *entity.Player, mode string, blitz, gambit bool) (*MatchResult, error) {
	ticket, err := that.ticketRepo.FindWaiting(ctx, player.ID)
	if err == nil && ticket != nil {
		claimed, claimErr := that.ticketRepo.Claim(ctx, ticket.ID, player.ID)
		if claimErr != nil {
			return nil, fmt.Errorf("failed to claim ticket: %w", claimErr)
		}
		if claimed {
			room, startErr := that.startMatchedGame(ctx, ticket, player)
			if startErr != nil {
				return nil, startErr
			}
			return &MatchResult{Room: room}, nil
		}
	}

	return that.postTicket(ctx, player, mode, blitz, gambit)
}

// startMatchedGame builds the room for a claimed ticket. The ticket owner
// waited, so they get X and the opening move; the claimer plays O.
func (that *matchmakingService) startMatchedGame(ctx context.Context, ticket *entity.Ticket, claimer *entity.Player) (*entity.Room, error) {
	owner, err := that.playerService.GetPlayerByID(ctx, ticket.Player1)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket owner: %w", err)
	}

	room := entity.NewRoom(ticket.ID, ticket.Mode, entity.PublicType, ticket.Blitz, ticket.Gambit)

	owner.Mark = entity.PlayerX
	owner.RoomCode = room.Code
	claimer.Mark = entity.PlayerO
	claimer.RoomCode = room.Code

	room.Players[entity.PlayerX] = owner
	room.Players[entity.PlayerO] = claimer
	room.Status = entity.StatusActive
	room.Turn = entity.PlayerX
	room.StartedAt = time.Now().Unix()

	for _, player := range []*entity.Player{owner, claimer} {
		if err = that.playerService.UpdatePlayer(ctx, player); err != nil {
			return nil, fmt.Errorf("failed to bind matched player: %w", err)
		}
	}

	if err = that.roomService.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}

	matched := *ticket
	matched.Status = entity.TicketMatched
	matched.Player2 = claimer.ID
	matched.RoomCode = room.Code

	if err = that.broker.PublishRoom(ctx, room); err != nil {
		that.logger.Error("failed to publish matched room", "room", room.Code, "error", err)
	}
	if err = that.broker.PublishTicket(ctx, &matched); err != nil {
		that.logger.Error("failed to publish matched ticket", "ticket", matched.ID, "error", err)
	}

	if err = that.ticketRepo.DeleteByID(ctx, ticket.ID); err != nil {
		that.logger.Error("failed to delete claimed ticket", "ticket", ticket.ID, "error", err)
	}

	that.cancelTimer(ticket.ID)

	if room.Blitz {
		that.blitzRunner.Arm(room.Code)
	}

	that.logger.Info("quick game matched", "room", room.Code, "owner", owner.ID, "claimer", claimer.ID)

	return room, nil
}

// postTicket publishes a waiting ticket and arms the fallback countdown that
// substitutes a bot opponent when nobody claims it in time.
func (that *matchmakingService) postTicket(ctx context.Context, player *entity.Player, mode string, blitz, gambit bool) (*MatchResult, error) {
	id, err := pkg.GenerateRoomCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ticket id: %w", err)
	}

	ticket := &entity.Ticket{
		ID:        id,
		Player1:   player.ID,
		Status:    entity.TicketWaiting,
		Mode:      mode,
		Blitz:     blitz,
		Gambit:    gambit,
		CreatedAt: time.Now().Unix(),
	}

	if err = that.ticketRepo.CreateOrUpdate(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to post ticket: %w", err)
	}

	that.mu.Lock()
	that.timers[ticket.ID] = time.AfterFunc(that.timeout, func() {
		that.expireTicket(ticket.ID)
	})
	that.mu.Unlock()

	that.logger.Info("ticket posted", "ticket", ticket.ID, "player", player.ID, "mode", mode)

	return &MatchResult{Ticket: ticket}, nil
}

// expireTicket fires when a ticket sat unclaimed for the full window. The
// withdrawal is conditional on the ticket still waiting, so a claim that
// raced the timer always wins and the expiry becomes a no-op.
func (that *matchmakingService) expireTicket(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	that.cancelTimer(id)

	ticket, err := that.ticketRepo.GetByID(ctx, id)
	if err != nil {
		return
	}

	withdrawn, err := that.ticketRepo.WithdrawIfWaiting(ctx, id)
	if err != nil {
		that.logger.Error("failed to withdraw ticket", "ticket", id, "error", err)
		return
	}
	if !withdrawn {
		return
	}

	owner, err := that.playerService.GetPlayerByID(ctx, ticket.Player1)
	if err != nil {
		that.logger.Error("failed to load ticket owner for bot fallback", "ticket", id, "error", err)
		return
	}

	room, err := that.session.CreateBotRoom(ctx, owner, ticket.Mode, ticket.Blitz, ticket.Gambit)
	if err != nil {
		that.logger.Error("failed to start bot fallback game", "ticket", id, "error", err)
		return
	}

	matched := *ticket
	matched.Status = entity.TicketMatched
	matched.Player2 = room.Players[entity.PlayerO].ID
	matched.RoomCode = room.Code

	if err = that.broker.PublishTicket(ctx, &matched); err != nil {
		that.logger.Error("failed to publish bot fallback ticket", "ticket", id, "error", err)
	}

	that.logger.Info("ticket expired into bot game", "ticket", id, "room", room.Code)
}

// ConfirmMatched resolves the room behind a matched ticket notification for
// the ticket owner.
func (that *matchmakingService) ConfirmMatched(ctx context.Context, playerID, ticketID string) (*entity.Room, error) {
	player, err := that.playerService.GetPlayerByID(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if player.RoomCode == "" {
		return nil, fmt.Errorf("player %s has no matched room", playerID)
	}

	return that.roomService.GetRoomByCode(ctx, player.RoomCode)
}

func (that *matchmakingService) cancelTimer(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, ok := that.timers[id]; ok {
		timer.Stop()
		delete(that.timers, id)
	}
}

// Stop cancels every pending fallback countdown.
func (that *matchmakingService) Stop() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for id, timer := range that.timers {
		timer.Stop()
		delete(that.timers, id)
	}
}
