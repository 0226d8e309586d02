package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/xo-arena-backend/internal/apperror"
	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
	"github.com/rocketscienceinc/xo-arena-backend/internal/pkg"
	"github.com/rocketscienceinc/xo-arena-backend/internal/tactical"
)

// SessionView is the per-player projection of a published room snapshot: the
// shared document plus the fields that only make sense relative to one player.
type SessionView struct {
	Room      *entity.Room
	LocalMark string
	YourTurn  bool
}

type roomPublisher interface {
	PublishRoom(ctx context.Context, room *entity.Room) error
}

type SessionService interface {
	CreateRoom(ctx context.Context, player *entity.Player, mode string, blitz, gambit bool) (*entity.Room, error)
	JoinRoom(ctx context.Context, player *entity.Player, code string) (*entity.Room, error)
	MarkReady(ctx context.Context, player *entity.Player, code string) (*entity.Room, error)
	MakeTurn(ctx context.Context, playerID, code string, cell int) (*entity.Room, error)
	MakeAction(ctx context.Context, playerID, code, action string, cell int) (*entity.Room, *tactical.Outcome, error)
	ResetForRematch(ctx context.Context, playerID, code string) (*entity.Room, error)
	LeaveRoom(ctx context.Context, player *entity.Player, code string) error
	SendChat(ctx context.Context, player *entity.Player, code, text string) (*entity.Room, error)
	CreateBotRoom(ctx context.Context, player *entity.Player, mode string, blitz, gambit bool) (*entity.Room, error)
	VacateOnDisconnect(ctx context.Context, player *entity.Player) error
}

type sessionService struct {
	logger *slog.Logger

	roomService   RoomService
	playerService PlayerService
	botService    BotService
	broker        roomPublisher
	blitz         *BlitzRunner
}

func NewSessionService(logger *slog.Logger, roomService RoomService, playerService PlayerService, botService BotService, broker roomPublisher, blitz *BlitzRunner) SessionService {
	session := &sessionService{
		logger:        logger.With("component", "session"),
		roomService:   roomService,
		playerService: playerService,
		botService:    botService,
		broker:        broker,
		blitz:         blitz,
	}

	blitz.SetExpiryHandler(session.forceBlitzMove)

	return session
}

// CreateRoom opens a fresh private room for the player. A player already
// registered in a live room gets that room back instead of a second one.
func (that *sessionService) CreateRoom(ctx context.Context, player *entity.Player, mode string, blitz, gambit bool) (*entity.Room, error) {
	if player.RoomCode != "" {
		existing, err := that.roomService.GetRoomByCode(ctx, player.RoomCode)
		if err == nil && !existing.IsEnded() && existing.SlotOf(player.ID) != "" {
			return existing, nil
		}
	}

	room, err := that.roomService.CreateRoom(ctx, player, mode, entity.PrivateType, blitz, gambit)
	if err != nil {
		return nil, err
	}

	player.RoomCode = room.Code
	if err = that.playerService.UpdatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to bind player to room: %w", err)
	}

	that.publish(ctx, room)

	return room, nil
}

// JoinRoom admits a player into a room by code. A waiting room gets them as
// the provisional joiner; an active room with a vacant symbol slot treats the
// join as a reconnection and hands the vacant symbol over.
func (that *sessionService) JoinRoom(ctx context.Context, player *entity.Player, code string) (*entity.Room, error) {
	room, err := that.roomService.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if slot := room.SlotOf(player.ID); slot != "" {
		return room, nil
	}

	switch {
	case room.IsEnded():
		return nil, apperror.ErrGameFinished

	case room.IsWaiting():
		if room.Players[entity.SlotJoiner] != nil {
			return nil, apperror.ErrRoomFull
		}
		room.Players[entity.SlotJoiner] = player
		room.Ready.CreatorCanStart = true

	case room.IsActive():
		mark := room.VacantSymbol()
		if mark == "" {
			return nil, apperror.ErrRoomFull
		}
		player.Mark = mark
		room.Players[mark] = player

	default:
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownRoomStatus, room.Status)
	}

	player.RoomCode = room.Code
	if err = that.playerService.UpdatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to bind player to room: %w", err)
	}

	if err = that.roomService.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}

	that.publish(ctx, room)

	return room, nil
}

// MarkReady records the player's ready confirmation. The moment both flags are
// up the server starts the game itself: symbols and the opening turn are drawn
// and the provisional slots are re-keyed to the drawn symbols.
func (that *sessionService) MarkReady(ctx context.Context, player *entity.Player, code string) (*entity.Room, error) {
	room, err := that.roomService.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if !room.IsWaiting() {
		return room, nil
	}

	switch room.SlotOf(player.ID) {
	case entity.SlotCreator:
		room.Ready.Creator = true
	case entity.SlotJoiner:
		room.Ready.Joiner = true
	default:
		return nil, apperror.ErrGameIsNotStarted
	}

	if room.Ready.Creator && room.Ready.Joiner &&
		room.Players[entity.SlotCreator] != nil && room.Players[entity.SlotJoiner] != nil {
		if err = that.startWithRandomSymbols(ctx, room); err != nil {
			return nil, err
		}
	}

	if err = that.roomService.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}

	that.publish(ctx, room)

	if room.IsActive() && room.Blitz {
		that.blitz.Arm(room.Code)
	}

	return room, nil
}

// startWithRandomSymbols flips the two independent coins: who gets which
// symbol and which symbol opens. Neither draw biases the other.
func (that *sessionService) startWithRandomSymbols(ctx context.Context, room *entity.Room) error {
	creator := room.Players[entity.SlotCreator]
	joiner := room.Players[entity.SlotJoiner]

	creatorMark, joinerMark := entity.RandomMarks()
	creator.Mark = creatorMark
	joiner.Mark = joinerMark

	room.Players = map[string]*entity.Player{
		creatorMark: creator,
		joinerMark:  joiner,
	}

	room.Turn = entity.RandomFirstTurn()
	room.Status = entity.StatusActive
	room.StartedAt = time.Now().Unix()

	// The slots hold copies unmarshalled from the stored document; re-bind
	// them before persisting so the room binding survives the game start.
	for _, player := range []*entity.Player{creator, joiner} {
		player.RoomCode = room.Code
		if err := that.playerService.UpdatePlayer(ctx, player); err != nil {
			return fmt.Errorf("failed to persist assigned symbol: %w", err)
		}
	}

	that.logger.Info("game started",
		"room", room.Code, "first_turn", room.Turn, "creator_mark", creatorMark)

	return nil
}

// MakeTurn plays a classic strike, or a tactical strike in tactical rooms.
func (that *sessionService) MakeTurn(ctx context.Context, playerID, code string, cell int) (*entity.Room, error) {
	room, _, err := that.applyMove(ctx, playerID, code, entity.ActionStrike, cell)
	return room, err
}

// MakeAction plays an explicit tactical ply and reports its side effects.
func (that *sessionService) MakeAction(ctx context.Context, playerID, code, action string, cell int) (*entity.Room, *tactical.Outcome, error) {
	return that.applyMove(ctx, playerID, code, action, cell)
}

func (that *sessionService) applyMove(ctx context.Context, playerID, code, action string, cell int) (*entity.Room, *tactical.Outcome, error) {
	room, err := that.roomService.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	if err = room.ConfirmActiveState(); err != nil {
		return nil, nil, err
	}

	mark := room.SymbolOf(playerID)
	if mark == "" {
		return nil, nil, apperror.ErrNotYourTurn
	}

	var outcome *tactical.Outcome
	if room.IsTactical() {
		outcome, err = tactical.ApplyAction(room, mark, action, cell)
	} else {
		if action != entity.ActionStrike {
			err = tactical.ErrNotTactical
		} else {
			err = room.ApplyStrike(mark, cell)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	room.AppendMove(entity.MoveRecord{
		Player:    mark,
		Position:  cell,
		Action:    action,
		Timestamp: time.Now().Unix(),
	})

	if err = that.replyWithBot(room); err != nil {
		return nil, nil, err
	}

	if err = that.roomService.UpdateRoom(ctx, room); err != nil {
		return nil, nil, err
	}

	that.publish(ctx, room)
	that.rearmBlitz(room)

	return room, outcome, nil
}

// replyWithBot lets the bot answer immediately when the room hosts one and
// the game is still open after the human's ply.
func (that *sessionService) replyWithBot(room *entity.Room) error {
	if !room.IsWithBot() || room.GameEnded || !room.IsActive() {
		return nil
	}

	bot := room.Players[room.Turn]
	if bot == nil || !bot.IsBot() {
		return nil
	}

	cell, err := that.botService.MakeTurn(room)
	if err != nil {
		return fmt.Errorf("failed to play bot reply: %w", err)
	}

	room.AppendMove(entity.MoveRecord{
		Player:    bot.Mark,
		Position:  cell,
		Action:    entity.ActionStrike,
		Timestamp: time.Now().Unix(),
	})

	return nil
}

func (that *sessionService) rearmBlitz(room *entity.Room) {
	if !room.Blitz {
		return
	}

	if room.GameEnded || !room.IsActive() {
		that.blitz.Cancel(room.Code)
		return
	}

	that.blitz.Arm(room.Code)
}

// forceBlitzMove is the blitz-expiry handler: the player on the clock gets a
// uniformly random strike played on their behalf.
func (that *sessionService) forceBlitzMove(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	room, err := that.roomService.GetRoomByCode(ctx, code)
	if err != nil {
		that.logger.Error("failed to load room for forced move", "room", code, "error", err)
		return
	}

	if room.ConfirmActiveState() != nil {
		return
	}

	mark := room.Turn
	outcome, err := tactical.ForcedStrike(room, mark)
	if err != nil {
		that.logger.Error("failed to play forced move", "room", code, "error", err)
		return
	}

	room.AppendMove(entity.MoveRecord{
		Player:    mark,
		Position:  outcome.Cell,
		Action:    entity.ActionStrike,
		Forced:    true,
		Timestamp: time.Now().Unix(),
	})

	if err = that.replyWithBot(room); err != nil {
		that.logger.Error("failed to play bot reply after forced move", "room", code, "error", err)
		return
	}

	if err = that.roomService.UpdateRoom(ctx, room); err != nil {
		that.logger.Error("failed to persist forced move", "room", code, "error", err)
		return
	}

	that.publish(ctx, room)
	that.rearmBlitz(room)
}

// ResetForRematch wipes the board of an ended room for a fresh game between
// the same players. X opens the rematch; tactical resources start over.
func (that *sessionService) ResetForRematch(ctx context.Context, playerID, code string) (*entity.Room, error) {
	room, err := that.roomService.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if room.SlotOf(playerID) == "" {
		return nil, apperror.ErrResetNotAllowed
	}

	if !room.IsEnded() {
		return nil, apperror.ErrResetNotAllowed
	}

	room.Board = entity.Board{}
	room.Winner = nil
	room.GameEnded = false
	room.Status = entity.StatusActive
	room.Turn = entity.PlayerX
	room.Moves = nil
	room.StartedAt = time.Now().Unix()

	if room.IsTactical() {
		room.Tactical = entity.NewTacticalState()
	}

	if err = that.roomService.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}

	that.publish(ctx, room)
	that.rearmBlitz(room)

	return room, nil
}

// LeaveRoom removes the player from the room. The room survives as long as a
// human remains in it; the last human out deletes the document.
func (that *sessionService) LeaveRoom(ctx context.Context, player *entity.Player, code string) error {
	room, err := that.roomService.GetRoomByCode(ctx, code)
	if err != nil {
		return err
	}

	switch slot := room.SlotOf(player.ID); slot {
	case entity.SlotCreator:
		delete(room.Players, slot)
		room.Ready.Creator = false
	case entity.SlotJoiner:
		// The ready flag leaves with the player: a replacement joiner must
		// confirm readiness themselves.
		delete(room.Players, slot)
		room.Ready.Joiner = false
		room.Ready.CreatorCanStart = false
	default:
		if slot != "" {
			delete(room.Players, slot)
		}
	}

	player.RoomCode = ""
	player.Mark = ""
	if err = that.playerService.UpdatePlayer(ctx, player); err != nil {
		return fmt.Errorf("failed to unbind player from room: %w", err)
	}

	if room.HumanPlayers() == 0 {
		that.blitz.Cancel(room.Code)
		return that.roomService.DeleteRoom(ctx, room.Code)
	}

	if err = that.roomService.UpdateRoom(ctx, room); err != nil {
		return err
	}

	that.publish(ctx, room)

	return nil
}

// SendChat appends a chat line to the room document and republishes it.
func (that *sessionService) SendChat(ctx context.Context, player *entity.Player, code, text string) (*entity.Room, error) {
	room, err := that.roomService.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if room.SlotOf(player.ID) == "" {
		return nil, apperror.ErrGameIsNotStarted
	}

	room.AppendChat(entity.ChatMessage{
		Sender:    player.Name,
		Mark:      room.SymbolOf(player.ID),
		Text:      text,
		Timestamp: time.Now().Unix(),
	})

	if err = that.roomService.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}

	that.publish(ctx, room)

	return room, nil
}

// CreateBotRoom starts a solo game against the built-in opponent. The human
// always plays X and opens; the game begins immediately.
func (that *sessionService) CreateBotRoom(ctx context.Context, player *entity.Player, mode string, blitz, gambit bool) (*entity.Room, error) {
	code, err := pkg.GenerateRoomCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate room code: %w", err)
	}

	room := entity.NewRoom(code, mode, entity.WithBotType, blitz, gambit)

	player.Mark = entity.PlayerX
	player.RoomCode = code

	bot := entity.NewBotPlayer(code)
	bot.Mark = entity.PlayerO

	room.Players[entity.PlayerX] = player
	room.Players[entity.PlayerO] = bot
	room.Status = entity.StatusActive
	room.Turn = entity.PlayerX
	room.StartedAt = time.Now().Unix()

	if err = that.playerService.UpdatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to bind player to room: %w", err)
	}

	if err = that.roomService.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}

	that.publish(ctx, room)
	that.rearmBlitz(room)

	return room, nil
}

// VacateOnDisconnect frees the symbol slot of a dropped connection so the
// player can reclaim it on reconnect. Only active games keep the binding in
// the player record; waiting rooms treat a disconnect as a leave.
func (that *sessionService) VacateOnDisconnect(ctx context.Context, player *entity.Player) error {
	if player.RoomCode == "" {
		return nil
	}

	room, err := that.roomService.GetRoomByCode(ctx, player.RoomCode)
	if err != nil {
		return err
	}

	mark := room.SymbolOf(player.ID)
	if !room.IsActive() || mark == "" {
		return that.LeaveRoom(ctx, player, room.Code)
	}

	delete(room.Players, mark)

	if err = that.roomService.UpdateRoom(ctx, room); err != nil {
		return err
	}

	that.publish(ctx, room)

	return nil
}

func (that *sessionService) publish(ctx context.Context, room *entity.Room) {
	if err := that.broker.PublishRoom(ctx, room); err != nil {
		that.logger.Error("failed to publish room snapshot", "room", room.Code, "error", err)
	}
}

// Reduce folds a published room snapshot into the view of one player. The
// remote document always wins over anything a client cached; only the
// player-relative fields are derived locally.
func Reduce(remote *entity.Room, playerID string) SessionView {
	mark := remote.SymbolOf(playerID)

	return SessionView{
		Room:      remote,
		LocalMark: mark,
		YourTurn:  mark != "" && remote.IsActive() && remote.Turn == mark,
	}
}
