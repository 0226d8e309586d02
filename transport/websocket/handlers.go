package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/xo-arena-backend/internal/apperror"
	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
	"github.com/rocketscienceinc/xo-arena-backend/internal/service"
)

var errNotConnected = errors.New("client has not connected yet")

func decodePayload(msg *Message) (*Payload, error) {
	var payload Payload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}
	return &payload, nil
}

// handleConnect resolves the client's session. A returning player bound to a
// live room is put straight back into it: the vacant seat is reclaimed and the
// current snapshot replayed.
func (that *Server) handleConnect(ctx context.Context, cli *client, msg *Message) error {
	log := that.logger.With("method", "handleConnect")

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	var id, name string
	if payloadReq.Player != nil {
		id = payloadReq.Player.ID
		name = payloadReq.Player.Name
	}

	player, err := that.players.GetOrCreatePlayer(ctx, id, name)
	if err != nil {
		log.Error("failed to create or get player", "error", err)
		return that.sendErrorResponse(cli, msg.Action, "failed to create a new player")
	}

	cli.player = player

	if player.RoomCode != "" {
		room, joinErr := that.sessions.JoinRoom(ctx, player, player.RoomCode)
		if joinErr == nil {
			that.watchRoom(ctx, cli, room.Code)
			return that.sendView(cli, msg.Action, service.Reduce(room, player.ID))
		}

		log.Info("stale room binding dropped", "player", player.ID, "room", player.RoomCode, "error", joinErr)
		player.RoomCode = ""
		player.Mark = ""
		if err = that.players.UpdatePlayer(ctx, player); err != nil {
			log.Error("failed to clear stale room binding", "player", player.ID, "error", err)
		}
	}

	log.Info("successfully connected player", "player", player.ID)

	return that.sendMessage(cli, msg.Action, Payload{Player: player})
}

// handleNewGame opens a room. A bot room starts at once with the player as X;
// a private room waits for a second player to join by code.
func (that *Server) handleNewGame(ctx context.Context, cli *client, msg *Message) error {
	log := that.logger.With("method", "handleNewGame")

	if cli.player == nil {
		return errNotConnected
	}

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	mode := payloadReq.Mode
	if mode == "" {
		mode = entity.ModeClassic
	}

	var room *entity.Room
	if payloadReq.Type == entity.WithBotType {
		room, err = that.sessions.CreateBotRoom(ctx, cli.player, mode, payloadReq.Blitz, payloadReq.Gambit)
	} else {
		room, err = that.sessions.CreateRoom(ctx, cli.player, mode, payloadReq.Blitz, payloadReq.Gambit)
	}
	if err != nil {
		log.Error("failed to create room", "error", err)
		return that.sendErrorResponse(cli, msg.Action, "failed to create a new game")
	}

	that.watchRoom(ctx, cli, room.Code)

	log.Info("room created", "room", room.Code, "mode", room.Mode, "type", room.Type)

	return that.sendView(cli, msg.Action, service.Reduce(room, cli.player.ID))
}

func (that *Server) handleJoinGame(ctx context.Context, cli *client, msg *Message) error {
	log := that.logger.With("method", "handleJoinGame")

	if cli.player == nil {
		return errNotConnected
	}

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Room == nil || payloadReq.Room.Code == "" {
		return that.sendErrorResponse(cli, msg.Action, "room code is required")
	}

	room, err := that.sessions.JoinRoom(ctx, cli.player, payloadReq.Room.Code)
	if err != nil {
		log.Error("failed to join room", "room", payloadReq.Room.Code, "error", err)
		return that.sendErrorResponse(cli, msg.Action, fmt.Sprintf("room %s: %v", payloadReq.Room.Code, err))
	}

	that.watchRoom(ctx, cli, room.Code)

	log.Info("player joined room", "player", cli.player.ID, "room", room.Code)

	return that.sendView(cli, msg.Action, service.Reduce(room, cli.player.ID))
}

func (that *Server) handleReady(ctx context.Context, cli *client, msg *Message) error {
	log := that.logger.With("method", "handleReady")

	if cli.player == nil {
		return errNotConnected
	}

	code := cli.currentRoom()
	if code == "" {
		return that.sendErrorResponse(cli, msg.Action, "not in a room")
	}

	room, err := that.sessions.MarkReady(ctx, cli.player, code)
	if err != nil {
		log.Error("failed to mark ready", "room", code, "error", err)
		return that.sendErrorResponse(cli, msg.Action, "failed to confirm readiness")
	}

	return that.sendView(cli, msg.Action, service.Reduce(room, cli.player.ID))
}

// handleTurn plays a strike. Stale-click errors are swallowed: the client
// acted on an outdated snapshot and the next update corrects it.
func (that *Server) handleTurn(ctx context.Context, cli *client, msg *Message) error {
	log := that.logger.With("method", "handleTurn")

	if cli.player == nil {
		return errNotConnected
	}

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Cell == nil {
		return that.sendErrorResponse(cli, msg.Action, "cell is required")
	}

	room, err := that.sessions.MakeTurn(ctx, cli.player.ID, cli.currentRoom(), *payloadReq.Cell)
	if err != nil {
		return that.replyMoveError(cli, msg.Action, log, err)
	}

	return that.sendView(cli, msg.Action, service.Reduce(room, cli.player.ID))
}

// handleAction plays an explicit ply (strike, defend or sacrifice) in a
// tactical room.
func (that *Server) handleAction(ctx context.Context, cli *client, msg *Message) error {
	log := that.logger.With("method", "handleAction")

	if cli.player == nil {
		return errNotConnected
	}

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Cell == nil {
		return that.sendErrorResponse(cli, msg.Action, "cell is required")
	}

	action := payloadReq.Action
	if action == "" {
		action = entity.ActionStrike
	}

	room, _, err := that.sessions.MakeAction(ctx, cli.player.ID, cli.currentRoom(), action, *payloadReq.Cell)
	if err != nil {
		return that.replyMoveError(cli, msg.Action, log, err)
	}

	return that.sendView(cli, msg.Action, service.Reduce(room, cli.player.ID))
}

// replyMoveError applies the move error policy: stale clicks vanish, blocked
// tactical actions come back as a notice with state unchanged, everything
// else is a real error.
func (that *Server) replyMoveError(cli *client, action string, log *slog.Logger, err error) error {
	if apperror.IsIllegalMove(err) {
		log.Debug("dropped stale move", "player", cli.player.ID, "reason", err)
		return nil
	}

	if apperror.IsActionUnavailable(err) {
		return that.sendMessage(cli, action, Payload{Notice: err.Error()})
	}

	return that.sendErrorResponse(cli, action, fmt.Sprintf("failed to make move: %v", err))
}

func (that *Server) handleReset(ctx context.Context, cli *client, msg *Message) error {
	log := that.logger.With("method", "handleReset")

	if cli.player == nil {
		return errNotConnected
	}

	code := cli.currentRoom()

	room, err := that.sessions.ResetForRematch(ctx, cli.player.ID, code)
	if err != nil {
		log.Error("failed to reset room", "room", code, "error", err)
		return that.sendErrorResponse(cli, msg.Action, "failed to start a rematch")
	}

	log.Info("rematch started", "room", room.Code)

	return that.sendView(cli, msg.Action, service.Reduce(room, cli.player.ID))
}

func (that *Server) handleLeave(ctx context.Context, cli *client, msg *Message) error {
	log := that.logger.With("method", "handleLeave")

	if cli.player == nil {
		return errNotConnected
	}

	code := cli.currentRoom()
	if code == "" {
		return that.sendMessage(cli, msg.Action, Payload{Player: cli.player})
	}

	if err := that.sessions.LeaveRoom(ctx, cli.player, code); err != nil {
		log.Error("failed to leave room", "room", code, "error", err)
		return that.sendErrorResponse(cli, msg.Action, "failed to leave the game")
	}

	cli.stopWatching()

	log.Info("player left room", "player", cli.player.ID)

	return that.sendMessage(cli, msg.Action, Payload{Player: cli.player})
}

// handleQuickGame requests an opponent. An instant match answers with the
// started room; otherwise the client watches its ticket until someone claims
// it or the bot fallback kicks in.
func (that *Server) handleQuickGame(ctx context.Context, cli *client, msg *Message) error {
	log := that.logger.With("method", "handleQuickGame")

	if cli.player == nil {
		return errNotConnected
	}

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	mode := payloadReq.Mode
	if mode == "" {
		mode = entity.ModeClassic
	}

	result, err := that.matchmaking.QuickMatch(ctx, cli.player, mode, payloadReq.Blitz, payloadReq.Gambit)
	if err != nil {
		log.Error("failed to run quick match", "error", err)
		return that.sendErrorResponse(cli, msg.Action, "failed to find an opponent")
	}

	if result.Room != nil {
		that.watchRoom(ctx, cli, result.Room.Code)
		return that.sendView(cli, msg.Action, service.Reduce(result.Room, cli.player.ID))
	}

	that.watchTicket(ctx, cli, result.Ticket.ID)

	log.Info("player is waiting for an opponent", "ticket", result.Ticket.ID)

	return that.sendMessage(cli, msg.Action, Payload{Player: cli.player, Ticket: result.Ticket})
}

func (that *Server) handleChatMessage(ctx context.Context, cli *client, msg *Message) error {
	log := that.logger.With("method", "handleChatMessage")

	if cli.player == nil {
		return errNotConnected
	}

	payloadReq, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payloadReq.Text == "" {
		return nil
	}

	code := cli.currentRoom()
	if _, err = that.sessions.SendChat(ctx, cli.player, code, payloadReq.Text); err != nil {
		log.Error("failed to relay chat message", "room", code, "error", err)
		return that.sendErrorResponse(cli, msg.Action, "failed to send message")
	}

	return nil
}
