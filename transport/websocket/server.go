package websocket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
	"github.com/rocketscienceinc/xo-arena-backend/internal/pkg"
	"github.com/rocketscienceinc/xo-arena-backend/internal/realtime"
	"github.com/rocketscienceinc/xo-arena-backend/internal/service"
)

var errClientClosed = errors.New("client sent close frame")

// client is one upgraded connection. The lock serializes frames from the
// read-loop replies and the room forwarder, and guards the room binding and
// subscription cancel funcs, which the ticket watcher goroutine mutates
// concurrently with the read loop.
type client struct {
	mu    sync.Mutex
	bufrw *bufio.ReadWriter

	player   *entity.Player
	roomCode string

	cancelRoomSub   func()
	cancelTicketSub func()
}

func (that *client) currentRoom() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.roomCode
}

// setRoomWatch swaps in a new room subscription, cancelling the previous one.
func (that *client) setRoomWatch(code string, cancel func()) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.cancelRoomSub != nil {
		that.cancelRoomSub()
	}
	that.cancelRoomSub = cancel
	that.roomCode = code
}

func (that *client) setTicketWatch(cancel func()) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.cancelTicketSub != nil {
		that.cancelTicketSub()
	}
	that.cancelTicketSub = cancel
}

type Server struct {
	logger *slog.Logger

	players     service.PlayerService
	sessions    service.SessionService
	matchmaking service.MatchmakingService
	broker      *realtime.Broker

	handlers map[string]func(ctx context.Context, cli *client, message *Message) error
}

func New(logger *slog.Logger, players service.PlayerService, sessions service.SessionService, matchmaking service.MatchmakingService, broker *realtime.Broker) *Server {
	server := &Server{
		logger:      logger.With("component", "websocket"),
		players:     players,
		sessions:    sessions,
		matchmaking: matchmaking,
		broker:      broker,

		handlers: make(map[string]func(context.Context, *client, *Message) error),
	}

	server.handlers["connect"] = server.handleConnect
	server.handlers["game:new"] = server.handleNewGame
	server.handlers["game:join"] = server.handleJoinGame
	server.handlers["game:ready"] = server.handleReady
	server.handlers["game:turn"] = server.handleTurn
	server.handlers["game:action"] = server.handleAction
	server.handlers["game:reset"] = server.handleReset
	server.handlers["game:leave"] = server.handleLeave
	server.handlers["game:quick"] = server.handleQuickGame
	server.handlers["chat:message"] = server.handleChatMessage

	return server
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx) //nolint: contextcheck // detached shutdown context
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	if req.Header.Get("Upgrade") != "websocket" {
		http.Error(writer, "not a websocket upgrade", http.StatusBadRequest)
		return
	}

	key := req.Header.Get("Sec-WebSocket-Key")
	acceptKey := pkg.GenerateAcceptKey(key)

	writer.Header().Set("Upgrade", "websocket")
	writer.Header().Set("Connection", "Upgrade")
	writer.Header().Set("Sec-WebSocket-Accept", acceptKey)
	writer.WriteHeader(http.StatusSwitchingProtocols)

	hijacker, ok := writer.(http.Hijacker)
	if !ok {
		log.Error("web server does not support hijacking")
		return
	}

	conn, bufrw, err := hijacker.Hijack()
	if err != nil {
		log.Error("failed to hijack connection", "error", err)
		return
	}

	defer conn.Close()

	log.Info("WebSocket connection established", "remote", conn.RemoteAddr())

	cli := &client{bufrw: bufrw}
	defer that.teardown(cli)

	if err = that.handleMessages(ctx, cli); err != nil && !errors.Is(err, errClientClosed) {
		log.Error("error handling messages", "error", err)
	}
}

// handleMessages - processes messages from the client until it disconnects.
func (that *Server) handleMessages(ctx context.Context, cli *client) error {
	log := that.logger.With("method", "handleMessages")

	for {
		reqBody, err := readRequest(cli.bufrw)
		if err != nil {
			return err
		}

		var message Message
		if err = json.Unmarshal(reqBody, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			continue
		}

		if err = handler(ctx, cli, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// teardown releases the client's subscriptions and frees its symbol slot so
// the game survives the drop and the player can reclaim the seat.
func (that *Server) teardown(cli *client) {
	log := that.logger.With("method", "teardown")

	cli.stopWatching()

	if cli.player == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := that.sessions.VacateOnDisconnect(ctx, cli.player); err != nil {
		log.Error("failed to vacate seat on disconnect", "player", cli.player.ID, "error", err)
	}

	log.Info("player disconnected", "player", cli.player.ID)
}

func (that *client) stopWatching() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.cancelRoomSub != nil {
		that.cancelRoomSub()
		that.cancelRoomSub = nil
	}
	if that.cancelTicketSub != nil {
		that.cancelTicketSub()
		that.cancelTicketSub = nil
	}
	that.roomCode = ""
}

// watchRoom subscribes the client to its room's snapshot stream and forwards
// every update as a player-relative view. Replaces any previous watch.
func (that *Server) watchRoom(ctx context.Context, cli *client, code string) {
	updates, cancel := that.broker.SubscribeRoom(ctx, code)
	cli.setRoomWatch(code, cancel)

	playerID := cli.player.ID

	go func() {
		for room := range updates {
			view := service.Reduce(room, playerID)
			if err := that.sendView(cli, "game:update", view); err != nil {
				that.logger.Error("failed to forward room update", "room", code, "error", err)
				return
			}
		}
	}()
}

// watchTicket subscribes the client to its matchmaking ticket and switches
// over to the matched room the moment one is announced.
func (that *Server) watchTicket(ctx context.Context, cli *client, ticketID string) {
	updates, cancel := that.broker.SubscribeTicket(ctx, ticketID)
	cli.setTicketWatch(cancel)

	go func() {
		for ticket := range updates {
			if ticket.IsWaiting() {
				continue
			}

			roomCode := ticket.RoomCode
			if roomCode == "" {
				roomCode = ticket.ID
			}

			if err := that.joinMatchedRoom(ctx, cli, ticketID, roomCode); err != nil {
				that.logger.Error("failed to enter matched room", "ticket", ticketID, "error", err)
			}
			return
		}
	}()
}

func (that *Server) joinMatchedRoom(ctx context.Context, cli *client, ticketID, roomCode string) error {
	room, err := that.matchmaking.ConfirmMatched(ctx, cli.player.ID, ticketID)
	if err != nil {
		return err
	}

	that.watchRoom(ctx, cli, room.Code)

	return that.sendView(cli, "game:quick", service.Reduce(room, cli.player.ID))
}

func (that *Server) sendView(cli *client, action string, view service.SessionView) error {
	return that.sendMessage(cli, action, Payload{
		Player:    cli.player,
		Room:      view.Room,
		LocalMark: view.LocalMark,
		YourTurn:  view.YourTurn,
	})
}

func (that *Server) sendErrorResponse(cli *client, action, errorMsg string) error {
	if err := that.sendMessage(cli, action, Payload{Error: errorMsg}); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}
