package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
)

const (
	roomChannelPrefix   = "room-updates:"
	ticketChannelPrefix = "ticket-updates:"

	subscriberBuffer = 16
)

// Broker fans room and ticket snapshots out over Redis pub/sub. Delivery is
// push-based and at-least-once: a publisher receives its own updates, and no
// ordering is guaranteed across different channels. Subscribers that fall
// behind lose intermediate snapshots, never the stream; the document store
// always holds the latest state.
type Broker struct {
	logger *slog.Logger
	client *redis.Client
}

func NewBroker(logger *slog.Logger, client *redis.Client) *Broker {
	return &Broker{
		logger: logger.With("component", "realtime"),
		client: client,
	}
}

// PublishRoom pushes a complete room snapshot to every subscriber of its code.
func (that *Broker) PublishRoom(ctx context.Context, room *entity.Room) error {
	payload, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room snapshot: %w", err)
	}

	if err = that.client.Publish(ctx, roomChannelPrefix+room.Code, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish room snapshot: %w", err)
	}

	return nil
}

// PublishTicket pushes a matchmaking ticket snapshot to its watchers.
func (that *Broker) PublishTicket(ctx context.Context, ticket *entity.Ticket) error {
	payload, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket snapshot: %w", err)
	}

	if err = that.client.Publish(ctx, ticketChannelPrefix+ticket.ID, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish ticket snapshot: %w", err)
	}

	return nil
}

// SubscribeRoom streams snapshots for one room until cancel is called or the
// context ends. Malformed payloads are dropped and logged, and a full
// subscriber buffer drops the oldest pending snapshot in favor of the newest.
func (that *Broker) SubscribeRoom(ctx context.Context, code string) (<-chan *entity.Room, func()) {
	sub := that.client.Subscribe(ctx, roomChannelPrefix+code)
	updates := make(chan *entity.Room, subscriberBuffer)

	go func() {
		defer close(updates)

		for message := range sub.Channel() {
			var room entity.Room
			if err := json.Unmarshal([]byte(message.Payload), &room); err != nil {
				that.logger.Error("dropping malformed room snapshot", "room", code, "error", err)
				continue
			}

			select {
			case updates <- &room:
			default:
				select {
				case <-updates:
				default:
				}
				updates <- &room
			}
		}
	}()

	return updates, func() {
		if err := sub.Close(); err != nil {
			that.logger.Error("failed to close room subscription", "room", code, "error", err)
		}
	}
}

// SubscribeTicket streams snapshots for one matchmaking ticket.
func (that *Broker) SubscribeTicket(ctx context.Context, id string) (<-chan *entity.Ticket, func()) {
	sub := that.client.Subscribe(ctx, ticketChannelPrefix+id)
	updates := make(chan *entity.Ticket, subscriberBuffer)

	go func() {
		defer close(updates)

		for message := range sub.Channel() {
			var ticket entity.Ticket
			if err := json.Unmarshal([]byte(message.Payload), &ticket); err != nil {
				that.logger.Error("dropping malformed ticket snapshot", "ticket", id, "error", err)
				continue
			}

			select {
			case updates <- &ticket:
			default:
			}
		}
	}()

	return updates, func() {
		if err := sub.Close(); err != nil {
			that.logger.Error("failed to close ticket subscription", "ticket", id, "error", err)
		}
	}
}
