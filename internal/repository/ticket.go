package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
)

var ErrTicketNotFound = errors.New("ticket not found")

const ticketKeyPattern = "ticket:*"

// claimScript flips a waiting ticket to matched and records the claimer in a
// single Redis round trip. Two clients racing for the same ticket cannot both
// win: the script only succeeds while the stored status is still "waiting".
var claimScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return 0 end
local ticket = cjson.decode(raw)
if ticket.status ~= "waiting" then return 0 end
ticket.status = "matched"
ticket.player2 = ARGV[1]
redis.call("SET", KEYS[1], cjson.encode(ticket))
return 1
`)

// withdrawScript deletes a ticket only while it is still waiting, so a
// matchmaking timeout can never tear down a ticket someone just claimed.
var withdrawScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return 0 end
local ticket = cjson.decode(raw)
if ticket.status ~= "waiting" then return 0 end
redis.call("DEL", KEYS[1])
return 1
`)

type TicketRepository interface {
	CreateOrUpdate(ctx context.Context, ticket *entity.Ticket) error
	GetByID(ctx context.Context, id string) (*entity.Ticket, error)
	DeleteByID(ctx context.Context, id string) error

	// FindWaiting returns some waiting ticket not owned by playerID, or
	// ErrTicketNotFound when nobody is queued.
	FindWaiting(ctx context.Context, playerID string) (*entity.Ticket, error)

	// Claim atomically flips a waiting ticket to matched for playerID.
	// Returns false when the ticket is gone or already claimed.
	Claim(ctx context.Context, id, playerID string) (bool, error)

	// WithdrawIfWaiting deletes the ticket unless it has been claimed.
	// Returns false when the claim won the race.
	WithdrawIfWaiting(ctx context.Context, id string) (bool, error)
}

type dbTicket struct {
	client *redis.Client
}

func NewTicketRepository(client *redis.Client) TicketRepository {
	return &dbTicket{
		client: client,
	}
}

func (that *dbTicket) CreateOrUpdate(ctx context.Context, ticket *entity.Ticket) error {
	ticketJSON, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	ticketKey := "ticket:" + ticket.ID
	if err = that.client.Set(ctx, ticketKey, ticketJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set ticket: %w", err)
	}

	return nil
}

func (that *dbTicket) GetByID(ctx context.Context, id string) (*entity.Ticket, error) {
	ticketKey := "ticket:" + id

	response, err := that.client.Get(ctx, ticketKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrTicketNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get ticket by ID: %w", err)
	}

	var existingTicket entity.Ticket
	if err = json.Unmarshal([]byte(response), &existingTicket); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket: %w", err)
	}

	return &existingTicket, nil
}

func (that *dbTicket) DeleteByID(ctx context.Context, id string) error {
	ticketKey := "ticket:" + id

	if err := that.client.Del(ctx, ticketKey).Err(); err != nil {
		return fmt.Errorf("failed to delete ticket by ID: %w", err)
	}

	return nil
}

func (that *dbTicket) FindWaiting(ctx context.Context, playerID string) (*entity.Ticket, error) {
	var cursor uint64

	for {
		keys, next, err := that.client.Scan(ctx, cursor, ticketKeyPattern, 64).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan tickets: %w", err)
		}

		for _, key := range keys {
			response, err := that.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to get ticket %s: %w", key, err)
			}

			var ticket entity.Ticket
			if err = json.Unmarshal([]byte(response), &ticket); err != nil {
				return nil, fmt.Errorf("failed to unmarshal ticket %s: %w", key, err)
			}

			if ticket.IsWaiting() && ticket.Player1 != playerID {
				return &ticket, nil
			}
		}

		cursor = next
		if cursor == 0 {
			return nil, ErrTicketNotFound
		}
	}
}

func (that *dbTicket) Claim(ctx context.Context, id, playerID string) (bool, error) {
	claimed, err := claimScript.Run(ctx, that.client, []string{"ticket:" + id}, playerID).Int()
	if err != nil {
		return false, fmt.Errorf("failed to claim ticket: %w", err)
	}

	return claimed == 1, nil
}

func (that *dbTicket) WithdrawIfWaiting(ctx context.Context, id string) (bool, error) {
	withdrawn, err := withdrawScript.Run(ctx, that.client, []string{"ticket:" + id}).Int()
	if err != nil {
		return false, fmt.Errorf("failed to withdraw ticket: %w", err)
	}

	return withdrawn == 1, nil
}
