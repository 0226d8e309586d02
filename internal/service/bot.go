package service

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
	"github.com/rocketscienceinc/xo-arena-backend/internal/tactical"
)

var (
	ErrBotNotFound      = errors.New("bot player not found")
	ErrNoAvailableMoves = errors.New("no available moves")
)

type BotService interface {
	// MakeTurn plays the bot's reply on the room and returns the chosen cell.
	MakeTurn(room *entity.Room) (int, error)
}

type botService struct{}

func NewBotService() BotService {
	return &botService{}
}

func (that *botService) MakeTurn(room *entity.Room) (int, error) {
	var botPlayer *entity.Player
	for _, player := range room.Players {
		if player != nil && player.IsBot() {
			botPlayer = player
			break
		}
	}

	if botPlayer == nil {
		return 0, ErrBotNotFound
	}

	cell, err := ChooseCell(room, botPlayer.Mark)
	if err != nil {
		return 0, err
	}

	if room.IsTactical() {
		if _, err = tactical.ApplyAction(room, botPlayer.Mark, entity.ActionStrike, cell); err != nil {
			return 0, fmt.Errorf("bot failed to make turn: %w", err)
		}
		return cell, nil
	}

	if err = room.ApplyStrike(botPlayer.Mark, cell); err != nil {
		return 0, fmt.Errorf("bot failed to make turn: %w", err)
	}

	return cell, nil
}

// ChooseCell is the greedy heuristic: complete an own line, else block the
// opponent's, else take the center, else pick uniformly at random. The two
// scan steps break ties by ascending index.
func ChooseCell(room *entity.Room, mark string) (int, error) {
	candidates := availableCells(room)
	if len(candidates) == 0 {
		return 0, ErrNoAvailableMoves
	}

	for _, target := range []string{mark, entity.Opponent(mark)} {
		for _, cell := range candidates {
			trial := room.Board
			trial[cell] = target
			if result := trial.DetermineResult(); result != nil && result.Winner == target {
				return cell, nil
			}
		}
	}

	const center = 4
	for _, cell := range candidates {
		if cell == center {
			return center, nil
		}
	}

	return candidates[rand.Intn(len(candidates))], nil //nolint: gosec // it's ok
}

func availableCells(room *entity.Room) []int {
	if room.IsTactical() {
		return tactical.StrikeableCells(room)
	}

	cells := make([]int, 0, len(room.Board))
	for i, cell := range room.Board {
		if cell == entity.EmptyCell {
			cells = append(cells, i)
		}
	}
	return cells
}
