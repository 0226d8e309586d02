package service

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
	"github.com/rocketscienceinc/xo-arena-backend/internal/pkg"
)

type RoomService interface {
	CreateRoom(ctx context.Context, creator *entity.Player, mode, roomType string, blitz, gambit bool) (*entity.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*entity.Room, error)
	UpdateRoom(ctx context.Context, room *entity.Room) error
	DeleteRoom(ctx context.Context, code string) error
}

type roomRepo interface {
	CreateOrUpdate(ctx context.Context, room *entity.Room) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	DeleteByCode(ctx context.Context, code string) error
}

type roomService struct {
	roomRepo roomRepo
}

func NewRoomService(roomRepo roomRepo) RoomService {
	return &roomService{
		roomRepo: roomRepo,
	}
}

// CreateRoom publishes a fresh waiting document with the creator registered
// under the provisional creator slot; symbols come later, at game start.
// The creator is bound to the room before the first persist, so the embedded
// copy in the stored document already carries the room code.
func (that *roomService) CreateRoom(ctx context.Context, creator *entity.Player, mode, roomType string, blitz, gambit bool) (*entity.Room, error) {
	code, err := pkg.GenerateRoomCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate room code: %w", err)
	}

	room := entity.NewRoom(code, mode, roomType, blitz, gambit)
	creator.RoomCode = code
	room.Players[entity.SlotCreator] = creator

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, nil
}

func (that *roomService) GetRoomByCode(ctx context.Context, code string) (*entity.Room, error) {
	room, err := that.roomRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve room: %w", err)
	}

	return room, nil
}

func (that *roomService) UpdateRoom(ctx context.Context, room *entity.Room) error {
	if err := that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	return nil
}

func (that *roomService) DeleteRoom(ctx context.Context, code string) error {
	if err := that.roomRepo.DeleteByCode(ctx, code); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	return nil
}
