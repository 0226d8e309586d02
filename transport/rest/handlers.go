package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/xo-arena-backend/internal/entity"
	"github.com/rocketscienceinc/xo-arena-backend/internal/repository"
	"github.com/rocketscienceinc/xo-arena-backend/internal/service"
)

type handler struct {
	logger *slog.Logger
	rooms  service.RoomService
}

func newHandler(logger *slog.Logger, rooms service.RoomService) *handler {
	return &handler{
		logger: logger.With("component", "rest"),
		rooms:  rooms,
	}
}

func (that *handler) ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// getRoom returns the public view of a room: the player identities are
// stripped, only the board-facing state goes out.
func (that *handler) getRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	room, err := that.rooms.GetRoomByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		that.logger.Error("failed to load room", "room", code, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(maskRoomDetails(room)); err != nil {
		that.logger.Error("failed to encode room", "room", code, "error", err)
	}
}

// maskRoomDetails hides player identities from the public payload.
func maskRoomDetails(room *entity.Room) *entity.Room {
	masked := *room
	masked.Players = nil
	masked.Chat = nil
	return &masked
}
