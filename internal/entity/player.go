package entity

const botIDPrefix = "bot:"

type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Mark     string `json:"mark,omitempty"`
	RoomCode string `json:"room_code,omitempty"`
}

func NewBotPlayer(roomCode string) *Player {
	return &Player{
		ID:       botIDPrefix + roomCode,
		Name:     "Computer",
		RoomCode: roomCode,
	}
}

func (that *Player) IsBot() bool {
	return len(that.ID) > len(botIDPrefix) && that.ID[:len(botIDPrefix)] == botIDPrefix
}
