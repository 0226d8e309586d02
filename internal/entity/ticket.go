package entity

const (
	TicketWaiting = "waiting"
	TicketMatched = "matched"
)

// Ticket is an ephemeral matchmaking record: created on a quick-game request,
// consumed when a second player claims it or the requester times out.
type Ticket struct {
	ID        string `json:"id"`
	Player1   string `json:"player1"`
	Player2   string `json:"player2,omitempty"`
	Status    string `json:"status"`
	RoomCode  string `json:"room_code,omitempty"`
	Mode      string `json:"game_mode"`
	Blitz     bool   `json:"is_blitz_mode"`
	Gambit    bool   `json:"is_gambit_mode"`
	CreatedAt int64  `json:"created_at"`
}

func (that *Ticket) IsWaiting() bool {
	return that.Status == TicketWaiting
}
