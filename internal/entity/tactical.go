package entity

import "math/rand"

const (
	ActionStrike    = "strike"
	ActionDefend    = "defend"
	ActionSacrifice = "sacrifice"
)

const (
	TileBomb = "bomb"
	TileSwap = "swap"
	TileLock = "lock"
)

const (
	// StartingShields is the shield bank each player opens the match with.
	StartingShields = 2
	// SacrificeShieldBonus is granted by the one-time sacrifice.
	SacrificeShieldBonus = 2
	// BombFusePlies is the countdown armed when a bomb tile is first occupied.
	BombFusePlies = 3
	// ShieldPlies is how long a shield holds before the cell reverts to empty.
	ShieldPlies = 3
	// DiagonalWinsForMatch is the score that ends a tactical match outright.
	DiagonalWinsForMatch = 2

	powerTileCount = 3
	bombFuseSpent  = -1
)

// TacticalState is the rule overlay a tactical room carries on top of the
// classic document: shield economy, power tiles and diagonal scoring.
//
// Board-index maps are keyed by cell index. BombFuses holds the remaining
// plies for an armed bomb, or bombFuseSpent once it has detonated.
type TacticalState struct {
	Shields       map[string]int  `json:"shields"`
	SacrificeUsed map[string]bool `json:"sacrifice_used"`
	PowerTiles    map[int]string  `json:"power_tiles"`
	BombFuses     map[int]int     `json:"bomb_fuses,omitempty"`
	ShieldFuses   map[int]int     `json:"shield_fuses,omitempty"`
	LockedCells   map[int]bool    `json:"locked_cells,omitempty"`
	DiagonalWins  map[string]int  `json:"diagonal_wins"`
}

// NewTacticalState deals a fresh overlay: full shield banks, no sacrifices
// spent, and one bomb, one swap and one lock tile on disjoint random cells.
func NewTacticalState() *TacticalState {
	state := &TacticalState{
		Shields:       map[string]int{PlayerX: StartingShields, PlayerO: StartingShields},
		SacrificeUsed: map[string]bool{PlayerX: false, PlayerO: false},
		PowerTiles:    make(map[int]string, powerTileCount),
		BombFuses:     make(map[int]int),
		ShieldFuses:   make(map[int]int),
		LockedCells:   make(map[int]bool),
		DiagonalWins:  map[string]int{PlayerX: 0, PlayerO: 0},
	}

	kinds := []string{TileBomb, TileSwap, TileLock}
	for i, cell := range rand.Perm(9)[:powerTileCount] { //nolint: gosec // it's ok
		state.PowerTiles[cell] = kinds[i]
	}

	return state
}

// TileAt returns the power tile on a cell, or "".
func (that *TacticalState) TileAt(cell int) string {
	return that.PowerTiles[cell]
}

// BombSpent reports whether the bomb on a cell has already detonated.
func (that *TacticalState) BombSpent(cell int) bool {
	return that.BombFuses[cell] == bombFuseSpent
}

// SpendBomb marks a detonated bomb so its fuse never re-arms on this board.
func (that *TacticalState) SpendBomb(cell int) {
	that.BombFuses[cell] = bombFuseSpent
}

// ClearBoardState drops everything tied to board cells while keeping the
// match-scoped parts: shield banks, sacrifice flags, diagonal score and the
// power-tile layout. Used by the diagonal-win board reset.
func (that *TacticalState) ClearBoardState() {
	that.BombFuses = make(map[int]int)
	that.ShieldFuses = make(map[int]int)
	that.LockedCells = make(map[int]bool)
}
