package chessdto

// GameStatus is the persisted status column of a game.
type GameStatus string

const (
	StatusOngoing   GameStatus = "ONGOING"
	StatusWhiteWins GameStatus = "WHITE_WINS"
	StatusBlackWins GameStatus = "BLACK_WINS"
	StatusDraw      GameStatus = "DRAW"
	StatusAborted   GameStatus = "ABORTED"
)

func (s GameStatus) Terminal() bool {
	switch s {
	case StatusWhiteWins, StatusBlackWins, StatusDraw, StatusAborted:
		return true
	default:
		return false
	}
}
