package gameapi

// InitRequest registers a game and its two players with the game server.
type InitRequest struct {
	GameID      string `json:"game_id"`
	WhiteUserID string `json:"white_user_id"`
	BlackUserID string `json:"black_user_id"`
}

type InitResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BestMoveRequest asks the analysis service for a reply in the given position.
type BestMoveRequest struct {
	FEN   string `json:"fen"`
	Depth int    `json:"depth,omitempty"`
}

type BestMoveResponse struct {
	Move string `json:"move"`
}
