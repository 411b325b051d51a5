package chessdto

// MoveEntry is one row of the move list shown to the player.
type MoveEntry struct {
	Ply       int
	From      string
	To        string
	SAN       string
	Origin    string
	Promotion string
}

// SessionState is a read-only snapshot of a game session for presenters.
type SessionState struct {
	GameID        string
	LocalColor    string
	Online        bool
	Connection    string
	Moves         []MoveEntry
	FEN           string
	DisplayFEN    string
	Board         string
	Turn          string
	Cursor        int
	Previewing    bool
	PromotionFrom string
	PromotionTo   string
	AwaitingEcho  string
	Outcome       string
	OutcomeWinner string
	OutcomeMethod string
	OutcomeFinal  bool
	OpeningCode   string
	OpeningTitle  string
}
