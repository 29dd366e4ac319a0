package models

// WinnerAssignment maps submission id to a prize position label ("1st", "2nd", ...)
type WinnerAssignment map[string]string

// Winner is one resolved entry of an announced bounty
type Winner struct {
	Position     string      `json:"position"`
	PositionRank int         `json:"position_number"`
	Submission   *Submission `json:"submission"`
}

// AnnounceWinnersRequest represents the admin's winner selection
type AnnounceWinnersRequest struct {
	Winners WinnerAssignment `json:"winners"`
}
