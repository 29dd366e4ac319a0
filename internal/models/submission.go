package models

import "time"

// Submission is one wallet's entry into a bounty
type Submission struct {
	ID            string    `json:"id"`
	BountyID      string    `json:"bounty_id"`
	WalletAddress string    `json:"wallet_address"`
	TwitterHandle string    `json:"twitter_handle"`
	TweetLink     string    `json:"tweet_link"`
	ExtraInfo     string    `json:"extra_info,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SubmissionFields are the participant-editable parts of a submission
type SubmissionFields struct {
	TwitterHandle string `json:"twitter_handle"`
	TweetLink     string `json:"tweet_link,omitempty"`
	ExtraInfo     string `json:"extra_info,omitempty"`
}

// SubmitEntryRequest represents a create-or-update of the caller's entry
type SubmitEntryRequest struct {
	BountyID string `json:"bounty_id"`
	SubmissionFields
}

// SubmissionNotice is the public announcement of a saved entry. It carries
// no participant details.
type SubmissionNotice struct {
	SubmissionID     string `json:"submission_id"`
	Created          bool   `json:"created"`
	SubmissionsTotal int    `json:"submissions_total"`
}
