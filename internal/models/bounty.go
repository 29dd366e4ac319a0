package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BountyStatus is derived from the deadline on every read, never stored
type BountyStatus string

const (
	StatusActive BountyStatus = "active"
	StatusEnded  BountyStatus = "ended"
)

// IsValid reports whether s is a known status
func (s BountyStatus) IsValid() bool {
	return s == StatusActive || s == StatusEnded
}

// Amount is the raw prize value as entered by the operator.
// It accepts JSON numbers and strings; malformed values are kept verbatim
// and count as zero when totals are computed.
type Amount string

// UnmarshalJSON accepts 10, 10.5, "10" and "" alike
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	*a = Amount(data)
	return nil
}

// MarshalJSON emits a JSON number when the amount parses, a string otherwise
func (a Amount) MarshalJSON() ([]byte, error) {
	if d, ok := a.Decimal(); ok {
		return []byte(d.String()), nil
	}
	return json.Marshal(string(a))
}

// Decimal parses the amount. ok is false for empty or non-numeric values.
func (a Amount) Decimal() (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(string(a)))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Prize is one position of a bounty's prize structure
type Prize struct {
	Place string `json:"place" yaml:"place"`
	Prize Amount `json:"prize" yaml:"prize"`
}

// Bounty is a time-boxed challenge as persisted
type Bounty struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Requirements string           `json:"requirements"`
	CategoryID   string           `json:"category_id"`
	EndDate      string           `json:"end_date"` // bare date or timestamp, kept as entered
	Prizes       []Prize          `json:"prizes"`
	Assignment   WinnerAssignment `json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
}

// IsAnnounced returns true once a winner assignment has been committed
func (b *Bounty) IsAnnounced() bool {
	return b != nil && len(b.Assignment) > 0
}

// BountyView is a bounty composed with its derived state for reads
type BountyView struct {
	*Bounty
	Category         *Category       `json:"category,omitempty"`
	Status           BountyStatus    `json:"status"`
	TotalPrize       decimal.Decimal `json:"total_prize"`
	SubmissionsTotal int             `json:"submissions_total"`

	// Winners is nil while pending and a (possibly empty) ranked list once announced
	Winners []Winner `json:"winners"`
}

// BountyFilter narrows bounty listings
type BountyFilter struct {
	Status     BountyStatus
	CategoryID string
	Limit      int
	Offset     int
}

// CreateBountyRequest represents a request to publish a bounty
type CreateBountyRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Requirements string  `json:"requirements"`
	CategoryID   string  `json:"category_id"`
	EndDate      string  `json:"end_date"`
	Prizes       []Prize `json:"prizes"`
}
