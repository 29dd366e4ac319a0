// Package prizes validates and aggregates a bounty's prize structure.
package prizes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/terra-clan/bounty-board/internal/models"
)

// ErrInvalid is returned by Validate for a malformed prize structure
var ErrInvalid = errors.New("invalid prize structure")

// Value returns the numeric amount of a prize, zero when it does not parse
func Value(p models.Prize) decimal.Decimal {
	d, ok := p.Prize.Decimal()
	if !ok {
		return decimal.Zero
	}
	return d
}

// AggregateTotal sums all prize amounts. Empty and non-numeric amounts count as zero.
func AggregateTotal(prizes []models.Prize) decimal.Decimal {
	total := decimal.Zero
	for _, p := range prizes {
		total = total.Add(Value(p))
	}
	return total
}

// Validate checks the creation-time rules: at least one position, every
// position labelled, and labels unique within the bounty (case-insensitive).
func Validate(prizes []models.Prize) error {
	if len(prizes) == 0 {
		return fmt.Errorf("%w: at least one prize is required", ErrInvalid)
	}

	seen := make(map[string]struct{}, len(prizes))
	for i, p := range prizes {
		place := strings.TrimSpace(p.Place)
		if place == "" {
			return fmt.Errorf("%w: prize %d has no place label", ErrInvalid, i+1)
		}
		key := strings.ToLower(place)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate place label %q", ErrInvalid, place)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// HasPlace reports whether label is one of the declared place labels
func HasPlace(prizes []models.Prize, label string) bool {
	label = strings.TrimSpace(label)
	for _, p := range prizes {
		if strings.EqualFold(strings.TrimSpace(p.Place), label) {
			return true
		}
	}
	return false
}

// AmountFor returns the amount declared for a place label, zero if absent
func AmountFor(prizes []models.Prize, label string) decimal.Decimal {
	label = strings.TrimSpace(label)
	for _, p := range prizes {
		if strings.EqualFold(strings.TrimSpace(p.Place), label) {
			return Value(p)
		}
	}
	return decimal.Zero
}
