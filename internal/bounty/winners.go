package bounty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/terra-clan/bounty-board/internal/models"
	"github.com/terra-clan/bounty-board/internal/prizes"
	"github.com/terra-clan/bounty-board/internal/storage"
)

// WinnerEngine commits a bounty's winner assignment once and resolves it for reads.
//
// A bounty is pending while no assignment is stored and announced afterwards.
// There is no way back to pending.
type WinnerEngine struct {
	repo         storage.Repository
	strictLabels bool
}

// NewWinnerEngine creates a winner engine. With strictLabels set, positions
// must match one of the bounty's prize places.
func NewWinnerEngine(repo storage.Repository, strictLabels bool) *WinnerEngine {
	return &WinnerEngine{repo: repo, strictLabels: strictLabels}
}

// Announce commits assignment for the bounty. It fails with
// ErrAlreadyAnnounced when an assignment is already stored, including when a
// concurrent call won the race.
func (e *WinnerEngine) Announce(ctx context.Context, bountyID string, assignment models.WinnerAssignment) (*models.Bounty, error) {
	clean, err := normalizeAssignment(assignment)
	if err != nil {
		return nil, err
	}

	b, err := e.repo.GetBounty(ctx, bountyID)
	if err != nil {
		return nil, storageError("load bounty", err)
	}

	if b.IsAnnounced() {
		return nil, ErrAlreadyAnnounced
	}

	for submissionID, label := range clean {
		if prizes.HasPlace(b.Prizes, label) {
			continue
		}
		if e.strictLabels {
			return nil, validationError("position %q is not one of the bounty's prize places", label)
		}
		slog.Warn("winner position not in prize structure",
			"bounty_id", bountyID,
			"submission_id", submissionID,
			"position", label,
		)
	}

	if err := e.repo.UpdateBountyWinners(ctx, bountyID, clean); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return nil, ErrAlreadyAnnounced
		default:
			return nil, storageError("commit winners", err)
		}
	}

	b.Assignment = clean
	return b, nil
}

// Resolve joins a committed assignment against the ledger. Entries whose
// submission no longer exists are dropped. The result is ordered by position
// rank; equal ranks keep submission order. A nil assignment resolves to nil.
func (e *WinnerEngine) Resolve(ctx context.Context, assignment models.WinnerAssignment) ([]models.Winner, error) {
	if len(assignment) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(assignment))
	for id := range assignment {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	submissions, err := e.repo.GetSubmissionsByIDs(ctx, ids)
	if err != nil {
		return nil, storageError("load winning submissions", err)
	}

	sort.SliceStable(submissions, func(i, j int) bool {
		if !submissions[i].CreatedAt.Equal(submissions[j].CreatedAt) {
			return submissions[i].CreatedAt.Before(submissions[j].CreatedAt)
		}
		return submissions[i].ID < submissions[j].ID
	})

	winners := make([]models.Winner, 0, len(submissions))
	for _, s := range submissions {
		label, ok := assignment[s.ID]
		if !ok {
			continue
		}
		rank, _ := PositionRank(label)
		winners = append(winners, models.Winner{
			Position:     label,
			PositionRank: rank,
			Submission:   s,
		})
	}

	if dropped := len(assignment) - len(winners); dropped > 0 {
		slog.Debug("dropped winners without submission", "count", dropped)
	}

	sort.SliceStable(winners, func(i, j int) bool {
		return rankKey(winners[i].Position) < rankKey(winners[j].Position)
	})

	return winners, nil
}

// PositionRank parses the leading integer of a position label ("1st" is 1,
// "10th" is 10). ok is false when the label does not start with a digit.
func PositionRank(label string) (int, bool) {
	label = strings.TrimSpace(label)

	end := 0
	for end < len(label) && unicode.IsDigit(rune(label[end])) {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(label[:end])
	if err != nil {
		return math.MaxInt32, true
	}
	return n, true
}

// rankKey orders unranked labels after every numbered one
func rankKey(label string) int64 {
	rank, ok := PositionRank(label)
	if !ok {
		return math.MaxInt64
	}
	return int64(rank)
}

func normalizeAssignment(assignment models.WinnerAssignment) (models.WinnerAssignment, error) {
	if len(assignment) == 0 {
		return nil, validationError("at least one winner is required")
	}

	clean := make(models.WinnerAssignment, len(assignment))
	for id, label := range assignment {
		id = strings.TrimSpace(id)
		label = strings.TrimSpace(label)
		if id == "" {
			return nil, validationError("winner submission id is required")
		}
		if label == "" {
			return nil, validationError("position for submission %s is required", id)
		}
		if _, dup := clean[id]; dup {
			return nil, validationError("submission %s assigned twice", id)
		}
		clean[id] = label
	}

	return clean, nil
}

// describeAssignment renders an assignment for logs
func describeAssignment(a models.WinnerAssignment) string {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s=%s", id, a[id]))
	}
	return strings.Join(parts, ",")
}
