package bounty

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/terra-clan/bounty-board/internal/models"
	"github.com/terra-clan/bounty-board/internal/storage"
	"github.com/terra-clan/bounty-board/internal/timewindow"
)

// errDuplicateEntry is returned by Create when the wallet already has an entry
var errDuplicateEntry = errors.New("submission already exists for wallet")

// Ledger keeps at most one submission per wallet per bounty.
// It does not look at deadlines; that policy belongs to the caller.
type Ledger struct {
	repo  storage.Repository
	clock timewindow.Clock
}

// NewLedger creates a new submission ledger
func NewLedger(repo storage.Repository, clock timewindow.Clock) *Ledger {
	if clock == nil {
		clock = timewindow.SystemClock
	}
	return &Ledger{repo: repo, clock: clock}
}

// Find returns the wallet's submission for a bounty, or nil when there is none
func (l *Ledger) Find(ctx context.Context, bountyID, wallet string) (*models.Submission, error) {
	s, err := l.repo.GetSubmission(ctx, bountyID, wallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, storageError("find submission", err)
	}
	return s, nil
}

// Create records a first entry. A second entry for the same wallet fails
// with errDuplicateEntry.
func (l *Ledger) Create(ctx context.Context, bountyID, wallet string, fields models.SubmissionFields) (*models.Submission, error) {
	fields = normalizeFields(fields)
	if err := validateEntry(bountyID, wallet, fields); err != nil {
		return nil, err
	}

	now := l.clock.Now().UTC()
	s := &models.Submission{
		ID:            uuid.New().String(),
		BountyID:      bountyID,
		WalletAddress: wallet,
		TwitterHandle: fields.TwitterHandle,
		TweetLink:     fields.TweetLink,
		ExtraInfo:     fields.ExtraInfo,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := l.repo.InsertSubmission(ctx, s); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, errDuplicateEntry
		}
		return nil, storageError("create submission", err)
	}

	return s, nil
}

// Update rewrites an entry matched by id, bounty and wallet together, so an
// entry can never be moved to another wallet or bounty
func (l *Ledger) Update(ctx context.Context, id, bountyID, wallet string, fields models.SubmissionFields) (*models.Submission, error) {
	fields = normalizeFields(fields)
	if err := validateEntry(bountyID, wallet, fields); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, validationError("submission id is required")
	}

	s, err := l.repo.UpdateSubmission(ctx, id, bountyID, wallet, fields, l.clock.Now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: no submission %s for this wallet and bounty", ErrNotFound, id)
		}
		return nil, storageError("update submission", err)
	}
	return s, nil
}

func normalizeFields(f models.SubmissionFields) models.SubmissionFields {
	return models.SubmissionFields{
		TwitterHandle: strings.TrimSpace(f.TwitterHandle),
		TweetLink:     strings.TrimSpace(f.TweetLink),
		ExtraInfo:     strings.TrimSpace(f.ExtraInfo),
	}
}

func validateEntry(bountyID, wallet string, f models.SubmissionFields) error {
	if bountyID == "" {
		return validationError("bounty_id is required")
	}
	if wallet == "" {
		return validationError("wallet_address is required")
	}
	if f.TwitterHandle == "" {
		return validationError("twitter_handle is required")
	}
	return nil
}
